package rpc

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"niftmarket/core/types"
	"niftmarket/ledger"
	"niftmarket/storage"
)

// Ledger is the node surface the RPC server exposes.
type Ledger interface {
	Submit(now uint64, group *ledger.Group) ([]*types.Event, error)
	Balance(addr types.Address) (*big.Int, error)
	AssetBalance(addr types.Address, assetID uint64) (*big.Int, error)
	GlobalState(programID uint64, key string) ([]byte, error)
	LocalState(programID uint64, addr types.Address, key string) ([]byte, error)
}

// Server exposes group submission and read-only state over HTTP.
type Server struct {
	node Ledger
	log  *slog.Logger
}

// NewServer constructs the RPC server over the given node.
func NewServer(node Ledger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{node: node, log: log}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/groups", s.handleSubmit)
	r.Get("/v1/accounts/{address}/balance", s.handleBalance)
	r.Get("/v1/programs/{id}/state/{key}", s.handleGlobalState)
	r.Get("/v1/programs/{id}/accounts/{address}/state/{key}", s.handleLocalState)

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	group, err := req.toGroup()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	emitted, err := s.node.Submit(req.Now, group)
	if err != nil {
		s.log.Info("group rejected", "err", err)
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Events: eventsToWire(emitted)})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := types.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp := balanceResponse{Address: addr.Hex()}
	var amount *big.Int
	if raw := r.URL.Query().Get("asset"); raw != "" {
		assetID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp.Asset = assetID
		amount, err = s.node.AssetBalance(addr, assetID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	} else {
		amount, err = s.node.Balance(addr)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	resp.Amount = amount.String()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) programID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
}

func (s *Server) writeState(w http.ResponseWriter, programID uint64, key string, value []byte, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{
		Program: programID,
		Key:     key,
		Value:   base64.StdEncoding.EncodeToString(value),
	})
}

func (s *Server) handleGlobalState(w http.ResponseWriter, r *http.Request) {
	programID, err := s.programID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key := chi.URLParam(r, "key")
	value, err := s.node.GlobalState(programID, key)
	s.writeState(w, programID, key, value, err)
}

func (s *Server) handleLocalState(w http.ResponseWriter, r *http.Request) {
	programID, err := s.programID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	addr, err := types.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key := chi.URLParam(r, "key")
	value, err := s.node.LocalState(programID, addr, key)
	s.writeState(w, programID, key, value, err)
}
