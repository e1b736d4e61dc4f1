package rpc

import (
	"encoding/base64"
	"fmt"
	"math/big"

	"niftmarket/core/types"
	"niftmarket/ledger"
)

// Leg kind names on the wire.
const (
	kindPayment       = "payment"
	kindAssetTransfer = "asset_transfer"
	kindAppCall       = "app_call"
)

type legPayload struct {
	Kind     string   `json:"kind"`
	Sender   string   `json:"sender"`
	Receiver string   `json:"receiver,omitempty"`
	Amount   string   `json:"amount,omitempty"`
	Asset    uint64   `json:"asset,omitempty"`
	Target   uint64   `json:"target,omitempty"`
	Args     []string `json:"args,omitempty"`
	Accounts []string `json:"accounts,omitempty"`
	Assets   []uint64 `json:"assets,omitempty"`
	Programs []uint64 `json:"programs,omitempty"`
	RekeyTo  string   `json:"rekeyTo,omitempty"`
}

type submitRequest struct {
	Now  uint64       `json:"now"`
	Legs []legPayload `json:"legs"`
}

type eventPayload struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type submitResponse struct {
	Events []eventPayload `json:"events"`
}

type balanceResponse struct {
	Address string `json:"address"`
	Asset   uint64 `json:"asset,omitempty"`
	Amount  string `json:"amount"`
}

type stateResponse struct {
	Program uint64 `json:"program"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (p legPayload) toLeg() (ledger.Leg, error) {
	var leg ledger.Leg
	switch p.Kind {
	case kindPayment:
		leg.Kind = ledger.LegPayment
	case kindAssetTransfer:
		leg.Kind = ledger.LegAssetTransfer
	case kindAppCall:
		leg.Kind = ledger.LegAppCall
	default:
		return leg, fmt.Errorf("unknown leg kind %q", p.Kind)
	}

	sender, err := types.ParseAddress(p.Sender)
	if err != nil {
		return leg, fmt.Errorf("sender: %w", err)
	}
	leg.Sender = sender

	if p.Receiver != "" {
		receiver, err := types.ParseAddress(p.Receiver)
		if err != nil {
			return leg, fmt.Errorf("receiver: %w", err)
		}
		leg.Receiver = receiver
	}
	if p.RekeyTo != "" {
		rekey, err := types.ParseAddress(p.RekeyTo)
		if err != nil {
			return leg, fmt.Errorf("rekeyTo: %w", err)
		}
		leg.RekeyTo = rekey
	}

	if p.Amount != "" {
		amount, ok := new(big.Int).SetString(p.Amount, 10)
		if !ok {
			return leg, fmt.Errorf("invalid amount %q", p.Amount)
		}
		leg.Amount = amount
	}
	leg.AssetID = p.Asset
	leg.Target = p.Target

	for i, raw := range p.Args {
		arg, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return leg, fmt.Errorf("arg %d: %w", i, err)
		}
		leg.Args = append(leg.Args, arg)
	}
	for i, raw := range p.Accounts {
		account, err := types.ParseAddress(raw)
		if err != nil {
			return leg, fmt.Errorf("account %d: %w", i, err)
		}
		leg.Accounts = append(leg.Accounts, account)
	}
	leg.Assets = append(leg.Assets, p.Assets...)
	leg.Programs = append(leg.Programs, p.Programs...)
	return leg, nil
}

func (r submitRequest) toGroup() (*ledger.Group, error) {
	legs := make([]ledger.Leg, 0, len(r.Legs))
	for i, payload := range r.Legs {
		leg, err := payload.toLeg()
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		legs = append(legs, leg)
	}
	return ledger.NewGroup(legs...)
}

func eventsToWire(evts []*types.Event) []eventPayload {
	out := make([]eventPayload, 0, len(evts))
	for _, evt := range evts {
		out = append(out, eventPayload{Type: evt.Type, Attributes: evt.Attributes})
	}
	return out
}
