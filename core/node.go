package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"niftmarket/core/events"
	"niftmarket/core/types"
	"niftmarket/ledger"
	"niftmarket/observability/metrics"
	"niftmarket/storage"
)

// maxInvokeDepth bounds program-to-program call chains. The deepest legal
// chain today is billing -> creator pool -> admin registry.
const maxInvokeDepth = 8

var (
	// ErrUnknownProgram is returned when a call leg targets an unregistered
	// program identifier.
	ErrUnknownProgram = errors.New("core: unknown program")
	// ErrInvokeDepth is returned when inner calls nest past the limit.
	ErrInvokeDepth = errors.New("core: inner call depth exceeded")
)

// Node executes atomic groups against the ledger. Every group runs on a
// write overlay: either all legs apply and the overlay commits, or the first
// failing leg discards everything, including buffered events.
type Node struct {
	mu       sync.Mutex
	db       storage.Database
	programs map[uint64]ledger.Program
	recorder *events.Recorder
	sink     events.Emitter
	log      *slog.Logger
	metrics  *metrics.GroupMetrics
}

// emitterSetter is implemented by every engine so the node can route their
// events through the per-group recorder.
type emitterSetter interface {
	SetEmitter(events.Emitter)
}

// NewNode constructs a node over the given database. Programs are registered
// afterwards with Register.
func NewNode(db storage.Database, log *slog.Logger) *Node {
	if log == nil {
		log = slog.Default()
	}
	return &Node{
		db:       db,
		programs: make(map[uint64]ledger.Program),
		recorder: &events.Recorder{},
		log:      log,
		metrics:  metrics.Groups(),
	}
}

// SetEventSink wires the emitter that receives events from committed groups.
func (n *Node) SetEventSink(sink events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sink = sink
}

// Register installs a program under its identifier. Registering two programs
// with the same identifier is a wiring bug and fails loudly.
func (n *Node) Register(program ledger.Program) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := program.ID()
	if _, exists := n.programs[id]; exists {
		return fmt.Errorf("core: program %d already registered", id)
	}
	if setter, ok := program.(emitterSetter); ok {
		setter.SetEmitter(n.recorder)
	}
	n.programs[id] = program
	n.log.Info("program registered", "program", id)
	return nil
}

// ProgramIDs returns the registered program identifiers.
func (n *Node) ProgramIDs() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]uint64, 0, len(n.programs))
	for id := range n.programs {
		ids = append(ids, id)
	}
	return ids
}

// invoker runs inner calls as fresh single-leg groups so the callee's shape
// checks and caller gating apply on every program-to-program mutation.
type invoker struct {
	node  *Node
	depth int
}

func (v *invoker) InvokeCall(parent *ledger.Context, callerID uint64, leg ledger.Leg) error {
	if v.depth >= maxInvokeDepth {
		return ErrInvokeDepth
	}
	group, err := ledger.NewGroup(leg)
	if err != nil {
		return err
	}
	program, ok := v.node.programs[leg.Target]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownProgram, leg.Target)
	}
	v.node.metrics.ObserveInnerCall()
	ctx := &ledger.Context{
		Now:    parent.Now,
		Group:  group,
		Index:  0,
		Caller: callerID,
		Bank:   parent.Bank,
		DB:     parent.DB,
		Invoke: &invoker{node: v.node, depth: v.depth + 1},
	}
	return program.Execute(ctx)
}

// Submit executes a group at the given ledger time. On success it returns
// the events the group emitted, already published to the sink. On failure
// no state changes or events survive.
func (n *Node) Submit(now uint64, group *ledger.Group) ([]*types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := group.CheckRekey(); err != nil {
		n.metrics.ObserveRejected("rekey")
		return nil, err
	}

	overlay := storage.NewOverlay(n.db)
	bank := ledger.NewBank(overlay)
	n.recorder.Reset()

	for i := 0; i < group.Len(); i++ {
		leg := group.Leg(i)
		var err error
		switch leg.Kind {
		case ledger.LegPayment:
			err = bank.Transfer(leg.Sender, leg.Receiver, leg.Amount)
		case ledger.LegAssetTransfer:
			err = bank.TransferAsset(leg.Sender, leg.Receiver, leg.AssetID, leg.Amount)
		case ledger.LegAppCall:
			program, ok := n.programs[leg.Target]
			if !ok {
				err = fmt.Errorf("%w: %d", ErrUnknownProgram, leg.Target)
				break
			}
			ctx := &ledger.Context{
				Now:    now,
				Group:  group,
				Index:  i,
				Caller: 0,
				Bank:   bank,
				DB:     overlay,
				Invoke: &invoker{node: n},
			}
			err = program.Execute(ctx)
		default:
			err = fmt.Errorf("core: leg %d has unknown kind %d", i, leg.Kind)
		}
		if err != nil {
			overlay.Discard()
			n.recorder.Reset()
			n.metrics.ObserveRejected(rejectStage(leg.Kind))
			n.log.Info("group rejected", "leg", i, "err", err)
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
	}

	if err := overlay.Commit(); err != nil {
		n.recorder.Reset()
		n.metrics.ObserveRejected("commit")
		n.log.Error("group commit failed", "err", err)
		return nil, err
	}

	emitted := n.recorder.Events()
	out := make([]*types.Event, 0, len(emitted))
	for _, evt := range emitted {
		if payload, ok := events.Payload(evt); ok {
			out = append(out, payload)
		}
	}
	n.recorder.Drain(n.sink)
	n.metrics.ObserveCommitted(group.Len())
	n.metrics.ObserveEmitted(len(out))
	n.log.Info("group committed", "legs", group.Len(), "events", len(out))
	return out, nil
}

func rejectStage(kind ledger.LegKind) string {
	switch kind {
	case ledger.LegPayment:
		return "payment"
	case ledger.LegAssetTransfer:
		return "asset_transfer"
	case ledger.LegAppCall:
		return "app_call"
	default:
		return "unknown"
	}
}

// Balance reads an account's native balance.
func (n *Node) Balance(addr types.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return ledger.NewBank(n.db).Balance(addr)
}

// AssetBalance reads an account's holding in the given asset.
func (n *Node) AssetBalance(addr types.Address, assetID uint64) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return ledger.NewBank(n.db).AssetBalance(addr, assetID)
}

// GlobalState reads a program's global value by key. Missing keys report
// storage.ErrNotFound.
func (n *Node) GlobalState(programID uint64, key string) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return storage.NewProgramStore(n.db, programID).Global(key)
}

// LocalState reads a program's per-account value by key.
func (n *Node) LocalState(programID uint64, addr types.Address, key string) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return storage.NewProgramStore(n.db, programID).Local(addr.Bytes(), key)
}
