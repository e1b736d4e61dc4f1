package nft

import (
	"errors"
	"fmt"
	"math/big"

	"niftmarket/core/events"
	"niftmarket/core/types"
	"niftmarket/ledger"
	"niftmarket/native/admin"
	"niftmarket/storage"
)

var (
	errAlreadyDeployed = errors.New("nft: space already deployed")
	errNotDeployed     = errors.New("nft: space not deployed")
	errBadRoyalty      = errors.New("nft: royalty must be 1-50")
	errNotSingleUnit   = errors.New("nft: asset is not a single-unit NFT")
	errWrongRentTarget = errors.New("nft: rent payment must fund the space")
	errCallerNotModule = errors.New("nft: caller is not the registered module")
)

// Operation tags.
const (
	OpDeploy    = "deploy"
	OpPayNative = "pay_native"
	OpPayAsset  = "pay_asset"
	OpSetGlobal = "set_global"
	OpDelGlobal = "del_global"
)

// Space is the per-NFT program. It custodies the escrowed NFT and the bids
// or purchase funds against it, and exposes gated primitives (pay, set,
// delete) that only registry-recorded marketplace modules may drive. The
// space itself carries no trading logic; the auction and listing engines
// compose it.
type Space struct {
	id      uint64
	emitter events.Emitter
}

// NewSpace constructs a space program bound to its ledger identity.
func NewSpace(id uint64) *Space {
	return &Space{id: id, emitter: events.NoopEmitter{}}
}

// ID implements ledger.Program.
func (s *Space) ID() uint64 { return s.id }

// SetEmitter configures the event sink.
func (s *Space) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// Address returns the space's custody address.
func (s *Space) Address() types.Address {
	return ledger.ProgramAddress(s.id)
}

func (s *Space) emit(evt *types.Event) {
	if evt != nil {
		s.emitter.Emit(events.Wrap(evt))
	}
}

func (s *Space) store(ctx *ledger.Context) *storage.ProgramStore {
	return storage.NewProgramStore(ctx.DB, s.id)
}

// Execute implements ledger.Program.
func (s *Space) Execute(ctx *ledger.Context) error {
	_, err := ledger.Dispatch(s.routes(), ctx)
	return err
}

func (s *Space) routes() []ledger.Route {
	return []ledger.Route{
		{Name: OpPayNative, Check: ledger.All(ledger.SoloCall(OpPayNative), ledger.ArgCount(4)), Run: s.payNative},
		{Name: OpPayAsset, Check: ledger.All(ledger.SoloCall(OpPayAsset), ledger.ArgCount(4)), Run: s.payAsset},
		{Name: OpSetGlobal, Check: ledger.All(ledger.SoloCall(OpSetGlobal), ledger.ArgCount(4)), Run: s.setGlobal},
		{Name: OpDelGlobal, Check: ledger.All(ledger.SoloCall(OpDelGlobal), ledger.ArgCount(3)), Run: s.delGlobal},
		{Name: OpDeploy, Check: ledger.All(
			ledger.GroupSize(2),
			ledger.ExactPayment(0, ledger.RentSpaceDeploy),
			ledger.CallAt(1),
			ledger.TagIs(OpDeploy),
			ledger.SameSender(0, 1),
			ledger.ArgCount(5),
		), Run: s.deploy},
	}
}

// deploy initialises the space: args are the admin registry identity, the
// NFT asset, the royalty percent, and the stable asset. The sender becomes
// both owner and creator of record.
func (s *Space) deploy(ctx *ledger.Context) error {
	if ctx.Group.Leg(0).Receiver != s.Address() {
		return errWrongRentTarget
	}
	store := s.store(ctx)
	if ok, err := store.HasGlobal(KeyAdmin); err != nil {
		return err
	} else if ok {
		return errAlreadyDeployed
	}
	adminID, err := ctx.UintArg(1)
	if err != nil {
		return err
	}
	nftAsset, err := ctx.UintArg(2)
	if err != nil {
		return err
	}
	royalty, err := ctx.UintArg(3)
	if err != nil {
		return err
	}
	stableAsset, err := ctx.UintArg(4)
	if err != nil {
		return err
	}
	if royalty < 1 || royalty > 50 {
		return errBadRoyalty
	}
	params, err := ctx.Bank.AssetParams(nftAsset)
	if err != nil {
		return err
	}
	if !params.IsNFT() {
		return fmt.Errorf("%w: asset %d", errNotSingleUnit, nftAsset)
	}

	creator := ctx.Sender()
	writes := []struct {
		key   string
		value ledger.Value
	}{
		{KeyAdmin, ledger.UintValue(adminID)},
		{KeyNFTAsset, ledger.UintValue(nftAsset)},
		{KeyStableAsset, ledger.UintValue(stableAsset)},
		{KeyRoyalty, ledger.UintValue(royalty)},
		{KeyOwner, ledger.BytesValue(creator.Bytes())},
		{KeyCreator, ledger.BytesValue(creator.Bytes())},
	}
	for _, w := range writes {
		encoded, err := w.value.Encode()
		if err != nil {
			return err
		}
		if err := store.SetGlobal(w.key, encoded); err != nil {
			return err
		}
	}
	// The custody account opts into the NFT and the stable asset so it can
	// hold either side of a settlement.
	if err := ctx.Bank.OptInAsset(s.Address(), nftAsset); err != nil {
		return err
	}
	if err := ctx.Bank.OptInAsset(s.Address(), stableAsset); err != nil {
		return err
	}
	s.emit(SpaceDeployedEvent(s.id, creator.Hex(), nftAsset, royalty))
	return nil
}

// requireModule resolves the named module in the admin registry this space
// answers to and verifies the calling program matches it.
func (s *Space) requireModule(ctx *ledger.Context, name string) error {
	view := NewView(ctx.DB, s.id)
	adminID, err := view.AdminID()
	if err != nil {
		return errNotDeployed
	}
	moduleID, err := admin.NewView(ctx.DB, adminID).ModuleID(name)
	if err != nil {
		return err
	}
	if ctx.Caller == 0 || ctx.Caller != moduleID {
		return fmt.Errorf("%w: %s expects program %d, called by %d", errCallerNotModule, name, moduleID, ctx.Caller)
	}
	return nil
}

func (s *Space) payNative(ctx *ledger.Context) error {
	name, err := ctx.Arg(1)
	if err != nil {
		return err
	}
	if err := s.requireModule(ctx, string(name)); err != nil {
		return err
	}
	receiver, err := ctx.AddressArg(2)
	if err != nil {
		return err
	}
	amount, err := ctx.UintArg(3)
	if err != nil {
		return err
	}
	return ctx.Bank.Transfer(s.Address(), receiver, new(big.Int).SetUint64(amount))
}

func (s *Space) payAsset(ctx *ledger.Context) error {
	name, err := ctx.Arg(1)
	if err != nil {
		return err
	}
	if err := s.requireModule(ctx, string(name)); err != nil {
		return err
	}
	receiver, err := ctx.AddressArg(2)
	if err != nil {
		return err
	}
	amount, err := ctx.UintArg(3)
	if err != nil {
		return err
	}
	assetID, err := ctx.Asset(0)
	if err != nil {
		return err
	}
	return ctx.Bank.TransferAsset(s.Address(), receiver, assetID, new(big.Int).SetUint64(amount))
}

func (s *Space) setGlobal(ctx *ledger.Context) error {
	name, err := ctx.Arg(1)
	if err != nil {
		return err
	}
	if err := s.requireModule(ctx, string(name)); err != nil {
		return err
	}
	key, err := ctx.Arg(2)
	if err != nil {
		return err
	}
	rawValue, err := ctx.Arg(3)
	if err != nil {
		return err
	}
	value, err := ledger.DecodeValue(rawValue)
	if err != nil {
		return err
	}
	encoded, err := value.Encode()
	if err != nil {
		return err
	}
	return s.store(ctx).SetGlobal(string(key), encoded)
}

func (s *Space) delGlobal(ctx *ledger.Context) error {
	name, err := ctx.Arg(1)
	if err != nil {
		return err
	}
	if err := s.requireModule(ctx, string(name)); err != nil {
		return err
	}
	key, err := ctx.Arg(2)
	if err != nil {
		return err
	}
	return s.store(ctx).DeleteGlobal(string(key))
}

// Leg constructors for the inner calls modules submit through the invoker.

// PayNativeLeg pays native funds out of the space's custody.
func PayNativeLeg(spaceID uint64, sender types.Address, module string, receiver types.Address, amount uint64) ledger.Leg {
	return ledger.Leg{
		Kind: ledger.LegAppCall, Sender: sender, Target: spaceID,
		Args: [][]byte{[]byte(OpPayNative), []byte(module), receiver.Bytes(), ledger.EncodeUint64(amount)},
	}
}

// PayAssetLeg pays asset units out of the space's custody.
func PayAssetLeg(spaceID uint64, sender types.Address, module string, receiver types.Address, assetID, amount uint64) ledger.Leg {
	return ledger.Leg{
		Kind: ledger.LegAppCall, Sender: sender, Target: spaceID,
		Args:   [][]byte{[]byte(OpPayAsset), []byte(module), receiver.Bytes(), ledger.EncodeUint64(amount)},
		Assets: []uint64{assetID},
	}
}

// SetGlobalLeg writes a tagged value into the space's global state.
func SetGlobalLeg(spaceID uint64, sender types.Address, module, key string, value ledger.Value) (ledger.Leg, error) {
	encoded, err := value.Encode()
	if err != nil {
		return ledger.Leg{}, err
	}
	return ledger.Leg{
		Kind: ledger.LegAppCall, Sender: sender, Target: spaceID,
		Args: [][]byte{[]byte(OpSetGlobal), []byte(module), []byte(key), encoded},
	}, nil
}

// DelGlobalLeg deletes a key from the space's global state.
func DelGlobalLeg(spaceID uint64, sender types.Address, module, key string) ledger.Leg {
	return ledger.Leg{
		Kind: ledger.LegAppCall, Sender: sender, Target: spaceID,
		Args: [][]byte{[]byte(OpDelGlobal), []byte(module), []byte(key)},
	}
}
