package creatorpool

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

// ModuleName is the admin-registry entry for this engine: the registry's
// set_local gateway checks it when the pool records a creator's claim epoch.
const ModuleName = "creatorpool"

// FunderModule is the registry entry whose program is allowed to grow the
// pool. Only subscription billing feeds it.
const FunderModule = "subscription"

var (
	errCallerNotFunder  = errors.New("creatorpool: caller is not the subscription module")
	errNotAdmin         = errors.New("creatorpool: sender is not an admin")
	errNotVerified      = errors.New("creatorpool: sender is not a verified creator")
	errNoVerified       = errors.New("creatorpool: no verified creators to distribute to")
	errAlreadyClaimed   = errors.New("creatorpool: share already claimed this round")
	errNothingToClaim   = errors.New("creatorpool: no distribution round open")
	errPoolUnderfunded  = errors.New("creatorpool: pooled balance below the claim")
	errZeroContribution = errors.New("creatorpool: contribution must be positive")
)

// Operation tags.
const (
	OpIncreaseNative  = "increase_native"
	OpIncreaseAsset   = "increase_asset"
	OpCalculateNative = "calculate_native"
	OpCalculateAsset  = "calculate_asset"
	OpWithdrawNative  = "withdraw_native"
	OpWithdrawAsset   = "withdraw_asset"
)

// Global state keys. Asset-scoped keys append "/<assetID>".
const (
	keyPoolNative  = "pool_native"
	keyEpochNative = "epoch_native"
	keyShareNative = "share_native"
	keyPoolAsset   = "pool_asset"
	keyEpochAsset  = "epoch_asset"
	keyShareAsset  = "share_asset"
)

// Claim-epoch keys written into the admin registry's local store per creator.
const (
	markNative      = "pool_epoch_native"
	markAssetPrefix = "pool_epoch_asset/"
)

// Engine is the creator pool: subscription billing feeds it, an admin opens
// a distribution round, and each verified creator claims an equal share at
// most once per round. The per-creator claim marks live in the admin
// registry's local store so a creator's whole marketplace footprint sits in
// one place.
type Engine struct {
	id      uint64
	adminID uint64
	emitter events.Emitter
}

// NewEngine constructs the pool bound to its ledger identity and the admin
// registry it answers to.
func NewEngine(id, adminID uint64) *Engine {
	return &Engine{id: id, adminID: adminID, emitter: events.NoopEmitter{}}
}

// ID implements ledger.Program.
func (e *Engine) ID() uint64 { return e.id }

// SetEmitter configures the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Address returns the pool's custody address.
func (e *Engine) Address() types.Address {
	return ledger.ProgramAddress(e.id)
}

func (e *Engine) emit(evt *types.Event) {
	if evt != nil {
		e.emitter.Emit(events.Wrap(evt))
	}
}

func (e *Engine) store(ctx *ledger.Context) *storage.ProgramStore {
	return storage.NewProgramStore(ctx.DB, e.id)
}

func (e *Engine) adminView(ctx *ledger.Context) *admin.View {
	return admin.NewView(ctx.DB, e.adminID)
}

// Execute implements ledger.Program.
func (e *Engine) Execute(ctx *ledger.Context) error {
	_, err := ledger.Dispatch(e.routes(), ctx)
	return err
}

func (e *Engine) routes() []ledger.Route {
	return []ledger.Route{
		{Name: OpIncreaseNative, Check: ledger.All(ledger.SoloCall(OpIncreaseNative), ledger.ArgCount(2)), Run: e.increaseNative},
		{Name: OpIncreaseAsset, Check: ledger.All(ledger.SoloCall(OpIncreaseAsset), ledger.ArgCount(2)), Run: e.increaseAsset},
		{Name: OpCalculateNative, Check: ledger.SoloCall(OpCalculateNative), Run: e.calculateNative},
		{Name: OpCalculateAsset, Check: ledger.SoloCall(OpCalculateAsset), Run: e.calculateAsset},
		{Name: OpWithdrawNative, Check: ledger.SoloCall(OpWithdrawNative), Run: e.withdrawNative},
		{Name: OpWithdrawAsset, Check: ledger.SoloCall(OpWithdrawAsset), Run: e.withdrawAsset},
	}
}

func (e *Engine) globalUint(ctx *ledger.Context, key string) (uint64, error) {
	raw, err := e.store(ctx).Global(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ledger.Uint64Arg(raw)
}

func (e *Engine) setGlobalUint(ctx *ledger.Context, key string, value uint64) error {
	return e.store(ctx).SetGlobal(key, ledger.EncodeUint64(value))
}

func assetKey(prefix string, assetID uint64) string {
	return fmt.Sprintf("%s/%d", prefix, assetID)
}

func (e *Engine) requireFunder(ctx *ledger.Context) error {
	funderID, err := e.adminView(ctx).ModuleID(FunderModule)
	if err != nil {
		return err
	}
	if ctx.Caller == 0 || ctx.Caller != funderID {
		return fmt.Errorf("%w: expects program %d, called by %d", errCallerNotFunder, funderID, ctx.Caller)
	}
	return nil
}

func (e *Engine) requireAdmin(ctx *ledger.Context) error {
	role, err := e.adminView(ctx).Role(ctx.Sender())
	if err != nil {
		return err
	}
	if role != admin.RoleAdmin {
		return errNotAdmin
	}
	return nil
}

func (e *Engine) requireVerified(ctx *ledger.Context) error {
	status, err := e.adminView(ctx).Status(ctx.Sender())
	if err != nil {
		return err
	}
	if status != admin.StatusVerified {
		return errNotVerified
	}
	return nil
}

func (e *Engine) increase(ctx *ledger.Context, poolKey string) error {
	if err := e.requireFunder(ctx); err != nil {
		return err
	}
	amount, err := ctx.UintArg(1)
	if err != nil {
		return err
	}
	if amount == 0 {
		return errZeroContribution
	}
	pool, err := e.globalUint(ctx, poolKey)
	if err != nil {
		return err
	}
	if err := e.setGlobalUint(ctx, poolKey, pool+amount); err != nil {
		return err
	}
	e.emit(IncreasedEvent(poolKey, amount, pool+amount))
	return nil
}

func (e *Engine) increaseNative(ctx *ledger.Context) error {
	return e.increase(ctx, keyPoolNative)
}

func (e *Engine) increaseAsset(ctx *ledger.Context) error {
	assetID, err := ctx.Asset(0)
	if err != nil {
		return err
	}
	return e.increase(ctx, assetKey(keyPoolAsset, assetID))
}

// calculate opens a distribution round: it fixes the equal share at
// floor(pool / verifiedCreators) and bumps the round's epoch counter so
// every creator's stale claim mark becomes eligible again.
func (e *Engine) calculate(ctx *ledger.Context, poolKey, shareKey, epochKey string) error {
	if err := e.requireAdmin(ctx); err != nil {
		return err
	}
	verified, err := e.adminView(ctx).VerifiedCreators()
	if err != nil {
		return err
	}
	if verified == 0 {
		return errNoVerified
	}
	pool, err := e.globalUint(ctx, poolKey)
	if err != nil {
		return err
	}
	share := pool / verified
	epoch, err := e.globalUint(ctx, epochKey)
	if err != nil {
		return err
	}
	if err := e.setGlobalUint(ctx, shareKey, share); err != nil {
		return err
	}
	if err := e.setGlobalUint(ctx, epochKey, epoch+1); err != nil {
		return err
	}
	e.emit(RoundOpenedEvent(poolKey, epoch+1, share, verified))
	return nil
}

func (e *Engine) calculateNative(ctx *ledger.Context) error {
	return e.calculate(ctx, keyPoolNative, keyShareNative, keyEpochNative)
}

func (e *Engine) calculateAsset(ctx *ledger.Context) error {
	assetID, err := ctx.Asset(0)
	if err != nil {
		return err
	}
	return e.calculate(ctx,
		assetKey(keyPoolAsset, assetID),
		assetKey(keyShareAsset, assetID),
		assetKey(keyEpochAsset, assetID))
}

// withdraw pays the caller's share for the open round. The idempotency check
// compares the creator's claim mark (in the admin registry) against the
// round epoch: equal means already claimed.
func (e *Engine) withdraw(ctx *ledger.Context, poolKey, shareKey, epochKey, markKey string, pay func(to types.Address, amount uint64) error) error {
	if err := e.requireVerified(ctx); err != nil {
		return err
	}
	epoch, err := e.globalUint(ctx, epochKey)
	if err != nil {
		return err
	}
	if epoch == 0 {
		return errNothingToClaim
	}
	creator := ctx.Sender()
	mark, err := e.adminView(ctx).LocalUint(creator, markKey)
	if err != nil {
		return err
	}
	if mark == epoch {
		return fmt.Errorf("%w: epoch %d", errAlreadyClaimed, epoch)
	}
	share, err := e.globalUint(ctx, shareKey)
	if err != nil {
		return err
	}
	pool, err := e.globalUint(ctx, poolKey)
	if err != nil {
		return err
	}
	if share > pool {
		return errPoolUnderfunded
	}

	if share > 0 {
		if err := pay(creator, share); err != nil {
			return err
		}
		if err := e.setGlobalUint(ctx, poolKey, pool-share); err != nil {
			return err
		}
	}
	// Advance the claim mark through the registry's gated setter so the
	// capability check covers this write too.
	markLeg, err := admin.SetLocalLeg(e.adminID, e.Address(), ModuleName, creator, markKey, ledger.UintValue(epoch))
	if err != nil {
		return err
	}
	if err := ctx.Invoke.InvokeCall(ctx, e.id, markLeg); err != nil {
		return err
	}
	e.emit(ClaimedEvent(poolKey, creator.Hex(), epoch, share))
	return nil
}

func (e *Engine) withdrawNative(ctx *ledger.Context) error {
	return e.withdraw(ctx, keyPoolNative, keyShareNative, keyEpochNative, markNative,
		func(to types.Address, amount uint64) error {
			return ctx.Bank.Transfer(e.Address(), to, new(big.Int).SetUint64(amount))
		})
}

func (e *Engine) withdrawAsset(ctx *ledger.Context) error {
	assetID, err := ctx.Asset(0)
	if err != nil {
		return err
	}
	return e.withdraw(ctx,
		assetKey(keyPoolAsset, assetID),
		assetKey(keyShareAsset, assetID),
		assetKey(keyEpochAsset, assetID),
		markAssetPrefix+fmt.Sprintf("%d", assetID),
		func(to types.Address, amount uint64) error {
			return ctx.Bank.TransferAsset(e.Address(), to, assetID, new(big.Int).SetUint64(amount))
		})
}

// Leg constructors for the inner calls the subscription module submits.

// IncreaseNativeLeg records a native contribution. The funds themselves move
// in the caller's own bank transfer; this call keeps the pool's accounting
// in step.
func IncreaseNativeLeg(poolID uint64, sender types.Address, amount uint64) ledger.Leg {
	return ledger.Leg{
		Kind: ledger.LegAppCall, Sender: sender, Target: poolID,
		Args: [][]byte{[]byte(OpIncreaseNative), ledger.EncodeUint64(amount)},
	}
}

// IncreaseAssetLeg records an asset contribution.
func IncreaseAssetLeg(poolID uint64, sender types.Address, assetID, amount uint64) ledger.Leg {
	return ledger.Leg{
		Kind: ledger.LegAppCall, Sender: sender, Target: poolID,
		Args:   [][]byte{[]byte(OpIncreaseAsset), ledger.EncodeUint64(amount)},
		Assets: []uint64{assetID},
	}
}
