package subscription

import (
	"errors"
	"fmt"
	"math/big"

	"niftmarket/core/events"
	"niftmarket/core/types"
	"niftmarket/ledger"
	"niftmarket/native/admin"
	"niftmarket/native/creatorpool"
	"niftmarket/native/fees"
	"niftmarket/native/nft"
	"niftmarket/storage"
)

// ModuleName is the admin-registry entry for this engine. The creator pool
// checks it before accepting contributions.
const ModuleName = "subscription"

// Status is a subscriber's billing tier.
type Status uint8

const (
	// StatusBasic is the unsubscribed (or lapsed) tier.
	StatusBasic Status = 1
	// StatusPremium is the paid tier.
	StatusPremium Status = 2
)

// Billing modes, carried explicitly in the permission leg.
const (
	ModeDirect   = "direct"
	ModeReferral = "referral"
	ModePlatform = "platform"
)

// The three split tables. Plan construction verifies each sums to exactly
// 100, so a drifting constant fails at init rather than leaking funds.
var (
	directPlan   = fees.MustPlan(fees.Share{Name: "admin", Percent: 30}, fees.Share{Name: "creator", Percent: 70})
	referralPlan = fees.MustPlan(fees.Share{Name: "admin", Percent: 50}, fees.Share{Name: "referrer", Percent: 40}, fees.Share{Name: "pool", Percent: 10})
	platformPlan = fees.MustPlan(fees.Share{Name: "admin", Percent: 50}, fees.Share{Name: "pool", Percent: 50})
)

var (
	errNotAdmin         = errors.New("subscription: permission leg sender is not an admin")
	errWrongPermTarget  = errors.New("subscription: permission leg must call the admin registry")
	errWrongPayTarget   = errors.New("subscription: payment must fund the subscription module")
	errWrongCurrency    = errors.New("subscription: payment asset is not the registered stable asset")
	errAmountMismatch   = errors.New("subscription: declared amount does not match the payment leg")
	errExpiryNotFuture  = errors.New("subscription: new expiry must be in the future")
	errAlreadyPremium   = errors.New("subscription: subscriber is already premium")
	errStillActive      = errors.New("subscription: current subscription has not expired")
	errNotPremium       = errors.New("subscription: subscriber is not premium")
	errBadMode          = errors.New("subscription: unknown billing mode")
	errNothingToRefund  = errors.New("subscription: nothing to refund")
	errAdminRequired    = errors.New("subscription: sender is not an admin")
	errPermissionLegArg = errors.New("subscription: permission leg arguments malformed")
)

// Operation tags.
const (
	OpSubscribe         = "subscribe"
	OpRenew             = "renew"
	OpCancel            = "cancel"
	OpCancelRefund      = "cancel_refund"
	OpAdminCancel       = "admin_cancel"
	OpAdminCancelRefund = "admin_cancel_refund"
	OpFreezeHolding     = "freeze_holding"
	OpUnfreezeHolding   = "unfreeze_holding"
)

const keyRecord = "subscription"

// Record is a subscriber's billing state.
type Record struct {
	Status      uint8
	ExpiresAt   uint64
	PaymentType uint64
	AmountPaid  uint64
	Duration    uint64
}

// Engine is the subscription billing module. A subscribe or renew is a
// three-leg group: the payment into module custody, the module call, and a
// permission call to the admin registry whose sender must be an admin and
// whose arguments carry the billing parameters. Settlement distributes the
// payment under one of three verified split tables.
type Engine struct {
	id      uint64
	adminID uint64
	poolID  uint64
	emitter events.Emitter
}

// NewEngine constructs the billing module bound to its identity, the admin
// registry, and the creator pool it feeds.
func NewEngine(id, adminID, poolID uint64) *Engine {
	return &Engine{id: id, adminID: adminID, poolID: poolID, emitter: events.NoopEmitter{}}
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

// Address returns the module's custody address.
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

func billingEscrow(g *ledger.Group, idx int) bool {
	if g.Len() < 1 {
		return false
	}
	leg := g.Leg(0)
	if leg.Kind != ledger.LegPayment && leg.Kind != ledger.LegAssetTransfer {
		return false
	}
	return leg.Amount != nil && leg.Amount.Sign() > 0
}

func (e *Engine) routes() []ledger.Route {
	billingShape := func(tag string) ledger.Checker {
		return ledger.All(
			ledger.GroupSize(3),
			billingEscrow,
			ledger.CallAt(1),
			ledger.TagIs(tag),
			ledger.SameSender(0, 1),
			ledger.KindAt(2, ledger.LegAppCall),
		)
	}
	return []ledger.Route{
		{Name: OpCancel, Check: ledger.SoloCall(OpCancel), Run: e.cancel},
		{Name: OpCancelRefund, Check: ledger.SoloCall(OpCancelRefund), Run: e.cancelRefund},
		{Name: OpAdminCancel, Check: ledger.All(ledger.SoloCall(OpAdminCancel), ledger.ArgCount(2)), Run: e.adminCancel},
		{Name: OpAdminCancelRefund, Check: ledger.All(ledger.SoloCall(OpAdminCancelRefund), ledger.ArgCount(2)), Run: e.adminCancelRefund},
		{Name: OpFreezeHolding, Check: ledger.All(ledger.SoloCall(OpFreezeHolding), ledger.ArgCount(2)), Run: e.freezeHolding},
		{Name: OpUnfreezeHolding, Check: ledger.All(ledger.SoloCall(OpUnfreezeHolding), ledger.ArgCount(2)), Run: e.unfreezeHolding},
		{Name: OpSubscribe, Check: billingShape(OpSubscribe), Run: func(ctx *ledger.Context) error { return e.bill(ctx, false) }},
		{Name: OpRenew, Check: billingShape(OpRenew), Run: func(ctx *ledger.Context) error { return e.bill(ctx, true) }},
	}
}

func (e *Engine) record(ctx *ledger.Context, subscriber types.Address) (*Record, error) {
	record := new(Record)
	err := e.store(ctx).LocalRecord(subscriber[:], keyRecord, record)
	if errors.Is(err, storage.ErrNotFound) {
		return &Record{Status: uint8(StatusBasic)}, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (e *Engine) putRecord(ctx *ledger.Context, subscriber types.Address, record *Record) error {
	return e.store(ctx).SetLocalRecord(subscriber[:], keyRecord, record)
}

// RecordOf reads a subscriber's billing record outside group execution.
func RecordOf(db storage.Database, programID uint64, subscriber types.Address) (*Record, error) {
	record := new(Record)
	err := storage.NewProgramStore(db, programID).LocalRecord(subscriber[:], keyRecord, record)
	if errors.Is(err, storage.ErrNotFound) {
		return &Record{Status: uint8(StatusBasic)}, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// billingParams is the decoded permission leg.
type billingParams struct {
	mode      string
	amount    uint64
	newExpiry uint64
	poolAddr  types.Address
	referral  types.Address
}

func decodePermissionLeg(leg ledger.Leg) (billingParams, error) {
	var p billingParams
	args := leg.Args
	if len(args) < 5 {
		return p, fmt.Errorf("%w: %d args", errPermissionLegArg, len(args))
	}
	p.mode = string(args[1])
	amount, err := ledger.Uint64Arg(args[2])
	if err != nil {
		return p, fmt.Errorf("%w: amount: %v", errPermissionLegArg, err)
	}
	p.amount = amount
	expiry, err := ledger.Uint64Arg(args[3])
	if err != nil {
		return p, fmt.Errorf("%w: expiry: %v", errPermissionLegArg, err)
	}
	p.newExpiry = expiry
	pool, err := types.BytesToAddress(args[4])
	if err != nil {
		return p, fmt.Errorf("%w: pool address: %v", errPermissionLegArg, err)
	}
	p.poolAddr = pool
	if p.mode == ModeReferral {
		if len(args) != 6 {
			return p, fmt.Errorf("%w: referral mode needs a referrer", errPermissionLegArg)
		}
		referral, err := types.BytesToAddress(args[5])
		if err != nil {
			return p, fmt.Errorf("%w: referrer address: %v", errPermissionLegArg, err)
		}
		p.referral = referral
	}
	return p, nil
}

// pay moves funds out of module custody in the subscription's currency.
func (e *Engine) pay(ctx *ledger.Context, paymentType uint64, to types.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if paymentType == nft.OptionNative {
		return ctx.Bank.Transfer(e.Address(), to, amount)
	}
	stable, err := e.adminView(ctx).StableAssetID()
	if err != nil {
		return err
	}
	return ctx.Bank.TransferAsset(e.Address(), to, stable, amount)
}

// pooled moves a share into the creator pool's custody and records the
// contribution through the pool's gated increase call.
func (e *Engine) pooled(ctx *ledger.Context, paymentType uint64, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	poolCustody := ledger.ProgramAddress(e.poolID)
	var increase ledger.Leg
	if paymentType == nft.OptionNative {
		if err := ctx.Bank.Transfer(e.Address(), poolCustody, amount); err != nil {
			return err
		}
		increase = creatorpool.IncreaseNativeLeg(e.poolID, e.Address(), amount.Uint64())
	} else {
		stable, err := e.adminView(ctx).StableAssetID()
		if err != nil {
			return err
		}
		if err := ctx.Bank.TransferAsset(e.Address(), poolCustody, stable, amount); err != nil {
			return err
		}
		increase = creatorpool.IncreaseAssetLeg(e.poolID, e.Address(), stable, amount.Uint64())
	}
	return ctx.Invoke.InvokeCall(ctx, e.id, increase)
}

// bill handles both subscribe and renew. The tier gating differs; the
// payment validation and the mode distribution are shared.
func (e *Engine) bill(ctx *ledger.Context, renew bool) error {
	payment := ctx.Group.Leg(0)
	permission := ctx.Group.Leg(2)
	subscriber := ctx.Sender()

	if payment.Receiver != e.Address() {
		return errWrongPayTarget
	}
	if permission.Target != e.adminID || permission.Tag() != admin.OpCheckPermissions {
		return errWrongPermTarget
	}
	role, err := e.adminView(ctx).Role(permission.Sender)
	if err != nil {
		return err
	}
	if role != admin.RoleAdmin {
		return errNotAdmin
	}

	params, err := decodePermissionLeg(permission)
	if err != nil {
		return err
	}
	if payment.Amount.Cmp(new(big.Int).SetUint64(params.amount)) != 0 {
		return fmt.Errorf("%w: paid %s, declared %d", errAmountMismatch, payment.Amount, params.amount)
	}
	if params.newExpiry <= ctx.Now {
		return errExpiryNotFuture
	}

	var paymentType uint64
	switch payment.Kind {
	case ledger.LegPayment:
		paymentType = nft.OptionNative
	case ledger.LegAssetTransfer:
		stable, err := e.adminView(ctx).StableAssetID()
		if err != nil {
			return err
		}
		if payment.AssetID != stable {
			return errWrongCurrency
		}
		paymentType = nft.OptionStable
	}

	record, err := e.record(ctx, subscriber)
	if err != nil {
		return err
	}
	if renew {
		if Status(record.Status) != StatusPremium {
			return errNotPremium
		}
	} else {
		if Status(record.Status) == StatusPremium {
			return errAlreadyPremium
		}
		if ctx.Now < record.ExpiresAt {
			return errStillActive
		}
	}

	amount := new(big.Int).SetUint64(params.amount)
	adminCustody := ledger.ProgramAddress(e.adminID)
	switch params.mode {
	case ModeDirect:
		cuts := directPlan.Distribute(amount)
		if err := e.pay(ctx, paymentType, adminCustody, cuts["admin"]); err != nil {
			return err
		}
		if err := e.pay(ctx, paymentType, params.poolAddr, cuts["creator"]); err != nil {
			return err
		}
	case ModeReferral:
		cuts := referralPlan.Distribute(amount)
		if err := e.pay(ctx, paymentType, adminCustody, cuts["admin"]); err != nil {
			return err
		}
		if err := e.pay(ctx, paymentType, params.referral, cuts["referrer"]); err != nil {
			return err
		}
		if err := e.pooled(ctx, paymentType, cuts["pool"]); err != nil {
			return err
		}
	case ModePlatform:
		cuts := platformPlan.Distribute(amount)
		if err := e.pay(ctx, paymentType, adminCustody, cuts["admin"]); err != nil {
			return err
		}
		if err := e.pooled(ctx, paymentType, cuts["pool"]); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", errBadMode, params.mode)
	}

	record.Status = uint8(StatusPremium)
	record.ExpiresAt = params.newExpiry
	record.PaymentType = paymentType
	record.AmountPaid = params.amount
	record.Duration = params.newExpiry - ctx.Now
	if err := e.putRecord(ctx, subscriber, record); err != nil {
		return err
	}
	e.emit(BilledEvent(subscriber.Hex(), params.mode, params.amount, params.newExpiry, renew))
	return nil
}

func (e *Engine) downgrade(ctx *ledger.Context, subscriber types.Address, refund bool) error {
	record, err := e.record(ctx, subscriber)
	if err != nil {
		return err
	}
	if Status(record.Status) != StatusPremium {
		return errNotPremium
	}

	refunded := uint64(0)
	if refund {
		if record.Duration == 0 || record.ExpiresAt <= ctx.Now {
			return errNothingToRefund
		}
		remaining := record.ExpiresAt - ctx.Now
		// Pro-rata share of the unexpired remainder.
		value := new(big.Int).SetUint64(record.AmountPaid)
		value.Mul(value, new(big.Int).SetUint64(remaining))
		value.Quo(value, new(big.Int).SetUint64(record.Duration))
		if err := e.pay(ctx, record.PaymentType, subscriber, value); err != nil {
			return err
		}
		refunded = value.Uint64()
	}

	record.Status = uint8(StatusBasic)
	record.ExpiresAt = ctx.Now
	record.Duration = 0
	record.AmountPaid = 0
	if err := e.putRecord(ctx, subscriber, record); err != nil {
		return err
	}
	e.emit(CancelledEvent(subscriber.Hex(), refunded))
	return nil
}

func (e *Engine) cancel(ctx *ledger.Context) error {
	return e.downgrade(ctx, ctx.Sender(), false)
}

func (e *Engine) cancelRefund(ctx *ledger.Context) error {
	return e.downgrade(ctx, ctx.Sender(), true)
}

func (e *Engine) requireAdminSender(ctx *ledger.Context) error {
	role, err := e.adminView(ctx).Role(ctx.Sender())
	if err != nil {
		return err
	}
	if role != admin.RoleAdmin {
		return errAdminRequired
	}
	return nil
}

func (e *Engine) adminCancel(ctx *ledger.Context) error {
	if err := e.requireAdminSender(ctx); err != nil {
		return err
	}
	target, err := ctx.AddressArg(1)
	if err != nil {
		return err
	}
	return e.downgrade(ctx, target, false)
}

func (e *Engine) adminCancelRefund(ctx *ledger.Context) error {
	if err := e.requireAdminSender(ctx); err != nil {
		return err
	}
	target, err := ctx.AddressArg(1)
	if err != nil {
		return err
	}
	return e.downgrade(ctx, target, true)
}

func (e *Engine) freezeHolding(ctx *ledger.Context) error {
	return e.setHoldingFrozen(ctx, true)
}

func (e *Engine) unfreezeHolding(ctx *ledger.Context) error {
	return e.setHoldingFrozen(ctx, false)
}

func (e *Engine) setHoldingFrozen(ctx *ledger.Context, frozen bool) error {
	if err := e.requireAdminSender(ctx); err != nil {
		return err
	}
	target, err := ctx.AddressArg(1)
	if err != nil {
		return err
	}
	assetID, err := ctx.Asset(0)
	if err != nil {
		return err
	}
	if err := ctx.Bank.SetFrozen(target, assetID, frozen); err != nil {
		return err
	}
	e.emit(HoldingFrozenEvent(target.Hex(), assetID, frozen))
	return nil
}
