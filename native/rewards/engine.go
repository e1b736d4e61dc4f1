package rewards

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

const (
	// DailyMax caps how much any one beneficiary can accrue per rolling day.
	DailyMax = 24_000_000
	// ClaimFee is the flat liability added on every accrual, payable at claim.
	ClaimFee = 1_000
	// daySeconds is the accrual window length.
	daySeconds = 86_400
)

var (
	errNotAdmin        = errors.New("rewards: sender is not an admin")
	errDailyCap        = errors.New("rewards: accrual exceeds the daily cap")
	errUnderflow       = errors.New("rewards: decrease exceeds accrued rewards")
	errNothingAccrued  = errors.New("rewards: nothing accrued")
	errWrongFee        = errors.New("rewards: fee payment must match the owed amount exactly")
	errWrongFeeTarget  = errors.New("rewards: fee payment must fund the admin registry")
	errZeroAccrual     = errors.New("rewards: amount must be positive")
	errCapAboveWindow  = errors.New("rewards: single accrual above the daily cap")
	errBeneficiaryArgs = errors.New("rewards: beneficiary argument malformed")
)

// Operation tags.
const (
	OpIncrease          = "increase_rewards"
	OpDecrease          = "decrease_rewards"
	OpClaim             = "claim_rewards"
	OpEmergencyWithdraw = "emergency_withdraw"
)

const keyRecord = "rewards"

// Record is a beneficiary's accrual ledger: the claimable amount, the fee
// liability, and the rolling-day bookkeeping that backs the cap.
type Record struct {
	Amount       uint64
	FeesOwed     uint64
	DailyAccrued uint64
	WindowStart  uint64
}

// Engine is the rewards module: admins accrue reward-asset amounts per
// beneficiary under a rolling daily cap, and beneficiaries claim by paying
// the owed fee. The beneficiary's reward-asset holding stays frozen outside
// the claim window so accrued funds cannot move early.
type Engine struct {
	id      uint64
	adminID uint64
	emitter events.Emitter
}

// NewEngine constructs the rewards module bound to its identity and registry.
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

// Address returns the module's custody address, which holds the reward
// asset backing all accruals.
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
		{Name: OpIncrease, Check: ledger.All(ledger.SoloCall(OpIncrease), ledger.ArgCount(3)), Run: e.increase},
		{Name: OpDecrease, Check: ledger.All(ledger.SoloCall(OpDecrease), ledger.ArgCount(3)), Run: e.decrease},
		{Name: OpEmergencyWithdraw, Check: ledger.All(ledger.SoloCall(OpEmergencyWithdraw), ledger.ArgCount(3)), Run: e.emergencyWithdraw},
		{Name: OpClaim, Check: ledger.All(
			ledger.GroupSize(2),
			ledger.KindAt(0, ledger.LegPayment),
			ledger.CallAt(1),
			ledger.TagIs(OpClaim),
			ledger.SameSender(0, 1),
		), Run: e.claim},
	}
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

func (e *Engine) record(ctx *ledger.Context, beneficiary types.Address) (*Record, error) {
	record := new(Record)
	err := e.store(ctx).LocalRecord(beneficiary[:], keyRecord, record)
	if errors.Is(err, storage.ErrNotFound) {
		return &Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (e *Engine) putRecord(ctx *ledger.Context, beneficiary types.Address, record *Record) error {
	return e.store(ctx).SetLocalRecord(beneficiary[:], keyRecord, record)
}

// RecordOf reads a beneficiary's accrual record outside group execution.
func RecordOf(db storage.Database, programID uint64, beneficiary types.Address) (*Record, error) {
	record := new(Record)
	err := storage.NewProgramStore(db, programID).LocalRecord(beneficiary[:], keyRecord, record)
	if errors.Is(err, storage.ErrNotFound) {
		return &Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (e *Engine) beneficiaryAndAmount(ctx *ledger.Context) (types.Address, uint64, error) {
	beneficiary, err := ctx.AddressArg(1)
	if err != nil {
		return types.ZeroAddress, 0, fmt.Errorf("%w: %v", errBeneficiaryArgs, err)
	}
	amount, err := ctx.UintArg(2)
	if err != nil {
		return types.ZeroAddress, 0, err
	}
	return beneficiary, amount, nil
}

// increase accrues rewards under the rolling daily cap: inside the window
// the cumulative accrual must stay at or below the cap; once the window has
// elapsed it rolls forward and restarts at the new amount.
func (e *Engine) increase(ctx *ledger.Context) error {
	if err := e.requireAdmin(ctx); err != nil {
		return err
	}
	beneficiary, amount, err := e.beneficiaryAndAmount(ctx)
	if err != nil {
		return err
	}
	if amount == 0 {
		return errZeroAccrual
	}
	if amount > DailyMax {
		return errCapAboveWindow
	}
	record, err := e.record(ctx, beneficiary)
	if err != nil {
		return err
	}

	if ctx.Now > record.WindowStart+daySeconds {
		record.WindowStart = ctx.Now
		record.DailyAccrued = amount
	} else {
		if record.DailyAccrued+amount > DailyMax {
			return fmt.Errorf("%w: %d accrued, %d requested", errDailyCap, record.DailyAccrued, amount)
		}
		record.DailyAccrued += amount
	}
	record.Amount += amount
	record.FeesOwed += ClaimFee

	if err := e.putRecord(ctx, beneficiary, record); err != nil {
		return err
	}
	e.emit(AccruedEvent(beneficiary.Hex(), amount, record.Amount, record.FeesOwed))
	return nil
}

// decrease mirrors increase without the cap: the flat fee still accrues, only
// the window bookkeeping is skipped. The underflow guard is explicit because
// the environment traps on wraparound with no recoverable signal.
func (e *Engine) decrease(ctx *ledger.Context) error {
	if err := e.requireAdmin(ctx); err != nil {
		return err
	}
	beneficiary, amount, err := e.beneficiaryAndAmount(ctx)
	if err != nil {
		return err
	}
	record, err := e.record(ctx, beneficiary)
	if err != nil {
		return err
	}
	if amount > record.Amount {
		return fmt.Errorf("%w: %d accrued, %d requested", errUnderflow, record.Amount, amount)
	}
	record.Amount -= amount
	record.FeesOwed += ClaimFee
	if err := e.putRecord(ctx, beneficiary, record); err != nil {
		return err
	}
	e.emit(DecreasedEvent(beneficiary.Hex(), amount, record.Amount))
	return nil
}

// claim settles a beneficiary's accrued rewards: the fee leg must pay the
// owed amount to the admin registry exactly, then the engine unfreezes the
// beneficiary's reward-asset holding, delivers the accrual, zeroes the
// record, and refreezes the holding.
func (e *Engine) claim(ctx *ledger.Context) error {
	beneficiary := ctx.Sender()
	record, err := e.record(ctx, beneficiary)
	if err != nil {
		return err
	}
	if record.Amount == 0 {
		return errNothingAccrued
	}

	fee := ctx.Group.Leg(0)
	if fee.Receiver != ledger.ProgramAddress(e.adminID) {
		return errWrongFeeTarget
	}
	if fee.Amount.Cmp(new(big.Int).SetUint64(record.FeesOwed)) != 0 {
		return fmt.Errorf("%w: paid %s, owed %d", errWrongFee, fee.Amount, record.FeesOwed)
	}

	rewardAsset, err := e.adminView(ctx).RewardAssetID()
	if err != nil {
		return err
	}
	frozen, err := ctx.Bank.Frozen(beneficiary, rewardAsset)
	if err != nil {
		return err
	}
	if frozen {
		if err := ctx.Bank.SetFrozen(beneficiary, rewardAsset, false); err != nil {
			return err
		}
	}
	if err := ctx.Bank.TransferAsset(e.Address(), beneficiary, rewardAsset, new(big.Int).SetUint64(record.Amount)); err != nil {
		return err
	}
	if err := ctx.Bank.SetFrozen(beneficiary, rewardAsset, true); err != nil {
		return err
	}

	claimed := record.Amount
	record.Amount = 0
	record.FeesOwed = 0
	if err := e.putRecord(ctx, beneficiary, record); err != nil {
		return err
	}
	e.emit(ClaimedEvent(beneficiary.Hex(), claimed))
	return nil
}

// emergencyWithdraw sweeps reward-asset balance out of custody. Admin-only,
// for draining a decommissioned module.
func (e *Engine) emergencyWithdraw(ctx *ledger.Context) error {
	if err := e.requireAdmin(ctx); err != nil {
		return err
	}
	beneficiary, amount, err := e.beneficiaryAndAmount(ctx)
	if err != nil {
		return err
	}
	assetID, err := ctx.Asset(0)
	if err != nil {
		return err
	}
	if err := ctx.Bank.TransferAsset(e.Address(), beneficiary, assetID, new(big.Int).SetUint64(amount)); err != nil {
		return err
	}
	e.emit(EmergencyWithdrawnEvent(beneficiary.Hex(), assetID, amount))
	return nil
}
