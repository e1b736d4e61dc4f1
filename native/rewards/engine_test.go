package rewards

import (
	"errors"
	"math/big"
	"testing"

	"niftmarket/core/types"
	"niftmarket/ledger"
	"niftmarket/native/admin"
	"niftmarket/storage"
)

const (
	adminID   = uint64(100)
	rewardsID = uint64(310)

	rewardAsset = uint64(11)
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

var (
	adminAcct   = addr(1)
	beneficiary = addr(2)
)

type env struct {
	t      *testing.T
	db     storage.Database
	bank   *ledger.Bank
	engine *Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := storage.NewMemDB()
	bank := ledger.NewBank(db)
	e := &env{t: t, db: db, bank: bank, engine: NewEngine(rewardsID, adminID)}

	registry := storage.NewProgramStore(db, adminID)
	if err := registry.SetGlobal("owner", adminAcct.Bytes()); err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if err := registry.SetGlobal("reward_asset", ledger.EncodeUint64(rewardAsset)); err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	if err := registry.SetLocal(adminAcct.Bytes(), "role", ledger.EncodeUint64(uint64(admin.RoleAdmin))); err != nil {
		t.Fatalf("seed role: %v", err)
	}
	if err := registry.SetLocal(beneficiary.Bytes(), "role", ledger.EncodeUint64(uint64(admin.RoleUser))); err != nil {
		t.Fatalf("seed role: %v", err)
	}

	// Custody backing and the beneficiary's frozen holding.
	if err := bank.MintAsset(e.engine.Address(), rewardAsset, big.NewInt(100_000_000)); err != nil {
		t.Fatalf("fund custody: %v", err)
	}
	if err := bank.OptInAsset(beneficiary, rewardAsset); err != nil {
		t.Fatalf("opt in: %v", err)
	}
	if err := bank.SetFrozen(beneficiary, rewardAsset, true); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if err := bank.Mint(beneficiary, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("fund beneficiary: %v", err)
	}
	return e
}

func (e *env) exec(now uint64, legs ...ledger.Leg) error {
	e.t.Helper()
	group, err := ledger.NewGroup(legs...)
	if err != nil {
		e.t.Fatalf("NewGroup: %v", err)
	}
	idx := 0
	for i := 0; i < group.Len(); i++ {
		leg := group.Leg(i)
		if leg.Kind == ledger.LegPayment {
			if err := e.bank.Transfer(leg.Sender, leg.Receiver, leg.Amount); err != nil {
				return err
			}
			continue
		}
		idx = i
	}
	ctx := &ledger.Context{Now: now, Group: group, Index: idx, Bank: e.bank, DB: e.db}
	return e.engine.Execute(ctx)
}

func (e *env) increase(now, amount uint64) error {
	return e.exec(now, ledger.Leg{
		Kind: ledger.LegAppCall, Sender: adminAcct, Target: rewardsID,
		Args: [][]byte{[]byte(OpIncrease), beneficiary.Bytes(), ledger.EncodeUint64(amount)},
	})
}

func (e *env) claim(now, fee uint64) error {
	payment := ledger.Leg{
		Kind: ledger.LegPayment, Sender: beneficiary,
		Receiver: ledger.ProgramAddress(adminID), Amount: new(big.Int).SetUint64(fee),
	}
	call := ledger.Leg{
		Kind: ledger.LegAppCall, Sender: beneficiary, Target: rewardsID,
		Args: [][]byte{[]byte(OpClaim)},
	}
	return e.exec(now, payment, call)
}

func TestIncreaseIsAdminOnly(t *testing.T) {
	e := newEnv(t)
	err := e.exec(1_000, ledger.Leg{
		Kind: ledger.LegAppCall, Sender: beneficiary, Target: rewardsID,
		Args: [][]byte{[]byte(OpIncrease), beneficiary.Bytes(), ledger.EncodeUint64(100)},
	})
	if !errors.Is(err, errNotAdmin) {
		t.Fatalf("non-admin accrual: %v", err)
	}
}

func TestDailyCapWithinWindow(t *testing.T) {
	e := newEnv(t)
	if err := e.increase(100_000, 20_000_000); err != nil {
		t.Fatalf("first accrual: %v", err)
	}
	// 20M + 5M breaches the 24M cap inside the same day.
	if err := e.increase(100_100, 5_000_000); !errors.Is(err, errDailyCap) {
		t.Fatalf("cap ignored: %v", err)
	}
	// Up to the cap exactly is fine.
	if err := e.increase(100_200, 4_000_000); err != nil {
		t.Fatalf("cap-exact accrual: %v", err)
	}
	record, err := RecordOf(e.db, rewardsID, beneficiary)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if record.Amount != 24_000_000 || record.DailyAccrued != 24_000_000 {
		t.Fatalf("record totals: %+v", record)
	}
	if record.FeesOwed != 2*ClaimFee {
		t.Fatalf("fees owed: %d", record.FeesOwed)
	}
}

func TestWindowRollsAfterADay(t *testing.T) {
	e := newEnv(t)
	if err := e.increase(100_000, 24_000_000); err != nil {
		t.Fatalf("fill the day: %v", err)
	}
	if err := e.increase(100_100, 1); !errors.Is(err, errDailyCap) {
		t.Fatalf("same-day accrual: %v", err)
	}
	// One second past the window the cap resets.
	if err := e.increase(100_000+86_401, 24_000_000); err != nil {
		t.Fatalf("next-day accrual: %v", err)
	}
	record, _ := RecordOf(e.db, rewardsID, beneficiary)
	if record.Amount != 48_000_000 || record.DailyAccrued != 24_000_000 {
		t.Fatalf("record after roll: %+v", record)
	}
}

func TestDecreaseGuardsUnderflow(t *testing.T) {
	e := newEnv(t)
	if err := e.increase(1_000, 500); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	err := e.exec(1_100, ledger.Leg{
		Kind: ledger.LegAppCall, Sender: adminAcct, Target: rewardsID,
		Args: [][]byte{[]byte(OpDecrease), beneficiary.Bytes(), ledger.EncodeUint64(501)},
	})
	if !errors.Is(err, errUnderflow) {
		t.Fatalf("underflow allowed: %v", err)
	}
	err = e.exec(1_100, ledger.Leg{
		Kind: ledger.LegAppCall, Sender: adminAcct, Target: rewardsID,
		Args: [][]byte{[]byte(OpDecrease), beneficiary.Bytes(), ledger.EncodeUint64(200)},
	})
	if err != nil {
		t.Fatalf("decrease: %v", err)
	}
	record, _ := RecordOf(e.db, rewardsID, beneficiary)
	if record.Amount != 300 {
		t.Fatalf("amount after decrease: %d", record.Amount)
	}
	// One accrual and one decrease each add the flat fee; the rejected
	// decrease adds nothing.
	if record.FeesOwed != 2*ClaimFee {
		t.Fatalf("fees owed after decrease: %d", record.FeesOwed)
	}
}

func TestClaimDemandsExactFee(t *testing.T) {
	e := newEnv(t)
	if err := e.increase(1_000, 500); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if err := e.claim(1_100, ClaimFee-1); !errors.Is(err, errWrongFee) {
		t.Fatalf("short fee accepted: %v", err)
	}
	if err := e.claim(1_100, ClaimFee+1); !errors.Is(err, errWrongFee) {
		t.Fatalf("excess fee accepted: %v", err)
	}
}

func TestClaimDeliversAndRefreezes(t *testing.T) {
	e := newEnv(t)
	if err := e.increase(1_000, 500); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if err := e.claim(1_100, ClaimFee); err != nil {
		t.Fatalf("claim: %v", err)
	}
	held, _ := e.bank.AssetBalance(beneficiary, rewardAsset)
	if held.Int64() != 500 {
		t.Fatalf("claimed balance: %s", held)
	}
	frozen, _ := e.bank.Frozen(beneficiary, rewardAsset)
	if !frozen {
		t.Fatal("holding not refrozen after claim")
	}
	record, _ := RecordOf(e.db, rewardsID, beneficiary)
	if record.Amount != 0 || record.FeesOwed != 0 {
		t.Fatalf("record not zeroed: %+v", record)
	}
	// The second claim finds nothing accrued.
	if err := e.claim(1_200, 0); !errors.Is(err, errNothingAccrued) {
		t.Fatalf("double claim: %v", err)
	}
	// The admin registry collected the fee.
	fee, _ := e.bank.Balance(ledger.ProgramAddress(adminID))
	if fee.Int64() != ClaimFee {
		t.Fatalf("fee not collected: %s", fee)
	}
}

func TestEmergencyWithdrawSweepsCustody(t *testing.T) {
	e := newEnv(t)
	target := addr(9)
	if err := e.bank.OptInAsset(target, rewardAsset); err != nil {
		t.Fatalf("opt in: %v", err)
	}
	err := e.exec(1_000, ledger.Leg{
		Kind: ledger.LegAppCall, Sender: adminAcct, Target: rewardsID,
		Args:   [][]byte{[]byte(OpEmergencyWithdraw), target.Bytes(), ledger.EncodeUint64(1_000)},
		Assets: []uint64{rewardAsset},
	})
	if err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	held, _ := e.bank.AssetBalance(target, rewardAsset)
	if held.Int64() != 1_000 {
		t.Fatalf("swept balance: %s", held)
	}
}
