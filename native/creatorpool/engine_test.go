package creatorpool

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
	adminID = uint64(100)
	poolID  = uint64(300)
	subID   = uint64(400)
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

var (
	adminAcct = addr(1)
	creator1  = addr(2)
	creator2  = addr(3)
	stranger  = addr(4)
)

type env struct {
	t        *testing.T
	db       storage.Database
	bank     *ledger.Bank
	engine   *Engine
	programs map[uint64]ledger.Program
}

func (e *env) InvokeCall(parent *ledger.Context, callerID uint64, leg ledger.Leg) error {
	group, err := ledger.NewGroup(leg)
	if err != nil {
		return err
	}
	program, ok := e.programs[leg.Target]
	if !ok {
		return errors.New("env: unknown program")
	}
	ctx := &ledger.Context{
		Now: parent.Now, Group: group, Index: 0, Caller: callerID,
		Bank: parent.Bank, DB: parent.DB, Invoke: e,
	}
	return program.Execute(ctx)
}

func (e *env) exec(caller uint64, leg ledger.Leg) error {
	e.t.Helper()
	group, err := ledger.NewGroup(leg)
	if err != nil {
		e.t.Fatalf("NewGroup: %v", err)
	}
	ctx := &ledger.Context{Now: 1_000, Group: group, Index: 0, Caller: caller, Bank: e.bank, DB: e.db, Invoke: e}
	program, ok := e.programs[leg.Target]
	if !ok {
		return errors.New("env: unknown program")
	}
	return program.Execute(ctx)
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := storage.NewMemDB()
	e := &env{t: t, db: db, bank: ledger.NewBank(db), engine: NewEngine(poolID, adminID)}
	e.programs = map[uint64]ledger.Program{
		poolID:  e.engine,
		adminID: admin.New(adminID),
	}

	registry := storage.NewProgramStore(db, adminID)
	seed := func(key string, value []byte) {
		if err := registry.SetGlobal(key, value); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	seed("owner", adminAcct.Bytes())
	seed("verified_creators", ledger.EncodeUint64(2))
	seed("module/subscription", ledger.EncodeUint64(subID))
	seed("module/creatorpool", ledger.EncodeUint64(poolID))

	local := func(a types.Address, key string, value uint64) {
		if err := registry.SetLocal(a.Bytes(), key, ledger.EncodeUint64(value)); err != nil {
			t.Fatalf("seed local: %v", err)
		}
	}
	local(adminAcct, "role", uint64(admin.RoleAdmin))
	local(adminAcct, "status", uint64(admin.StatusNotVerified))
	for _, c := range []types.Address{creator1, creator2} {
		local(c, "role", uint64(admin.RoleUser))
		local(c, "status", uint64(admin.StatusVerified))
	}
	local(stranger, "role", uint64(admin.RoleUser))
	local(stranger, "status", uint64(admin.StatusNotVerified))
	return e
}

func soloCall(sender types.Address, tag string) ledger.Leg {
	return ledger.Leg{Kind: ledger.LegAppCall, Sender: sender, Target: poolID, Args: [][]byte{[]byte(tag)}}
}

func (e *env) fund(amount uint64) {
	e.t.Helper()
	if err := e.bank.Mint(e.engine.Address(), new(big.Int).SetUint64(amount)); err != nil {
		e.t.Fatalf("fund pool: %v", err)
	}
	if err := e.exec(subID, IncreaseNativeLeg(poolID, ledger.ProgramAddress(subID), amount)); err != nil {
		e.t.Fatalf("increase: %v", err)
	}
}

func TestIncreaseOnlyFromSubscriptionModule(t *testing.T) {
	e := newEnv(t)
	leg := IncreaseNativeLeg(poolID, ledger.ProgramAddress(subID), 100)
	if err := e.exec(0, leg); !errors.Is(err, errCallerNotFunder) {
		t.Fatalf("external increase: %v", err)
	}
	if err := e.exec(999, leg); !errors.Is(err, errCallerNotFunder) {
		t.Fatalf("imposter increase: %v", err)
	}
	if err := e.exec(subID, leg); err != nil {
		t.Fatalf("funder increase: %v", err)
	}
}

func TestCalculateGuards(t *testing.T) {
	e := newEnv(t)
	e.fund(1_000)
	if err := e.exec(0, soloCall(stranger, OpCalculateNative)); !errors.Is(err, errNotAdmin) {
		t.Fatalf("non-admin calculate: %v", err)
	}

	// Division by zero must be rejected, not trapped.
	registry := storage.NewProgramStore(e.db, adminID)
	if err := registry.SetGlobal("verified_creators", ledger.EncodeUint64(0)); err != nil {
		t.Fatalf("zero creators: %v", err)
	}
	if err := e.exec(0, soloCall(adminAcct, OpCalculateNative)); !errors.Is(err, errNoVerified) {
		t.Fatalf("zero-creator calculate: %v", err)
	}
}

func TestCalculateFixesFloorShare(t *testing.T) {
	e := newEnv(t)
	e.fund(1_001)
	if err := e.exec(0, soloCall(adminAcct, OpCalculateNative)); err != nil {
		t.Fatalf("calculate: %v", err)
	}
	store := storage.NewProgramStore(e.db, poolID)
	raw, err := store.Global("share_native")
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	share, _ := ledger.Uint64Arg(raw)
	if share != 500 {
		t.Fatalf("share = %d, want floor(1001/2)", share)
	}
}

func TestWithdrawOncePerEpoch(t *testing.T) {
	e := newEnv(t)
	e.fund(1_000)
	if err := e.exec(0, soloCall(adminAcct, OpCalculateNative)); err != nil {
		t.Fatalf("calculate: %v", err)
	}

	if err := e.exec(0, soloCall(stranger, OpWithdrawNative)); !errors.Is(err, errNotVerified) {
		t.Fatalf("unverified withdraw: %v", err)
	}
	if err := e.exec(0, soloCall(creator1, OpWithdrawNative)); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	balance, _ := e.bank.Balance(creator1)
	if balance.Int64() != 500 {
		t.Fatalf("claimed %s, want 500", balance)
	}
	// The second attempt against the same epoch must fail.
	if err := e.exec(0, soloCall(creator1, OpWithdrawNative)); !errors.Is(err, errAlreadyClaimed) {
		t.Fatalf("double claim: %v", err)
	}
	// The other creator still claims their own share.
	if err := e.exec(0, soloCall(creator2, OpWithdrawNative)); err != nil {
		t.Fatalf("second creator claim: %v", err)
	}
}

func TestWithdrawBeforeAnyRound(t *testing.T) {
	e := newEnv(t)
	e.fund(1_000)
	if err := e.exec(0, soloCall(creator1, OpWithdrawNative)); !errors.Is(err, errNothingToClaim) {
		t.Fatalf("claim without round: %v", err)
	}
}

func TestNewRoundReopensClaims(t *testing.T) {
	e := newEnv(t)
	e.fund(1_000)
	if err := e.exec(0, soloCall(adminAcct, OpCalculateNative)); err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if err := e.exec(0, soloCall(creator1, OpWithdrawNative)); err != nil {
		t.Fatalf("claim round 1: %v", err)
	}

	e.fund(2_000)
	if err := e.exec(0, soloCall(adminAcct, OpCalculateNative)); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if err := e.exec(0, soloCall(creator1, OpWithdrawNative)); err != nil {
		t.Fatalf("claim round 2: %v", err)
	}
	balance, _ := e.bank.Balance(creator1)
	// 500 from round one, floor((500+2000)/2)=1250 from round two.
	if balance.Int64() != 1_750 {
		t.Fatalf("total claimed %s", balance)
	}
}
