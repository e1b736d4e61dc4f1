package nft

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
	spaceID = uint64(500)

	nftAsset    = uint64(11)
	stableAsset = uint64(22)
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

type harness struct {
	t     *testing.T
	space *Space
	db    storage.Database
	bank  *ledger.Bank
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	bank := ledger.NewBank(db)
	if err := bank.RegisterAsset(nftAsset, ledger.AssetParams{Total: big.NewInt(1)}); err != nil {
		t.Fatalf("register nft: %v", err)
	}
	if err := bank.RegisterAsset(stableAsset, ledger.AssetParams{Total: big.NewInt(1_000_000), Decimals: 6}); err != nil {
		t.Fatalf("register stable: %v", err)
	}
	h := &harness{t: t, space: NewSpace(spaceID), db: db, bank: bank}
	h.seedRegistry()
	return h
}

// seedRegistry writes a minimal admin registry with an "auction" module entry
// so the gated operations have something to check against.
func (h *harness) seedRegistry() {
	h.t.Helper()
	store := storage.NewProgramStore(h.db, adminID)
	if err := store.SetGlobal("owner", addr(1).Bytes()); err != nil {
		h.t.Fatalf("seed owner: %v", err)
	}
	if err := store.SetGlobal("module/auction", ledger.EncodeUint64(200)); err != nil {
		h.t.Fatalf("seed module: %v", err)
	}
}

func (h *harness) exec(caller uint64, legs ...ledger.Leg) error {
	h.t.Helper()
	group, err := ledger.NewGroup(legs...)
	if err != nil {
		h.t.Fatalf("NewGroup: %v", err)
	}
	idx := 0
	for i := 0; i < group.Len(); i++ {
		if group.Leg(i).Kind == ledger.LegAppCall {
			idx = i
			break
		}
	}
	ctx := &ledger.Context{Now: 1_000, Group: group, Index: idx, Caller: caller, Bank: h.bank, DB: h.db}
	return h.space.Execute(ctx)
}

func (h *harness) deploy(creator types.Address, royalty uint64) error {
	h.t.Helper()
	rent := ledger.Leg{
		Kind: ledger.LegPayment, Sender: creator,
		Receiver: h.space.Address(),
		Amount:   big.NewInt(ledger.RentSpaceDeploy),
	}
	call := ledger.Leg{
		Kind: ledger.LegAppCall, Sender: creator, Target: spaceID,
		Args: [][]byte{
			[]byte(OpDeploy), ledger.EncodeUint64(adminID), ledger.EncodeUint64(nftAsset),
			ledger.EncodeUint64(royalty), ledger.EncodeUint64(stableAsset),
		},
	}
	return h.exec(0, rent, call)
}

func TestDeployRecordsIdentity(t *testing.T) {
	h := newHarness(t)
	creator := addr(5)
	if err := h.deploy(creator, 10); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	view := NewView(h.db, spaceID)
	owner, err := view.Owner()
	if err != nil || owner != creator {
		t.Fatalf("owner: %s, %v", owner.Hex(), err)
	}
	got, err := view.Creator()
	if err != nil || got != creator {
		t.Fatalf("creator: %s, %v", got.Hex(), err)
	}
	royalty, err := view.Royalty()
	if err != nil || royalty != 10 {
		t.Fatalf("royalty: %d, %v", royalty, err)
	}
	if err := h.deploy(creator, 10); !errors.Is(err, errAlreadyDeployed) {
		t.Fatalf("redeploy: %v", err)
	}
}

func TestDeployValidatesRoyaltyRange(t *testing.T) {
	h := newHarness(t)
	for _, royalty := range []uint64{0, 51, 100} {
		if err := h.deploy(addr(5), royalty); !errors.Is(err, errBadRoyalty) {
			t.Fatalf("royalty %d accepted: %v", royalty, err)
		}
	}
	if err := h.deploy(addr(5), 1); err != nil {
		t.Fatalf("royalty 1 rejected: %v", err)
	}
}

func TestDeployRejectsDivisibleAsset(t *testing.T) {
	h := newHarness(t)
	creator := addr(5)
	rent := ledger.Leg{
		Kind: ledger.LegPayment, Sender: creator,
		Receiver: h.space.Address(), Amount: big.NewInt(ledger.RentSpaceDeploy),
	}
	call := ledger.Leg{
		Kind: ledger.LegAppCall, Sender: creator, Target: spaceID,
		Args: [][]byte{
			[]byte(OpDeploy), ledger.EncodeUint64(adminID), ledger.EncodeUint64(stableAsset),
			ledger.EncodeUint64(10), ledger.EncodeUint64(stableAsset),
		},
	}
	if err := h.exec(0, rent, call); !errors.Is(err, errNotSingleUnit) {
		t.Fatalf("divisible asset accepted: %v", err)
	}
}

func TestGatedSetterDemandsModuleIdentity(t *testing.T) {
	h := newHarness(t)
	if err := h.deploy(addr(5), 10); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	leg, err := SetGlobalLeg(spaceID, ledger.ProgramAddress(200), "auction", KeyCurrentBid, ledger.UintValue(500))
	if err != nil {
		t.Fatalf("SetGlobalLeg: %v", err)
	}
	if err := h.exec(0, leg); !errors.Is(err, errCallerNotModule) {
		t.Fatalf("external setter: %v", err)
	}
	if err := h.exec(999, leg); !errors.Is(err, errCallerNotModule) {
		t.Fatalf("imposter setter: %v", err)
	}
	if err := h.exec(200, leg); err != nil {
		t.Fatalf("module setter: %v", err)
	}
	bid, ok, err := NewView(h.db, spaceID).Uint(KeyCurrentBid)
	if err != nil || !ok || bid != 500 {
		t.Fatalf("current bid: %d %v %v", bid, ok, err)
	}
}

func TestGatedDeleteClearsKey(t *testing.T) {
	h := newHarness(t)
	if err := h.deploy(addr(5), 10); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	set, _ := SetGlobalLeg(spaceID, ledger.ProgramAddress(200), "auction", KeyStartPrice, ledger.UintValue(100))
	if err := h.exec(200, set); err != nil {
		t.Fatalf("set: %v", err)
	}
	del := DelGlobalLeg(spaceID, ledger.ProgramAddress(200), "auction", KeyStartPrice)
	if err := h.exec(200, del); err != nil {
		t.Fatalf("del: %v", err)
	}
	_, ok, err := NewView(h.db, spaceID).Uint(KeyStartPrice)
	if err != nil || ok {
		t.Fatalf("key survived delete: %v %v", ok, err)
	}
}

func TestGatedPayMovesCustodyFunds(t *testing.T) {
	h := newHarness(t)
	if err := h.deploy(addr(5), 10); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := h.bank.Mint(h.space.Address(), big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	seller := addr(6)
	leg := PayNativeLeg(spaceID, ledger.ProgramAddress(200), "auction", seller, 850)
	if err := h.exec(200, leg); err != nil {
		t.Fatalf("pay: %v", err)
	}
	balance, _ := h.bank.Balance(seller)
	if balance.Int64() != 850 {
		t.Fatalf("seller balance: %s", balance)
	}
}

func TestAdminModuleGateUsesRegistryEntry(t *testing.T) {
	h := newHarness(t)
	if err := h.deploy(addr(5), 10); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	// An unregistered module name fails regardless of caller.
	leg, _ := SetGlobalLeg(spaceID, ledger.ProgramAddress(200), "listing", KeyPrice, ledger.UintValue(1))
	if err := h.exec(200, leg); !errors.Is(err, admin.ErrModuleNotRegistered) {
		t.Fatalf("unregistered module name: %v", err)
	}
}
