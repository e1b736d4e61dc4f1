package listing

import (
	"errors"
	"math/big"
	"testing"

	"niftmarket/core/types"
	"niftmarket/ledger"
	"niftmarket/native/nft"
	"niftmarket/storage"
)

const (
	adminID   = uint64(100)
	listingID = uint64(210)
	spaceID   = uint64(500)

	nftAsset    = uint64(11)
	stableAsset = uint64(22)

	feePercent = 5
	royaltyPct = 10
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

var (
	creator = addr(5)
	seller  = addr(6)
	buyer   = addr(7)
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

func (e *env) submit(now uint64, legs ...ledger.Leg) error {
	e.t.Helper()
	group, err := ledger.NewGroup(legs...)
	if err != nil {
		return err
	}
	for i := 0; i < group.Len(); i++ {
		leg := group.Leg(i)
		switch leg.Kind {
		case ledger.LegPayment:
			if err := e.bank.Transfer(leg.Sender, leg.Receiver, leg.Amount); err != nil {
				return err
			}
		case ledger.LegAssetTransfer:
			if err := e.bank.TransferAsset(leg.Sender, leg.Receiver, leg.AssetID, leg.Amount); err != nil {
				return err
			}
		case ledger.LegAppCall:
			program, ok := e.programs[leg.Target]
			if !ok {
				return errors.New("env: unknown program")
			}
			ctx := &ledger.Context{Now: now, Group: group, Index: i, Bank: e.bank, DB: e.db, Invoke: e}
			if err := program.Execute(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := storage.NewMemDB()
	bank := ledger.NewBank(db)
	e := &env{t: t, db: db, bank: bank, engine: NewEngine(listingID)}
	e.programs = map[uint64]ledger.Program{
		listingID: e.engine,
		spaceID:   nft.NewSpace(spaceID),
	}

	if err := bank.RegisterAsset(nftAsset, ledger.AssetParams{Total: big.NewInt(1)}); err != nil {
		t.Fatalf("register nft: %v", err)
	}
	if err := bank.RegisterAsset(stableAsset, ledger.AssetParams{Total: big.NewInt(1_000_000), Decimals: 6}); err != nil {
		t.Fatalf("register stable: %v", err)
	}

	registry := storage.NewProgramStore(db, adminID)
	if err := registry.SetGlobal("owner", addr(1).Bytes()); err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if err := registry.SetGlobal("fee_percent", ledger.EncodeUint64(feePercent)); err != nil {
		t.Fatalf("seed fee: %v", err)
	}
	if err := registry.SetGlobal("module/listing", ledger.EncodeUint64(listingID)); err != nil {
		t.Fatalf("seed module: %v", err)
	}

	for _, a := range []types.Address{creator, seller, buyer} {
		if err := bank.Mint(a, big.NewInt(10_000_000)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	rent := ledger.Leg{
		Kind: ledger.LegPayment, Sender: creator,
		Receiver: ledger.ProgramAddress(spaceID), Amount: big.NewInt(ledger.RentSpaceDeploy),
	}
	deploy := ledger.Leg{
		Kind: ledger.LegAppCall, Sender: creator, Target: spaceID,
		Args: [][]byte{
			[]byte(nft.OpDeploy), ledger.EncodeUint64(adminID), ledger.EncodeUint64(nftAsset),
			ledger.EncodeUint64(royaltyPct), ledger.EncodeUint64(stableAsset),
		},
	}
	if err := e.submit(100, rent, deploy); err != nil {
		t.Fatalf("deploy space: %v", err)
	}

	spaceStore := storage.NewProgramStore(db, spaceID)
	encoded, _ := ledger.BytesValue(seller.Bytes()).Encode()
	if err := spaceStore.SetGlobal(nft.KeyOwner, encoded); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	if err := bank.MintAsset(seller, nftAsset, big.NewInt(1)); err != nil {
		t.Fatalf("mint nft: %v", err)
	}
	return e
}

func listLegs(price, option uint64) []ledger.Leg {
	escrow := ledger.Leg{
		Kind: ledger.LegAssetTransfer, Sender: seller,
		Receiver: ledger.ProgramAddress(spaceID), AssetID: nftAsset, Amount: big.NewInt(1),
	}
	call := ledger.Leg{
		Kind: ledger.LegAppCall, Sender: seller, Target: listingID,
		Args:     [][]byte{[]byte(OpStartSell), ledger.EncodeUint64(price), ledger.EncodeUint64(option)},
		Programs: []uint64{spaceID},
	}
	return []ledger.Leg{escrow, call}
}

func purchaseLegs(amount uint64) []ledger.Leg {
	escrow := ledger.Leg{
		Kind: ledger.LegPayment, Sender: buyer,
		Receiver: ledger.ProgramAddress(spaceID), Amount: new(big.Int).SetUint64(amount),
	}
	call := ledger.Leg{
		Kind: ledger.LegAppCall, Sender: buyer, Target: listingID,
		Args:     [][]byte{[]byte(OpPurchase)},
		Programs: []uint64{spaceID},
	}
	return []ledger.Leg{escrow, call}
}

func revertLeg(sender types.Address) ledger.Leg {
	return ledger.Leg{
		Kind: ledger.LegAppCall, Sender: sender, Target: listingID,
		Args:     [][]byte{[]byte(OpRevert)},
		Programs: []uint64{spaceID},
	}
}

func TestListValidations(t *testing.T) {
	e := newEnv(t)
	if err := e.submit(1_000, listLegs(0, nft.OptionNative)...); !errors.Is(err, errZeroPrice) {
		t.Fatalf("zero price accepted: %v", err)
	}
	if err := e.submit(1_000, listLegs(500, 9)...); !errors.Is(err, errBadOption) {
		t.Fatalf("bad option accepted: %v", err)
	}
	if err := e.submit(1_000, listLegs(500, nft.OptionNative)...); err != nil {
		t.Fatalf("valid listing rejected: %v", err)
	}
	view := nft.NewView(e.db, spaceID)
	price, ok, _ := view.Uint(nft.KeyPrice)
	if !ok || price != 500 {
		t.Fatalf("price not stored: %d %v", price, ok)
	}
	snapshot, ok, _ := view.Uint(nft.KeyFeeSnapshot)
	if !ok || snapshot != feePercent {
		t.Fatalf("fee snapshot: %d %v", snapshot, ok)
	}
}

func TestListRequiresOwner(t *testing.T) {
	e := newEnv(t)
	if err := e.bank.TransferAsset(seller, buyer, nftAsset, big.NewInt(1)); err != nil {
		t.Fatalf("move nft: %v", err)
	}
	legs := listLegs(500, nft.OptionNative)
	for i := range legs {
		legs[i].Sender = buyer
	}
	if err := e.submit(1_000, legs...); !errors.Is(err, errNotOwner) {
		t.Fatalf("non-owner listing accepted: %v", err)
	}
}

func TestPurchaseDemandsExactPrice(t *testing.T) {
	e := newEnv(t)
	if err := e.submit(1_000, listLegs(500, nft.OptionNative)...); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := e.submit(1_100, purchaseLegs(499)...); !errors.Is(err, errWrongPrice) {
		t.Fatalf("underpayment accepted: %v", err)
	}
	if err := e.submit(1_100, purchaseLegs(501)...); !errors.Is(err, errWrongPrice) {
		t.Fatalf("overpayment accepted: %v", err)
	}
}

func TestPurchaseSettlesSnapshotSplit(t *testing.T) {
	e := newEnv(t)
	if err := e.submit(1_000, listLegs(1_000, nft.OptionNative)...); err != nil {
		t.Fatalf("list: %v", err)
	}
	// A fee change after listing must not affect this settlement.
	registry := storage.NewProgramStore(e.db, adminID)
	if err := registry.SetGlobal("fee_percent", ledger.EncodeUint64(30)); err != nil {
		t.Fatalf("bump fee: %v", err)
	}

	sellerBefore, _ := e.bank.Balance(seller)
	creatorBefore, _ := e.bank.Balance(creator)

	if err := e.submit(1_100, purchaseLegs(1_000)...); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	adminBalance, _ := e.bank.Balance(ledger.ProgramAddress(adminID))
	if adminBalance.Int64() != 50 {
		t.Fatalf("platform fee used the live percent, not the snapshot: %s", adminBalance)
	}
	creatorAfter, _ := e.bank.Balance(creator)
	if new(big.Int).Sub(creatorAfter, creatorBefore).Int64() != 100 {
		t.Fatalf("royalty: %s", new(big.Int).Sub(creatorAfter, creatorBefore))
	}
	sellerAfter, _ := e.bank.Balance(seller)
	if new(big.Int).Sub(sellerAfter, sellerBefore).Int64() != 850 {
		t.Fatalf("seller cut: %s", new(big.Int).Sub(sellerAfter, sellerBefore))
	}

	held, _ := e.bank.AssetBalance(buyer, nftAsset)
	if held.Int64() != 1 {
		t.Fatal("NFT not delivered")
	}
	view := nft.NewView(e.db, spaceID)
	owner, err := view.Owner()
	if err != nil || owner != buyer {
		t.Fatalf("ownership not rewritten: %v", err)
	}
	if _, listed, _ := view.Uint(nft.KeyPrice); listed {
		t.Fatal("listing not cleared")
	}
	// Second purchase attempt must fail against the cleared listing.
	if err := e.submit(1_200, purchaseLegs(1_000)...); !errors.Is(err, errNotListed) {
		t.Fatalf("double purchase: %v", err)
	}
}

func TestRevertReturnsNFTAndDelists(t *testing.T) {
	e := newEnv(t)
	if err := e.submit(1_000, listLegs(500, nft.OptionNative)...); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := e.submit(1_100, revertLeg(buyer)); !errors.Is(err, errNotOwner) {
		t.Fatalf("stranger revert accepted: %v", err)
	}
	if err := e.submit(1_100, revertLeg(seller)); err != nil {
		t.Fatalf("revert: %v", err)
	}
	held, _ := e.bank.AssetBalance(seller, nftAsset)
	if held.Int64() != 1 {
		t.Fatal("NFT not returned")
	}
	if _, listed, _ := nft.NewView(e.db, spaceID).Uint(nft.KeyPrice); listed {
		t.Fatal("listing not cleared")
	}
	if err := e.submit(1_200, revertLeg(seller)); !errors.Is(err, errNotListed) {
		t.Fatalf("double revert: %v", err)
	}
}
