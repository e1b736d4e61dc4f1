package listing

import (
	"errors"
	"fmt"
	"math/big"

	"niftmarket/core/events"
	"niftmarket/core/types"
	"niftmarket/ledger"
	"niftmarket/native/admin"
	"niftmarket/native/fees"
	"niftmarket/native/nft"
)

// ModuleName is the admin-registry entry this engine must be recorded under.
const ModuleName = "listing"

var (
	errNotOwner       = errors.New("listing: sender does not own the NFT")
	errWrongAsset     = errors.New("listing: escrow leg moves the wrong asset")
	errWrongEscrow    = errors.New("listing: escrow leg must fund the space")
	errZeroPrice      = errors.New("listing: price must be positive")
	errBadOption      = errors.New("listing: unsupported payment option")
	errAlreadyListed  = errors.New("listing: already listed")
	errAuctionActive  = errors.New("listing: an auction is active")
	errNotListed      = errors.New("listing: nothing listed")
	errWrongPrice     = errors.New("listing: payment must match the listed price exactly")
	errWrongCurrency  = errors.New("listing: payment currency does not match the option")
	errWrongPayTarget = errors.New("listing: payment must fund the space")
	errAmountTooLarge = errors.New("listing: amount exceeds the 64-bit range")
)

// Operation tags.
const (
	OpStartSell = "start_sell"
	OpRevert    = "revert_sell"
	OpPurchase  = "purchase"
)

// Engine is the fixed-price listing module. Like the auction engine it keeps
// no state of its own: the listed price, payment option, and the platform
// fee snapshot all live in the space program being sold, written through its
// gated setters.
type Engine struct {
	id      uint64
	emitter events.Emitter
}

// NewEngine constructs the listing module bound to its ledger identity.
func NewEngine(id uint64) *Engine {
	return &Engine{id: id, emitter: events.NoopEmitter{}}
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

// Execute implements ledger.Program.
func (e *Engine) Execute(ctx *ledger.Context) error {
	_, err := ledger.Dispatch(e.routes(), ctx)
	return err
}

func purchaseEscrow(g *ledger.Group, idx int) bool {
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
	return []ledger.Route{
		{Name: OpRevert, Check: ledger.SoloCall(OpRevert), Run: e.revert},
		{Name: OpStartSell, Check: ledger.All(
			ledger.GroupSize(2),
			ledger.TransferOfOne(0),
			ledger.CallAt(1),
			ledger.TagIs(OpStartSell),
			ledger.SameSender(0, 1),
			ledger.ArgCount(3),
		), Run: e.startSell},
		{Name: OpPurchase, Check: ledger.All(
			ledger.GroupSize(2),
			purchaseEscrow,
			ledger.CallAt(1),
			ledger.TagIs(OpPurchase),
			ledger.SameSender(0, 1),
		), Run: e.purchase},
	}
}

func (e *Engine) setSpace(ctx *ledger.Context, spaceID uint64, key string, value ledger.Value) error {
	leg, err := nft.SetGlobalLeg(spaceID, e.Address(), ModuleName, key, value)
	if err != nil {
		return err
	}
	return ctx.Invoke.InvokeCall(ctx, e.id, leg)
}

func (e *Engine) clearListing(ctx *ledger.Context, spaceID uint64) error {
	for _, key := range []string{nft.KeyPrice, nft.KeyPaymentOption, nft.KeyFeeSnapshot} {
		leg := nft.DelGlobalLeg(spaceID, e.Address(), ModuleName, key)
		if err := ctx.Invoke.InvokeCall(ctx, e.id, leg); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) payOut(ctx *ledger.Context, space *nft.View, option uint64, receiver types.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if !amount.IsUint64() {
		return fmt.Errorf("%w: %s", errAmountTooLarge, amount)
	}
	spaceID := space.ProgramID()
	var leg ledger.Leg
	if option == nft.OptionNative {
		leg = nft.PayNativeLeg(spaceID, e.Address(), ModuleName, receiver, amount.Uint64())
	} else {
		stable, err := space.StableAssetID()
		if err != nil {
			return err
		}
		leg = nft.PayAssetLeg(spaceID, e.Address(), ModuleName, receiver, stable, amount.Uint64())
	}
	return ctx.Invoke.InvokeCall(ctx, e.id, leg)
}

// startSell lists the escrowed NFT at a fixed price. The platform fee percent
// is snapshotted into the space so a later fee change cannot reprice an
// existing listing's settlement.
func (e *Engine) startSell(ctx *ledger.Context) error {
	spaceID, err := ctx.Program(0)
	if err != nil {
		return err
	}
	space := nft.NewView(ctx.DB, spaceID)

	escrow := ctx.Group.Leg(0)
	nftAsset, err := space.NFTAssetID()
	if err != nil {
		return err
	}
	if escrow.AssetID != nftAsset {
		return fmt.Errorf("%w: got %d, want %d", errWrongAsset, escrow.AssetID, nftAsset)
	}
	if escrow.Receiver != ledger.ProgramAddress(spaceID) {
		return errWrongEscrow
	}
	owner, err := space.Owner()
	if err != nil {
		return err
	}
	if ctx.Sender() != owner {
		return errNotOwner
	}
	if price, listed, err := space.Uint(nft.KeyPrice); err != nil {
		return err
	} else if listed && price > 0 {
		return errAlreadyListed
	}
	if _, auctionRunning, err := space.Uint(nft.KeyStartTime); err != nil {
		return err
	} else if auctionRunning {
		return errAuctionActive
	}

	price, err := ctx.UintArg(1)
	if err != nil {
		return err
	}
	option, err := ctx.UintArg(2)
	if err != nil {
		return err
	}
	if price == 0 {
		return errZeroPrice
	}
	if !nft.ValidOption(option) {
		return errBadOption
	}
	adminID, err := space.AdminID()
	if err != nil {
		return err
	}
	feePercent, err := admin.NewView(ctx.DB, adminID).PlatformFeePercent()
	if err != nil {
		return err
	}

	writes := []struct {
		key   string
		value ledger.Value
	}{
		{nft.KeyPrice, ledger.UintValue(price)},
		{nft.KeyPaymentOption, ledger.UintValue(option)},
		{nft.KeyFeeSnapshot, ledger.UintValue(uint64(feePercent))},
	}
	for _, w := range writes {
		if err := e.setSpace(ctx, spaceID, w.key, w.value); err != nil {
			return err
		}
	}
	e.emit(ListedEvent(spaceID, owner.Hex(), price, option))
	return nil
}

// revert returns the NFT to its owner and delists it. Owner-only.
func (e *Engine) revert(ctx *ledger.Context) error {
	spaceID, err := ctx.Program(0)
	if err != nil {
		return err
	}
	space := nft.NewView(ctx.DB, spaceID)

	owner, err := space.Owner()
	if err != nil {
		return err
	}
	if ctx.Sender() != owner {
		return errNotOwner
	}
	price, listed, err := space.Uint(nft.KeyPrice)
	if err != nil {
		return err
	}
	if !listed || price == 0 {
		return errNotListed
	}
	nftAsset, err := space.NFTAssetID()
	if err != nil {
		return err
	}
	back := nft.PayAssetLeg(spaceID, e.Address(), ModuleName, owner, nftAsset, 1)
	if err := ctx.Invoke.InvokeCall(ctx, e.id, back); err != nil {
		return err
	}
	if err := e.clearListing(ctx, spaceID); err != nil {
		return err
	}
	e.emit(RevertedEvent(spaceID, owner.Hex()))
	return nil
}

// purchase settles a listing: the escrow leg must match the stored price to
// the unit, the split uses the snapshotted fee percent, and ownership moves
// to the buyer.
func (e *Engine) purchase(ctx *ledger.Context) error {
	spaceID, err := ctx.Program(0)
	if err != nil {
		return err
	}
	space := nft.NewView(ctx.DB, spaceID)

	price, listed, err := space.Uint(nft.KeyPrice)
	if err != nil {
		return err
	}
	if !listed || price == 0 {
		return errNotListed
	}
	option, _, err := space.Uint(nft.KeyPaymentOption)
	if err != nil {
		return err
	}
	escrow := ctx.Group.Leg(0)
	if escrow.Receiver != ledger.ProgramAddress(spaceID) {
		return errWrongPayTarget
	}
	switch option {
	case nft.OptionNative:
		if escrow.Kind != ledger.LegPayment {
			return errWrongCurrency
		}
	case nft.OptionStable:
		stable, err := space.StableAssetID()
		if err != nil {
			return err
		}
		if escrow.Kind != ledger.LegAssetTransfer || escrow.AssetID != stable {
			return errWrongCurrency
		}
	default:
		return errBadOption
	}
	if escrow.Amount.Cmp(new(big.Int).SetUint64(price)) != 0 {
		return fmt.Errorf("%w: paid %s, listed %d", errWrongPrice, escrow.Amount, price)
	}

	owner, err := space.Owner()
	if err != nil {
		return err
	}
	creator, err := space.Creator()
	if err != nil {
		return err
	}
	royalty, err := space.Royalty()
	if err != nil {
		return err
	}
	adminID, err := space.AdminID()
	if err != nil {
		return err
	}
	feeSnapshot, found, err := space.Uint(nft.KeyFeeSnapshot)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("listing: fee snapshot missing")
	}
	nftAsset, err := space.NFTAssetID()
	if err != nil {
		return err
	}

	amount := new(big.Int).SetUint64(price)
	platformCut := fees.Split(amount, uint32(feeSnapshot))
	royaltyCut := fees.Split(amount, royalty)
	sellerCut, err := fees.Remainder(amount, platformCut, royaltyCut)
	if err != nil {
		return err
	}

	if err := e.payOut(ctx, space, option, ledger.ProgramAddress(adminID), platformCut); err != nil {
		return err
	}
	if err := e.payOut(ctx, space, option, creator, royaltyCut); err != nil {
		return err
	}
	if err := e.payOut(ctx, space, option, owner, sellerCut); err != nil {
		return err
	}

	buyer := ctx.Sender()
	deliver := nft.PayAssetLeg(spaceID, e.Address(), ModuleName, buyer, nftAsset, 1)
	if err := ctx.Invoke.InvokeCall(ctx, e.id, deliver); err != nil {
		return err
	}
	if err := e.setSpace(ctx, spaceID, nft.KeyOwner, ledger.BytesValue(buyer.Bytes())); err != nil {
		return err
	}
	if err := e.clearListing(ctx, spaceID); err != nil {
		return err
	}
	e.emit(PurchasedEvent(spaceID, buyer.Hex(), price))
	return nil
}
