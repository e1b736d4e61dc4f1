package auction

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

// ModuleName is the admin-registry entry this engine must be recorded under
// for the gated space operations to accept its calls.
const ModuleName = "auction"

var (
	errNotOwner        = errors.New("auction: sender does not own the NFT")
	errWrongAsset      = errors.New("auction: escrow leg moves the wrong asset")
	errWrongEscrow     = errors.New("auction: escrow leg must fund the space")
	errAlreadyActive   = errors.New("auction: auction already active")
	errListingActive   = errors.New("auction: a fixed-price listing is active")
	errNotActive       = errors.New("auction: no active auction")
	errStartNotFuture  = errors.New("auction: start time must be in the future")
	errEndBeforeStart  = errors.New("auction: end time must follow start time")
	errBadOption       = errors.New("auction: unsupported payment option")
	errOutsideWindow   = errors.New("auction: bid outside the auction window")
	errBidTooLow       = errors.New("auction: bid below minimum")
	errWrongCurrency   = errors.New("auction: bid currency does not match the payment option")
	errStillRunning    = errors.New("auction: auction still running")
	errWrongBidTarget  = errors.New("auction: bid must fund the space")
	errNoCurrentBidder = errors.New("auction: current bidder record missing")
	errAmountTooLarge  = errors.New("auction: amount exceeds the 64-bit range")
)

// Operation tags.
const (
	OpStart = "start_auction"
	OpBid   = "bid"
	OpClose = "close_auction"
)

// Engine is the auction module: a single program driving the bidding state
// machine of any space program that lists it in its admin registry. It holds
// no auction state of its own; everything lives in the space it operates on,
// written through the space's gated setters so the capability check runs on
// every mutation.
type Engine struct {
	id      uint64
	emitter events.Emitter
}

// NewEngine constructs the auction module bound to its ledger identity.
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

// Address returns the module's custody address, the sender of its inner calls.
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

func adminFeePercent(ctx *ledger.Context, adminID uint64) (uint32, error) {
	return admin.NewView(ctx.DB, adminID).PlatformFeePercent()
}

func bidEscrow(g *ledger.Group, idx int) bool {
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
		{Name: OpClose, Check: ledger.SoloCall(OpClose), Run: e.close},
		{Name: OpStart, Check: ledger.All(
			ledger.GroupSize(2),
			ledger.TransferOfOne(0),
			ledger.CallAt(1),
			ledger.TagIs(OpStart),
			ledger.SameSender(0, 1),
			ledger.ArgCount(6),
		), Run: e.start},
		{Name: OpBid, Check: ledger.All(
			ledger.GroupSize(2),
			bidEscrow,
			ledger.CallAt(1),
			ledger.TagIs(OpBid),
			ledger.SameSender(0, 1),
		), Run: e.bid},
	}
}

func (e *Engine) setSpace(ctx *ledger.Context, spaceID uint64, key string, value ledger.Value) error {
	leg, err := nft.SetGlobalLeg(spaceID, e.Address(), ModuleName, key, value)
	if err != nil {
		return err
	}
	return ctx.Invoke.InvokeCall(ctx, e.id, leg)
}

func (e *Engine) clearAuction(ctx *ledger.Context, spaceID uint64) error {
	for _, key := range []string{
		nft.KeyStartTime, nft.KeyEndTime, nft.KeyMinIncrement,
		nft.KeyCurrentBid, nft.KeyCurrentBidder, nft.KeyStartPrice, nft.KeyPaymentOption,
	} {
		leg := nft.DelGlobalLeg(spaceID, e.Address(), ModuleName, key)
		if err := ctx.Invoke.InvokeCall(ctx, e.id, leg); err != nil {
			return err
		}
	}
	return nil
}

// payOut moves settlement funds out of the space's custody in the auction's
// payment currency.
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

// start opens an auction: the escrow leg moves the NFT into the space's
// custody and the call carries (start, end, minIncrement, option, startPrice).
func (e *Engine) start(ctx *ledger.Context) error {
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
	if _, active, err := space.Uint(nft.KeyStartTime); err != nil {
		return err
	} else if active {
		return errAlreadyActive
	}
	if price, listed, err := space.Uint(nft.KeyPrice); err != nil {
		return err
	} else if listed && price > 0 {
		return errListingActive
	}

	start, err := ctx.UintArg(1)
	if err != nil {
		return err
	}
	end, err := ctx.UintArg(2)
	if err != nil {
		return err
	}
	minIncrement, err := ctx.UintArg(3)
	if err != nil {
		return err
	}
	option, err := ctx.UintArg(4)
	if err != nil {
		return err
	}
	startPrice, err := ctx.UintArg(5)
	if err != nil {
		return err
	}
	if start <= ctx.Now {
		return errStartNotFuture
	}
	if end <= start {
		return errEndBeforeStart
	}
	if !nft.ValidOption(option) {
		return errBadOption
	}

	writes := []struct {
		key   string
		value ledger.Value
	}{
		{nft.KeyStartTime, ledger.UintValue(start)},
		{nft.KeyEndTime, ledger.UintValue(end)},
		{nft.KeyMinIncrement, ledger.UintValue(minIncrement)},
		{nft.KeyCurrentBid, ledger.UintValue(0)},
		{nft.KeyPaymentOption, ledger.UintValue(option)},
		{nft.KeyStartPrice, ledger.UintValue(startPrice)},
	}
	for _, w := range writes {
		if err := e.setSpace(ctx, spaceID, w.key, w.value); err != nil {
			return err
		}
	}
	e.emit(StartedEvent(spaceID, owner.Hex(), start, end, startPrice))
	return nil
}

// bid records a higher bid, refunding the displaced bidder first so the
// displaced funds and the new escrow settle within the same atomic group.
func (e *Engine) bid(ctx *ledger.Context) error {
	spaceID, err := ctx.Program(0)
	if err != nil {
		return err
	}
	space := nft.NewView(ctx.DB, spaceID)

	start, active, err := space.Uint(nft.KeyStartTime)
	if err != nil {
		return err
	}
	if !active {
		return errNotActive
	}
	end, _, err := space.Uint(nft.KeyEndTime)
	if err != nil {
		return err
	}
	if ctx.Now < start || ctx.Now >= end {
		return errOutsideWindow
	}

	option, _, err := space.Uint(nft.KeyPaymentOption)
	if err != nil {
		return err
	}
	escrow := ctx.Group.Leg(0)
	if escrow.Receiver != ledger.ProgramAddress(spaceID) {
		return errWrongBidTarget
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

	currentBid, _, err := space.Uint(nft.KeyCurrentBid)
	if err != nil {
		return err
	}
	minIncrement, _, err := space.Uint(nft.KeyMinIncrement)
	if err != nil {
		return err
	}
	startPrice, _, err := space.Uint(nft.KeyStartPrice)
	if err != nil {
		return err
	}
	// The escrowed funds are already in custody; anything the recorded bid
	// cannot represent would be stranded there at settlement.
	if !escrow.Amount.IsUint64() {
		return fmt.Errorf("%w: %s", errAmountTooLarge, escrow.Amount)
	}
	amount := escrow.Amount.Uint64()
	if amount < currentBid+minIncrement || amount < startPrice || amount == 0 {
		return fmt.Errorf("%w: %d against bid %d (+%d) and floor %d", errBidTooLow, amount, currentBid, minIncrement, startPrice)
	}

	if currentBid > 0 {
		prev, found, err := space.Address(nft.KeyCurrentBidder)
		if err != nil {
			return err
		}
		if !found {
			return errNoCurrentBidder
		}
		if err := e.payOut(ctx, space, option, prev, new(big.Int).SetUint64(currentBid)); err != nil {
			return err
		}
		e.emit(RefundedEvent(spaceID, prev.Hex(), currentBid))
	}

	bidder := ctx.Sender()
	if err := e.setSpace(ctx, spaceID, nft.KeyCurrentBid, ledger.UintValue(amount)); err != nil {
		return err
	}
	if err := e.setSpace(ctx, spaceID, nft.KeyCurrentBidder, ledger.BytesValue(bidder.Bytes())); err != nil {
		return err
	}
	e.emit(BidEvent(spaceID, bidder.Hex(), amount))
	return nil
}

// close resolves an auction through exactly one of three terminal branches:
// cancelled before start, expired with no bids, or settled with a winner.
// Anyone may call it; the time checks decide the branch.
func (e *Engine) close(ctx *ledger.Context) error {
	spaceID, err := ctx.Program(0)
	if err != nil {
		return err
	}
	space := nft.NewView(ctx.DB, spaceID)

	start, active, err := space.Uint(nft.KeyStartTime)
	if err != nil {
		return err
	}
	if !active {
		return errNotActive
	}
	end, _, err := space.Uint(nft.KeyEndTime)
	if err != nil {
		return err
	}
	currentBid, _, err := space.Uint(nft.KeyCurrentBid)
	if err != nil {
		return err
	}
	owner, err := space.Owner()
	if err != nil {
		return err
	}
	nftAsset, err := space.NFTAssetID()
	if err != nil {
		return err
	}

	returnNFT := func(to types.Address) error {
		leg := nft.PayAssetLeg(spaceID, e.Address(), ModuleName, to, nftAsset, 1)
		return ctx.Invoke.InvokeCall(ctx, e.id, leg)
	}

	switch {
	case ctx.Now < start:
		if err := returnNFT(owner); err != nil {
			return err
		}
		if err := e.clearAuction(ctx, spaceID); err != nil {
			return err
		}
		e.emit(ClosedEvent(spaceID, "before-start", owner.Hex(), 0))
		return nil

	case ctx.Now > end && currentBid == 0:
		if err := returnNFT(owner); err != nil {
			return err
		}
		if err := e.clearAuction(ctx, spaceID); err != nil {
			return err
		}
		e.emit(ClosedEvent(spaceID, "no-bids", owner.Hex(), 0))
		return nil

	case ctx.Now > end:
		winner, found, err := space.Address(nft.KeyCurrentBidder)
		if err != nil {
			return err
		}
		if !found {
			return errNoCurrentBidder
		}
		option, _, err := space.Uint(nft.KeyPaymentOption)
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
		feePercent, err := adminFeePercent(ctx, adminID)
		if err != nil {
			return err
		}

		bid := new(big.Int).SetUint64(currentBid)
		platformCut := fees.Split(bid, feePercent)
		royaltyCut := fees.Split(bid, royalty)
		sellerCut, err := fees.Remainder(bid, platformCut, royaltyCut)
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
		if err := returnNFT(winner); err != nil {
			return err
		}
		if err := e.setSpace(ctx, spaceID, nft.KeyOwner, ledger.BytesValue(winner.Bytes())); err != nil {
			return err
		}
		if err := e.clearAuction(ctx, spaceID); err != nil {
			return err
		}
		e.emit(ClosedEvent(spaceID, "won", winner.Hex(), currentBid))
		return nil

	default:
		return errStillRunning
	}
}
