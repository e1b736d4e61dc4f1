package auction

import (
	"strconv"

	"niftmarket/core/types"
)

const (
	// EventTypeStarted is emitted when an auction opens.
	EventTypeStarted = "auction.started"
	// EventTypeBid is emitted when a bid is recorded.
	EventTypeBid = "auction.bid"
	// EventTypeRefunded is emitted when a displaced bid is returned.
	EventTypeRefunded = "auction.refunded"
	// EventTypeClosed is emitted on any of the three terminal branches.
	EventTypeClosed = "auction.closed"
)

// StartedEvent announces a new auction on a space.
func StartedEvent(spaceID uint64, seller string, start, end, startPrice uint64) *types.Event {
	return &types.Event{
		Type: EventTypeStarted,
		Attributes: map[string]string{
			"space":      strconv.FormatUint(spaceID, 10),
			"seller":     seller,
			"start":      strconv.FormatUint(start, 10),
			"end":        strconv.FormatUint(end, 10),
			"startPrice": strconv.FormatUint(startPrice, 10),
		},
	}
}

// BidEvent records an accepted bid.
func BidEvent(spaceID uint64, bidder string, amount uint64) *types.Event {
	return &types.Event{
		Type: EventTypeBid,
		Attributes: map[string]string{
			"space":  strconv.FormatUint(spaceID, 10),
			"bidder": bidder,
			"amount": strconv.FormatUint(amount, 10),
		},
	}
}

// RefundedEvent records the refund of a displaced bid.
func RefundedEvent(spaceID uint64, bidder string, amount uint64) *types.Event {
	return &types.Event{
		Type: EventTypeRefunded,
		Attributes: map[string]string{
			"space":  strconv.FormatUint(spaceID, 10),
			"bidder": bidder,
			"amount": strconv.FormatUint(amount, 10),
		},
	}
}

// ClosedEvent records the terminal branch taken and, for a won auction, the
// winner and settled amount.
func ClosedEvent(spaceID uint64, branch, party string, amount uint64) *types.Event {
	return &types.Event{
		Type: EventTypeClosed,
		Attributes: map[string]string{
			"space":  strconv.FormatUint(spaceID, 10),
			"branch": branch,
			"party":  party,
			"amount": strconv.FormatUint(amount, 10),
		},
	}
}
