package subscription

import (
	"strconv"

	"niftmarket/core/types"
)

const (
	// EventTypeBilled is emitted on a successful subscribe or renew.
	EventTypeBilled = "subscription.billed"
	// EventTypeCancelled is emitted when a subscription is downgraded.
	EventTypeCancelled = "subscription.cancelled"
	// EventTypeHoldingFrozen is emitted on an admin freeze toggle.
	EventTypeHoldingFrozen = "subscription.holding_frozen"
)

// BilledEvent records a settled billing group.
func BilledEvent(subscriber, mode string, amount, expiresAt uint64, renewal bool) *types.Event {
	return &types.Event{
		Type: EventTypeBilled,
		Attributes: map[string]string{
			"subscriber": subscriber,
			"mode":       mode,
			"amount":     strconv.FormatUint(amount, 10),
			"expiresAt":  strconv.FormatUint(expiresAt, 10),
			"renewal":    strconv.FormatBool(renewal),
		},
	}
}

// CancelledEvent records a downgrade and any pro-rata refund paid out.
func CancelledEvent(subscriber string, refunded uint64) *types.Event {
	return &types.Event{
		Type: EventTypeCancelled,
		Attributes: map[string]string{
			"subscriber": subscriber,
			"refunded":   strconv.FormatUint(refunded, 10),
		},
	}
}

// HoldingFrozenEvent records an admin freeze or unfreeze of a holding.
func HoldingFrozenEvent(holder string, assetID uint64, frozen bool) *types.Event {
	return &types.Event{
		Type: EventTypeHoldingFrozen,
		Attributes: map[string]string{
			"holder": holder,
			"asset":  strconv.FormatUint(assetID, 10),
			"frozen": strconv.FormatBool(frozen),
		},
	}
}
