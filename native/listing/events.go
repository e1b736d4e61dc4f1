package listing

import (
	"strconv"

	"niftmarket/core/types"
)

const (
	// EventTypeListed is emitted when an NFT goes on sale.
	EventTypeListed = "listing.listed"
	// EventTypeReverted is emitted when the owner withdraws a listing.
	EventTypeReverted = "listing.reverted"
	// EventTypePurchased is emitted on settlement.
	EventTypePurchased = "listing.purchased"
)

// ListedEvent announces a fixed-price listing.
func ListedEvent(spaceID uint64, seller string, price, option uint64) *types.Event {
	return &types.Event{
		Type: EventTypeListed,
		Attributes: map[string]string{
			"space":  strconv.FormatUint(spaceID, 10),
			"seller": seller,
			"price":  strconv.FormatUint(price, 10),
			"option": strconv.FormatUint(option, 10),
		},
	}
}

// RevertedEvent announces a withdrawn listing.
func RevertedEvent(spaceID uint64, owner string) *types.Event {
	return &types.Event{
		Type: EventTypeReverted,
		Attributes: map[string]string{
			"space": strconv.FormatUint(spaceID, 10),
			"owner": owner,
		},
	}
}

// PurchasedEvent announces a settled sale.
func PurchasedEvent(spaceID uint64, buyer string, price uint64) *types.Event {
	return &types.Event{
		Type: EventTypePurchased,
		Attributes: map[string]string{
			"space": strconv.FormatUint(spaceID, 10),
			"buyer": buyer,
			"price": strconv.FormatUint(price, 10),
		},
	}
}
