package creatorpool

import (
	"strconv"

	"niftmarket/core/types"
)

const (
	// EventTypeIncreased is emitted when subscription billing feeds the pool.
	EventTypeIncreased = "creatorpool.increased"
	// EventTypeRoundOpened is emitted when an admin opens a claim round.
	EventTypeRoundOpened = "creatorpool.round_opened"
	// EventTypeClaimed is emitted when a creator claims a share.
	EventTypeClaimed = "creatorpool.claimed"
)

// IncreasedEvent records a pool contribution.
func IncreasedEvent(pool string, amount, balance uint64) *types.Event {
	return &types.Event{
		Type: EventTypeIncreased,
		Attributes: map[string]string{
			"pool":    pool,
			"amount":  strconv.FormatUint(amount, 10),
			"balance": strconv.FormatUint(balance, 10),
		},
	}
}

// RoundOpenedEvent records a new distribution round.
func RoundOpenedEvent(pool string, epoch, share, verified uint64) *types.Event {
	return &types.Event{
		Type: EventTypeRoundOpened,
		Attributes: map[string]string{
			"pool":     pool,
			"epoch":    strconv.FormatUint(epoch, 10),
			"share":    strconv.FormatUint(share, 10),
			"verified": strconv.FormatUint(verified, 10),
		},
	}
}

// ClaimedEvent records a creator claiming their share for a round.
func ClaimedEvent(pool, creator string, epoch, share uint64) *types.Event {
	return &types.Event{
		Type: EventTypeClaimed,
		Attributes: map[string]string{
			"pool":    pool,
			"creator": creator,
			"epoch":   strconv.FormatUint(epoch, 10),
			"share":   strconv.FormatUint(share, 10),
		},
	}
}
