package rewards

import (
	"strconv"

	"niftmarket/core/types"
)

const (
	// EventTypeAccrued is emitted when rewards accrue for a beneficiary.
	EventTypeAccrued = "rewards.accrued"
	// EventTypeDecreased is emitted when an admin reduces an accrual.
	EventTypeDecreased = "rewards.decreased"
	// EventTypeClaimed is emitted when a beneficiary settles their accrual.
	EventTypeClaimed = "rewards.claimed"
	// EventTypeEmergencyWithdrawn is emitted on an admin custody sweep.
	EventTypeEmergencyWithdrawn = "rewards.emergency_withdrawn"
)

// AccruedEvent records an accrual and the running totals.
func AccruedEvent(beneficiary string, amount, total, feesOwed uint64) *types.Event {
	return &types.Event{
		Type: EventTypeAccrued,
		Attributes: map[string]string{
			"beneficiary": beneficiary,
			"amount":      strconv.FormatUint(amount, 10),
			"total":       strconv.FormatUint(total, 10),
			"feesOwed":    strconv.FormatUint(feesOwed, 10),
		},
	}
}

// DecreasedEvent records an accrual reduction.
func DecreasedEvent(beneficiary string, amount, total uint64) *types.Event {
	return &types.Event{
		Type: EventTypeDecreased,
		Attributes: map[string]string{
			"beneficiary": beneficiary,
			"amount":      strconv.FormatUint(amount, 10),
			"total":       strconv.FormatUint(total, 10),
		},
	}
}

// ClaimedEvent records a settled claim.
func ClaimedEvent(beneficiary string, amount uint64) *types.Event {
	return &types.Event{
		Type: EventTypeClaimed,
		Attributes: map[string]string{
			"beneficiary": beneficiary,
			"amount":      strconv.FormatUint(amount, 10),
		},
	}
}

// EmergencyWithdrawnEvent records an admin sweep out of custody.
func EmergencyWithdrawnEvent(beneficiary string, assetID, amount uint64) *types.Event {
	return &types.Event{
		Type: EventTypeEmergencyWithdrawn,
		Attributes: map[string]string{
			"beneficiary": beneficiary,
			"asset":       strconv.FormatUint(assetID, 10),
			"amount":      strconv.FormatUint(amount, 10),
		},
	}
}
