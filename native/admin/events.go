package admin

import (
	"strconv"

	"niftmarket/core/types"
)

const (
	// EventTypeDeployed is emitted once when the registry initialises.
	EventTypeDeployed = "admin.deployed"
	// EventTypeOptedIn is emitted when an account opens local state.
	EventTypeOptedIn = "admin.opted_in"
	// EventTypeOwnershipChanged is emitted on ownership transfer.
	EventTypeOwnershipChanged = "admin.ownership_changed"
	// EventTypeRoleSet is emitted when a role assignment lands.
	EventTypeRoleSet = "admin.role_set"
	// EventTypeStatusSet is emitted when verification status flips.
	EventTypeStatusSet = "admin.status_set"
	// EventTypeModuleAdded is emitted when a module registers.
	EventTypeModuleAdded = "admin.module_added"
	// EventTypeModuleRemoved is emitted when a module unregisters.
	EventTypeModuleRemoved = "admin.module_removed"
	// EventTypeWithdrawn is emitted on owner withdrawals.
	EventTypeWithdrawn = "admin.withdrawn"
	// EventTypeAssetsOptedIn is emitted when custody opts into the assets.
	EventTypeAssetsOptedIn = "admin.assets_opted_in"
)

// DeployedEvent announces the registry initialisation.
func DeployedEvent(owner, firstAdmin string, feePercent uint64) *types.Event {
	return &types.Event{
		Type: EventTypeDeployed,
		Attributes: map[string]string{
			"owner":      owner,
			"firstAdmin": firstAdmin,
			"feePercent": strconv.FormatUint(feePercent, 10),
		},
	}
}

// OptedInEvent announces a new local-state holder and its assigned role.
func OptedInEvent(account string, role uint64) *types.Event {
	return &types.Event{
		Type: EventTypeOptedIn,
		Attributes: map[string]string{
			"account": account,
			"role":    strconv.FormatUint(role, 10),
		},
	}
}

// OwnershipChangedEvent records an ownership handover.
func OwnershipChangedEvent(previous, next string) *types.Event {
	return &types.Event{
		Type: EventTypeOwnershipChanged,
		Attributes: map[string]string{
			"previous": previous,
			"next":     next,
		},
	}
}

// RoleSetEvent records a role assignment.
func RoleSetEvent(by, target string, role uint64) *types.Event {
	return &types.Event{
		Type: EventTypeRoleSet,
		Attributes: map[string]string{
			"by":     by,
			"target": target,
			"role":   strconv.FormatUint(role, 10),
		},
	}
}

// StatusSetEvent records a verification flip and the resulting counter.
func StatusSetEvent(by, target string, status, verifiedCreators uint64) *types.Event {
	return &types.Event{
		Type: EventTypeStatusSet,
		Attributes: map[string]string{
			"by":               by,
			"target":           target,
			"status":           strconv.FormatUint(status, 10),
			"verifiedCreators": strconv.FormatUint(verifiedCreators, 10),
		},
	}
}

// ModuleAddedEvent records a module registration.
func ModuleAddedEvent(name string, programID uint64) *types.Event {
	return &types.Event{
		Type: EventTypeModuleAdded,
		Attributes: map[string]string{
			"name":    name,
			"program": strconv.FormatUint(programID, 10),
		},
	}
}

// ModuleRemovedEvent records a module removal.
func ModuleRemovedEvent(name string) *types.Event {
	return &types.Event{
		Type:       EventTypeModuleRemoved,
		Attributes: map[string]string{"name": name},
	}
}

// WithdrawnEvent records an owner withdrawal from custody.
func WithdrawnEvent(beneficiary, currency string, amount uint64) *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawn,
		Attributes: map[string]string{
			"beneficiary": beneficiary,
			"currency":    currency,
			"amount":      strconv.FormatUint(amount, 10),
		},
	}
}

// AssetsOptedInEvent records the custody account opting into both assets.
func AssetsOptedInEvent(rewardAsset, stableAsset uint64) *types.Event {
	return &types.Event{
		Type: EventTypeAssetsOptedIn,
		Attributes: map[string]string{
			"rewardAsset": strconv.FormatUint(rewardAsset, 10),
			"stableAsset": strconv.FormatUint(stableAsset, 10),
		},
	}
}
