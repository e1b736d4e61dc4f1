package admin

import (
	"errors"
	"fmt"

	"niftmarket/core/types"
	"niftmarket/ledger"
	"niftmarket/storage"
)

// Role is an account's permission tier within the registry.
type Role uint8

const (
	// RoleNone marks an account that never opted in.
	RoleNone Role = 0
	// RoleUser is the default tier assigned at opt-in.
	RoleUser Role = 1
	// RoleAdmin can manage roles, verification, and the module registry.
	RoleAdmin Role = 2
)

// Status is an account's creator-verification state.
type Status uint8

const (
	// StatusNotVerified is the default verification state.
	StatusNotVerified Status = 1
	// StatusVerified marks an account counted toward pool distribution.
	StatusVerified Status = 2
)

// Global state keys.
const (
	keyOwner            = "owner"
	keyFirstAdmin       = "first_admin"
	keyFeePercent       = "fee_percent"
	keyRewardAsset      = "reward_asset"
	keyStableAsset      = "stable_asset"
	keyVerifiedCreators = "verified_creators"
	modulePrefix        = "module/"
)

// Local state keys.
const (
	keyRole   = "role"
	keyStatus = "status"
)

var (
	// ErrModuleNotRegistered is returned for an unknown module name.
	ErrModuleNotRegistered = errors.New("admin: module not registered")
	// ErrNotOptedIn is returned when an account has no local state.
	ErrNotOptedIn = errors.New("admin: account not opted in")
)

// View is the read side of the registry. Dependent programs hold one to read
// configuration, roles, statuses, and module identities directly; only writes
// go through the capability-checked operations.
type View struct {
	store *storage.ProgramStore
}

// NewView opens a read view over the registry's state at programID on db.
func NewView(db storage.Database, programID uint64) *View {
	return &View{store: storage.NewProgramStore(db, programID)}
}

// ProgramID returns the registry's program identity.
func (v *View) ProgramID() uint64 { return v.store.ProgramID() }

func (v *View) globalUint(key string) (uint64, error) {
	raw, err := v.store.Global(key)
	if err != nil {
		return 0, err
	}
	return ledger.Uint64Arg(raw)
}

func (v *View) globalAddress(key string) (types.Address, error) {
	raw, err := v.store.Global(key)
	if err != nil {
		return types.ZeroAddress, err
	}
	return types.BytesToAddress(raw)
}

// Owner returns the registry owner.
func (v *View) Owner() (types.Address, error) {
	return v.globalAddress(keyOwner)
}

// PlatformFeePercent returns the configured platform fee (0-100).
func (v *View) PlatformFeePercent() (uint32, error) {
	pct, err := v.globalUint(keyFeePercent)
	if err != nil {
		return 0, err
	}
	return uint32(pct), nil
}

// RewardAssetID returns the registered reward asset.
func (v *View) RewardAssetID() (uint64, error) {
	return v.globalUint(keyRewardAsset)
}

// StableAssetID returns the registered stable asset.
func (v *View) StableAssetID() (uint64, error) {
	return v.globalUint(keyStableAsset)
}

// VerifiedCreators returns the verified-creator counter.
func (v *View) VerifiedCreators() (uint64, error) {
	return v.globalUint(keyVerifiedCreators)
}

// ModuleID resolves a registered module name to its program identity.
func (v *View) ModuleID(name string) (uint64, error) {
	raw, err := v.store.Global(modulePrefix + name)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrModuleNotRegistered, name)
	}
	if err != nil {
		return 0, err
	}
	return ledger.Uint64Arg(raw)
}

// Role returns the account's role; RoleNone when not opted in.
func (v *View) Role(addr types.Address) (Role, error) {
	raw, err := v.store.Local(addr[:], keyRole)
	if errors.Is(err, storage.ErrNotFound) {
		return RoleNone, nil
	}
	if err != nil {
		return RoleNone, err
	}
	value, err := ledger.Uint64Arg(raw)
	if err != nil {
		return RoleNone, err
	}
	return Role(value), nil
}

// Status returns the account's verification status.
func (v *View) Status(addr types.Address) (Status, error) {
	raw, err := v.store.Local(addr[:], keyStatus)
	if errors.Is(err, storage.ErrNotFound) {
		return StatusNotVerified, fmt.Errorf("%w: %s", ErrNotOptedIn, addr.Hex())
	}
	if err != nil {
		return StatusNotVerified, err
	}
	value, err := ledger.Uint64Arg(raw)
	if err != nil {
		return StatusNotVerified, err
	}
	return Status(value), nil
}

// Local reads a module-written local value for addr.
func (v *View) Local(addr types.Address, key string) (ledger.Value, error) {
	raw, err := v.store.Local(addr[:], key)
	if err != nil {
		return ledger.Value{}, err
	}
	return ledger.DecodeValue(raw)
}

// LocalUint reads a module-written local uint for addr, defaulting to zero
// when the key has never been written.
func (v *View) LocalUint(addr types.Address, key string) (uint64, error) {
	value, err := v.Local(addr, key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if value.Kind != ledger.ValueUint {
		return 0, fmt.Errorf("admin: local key %q holds bytes, expected uint", key)
	}
	return value.Uint, nil
}
