package nft

import (
	"errors"
	"fmt"

	"niftmarket/core/types"
	"niftmarket/ledger"
	"niftmarket/storage"
)

// Payment options accepted by listings and auctions.
const (
	// OptionNative settles in the ledger's native currency.
	OptionNative uint64 = 1
	// OptionStable settles in the registered stable asset.
	OptionStable uint64 = 2
)

// ValidOption reports whether v names a supported payment option.
func ValidOption(v uint64) bool {
	return v == OptionNative || v == OptionStable
}

// Global state keys of a space program. The identity keys are written at
// deployment; the trade keys are written by the auction and listing modules
// through the gated setter.
const (
	KeyAdmin       = "admin_id"
	KeyNFTAsset    = "nft_asset"
	KeyStableAsset = "stable_asset"
	KeyOwner       = "owner"
	KeyCreator     = "creator"
	KeyRoyalty     = "royalty"

	KeyPrice         = "price"
	KeyPaymentOption = "payment_option"
	KeyFeeSnapshot   = "fee_snapshot"

	KeyStartTime     = "auction_start"
	KeyEndTime       = "auction_end"
	KeyMinIncrement  = "min_increment"
	KeyCurrentBid    = "current_bid"
	KeyCurrentBidder = "current_bidder"
	KeyStartPrice    = "start_price"
)

// View reads a space program's global state. All values are stored with the
// tagged encoding, so readers never guess at a value's type.
type View struct {
	store *storage.ProgramStore
}

// NewView opens a read view over the space program at programID.
func NewView(db storage.Database, programID uint64) *View {
	return &View{store: storage.NewProgramStore(db, programID)}
}

// ProgramID returns the space program's identity.
func (v *View) ProgramID() uint64 { return v.store.ProgramID() }

// Uint reads a uint-tagged global key. The found flag is false when the key
// has never been written or was deleted.
func (v *View) Uint(key string) (uint64, bool, error) {
	raw, err := v.store.Global(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	value, err := ledger.DecodeValue(raw)
	if err != nil {
		return 0, false, err
	}
	if value.Kind != ledger.ValueUint {
		return 0, false, fmt.Errorf("nft: key %q holds bytes, expected uint", key)
	}
	return value.Uint, true, nil
}

// Bytes reads a bytes-tagged global key.
func (v *View) Bytes(key string) ([]byte, bool, error) {
	raw, err := v.store.Global(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := ledger.DecodeValue(raw)
	if err != nil {
		return nil, false, err
	}
	if value.Kind != ledger.ValueBytes {
		return nil, false, fmt.Errorf("nft: key %q holds uint, expected bytes", key)
	}
	return value.Bytes, true, nil
}

// Address reads a bytes-tagged global key holding a 20-byte address.
func (v *View) Address(key string) (types.Address, bool, error) {
	raw, ok, err := v.Bytes(key)
	if err != nil || !ok {
		return types.ZeroAddress, ok, err
	}
	addr, err := types.BytesToAddress(raw)
	if err != nil {
		return types.ZeroAddress, false, fmt.Errorf("nft: key %q: %w", key, err)
	}
	return addr, true, nil
}

func (v *View) requiredUint(key string) (uint64, error) {
	value, ok, err := v.Uint(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("nft: key %q not set", key)
	}
	return value, nil
}

func (v *View) requiredAddress(key string) (types.Address, error) {
	addr, ok, err := v.Address(key)
	if err != nil {
		return types.ZeroAddress, err
	}
	if !ok {
		return types.ZeroAddress, fmt.Errorf("nft: key %q not set", key)
	}
	return addr, nil
}

// AdminID returns the admin registry this space answers to.
func (v *View) AdminID() (uint64, error) { return v.requiredUint(KeyAdmin) }

// NFTAssetID returns the asset this space escrows.
func (v *View) NFTAssetID() (uint64, error) { return v.requiredUint(KeyNFTAsset) }

// StableAssetID returns the stable asset accepted for settlement.
func (v *View) StableAssetID() (uint64, error) { return v.requiredUint(KeyStableAsset) }

// Royalty returns the creator royalty percent (1-50).
func (v *View) Royalty() (uint32, error) {
	value, err := v.requiredUint(KeyRoyalty)
	if err != nil {
		return 0, err
	}
	return uint32(value), nil
}

// Owner returns the NFT's current owner.
func (v *View) Owner() (types.Address, error) { return v.requiredAddress(KeyOwner) }

// Creator returns the NFT's creator (royalty beneficiary).
func (v *View) Creator() (types.Address, error) { return v.requiredAddress(KeyCreator) }
