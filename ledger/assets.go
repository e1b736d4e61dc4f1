package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"niftmarket/storage"
)

// ErrUnknownAsset is returned for an asset identity with no registered params.
var ErrUnknownAsset = errors.New("ledger: unknown asset")

// AssetParams is the immutable metadata of a registered asset. An NFT is an
// asset with a total supply of one and zero decimals.
type AssetParams struct {
	Total    *big.Int
	Decimals uint8
}

// IsNFT reports whether the params describe a single-unit indivisible asset.
func (p AssetParams) IsNFT() bool {
	return p.Total != nil && p.Total.Cmp(big.NewInt(1)) == 0 && p.Decimals == 0
}

func assetKey(assetID uint64) []byte {
	return append([]byte("asset/"), EncodeUint64(assetID)...)
}

// RegisterAsset records the params for an asset identity. Params are written
// once at genesis or asset creation and never change.
func (b *Bank) RegisterAsset(assetID uint64, params AssetParams) error {
	if params.Total == nil || params.Total.Sign() <= 0 {
		return fmt.Errorf("ledger: asset %d needs a positive total supply", assetID)
	}
	encoded, err := rlp.EncodeToBytes(&params)
	if err != nil {
		return fmt.Errorf("ledger: encode asset %d: %w", assetID, err)
	}
	return b.db.Put(assetKey(assetID), encoded)
}

// AssetParams loads the params for an asset identity.
func (b *Bank) AssetParams(assetID uint64) (AssetParams, error) {
	raw, err := b.db.Get(assetKey(assetID))
	if errors.Is(err, storage.ErrNotFound) {
		return AssetParams{}, fmt.Errorf("%w: %d", ErrUnknownAsset, assetID)
	}
	if err != nil {
		return AssetParams{}, err
	}
	var params AssetParams
	if err := rlp.DecodeBytes(raw, &params); err != nil {
		return AssetParams{}, fmt.Errorf("ledger: decode asset %d: %w", assetID, err)
	}
	return params, nil
}
