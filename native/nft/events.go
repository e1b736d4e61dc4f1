package nft

import (
	"strconv"

	"niftmarket/core/types"
)

// EventTypeSpaceDeployed is emitted when a space program initialises.
const EventTypeSpaceDeployed = "nft.space_deployed"

// SpaceDeployedEvent announces a new per-NFT space.
func SpaceDeployedEvent(programID uint64, creator string, nftAsset uint64, royalty uint64) *types.Event {
	return &types.Event{
		Type: EventTypeSpaceDeployed,
		Attributes: map[string]string{
			"program": strconv.FormatUint(programID, 10),
			"creator": creator,
			"asset":   strconv.FormatUint(nftAsset, 10),
			"royalty": strconv.FormatUint(royalty, 10),
		},
	}
}
