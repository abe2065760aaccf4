package gtypes

// GenesisHash is the sentinel hash for the (height=0) genesis BlockInfo (§3).
var GenesisHash = Hash{}

// BlockInfo identifies a block (§3).
type BlockInfo struct {
	Height    uint64
	Timestamp Timestamp
	Hash      Hash
}

// GenesisBlockInfo returns the sentinel genesis BlockInfo.
func GenesisBlockInfo(ts Timestamp) BlockInfo {
	return BlockInfo{Height: 0, Timestamp: ts, Hash: GenesisHash}
}
