// Package jmt implements the Jellyfish Merkle Tree of §4.1: a sparse radix
// tree indexed by bits of the SHA-256 hash of user keys, versioned so
// historical reads remain servable until pruned.
package jmt

import (
	"grugchain/core/gtypes"
)

// LeafPrefix and InternalPrefix disambiguate leaf and internal node hashes
// so one can never be mistaken for the other (§4.1).
var (
	LeafPrefix     = []byte{0}
	InternalPrefix = []byte{1}
)

// Child references a node one level down from its parent: the version at
// which it was last written, and its hash. A nil *Child means "no node on
// this side."
type Child struct {
	Version uint64
	Hash    gtypes.Hash
}

// Node is the sum type stored at every (version, BitPath) location: either
// a LeafNode or an InternalNode.
type Node interface {
	isNode()
	Hash() gtypes.Hash
}

// LeafNode holds a single key/value pair, each already hashed — the tree
// never sees plaintext keys or values, only their digests.
type LeafNode struct {
	KeyHash   gtypes.Hash
	ValueHash gtypes.Hash
}

func (*LeafNode) isNode() {}

func (n *LeafNode) Hash() gtypes.Hash {
	return HashLeaf(n.KeyHash, n.ValueHash)
}

// InternalNode branches on one bit of the key hash. A nil child means that
// side is empty. An internal node with both sides nil never persists; one
// with a single non-nil side persists only when that child is itself an
// internal node (a chain down to where two key hashes diverge), since a
// lone leaf is moved up to its shortest unique prefix.
type InternalNode struct {
	Left  *Child
	Right *Child
}

func (*InternalNode) isNode() {}

func (n *InternalNode) Hash() gtypes.Hash {
	return HashInternal(n.Left, n.Right)
}

// HashLeaf computes hash_leaf = SHA256(LEAF_PREFIX || key_hash || value_hash).
func HashLeaf(keyHash, valueHash gtypes.Hash) gtypes.Hash {
	buf := make([]byte, 0, len(LeafPrefix)+gtypes.HashLength*2)
	buf = append(buf, LeafPrefix...)
	buf = append(buf, keyHash[:]...)
	buf = append(buf, valueHash[:]...)
	return gtypes.HashBytes(buf)
}

// HashInternal computes hash_internal = SHA256(INTERNAL_PREFIX || left || right),
// where a missing child hashes to the fixed zero hash.
func HashInternal(left, right *Child) gtypes.Hash {
	buf := make([]byte, 0, len(InternalPrefix)+gtypes.HashLength*2)
	buf = append(buf, InternalPrefix...)
	buf = append(buf, childHash(left)[:]...)
	buf = append(buf, childHash(right)[:]...)
	return gtypes.HashBytes(buf)
}

func childHash(c *Child) gtypes.Hash {
	if c == nil {
		return gtypes.ZeroHash
	}
	return c.Hash
}
