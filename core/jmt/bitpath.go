package jmt

import (
	"encoding/binary"

	"grugchain/core/gtypes"
)

// BitPath is the sequence of left/right branch choices (0 or 1) taken from
// the tree's root to reach a node, matching original_source's BitArray /
// ROOT_BITS. Node storage keys are addressed by (version, BitPath) rather
// than by key hash directly, since internal nodes live at every prefix
// depth, not just at the leaves.
type BitPath struct {
	bits []byte
}

// RootPath is ROOT_BITS: the empty path identifying the tree's root node.
func RootPath() BitPath { return BitPath{} }

func (p BitPath) Len() int { return len(p.bits) }

// Push returns the path extended by one more branch.
func (p BitPath) Push(bit byte) BitPath {
	next := make([]byte, len(p.bits)+1)
	copy(next, p.bits)
	next[len(p.bits)] = bit
	return BitPath{bits: next}
}

// Encode packs the path into a length-prefixed byte string suitable as
// storage key material: a big-endian uint16 bit count followed by the bits
// packed MSB-first, zero-padded in the final byte.
func (p BitPath) Encode() []byte {
	packed := make([]byte, (len(p.bits)+7)/8)
	for i, b := range p.bits {
		if b != 0 {
			packed[i/8] |= 1 << uint(7-i%8)
		}
	}
	out := make([]byte, 2+len(packed))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(p.bits)))
	copy(out[2:], packed)
	return out
}

// key is the map key used by the in-flight dirty set during Apply.
func (p BitPath) key() string { return string(p.Encode()) }

// BitAt returns the bit (0 or 1) at index i (0 = most significant) of a
// key hash.
func BitAt(h gtypes.Hash, i int) byte {
	return (h[i/8] >> uint(7-i%8)) & 1
}
