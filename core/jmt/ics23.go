package jmt

import (
	"fmt"

	"github.com/cosmos/ics23/go"

	"grugchain/core/gtypes"
)

// ICS23ProofSpec describes this tree's hashing in the ICS-23 standard proof
// format (§6 "Proof format"), so an external light client using a generic
// ICS-23 verifier can check inclusion without knowing anything about the
// Jellyfish Merkle Tree beyond this spec. If the hash function ever changes
// (e.g. to BLAKE3) this spec must change with it.
var ICS23ProofSpec = &ics23.ProofSpec{
	LeafSpec: &ics23.LeafOp{
		Hash:         ics23.HashOp_SHA256,
		PrehashKey:   ics23.HashOp_SHA256,
		PrehashValue: ics23.HashOp_SHA256,
		Length:       ics23.LengthOp_NO_PREFIX,
		Prefix:       LeafPrefix,
	},
	InnerSpec: &ics23.InnerSpec{
		ChildOrder:      []int32{0, 1},
		ChildSize:       gtypes.HashLength,
		MinPrefixLength: int32(len(InternalPrefix)),
		MaxPrefixLength: int32(len(InternalPrefix)),
		EmptyChild:      gtypes.ZeroHash[:],
		Hash:            ics23.HashOp_SHA256,
	},
	MaxDepth:                   gtypes.HashLength * 8,
	MinDepth:                   0,
	PrehashKeyBeforeComparison: true,
}

// ProveExistenceICS23 walks the tree committed at version to the leaf
// holding keyHash and returns the ICS-23 inner-op path proving its
// inclusion, for callers that want to hand a proof to a generic ICS-23
// verifier rather than this package's own VerifyMembership. The caller must
// already know keyHash exists (typically having just read its value); this
// returns an error instead of panicking if it doesn't.
func (t *Tree) ProveExistenceICS23(ns *NodeStore, version uint64, keyHash gtypes.Hash) (*ics23.ExistenceProof, error) {
	path := RootPath()
	bitIndex := 0

	node, found, err := ns.Load(version, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrEmptyTree
	}

	var innerPath []*ics23.InnerOp
	var leaf *LeafNode

	for {
		switch n := node.(type) {
		case *LeafNode:
			if n.KeyHash != keyHash {
				return nil, fmt.Errorf("jmt: target key hash not found")
			}
			leaf = n
			goto done

		case *InternalNode:
			bit := BitAt(keyHash, bitIndex)
			var child, sibling *Child
			if bit == 0 {
				child, sibling = n.Left, n.Right
			} else {
				child, sibling = n.Right, n.Left
			}
			if child == nil {
				return nil, fmt.Errorf("jmt: target key hash not found")
			}

			siblingHash := gtypes.ZeroHash
			if sibling != nil {
				siblingHash = sibling.Hash
			}

			var op *ics23.InnerOp
			if bit == 0 {
				op = &ics23.InnerOp{
					Hash:   ics23.HashOp_SHA256,
					Prefix: InternalPrefix,
					Suffix: siblingHash[:],
				}
			} else {
				prefix := make([]byte, 0, len(InternalPrefix)+gtypes.HashLength)
				prefix = append(prefix, InternalPrefix...)
				prefix = append(prefix, siblingHash[:]...)
				op = &ics23.InnerOp{
					Hash:   ics23.HashOp_SHA256,
					Prefix: prefix,
					Suffix: nil,
				}
			}
			innerPath = append(innerPath, op)

			next, _, err := ns.Load(child.Version, path.Push(bit))
			if err != nil {
				return nil, err
			}
			node = next
			path = path.Push(bit)
			bitIndex++
		}
	}

done:
	// the walk collected the path root-to-leaf; ICS-23 wants it leaf-to-root.
	for i, j := 0, len(innerPath)-1; i < j; i, j = i+1, j-1 {
		innerPath[i], innerPath[j] = innerPath[j], innerPath[i]
	}

	return &ics23.ExistenceProof{
		Key:   leaf.KeyHash[:],
		Value: leaf.ValueHash[:],
		Leaf:  ICS23ProofSpec.LeafSpec,
		Path:  innerPath,
	}, nil
}
