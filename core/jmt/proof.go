package jmt

import (
	"errors"
	"fmt"

	"grugchain/core/gtypes"
)

var (
	// ErrIncorrectProofType is returned when a Membership proof is checked
	// with VerifyNonMembership or vice versa.
	ErrIncorrectProofType = errors.New("jmt: incorrect proof type")
	// ErrRootHashMismatch means the proof recomputes to a different root
	// than the one it was checked against.
	ErrRootHashMismatch = errors.New("jmt: root hash mismatch")
	// ErrUnexpectedChild means a non-membership proof's internal node has a
	// child where the queried key's bit says there should be none.
	ErrUnexpectedChild = errors.New("jmt: expected child to not exist but it does")
	// ErrNotCommonPrefix means a non-membership proof's leaf doesn't share
	// the queried key hash's bit-prefix down to the claimed divergence depth.
	ErrNotCommonPrefix = errors.New("jmt: bit arrays do not share the claimed common prefix")
)

// ProofKind distinguishes the two Proof shapes.
type ProofKind int

const (
	ProofMembership ProofKind = iota
	ProofNonMembership
)

// Proof is either a Membership proof (a leaf hash plus the sibling hashes
// from leaf to root) or a NonMembership proof (additionally carrying the
// node at which the search diverged). Sibling hashes are ordered from the
// deepest level to the root (§4.1).
type Proof struct {
	Kind           ProofKind
	SiblingHashes  []*gtypes.Hash
	DivergentNode  Node // only set for ProofNonMembership
}

// Prove builds a Proof that keyHash either is or isn't present in the tree
// committed at version. Returns ErrEmptyTree if no root node is stored at
// exactly that version.
func (t *Tree) Prove(ns *NodeStore, version uint64, keyHash gtypes.Hash) (*Proof, error) {
	path := RootPath()
	bitIndex := 0

	node, found, err := ns.Load(version, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrEmptyTree
	}

	var siblings []*gtypes.Hash

	for {
		switch n := node.(type) {
		case *LeafNode:
			reverseSiblings(siblings)
			if n.KeyHash == keyHash {
				return &Proof{Kind: ProofMembership, SiblingHashes: siblings}, nil
			}
			return &Proof{Kind: ProofNonMembership, SiblingHashes: siblings, DivergentNode: n}, nil

		case *InternalNode:
			bit := BitAt(keyHash, bitIndex)
			var child, sibling *Child
			if bit == 0 {
				child, sibling = n.Left, n.Right
			} else {
				child, sibling = n.Right, n.Left
			}

			if child == nil {
				// this internal node itself is the divergence point; its own
				// hash folds both children directly, no sibling entry for it.
				reverseSiblings(siblings)
				return &Proof{Kind: ProofNonMembership, SiblingHashes: siblings, DivergentNode: n}, nil
			}
			siblings = append(siblings, optionalHash(sibling))

			next, _, err := ns.Load(child.Version, path.Push(bit))
			if err != nil {
				return nil, err
			}
			node = next
			path = path.Push(bit)
			bitIndex++

		default:
			return nil, fmt.Errorf("jmt: unreachable node type")
		}
	}
}

func optionalHash(c *Child) *gtypes.Hash {
	if c == nil {
		return nil
	}
	h := c.Hash
	return &h
}

func reverseSiblings(s []*gtypes.Hash) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// VerifyMembership checks that (keyHash, valueHash) is provably included
// under rootHash per proof.
func VerifyMembership(rootHash, keyHash, valueHash gtypes.Hash, proof *Proof) error {
	if proof.Kind != ProofMembership {
		return ErrIncorrectProofType
	}
	hash := HashLeaf(keyHash, valueHash)
	computed := recomputeRoot(keyHash, proof.SiblingHashes, hash)
	if computed != rootHash {
		return ErrRootHashMismatch
	}
	return nil
}

// VerifyNonMembership checks that keyHash is provably absent under rootHash
// per proof, resolving both collapsed-child shapes: an internal node whose
// expected-side child is empty, and a leaf whose bit-prefix diverges from
// keyHash at the claimed depth.
func VerifyNonMembership(rootHash, keyHash gtypes.Hash, proof *Proof) error {
	if proof.Kind != ProofNonMembership {
		return ErrIncorrectProofType
	}

	depth := len(proof.SiblingHashes)
	var hash gtypes.Hash

	switch n := proof.DivergentNode.(type) {
	case *InternalNode:
		bit := BitAt(keyHash, depth)
		switch {
		case bit == 0 && n.Left != nil:
			return ErrUnexpectedChild
		case bit == 1 && n.Right != nil:
			return ErrUnexpectedChild
		}
		hash = HashInternal(n.Left, n.Right)

	case *LeafNode:
		for i := 0; i < depth; i++ {
			if BitAt(keyHash, i) != BitAt(n.KeyHash, i) {
				return ErrNotCommonPrefix
			}
		}
		hash = HashLeaf(n.KeyHash, n.ValueHash)

	default:
		return fmt.Errorf("jmt: unreachable divergent node type")
	}

	computed := recomputeRoot(keyHash, proof.SiblingHashes, hash)
	if computed != rootHash {
		return ErrRootHashMismatch
	}
	return nil
}

// recomputeRoot folds sibling hashes (deepest first, per Proof's ordering)
// back up to the root, combining with keyHash's bits from the deepest
// proven level up to the root's first branch.
func recomputeRoot(keyHash gtypes.Hash, siblings []*gtypes.Hash, hash gtypes.Hash) gtypes.Hash {
	depth := len(siblings)
	for i, sibling := range siblings {
		bitIndex := depth - 1 - i
		bit := BitAt(keyHash, bitIndex)
		var left, right *Child
		selfChild := &Child{Hash: hash}
		var siblingChild *Child
		if sibling != nil {
			siblingChild = &Child{Hash: *sibling}
		}
		if bit == 0 {
			left, right = selfChild, siblingChild
		} else {
			left, right = siblingChild, selfChild
		}
		hash = HashInternal(left, right)
	}
	return hash
}
