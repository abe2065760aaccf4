package jmt

import (
	"fmt"
	"sort"

	"grugchain/core/gtypes"
)

// ErrEmptyTree is returned by Prove when no root node exists yet at the
// requested version (the tree has never had anything committed to it).
var ErrEmptyTree = fmt.Errorf("jmt: tree is empty at this version")

// Tree is the stateless Jellyfish Merkle Tree algorithm: all persistent
// state lives in a NodeStore, addressed by version. A Tree value carries no
// state of its own and is safe to reuse across calls and goroutines that
// don't share a NodeStore concurrently.
type Tree struct{}

func NewTree() *Tree { return &Tree{} }

// ValueOp is a pending mutation for one key hash: a non-nil Value means
// insert/update, nil means delete.
type ValueOp struct {
	KeyHash gtypes.Hash
	Value   *gtypes.Hash
}

// applyState threads the in-flight dirty set through one Apply call: nodes
// written at newVersion that haven't been persisted yet, keyed by
// BitPath.key(). A present-but-nil entry is a tombstone: the path held a
// node before this batch touched it, but no longer does.
type applyState struct {
	ns         *NodeStore
	newVersion uint64
	dirty      map[string]Node
}

func (s *applyState) load(child *Child, path BitPath) (Node, error) {
	if child == nil {
		return nil, nil
	}
	if n, ok := s.dirty[path.key()]; ok {
		return n, nil
	}
	node, _, err := s.ns.Load(child.Version, path)
	return node, err
}

func (s *applyState) set(path BitPath, node Node) {
	s.dirty[path.key()] = node
}

// Apply commits ops (applied in key-hash order, for a deterministic write
// sequence — the resulting tree shape itself is order-independent, §8 S6)
// on top of the tree committed at baseVersion, persisting new node records
// at newVersion. It returns the new root hash, or gtypes.ZeroHash if the
// tree is empty after the batch. A non-empty root is always stored at
// newVersion, even when the batch leaves it unchanged.
func (t *Tree) Apply(ns *NodeStore, baseVersion, newVersion uint64, ops []ValueOp) (gtypes.Hash, error) {
	sorted := make([]ValueOp, len(ops))
	copy(sorted, ops)
	sort.Slice(sorted, func(i, j int) bool {
		return hashLess(sorted[i].KeyHash, sorted[j].KeyHash)
	})

	s := &applyState{ns: ns, newVersion: newVersion, dirty: make(map[string]Node)}

	existingRoot, found, err := ns.Load(baseVersion, RootPath())
	if err != nil {
		return gtypes.ZeroHash, err
	}
	var root *Child
	if found {
		root = &Child{Version: baseVersion, Hash: existingRoot.Hash()}
	}

	for _, op := range sorted {
		var err error
		if op.Value != nil {
			root, err = s.insert(root, RootPath(), 0, op.KeyHash, *op.Value)
		} else {
			root, _, err = s.delete(root, RootPath(), 0, op.KeyHash)
		}
		if err != nil {
			return gtypes.ZeroHash, err
		}
	}

	for key, node := range s.dirty {
		if node == nil {
			continue
		}
		path, err := decodePathKey(key)
		if err != nil {
			return gtypes.ZeroHash, err
		}
		if err := ns.Save(newVersion, path, node); err != nil {
			return gtypes.ZeroHash, err
		}
	}

	if root != nil && root.Version != newVersion {
		node, _, err := ns.Load(root.Version, RootPath())
		if err != nil {
			return gtypes.ZeroHash, err
		}
		if err := ns.Save(newVersion, RootPath(), node); err != nil {
			return gtypes.ZeroHash, err
		}
	}

	if root == nil {
		return gtypes.ZeroHash, nil
	}
	return root.Hash, nil
}

func hashLess(a, b gtypes.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func decodePathKey(key string) (BitPath, error) {
	// the key IS path.Encode(): re-decode its bit count and packed bits.
	buf := []byte(key)
	if len(buf) < 2 {
		return BitPath{}, fmt.Errorf("jmt: malformed dirty key")
	}
	n := int(buf[0])<<8 | int(buf[1])
	bits := make([]byte, n)
	for i := 0; i < n; i++ {
		byteIdx := 2 + i/8
		bits[i] = (buf[byteIdx] >> uint(7-i%8)) & 1
	}
	return BitPath{bits: bits}, nil
}

// insert places (keyHash, valueHash) under the subtree currently rooted at
// current (possibly nil, meaning empty), at bitIndex bits deep / path from
// the tree root. It returns the new Child for this position.
func (s *applyState) insert(current *Child, path BitPath, bitIndex int, keyHash, valueHash gtypes.Hash) (*Child, error) {
	if current == nil {
		leaf := &LeafNode{KeyHash: keyHash, ValueHash: valueHash}
		s.set(path, leaf)
		return &Child{Version: s.newVersion, Hash: leaf.Hash()}, nil
	}

	node, err := s.load(current, path)
	if err != nil {
		return nil, err
	}

	switch n := node.(type) {
	case *LeafNode:
		if n.KeyHash == keyHash {
			leaf := &LeafNode{KeyHash: keyHash, ValueHash: valueHash}
			s.set(path, leaf)
			return &Child{Version: s.newVersion, Hash: leaf.Hash()}, nil
		}
		return s.splitLeaves(path, bitIndex, n, keyHash, valueHash)

	case *InternalNode:
		bit := BitAt(keyHash, bitIndex)
		left, right := n.Left, n.Right
		var branch *Child
		if bit == 0 {
			branch = left
		} else {
			branch = right
		}
		newBranch, err := s.insert(branch, path.Push(bit), bitIndex+1, keyHash, valueHash)
		if err != nil {
			return nil, err
		}
		if bit == 0 {
			left = newBranch
		} else {
			right = newBranch
		}
		internal := &InternalNode{Left: left, Right: right}
		s.set(path, internal)
		return &Child{Version: s.newVersion, Hash: internal.Hash()}, nil

	default:
		return nil, fmt.Errorf("jmt: unreachable node type")
	}
}

// splitLeaves handles inserting a new leaf that collides, at bitIndex, with
// an existing leaf: it grows an internal-node chain until the two key
// hashes' bit prefixes diverge (§4.1: "a leaf is placed at the shortest
// bit-prefix that makes it unique among current keys").
func (s *applyState) splitLeaves(path BitPath, bitIndex int, existing *LeafNode, newKeyHash, newValueHash gtypes.Hash) (*Child, error) {
	if bitIndex >= gtypes.HashLength*8 {
		return nil, fmt.Errorf("jmt: key hash collision at max depth")
	}

	existingBit := BitAt(existing.KeyHash, bitIndex)
	newBit := BitAt(newKeyHash, bitIndex)

	if existingBit == newBit {
		childPtr, err := s.splitLeaves(path.Push(existingBit), bitIndex+1, existing, newKeyHash, newValueHash)
		if err != nil {
			return nil, err
		}
		internal := &InternalNode{}
		if existingBit == 0 {
			internal.Left = childPtr
		} else {
			internal.Right = childPtr
		}
		s.set(path, internal)
		return &Child{Version: s.newVersion, Hash: internal.Hash()}, nil
	}

	existingLeaf := &LeafNode{KeyHash: existing.KeyHash, ValueHash: existing.ValueHash}
	newLeaf := &LeafNode{KeyHash: newKeyHash, ValueHash: newValueHash}
	s.set(path.Push(existingBit), existingLeaf)
	s.set(path.Push(newBit), newLeaf)

	internal := &InternalNode{}
	existingChild := &Child{Version: s.newVersion, Hash: existingLeaf.Hash()}
	newChild := &Child{Version: s.newVersion, Hash: newLeaf.Hash()}
	if existingBit == 0 {
		internal.Left, internal.Right = existingChild, newChild
	} else {
		internal.Right, internal.Left = existingChild, newChild
	}
	s.set(path, internal)
	return &Child{Version: s.newVersion, Hash: internal.Hash()}, nil
}

// delete removes keyHash from the subtree rooted at current. It returns the
// subtree's new Child (nil if now empty) and whether the key was found at
// all (a not-found delete is a no-op per §8 fuzzing strategy: "10 deletes
// of non-existing keys (should be no-op)").
func (s *applyState) delete(current *Child, path BitPath, bitIndex int, keyHash gtypes.Hash) (*Child, bool, error) {
	if current == nil {
		return nil, false, nil
	}

	node, err := s.load(current, path)
	if err != nil {
		return nil, false, err
	}

	switch n := node.(type) {
	case *LeafNode:
		if n.KeyHash != keyHash {
			return current, false, nil
		}
		s.set(path, nil)
		return nil, true, nil

	case *InternalNode:
		bit := BitAt(keyHash, bitIndex)
		left, right := n.Left, n.Right
		var branch *Child
		if bit == 0 {
			branch = left
		} else {
			branch = right
		}
		newBranch, found, err := s.delete(branch, path.Push(bit), bitIndex+1, keyHash)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return current, false, nil
		}
		if bit == 0 {
			left = newBranch
		} else {
			right = newBranch
		}

		switch {
		case left == nil && right == nil:
			s.set(path, nil)
			return nil, true, nil

		case left == nil || right == nil:
			// exactly one side remains. A remaining leaf moves up to this
			// shallower path under the new version, so it sits at its
			// shortest unique prefix. A remaining internal node stays where
			// it is (its children are addressed by their paths), under a
			// single-child internal node at this path.
			remaining := left
			remainingBit := byte(0)
			if remaining == nil {
				remaining = right
				remainingBit = 1
			}
			remainingNode, err := s.load(remaining, path.Push(remainingBit))
			if err != nil {
				return nil, false, err
			}
			if _, isLeaf := remainingNode.(*LeafNode); !isLeaf {
				internal := &InternalNode{Left: left, Right: right}
				s.set(path, internal)
				return &Child{Version: s.newVersion, Hash: internal.Hash()}, true, nil
			}
			s.set(path.Push(remainingBit), nil)
			s.set(path, remainingNode)
			return &Child{Version: s.newVersion, Hash: remainingNode.Hash()}, true, nil

		default:
			internal := &InternalNode{Left: left, Right: right}
			s.set(path, internal)
			return &Child{Version: s.newVersion, Hash: internal.Hash()}, true, nil
		}

	default:
		return nil, false, fmt.Errorf("jmt: unreachable node type")
	}
}

// RootHash returns the tree's root hash at version, or ZeroHash if no root
// node is stored at exactly that version.
func (t *Tree) RootHash(ns *NodeStore, version uint64) (gtypes.Hash, error) {
	node, found, err := ns.Load(version, RootPath())
	if err != nil {
		return gtypes.ZeroHash, err
	}
	if !found {
		return gtypes.ZeroHash, nil
	}
	return node.Hash(), nil
}
