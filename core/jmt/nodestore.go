package jmt

import (
	"encoding/binary"
	"fmt"

	"grugchain/core/gtypes"
	"grugchain/core/store"
)

const (
	tagLeaf     = 0
	tagInternal = 1
)

// NodeStore persists JMT nodes keyed by (version, BitPath) over any
// store.Store — typically a Backend.TreeView(), or a CacheStore layered
// over one while a block is still being applied.
type NodeStore struct {
	backing store.Store
}

func NewNodeStore(backing store.Store) *NodeStore {
	return &NodeStore{backing: backing}
}

func storageKey(version uint64, path BitPath) []byte {
	encoded := path.Encode()
	out := make([]byte, 8+len(encoded))
	binary.BigEndian.PutUint64(out[0:8], version)
	copy(out[8:], encoded)
	return out
}

// Load reads the node at (version, path), returning found=false if absent.
func (ns *NodeStore) Load(version uint64, path BitPath) (Node, bool, error) {
	raw, ok, err := ns.backing.Read(storageKey(version, path))
	if err != nil {
		return nil, false, fmt.Errorf("jmt: load node: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	node, err := decodeNode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("jmt: decode node: %w", err)
	}
	return node, true, nil
}

// Save writes node at (version, path).
func (ns *NodeStore) Save(version uint64, path BitPath, node Node) error {
	if err := ns.backing.Write(storageKey(version, path), encodeNode(node)); err != nil {
		return fmt.Errorf("jmt: save node: %w", err)
	}
	return nil
}

// Remove deletes the node record at (version, path), used by pruning.
func (ns *NodeStore) Remove(version uint64, path BitPath) error {
	if err := ns.backing.Remove(storageKey(version, path)); err != nil {
		return fmt.Errorf("jmt: remove node: %w", err)
	}
	return nil
}

func encodeNode(n Node) []byte {
	switch v := n.(type) {
	case *LeafNode:
		out := make([]byte, 1+gtypes.HashLength*2)
		out[0] = tagLeaf
		copy(out[1:], v.KeyHash[:])
		copy(out[1+gtypes.HashLength:], v.ValueHash[:])
		return out
	case *InternalNode:
		out := []byte{tagInternal}
		out = append(out, encodeChild(v.Left)...)
		out = append(out, encodeChild(v.Right)...)
		return out
	default:
		panic("jmt: unknown node type")
	}
}

func encodeChild(c *Child) []byte {
	if c == nil {
		return []byte{0}
	}
	out := make([]byte, 1+8+gtypes.HashLength)
	out[0] = 1
	binary.BigEndian.PutUint64(out[1:9], c.Version)
	copy(out[9:], c.Hash[:])
	return out
}

func decodeChild(buf []byte) (*Child, []byte, error) {
	if len(buf) < 1 {
		return nil, nil, fmt.Errorf("jmt: truncated child")
	}
	if buf[0] == 0 {
		return nil, buf[1:], nil
	}
	if len(buf) < 1+8+gtypes.HashLength {
		return nil, nil, fmt.Errorf("jmt: truncated child")
	}
	version := binary.BigEndian.Uint64(buf[1:9])
	hash, err := gtypes.HashFromSlice(buf[9 : 9+gtypes.HashLength])
	if err != nil {
		return nil, nil, err
	}
	return &Child{Version: version, Hash: hash}, buf[9+gtypes.HashLength:], nil
}

func decodeNode(raw []byte) (Node, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("jmt: empty node record")
	}
	switch raw[0] {
	case tagLeaf:
		if len(raw) != 1+gtypes.HashLength*2 {
			return nil, fmt.Errorf("jmt: malformed leaf record")
		}
		keyHash, err := gtypes.HashFromSlice(raw[1 : 1+gtypes.HashLength])
		if err != nil {
			return nil, err
		}
		valueHash, err := gtypes.HashFromSlice(raw[1+gtypes.HashLength:])
		if err != nil {
			return nil, err
		}
		return &LeafNode{KeyHash: keyHash, ValueHash: valueHash}, nil
	case tagInternal:
		left, rest, err := decodeChild(raw[1:])
		if err != nil {
			return nil, err
		}
		right, rest, err := decodeChild(rest)
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 {
			return nil, fmt.Errorf("jmt: trailing bytes in internal record")
		}
		return &InternalNode{Left: left, Right: right}, nil
	default:
		return nil, fmt.Errorf("jmt: unknown node tag %d", raw[0])
	}
}
