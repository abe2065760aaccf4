package jmt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"grugchain/core/gtypes"
	"grugchain/core/store"
)

func newTestNodeStore() *NodeStore {
	return NewNodeStore(store.NewMemStore())
}

func randHash(r *rand.Rand) gtypes.Hash {
	var h gtypes.Hash
	r.Read(h[:])
	return h
}

func insertOp(k, v gtypes.Hash) ValueOp {
	val := v
	return ValueOp{KeyHash: k, Value: &val}
}

func deleteOp(k gtypes.Hash) ValueOp {
	return ValueOp{KeyHash: k, Value: nil}
}

// TestTreeDeterministicRoot is §8 S6: the resulting root must not depend on
// insertion order within a batch.
func TestTreeDeterministicRoot(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	k1, v1 := randHash(r), randHash(r)
	k2, v2 := randHash(r), randHash(r)
	k3, v3 := randHash(r), randHash(r)

	tree := NewTree()

	ns1 := newTestNodeStore()
	root1, err := tree.Apply(ns1, 0, 1, []ValueOp{insertOp(k1, v1), insertOp(k2, v2), insertOp(k3, v3)})
	require.NoError(t, err)

	ns2 := newTestNodeStore()
	root2, err := tree.Apply(ns2, 0, 1, []ValueOp{insertOp(k3, v3), insertOp(k1, v1), insertOp(k2, v2)})
	require.NoError(t, err)

	require.Equal(t, root1, root2)
}

func TestTreeSingleLeafRoot(t *testing.T) {
	tree := NewTree()
	ns := newTestNodeStore()
	r := rand.New(rand.NewSource(2))
	k, v := randHash(r), randHash(r)

	root, err := tree.Apply(ns, 0, 1, []ValueOp{insertOp(k, v)})
	require.NoError(t, err)
	require.Equal(t, HashLeaf(k, v), root)
}

func TestTreeInsertUpdateDelete(t *testing.T) {
	tree := NewTree()
	ns := newTestNodeStore()
	r := rand.New(rand.NewSource(3))

	keys := make([]gtypes.Hash, 10)
	vals := make([]gtypes.Hash, 10)
	for i := range keys {
		keys[i] = randHash(r)
		vals[i] = randHash(r)
	}

	var ops []ValueOp
	for i := range keys {
		ops = append(ops, insertOp(keys[i], vals[i]))
	}
	root, err := tree.Apply(ns, 0, 1, ops)
	require.NoError(t, err)
	require.NotEqual(t, gtypes.ZeroHash, root)

	for i := range keys {
		proof, err := tree.Prove(ns, 1, keys[i])
		require.NoError(t, err)
		require.Equal(t, ProofMembership, proof.Kind)
		require.NoError(t, VerifyMembership(root, keys[i], vals[i], proof))
	}

	// update one key, delete another, at version 2.
	newVal := randHash(r)
	root2, err := tree.Apply(ns, 1, 2, []ValueOp{insertOp(keys[0], newVal), deleteOp(keys[1])})
	require.NoError(t, err)
	require.NotEqual(t, root, root2)

	proof, err := tree.Prove(ns, 2, keys[0])
	require.NoError(t, err)
	require.NoError(t, VerifyMembership(root2, keys[0], newVal, proof))

	proof, err = tree.Prove(ns, 2, keys[1])
	require.NoError(t, err)
	require.Equal(t, ProofNonMembership, proof.Kind)
	require.NoError(t, VerifyNonMembership(root2, keys[1], proof))

	// version 1 remains readable at its own root (history is preserved).
	proof, err = tree.Prove(ns, 1, keys[1])
	require.NoError(t, err)
	require.NoError(t, VerifyMembership(root, keys[1], vals[1], proof))
}

func TestTreeDeleteCollapsesToSibling(t *testing.T) {
	tree := NewTree()
	ns := newTestNodeStore()

	// force a known collision on bit 0 by flipping it, guaranteeing the two
	// keys share the root as a common internal node.
	var k1, k2, v1, v2 gtypes.Hash
	r := rand.New(rand.NewSource(4))
	k1 = randHash(r)
	k2 = k1
	k2[0] ^= 0x80 // flip the most significant bit only
	v1, v2 = randHash(r), randHash(r)

	root, err := tree.Apply(ns, 0, 1, []ValueOp{insertOp(k1, v1), insertOp(k2, v2)})
	require.NoError(t, err)

	node, found, err := ns.Load(1, RootPath())
	require.NoError(t, err)
	require.True(t, found)
	_, isInternal := node.(*InternalNode)
	require.True(t, isInternal, "two keys diverging at bit 0 must produce an internal root")

	// delete k2: the tree must collapse back to a single-leaf root == k1's leaf hash.
	root2, err := tree.Apply(ns, 1, 2, []ValueOp{deleteOp(k2)})
	require.NoError(t, err)
	require.Equal(t, HashLeaf(k1, v1), root2)
	require.Equal(t, root2, root2)
	_ = root
}

func TestTreeDeleteNonexistentIsNoop(t *testing.T) {
	tree := NewTree()
	ns := newTestNodeStore()
	r := rand.New(rand.NewSource(5))
	k, v := randHash(r), randHash(r)

	root, err := tree.Apply(ns, 0, 1, []ValueOp{insertOp(k, v)})
	require.NoError(t, err)

	missing := randHash(r)
	root2, err := tree.Apply(ns, 1, 2, []ValueOp{deleteOp(missing)})
	require.NoError(t, err)
	require.Equal(t, root, root2)
}

func TestTreeICS23ExistenceProof(t *testing.T) {
	tree := NewTree()
	ns := newTestNodeStore()
	r := rand.New(rand.NewSource(6))

	var ops []ValueOp
	keys := make([]gtypes.Hash, 20)
	vals := make([]gtypes.Hash, 20)
	for i := range keys {
		keys[i], vals[i] = randHash(r), randHash(r)
		ops = append(ops, insertOp(keys[i], vals[i]))
	}
	_, err := tree.Apply(ns, 0, 1, ops)
	require.NoError(t, err)

	for i := range keys {
		proof, err := tree.ProveExistenceICS23(ns, 1, keys[i])
		require.NoError(t, err)
		require.Equal(t, keys[i][:], proof.Key)
		require.Equal(t, vals[i][:], proof.Value)
	}
}

// TestTreeFuzz follows original_source's fuzzing.rs strategy at reduced
// scale: an initial batch of random inserts, then a run of mixed
// insert-existing/insert-new/delete-existing/delete-nonexistent batches,
// checking every key ever touched proves correctly against the current
// root after every batch.
func TestTreeFuzz(t *testing.T) {
	const numBatches = 12
	r := rand.New(rand.NewSource(42))
	tree := NewTree()
	ns := newTestNodeStore()

	live := make(map[gtypes.Hash]gtypes.Hash) // currently-present keys
	everKey := make([]gtypes.Hash, 0, 256)
	everSeen := make(map[gtypes.Hash]bool)

	var version uint64
	var root gtypes.Hash

	addBatch := func(rawOps []ValueOp) {
		// collapse duplicate keys within one batch to last-write-wins,
		// matching original_source's Batch (a HashMap keyed by key_hash).
		dedup := make(map[gtypes.Hash]ValueOp, len(rawOps))
		order := make([]gtypes.Hash, 0, len(rawOps))
		for _, op := range rawOps {
			if _, ok := dedup[op.KeyHash]; !ok {
				order = append(order, op.KeyHash)
			}
			dedup[op.KeyHash] = op
		}
		ops := make([]ValueOp, 0, len(order))
		for _, k := range order {
			ops = append(ops, dedup[k])
		}

		var err error
		version++
		root, err = tree.Apply(ns, version-1, version, ops)
		require.NoError(t, err)

		for _, op := range ops {
			if op.Value != nil {
				live[op.KeyHash] = *op.Value
			} else {
				delete(live, op.KeyHash)
			}
			if !everSeen[op.KeyHash] {
				everSeen[op.KeyHash] = true
				everKey = append(everKey, op.KeyHash)
			}
		}

		for _, k := range everKey {
			proof, err := tree.Prove(ns, version, k)
			require.NoError(t, err)
			if v, ok := live[k]; ok {
				require.Equal(t, ProofMembership, proof.Kind)
				require.NoError(t, VerifyMembership(root, k, v, proof))
			} else {
				require.Equal(t, ProofNonMembership, proof.Kind)
				require.NoError(t, VerifyNonMembership(root, k, proof))
			}
		}
	}

	var initial []ValueOp
	for i := 0; i < 20; i++ {
		initial = append(initial, insertOp(randHash(r), randHash(r)))
	}
	addBatch(initial)

	for b := 1; b < numBatches; b++ {
		var batch []ValueOp
		liveKeys := make([]gtypes.Hash, 0, len(live))
		for k := range live {
			liveKeys = append(liveKeys, k)
		}
		for i := 0; i < 5 && len(liveKeys) > 0; i++ {
			k := liveKeys[r.Intn(len(liveKeys))]
			batch = append(batch, insertOp(k, randHash(r)))
		}
		for i := 0; i < 2 && len(liveKeys) > 0; i++ {
			k := liveKeys[r.Intn(len(liveKeys))]
			batch = append(batch, deleteOp(k))
		}
		for i := 0; i < 3; i++ {
			batch = append(batch, insertOp(randHash(r), randHash(r)))
		}
		for i := 0; i < 1; i++ {
			batch = append(batch, deleteOp(randHash(r)))
		}
		addBatch(batch)
	}
}
