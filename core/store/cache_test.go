package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheStoreCommitAndDiscard(t *testing.T) {
	backing := NewMemStore()
	require.NoError(t, backing.Write([]byte("k1"), []byte("v1")))

	layer := NewCacheStore(backing)
	require.NoError(t, layer.Write([]byte("k2"), []byte("v2")))
	require.NoError(t, layer.Remove([]byte("k1")))

	// the backing store is untouched until Commit.
	v, ok, err := backing.Read([]byte("k2"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, v)

	// reads through the layer see the overlay.
	v, ok, err = layer.Read([]byte("k2"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", string(v))

	_, ok, err = layer.Read([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, layer.Commit())

	v, ok, err = backing.Read([]byte("k2"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", string(v))

	_, ok, err = backing.Read([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheStoreDiscardIsInvisible(t *testing.T) {
	backing := NewMemStore()
	layer := NewCacheStore(backing)
	require.NoError(t, layer.Write([]byte("k"), []byte("v")))
	layer.Discard()

	_, ok, err := backing.Read([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheStoreNestedLayers(t *testing.T) {
	backing := NewMemStore()
	outer := NewCacheStore(backing)
	require.NoError(t, outer.Write([]byte("a"), []byte("1")))

	inner := NewCacheStore(outer)
	require.NoError(t, inner.Write([]byte("b"), []byte("2")))

	// inner sees outer's uncommitted write.
	v, ok, err := inner.Read([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(v))

	inner.Discard() // rollback atomicity: b never reaches outer or backing.
	require.NoError(t, outer.Commit())

	_, ok, err = backing.Read([]byte("b"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPrefixStoreIsolatesContracts(t *testing.T) {
	backing := NewMemStore()
	a := NewPrefixStore(backing, []byte{0xAA})
	b := NewPrefixStore(backing, []byte{0xBB})

	require.NoError(t, a.Write([]byte("x"), []byte("from-a")))
	require.NoError(t, b.Write([]byte("x"), []byte("from-b")))

	va, _, err := a.Read([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, "from-a", string(va))

	vb, _, err := b.Read([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, "from-b", string(vb))
}

func TestPrefixStoreScanBounded(t *testing.T) {
	backing := NewMemStore()
	ps := NewPrefixStore(backing, []byte{0x01})
	require.NoError(t, ps.Write([]byte("a"), []byte("1")))
	require.NoError(t, ps.Write([]byte("b"), []byte("2")))
	require.NoError(t, ps.Write([]byte("c"), []byte("3")))

	it, err := ps.Scan(nil, nil, Ascending)
	require.NoError(t, err)
	var keys []string
	for it.Valid() {
		keys = append(keys, string(it.Key()))
		it.Next()
	}
	require.NoError(t, it.Close())
	require.Equal(t, []string{"a", "b", "c"}, keys)
}
