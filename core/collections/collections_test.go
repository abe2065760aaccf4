package collections

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grugchain/core/store"
)

func TestItemLoadSaveRemove(t *testing.T) {
	s := store.NewMemStore()
	item := NewItem[int]("counter")

	_, err := item.Load(s)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, item.Save(s, 42))
	v, err := item.Load(s)
	require.NoError(t, err)
	require.Equal(t, 42, v)

	require.NoError(t, item.Remove(s))
	_, found, err := item.MayLoad(s)
	require.NoError(t, err)
	require.False(t, found)
}

func TestItemUpdate(t *testing.T) {
	s := store.NewMemStore()
	item := NewItem[int]("counter")

	v, err := item.Update(s, func(current int, found bool) (int, error) {
		require.False(t, found)
		return current + 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, v)

	v, err = item.Update(s, func(current int, found bool) (int, error) {
		require.True(t, found)
		return current + 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestMapCompoundKeyRangeIsolation(t *testing.T) {
	s := store.NewMemStore()
	m := NewMap[int]("balances")

	require.NoError(t, m.Save(s, 100, StringKey("alice"), StringKey("u")))
	require.NoError(t, m.Save(s, 5, StringKey("alice"), StringKey("atom")))
	require.NoError(t, m.Save(s, 50, StringKey("bob"), StringKey("u")))

	// (alice, *) must only see alice's two entries, never bob's, even
	// though "alice" and "alicex" would share a byte-prefix without
	// length-prefixing the non-terminal component.
	entries, err := m.Range(s, []KeyPart{StringKey("alice")}, UnboundedBound(), UnboundedBound(), store.Ascending)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	v, err := m.Load(s, StringKey("alice"), StringKey("u"))
	require.NoError(t, err)
	require.Equal(t, 100, v)
}

func TestMapPrefixDoesNotCollideAcrossLengths(t *testing.T) {
	s := store.NewMemStore()
	m := NewMap[int]("m")

	require.NoError(t, m.Save(s, 1, StringKey("a"), StringKey("x")))
	require.NoError(t, m.Save(s, 2, StringKey("ax"), StringKey("y")))

	entries, err := m.Range(s, []KeyPart{StringKey("a")}, UnboundedBound(), UnboundedBound(), store.Ascending)
	require.NoError(t, err)
	require.Len(t, entries, 1, "scanning prefix 'a' must not also match the unrelated key 'ax'")
}

func TestMapNumericKeyOrdering(t *testing.T) {
	s := store.NewMemStore()
	m := NewMap[string]("heights")

	require.NoError(t, m.Save(s, "genesis", U64Key(0)))
	require.NoError(t, m.Save(s, "ten", U64Key(10)))
	require.NoError(t, m.Save(s, "two", U64Key(2)))

	entries, err := m.Range(s, nil, UnboundedBound(), UnboundedBound(), store.Ascending)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "genesis", entries[0].Value)
	require.Equal(t, "two", entries[1].Value)
	require.Equal(t, "ten", entries[2].Value, "fixed-width big-endian keys must sort numerically, not lexicographically")
}

type account struct {
	Admin string
}

func TestIndexedMapSecondaryLookup(t *testing.T) {
	s := store.NewMemStore()
	byAdmin := NewMultiIndex[account]("contracts__by_admin", func(v account) KeyPart {
		return StringKey(v.Admin)
	})
	im := NewIndexedMap[account]("contracts", byAdmin)

	require.NoError(t, im.Save(s, StringKey("contract1"), account{Admin: "alice"}))
	require.NoError(t, im.Save(s, StringKey("contract2"), account{Admin: "alice"}))
	require.NoError(t, im.Save(s, StringKey("contract3"), account{Admin: "bob"}))

	pks, err := byAdmin.PrimaryKeys(s, StringKey("alice"))
	require.NoError(t, err)
	require.Len(t, pks, 2)

	// re-homing an admin must drop the stale index row.
	require.NoError(t, im.Save(s, StringKey("contract1"), account{Admin: "bob"}))
	pks, err = byAdmin.PrimaryKeys(s, StringKey("alice"))
	require.NoError(t, err)
	require.Len(t, pks, 1)

	pks, err = byAdmin.PrimaryKeys(s, StringKey("bob"))
	require.NoError(t, err)
	require.Len(t, pks, 2)
}

func TestIndexedMapRemoveDropsIndexEntries(t *testing.T) {
	s := store.NewMemStore()
	byAdmin := NewMultiIndex[account]("idx", func(v account) KeyPart { return StringKey(v.Admin) })
	im := NewIndexedMap[account]("contracts", byAdmin)

	require.NoError(t, im.Save(s, StringKey("c1"), account{Admin: "alice"}))
	require.NoError(t, im.Remove(s, StringKey("c1")))

	pks, err := byAdmin.PrimaryKeys(s, StringKey("alice"))
	require.NoError(t, err)
	require.Empty(t, pks)
}

func TestSetMembership(t *testing.T) {
	s := store.NewMemStore()
	set := NewSet("orphans")

	has, err := set.Has(s, BytesKey("code1"))
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, set.Insert(s, BytesKey("code1")))
	has, err = set.Has(s, BytesKey("code1"))
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, set.Remove(s, BytesKey("code1")))
	has, err = set.Has(s, BytesKey("code1"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestBoundExclusiveExcludesEndpoint(t *testing.T) {
	s := store.NewMemStore()
	m := NewMap[int]("m")
	require.NoError(t, m.Save(s, 1, U32Key(1)))
	require.NoError(t, m.Save(s, 2, U32Key(2)))
	require.NoError(t, m.Save(s, 3, U32Key(3)))

	entries, err := m.Range(s, nil, ExclusiveBound(U32Key(1)), UnboundedBound(), store.Ascending)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 2, entries[0].Value)

	entries, err = m.Range(s, nil, UnboundedBound(), InclusiveBound(U32Key(2)), store.Ascending)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 2, entries[len(entries)-1].Value)
}
