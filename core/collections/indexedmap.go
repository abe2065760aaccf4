package collections

import (
	"fmt"

	"grugchain/core/store"
)

// IndexFunc derives a secondary index value from a stored value, e.g.
// "contract admin" from a ContractInfo record.
type IndexFunc[V any] func(v V) KeyPart

// MultiIndex stores `(idx_namespace, idx_value, pk) -> pk` (§4.2) and
// resolves reverse lookups by scanning the index then loading the primary
// map — a non-unique index, since more than one primary key may share the
// same derived value (grounded on original_source
// crates/storage/src/indexes.rs's MultiIndex, referenced rather than
// ported line-for-line since that file is Rust trait-object machinery this
// package's Map[V] generic already replaces).
type MultiIndex[V any] struct {
	namespace []byte
	derive    IndexFunc[V]
}

func NewMultiIndex[V any](namespace string, derive IndexFunc[V]) MultiIndex[V] {
	return MultiIndex[V]{namespace: []byte(namespace), derive: derive}
}

func (mi MultiIndex[V]) physical(idxValue, pk KeyPart) []byte {
	out := make([]byte, 0, len(mi.namespace)+32)
	out = append(out, mi.namespace...)
	out = append(out, EncodeKey(idxValue, pk)...)
	return out
}

func (mi MultiIndex[V]) insert(s store.Store, pk KeyPart, v V) error {
	return s.Write(mi.physical(mi.derive(v), pk), pk.Raw())
}

func (mi MultiIndex[V]) remove(s store.Store, pk KeyPart, v V) error {
	return s.Remove(mi.physical(mi.derive(v), pk))
}

// PrimaryKeys returns every primary key currently indexed under idxValue,
// in ascending order of their raw encoding.
func (mi MultiIndex[V]) PrimaryKeys(s store.Store, idxValue KeyPart) ([][]byte, error) {
	base := make([]byte, 0, len(mi.namespace)+16)
	base = append(base, mi.namespace...)
	base = append(base, EncodeKeyPrefix(idxValue)...)
	upper := store.IncrementBytes(base)

	it, err := s.Scan(base, upper, store.Ascending)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out [][]byte
	for it.Valid() {
		out = append(out, append([]byte(nil), it.Value()...))
		it.Next()
	}
	return out, nil
}

// IndexedMap is a primary Map[V] plus a set of MultiIndex secondary
// indexes, kept consistent with the primary on every Save/Remove (§4.2:
// "secondary index entries are maintained atomically with primary
// writes" — atomic here means "within the same cached-layer write batch",
// since core/store.Store itself has no multi-key transaction primitive
// beyond the CacheStore overlay the caller is expected to already be
// inside).
type IndexedMap[V any] struct {
	Primary Map[V]
	indexes []MultiIndex[V]
}

func NewIndexedMap[V any](namespace string, indexes ...MultiIndex[V]) IndexedMap[V] {
	return IndexedMap[V]{Primary: NewMap[V](namespace), indexes: indexes}
}

func (im IndexedMap[V]) Load(s store.Store, pk KeyPart) (V, error) {
	return im.Primary.Load(s, pk)
}

func (im IndexedMap[V]) MayLoad(s store.Store, pk KeyPart) (V, bool, error) {
	return im.Primary.MayLoad(s, pk)
}

// Save writes the primary entry and re-homes every secondary index entry:
// if an old value already exists at pk its stale index rows are removed
// first, so a changed index value doesn't leave a dangling old row behind.
func (im IndexedMap[V]) Save(s store.Store, pk KeyPart, v V) error {
	old, found, err := im.Primary.MayLoad(s, pk)
	if err != nil {
		return err
	}
	if found {
		for _, idx := range im.indexes {
			if err := idx.remove(s, pk, old); err != nil {
				return fmt.Errorf("collections: remove stale index entry: %w", err)
			}
		}
	}
	if err := im.Primary.Save(s, v, pk); err != nil {
		return err
	}
	for _, idx := range im.indexes {
		if err := idx.insert(s, pk, v); err != nil {
			return fmt.Errorf("collections: insert index entry: %w", err)
		}
	}
	return nil
}

func (im IndexedMap[V]) Remove(s store.Store, pk KeyPart) error {
	old, found, err := im.Primary.MayLoad(s, pk)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	for _, idx := range im.indexes {
		if err := idx.remove(s, pk, old); err != nil {
			return fmt.Errorf("collections: remove index entry: %w", err)
		}
	}
	return im.Primary.Remove(s, pk)
}
