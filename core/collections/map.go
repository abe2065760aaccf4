package collections

import (
	"encoding/json"
	"fmt"

	"grugchain/core/store"
)

// Map is a keyed collection (§4.2) namespaced under a fixed prefix, with
// compound keys built by EncodeKey so prefix scans over a leading
// component are well-defined.
type Map[V any] struct {
	namespace []byte
}

func NewMap[V any](namespace string) Map[V] {
	return Map[V]{namespace: []byte(namespace)}
}

func (m Map[V]) physical(parts ...KeyPart) []byte {
	out := make([]byte, 0, len(m.namespace)+32)
	out = append(out, m.namespace...)
	out = append(out, EncodeKey(parts...)...)
	return out
}

func (m Map[V]) Load(s store.Store, key ...KeyPart) (V, error) {
	var out V
	raw, found, err := s.Read(m.physical(key...))
	if err != nil {
		return out, err
	}
	if !found {
		return out, ErrNotFound
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("collections: decode map entry: %w", err)
	}
	return out, nil
}

func (m Map[V]) MayLoad(s store.Store, key ...KeyPart) (V, bool, error) {
	v, err := m.Load(s, key...)
	if err == ErrNotFound {
		var zero V
		return zero, false, nil
	}
	return v, err == nil, err
}

func (m Map[V]) Has(s store.Store, key ...KeyPart) (bool, error) {
	_, found, err := s.Read(m.physical(key...))
	return found, err
}

func (m Map[V]) Save(s store.Store, value V, key ...KeyPart) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("collections: encode map entry: %w", err)
	}
	return s.Write(m.physical(key...), raw)
}

func (m Map[V]) Remove(s store.Store, key ...KeyPart) error {
	return s.Remove(m.physical(key...))
}

// Entry is one (key, value) pair yielded by Range, carrying the raw
// suffix key bytes (everything after the namespace) since a caller must
// parse back whichever KeyPart shape it used to build the scan.
type Entry[V any] struct {
	Key   []byte
	Value V
}

// Range iterates entries whose key falls in [min, max) under the given
// (possibly empty) leading key parts, honoring Bound and store.Order
// (§4.2, §5 determinism: "iteration order over typed maps is the
// lexicographic order of their encoded keys").
func (m Map[V]) Range(s store.Store, prefix []KeyPart, min, max Bound, order store.Order) ([]Entry[V], error) {
	base := make([]byte, 0, len(m.namespace)+16)
	base = append(base, m.namespace...)
	base = append(base, EncodeKeyPrefix(prefix...)...)
	lower, upper := Range(min, max)
	scanMin := concat(base, lower)
	var scanMax []byte
	if upper != nil {
		scanMax = concat(base, upper)
	} else {
		scanMax = store.IncrementBytes(base)
	}

	it, err := s.Scan(scanMin, scanMax, order)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Entry[V]
	for it.Valid() {
		key := it.Key()
		if len(key) < len(m.namespace) {
			it.Next()
			continue
		}
		var v V
		if err := json.Unmarshal(it.Value(), &v); err != nil {
			return nil, fmt.Errorf("collections: decode map entry during range: %w", err)
		}
		out = append(out, Entry[V]{Key: append([]byte(nil), key[len(m.namespace):]...), Value: v})
		it.Next()
	}
	return out, nil
}

func concat(a, b []byte) []byte {
	if b == nil {
		return a
	}
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
