package collections

import "grugchain/core/store"

// empty is the Set value convention: an empty struct, stored as the
// two-byte JSON value "{}", so Map[empty]'s generic storage still
// round-trips cleanly.
type empty struct{}

// Set is a Map[K, ()] with an empty-value convention (§4.2).
type Set struct {
	m Map[empty]
}

func NewSet(namespace string) Set {
	return Set{m: NewMap[empty](namespace)}
}

func (s Set) Has(st store.Store, key ...KeyPart) (bool, error) {
	return s.m.Has(st, key...)
}

func (s Set) Insert(st store.Store, key ...KeyPart) error {
	return s.m.Save(st, empty{}, key...)
}

func (s Set) Remove(st store.Store, key ...KeyPart) error {
	return s.m.Remove(st, key...)
}

// Range returns every member key in [min, max) under prefix, in the
// requested order.
func (s Set) Range(st store.Store, prefix []KeyPart, min, max Bound, order store.Order) ([][]byte, error) {
	entries, err := s.m.Range(st, prefix, min, max, order)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out, nil
}
