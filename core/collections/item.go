package collections

import (
	"encoding/json"
	"errors"
	"fmt"

	"grugchain/core/store"
)

// ErrNotFound is returned by Item.Load and Map.Load when the key is absent.
var ErrNotFound = errors.New("collections: not found")

// Item is a single value at a fixed namespace (§4.2). Values are JSON
// encoded: no Borsh library exists anywhere in the example pack, and JSON
// is already the schema gtypes uses at every other serialization boundary
// in this module.
type Item[T any] struct {
	namespace []byte
}

func NewItem[T any](namespace string) Item[T] {
	return Item[T]{namespace: []byte(namespace)}
}

func (it Item[T]) Load(s store.Store) (T, error) {
	var out T
	raw, found, err := s.Read(it.namespace)
	if err != nil {
		return out, err
	}
	if !found {
		return out, ErrNotFound
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("collections: decode item %q: %w", it.namespace, err)
	}
	return out, nil
}

func (it Item[T]) MayLoad(s store.Store) (T, bool, error) {
	v, err := it.Load(s)
	if errors.Is(err, ErrNotFound) {
		var zero T
		return zero, false, nil
	}
	return v, err == nil, err
}

func (it Item[T]) Save(s store.Store, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("collections: encode item %q: %w", it.namespace, err)
	}
	return s.Write(it.namespace, raw)
}

func (it Item[T]) Remove(s store.Store) error {
	return s.Remove(it.namespace)
}

// Update passes the current value (or the zero value, if absent) to fn and
// persists the value fn returns.
func (it Item[T]) Update(s store.Store, fn func(current T, found bool) (T, error)) (T, error) {
	current, found, err := it.MayLoad(s)
	if err != nil {
		var zero T
		return zero, err
	}
	next, err := fn(current, found)
	if err != nil {
		return next, err
	}
	return next, it.Save(s, next)
}
