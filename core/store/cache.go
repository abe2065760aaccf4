package store

import "sort"

// op records a pending mutation in a CacheStore overlay.
type op struct {
	deleted bool
	value   []byte
}

// CacheStore is the "cached layer" of the GLOSSARY: a thin in-memory overlay
// over a backing Store that records writes and deletes; committing merges
// them into the backing store, discarding simply drops the overlay. It
// backs every per-transaction (C1) and per-sub-message (C2/C_sub) scope in
// §4.4/§4.5.
type CacheStore struct {
	backing Store
	pending map[string]op
}

func NewCacheStore(backing Store) *CacheStore {
	return &CacheStore{backing: backing, pending: make(map[string]op)}
}

func (c *CacheStore) Read(key []byte) ([]byte, bool, error) {
	if o, ok := c.pending[string(key)]; ok {
		if o.deleted {
			return nil, false, nil
		}
		return o.value, true, nil
	}
	return c.backing.Read(key)
}

func (c *CacheStore) Write(key, value []byte) error {
	c.pending[string(key)] = op{value: append([]byte(nil), value...)}
	return nil
}

func (c *CacheStore) Remove(key []byte) error {
	c.pending[string(key)] = op{deleted: true}
	return nil
}

func (c *CacheStore) RemoveRange(min, max []byte) error {
	it, err := c.Scan(min, max, Ascending)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Valid() {
		c.pending[string(it.Key())] = op{deleted: true}
		it.Next()
	}
	return nil
}

// Scan merges the backing store's range with this layer's pending writes
// and deletes, honoring the overlay's precedence.
func (c *CacheStore) Scan(min, max []byte, order Order) (Iterator, error) {
	backIt, err := c.backing.Scan(min, max, Ascending)
	if err != nil {
		return nil, err
	}
	merged := make(map[string][]byte)
	for backIt.Valid() {
		merged[string(backIt.Key())] = backIt.Value()
		backIt.Next()
	}
	_ = backIt.Close()

	for k, o := range c.pending {
		if !inRange([]byte(k), min, max) {
			continue
		}
		if o.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = o.value
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if order == Descending {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	outKeys := make([][]byte, len(keys))
	outVals := make([][]byte, len(keys))
	for i, k := range keys {
		outKeys[i] = []byte(k)
		outVals[i] = merged[k]
	}
	return newSliceIterator(outKeys, outVals), nil
}

// Consume copies the overlay's pending writes and deletes into a fresh map
// pair, leaving the overlay unchanged, for callers that need to fold this layer's pending writes into a parent
// CacheStore rather than the physical backend (nested sub-message layers,
// §4.5).
func (c *CacheStore) Consume() (writes map[string][]byte, deletes map[string]struct{}) {
	writes = make(map[string][]byte)
	deletes = make(map[string]struct{})
	for k, o := range c.pending {
		if o.deleted {
			deletes[k] = struct{}{}
		} else {
			writes[k] = o.value
		}
	}
	return writes, deletes
}

// Commit applies the overlay's pending writes/deletes onto the backing
// store. Used when the backing store is itself a CacheStore (nested
// layers); for the outermost layer over the physical Backend, use
// Disassemble + Backend.Flush instead so the write lands in one atomic
// pebble batch.
func (c *CacheStore) Commit() error {
	for k, o := range c.pending {
		if o.deleted {
			if err := c.backing.Remove([]byte(k)); err != nil {
				return err
			}
			continue
		}
		if err := c.backing.Write([]byte(k), o.value); err != nil {
			return err
		}
	}
	c.pending = make(map[string]op)
	return nil
}

// Discard drops every pending mutation without touching the backing store
// (§4.5 step 4: rollback atomicity).
func (c *CacheStore) Discard() {
	c.pending = make(map[string]op)
}

// Disassemble converts the overlay into a Backend Batch, used by the
// outermost per-transaction layer (C1) right before Backend.Flush (§4.1,
// §4.4 step 7).
func (c *CacheStore) Disassemble() *Batch {
	b := NewBatch()
	for k, o := range c.pending {
		if o.deleted {
			b.StateDeletes[k] = struct{}{}
		} else {
			b.StateWrites[k] = o.value
		}
	}
	return b
}
