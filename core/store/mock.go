package store

import "sort"

// MemStore is a plain in-memory Store, grounded on original_source
// cw_std::MockStorage — used by package tests that don't need a real pebble
// database on disk.
type MemStore struct {
	data map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Read(key []byte) ([]byte, bool, error) {
	v, ok := m.data[string(key)]
	return v, ok, nil
}

func (m *MemStore) Write(key, value []byte) error {
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemStore) Remove(key []byte) error {
	delete(m.data, string(key))
	return nil
}

func (m *MemStore) RemoveRange(min, max []byte) error {
	for k := range m.data {
		if inRange([]byte(k), min, max) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *MemStore) Scan(min, max []byte, order Order) (Iterator, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if inRange([]byte(k), min, max) {
			keys = append(keys, k)
		}
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
		outVals[i] = m.data[k]
	}
	return newSliceIterator(outKeys, outVals), nil
}
