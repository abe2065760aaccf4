package store

// PrefixStore is the per-contract namespaced substore of §4.1: every
// contract sees a storage namespace exclusively its own, the physical key
// being "w" || contract_address || contract_key. It is the only storage
// handle exposed to guest code; no other component may strip the prefix
// and talk to the backing store directly on the guest's behalf.
type PrefixStore struct {
	backing Store
	prefix  []byte
}

// SubstoreTag is the "w" byte named in §4.1.
const SubstoreTag = 'w'

func NewPrefixStore(backing Store, contractAddr []byte) *PrefixStore {
	prefix := make([]byte, 0, 1+len(contractAddr))
	prefix = append(prefix, SubstoreTag)
	prefix = append(prefix, contractAddr...)
	return &PrefixStore{backing: backing, prefix: prefix}
}

func (p *PrefixStore) physical(key []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(key))
	out = append(out, p.prefix...)
	out = append(out, key...)
	return out
}

func (p *PrefixStore) Read(key []byte) ([]byte, bool, error) {
	return p.backing.Read(p.physical(key))
}

func (p *PrefixStore) Write(key, value []byte) error {
	return p.backing.Write(p.physical(key), value)
}

func (p *PrefixStore) Remove(key []byte) error {
	return p.backing.Remove(p.physical(key))
}

func (p *PrefixStore) RemoveRange(min, max []byte) error {
	lower, upper := p.translateBounds(min, max)
	return p.backing.RemoveRange(lower, upper)
}

// translateBounds maps substore-relative [min, max) bounds to physical
// bounds, honoring nil-unbounded ends by falling back to the prefix's own
// span (grounded on original_source crates/app/src/providers.rs
// prefixed_range_bounds / increment_last_byte).
func (p *PrefixStore) translateBounds(min, max []byte) (lower, upper []byte) {
	if min == nil {
		lower = p.prefix
	} else {
		lower = p.physical(min)
	}
	if max == nil {
		upper = IncrementBytes(p.prefix)
	} else {
		upper = p.physical(max)
	}
	return lower, upper
}

func (p *PrefixStore) Scan(min, max []byte, order Order) (Iterator, error) {
	lower, upper := p.translateBounds(min, max)
	inner, err := p.backing.Scan(lower, upper, order)
	if err != nil {
		return nil, err
	}
	return &stripPrefixIterator{inner: inner, prefixLen: len(p.prefix)}, nil
}

type stripPrefixIterator struct {
	inner     Iterator
	prefixLen int
}

func (s *stripPrefixIterator) Valid() bool { return s.inner.Valid() }
func (s *stripPrefixIterator) Next()       { s.inner.Next() }
func (s *stripPrefixIterator) Key() []byte { return s.inner.Key()[s.prefixLen:] }
func (s *stripPrefixIterator) Value() []byte { return s.inner.Value() }
func (s *stripPrefixIterator) Close() error  { return s.inner.Close() }
