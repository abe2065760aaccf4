package store

import "github.com/cockroachdb/pebble"

// pebbleIterator adapts a pebble.Iterator to the Store Iterator interface,
// optionally reversing for Descending order and stripping a fixed-length
// family prefix byte from returned keys.
type pebbleIterator struct {
	it          *pebble.Iterator
	order       Order
	started     bool
	stripPrefix int
}

func (p *pebbleIterator) ensureStarted() {
	if p.started {
		return
	}
	p.started = true
	if p.order == Descending {
		p.it.Last()
	} else {
		p.it.First()
	}
}

func (p *pebbleIterator) Valid() bool {
	p.ensureStarted()
	return p.it.Valid()
}

func (p *pebbleIterator) Next() {
	p.ensureStarted()
	if p.order == Descending {
		p.it.Prev()
	} else {
		p.it.Next()
	}
}

func (p *pebbleIterator) Key() []byte {
	k := p.it.Key()
	return k[p.stripPrefix:]
}

func (p *pebbleIterator) Value() []byte {
	v := p.it.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (p *pebbleIterator) Close() error { return p.it.Close() }

// latestPerKeyIterator walks the state family's (userKey, version) physical
// keyspace and yields one logical entry per userKey — the highest version
// seen — skipping tombstones (nil values). Physical keys sort first by
// userKey, then by version ascending, so a forward scan naturally groups
// each key's version history into a contiguous run; this takes the run's
// last (= highest-version) entry.
//
// Range scans over state always reflect the latest committed version;
// historical point reads (Backend.stateView.Read) are exact-versioned.
type latestPerKeyIterator struct {
	order  Order
	keys   [][]byte
	values [][]byte
	pos    int
}

func newLatestPerKeyIterator(it *pebble.Iterator, order Order) *latestPerKeyIterator {
	defer it.Close()

	var keys, values [][]byte
	var curKey []byte
	var curVal []byte
	haveCur := false

	for ok := it.First(); ok; ok = it.Next() {
		phys := it.Key()
		userKey, ok := decodeStateUserKey(phys)
		if !ok {
			continue
		}
		if haveCur && bytesEqual(userKey, curKey) {
			// later version for the same key within this run; overwrite.
			curVal = cloneOrNil(it.Value())
			continue
		}
		if haveCur {
			if curVal != nil {
				keys = append(keys, curKey)
				values = append(values, curVal)
			}
		}
		curKey = append([]byte(nil), userKey...)
		curVal = cloneOrNil(it.Value())
		haveCur = true
	}
	if haveCur && curVal != nil {
		keys = append(keys, curKey)
		values = append(values, curVal)
	}

	if order == Descending {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
			values[i], values[j] = values[j], values[i]
		}
	}

	return &latestPerKeyIterator{order: order, keys: keys, values: values}
}

func cloneOrNil(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func bytesEqual(a, b []byte) bool { return bytesCompare(a, b) == 0 }

func decodeStateUserKey(phys []byte) ([]byte, bool) {
	if len(phys) < 3 {
		return nil, false
	}
	klen := int(phys[1])<<8 | int(phys[2])
	if len(phys) < 3+klen+8 {
		return nil, false
	}
	return phys[3 : 3+klen], true
}

func (l *latestPerKeyIterator) Valid() bool { return l.pos < len(l.keys) }

func (l *latestPerKeyIterator) Next() { l.pos++ }

func (l *latestPerKeyIterator) Key() []byte { return l.keys[l.pos] }

func (l *latestPerKeyIterator) Value() []byte { return l.values[l.pos] }

func (l *latestPerKeyIterator) Close() error { return nil }
