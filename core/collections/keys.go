// Package collections implements the typed storage layer of §4.2: Item,
// Map, IndexedMap/MultiIndex, and Set, all built over core/store.Store so
// the same container works against a committed Backend view, a CacheStore
// overlay, a PrefixStore substore, or a test mock (§9 Design Notes: "a
// small set of methods behind a vtable-like abstraction").
package collections

import (
	"encoding/binary"
	"fmt"

	"grugchain/core/store"
)

// KeyPart is one component of a compound Map key. Implementations encode
// themselves either length-prefixed (non-terminal position) or raw
// (terminal position); see EncodeKey.
type KeyPart interface {
	// Raw returns this component's canonical byte encoding. Unsigned
	// integer implementations must return a fixed-width big-endian
	// encoding so byte order matches numeric order (§4.2).
	Raw() []byte
}

// StringKey and BytesKey are length-prefixed KeyParts for non-terminal
// string/byte-slice components (§4.2: "strings and byte slices use
// length-prefixing for non-terminal positions").
type StringKey string

func (s StringKey) Raw() []byte { return []byte(s) }

type BytesKey []byte

func (b BytesKey) Raw() []byte { return b }

// U8Key, U16Key, U32Key, U64Key are fixed-width big-endian KeyParts so
// iteration order matches numeric order (§4.2).
type U8Key uint8

func (k U8Key) Raw() []byte { return []byte{byte(k)} }

type U16Key uint16

func (k U16Key) Raw() []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(k))
	return b[:]
}

type U32Key uint32

func (k U32Key) Raw() []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(k))
	return b[:]
}

type U64Key uint64

func (k U64Key) Raw() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(k))
	return b[:]
}

// EncodeKey is the "prefix-all-but-last" scheme §9's Open Question
// resolves new storage types to: every component except the last is
// preceded by a 2-byte big-endian length, and the last is written raw.
// This makes a prefix scan over (a, *) well-defined: no shorter key can be
// a byte-prefix of a longer one once every non-terminal length is pinned
// down explicitly (grounded on original_source crates/sdk/src/map.rs
// encode_length, crates/storage/src/indexes.rs for why the terminal
// component is left unprefixed: it's what range iteration scans over).
func EncodeKey(parts ...KeyPart) []byte {
	var out []byte
	for i, p := range parts {
		raw := p.Raw()
		if i == len(parts)-1 {
			out = append(out, raw...)
			continue
		}
		if len(raw) > 0xffff {
			panic(fmt.Sprintf("collections: key component too long to length-prefix: %d bytes", len(raw)))
		}
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(raw)))
		out = append(out, lenBuf[:]...)
		out = append(out, raw...)
	}
	return out
}

// EncodeKeyPrefix length-prefixes every part, with no terminal exception:
// used to build the scan prefix for a leading subset of a compound key
// (every part in that subset is, by construction, non-terminal — there is
// always at least one more component after it, even if that component is
// left unbound by the scan). EncodeKey itself cannot be reused here since
// it always treats its last argument as the raw terminal component.
func EncodeKeyPrefix(parts ...KeyPart) []byte {
	var out []byte
	for _, p := range parts {
		raw := p.Raw()
		if len(raw) > 0xffff {
			panic(fmt.Sprintf("collections: key component too long to length-prefix: %d bytes", len(raw)))
		}
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(raw)))
		out = append(out, lenBuf[:]...)
		out = append(out, raw...)
	}
	return out
}

// EncodeKeyLegacy is the length-prefix-every-component scheme §9 names as
// retained only for backward compatibility with state written before the
// prefix-all-but-last scheme existed. No new container may use it; it
// exists solely so a migration can re-decode old keys and re-write them
// under EncodeKey.
func EncodeKeyLegacy(parts ...KeyPart) []byte {
	var out []byte
	for _, p := range parts {
		raw := p.Raw()
		if len(raw) > 0xffff {
			panic(fmt.Sprintf("collections: key component too long to length-prefix: %d bytes", len(raw)))
		}
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(raw)))
		out = append(out, lenBuf[:]...)
		out = append(out, raw...)
	}
	return out
}

// BoundKind tags Bound's three variants.
type BoundKind int

const (
	Unbounded BoundKind = iota
	Inclusive
	Exclusive
)

// Bound is `Inclusive(K) | Exclusive(K) | Unbounded` (§4.2); every range
// iterator accepts a (min, max, order) triple built from Bounds.
type Bound struct {
	Kind BoundKind
	Raw  []byte // the encoded key component; unused when Kind == Unbounded
}

func InclusiveBound(p KeyPart) Bound { return Bound{Kind: Inclusive, Raw: p.Raw()} }
func ExclusiveBound(p KeyPart) Bound { return Bound{Kind: Exclusive, Raw: p.Raw()} }
func UnboundedBound() Bound          { return Bound{Kind: Unbounded} }

// rawMin translates a lower Bound into a store.Scan-compatible inclusive
// lower bound: Exclusive bumps to the byte-successor of the raw key so the
// key itself is excluded (store.Scan's min is always inclusive).
func (b Bound) rawMin() []byte {
	switch b.Kind {
	case Unbounded:
		return nil
	case Inclusive:
		return b.Raw
	case Exclusive:
		return store.IncrementBytes(b.Raw)
	default:
		panic("collections: unknown bound kind")
	}
}

// rawMax translates an upper Bound into a store.Scan-compatible exclusive
// upper bound: Inclusive bumps to the byte-successor of the raw key so the
// key itself is included (store.Scan's max is always exclusive).
func (b Bound) rawMax() []byte {
	switch b.Kind {
	case Unbounded:
		return nil
	case Inclusive:
		return store.IncrementBytes(b.Raw)
	case Exclusive:
		return b.Raw
	default:
		panic("collections: unknown bound kind")
	}
}

// Range translates (min, max) Bounds into a store.Scan-ready [lower,
// upper) pair.
func Range(min, max Bound) (lower, upper []byte) {
	return min.rawMin(), max.rawMax()
}
