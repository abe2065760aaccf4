package store

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/sirupsen/logrus"
)

// Physical key-space prefixes distinguishing the two column families §4.1
// describes. Pebble has no native column-family concept (unlike RocksDB,
// which original_source uses); the teacher's Ledger similarly flattens all
// state into one physical keyspace, so the same convention — a short prefix
// byte — is used here to separate them within one pebble.DB.
var (
	stateFamilyPrefix = []byte{0x01}
	treeFamilyPrefix  = []byte{0x02}
	metaFamilyPrefix  = []byte{0x03} // LAST_FINALIZED_BLOCK and similar singletons
)

// Backend is the persistent, ordered, multi-version KV database of §4.1,
// implemented over cockroachdb/pebble (grounded on
// other_examples/manifests/tclemos-pebble-bench), adapting the teacher's
// hand-rolled WAL+snapshot Ledger persistence idiom to pebble's own
// write-batch durability.
type Backend struct {
	db  *pebble.DB
	log *logrus.Logger
}

// Open opens (creating if absent) a Backend at path.
func Open(path string, log *logrus.Logger) (*Backend, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open pebble at %s: %w", path, err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithField("path", path).Info("store: backend opened")
	return &Backend{db: db, log: log}, nil
}

func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("store: close pebble: %w", err)
	}
	return nil
}

func stateKey(userKey []byte, version uint64) []byte {
	out := make([]byte, 1+2+len(userKey)+8)
	out[0] = stateFamilyPrefix[0]
	binary.BigEndian.PutUint16(out[1:3], uint16(len(userKey)))
	copy(out[3:3+len(userKey)], userKey)
	binary.BigEndian.PutUint64(out[3+len(userKey):], version)
	return out
}

func treeKey(userKey []byte) []byte {
	out := make([]byte, 1+len(userKey))
	out[0] = treeFamilyPrefix[0]
	copy(out[1:], userKey)
	return out
}

func metaKey(name string) []byte {
	out := make([]byte, 1+len(name))
	out[0] = metaFamilyPrefix[0]
	copy(out[1:], name)
	return out
}

// Batch accumulates pending mutations to flush atomically at a new version
// (§4.1: "flush(batch) atomically applies a write batch to both families at
// a new version"). It is the type CacheStore.Disassemble produces.
type Batch struct {
	StateWrites  map[string][]byte
	StateDeletes map[string]struct{}
	TreeWrites   map[string][]byte
	TreeDeletes  map[string]struct{}
}

func NewBatch() *Batch {
	return &Batch{
		StateWrites:  make(map[string][]byte),
		StateDeletes: make(map[string]struct{}),
		TreeWrites:   make(map[string][]byte),
		TreeDeletes:  make(map[string]struct{}),
	}
}

// Flush atomically applies batch to both families at version, and records
// version as the latest committed version under a meta key.
func (b *Backend) Flush(batch *Batch, version uint64) error {
	pb := b.db.NewBatch()
	defer pb.Close()

	for k, v := range batch.StateWrites {
		if err := pb.Set(stateKey([]byte(k), version), v, nil); err != nil {
			return fmt.Errorf("store: batch set state key: %w", err)
		}
	}
	for k := range batch.StateDeletes {
		// a deletion is recorded as a tombstone value so historical reads at
		// earlier versions remain intact; distinguished from "absent" via a
		// nil-length marker recognized by stateView.Read.
		if err := pb.Set(stateKey([]byte(k), version), nil, nil); err != nil {
			return fmt.Errorf("store: batch tombstone state key: %w", err)
		}
	}
	for k, v := range batch.TreeWrites {
		if err := pb.Set(treeKey([]byte(k)), v, nil); err != nil {
			return fmt.Errorf("store: batch set tree key: %w", err)
		}
	}
	for k := range batch.TreeDeletes {
		if err := pb.Delete(treeKey([]byte(k)), nil); err != nil {
			return fmt.Errorf("store: batch delete tree key: %w", err)
		}
	}

	var verBuf [8]byte
	binary.BigEndian.PutUint64(verBuf[:], version)
	if err := pb.Set(metaKey("latest_version"), verBuf[:], nil); err != nil {
		return fmt.Errorf("store: batch set latest version: %w", err)
	}

	if err := pb.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("store: commit batch: %w", err)
	}
	return nil
}

// LatestVersion returns the most recently flushed version, or 0 if none.
func (b *Backend) LatestVersion() (uint64, error) {
	v, closer, err := b.db.Get(metaKey("latest_version"))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: read latest version: %w", err)
	}
	defer closer.Close()
	return binary.BigEndian.Uint64(v), nil
}

// StateView returns a Store reading the state family as of version (a
// read-only historical view; writes through it are rejected).
func (b *Backend) StateView(version uint64) Store {
	return &stateView{backend: b, version: version}
}

// TreeView returns a Store over the tree family (latest-only, used by the
// JMT to store nodes).
func (b *Backend) TreeView() Store {
	return &treeView{backend: b}
}

type stateView struct {
	backend *Backend
	version uint64
}

func (s *stateView) Read(key []byte) ([]byte, bool, error) {
	upper := stateKey(key, s.version+1)
	it, err := s.backend.db.NewIter(&pebble.IterOptions{
		LowerBound: stateKey(key, 0),
		UpperBound: upper,
	})
	if err != nil {
		return nil, false, fmt.Errorf("store: new iter: %w", err)
	}
	defer it.Close()
	if !it.Last() || !hasKeyPrefix(it.Key(), key) {
		return nil, false, nil
	}
	v := it.Value()
	if v == nil {
		return nil, false, nil // tombstone
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func hasKeyPrefix(phys, userKey []byte) bool {
	if len(phys) < 3+len(userKey) {
		return false
	}
	klen := binary.BigEndian.Uint16(phys[1:3])
	if int(klen) != len(userKey) {
		return false
	}
	for i, b := range userKey {
		if phys[3+i] != b {
			return false
		}
	}
	return true
}

func (s *stateView) Scan(min, max []byte, order Order) (Iterator, error) {
	// A historical range scan over the most-recent-per-key view is not
	// required by any operation in this spec (only point reads need
	// versioning); range scans over state always target the latest
	// version, i.e. version == latest.
	lower := stateKey(orEmpty(min), 0)
	var upper []byte
	if max != nil {
		upper = stateKey(max, 0)
	} else {
		upper = []byte{stateFamilyPrefix[0] + 1}
	}
	it, err := s.backend.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("store: new iter: %w", err)
	}
	return newLatestPerKeyIterator(it, order), nil
}

func orEmpty(b []byte) []byte {
	if b == nil {
		return nil
	}
	return b
}

func (s *stateView) Write(key, value []byte) error      { return fmt.Errorf("store: historical view is read-only") }
func (s *stateView) Remove(key []byte) error             { return fmt.Errorf("store: historical view is read-only") }
func (s *stateView) RemoveRange(min, max []byte) error    { return fmt.Errorf("store: historical view is read-only") }

type treeView struct{ backend *Backend }

func (t *treeView) Read(key []byte) ([]byte, bool, error) {
	v, closer, err := t.backend.db.Get(treeKey(key))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read tree key: %w", err)
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t *treeView) Scan(min, max []byte, order Order) (Iterator, error) {
	lower := treeKey(orEmpty(min))
	var upper []byte
	if max != nil {
		upper = treeKey(max)
	} else {
		upper = []byte{treeFamilyPrefix[0] + 1}
	}
	it, err := t.backend.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("store: new iter: %w", err)
	}
	return &pebbleIterator{it: it, order: order, stripPrefix: 1}, nil
}

func (t *treeView) Write(key, value []byte) error {
	if err := t.backend.db.Set(treeKey(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("store: write tree key: %w", err)
	}
	return nil
}

func (t *treeView) Remove(key []byte) error {
	if err := t.backend.db.Delete(treeKey(key), pebble.Sync); err != nil {
		return fmt.Errorf("store: delete tree key: %w", err)
	}
	return nil
}

func (t *treeView) RemoveRange(min, max []byte) error {
	lower := treeKey(orEmpty(min))
	var upper []byte
	if max != nil {
		upper = treeKey(max)
	} else {
		upper = []byte{treeFamilyPrefix[0] + 1}
	}
	if err := t.backend.db.DeleteRange(lower, upper, pebble.Sync); err != nil {
		return fmt.Errorf("store: delete tree range: %w", err)
	}
	return nil
}
