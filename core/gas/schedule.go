package gas

// Schedule is the fixed cost table named in §4.3. Values are illustrative
// but fixed (determinism requires every validator use the same table);
// operators may not override them per block, only at genesis via a future
// protocol upgrade.
type Schedule struct {
	// Storage operations: base cost plus per-byte cost on key and value.
	DBReadBase    uint64
	DBWriteBase   uint64
	DBRemoveBase  uint64
	PerByteKey    uint64
	PerByteValue  uint64

	// Iterators.
	ScanBase uint64
	NextBase uint64

	// Cryptographic primitives (§4.6 import table).
	Sha256            uint64
	Sha512            uint64
	Sha3_256          uint64
	Keccak256         uint64
	Secp256k1Verify   uint64
	Secp256k1Recover  uint64
	Secp256r1Verify   uint64
	Ed25519Verify     uint64
	Ed25519BatchBase  uint64
	Ed25519BatchPerSig uint64
	Blake2s           uint64
	Blake2b           uint64
	Blake3            uint64

	// Cross-contract query: base cost of opening a nested instance; the
	// nested execution's own cost is separately accumulated (§4.3).
	QueryBase uint64
}

// DefaultSchedule is the schedule used by every node unless a future
// protocol upgrade migrates Config to carry its own.
var DefaultSchedule = Schedule{
	DBReadBase:   100,
	DBWriteBase:  200,
	DBRemoveBase: 100,
	PerByteKey:   1,
	PerByteValue: 1,

	ScanBase: 50,
	NextBase: 30,

	Sha256:             20,
	Sha512:             25,
	Sha3_256:           25,
	Keccak256:          20,
	Secp256k1Verify:    3_000,
	Secp256k1Recover:   4_000,
	Secp256r1Verify:    3_500,
	Ed25519Verify:      1_500,
	Ed25519BatchBase:   1_000,
	Ed25519BatchPerSig: 600,
	Blake2s:            15,
	Blake2b:            15,
	Blake3:             15,

	QueryBase: 500,
}

// DBReadCost computes the cost of a point read given the key length and, if
// found, the value length.
func (s Schedule) DBReadCost(keyLen, valueLen int) uint64 {
	return s.DBReadBase + uint64(keyLen)*s.PerByteKey + uint64(valueLen)*s.PerByteValue
}

func (s Schedule) DBWriteCost(keyLen, valueLen int) uint64 {
	return s.DBWriteBase + uint64(keyLen)*s.PerByteKey + uint64(valueLen)*s.PerByteValue
}

func (s Schedule) DBRemoveCost(keyLen int) uint64 {
	return s.DBRemoveBase + uint64(keyLen)*s.PerByteKey
}

func (s Schedule) Ed25519BatchCost(numSigs int) uint64 {
	return s.Ed25519BatchBase + uint64(numSigs)*s.Ed25519BatchPerSig
}
