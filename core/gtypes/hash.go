package gtypes

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashLength is the width in bytes of every Hash value (§3).
const HashLength = 32

// Hash is a 32-byte SHA-256 digest. Code identifiers, content identifiers,
// Merkle node hashes, transaction hashes, and block hashes all share this
// type.
type Hash [HashLength]byte

// ZeroHash is the fixed hash missing JMT children hash to (§4.1).
var ZeroHash = Hash{}

// HashBytes returns SHA256(data).
func HashBytes(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// HashFromSlice copies b into a Hash, erroring if the length doesn't match.
func HashFromSlice(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashLength {
		return h, fmt.Errorf("hash: expected %d bytes, got %d", HashLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a hex-encoded hash (§6: fixed-width byte arrays use hex).
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("hash: decode hex: %w", err)
	}
	return HashFromSlice(b)
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) IsZero() bool { return h == ZeroHash }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := HashFromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
