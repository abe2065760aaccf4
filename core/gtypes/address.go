package gtypes

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// AddressLength is the fixed width of an Address: RIPEMD160 output (§6).
const AddressLength = 20

// Address is a fixed-width opaque identifier derived deterministically from
// either a genesis seed + code hash + salt, or from the creator address +
// code hash + salt (§3). Addresses are content-addressed: the same inputs
// always yield the same address. Derivation itself lives in
// core/cryptoprims (DeriveAddress) to keep this package free of crypto deps.
type Address [AddressLength]byte

// ZeroAddress is the all-zero sentinel, never a valid contract address.
var ZeroAddress = Address{}

// GenesisSender is the fixed sentinel sender used for every genesis message
// (§4.4 init_chain, step 2).
var GenesisSender = Address{0xff} // all-0xff sentinel; init fills in the remaining bytes

func init() {
	for i := 1; i < AddressLength; i++ {
		GenesisSender[i] = 0xff
	}
}

func AddressFromSlice(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("address: expected %d bytes, got %d", AddressLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func AddressFromHex(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("address: decode hex: %w", err)
	}
	return AddressFromSlice(b)
}

func (a Address) Bytes() []byte { return a[:] }

func (a Address) IsZero() bool { return a == ZeroAddress }

func (a Address) String() string { return hex.EncodeToString(a[:]) }

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := AddressFromHex(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
