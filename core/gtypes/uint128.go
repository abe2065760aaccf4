package gtypes

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// maxUint128 is 2^128 - 1, the ceiling for every Uint128 value. Determinism
// requires checked arithmetic (§5, §9) rather than relying on native
// overflow, so Uint128 is backed by math/big and every operation validates
// the result stays in range.
var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Uint128 is an unsigned 128-bit integer used for coin amounts and durations
// (§3, §9). The zero value is zero.
type Uint128 struct {
	v big.Int
}

func NewUint128FromUint64(x uint64) Uint128 {
	var u Uint128
	u.v.SetUint64(x)
	return u
}

// NewUint128FromString parses a base-10 decimal string (§6: integers beyond
// 32 bits are serialized as decimal strings).
func NewUint128FromString(s string) (Uint128, error) {
	var u Uint128
	bi, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return u, fmt.Errorf("uint128: invalid decimal string %q", s)
	}
	if bi.Sign() < 0 || bi.Cmp(maxUint128) > 0 {
		return u, fmt.Errorf("uint128: %q out of range", s)
	}
	u.v = *bi
	return u, nil
}

func (u Uint128) String() string { return u.v.String() }

func (u Uint128) IsZero() bool { return u.v.Sign() == 0 }

func (u Uint128) Cmp(other Uint128) int { return u.v.Cmp(&other.v) }

// CheckedAdd returns u+other, erroring on overflow past 2^128-1.
func (u Uint128) CheckedAdd(other Uint128) (Uint128, error) {
	var out Uint128
	out.v.Add(&u.v, &other.v)
	if out.v.Cmp(maxUint128) > 0 {
		return Uint128{}, fmt.Errorf("uint128: add overflow")
	}
	return out, nil
}

// CheckedSub returns u-other, erroring if the result would be negative.
func (u Uint128) CheckedSub(other Uint128) (Uint128, error) {
	var out Uint128
	out.v.Sub(&u.v, &other.v)
	if out.v.Sign() < 0 {
		return Uint128{}, fmt.Errorf("uint128: subtraction underflow")
	}
	return out, nil
}

// SaturatingSub returns u-other, clamped to zero instead of erroring.
func (u Uint128) SaturatingSub(other Uint128) Uint128 {
	out, err := u.CheckedSub(other)
	if err != nil {
		return Uint128{}
	}
	return out
}

// CheckedMul returns u*other, erroring on overflow past 2^128-1.
func (u Uint128) CheckedMul(other Uint128) (Uint128, error) {
	var out Uint128
	out.v.Mul(&u.v, &other.v)
	if out.v.Cmp(maxUint128) > 0 {
		return Uint128{}, fmt.Errorf("uint128: multiplication overflow")
	}
	return out, nil
}

// MulCeilRate computes ceil(u * numerator / denominator), used for gas-fee
// conversion (§8 property 2: withheld = ceil(gas_limit * fee_rate)).
func (u Uint128) MulCeilRate(numerator, denominator uint64) Uint128 {
	prod := new(big.Int).Mul(&u.v, big.NewInt(int64(numerator)))
	den := big.NewInt(int64(denominator))
	q, r := new(big.Int).QuoRem(prod, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	var out Uint128
	out.v = *q
	return out
}

func (u Uint128) Uint64() uint64 { return u.v.Uint64() }

func (u Uint128) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.v.String())
}

func (u *Uint128) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := NewUint128FromString(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// NonZero wraps a value with a non-zero invariant enforced at construction
// and deserialization (§3, grounded on original_source
// crates/types/src/non_zero.rs).
// Zeroer is implemented by types that know their own zero value, so NonZero
// can validate them generically.
type Zeroer interface {
	IsZero() bool
}

type NonZero[T Zeroer] struct {
	value T
}

// NewNonZero validates v is not the zero value and wraps it.
func NewNonZero[T Zeroer](v T) (NonZero[T], error) {
	var nz NonZero[T]
	if v.IsZero() {
		return nz, fmt.Errorf("non_zero: value must not be zero")
	}
	nz.value = v
	return nz, nil
}

func (nz NonZero[T]) Value() T { return nz.value }

func (nz NonZero[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(nz.value)
}

func (nz *NonZero[T]) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &nz.value); err != nil {
		return err
	}
	if z, ok := any(nz.value).(Zeroer); ok && z.IsZero() {
		return fmt.Errorf("non_zero: deserialized value is zero")
	}
	return nil
}
