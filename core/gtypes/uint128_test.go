package gtypes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint128CheckedArithmetic(t *testing.T) {
	a := NewUint128FromUint64(10)
	b := NewUint128FromUint64(3)

	sum, err := a.CheckedAdd(b)
	require.NoError(t, err)
	require.Equal(t, "13", sum.String())

	diff, err := a.CheckedSub(b)
	require.NoError(t, err)
	require.Equal(t, "7", diff.String())

	_, err = b.CheckedSub(a)
	require.Error(t, err)

	require.True(t, b.SaturatingSub(a).IsZero())
}

func TestUint128MulCeilRate(t *testing.T) {
	// §8 property 2: withheld = ceil(gas_limit * fee_rate); modeled here as
	// a rational rate numerator/denominator to stay in integer arithmetic.
	gasLimit := NewUint128FromUint64(2_500_000)
	withheld := gasLimit.MulCeilRate(1, 10) // fee_rate = 0.1
	require.Equal(t, "250000", withheld.String())

	odd := NewUint128FromUint64(7)
	require.Equal(t, "3", odd.MulCeilRate(1, 3).String()) // ceil(7/3) = 3
}

func TestUint128Overflow(t *testing.T) {
	max, err := NewUint128FromString("340282366920938463463374607431768211455")
	require.NoError(t, err)
	_, err = max.CheckedAdd(NewUint128FromUint64(1))
	require.Error(t, err)
}
