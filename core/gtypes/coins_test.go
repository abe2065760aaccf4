package gtypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoinsCanonicalOrder(t *testing.T) {
	c := NewCoins()
	require.NoError(t, c.Insert(Denom("uosmo"), NewUint128FromUint64(5)))
	require.NoError(t, c.Insert(Denom("uatom"), NewUint128FromUint64(10)))

	require.Equal(t, []Denom{"uatom", "uosmo"}, c.SortedDenoms())
}

func TestCoinsRejectsZero(t *testing.T) {
	c := NewCoins()
	err := c.Insert(Denom("uatom"), NewUint128FromUint64(0))
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestCoinsJSONRoundTrip(t *testing.T) {
	c := NewCoins()
	require.NoError(t, c.Insert(Denom("uatom"), NewUint128FromUint64(10)))
	require.NoError(t, c.Insert(Denom("uosmo"), NewUint128FromUint64(5)))

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded Coins
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, c.SortedDenoms(), decoded.SortedDenoms())
}
