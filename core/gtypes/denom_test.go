package gtypes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDenomValid(t *testing.T) {
	d, err := NewDenom("uatom")
	require.NoError(t, err)
	require.Equal(t, "uatom", d.String())

	d, err = NewDenom("ibc/27394FB092D2")
	require.NoError(t, err)
	require.Equal(t, "ibc/27394FB092D2", d.String())
}

func TestNewDenomInvalid(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "too short or too long"},
		{"too long", string(make([]byte, MaxDenomLength+1)), "too short or too long"},
		{"empty subdenom", "a//b", "empty subdenom"},
		{"non-alphanumeric", "u-atom", "non-alphanumeric"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDenom(tc.in)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
