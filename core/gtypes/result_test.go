package gtypes

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenericResultRoundTrip(t *testing.T) {
	ok := Ok(42)
	require.True(t, ok.IsOk())
	v, err := ok.Into()
	require.NoError(t, err)
	require.Equal(t, 42, v)

	bad := FromError(0, errors.New("boom"))
	require.True(t, bad.IsErr())
	_, err = bad.Into()
	require.EqualError(t, err, "boom")
}

func TestGenericResultHelpers(t *testing.T) {
	ok := Ok("hello")
	got := ok.ShouldSucceed(t)
	require.Equal(t, "hello", got)

	failed := Err[string]("denom too long")
	errStr := failed.ShouldFail(t)
	require.Equal(t, "denom too long", errStr)
	failed.ShouldFailWithError(t, "too long", strings.Contains)
}
