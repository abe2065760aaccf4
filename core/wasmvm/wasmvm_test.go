package wasmvm

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasmerio/wasmer-go/wasmer"

	"grugchain/core/gas"
	"grugchain/core/gtypes"
	"grugchain/core/store"
)

func TestRegionValidateRejectsOversizedCapacity(t *testing.T) {
	r := Region{Offset: 0, Capacity: MaxRegionLength + 1, Length: 0}
	require.ErrorIs(t, r.validate(MaxRegionLength+2), ErrRegionTooLarge)
}

func TestRegionValidateRejectsLengthOverCapacity(t *testing.T) {
	r := Region{Offset: 0, Capacity: 4, Length: 5}
	require.ErrorIs(t, r.validate(100), ErrRegionCorrupt)
}

func TestRegionValidateRejectsOutOfBoundsOffset(t *testing.T) {
	r := Region{Offset: 90, Capacity: 20, Length: 20}
	require.ErrorIs(t, r.validate(100), ErrRegionOutOfBounds)
}

func TestRegionValidateAcceptsInBoundsRegion(t *testing.T) {
	r := Region{Offset: 0, Capacity: 32, Length: 9}
	require.NoError(t, r.validate(100))
}

// compileGuest runs wat2wasm against testdata/guest.wat, skipping the test
// if the toolchain isn't installed — grounded on the teacher's
// core.CompileWASM / TestHeavyVMInvokeWithReceipt pattern of compiling a
// .wat fixture on demand rather than vendoring a .wasm binary.
func compileGuest(t *testing.T) []byte {
	t.Helper()
	out := filepath.Join(t.TempDir(), "guest.wasm")
	cmd := exec.Command("wat2wasm", "-o", out, filepath.Join("testdata", "guest.wat"))
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			t.Skip("wat2wasm not installed")
		}
		t.Fatalf("compile guest.wat: %v", err)
	}
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	return data
}

func TestModuleCacheCompilesAndCaches(t *testing.T) {
	wasm := compileGuest(t)
	cache, err := NewModuleCache(4)
	require.NoError(t, err)

	hash := gtypes.HashBytes(wasm)
	_, _, err = cache.GetOrBuild(hash, wasm)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	_, _, err = cache.GetOrBuild(hash, wasm)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len(), "a second GetOrBuild for the same hash must hit the cache, not grow it")

	cache.Purge(hash)
	require.Equal(t, 0, cache.Len())
}

func TestModuleCacheRejectsZeroCapacity(t *testing.T) {
	_, err := NewModuleCache(0)
	require.Error(t, err)
}

func TestVMCallQueryRoundTrip(t *testing.T) {
	wasm := compileGuest(t)
	cache, err := NewModuleCache(4)
	require.NoError(t, err)
	vm := NewVM(cache)

	s := store.NewMemStore()
	g := gas.NewUnlimitedTracker()
	env := NewReadOnlyEnv(s, g, gas.DefaultSchedule, 10, nil)

	ctx := gtypes.Context{ChainID: "test", BlockHeight: 1, Contract: gtypes.Address{}}
	result, err := Call[json.RawMessage](vm, gtypes.HashBytes(wasm), wasm, EntryQuery, env, ctx, []byte(`{}`))
	require.NoError(t, err)
	require.True(t, result.IsOk(), "guest fixture always returns {\"Ok\":{}}")
}

func TestVMCallExecuteSucceedsInMutableEnv(t *testing.T) {
	// The fixture guest never calls db_write itself, so this checks only
	// that a mutable entry point succeeds under a mutable Env
	// — the read-only rejection path is covered at the host-import level
	// by registerImports' dbWrite closure checking Env.ReadOnly directly.
	wasm := compileGuest(t)
	cache, err := NewModuleCache(4)
	require.NoError(t, err)
	vm := NewVM(cache)

	s := store.NewMemStore()
	g := gas.NewUnlimitedTracker()
	env := NewMutableEnv(s, g, gas.DefaultSchedule, 10, nil)

	ctx := gtypes.Context{ChainID: "test", BlockHeight: 1}
	result, err := Call[gtypes.Response](vm, gtypes.HashBytes(wasm), wasm, EntryExecute, env, ctx, []byte(`{}`))
	require.NoError(t, err)
	require.True(t, result.IsOk())
}

func TestRegionRoundTripOnRealMemory(t *testing.T) {
	engine := wasmer.NewEngine()
	wstore := wasmer.NewStore(engine)
	limits, err := wasmer.NewLimits(1, 1)
	require.NoError(t, err)
	memType := wasmer.NewMemoryType(limits)
	mem := wasmer.NewMemory(wstore, memType)

	data := mem.Data()
	binary.LittleEndian.PutUint32(data[0:4], 16)
	binary.LittleEndian.PutUint32(data[4:8], 16)
	binary.LittleEndian.PutUint32(data[8:12], 0)

	require.NoError(t, writeIntoRegion(mem, 0, []byte("hello")))
	got, err := readRegionBytes(mem, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}
