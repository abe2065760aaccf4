package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"grugchain/core/collections"
	"grugchain/core/gas"
	"grugchain/core/gtypes"
	"grugchain/core/store"
	"grugchain/core/wasmvm"
)

func testAddr(b byte) gtypes.Address {
	var a gtypes.Address
	a[0] = b
	return a
}

func TestQuerierConfigAndAppConfig(t *testing.T) {
	s := store.NewMemStore()
	cache, err := wasmvm.NewModuleCache(4)
	require.NoError(t, err)
	q := NewQuerier(s, wasmvm.NewVM(cache), gas.DefaultSchedule, 10)

	cfg := gtypes.Config{Owner: testAddr(1), Bank: testAddr(2), Taxman: testAddr(3)}
	require.NoError(t, q.Config.Save(s, cfg))
	require.NoError(t, q.AppConfig.Save(s, json.RawMessage(`"v1"`), collections.StringKey("version")))

	tracker := gas.NewUnlimitedTracker()
	ctx := gtypes.Context{ChainID: "test"}

	resp, err := q.Query(ctx, tracker, 0, Request{Kind: KindConfig})
	require.NoError(t, err)
	require.Equal(t, cfg.Owner, resp.Config.Owner)

	resp, err = q.Query(ctx, tracker, 0, Request{Kind: KindAppConfig, AppConfigKey: "version"})
	require.NoError(t, err)
	require.JSONEq(t, `"v1"`, string(resp.AppConfig))
}

func TestQuerierCodeAndContractInfo(t *testing.T) {
	s := store.NewMemStore()
	cache, err := wasmvm.NewModuleCache(4)
	require.NoError(t, err)
	q := NewQuerier(s, wasmvm.NewVM(cache), gas.DefaultSchedule, 10)

	hash := gtypes.HashBytes([]byte("wasm-bytes"))
	require.NoError(t, q.Codes.Save(s, gtypes.Code{Hash: hash, Bytecode: []byte("wasm-bytes"), Status: gtypes.InUseStatus(1)}, collections.BytesKey(hash[:])))

	addr := testAddr(9)
	admin := testAddr(1)
	require.NoError(t, q.Contracts.Save(s, collections.BytesKey(addr[:]), gtypes.ContractInfo{CodeHash: hash, Admin: &admin}))

	tracker := gas.NewUnlimitedTracker()
	ctx := gtypes.Context{ChainID: "test"}

	resp, err := q.Query(ctx, tracker, 0, Request{Kind: KindCode, CodeHash: hash})
	require.NoError(t, err)
	require.Equal(t, []byte("wasm-bytes"), resp.Code.Bytecode)

	resp, err = q.Query(ctx, tracker, 0, Request{Kind: KindContractInfo, Address: addr})
	require.NoError(t, err)
	require.Equal(t, hash, resp.ContractInfo.CodeHash)
}

func TestQuerierWasmRaw(t *testing.T) {
	s := store.NewMemStore()
	cache, err := wasmvm.NewModuleCache(4)
	require.NoError(t, err)
	q := NewQuerier(s, wasmvm.NewVM(cache), gas.DefaultSchedule, 10)

	addr := testAddr(5)
	sub := store.NewPrefixStore(s, addr[:])
	require.NoError(t, sub.Write([]byte("k"), []byte("v")))

	tracker := gas.NewUnlimitedTracker()
	resp, err := q.Query(gtypes.Context{}, tracker, 0, Request{Kind: KindWasmRaw, Address: addr, Key: []byte("k")})
	require.NoError(t, err)
	require.Equal(t, "v", string(resp.Raw))

	resp, err = q.Query(gtypes.Context{}, tracker, 0, Request{Kind: KindWasmRaw, Address: addr, Key: []byte("missing")})
	require.NoError(t, err)
	require.Nil(t, resp.Raw)
}

func TestQuerierMultiChargesEachSubQueryAndIsolatesDepth(t *testing.T) {
	s := store.NewMemStore()
	cache, err := wasmvm.NewModuleCache(4)
	require.NoError(t, err)
	q := NewQuerier(s, wasmvm.NewVM(cache), gas.DefaultSchedule, 10)

	cfg := gtypes.Config{Owner: testAddr(1)}
	require.NoError(t, q.Config.Save(s, cfg))

	tracker := gas.NewTracker(10_000)
	resp, err := q.Query(gtypes.Context{}, tracker, 0, Request{
		Kind: KindMulti,
		Sub: []Request{
			{Kind: KindConfig},
			{Kind: KindConfig},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Multi, 2)
	require.True(t, resp.Multi[0].IsOk())
	require.True(t, resp.Multi[1].IsOk())
	require.Greater(t, tracker.Used(), uint64(0), "each sub-query's cost must be absorbed back into the parent tracker")
}

func TestQuerierRejectsExceedingMaxDepth(t *testing.T) {
	s := store.NewMemStore()
	cache, err := wasmvm.NewModuleCache(4)
	require.NoError(t, err)
	q := NewQuerier(s, wasmvm.NewVM(cache), gas.DefaultSchedule, 1)

	tracker := gas.NewUnlimitedTracker()
	_, err = q.Query(gtypes.Context{}, tracker, 2, Request{Kind: KindConfig})
	require.ErrorIs(t, err, wasmvm.ErrExceedMaxQueryDepth)
}
