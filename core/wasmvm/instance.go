package wasmvm

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"grugchain/core/gas"
	"grugchain/core/gtypes"
	"grugchain/core/store"
)

// Entrypoint names one of the guest's exported functions (§4.6 step 2).
type Entrypoint string

const (
	EntryInstantiate  Entrypoint = "instantiate"
	EntryExecute      Entrypoint = "execute"
	EntryMigrate      Entrypoint = "migrate"
	EntryReceive      Entrypoint = "receive"
	EntryReply        Entrypoint = "reply"
	EntryQuery        Entrypoint = "query"
	EntryAuthenticate Entrypoint = "authenticate"
	EntryBackrun      Entrypoint = "backrun"
	EntryBankExecute  Entrypoint = "bank_execute"
	EntryBankQuery    Entrypoint = "bank_query"
	EntryWithholdFee  Entrypoint = "withhold_fee"
	EntryFinalizeFee  Entrypoint = "finalize_fee"
	EntryCronExecute  Entrypoint = "cron_execute"
)

// VM instantiates and drives one short-lived guest call (§4.6 step 1: "Each
// contract invocation constructs a short-lived VM instance").
type VM struct {
	cache *ModuleCache
}

func NewVM(cache *ModuleCache) *VM { return &VM{cache: cache} }

// Call instantiates code, writes ctx and msg as Regions, invokes entry, and
// returns the decoded GenericResult[T] payload — here represented as JSON,
// since contract storage/IPC encoding is the one ambient concern this
// module substitutes JSON for in the absence of any Borsh library in the
// example pack.
//
// T is gtypes.Response for mutating entry points (execute, instantiate,
// migrate, reply, ...) and json.RawMessage for the query-class entry
// points (query, bank_query), which return opaque bytes rather than a
// Response. A method cannot carry its own type parameter, so Call is a
// free function taking vm explicitly.
func Call[T any](vm *VM, codeHash gtypes.Hash, code []byte, entry Entrypoint, env Env, ctx gtypes.Context, msg json.RawMessage) (gtypes.GenericResult[T], error) {
	var zero gtypes.GenericResult[T]

	engine, module, err := vm.cache.GetOrBuild(codeHash, code)
	if err != nil {
		return zero, err
	}
	wstore := wasmer.NewStore(engine)

	hostEnv := newEnv(env)
	imports := registerImports(wstore, hostEnv)

	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return zero, fmt.Errorf("wasmvm: instantiate module %s: %w", codeHash, err)
	}
	defer instance.Close()

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return zero, fmt.Errorf("wasmvm: guest exports no linear memory: %w", err)
	}
	hostEnv.bindMemory(mem)

	allocate, err := instance.Exports.GetFunction("allocate")
	if err != nil {
		return zero, fmt.Errorf("wasmvm: guest exports no allocate function: %w", err)
	}
	deallocate, err := instance.Exports.GetFunction("deallocate")
	if err != nil {
		return zero, fmt.Errorf("wasmvm: guest exports no deallocate function: %w", err)
	}

	ctxPtr, err := writeGuestRegion(mem, allocate, mustJSON(ctx))
	if err != nil {
		return zero, err
	}
	defer deallocate(ctxPtr)

	msgPtr, err := writeGuestRegion(mem, allocate, msg)
	if err != nil {
		return zero, err
	}
	defer deallocate(msgPtr)

	scratchPtr, err := writeGuestRegion(mem, allocate, make([]byte, 4096))
	if err != nil {
		return zero, err
	}
	hostEnv.BindScratchRegion(uint32(scratchPtr.(int32)))
	defer deallocate(scratchPtr)

	fnName := string(entry)
	guestFn, err := instance.Exports.GetFunction(fnName)
	if err != nil {
		return zero, fmt.Errorf("wasmvm: guest exports no %q entry point: %w", fnName, err)
	}

	retPtr, err := guestFn(ctxPtr, msgPtr)
	if err != nil {
		return zero, fmt.Errorf("wasmvm: trap in %q: %w", fnName, err)
	}
	retI32, ok := retPtr.(int32)
	if !ok {
		return zero, fmt.Errorf("wasmvm: %q returned a non-pointer value", fnName)
	}
	defer deallocate(retI32)

	raw, err := readRegionBytes(mem, uint32(retI32))
	if err != nil {
		return zero, err
	}

	var result gtypes.GenericResult[T]
	if err := json.Unmarshal(raw, &result); err != nil {
		return zero, fmt.Errorf("wasmvm: decode guest result: %w", err)
	}
	return result, nil
}

func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("wasmvm: marshal host-supplied value: %v", err))
	}
	return raw
}

// writeGuestRegion asks the guest to allocate room for payload and writes
// the bytes there, then allocates a 12-byte Region descriptor {offset,
// capacity, length} describing that buffer (the guest's allocate export
// returns a bare pointer, so the host builds the Region itself), and hands
// back the descriptor's pointer to pass as an entry-point argument.
func writeGuestRegion(mem *wasmer.Memory, allocate *wasmer.Function, payload []byte) (any, error) {
	ret, err := allocate(int32(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("wasmvm: guest allocate(%d) failed: %w", len(payload), err)
	}
	ptr, ok := ret.(int32)
	if !ok {
		return nil, fmt.Errorf("wasmvm: guest allocate returned a non-pointer value")
	}
	data := mem.Data()
	if int(ptr)+len(payload) > len(data) {
		return nil, ErrRegionOutOfBounds
	}
	copy(data[ptr:int(ptr)+len(payload)], payload)

	ret, err = allocate(int32(regionStructSize))
	if err != nil {
		return nil, fmt.Errorf("wasmvm: guest allocate(%d) failed: %w", regionStructSize, err)
	}
	desc, ok := ret.(int32)
	if !ok {
		return nil, fmt.Errorf("wasmvm: guest allocate returned a non-pointer value")
	}
	data = mem.Data()
	if int(desc)+regionStructSize > len(data) {
		return nil, ErrRegionOutOfBounds
	}
	binary.LittleEndian.PutUint32(data[desc:], uint32(ptr))
	binary.LittleEndian.PutUint32(data[desc+4:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(data[desc+8:], uint32(len(payload)))
	return desc, nil
}

// NewReadOnlyEnv builds the Env for query-class entry points (query,
// bank_query): ReadOnly is set so any db_write reached transitively fails
// with ErrImmutableState, whether the guest called it directly or via a
// nested query_chain (§4.6, §8 property 7).
func NewReadOnlyEnv(s store.Store, g *gas.Tracker, sched gas.Schedule, maxQueryDepth uint32, queryFn QueryChainFunc) Env {
	return Env{Store: s, Gas: g, Schedule: sched, ReadOnly: true, MaxQueryDepth: maxQueryDepth, QueryChain: queryFn}
}

// NewMutableEnv builds the Env for state-mutating entry points.
func NewMutableEnv(s store.Store, g *gas.Tracker, sched gas.Schedule, maxQueryDepth uint32, queryFn QueryChainFunc) Env {
	return Env{Store: s, Gas: g, Schedule: sched, ReadOnly: false, MaxQueryDepth: maxQueryDepth, QueryChain: queryFn}
}
