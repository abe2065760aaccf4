package wasmvm

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"grugchain/core/cryptoprims"
	"grugchain/core/gas"
	"grugchain/core/store"
)

// QueryChainFunc lets a host environment answer query_chain without
// wasmvm importing core/query directly (core/app wires the two packages
// together, avoiding an import cycle). depth is the nested-query depth
// this call is being made at; the implementation is responsible for
// enforcing MAX_QUERY_DEPTH (§4.6) and returns the encoded QueryResponse.
type QueryChainFunc func(reqJSON []byte, depth uint32) ([]byte, error)

// DebugSink receives debug(addr, msg) calls; a no-op outside debug builds
// (§4.6). nil is treated as a no-op sink.
type DebugSink func(addr []byte, msg string)

// Env is the host-side environment threaded into every guest import call:
// the contract's substore, the shared gas tracker, the read-only flag, and
// the query-recursion depth counter (§4.6, §5 "the gas tracker is shared
// between a contract call and any nested queries/sub-calls it spawns").
type Env struct {
	Store      store.Store
	Gas        *gas.Tracker
	Schedule   gas.Schedule
	ReadOnly   bool
	QueryDepth uint32
	MaxQueryDepth uint32
	QueryChain QueryChainFunc
	Debug      DebugSink

	mem        *wasmer.Memory
	iterators  map[int32]store.Iterator
	nextIterID int32
	scratchPtr uint32
}

// BindScratchRegion records the guest pointer to a Region the instance has
// allocated for host->guest returns with no caller-supplied destination
// (db_next and its half-iterator siblings). The instance calls this once,
// right after invoking the guest's own allocate export, before dispatching
// into the entry point.
func (e *Env) BindScratchRegion(ptr uint32) { e.scratchPtr = ptr }

func newEnv(base Env) *Env {
	e := base
	e.iterators = make(map[int32]store.Iterator)
	e.nextIterID = 1
	return &e
}

func (e *Env) bindMemory(mem *wasmer.Memory) { e.mem = mem }

// i32ret is a convenience for the common "zero pointer means absent/ok,
// negative means error" import return shape (§4.6 db_read).
func i32ret(v int32) []wasmer.Value { return []wasmer.Value{wasmer.NewI32(v)} }

func argI32(args []wasmer.Value, i int) uint32 { return uint32(args[i].I32()) }

// registerImports builds the "env" import namespace for a guest instance,
// generalizing the teacher's core/virtual_machine.go registerHost (4
// toy opcodes, wasmer.NewFunction/NewFunctionType/NewValueTypes,
// imports.Register("env", ...)) to the full §4.6 table.
func registerImports(wstore *wasmer.Store, env *Env) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	fn := func(params, results int, f func(args []wasmer.Value) ([]wasmer.Value, error)) *wasmer.Function {
		p := make([]wasmer.ValueKind, params)
		r := make([]wasmer.ValueKind, results)
		for i := range p {
			p[i] = wasmer.ValueKind(wasmer.I32)
		}
		for i := range r {
			r[i] = wasmer.ValueKind(wasmer.I32)
		}
		return wasmer.NewFunction(wstore, wasmer.NewFunctionType(wasmer.NewValueTypes(p...), wasmer.NewValueTypes(r...)), f)
	}

	dbRead := fn(1, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		keyPtr := argI32(args, 0)
		key, err := readRegionBytes(env.mem, keyPtr)
		if err != nil {
			return nil, err
		}
		val, found, err := env.Store.Read(key)
		if err != nil {
			return nil, err
		}
		if err := env.Gas.Consume(env.Schedule.DBReadCost(len(key), len(val)), "db_read"); err != nil {
			return nil, err
		}
		if !found {
			return i32ret(0), nil
		}
		return i32ret(int32(keyPtr)), writeIntoRegion(env.mem, keyPtr, val)
	})

	dbWrite := fn(2, 0, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if env.ReadOnly {
			return nil, ErrImmutableState
		}
		key, err := readRegionBytes(env.mem, argI32(args, 0))
		if err != nil {
			return nil, err
		}
		val, err := readRegionBytes(env.mem, argI32(args, 1))
		if err != nil {
			return nil, err
		}
		if err := env.Gas.Consume(env.Schedule.DBWriteCost(len(key), len(val)), "db_write"); err != nil {
			return nil, err
		}
		return nil, env.Store.Write(key, val)
	})

	dbRemove := fn(1, 0, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if env.ReadOnly {
			return nil, ErrImmutableState
		}
		key, err := readRegionBytes(env.mem, argI32(args, 0))
		if err != nil {
			return nil, err
		}
		if err := env.Gas.Consume(env.Schedule.DBRemoveCost(len(key)), "db_remove"); err != nil {
			return nil, err
		}
		return nil, env.Store.Remove(key)
	})

	dbRemoveRange := fn(2, 0, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if env.ReadOnly {
			return nil, ErrImmutableState
		}
		min, err := optionalRegion(env, argI32(args, 0))
		if err != nil {
			return nil, err
		}
		max, err := optionalRegion(env, argI32(args, 1))
		if err != nil {
			return nil, err
		}
		if err := env.Gas.Consume(env.Schedule.DBRemoveBase, "db_remove_range"); err != nil {
			return nil, err
		}
		return nil, env.Store.RemoveRange(min, max)
	})

	dbScan := fn(3, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		min, err := optionalRegion(env, argI32(args, 0))
		if err != nil {
			return nil, err
		}
		max, err := optionalRegion(env, argI32(args, 1))
		if err != nil {
			return nil, err
		}
		order := store.Ascending
		if args[2].I32() != 0 {
			order = store.Descending
		}
		if err := env.Gas.Consume(env.Schedule.ScanBase, "db_scan"); err != nil {
			return nil, err
		}
		it, err := env.Store.Scan(min, max, order)
		if err != nil {
			return nil, err
		}
		id := env.nextIterID
		env.nextIterID++
		env.iterators[id] = it
		return i32ret(id), nil
	})

	dbNext := fn(1, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		it, ok := env.iterators[args[0].I32()]
		if !ok {
			return nil, ErrUnknownIterator
		}
		if err := env.Gas.Consume(env.Schedule.NextBase, "db_next"); err != nil {
			return nil, err
		}
		if !it.Valid() {
			return i32ret(0), nil
		}
		key, val := it.Key(), it.Value()
		it.Next()
		encoded := make([]byte, 0, len(key)+len(val)+2)
		encoded = append(encoded, key...)
		encoded = append(encoded, val...)
		encoded = append(encoded, byte(len(key)>>8), byte(len(key)))
		return i32ret(1), writeScratch(env, encoded)
	})

	dbNextKey := fn(1, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		it, ok := env.iterators[args[0].I32()]
		if !ok {
			return nil, ErrUnknownIterator
		}
		if !it.Valid() {
			return i32ret(0), nil
		}
		key := it.Key()
		it.Next()
		return i32ret(1), writeScratch(env, key)
	})

	dbNextValue := fn(1, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		it, ok := env.iterators[args[0].I32()]
		if !ok {
			return nil, ErrUnknownIterator
		}
		if !it.Valid() {
			return i32ret(0), nil
		}
		val := it.Value()
		it.Next()
		return i32ret(1), writeScratch(env, val)
	})

	queryChain := fn(1, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if env.QueryDepth >= env.MaxQueryDepth {
			return nil, ErrExceedMaxQueryDepth
		}
		if err := env.Gas.Consume(env.Schedule.QueryBase, "query_chain"); err != nil {
			return nil, err
		}
		reqPtr := argI32(args, 0)
		req, err := readRegionBytes(env.mem, reqPtr)
		if err != nil {
			return nil, err
		}
		if env.QueryChain == nil {
			return nil, fmt.Errorf("wasmvm: query_chain called but no QueryChainFunc was wired")
		}
		resp, err := env.QueryChain(req, env.QueryDepth+1)
		if err != nil {
			return nil, err
		}
		return i32ret(int32(reqPtr)), writeIntoRegion(env.mem, reqPtr, resp)
	})

	hashFn := func(cost func(gas.Schedule) uint64, h func([]byte) []byte) *wasmer.Function {
		return fn(1, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
			ptr := argI32(args, 0)
			data, err := readRegionBytes(env.mem, ptr)
			if err != nil {
				return nil, err
			}
			if err := env.Gas.Consume(cost(env.Schedule), "hash"); err != nil {
				return nil, err
			}
			return i32ret(int32(ptr)), writeIntoRegion(env.mem, ptr, h(data))
		})
	}

	sha2_256 := hashFn(func(s gas.Schedule) uint64 { return s.Sha256 }, func(b []byte) []byte { h := cryptoprims.Sha256(b); return h[:] })
	sha2_512 := hashFn(func(s gas.Schedule) uint64 { return s.Sha512 }, cryptoprims.Sha512)
	sha3_256 := hashFn(func(s gas.Schedule) uint64 { return s.Sha3_256 }, cryptoprims.Sha3_256)
	keccak256 := hashFn(func(s gas.Schedule) uint64 { return s.Keccak256 }, cryptoprims.Keccak256)
	blake2s := hashFn(func(s gas.Schedule) uint64 { return s.Blake2s }, cryptoprims.Blake2s)
	blake3 := hashFn(func(s gas.Schedule) uint64 { return s.Blake3 }, cryptoprims.Blake3)
	blake2b := fn(1, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		ptr := argI32(args, 0)
		data, err := readRegionBytes(env.mem, ptr)
		if err != nil {
			return nil, err
		}
		if err := env.Gas.Consume(env.Schedule.Blake2b, "blake2b"); err != nil {
			return nil, err
		}
		digest, err := cryptoprims.Blake2b(data)
		if err != nil {
			return nil, err
		}
		return i32ret(int32(ptr)), writeIntoRegion(env.mem, ptr, digest)
	})

	secp256k1Verify := fn(3, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		pubkey, err := readRegionBytes(env.mem, argI32(args, 0))
		if err != nil {
			return nil, err
		}
		hash, err := readRegionBytes(env.mem, argI32(args, 1))
		if err != nil {
			return nil, err
		}
		sig, err := readRegionBytes(env.mem, argI32(args, 2))
		if err != nil {
			return nil, err
		}
		if err := env.Gas.Consume(env.Schedule.Secp256k1Verify, "secp256k1_verify"); err != nil {
			return nil, err
		}
		ok, err := cryptoprims.Secp256k1Verify(pubkey, hash, sig)
		if err != nil {
			return i32ret(0), nil
		}
		return i32ret(boolToI32(ok)), nil
	})

	secp256k1Recover := fn(3, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		hash, err := readRegionBytes(env.mem, argI32(args, 0))
		if err != nil {
			return nil, err
		}
		sig, err := readRegionBytes(env.mem, argI32(args, 1))
		if err != nil {
			return nil, err
		}
		recID := byte(args[2].I32())
		if err := env.Gas.Consume(env.Schedule.Secp256k1Recover, "secp256k1_pubkey_recover"); err != nil {
			return nil, err
		}
		pub, err := cryptoprims.Secp256k1PubkeyRecover(hash, sig, recID)
		if err != nil {
			return i32ret(0), nil
		}
		ptr := argI32(args, 0)
		return i32ret(int32(ptr)), writeIntoRegion(env.mem, ptr, pub)
	})

	secp256r1Verify := fn(3, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		pubkey, err := readRegionBytes(env.mem, argI32(args, 0))
		if err != nil {
			return nil, err
		}
		hash, err := readRegionBytes(env.mem, argI32(args, 1))
		if err != nil {
			return nil, err
		}
		sig, err := readRegionBytes(env.mem, argI32(args, 2))
		if err != nil {
			return nil, err
		}
		if err := env.Gas.Consume(env.Schedule.Secp256r1Verify, "secp256r1_verify"); err != nil {
			return nil, err
		}
		ok, err := cryptoprims.Secp256r1Verify(pubkey, hash, sig)
		if err != nil {
			return i32ret(0), nil
		}
		return i32ret(boolToI32(ok)), nil
	})

	ed25519Verify := fn(3, 1, func(args []wasmer.Value) ([]wasmer.Value, error) {
		pubkey, err := readRegionBytes(env.mem, argI32(args, 0))
		if err != nil {
			return nil, err
		}
		msg, err := readRegionBytes(env.mem, argI32(args, 1))
		if err != nil {
			return nil, err
		}
		sig, err := readRegionBytes(env.mem, argI32(args, 2))
		if err != nil {
			return nil, err
		}
		if err := env.Gas.Consume(env.Schedule.Ed25519Verify, "ed25519_verify"); err != nil {
			return nil, err
		}
		return i32ret(boolToI32(cryptoprims.Ed25519Verify(pubkey, msg, sig))), nil
	})

	debug := fn(2, 0, func(args []wasmer.Value) ([]wasmer.Value, error) {
		if env.Debug == nil {
			return nil, nil
		}
		addr, err := readRegionBytes(env.mem, argI32(args, 0))
		if err != nil {
			return nil, err
		}
		msg, err := readRegionBytes(env.mem, argI32(args, 1))
		if err != nil {
			return nil, err
		}
		env.Debug(addr, string(msg))
		return nil, nil
	})

	imports.Register("env", map[string]wasmer.IntoExtern{
		"db_read":                 dbRead,
		"db_write":                dbWrite,
		"db_remove":               dbRemove,
		"db_remove_range":         dbRemoveRange,
		"db_scan":                 dbScan,
		"db_next":                 dbNext,
		"db_next_key":             dbNextKey,
		"db_next_value":           dbNextValue,
		"query_chain":             queryChain,
		"secp256k1_verify":        secp256k1Verify,
		"secp256k1_pubkey_recover": secp256k1Recover,
		"secp256r1_verify":        secp256r1Verify,
		"ed25519_verify":          ed25519Verify,
		"sha2_256":                sha2_256,
		"sha2_512":                sha2_512,
		"sha3_256":                sha3_256,
		"keccak256":               keccak256,
		"blake2s":                 blake2s,
		"blake2b":                 blake2b,
		"blake3":                  blake3,
		"debug":                   debug,
	})

	return imports
}

func boolToI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// optionalRegion reads the Region at ptr, treating ptr == 0 as the
// nil/unbounded sentinel (§4.6 db_scan/db_remove_range "min/max nil =
// unbounded").
func optionalRegion(env *Env, ptr uint32) ([]byte, error) {
	if ptr == 0 {
		return nil, nil
	}
	return readRegionBytes(env.mem, ptr)
}

// writeScratch writes payload into the env's scratch region, a
// single reusable guest buffer the instance dedicates to host->guest
// returns that don't have a natural caller-supplied region (db_next and
// friends, §4.6 step 3's "encoded_pair" shape).
func writeScratch(env *Env, payload []byte) error {
	if env.scratchPtr == 0 {
		return fmt.Errorf("wasmvm: instance has no scratch region bound")
	}
	return writeIntoRegion(env.mem, env.scratchPtr, payload)
}
