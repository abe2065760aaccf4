// Package query implements the cross-contract query surface of §4.7: a
// tagged-union QueryRequest/QueryResponse, a Multi combinator that runs
// sub-queries in order each charged independently, and depth-limited
// recursion into contract query/bank_query entry points via core/wasmvm.
//
// Grounded on the teacher's core/contracts.go InvokeWithReceipt call chain
// (generalized from one flat invocation to a typed request union) and
// original_source crates/app/src/query.rs for the exact variant set.
package query

import (
	"encoding/json"
	"fmt"

	"grugchain/core/collections"
	"grugchain/core/gas"
	"grugchain/core/gtypes"
	"grugchain/core/store"
	"grugchain/core/wasmvm"
)

// Kind tags the Request/Response sum type (§4.7).
type Kind int

const (
	KindConfig Kind = iota
	KindAppConfig
	KindBalance
	KindBalances
	KindSupply
	KindCode
	KindContractInfo
	KindWasmRaw
	KindWasmSmart
	KindMulti
)

// Request is the tagged union of every cross-contract query variant.
// Exactly the fields relevant to Kind are populated.
type Request struct {
	Kind Kind

	AppConfigKey string          // KindAppConfig
	Address      gtypes.Address  // KindBalance/Balances/ContractInfo/WasmRaw/WasmSmart
	Denom        gtypes.Denom    // KindBalance/Supply
	CodeHash     gtypes.Hash     // KindCode
	Key          []byte          // KindWasmRaw
	Msg          json.RawMessage // KindWasmSmart
	Sub          []Request       // KindMulti
}

// Response mirrors Request: exactly the field matching the Request's Kind
// is populated on success.
type Response struct {
	Config       *gtypes.Config
	AppConfig    json.RawMessage
	Balance      *gtypes.Uint128
	Balances     *gtypes.Coins
	Supply       *gtypes.Uint128
	Code         *gtypes.Code
	ContractInfo *gtypes.ContractInfo
	Raw          json.RawMessage // KindWasmRaw / KindWasmSmart
	Multi        []gtypes.GenericResult[Response]
}

// bankQueryRequest is the payload handed to a Bank contract's bank_query
// entry point (§4.8): a reduced union covering only the three balance
// variants a Bank implementation must answer.
type bankQueryRequest struct {
	Kind    string         `json:"kind"`
	Address gtypes.Address `json:"address,omitempty"`
	Denom   gtypes.Denom   `json:"denom,omitempty"`
}

// Querier answers Request values against committed chain state. It is
// constructed once per App and reused across CheckTx/Query/WasmSmart-style
// recursive calls; Store must always be a read-only view (§4.6
// "State mutability": queries never observe an uncommitted write).
type Querier struct {
	Store     store.Store
	Config    collections.Item[gtypes.Config]
	AppConfig collections.Map[json.RawMessage]
	Codes     collections.Map[gtypes.Code]
	Contracts collections.IndexedMap[gtypes.ContractInfo]
	VM        *wasmvm.VM
	Gas       gas.Schedule
	MaxDepth  uint32
}

// NewQuerier wires a Querier against the chain's well-known collections
// (§4.2/§4.8 storage layout).
func NewQuerier(s store.Store, vm *wasmvm.VM, sched gas.Schedule, maxDepth uint32) *Querier {
	byAdmin := collections.NewMultiIndex[gtypes.ContractInfo]("contracts__by_admin", func(ci gtypes.ContractInfo) collections.KeyPart {
		if ci.Admin == nil {
			return collections.BytesKey(nil)
		}
		return collections.BytesKey(ci.Admin[:])
	})
	return &Querier{
		Store:     s,
		Config:    collections.NewItem[gtypes.Config]("config"),
		AppConfig: collections.NewMap[json.RawMessage]("app_config"),
		Codes:     collections.NewMap[gtypes.Code]("codes"),
		Contracts: collections.NewIndexedMap[gtypes.ContractInfo]("contracts", byAdmin),
		VM:        vm,
		Gas:       sched,
		MaxDepth:  maxDepth,
	}
}

// Query answers req at the given recursion depth, charging tracker for
// every unit of work performed (§4.7 "each sub-query is charged
// independently"; §4.6 "query recursion depth limiting").
func (q *Querier) Query(ctx gtypes.Context, tracker *gas.Tracker, depth uint32, req Request) (Response, error) {
	if depth > q.MaxDepth {
		return Response{}, wasmvm.ErrExceedMaxQueryDepth
	}
	if err := tracker.Consume(q.Gas.QueryBase, "query"); err != nil {
		return Response{}, err
	}

	switch req.Kind {
	case KindConfig:
		cfg, err := q.Config.Load(q.Store)
		if err != nil {
			return Response{}, err
		}
		return Response{Config: &cfg}, nil

	case KindAppConfig:
		v, err := q.AppConfig.Load(q.Store, collections.StringKey(req.AppConfigKey))
		if err != nil {
			return Response{}, err
		}
		return Response{AppConfig: v}, nil

	case KindBalance:
		resp, err := q.queryBank(ctx, tracker, depth, bankQueryRequest{Kind: "balance", Address: req.Address, Denom: req.Denom})
		if err != nil {
			return Response{}, err
		}
		var amount gtypes.Uint128
		if err := json.Unmarshal(resp, &amount); err != nil {
			return Response{}, fmt.Errorf("query: decode balance response: %w", err)
		}
		return Response{Balance: &amount}, nil

	case KindBalances:
		resp, err := q.queryBank(ctx, tracker, depth, bankQueryRequest{Kind: "balances", Address: req.Address})
		if err != nil {
			return Response{}, err
		}
		var coins gtypes.Coins
		if err := json.Unmarshal(resp, &coins); err != nil {
			return Response{}, fmt.Errorf("query: decode balances response: %w", err)
		}
		return Response{Balances: &coins}, nil

	case KindSupply:
		resp, err := q.queryBank(ctx, tracker, depth, bankQueryRequest{Kind: "supply", Denom: req.Denom})
		if err != nil {
			return Response{}, err
		}
		var amount gtypes.Uint128
		if err := json.Unmarshal(resp, &amount); err != nil {
			return Response{}, fmt.Errorf("query: decode supply response: %w", err)
		}
		return Response{Supply: &amount}, nil

	case KindCode:
		code, err := q.Codes.Load(q.Store, collections.BytesKey(req.CodeHash[:]))
		if err != nil {
			return Response{}, err
		}
		return Response{Code: &code}, nil

	case KindContractInfo:
		info, err := q.Contracts.Load(q.Store, collections.BytesKey(req.Address[:]))
		if err != nil {
			return Response{}, err
		}
		return Response{ContractInfo: &info}, nil

	case KindWasmRaw:
		sub := store.NewPrefixStore(q.Store, req.Address[:])
		val, found, err := sub.Read(req.Key)
		if err != nil {
			return Response{}, err
		}
		if !found {
			return Response{Raw: nil}, nil
		}
		return Response{Raw: json.RawMessage(val)}, nil

	case KindWasmSmart:
		raw, err := q.invokeContractQuery(ctx, tracker, depth, req.Address, req.Msg)
		if err != nil {
			return Response{}, err
		}
		return Response{Raw: raw}, nil

	case KindMulti:
		results := make([]gtypes.GenericResult[Response], 0, len(req.Sub))
		for _, sub := range req.Sub {
			child := tracker.Child()
			resp, err := q.Query(ctx, child, depth+1, sub)
			if absorbErr := tracker.Absorb(child); absorbErr != nil {
				return Response{}, absorbErr
			}
			if err != nil {
				results = append(results, gtypes.Err[Response](err.Error()))
				continue
			}
			results = append(results, gtypes.Ok(resp))
		}
		return Response{Multi: results}, nil

	default:
		return Response{}, fmt.Errorf("query: unknown request kind %d", req.Kind)
	}
}

// invokeContractQuery runs req.Address's query entry point in a read-only
// VM call, wiring a QueryChainFunc that recurses back into this Querier so
// nested query_chain calls are themselves depth-limited and gas-charged
// (§4.6 "Query recursion").
func (q *Querier) invokeContractQuery(ctx gtypes.Context, tracker *gas.Tracker, depth uint32, addr gtypes.Address, msg json.RawMessage) (json.RawMessage, error) {
	info, err := q.Contracts.Load(q.Store, collections.BytesKey(addr[:]))
	if err != nil {
		return nil, err
	}
	code, err := q.Codes.Load(q.Store, collections.BytesKey(info.CodeHash[:]))
	if err != nil {
		return nil, err
	}
	sub := store.NewPrefixStore(q.Store, addr[:])

	queryFn := func(reqJSON []byte, nestedDepth uint32) ([]byte, error) {
		var nested Request
		if err := json.Unmarshal(reqJSON, &nested); err != nil {
			return nil, fmt.Errorf("query: decode nested query_chain request: %w", err)
		}
		resp, err := q.Query(ctx, tracker, depth+1, nested)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}

	env := wasmvm.NewReadOnlyEnv(sub, tracker, q.Gas, q.MaxDepth, queryFn)
	env.QueryDepth = depth
	callCtx := ctx
	callCtx.Contract = addr

	result, err := wasmvm.Call[json.RawMessage](q.VM, info.CodeHash, code.Bytecode, wasmvm.EntryQuery, env, callCtx, msg)
	if err != nil {
		return nil, err
	}
	if result.IsErr() {
		return nil, fmt.Errorf("query: contract %x: %s", addr, result.ErrString())
	}
	raw, _ := result.Into()
	return raw, nil
}

// queryBank resolves Config.Bank and invokes its bank_query entry point —
// §4.8's "core delegates fungible-token bookkeeping to the contract named
// in Config.Bank" applied to reads.
func (q *Querier) queryBank(ctx gtypes.Context, tracker *gas.Tracker, depth uint32, req bankQueryRequest) (json.RawMessage, error) {
	cfg, err := q.Config.Load(q.Store)
	if err != nil {
		return nil, err
	}
	msg, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	info, err := q.Contracts.Load(q.Store, collections.BytesKey(cfg.Bank[:]))
	if err != nil {
		return nil, err
	}
	code, err := q.Codes.Load(q.Store, collections.BytesKey(info.CodeHash[:]))
	if err != nil {
		return nil, err
	}
	sub := store.NewPrefixStore(q.Store, cfg.Bank[:])

	queryFn := func(reqJSON []byte, nestedDepth uint32) ([]byte, error) {
		var nested Request
		if err := json.Unmarshal(reqJSON, &nested); err != nil {
			return nil, err
		}
		resp, err := q.Query(ctx, tracker, depth+1, nested)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}

	env := wasmvm.NewReadOnlyEnv(sub, tracker, q.Gas, q.MaxDepth, queryFn)
	env.QueryDepth = depth
	callCtx := ctx
	callCtx.Contract = cfg.Bank

	result, err := wasmvm.Call[json.RawMessage](q.VM, info.CodeHash, code.Bytecode, wasmvm.EntryBankQuery, env, callCtx, msg)
	if err != nil {
		return nil, err
	}
	if result.IsErr() {
		return nil, fmt.Errorf("query: bank contract: %s", result.ErrString())
	}
	raw, _ := result.Into()
	return raw, nil
}
