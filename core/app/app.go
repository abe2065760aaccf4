// Package app wires the versioned storage backend, the JMT, the WASM host
// environment, and the cross-contract querier into the ABCI-shaped
// execution pipeline of §4.4: init_chain, prepare_proposal, check_tx,
// finalize_block, and commit.
//
// Grounded on the teacher's core/contracts.go InvokeWithReceipt (one flat
// invocation, generalized here into the full authenticate -> withhold_fee
// -> process_msg -> backrun -> finalize_fee sequence per §4.4 step 4) and
// on certenIO-certen-validator's abci_validator.go for the shape of an
// abcitypes.Application embedding (the teacher never speaks ABCI itself).
package app

import (
	"context"
	"encoding/json"
	"fmt"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/sirupsen/logrus"

	"grugchain/core/collections"
	"grugchain/core/gas"
	"grugchain/core/gtypes"
	"grugchain/core/jmt"
	"grugchain/core/query"
	"grugchain/core/store"
	"grugchain/core/wasmvm"
)

// MaxMessageDepth bounds sub-message recursion (§4.5 "MAX_MESSAGE_DEPTH").
const MaxMessageDepth = 30

// MaxQueryDepth bounds query_chain recursion (§4.6 "MAX_QUERY_DEPTH").
const MaxQueryDepth = 10

// lastFinalizedKey is the cometbft-db metadata key for §4.4 step 7's
// "save LAST_FINALIZED_BLOCK = block.info".
const lastFinalizedKey = "last_finalized_block"

// App is the chain's ABCI-shaped application, one instance per node
// process, driven by a CometBFT consensus engine over the ABCI socket/gRPC
// server started by cmd/chaind.
type App struct {
	abcitypes.BaseApplication

	Backend  *store.Backend
	Tree     *jmt.Tree
	Cache    *wasmvm.ModuleCache
	VM       *wasmvm.VM
	Gas      gas.Schedule
	MaxQuery uint32
	Log      *logrus.Logger

	// meta is a small cometbft-db-backed store for consensus bookkeeping
	// that lives alongside, not inside, the JMT-committed app state: the
	// last finalized BlockInfo (§4.4 step 7). Kept separate from Backend
	// so this record survives even if the pebble-backed app state needs
	// to be rolled back during disaster recovery.
	meta dbm.DB

	Config    collections.Item[gtypes.Config]
	AppConfig collections.Map[json.RawMessage]
	Codes     collections.Map[gtypes.Code]
	Contracts collections.IndexedMap[gtypes.ContractInfo]
	NextCron  collections.Map[gtypes.Timestamp] // keyed by cron contract address

	nodeStore *jmt.NodeStore

	// block is the cached layer accumulating every tx's committed writes
	// for the block currently being finalized; nil outside
	// InitChain/FinalizeBlock/Commit.
	block       *store.CacheStore
	blockHeight uint64
	blockTime   gtypes.Timestamp
	blockEvents []gtypes.Event
	txOutcomes  []TxOutcome
}

// TxOutcome records whether a finalized tx's message phase succeeded, used
// to decide the combined C1 commit/discard outcome of §4.4 step 4g.
type TxOutcome struct {
	Hash   gtypes.Hash
	Failed bool
	Log    string
	Events []gtypes.Event
}

func contractsByAdmin() collections.MultiIndex[gtypes.ContractInfo] {
	return collections.NewMultiIndex[gtypes.ContractInfo]("contracts__by_admin", func(ci gtypes.ContractInfo) collections.KeyPart {
		if ci.Admin == nil {
			return collections.BytesKey(nil)
		}
		return collections.BytesKey(ci.Admin[:])
	})
}

// New constructs an App over an already-open storage Backend and a
// cometbft-db metadata store.
func New(backend *store.Backend, meta dbm.DB, wasmCacheCapacity int, log *logrus.Logger) (*App, error) {
	cache, err := wasmvm.NewModuleCache(wasmCacheCapacity)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	a := &App{
		Backend:   backend,
		Tree:      jmt.NewTree(),
		Cache:     cache,
		VM:        wasmvm.NewVM(cache),
		Gas:       gas.DefaultSchedule,
		MaxQuery:  MaxQueryDepth,
		Log:       log,
		meta:      meta,
		Config:    collections.NewItem[gtypes.Config]("config"),
		AppConfig: collections.NewMap[json.RawMessage]("app_config"),
		Codes:     collections.NewMap[gtypes.Code]("codes"),
		Contracts: collections.NewIndexedMap[gtypes.ContractInfo]("contracts", contractsByAdmin()),
		NextCron:  collections.NewMap[gtypes.Timestamp]("next_cron"),
	}
	a.nodeStore = jmt.NewNodeStore(backend.TreeView())
	return a, nil
}

// latestStateView opens a read-only view of the state family as of the
// latest flushed version.
func (a *App) latestStateView() store.Store {
	v, err := a.Backend.LatestVersion()
	if err != nil {
		a.Log.WithError(err).Warn("app: reading latest version, defaulting to 0")
		v = 0
	}
	return a.Backend.StateView(v)
}

// querier builds a Querier bound to s, so query_chain and WasmSmart queries
// issued while a block is still mid-flight observe this block's own
// in-progress writes rather than only the last committed version.
func (a *App) querier(s store.Store) *query.Querier {
	return query.NewQuerier(s, a.VM, a.Gas, a.MaxQuery)
}

// InitChain seeds Config/AppConfig and runs every genesis message as
// GENESIS_SENDER with unlimited gas (§4.4 step 2), then flushes the
// resulting state and tree writes atomically.
func (a *App) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	var genesis gtypes.GenesisState
	if len(req.AppStateBytes) > 0 {
		if err := json.Unmarshal(req.AppStateBytes, &genesis); err != nil {
			return nil, fmt.Errorf("app: decode genesis app_state: %w", err)
		}
	}

	a.block = store.NewCacheStore(a.Backend.StateView(0))
	a.blockHeight = 0
	a.blockTime = gtypes.Timestamp(req.Time.UnixNano())
	a.blockEvents = nil

	if err := a.Config.Save(a.block, genesis.Config); err != nil {
		return nil, fmt.Errorf("app: save genesis config: %w", err)
	}
	for _, k := range genesis.AppConfig.Keys() {
		v, _ := genesis.AppConfig.Get(k)
		if err := a.AppConfig.Save(a.block, v, collections.StringKey(k)); err != nil {
			return nil, fmt.Errorf("app: save genesis app_config[%s]: %w", k, err)
		}
	}

	for _, msg := range genesis.Msgs {
		gctx := gtypes.Context{
			ChainID:     req.ChainId,
			BlockHeight: 0,
			BlockTimestamp: a.blockTime,
			Sender:      &gtypes.GenesisSender,
		}
		tracker := gas.NewUnlimitedTracker()
		c2 := store.NewCacheStore(a.block)
		events, err := a.ProcessMsg(c2, tracker, gctx, gtypes.GenesisSender, msg, 0)
		if err != nil {
			return nil, fmt.Errorf("app: genesis message failed: %w", err)
		}
		if err := c2.Commit(); err != nil {
			return nil, err
		}
		a.blockEvents = append(a.blockEvents, events...)
	}

	root, err := a.flushBlock()
	if err != nil {
		return nil, err
	}
	return &abcitypes.ResponseInitChain{AppHash: root[:]}, nil
}

// PrepareProposal returns the mempool's transactions unmodified (§4.4:
// "delegates to a configurable ProposalPreparer" — this chain has no
// protocol-level injected transaction, so the preparer is the identity).
func (a *App) PrepareProposal(ctx context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	return &abcitypes.ResponsePrepareProposal{Txs: req.Txs}, nil
}

// CheckTx authenticates tx against the latest committed state in a
// throwaway cached layer that is always discarded (§4.4 step "check_tx":
// "all state mutations are discarded").
func (a *App) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	var tx gtypes.Tx
	if err := json.Unmarshal(req.Tx, &tx); err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error()}, nil
	}
	if err := tx.Validate(); err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error()}, nil
	}

	scratch := store.NewCacheStore(a.latestStateView())
	tracker := gas.NewTracker(tx.GasLimit)
	cctx := gtypes.Context{Sender: &tx.Sender}

	cfg, err := a.Config.Load(scratch)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error()}, nil
	}

	if _, err := a.authenticate(scratch, tracker, cctx, tx, gtypes.AuthCheck); err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error(), GasWanted: int64(tx.GasLimit)}, nil
	}
	if _, err := a.withholdFee(scratch, tracker, cctx, cfg, tx, gtypes.AuthCheck); err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error(), GasWanted: int64(tx.GasLimit)}, nil
	}
	return &abcitypes.ResponseCheckTx{Code: 0, GasWanted: int64(tx.GasLimit), GasUsed: int64(tracker.Used())}, nil
}

// FinalizeBlock runs begin-block cronjobs, every tx's authenticate ->
// withhold_fee -> process_msg -> backrun -> finalize_fee sequence, end-block
// cronjobs, and the orphan sweep (§4.4 steps 2-6), all inside one
// block-wide cached layer.
func (a *App) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	last, err := a.loadLastFinalized()
	if err != nil {
		return nil, fmt.Errorf("app: load last finalized block: %w", err)
	}
	if last.Height != 0 && uint64(req.Height) != last.Height+1 {
		return nil, fmt.Errorf("%w: expected %d, got %d", gtypes.ErrIncorrectBlockHeight, last.Height+1, req.Height)
	}

	a.block = store.NewCacheStore(a.latestStateView())
	a.blockHeight = uint64(req.Height)
	a.blockTime = gtypes.Timestamp(req.Time.UnixNano())
	a.blockEvents = nil
	a.txOutcomes = a.txOutcomes[:0]

	cfg, err := a.Config.Load(a.block)
	if err != nil {
		return nil, fmt.Errorf("app: load config at height %d: %w", req.Height, err)
	}

	cronEvents, err := a.runCronjobs(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("app: begin-block cronjobs: %w", err)
	}
	a.blockEvents = append(a.blockEvents, cronEvents...)

	txResults := make([]*abcitypes.ExecTxResult, 0, len(req.Txs))
	for _, raw := range req.Txs {
		result := a.finalizeTx(cfg, raw)
		txResults = append(txResults, result)
	}

	cronEvents, err = a.runCronjobs(cfg, false)
	if err != nil {
		return nil, fmt.Errorf("app: end-block cronjobs: %w", err)
	}
	a.blockEvents = append(a.blockEvents, cronEvents...)

	orphanEvents, err := a.sweepOrphans(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: orphan sweep: %w", err)
	}
	a.blockEvents = append(a.blockEvents, orphanEvents...)

	root, err := a.flushBlock()
	if err != nil {
		return nil, err
	}

	info := gtypes.BlockInfo{Height: a.blockHeight, Timestamp: a.blockTime, Hash: gtypes.Hash(sliceToHash(req.Hash))}
	if err := a.saveLastFinalized(info); err != nil {
		return nil, fmt.Errorf("app: persist last finalized block: %w", err)
	}

	return &abcitypes.ResponseFinalizeBlock{
		TxResults: txResults,
		Events:    encodeEvents(a.blockEvents),
		AppHash:   root[:],
	}, nil
}

func sliceToHash(b []byte) (out [gtypes.HashLength]byte) {
	copy(out[:], b)
	return out
}

// finalizeTx runs §4.4 step 4's per-transaction sequence and returns the
// ABCI-shaped result. Authenticate/process_msg failures abort only this
// tx; finalize_fee failure is a protocol bug and panics rather than
// silently dropping the fee invariant.
func (a *App) finalizeTx(cfg gtypes.Config, raw []byte) *abcitypes.ExecTxResult {
	var tx gtypes.Tx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return &abcitypes.ExecTxResult{Code: 1, Log: err.Error()}
	}
	if err := tx.Validate(); err != nil {
		return &abcitypes.ExecTxResult{Code: 1, Log: err.Error()}
	}

	txHash := gtypes.HashBytes(raw)
	// feeLayer holds the taxman's withhold_fee and finalize_fee writes, which
	// persist even when c1 (authenticate, messages, backrun) is discarded.
	feeLayer := store.NewCacheStore(a.block)
	c1 := store.NewCacheStore(feeLayer)
	tracker := gas.NewTracker(tx.GasLimit)
	cctx := gtypes.Context{ChainID: "", BlockHeight: a.blockHeight, BlockTimestamp: a.blockTime, Sender: &tx.Sender}

	var events []gtypes.Event
	failed := false
	var failLog string

	requestBackrun, err := a.authenticate(c1, tracker, cctx, tx, gtypes.AuthFinalize)
	if err != nil {
		c1.Discard()
		return &abcitypes.ExecTxResult{Code: 1, Log: err.Error(), GasUsed: int64(tracker.Used())}
	}

	fee, err := a.withholdFee(feeLayer, tracker, cctx, cfg, tx, gtypes.AuthFinalize)
	if err != nil {
		c1.Discard()
		return &abcitypes.ExecTxResult{Code: 1, Log: err.Error(), GasUsed: int64(tracker.Used())}
	}
	events = append(events, fee...)

	for _, msg := range tx.Msgs {
		c2 := store.NewCacheStore(c1)
		msgEvents, err := a.ProcessMsg(c2, tracker, cctx, tx.Sender, msg, 0)
		if err != nil {
			c2.Discard()
			failed = true
			failLog = err.Error()
			break
		}
		if err := c2.Commit(); err != nil {
			failed = true
			failLog = err.Error()
			break
		}
		events = append(events, msgEvents...)
	}

	if !failed && requestBackrun {
		backrunEvents, err := a.backrun(c1, tracker, cctx, tx)
		if err != nil {
			failed = true
			failLog = err.Error()
		} else {
			events = append(events, backrunEvents...)
		}
	}

	if failed {
		c1.Discard()
	} else if err := c1.Commit(); err != nil {
		failed = true
		failLog = err.Error()
	}

	finalizeEvents, err := a.finalizeFee(feeLayer, tracker, cctx, cfg, tx, failed)
	if err != nil {
		panic(fmt.Sprintf("app: finalize_fee failed, protocol invariant violated: %v", err))
	}
	events = append(events, finalizeEvents...)

	if err := feeLayer.Commit(); err != nil {
		failed = true
		failLog = err.Error()
	}

	a.txOutcomes = append(a.txOutcomes, TxOutcome{Hash: txHash, Failed: failed, Log: failLog, Events: events})
	a.blockEvents = append(a.blockEvents, events...)

	result := &abcitypes.ExecTxResult{GasWanted: int64(tx.GasLimit), GasUsed: int64(tracker.Used()), Events: encodeEvents(events)}
	if failed {
		result.Code = 1
		result.Log = failLog
	}
	return result
}

// flushBlock disassembles the block's state-level cache and the JMT's
// tree-level cache into one Batch and flushes it atomically (§4.1, §4.4
// step 7), so app state and tree nodes always land in the same pebble
// commit even though they are two logically distinct CacheStore layers.
func (a *App) flushBlock() (gtypes.Hash, error) {
	if a.block == nil {
		return gtypes.ZeroHash, fmt.Errorf("app: flushBlock called outside a block")
	}
	baseVersion, err := a.Backend.LatestVersion()
	if err != nil {
		return gtypes.ZeroHash, err
	}
	newVersion := a.blockHeight

	ops, err := a.collectTreeOps()
	if err != nil {
		return gtypes.ZeroHash, err
	}

	treeCache := store.NewCacheStore(a.Backend.TreeView())
	treeNodeStore := jmt.NewNodeStore(treeCache)
	root, err := a.Tree.Apply(treeNodeStore, baseVersion, newVersion, ops)
	if err != nil {
		return gtypes.ZeroHash, fmt.Errorf("app: apply jmt batch: %w", err)
	}

	batch := a.block.Disassemble()
	// treeCache.Disassemble() always labels its overlay StateWrites/
	// StateDeletes since CacheStore has no notion of which family its
	// backing store serves; treeCache's backing is Backend.TreeView(), so
	// its pending writes belong in the Batch's tree slots, not the state
	// slots Backend.Flush would otherwise apply them under.
	treeBatch := treeCache.Disassemble()
	batch.TreeWrites = treeBatch.StateWrites
	batch.TreeDeletes = treeBatch.StateDeletes

	if err := a.Backend.Flush(batch, newVersion); err != nil {
		return gtypes.ZeroHash, fmt.Errorf("app: flush batch: %w", err)
	}
	a.block = nil
	return root, nil
}

// collectTreeOps derives the set of JMT ValueOps for this block's state
// writes/deletes: the tree indexes hash(key)->hash(value), while the raw
// key/value pairs live separately in Backend.StateView (§4.1). Consume
// leaves a.block's own pending overlay untouched, so Disassemble still
// sees every write after this runs.
func (a *App) collectTreeOps() ([]jmt.ValueOp, error) {
	writes, deletes := a.block.Consume()
	ops := make([]jmt.ValueOp, 0, len(writes)+len(deletes))
	for k, v := range writes {
		keyHash := gtypes.HashBytes([]byte(k))
		valueHash := gtypes.HashBytes(v)
		ops = append(ops, jmt.ValueOp{KeyHash: keyHash, Value: &valueHash})
	}
	for k := range deletes {
		keyHash := gtypes.HashBytes([]byte(k))
		ops = append(ops, jmt.ValueOp{KeyHash: keyHash, Value: nil})
	}
	return ops, nil
}

// Commit persists the already-flushed version durably. Backend.Flush uses
// pebble.Sync for every write, so by the time FinalizeBlock returns the
// version is already durable; Commit exists to satisfy the ABCI contract
// (§4.4 "commit() persists the pending version to the backing store
// durably"). It returns an empty ResponseCommit, reporting no retain height.
func (a *App) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	return &abcitypes.ResponseCommit{}, nil
}

// storeQueryPath is the well-known ABCI query path for a raw key lookup
// against the committed state tree, mirroring cosmos-sdk's "/store"
// convention that CometBFT light clients already expect.
const storeQueryPath = "/store"

// Query answers an ABCI query. Path "/store" is a raw QueryStore lookup
// (used by light clients); anything else decodes req.Data as a
// query.Request and delegates to a Querier bound to the latest committed
// state (§4.7).
func (a *App) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	if req.Path == storeQueryPath {
		value, _, err := a.QueryStore(req.Data, req.Prove)
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return &abcitypes.ResponseQuery{Code: 0, Key: req.Data, Value: value, Height: int64(a.blockHeight)}, nil
	}

	var qreq query.Request
	if err := json.Unmarshal(req.Data, &qreq); err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
	}
	q := a.querier(a.latestStateView())
	resp, err := q.Query(gtypes.Context{}, gas.NewUnlimitedTracker(), 0, qreq)
	if err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return &abcitypes.ResponseQuery{Code: 0, Value: raw, Height: int64(a.blockHeight)}, nil
}

// QueryStore answers a raw key lookup against the latest committed state,
// optionally computing a JMT inclusion/exclusion proof (§4.1). This is the
// non-ABCI Go API a light client or another in-process RPC layer calls
// directly; it does not speak CometBFT's protobuf ProofOps wire format.
func (a *App) QueryStore(key []byte, prove bool) ([]byte, *jmt.Proof, error) {
	value, found, err := a.latestStateView().Read(key)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		value = nil
	}
	if !prove {
		return value, nil, nil
	}
	version, err := a.Backend.LatestVersion()
	if err != nil {
		return nil, nil, err
	}
	proof, err := a.Tree.Prove(a.nodeStore, version, gtypes.HashBytes(key))
	if err != nil {
		return nil, nil, err
	}
	return value, proof, nil
}

// Simulate runs tx's full authenticate -> withhold_fee -> process_msg ->
// backrun -> finalize_fee sequence against a throwaway cached layer over
// the latest committed state in AuthSimulate mode (§4.3 "gas is still
// charged so the caller learns a realistic cost"), never persisting
// anything.
func (a *App) Simulate(tx gtypes.Tx) (TxOutcome, error) {
	if err := tx.Validate(); err != nil {
		return TxOutcome{}, err
	}
	s := store.NewCacheStore(a.latestStateView())
	cfg, err := a.Config.Load(s)
	if err != nil {
		return TxOutcome{}, err
	}

	tracker := gas.NewTracker(tx.GasLimit)
	cctx := gtypes.Context{Sender: &tx.Sender}.WithSimulate(true)

	var events []gtypes.Event
	failed := false
	var failLog string

	requestBackrun, err := a.authenticate(s, tracker, cctx, tx, gtypes.AuthSimulate)
	if err != nil {
		return TxOutcome{Hash: gtypes.HashBytes(nil), Failed: true, Log: err.Error()}, nil
	}
	fee, err := a.withholdFee(s, tracker, cctx, cfg, tx, gtypes.AuthSimulate)
	if err != nil {
		return TxOutcome{Failed: true, Log: err.Error()}, nil
	}
	events = append(events, fee...)

	for _, msg := range tx.Msgs {
		c2 := store.NewCacheStore(s)
		msgEvents, err := a.ProcessMsg(c2, tracker, cctx, tx.Sender, msg, 0)
		if err != nil {
			c2.Discard()
			failed = true
			failLog = err.Error()
			break
		}
		c2.Commit()
		events = append(events, msgEvents...)
	}

	if !failed && requestBackrun {
		backrunEvents, err := a.backrun(s, tracker, cctx, tx)
		if err != nil {
			failed = true
			failLog = err.Error()
		} else {
			events = append(events, backrunEvents...)
		}
	}

	finalizeEvents, err := a.finalizeFee(s, tracker, cctx, cfg, tx, failed)
	if err != nil {
		return TxOutcome{}, fmt.Errorf("app: simulate finalize_fee: %w", err)
	}
	events = append(events, finalizeEvents...)

	return TxOutcome{Failed: failed, Log: failLog, Events: events}, nil
}

func (a *App) loadLastFinalized() (gtypes.BlockInfo, error) {
	raw, err := a.meta.Get([]byte(lastFinalizedKey))
	if err != nil {
		return gtypes.BlockInfo{}, fmt.Errorf("app: read last finalized block: %w", err)
	}
	if raw == nil {
		return gtypes.GenesisBlockInfo(0), nil
	}
	var info gtypes.BlockInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return gtypes.BlockInfo{}, fmt.Errorf("app: decode last finalized block: %w", err)
	}
	return info, nil
}

func (a *App) saveLastFinalized(info gtypes.BlockInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return a.meta.Set([]byte(lastFinalizedKey), raw)
}
