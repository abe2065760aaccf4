package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"grugchain/core/collections"
	"grugchain/core/cryptoprims"
	"grugchain/core/gas"
	"grugchain/core/gtypes"
	"grugchain/core/query"
	"grugchain/core/store"
	"grugchain/core/wasmvm"
)

// invokeEntry resolves contract's Code, builds its PrefixStore substore and
// a query_chain closure recursing into this block's own in-flight state,
// and runs entry, decoding the guest's GenericResult[Response] (§4.6).
func (a *App) invokeEntry(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, contract gtypes.Address, entry wasmvm.Entrypoint, msg json.RawMessage, readOnly bool) (gtypes.Response, error) {
	info, err := a.Contracts.Load(s, collections.BytesKey(contract[:]))
	if err != nil {
		return gtypes.Response{}, fmt.Errorf("app: load contract %s: %w", contract, err)
	}
	code, err := a.Codes.Load(s, collections.BytesKey(info.CodeHash[:]))
	if err != nil {
		return gtypes.Response{}, fmt.Errorf("app: load code %s: %w", info.CodeHash, err)
	}
	sub := store.NewPrefixStore(s, contract[:])
	q := a.querier(s)

	queryFn := func(reqJSON []byte, depth uint32) ([]byte, error) {
		var nested query.Request
		if err := json.Unmarshal(reqJSON, &nested); err != nil {
			return nil, fmt.Errorf("app: decode nested query_chain request: %w", err)
		}
		resp, err := q.Query(ctx, tracker, depth, nested)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}

	var env wasmvm.Env
	if readOnly {
		env = wasmvm.NewReadOnlyEnv(sub, tracker, a.Gas, a.MaxQuery, queryFn)
	} else {
		env = wasmvm.NewMutableEnv(sub, tracker, a.Gas, a.MaxQuery, queryFn)
	}

	callCtx := ctx
	callCtx.Contract = contract
	result, err := wasmvm.Call[gtypes.Response](a.VM, info.CodeHash, code.Bytecode, entry, env, callCtx, msg)
	if err != nil {
		return gtypes.Response{}, err
	}
	resp, err := result.Into()
	if err != nil {
		return gtypes.Response{}, err
	}
	for _, ev := range append([]gtypes.Event{{Attributes: resp.Attributes}}, resp.Events...) {
		for _, attr := range ev.Attributes {
			if strings.HasPrefix(attr.Key, "_") {
				return gtypes.Response{}, fmt.Errorf("app: contract %s set reserved attribute key %q", contract, attr.Key)
			}
		}
	}
	return resp, nil
}

// ProcessMsg routes msg by kind to its handler (§4.5). depth is the
// sub-message recursion depth, 0 for a tx's own top-level messages.
func (a *App) ProcessMsg(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, sender gtypes.Address, msg gtypes.Message, depth int) ([]gtypes.Event, error) {
	if depth > MaxMessageDepth {
		return nil, gtypes.ErrExceedMaxMessageDepth
	}
	switch msg.Kind {
	case gtypes.MsgConfigure:
		return a.handleConfigure(s, ctx, sender, msg.Configure)
	case gtypes.MsgTransfer:
		return a.handleTransfer(s, tracker, ctx, sender, msg.Transfer, depth)
	case gtypes.MsgUpload:
		return a.handleUpload(s, ctx, sender, msg.Upload)
	case gtypes.MsgInstantiate:
		return a.handleInstantiate(s, tracker, ctx, sender, msg.Instantiate, depth)
	case gtypes.MsgExecute:
		return a.handleExecute(s, tracker, ctx, sender, msg.Execute, depth)
	case gtypes.MsgMigrate:
		return a.handleMigrate(s, tracker, ctx, sender, msg.Migrate, depth)
	default:
		return nil, fmt.Errorf("app: unknown message kind %d", msg.Kind)
	}
}

// handleConfigure mutates Config/AppConfig directly: it is host-level
// bookkeeping, not a guest invocation (§3 "Config is mutable only by
// Owner").
func (a *App) handleConfigure(s store.Store, ctx gtypes.Context, sender gtypes.Address, data *gtypes.MsgConfigureData) ([]gtypes.Event, error) {
	cfg, err := a.Config.Load(s)
	if err != nil {
		return nil, err
	}
	if sender != cfg.Owner {
		return nil, gtypes.ErrUnauthorized
	}
	if data.NewConfig != nil {
		if err := a.Config.Save(s, *data.NewConfig); err != nil {
			return nil, err
		}
	}
	if data.NewAppConfig != nil {
		for _, k := range data.NewAppConfig.Keys() {
			v, _ := data.NewAppConfig.Get(k)
			if err := a.AppConfig.Save(s, v, collections.StringKey(k)); err != nil {
				return nil, err
			}
		}
	}
	return []gtypes.Event{gtypes.NewConfigureEvent(sender)}, nil
}

// handleUpload stores a new Code record, orphaned until the first
// Instantiate references it (§3 Code lifecycle).
func (a *App) handleUpload(s store.Store, ctx gtypes.Context, sender gtypes.Address, data *gtypes.MsgUploadData) ([]gtypes.Event, error) {
	cfg, err := a.Config.Load(s)
	if err != nil {
		return nil, err
	}
	if !cfg.Permissions.Upload.Allows(sender, cfg.Owner) {
		return nil, gtypes.ErrUnauthorized
	}
	hash := gtypes.HashBytes(data.Bytecode)
	if _, found, err := a.Codes.MayLoad(s, collections.BytesKey(hash[:])); err != nil {
		return nil, err
	} else if found {
		return nil, gtypes.ErrCodeExists
	}
	code := gtypes.Code{Hash: hash, Bytecode: data.Bytecode, Status: gtypes.OrphanedStatus(ctx.BlockTimestamp)}
	if err := a.Codes.Save(s, code, collections.BytesKey(hash[:])); err != nil {
		return nil, err
	}
	return []gtypes.Event{gtypes.NewUploadEvent(sender, hash)}, nil
}

// handleInstantiate derives the new contract's address (§6), registers its
// ContractInfo, moves any attached funds through the bank, and runs the
// guest's instantiate entry point.
func (a *App) handleInstantiate(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, sender gtypes.Address, data *gtypes.MsgInstantiateData, depth int) ([]gtypes.Event, error) {
	cfg, err := a.Config.Load(s)
	if err != nil {
		return nil, err
	}
	if !cfg.Permissions.Instantiate.Allows(sender, cfg.Owner) {
		return nil, gtypes.ErrUnauthorized
	}
	code, err := a.Codes.Load(s, collections.BytesKey(data.CodeHash[:]))
	if err != nil {
		return nil, fmt.Errorf("app: instantiate unknown code %s: %w", data.CodeHash, err)
	}
	addr, err := cryptoprims.DeriveAddress(sender, data.CodeHash, data.Salt)
	if err != nil {
		return nil, err
	}
	if _, found, err := a.Contracts.MayLoad(s, collections.BytesKey(addr[:])); err != nil {
		return nil, err
	} else if found {
		return nil, gtypes.ErrAccountExists
	}

	code.IncrementUsage()
	if err := a.Codes.Save(s, code, collections.BytesKey(data.CodeHash[:])); err != nil {
		return nil, err
	}
	if err := a.Contracts.Save(s, collections.BytesKey(addr[:]), gtypes.ContractInfo{CodeHash: data.CodeHash, Admin: data.Admin, Label: data.Label}); err != nil {
		return nil, err
	}

	var events []gtypes.Event
	if !data.Funds.IsEmpty() {
		fundEvents, err := a.transferCoins(s, tracker, ctx, sender, addr, data.Funds, depth)
		if err != nil {
			return nil, err
		}
		events = append(events, fundEvents...)
	}

	callCtx := ctx.WithSender(sender).WithFunds(data.Funds)
	resp, err := a.invokeEntry(s, tracker, callCtx, addr, wasmvm.EntryInstantiate, data.Msg, false)
	if err != nil {
		return nil, err
	}
	subEvents, err := a.runSubMessages(s, tracker, callCtx, addr, resp, depth)
	if err != nil {
		return nil, err
	}

	ev := gtypes.NewInstantiateEvent(sender, addr, data.CodeHash)
	ev.Attributes = append(ev.Attributes, resp.Attributes...)
	ev = ev.WithNested(append(append([]gtypes.Event{}, resp.Events...), subEvents...)...)
	return append(events, ev), nil
}

// handleExecute runs contract's execute entry point (§4.5).
func (a *App) handleExecute(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, sender gtypes.Address, data *gtypes.MsgExecuteData, depth int) ([]gtypes.Event, error) {
	var events []gtypes.Event
	if !data.Funds.IsEmpty() {
		fundEvents, err := a.transferCoins(s, tracker, ctx, sender, data.Contract, data.Funds, depth)
		if err != nil {
			return nil, err
		}
		events = append(events, fundEvents...)
	}

	callCtx := ctx.WithSender(sender).WithFunds(data.Funds)
	resp, err := a.invokeEntry(s, tracker, callCtx, data.Contract, wasmvm.EntryExecute, data.Msg, false)
	if err != nil {
		return nil, err
	}
	subEvents, err := a.runSubMessages(s, tracker, callCtx, data.Contract, resp, depth)
	if err != nil {
		return nil, err
	}

	ev := gtypes.NewExecuteEvent(sender, data.Contract)
	ev.Attributes = append(ev.Attributes, resp.Attributes...)
	ev = ev.WithNested(append(append([]gtypes.Event{}, resp.Events...), subEvents...)...)
	return append(events, ev), nil
}

// handleMigrate checks admin authorization, repoints ContractInfo at the
// new code hash, and runs the new code's migrate entry point over the
// contract's existing substore (§3 "only Admin may migrate").
func (a *App) handleMigrate(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, sender gtypes.Address, data *gtypes.MsgMigrateData, depth int) ([]gtypes.Event, error) {
	info, err := a.Contracts.Load(s, collections.BytesKey(data.Contract[:]))
	if err != nil {
		return nil, err
	}
	if !info.HasAdmin() {
		return nil, gtypes.ErrAdminNotSet
	}
	if *info.Admin != sender {
		return nil, gtypes.ErrUnauthorized
	}
	newCode, err := a.Codes.Load(s, collections.BytesKey(data.NewCodeHash[:]))
	if err != nil {
		return nil, fmt.Errorf("app: migrate to unknown code %s: %w", data.NewCodeHash, err)
	}

	oldCodeHash := info.CodeHash
	oldCode, err := a.Codes.Load(s, collections.BytesKey(oldCodeHash[:]))
	if err == nil {
		oldCode.DecrementUsage(ctx.BlockTimestamp)
		if err := a.Codes.Save(s, oldCode, collections.BytesKey(oldCodeHash[:])); err != nil {
			return nil, err
		}
	}
	newCode.IncrementUsage()
	if err := a.Codes.Save(s, newCode, collections.BytesKey(data.NewCodeHash[:])); err != nil {
		return nil, err
	}
	info.CodeHash = data.NewCodeHash
	if err := a.Contracts.Save(s, collections.BytesKey(data.Contract[:]), info); err != nil {
		return nil, err
	}

	callCtx := ctx.WithSender(sender)
	resp, err := a.invokeEntry(s, tracker, callCtx, data.Contract, wasmvm.EntryMigrate, data.Msg, false)
	if err != nil {
		return nil, err
	}
	subEvents, err := a.runSubMessages(s, tracker, callCtx, data.Contract, resp, depth)
	if err != nil {
		return nil, err
	}

	ev := gtypes.NewMigrateEvent(sender, data.Contract, data.NewCodeHash)
	ev.Attributes = append(ev.Attributes, resp.Attributes...)
	ev = ev.WithNested(append(append([]gtypes.Event{}, resp.Events...), subEvents...)...)
	return []gtypes.Event{ev}, nil
}

// handleTransfer moves coins from sender to data.To through the bank
// contract (§4.8).
func (a *App) handleTransfer(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, sender gtypes.Address, data *gtypes.MsgTransferData, depth int) ([]gtypes.Event, error) {
	return a.transferCoins(s, tracker, ctx, sender, data.To, data.Coins, depth)
}

// bankExecuteRequest is the payload handed to the Bank contract's
// bank_execute entry point (§4.8).
type bankExecuteRequest struct {
	Kind  string         `json:"kind"`
	From  gtypes.Address `json:"from"`
	To    gtypes.Address `json:"to"`
	Coins gtypes.Coins   `json:"coins"`
}

// transferCoins is the one path by which funds move between accounts: any
// Transfer message, and any funds attached to Instantiate/Execute,
// ultimately calls bank_execute on Config.Bank (§4.8).
func (a *App) transferCoins(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, from, to gtypes.Address, coins gtypes.Coins, depth int) ([]gtypes.Event, error) {
	cfg, err := a.Config.Load(s)
	if err != nil {
		return nil, err
	}
	msg, err := json.Marshal(bankExecuteRequest{Kind: "transfer", From: from, To: to, Coins: coins})
	if err != nil {
		return nil, err
	}

	callCtx := ctx.WithSender(from)
	resp, err := a.invokeEntry(s, tracker, callCtx, cfg.Bank, wasmvm.EntryBankExecute, msg, false)
	if err != nil {
		return nil, err
	}
	subEvents, err := a.runSubMessages(s, tracker, callCtx, cfg.Bank, resp, depth)
	if err != nil {
		return nil, err
	}

	events := []gtypes.Event{gtypes.NewTransferEvent(from, to), gtypes.NewReceiveEvent(to, from)}
	events = append(events, resp.Events...)
	events = append(events, subEvents...)
	return events, nil
}

// runSubMessages dispatches resp.SubMsgs depth-first, each in its own
// nested cached layer, committing or discarding per the reply_on/result
// matrix of §4.5.
func (a *App) runSubMessages(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, contract gtypes.Address, resp gtypes.Response, depth int) ([]gtypes.Event, error) {
	var events []gtypes.Event
	for _, sub := range resp.SubMsgs {
		if depth+1 > MaxMessageDepth {
			return nil, gtypes.ErrExceedMaxMessageDepth
		}
		c2 := store.NewCacheStore(s)
		subCtx := ctx.WithSender(contract)
		subEvents, err := a.ProcessMsg(c2, tracker, subCtx, contract, sub.Msg, depth+1)
		ok := err == nil
		wantsReply := sub.ReplyOn.WantsReplyOn(ok)

		if ok {
			if cerr := c2.Commit(); cerr != nil {
				return nil, cerr
			}
			events = append(events, subEvents...)
			if wantsReply {
				replyEvents, rerr := a.reply(s, tracker, ctx, contract, gtypes.Ok(subEvents), sub.Payload, depth)
				if rerr != nil {
					return nil, rerr
				}
				events = append(events, replyEvents...)
			}
			continue
		}

		c2.Discard()
		if wantsReply {
			replyEvents, rerr := a.reply(s, tracker, ctx, contract, gtypes.Err[[]gtypes.Event](err.Error()), sub.Payload, depth)
			if rerr != nil {
				return nil, rerr
			}
			events = append(events, replyEvents...)
			continue
		}
		// Success|Never + Err with no matching reply: propagate, aborting
		// the caller (§4.5 step 4).
		return nil, err
	}
	return events, nil
}

// reply runs the parent contract's reply entry point carrying the
// sub-message outcome, whose own Response may itself recurse into further
// sub-messages (§4.5 step 5).
func (a *App) reply(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, contract gtypes.Address, result gtypes.GenericResult[[]gtypes.Event], payload json.RawMessage, depth int) ([]gtypes.Event, error) {
	replyCtx := ctx.WithSubmsgResult(result)
	resp, err := a.invokeEntry(s, tracker, replyCtx, contract, wasmvm.EntryReply, payload, false)
	if err != nil {
		return nil, err
	}
	subEvents, err := a.runSubMessages(s, tracker, ctx, contract, resp, depth+1)
	if err != nil {
		return nil, err
	}
	ev := gtypes.NewReplyEvent(contract)
	ev.Attributes = append(ev.Attributes, resp.Attributes...)
	ev = ev.WithNested(append(append([]gtypes.Event{}, resp.Events...), subEvents...)...)
	return []gtypes.Event{ev}, nil
}

// authPayload is the JSON passed to authenticate/backrun/withhold_fee/
// finalize_fee entry points: the tx under consideration plus the auth mode
// it's being run in (§4.3 AuthMode, §4.4 step 4).
type authPayload struct {
	Mode string    `json:"mode"`
	Tx   gtypes.Tx `json:"tx"`
}

const requestBackrunAttr = "request_backrun"

func parseBoolAttr(resp gtypes.Response, key string) bool {
	for _, a := range resp.Attributes {
		if a.Key == key {
			return a.Value == "true"
		}
	}
	return false
}

// authenticate runs tx.sender's authenticate entry point (§4.4 step 4b,
// "check_tx"). The Response's request_backrun attribute tells the caller
// whether to invoke backrun once the tx's messages settle.
func (a *App) authenticate(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, tx gtypes.Tx, mode gtypes.AuthMode) (bool, error) {
	payload, err := json.Marshal(authPayload{Mode: mode.String(), Tx: tx})
	if err != nil {
		return false, err
	}
	resp, err := a.invokeEntry(s, tracker, ctx, tx.Sender, wasmvm.EntryAuthenticate, payload, mode == gtypes.AuthCheck)
	if err != nil {
		return false, err
	}
	return parseBoolAttr(resp, requestBackrunAttr), nil
}

// withholdFee invokes the taxman's withhold_fee entry point, which must
// force-transfer up to gas_limit * fee_rate from tx.sender to itself (§4.4
// step 4c).
func (a *App) withholdFee(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, cfg gtypes.Config, tx gtypes.Tx, mode gtypes.AuthMode) ([]gtypes.Event, error) {
	payload, err := json.Marshal(authPayload{Mode: mode.String(), Tx: tx})
	if err != nil {
		return nil, err
	}
	resp, err := a.invokeEntry(s, tracker, ctx, cfg.Taxman, wasmvm.EntryWithholdFee, payload, mode == gtypes.AuthCheck)
	if err != nil {
		return nil, err
	}
	ev := gtypes.NewWithholdEvent(cfg.Taxman, tx.Sender)
	ev.Attributes = append(ev.Attributes, resp.Attributes...)
	return append([]gtypes.Event{ev}, resp.Events...), nil
}

// finalizeFee invokes the taxman's finalize_fee entry point, settling the
// gas actually consumed regardless of whether the tx's messages succeeded
// (§4.4 step 4f: "this MUST succeed — failure is a protocol bug").
func (a *App) finalizeFee(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, cfg gtypes.Config, tx gtypes.Tx, txFailed bool) ([]gtypes.Event, error) {
	payload, err := json.Marshal(struct {
		Tx      gtypes.Tx `json:"tx"`
		GasUsed uint64    `json:"gas_used"`
		Failed  bool      `json:"failed"`
	}{Tx: tx, GasUsed: tracker.Used(), Failed: txFailed})
	if err != nil {
		return nil, err
	}
	resp, err := a.invokeEntry(s, tracker, ctx, cfg.Taxman, wasmvm.EntryFinalizeFee, payload, false)
	if err != nil {
		return nil, err
	}
	ev := gtypes.NewFinalizeEvent(cfg.Taxman, tx.Sender)
	ev.Attributes = append(ev.Attributes, resp.Attributes...)
	return append([]gtypes.Event{ev}, resp.Events...), nil
}

// backrun invokes tx.sender's backrun entry point once the tx's messages
// have settled, when authenticate requested it (§4.4 step 4e).
func (a *App) backrun(s store.Store, tracker *gas.Tracker, ctx gtypes.Context, tx gtypes.Tx) ([]gtypes.Event, error) {
	payload, err := json.Marshal(authPayload{Mode: gtypes.AuthFinalize.String(), Tx: tx})
	if err != nil {
		return nil, err
	}
	resp, err := a.invokeEntry(s, tracker, ctx, tx.Sender, wasmvm.EntryBackrun, payload, false)
	if err != nil {
		return nil, err
	}
	ev := gtypes.NewAfterTxEvent(tx.Sender)
	ev.Attributes = append(ev.Attributes, resp.Attributes...)
	return append([]gtypes.Event{ev}, resp.Events...), nil
}
