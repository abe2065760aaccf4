package app

import (
	"encoding/json"
	"fmt"
	"sort"

	"grugchain/core/collections"
	"grugchain/core/gas"
	"grugchain/core/gtypes"
	"grugchain/core/store"
	"grugchain/core/wasmvm"
)

// defaultCronGasLimit bounds a single cron_execute invocation (§4.8
// "implementation-defined gas cap per invocation").
const defaultCronGasLimit = 10_000_000

// runCronjobs runs §4.4 step 3/5: every contract in cfg.Cronjobs whose
// scheduled next_execution has arrived gets invoked via cron_execute, in
// firing order (next_execution, address) ascending (§5 determinism). Each
// cronjob runs in its own isolated cached layer so one failing cronjob
// cannot revert another or the block itself.
func (a *App) runCronjobs(cfg gtypes.Config, beginBlock bool) ([]gtypes.Event, error) {
	var events []gtypes.Event
	addrs := cfg.SortedCronAddrs()

	type due struct {
		addr     gtypes.Address
		next     gtypes.Timestamp
		interval gtypes.Duration
	}
	var firing []due
	for _, addr := range addrs {
		interval := cfg.Cronjobs[addr]
		next, found, err := a.NextCron.MayLoad(a.block, collections.BytesKey(addr[:]))
		if err != nil {
			return nil, err
		}
		if !found {
			// First time this cron is seen: schedule its first firing
			// without executing it this block.
			if err := a.NextCron.Save(a.block, a.blockTime.Add(interval), collections.BytesKey(addr[:])); err != nil {
				return nil, err
			}
			continue
		}
		if next.After(a.blockTime) {
			continue
		}
		firing = append(firing, due{addr: addr, next: next, interval: interval})
	}
	// addrs is already address-sorted, so a stable sort on next_execution
	// yields (next_execution, address) order.
	sort.SliceStable(firing, func(i, j int) bool { return firing[j].next.After(firing[i].next) })

	for _, d := range firing {
		c2 := store.NewCacheStore(a.block)
		tracker := gas.NewTracker(defaultCronGasLimit)
		cctx := gtypes.Context{BlockHeight: a.blockHeight, BlockTimestamp: a.blockTime, Contract: d.addr}

		resp, err := a.invokeEntry(c2, tracker, cctx, d.addr, wasmvm.EntryCronExecute, json.RawMessage(`{}`), false)
		ev := gtypes.NewAfterBlockEvent(d.addr)
		if beginBlock {
			ev = gtypes.NewBeforeBlockEvent(d.addr)
		}
		if err != nil {
			c2.Discard()
			ev = ev.Failed(err.Error())
		} else {
			if cerr := c2.Commit(); cerr != nil {
				return nil, cerr
			}
			ev.Attributes = append(ev.Attributes, resp.Attributes...)
			ev = ev.WithNested(resp.Events...)
		}
		events = append(events, ev)

		nextFire := d.next.Add(d.interval)
		if err := a.NextCron.Save(a.block, nextFire, collections.BytesKey(d.addr[:])); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// sweepOrphans deletes every Code record that has been Orphaned for longer
// than cfg.MaxOrphanAge and purges it from the in-memory module cache
// (§4.4 step 6, §3 "Code lifecycle": "deletable once Orphaned for longer
// than max_orphan_age, a maintenance sweep during cronjob phase"). Deletion
// is host-level bookkeeping with no acting contract, so it carries no
// Event of its own.
func (a *App) sweepOrphans(cfg gtypes.Config) ([]gtypes.Event, error) {
	entries, err := a.Codes.Range(a.block, nil, collections.UnboundedBound(), collections.UnboundedBound(), store.Ascending)
	if err != nil {
		return nil, fmt.Errorf("app: range codes for orphan sweep: %w", err)
	}

	for _, e := range entries {
		code := e.Value
		if !code.Status.Orphan {
			continue
		}
		if !code.IsOrphanExpired(a.blockTime, cfg.MaxOrphanAge) {
			continue
		}
		hash := code.Hash
		if err := a.Codes.Remove(a.block, collections.BytesKey(hash[:])); err != nil {
			return nil, err
		}
		a.Cache.Purge(hash)
	}
	return nil, nil
}
