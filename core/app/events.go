package app

import (
	abcitypes "github.com/cometbft/cometbft/abci/types"

	"grugchain/core/gtypes"
)

// encodeEvents flattens the Event tree (§3, §9 Design Notes) into the flat
// abcitypes.Event list ABCI expects, depth-first, preserving §5's ordering
// guarantee. Each event's commitment/status is carried as ordinary
// attributes since abcitypes.Event has no concept of either.
func encodeEvents(events []gtypes.Event) []abcitypes.Event {
	var out []abcitypes.Event
	for _, e := range events {
		out = append(out, encodeEvent(e))
		out = append(out, encodeEvents(e.Nested)...)
	}
	return out
}

func encodeEvent(e gtypes.Event) abcitypes.Event {
	attrs := make([]abcitypes.EventAttribute, 0, len(e.Attributes)+2)
	for _, a := range e.Attributes {
		attrs = append(attrs, abcitypes.EventAttribute{Key: a.Key, Value: a.Value, Index: true})
	}
	attrs = append(attrs, abcitypes.EventAttribute{Key: "_commitment", Value: commitmentString(e.Commitment)})
	if e.Status.Kind == gtypes.StatusFailed {
		attrs = append(attrs, abcitypes.EventAttribute{Key: "_error", Value: e.Status.Error})
	}
	return abcitypes.Event{Type: string(e.Kind), Attributes: attrs}
}

func commitmentString(c gtypes.CommitmentStatus) string {
	if c == gtypes.Reverted {
		return "reverted"
	}
	return "committed"
}
