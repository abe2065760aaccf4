package gtypes

import "encoding/json"

// Context is passed to every guest entry point (§4.6 step 3), grounded on
// original_source crates/std/src/types/context.rs.
type Context struct {
	ChainID        string
	BlockHeight    uint64
	BlockTimestamp Timestamp
	BlockHash      Hash
	Contract       Address
	Sender         *Address
	Funds          *Coins
	Simulate       *bool
	SubmsgResult   *GenericResult[[]Event] // set only for the `reply` entry point
}

// AuthMode is propagated through Context during authenticate/withhold/
// finalize (§4.3).
type AuthMode int

const (
	AuthCheck AuthMode = iota
	AuthFinalize
	AuthSimulate
)

func (m AuthMode) String() string {
	switch m {
	case AuthCheck:
		return "check"
	case AuthFinalize:
		return "finalize"
	case AuthSimulate:
		return "simulate"
	default:
		return "unknown"
	}
}

// WithSender returns a copy of ctx with Sender set, used by Execute/
// Instantiate/Transfer entry points.
func (ctx Context) WithSender(sender Address) Context {
	ctx.Sender = &sender
	return ctx
}

// WithFunds returns a copy of ctx with Funds set.
func (ctx Context) WithFunds(funds Coins) Context {
	ctx.Funds = &funds
	return ctx
}

// WithSimulate returns a copy of ctx with the simulate flag set.
func (ctx Context) WithSimulate(simulate bool) Context {
	ctx.Simulate = &simulate
	return ctx
}

// WithSubmsgResult returns a copy of ctx carrying a reply's submessage
// result.
func (ctx Context) WithSubmsgResult(result GenericResult[[]Event]) Context {
	ctx.SubmsgResult = &result
	return ctx
}

// MarshalJSON renders Context with the tagged-object schema (§6).
func (ctx Context) MarshalJSON() ([]byte, error) {
	type alias struct {
		ChainID        string                   `json:"chain_id"`
		BlockHeight    string                   `json:"block_height"`
		BlockTimestamp Timestamp                `json:"block_timestamp"`
		BlockHash      Hash                     `json:"block_hash"`
		Contract       Address                  `json:"contract"`
		Sender         *Address                 `json:"sender,omitempty"`
		Funds          *Coins                   `json:"funds,omitempty"`
		Simulate       *bool                    `json:"simulate,omitempty"`
		SubmsgResult   *GenericResult[[]Event]  `json:"submsg_result,omitempty"`
	}
	return json.Marshal(alias{
		ChainID:        ctx.ChainID,
		BlockHeight:    uint64ToDecimal(ctx.BlockHeight),
		BlockTimestamp: ctx.BlockTimestamp,
		BlockHash:      ctx.BlockHash,
		Contract:       ctx.Contract,
		Sender:         ctx.Sender,
		Funds:          ctx.Funds,
		Simulate:       ctx.Simulate,
		SubmsgResult:   ctx.SubmsgResult,
	})
}

func uint64ToDecimal(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
