package gtypes

// ContractAddressKey is the reserved attribute key the host always injects
// with the acting contract's address; guest code may not set it directly
// (§3, grounded on original_source crates/app/src/events.rs — the
// underscore prefix convention prevents a contract from spoofing protocol
// attributes).
const ContractAddressKey = "_contract_address"

// EventKind names the protocol action an Event records (§3).
type EventKind string

const (
	EventConfigure    EventKind = "configure"
	EventTransfer     EventKind = "transfer"
	EventUpload       EventKind = "upload"
	EventInstantiate  EventKind = "instantiate"
	EventExecute      EventKind = "execute"
	EventMigrate      EventKind = "migrate"
	EventReply        EventKind = "reply"
	EventAuthenticate EventKind = "authenticate"
	EventBackrun      EventKind = "backrun"
	EventWithhold     EventKind = "withhold"
	EventFinalize     EventKind = "finalize"
	EventCron         EventKind = "cron"
	EventGuest        EventKind = "guest"
)

// CommitmentStatus records whether an event's associated cached layer
// ultimately committed or was rolled back (§3, §9 Design Notes).
type CommitmentStatus int

const (
	Committed CommitmentStatus = iota
	Reverted
)

// EventStatusKind tags EventStatus's three variants (§3).
type EventStatusKind int

const (
	StatusOk EventStatusKind = iota
	StatusFailed
	StatusNestedFailed
)

// EventStatus is `Ok(payload) | Failed{event, error} | NestedFailed(event)`
// (§3).
type EventStatus struct {
	Kind  EventStatusKind
	Error string // valid when Kind == StatusFailed
}

func StatusOkay() EventStatus                { return EventStatus{Kind: StatusOk} }
func StatusFailure(err string) EventStatus   { return EventStatus{Kind: StatusFailed, Error: err} }
func StatusNested() EventStatus              { return EventStatus{Kind: StatusNestedFailed} }

// Attribute is a single key/value pair on an Event.
type Attribute struct {
	Key   string
	Value string
}

// Event is a typed record emitted during execution (§3). Events carry
// structured fields plus nested sub-events from sub-messages, forming a tree
// mirroring the call tree.
type Event struct {
	Kind       EventKind
	Commitment CommitmentStatus
	Status     EventStatus
	Attributes []Attribute
	Nested     []Event
}

func newEvent(kind EventKind, contract Address, attrs ...Attribute) Event {
	all := make([]Attribute, 0, len(attrs)+1)
	all = append(all, Attribute{Key: ContractAddressKey, Value: contract.String()})
	all = append(all, attrs...)
	return Event{Kind: kind, Commitment: Committed, Status: StatusOkay(), Attributes: all}
}

// WithNested attaches child events produced by sub-messages, preserving the
// depth-first ordering required by §5.
func (e Event) WithNested(children ...Event) Event {
	e.Nested = append(e.Nested, children...)
	return e
}

// Failed marks this event as reverted with the given error string (§3
// EventStatus::Failed). Ancestor events are not changed.
func (e Event) Failed(err string) Event {
	e.Commitment = Reverted
	e.Status = StatusFailure(err)
	return e
}

// NestedFailed marks an event whose failure originated in a descendant.
func (e Event) NestedFailed() Event {
	e.Commitment = Reverted
	e.Status = StatusNested()
	return e
}

// The following constructors mirror original_source
// crates/app/src/events.rs one-for-one; each pins the attribute set a given
// protocol action is expected to carry.

func NewConfigureEvent(sender Address) Event {
	return newEvent(EventConfigure, sender)
}

func NewUploadEvent(uploader Address, codeHash Hash) Event {
	return newEvent(EventUpload, uploader, Attribute{Key: "code_hash", Value: codeHash.String()})
}

func NewInstantiateEvent(sender, contract Address, codeHash Hash) Event {
	return newEvent(EventInstantiate, contract,
		Attribute{Key: "sender", Value: sender.String()},
		Attribute{Key: "code_hash", Value: codeHash.String()},
	)
}

func NewExecuteEvent(sender, contract Address) Event {
	return newEvent(EventExecute, contract, Attribute{Key: "sender", Value: sender.String()})
}

func NewMigrateEvent(sender, contract Address, newCodeHash Hash) Event {
	return newEvent(EventMigrate, contract,
		Attribute{Key: "sender", Value: sender.String()},
		Attribute{Key: "new_code_hash", Value: newCodeHash.String()},
	)
}

func NewTransferEvent(from, to Address) Event {
	return newEvent(EventTransfer, from, Attribute{Key: "to", Value: to.String()})
}

func NewReceiveEvent(contract, from Address) Event {
	return newEvent(EventTransfer, contract, Attribute{Key: "from", Value: from.String()})
}

func NewReplyEvent(contract Address) Event {
	return newEvent(EventReply, contract)
}

func NewBeforeBlockEvent(contract Address) Event {
	return newEvent(EventCron, contract, Attribute{Key: "phase", Value: "before_block"})
}

func NewAfterBlockEvent(contract Address) Event {
	return newEvent(EventCron, contract, Attribute{Key: "phase", Value: "after_block"})
}

func NewBeforeTxEvent(sender Address) Event {
	return newEvent(EventAuthenticate, sender, Attribute{Key: "phase", Value: "before_tx"})
}

func NewAfterTxEvent(sender Address) Event {
	return newEvent(EventBackrun, sender, Attribute{Key: "phase", Value: "after_tx"})
}

func NewWithholdEvent(taxman, sender Address) Event {
	return newEvent(EventWithhold, taxman, Attribute{Key: "payer", Value: sender.String()})
}

func NewFinalizeEvent(taxman, sender Address) Event {
	return newEvent(EventFinalize, taxman, Attribute{Key: "payer", Value: sender.String()})
}
