package gtypes

import "encoding/json"

// ReplyOnKind selects when a parent contract wants to be replied to after a
// sub-message completes (§4.5).
type ReplyOnKind int

const (
	ReplyNever ReplyOnKind = iota
	ReplyOnSuccess
	ReplyOnError
	ReplyAlways
)

// SubMessage is a further message dispatched from a Response, carrying a
// reply policy and opaque payload (§4.5).
type SubMessage struct {
	Msg     Message
	ReplyOn ReplyOnKind
	Payload json.RawMessage
}

func (rc ReplyOnKind) WantsReplyOn(ok bool) bool {
	switch rc {
	case ReplyAlways:
		return true
	case ReplyOnSuccess:
		return ok
	case ReplyOnError:
		return !ok
	default:
		return false
	}
}

// Response is what a contract-invoking handler returns (§4.5).
type Response struct {
	Attributes []Attribute
	SubMsgs    []SubMessage
	Events     []Event
}

func NewResponse() Response { return Response{} }

func (r Response) WithAttribute(key, value string) Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r Response) WithSubMessage(sub SubMessage) Response {
	r.SubMsgs = append(r.SubMsgs, sub)
	return r
}

func (r Response) WithEvent(e Event) Response {
	r.Events = append(r.Events, e)
	return r
}
