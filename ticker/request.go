package ticker

import "encoding/json"

// action is the control verb carried in the "a" field of an outbound frame.
type action string

const (
	actionSubscribe   action = "subscribe"
	actionUnsubscribe action = "unsubscribe"
	actionMode        action = "mode"
)

// Request is one outbound subscription control message. It serializes to a
// text frame of the form {"a": <action>, "v": <payload>} where the payload
// is a bare token list for subscribe/unsubscribe, or a [mode, tokens] pair
// for mode changes. Token order is preserved exactly as given.
type Request struct {
	action action
	mode   Mode // set only for actionMode
	tokens []uint32
}

// NewSubscribeRequest builds a request subscribing the given tokens.
func NewSubscribeRequest(tokens []uint32) Request {
	return Request{action: actionSubscribe, tokens: tokens}
}

// NewUnsubscribeRequest builds a request unsubscribing the given tokens.
//
// Note that sending this does not remove tokens from any StreamState; a
// ledger replayed after reconnection will re-subscribe them. See the
// StreamState documentation.
func NewUnsubscribeRequest(tokens []uint32) Request {
	return Request{action: actionUnsubscribe, tokens: tokens}
}

// NewModeRequest builds a request setting the streaming mode for the given
// tokens.
func NewModeRequest(mode Mode, tokens []uint32) Request {
	return Request{action: actionMode, mode: mode, tokens: tokens}
}

// MarshalJSON implements json.Marshaler, producing the wire envelope.
func (r Request) MarshalJSON() ([]byte, error) {
	tokens := r.tokens
	if tokens == nil {
		tokens = []uint32{}
	}
	var payload any = tokens
	if r.action == actionMode {
		payload = []any{r.mode, tokens}
	}
	return json.Marshal(struct {
		A string `json:"a"`
		V any    `json:"v"`
	}{string(r.action), payload})
}

// Encode serializes the request into a ready-to-send text frame body.
func (r Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}
