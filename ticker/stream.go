package ticker

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/zerodha/kitefeed/kc"
)

// DefaultAPIBase is the production Kite streaming endpoint. Override with
// StreamState.WithAPIBase (the core never reads the environment; endpoint
// overrides belong to the caller's config layer).
const DefaultAPIBase = "wss://ws.kite.trade"

// Credentials authenticate a streaming connection. Both values are secrets;
// they are exposed in cleartext only when building the connection URI, which
// is the transport scheme the upstream API requires.
type Credentials struct {
	apiKey      string
	accessToken string
}

// CredentialsFromParts builds Credentials from an API key and access token.
func CredentialsFromParts(apiKey, accessToken string) Credentials {
	return Credentials{apiKey: apiKey, accessToken: accessToken}
}

// CredentialsFromSession derives streaming credentials from a REST login
// session.
func CredentialsFromSession(apiKey string, session *kc.UserSession) Credentials {
	return Credentials{apiKey: apiKey, accessToken: session.AccessToken}
}

// queryParams renders the credentials as connection query parameters.
// Parameter order is fixed: api_key first, then access_token.
func (c Credentials) queryParams() string {
	return fmt.Sprintf("api_key=%s&access_token=%s",
		url.QueryEscape(c.apiKey), url.QueryEscape(c.accessToken))
}

// LogValue implements slog.LogValuer so credentials never reach log output
// in cleartext.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_key", redact(c.apiKey)),
		slog.String("access_token", redact(c.accessToken)),
	)
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

// StreamState is the subscription ledger for one streaming connection: the
// endpoint, the credentials, and which instrument tokens are subscribed at
// which mode. It is a builder; SubscribeToken returns the same state for
// chaining. Ownership transfers to the Client at Connect, after which the
// ledger is read-only and is replayed in full on every reconnect.
//
// The ledger has no removal operation. An unsubscribe control message can be
// sent independently, but the ledger keeps driving replay, so any token it
// holds is re-subscribed after a reconnect. Callers that need a token gone
// for good must build a fresh ledger and a fresh connection.
type StreamState struct {
	apiBase      string
	creds        Credentials
	subscription map[Mode][]uint32
	// modes in first-subscription order; keeps replay deterministic
	order []Mode
}

// FromCredentials returns an empty ledger pointed at the default endpoint.
func FromCredentials(creds Credentials) *StreamState {
	return &StreamState{
		apiBase:      DefaultAPIBase,
		creds:        creds,
		subscription: make(map[Mode][]uint32),
	}
}

// FromParts returns an empty ledger with an explicit endpoint.
func FromParts(apiBase, apiKey, accessToken string) *StreamState {
	s := FromCredentials(CredentialsFromParts(apiKey, accessToken))
	s.apiBase = apiBase
	return s
}

// WithAPIBase overrides the streaming endpoint.
func (s *StreamState) WithAPIBase(apiBase string) *StreamState {
	s.apiBase = apiBase
	return s
}

// SubscribeToken appends token to the bucket for mode, creating the bucket
// if absent. Duplicates are kept as given; the ledger does not deduplicate.
func (s *StreamState) SubscribeToken(mode Mode, token uint32) *StreamState {
	if _, ok := s.subscription[mode]; !ok {
		s.order = append(s.order, mode)
	}
	s.subscription[mode] = append(s.subscription[mode], token)
	return s
}

// ToURI renders the full connection URI including credential query
// parameters.
func (s *StreamState) ToURI() string {
	return fmt.Sprintf("%s?%s", s.apiBase, s.creds.queryParams())
}

// TokenCount returns the total number of subscribed tokens across all modes.
func (s *StreamState) TokenCount() int {
	n := 0
	for _, tokens := range s.subscription {
		n += len(tokens)
	}
	return n
}

// Subscriptions returns a copy of the ledger's mode buckets.
func (s *StreamState) Subscriptions() map[Mode][]uint32 {
	out := make(map[Mode][]uint32, len(s.subscription))
	for mode, tokens := range s.subscription {
		cp := make([]uint32, len(tokens))
		copy(cp, tokens)
		out[mode] = cp
	}
	return out
}

// SubscriptionStream returns a fresh replay enumeration over a snapshot of
// the ledger. Each call restarts from the first mode bucket.
func (s *StreamState) SubscriptionStream() *SubscriptionStream {
	keys := make([]Mode, len(s.order))
	copy(keys, s.order)
	return &SubscriptionStream{
		data: s.Subscriptions(),
		keys: keys,
	}
}

// SubscriptionStream is a finite enumeration of ready-to-send control
// messages, one per non-empty mode bucket of the ledger snapshot it was
// built from. The cursor only moves forward; reconstruct the stream to
// replay again.
type SubscriptionStream struct {
	data map[Mode][]uint32
	keys []Mode
	idx  int
}

// Next returns the next encoded control message. ok is false once the
// stream is exhausted. Empty buckets are skipped, not emitted as empty
// messages. An encoding error aborts only the current bucket; subsequent
// calls continue with the next one.
func (ss *SubscriptionStream) Next() (msg []byte, ok bool, err error) {
	for ss.idx < len(ss.keys) {
		key := ss.keys[ss.idx]
		ss.idx++

		tokens := ss.data[key]
		if len(tokens) == 0 {
			continue
		}

		msg, err := NewModeRequest(key, tokens).Encode()
		if err != nil {
			return nil, true, fmt.Errorf("encode %s subscription: %w", key, err)
		}
		return msg, true, nil
	}
	return nil, false, nil
}

// Remaining returns how many mode buckets the cursor has not yet visited.
func (ss *SubscriptionStream) Remaining() int {
	return len(ss.keys) - ss.idx
}
