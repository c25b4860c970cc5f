// Package ticker implements the Kite Connect WebSocket streaming client:
// subscription state, control-message encoding, and a reconnecting
// connection that replays all subscriptions after every (re)connect.
package ticker

import "fmt"

// Mode selects the level of detail streamed for a subscribed instrument.
type Mode string

// Streaming modes supported by the Kite ticker.
const (
	ModeLTP   Mode = "ltp"   // last traded price only
	ModeQuote Mode = "quote" // LTP plus OHLC and volume
	ModeFull  Mode = "full"  // quote plus market depth
)

// Binary packet sizes for each mode. Inbound market-data frames carry no
// explicit mode tag; their byte length identifies the mode.
const (
	PacketSizeLTP   = 8
	PacketSizeQuote = 44
	PacketSizeFull  = 184
)

// Valid reports whether m is one of the three known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeLTP, ModeQuote, ModeFull:
		return true
	}
	return false
}

// ParseMode converts a wire tag into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode: %q", s)
	}
	return m, nil
}

// ModeFromPacketSize classifies a binary market-data frame by its byte
// length. Unrecognized lengths are a hard error, never defaulted.
func ModeFromPacketSize(n int) (Mode, error) {
	switch n {
	case PacketSizeLTP:
		return ModeLTP, nil
	case PacketSizeQuote:
		return ModeQuote, nil
	case PacketSizeFull:
		return ModeFull, nil
	default:
		return "", fmt.Errorf("invalid packet size: %d", n)
	}
}
