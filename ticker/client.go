package ticker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Default connection policy, overridable per Config field.
const (
	DefaultDialTimeout         = 10 * time.Second
	DefaultReconnectDelay      = 2 * time.Second
	DefaultReconnectMaxRetries = 300
	DefaultFrameBuffer         = 1000
)

// Frame is one inbound WebSocket message, passed through to the consumer
// without interpretation. Binary frames are market-data packets; their byte
// length identifies the mode.
type Frame struct {
	Type int // websocket.TextMessage or websocket.BinaryMessage
	Data []byte
}

// Binary reports whether the frame is a binary market-data packet.
func (f Frame) Binary() bool {
	return f.Type == websocket.BinaryMessage
}

// Mode classifies a binary frame by its packet size.
func (f Frame) Mode() (Mode, error) {
	return ModeFromPacketSize(len(f.Data))
}

// Config holds connection policy for a ticker Client.
type Config struct {
	Logger *slog.Logger // optional; defaults to slog.Default()

	// AutoReconnect re-establishes the connection after an I/O failure,
	// replaying the full subscription ledger each time.
	AutoReconnect       bool
	ReconnectMaxRetries int           // 0 means DefaultReconnectMaxRetries
	ReconnectDelay      time.Duration // 0 means DefaultReconnectDelay
	DialTimeout         time.Duration // 0 means DefaultDialTimeout
	FrameBuffer         int           // 0 means DefaultFrameBuffer
}

func (cfg Config) withDefaults() Config {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReconnectMaxRetries == 0 {
		cfg.ReconnectMaxRetries = DefaultReconnectMaxRetries
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.FrameBuffer == 0 {
		cfg.FrameBuffer = DefaultFrameBuffer
	}
	return cfg
}

// Client is a resilient streaming connection. It owns its StreamState and,
// on every (re)connection, drains the ledger's subscription stream over the
// socket before surfacing any inbound frame, so exchange-side subscription
// state is re-synchronized after any drop.
//
// The consumer reads from Frames. A reconnect is invisible there apart from
// a possible gap, so every frame must be treated as potentially
// discontinuous.
type Client struct {
	state  *StreamState
	cfg    Config
	logger *slog.Logger

	frames chan Frame
	cancel context.CancelFunc

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	attempts  int
	startedAt time.Time
	closed    bool

	closeOnce sync.Once
}

// Connect validates the ledger's endpoint, establishes the connection,
// replays all subscriptions, and starts serving inbound frames.
//
// A malformed endpoint fails synchronously. A dial failure is returned when
// AutoReconnect is off; with AutoReconnect on it is handed to the
// reconnection policy and Connect still succeeds.
//
// The ledger must not be mutated after it is passed in.
func Connect(ctx context.Context, state *StreamState, cfg Config) (*Client, error) {
	if state == nil {
		return nil, fmt.Errorf("stream state is required")
	}
	u, err := url.Parse(state.ToURI())
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", state.apiBase, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be ws or wss", state.apiBase)
	}

	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		state:     state,
		cfg:       cfg,
		logger:    cfg.Logger,
		frames:    make(chan Frame, cfg.FrameBuffer),
		cancel:    cancel,
		startedAt: time.Now(),
	}

	established := true
	if err := c.establish(ctx); err != nil {
		if !cfg.AutoReconnect {
			cancel()
			return nil, err
		}
		c.logger.Warn("Initial ticker connection failed, retrying", "endpoint", state.apiBase, "error", err)
		established = false
	}

	go c.serve(ctx, established)
	return c, nil
}

// Frames returns the inbound message stream. The channel is closed when the
// client stops serving, either via Close or once reconnection is exhausted.
func (c *Client) Frames() <-chan Frame {
	return c.frames
}

// Close releases the socket and halts any reconnection. Safe to call more
// than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cancel()
		c.closeConn()
	})
}

// Status returns a snapshot of the connection state.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subs := make([]SubscriptionInfo, 0, c.state.TokenCount())
	for mode, tokens := range c.state.Subscriptions() {
		for _, token := range tokens {
			subs = append(subs, SubscriptionInfo{InstrumentToken: token, Mode: string(mode)})
		}
	}
	return Status{
		Running:           !c.closed,
		Connected:         c.connected,
		StartedAt:         c.startedAt,
		Uptime:            time.Since(c.startedAt).String(),
		ReconnectAttempts: c.attempts,
		Subscriptions:     subs,
	}
}

// establish dials the endpoint and drains the subscription replay stream
// over the new socket. Individual send failures are logged and do not abort
// the replay of remaining buckets. Only after the replay completes is the
// socket installed as the live connection.
func (c *Client) establish(ctx context.Context) error {
	connID := uuid.NewString()[:8]

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.state.ToURI(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.state.apiBase, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	replayed := 0
	sub := c.state.SubscriptionStream()
	for {
		msg, ok, err := sub.Next()
		if !ok {
			break
		}
		if err != nil {
			c.logger.Error("Failed to encode subscription replay message", "conn_id", connID, "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.logger.Error("Failed to send subscription replay message", "conn_id", connID, "error", err)
			continue
		}
		replayed++
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	// Shutdown may have raced the dial; don't leak the socket.
	if ctx.Err() != nil {
		c.closeConn()
		return ctx.Err()
	}

	c.logger.Info("Ticker connected",
		"conn_id", connID,
		"endpoint", c.state.apiBase,
		"replayed_messages", replayed,
		"subscribed_tokens", c.state.TokenCount(),
	)
	return nil
}

// serve pumps inbound frames and drives reconnection until the context is
// canceled or retries are exhausted.
func (c *Client) serve(ctx context.Context, established bool) {
	defer close(c.frames)

	for {
		if !established {
			if !c.cfg.AutoReconnect || !c.reconnect(ctx) {
				return
			}
		}
		established = false

		err := c.readLoop(ctx)
		if err == nil {
			return // clean shutdown
		}
		c.setDisconnected()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("Ticker connection lost", "error", err)
	}
}

// readLoop surfaces inbound frames until an I/O error or shutdown. Returns
// nil only on shutdown.
func (c *Client) readLoop(ctx context.Context) error {
	conn := c.currentConn()
	if conn == nil {
		return fmt.Errorf("no live connection")
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		select {
		case c.frames <- Frame{Type: msgType, Data: data}:
		case <-ctx.Done():
			return nil
		}
	}
}

// reconnect retries establishment until it succeeds, the retry limit is
// reached, or the client shuts down. Every successful attempt has already
// replayed the full ledger.
func (c *Client) reconnect(ctx context.Context) bool {
	for attempt := 1; attempt <= c.cfg.ReconnectMaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.cfg.ReconnectDelay):
		}

		c.mu.Lock()
		c.attempts++
		c.mu.Unlock()

		c.logger.Info("Ticker reconnecting", "attempt", attempt, "max_retries", c.cfg.ReconnectMaxRetries)
		if err := c.establish(ctx); err != nil {
			c.logger.Error("Ticker reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}
		return true
	}

	c.logger.Warn("Ticker gave up reconnecting", "attempts", c.cfg.ReconnectMaxRetries)
	return false
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) setDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.closeConn()
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
