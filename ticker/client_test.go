package ticker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// feedServer is an in-process stand-in for the upstream streaming endpoint.
func feedServer(t *testing.T, handler func(conn *websocket.Conn, connNum int)) (*httptest.Server, string) {
	t.Helper()
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn, int(conns.Add(1)))
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectRejectsInvalidScheme(t *testing.T) {
	state := FromParts("https://not-a-feed", "k", "t")
	_, err := Connect(context.Background(), state, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestConnectDialFailureWithoutReconnect(t *testing.T) {
	state := FromParts("ws://127.0.0.1:1", "k", "t")
	_, err := Connect(context.Background(), state, Config{DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
}

func TestConnectReplaysBeforeFrames(t *testing.T) {
	replayed := make(chan string, 8)
	handlerDone := make(chan struct{})

	_, wsURL := feedServer(t, func(conn *websocket.Conn, _ int) {
		defer close(handlerDone)
		// The full ledger must arrive before any market data goes out.
		for i := 0; i < 2; i++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			replayed <- string(msg)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, PacketSizeLTP)); err != nil {
			return
		}
		// Hold the conn open until the client hangs up.
		conn.ReadMessage()
	})

	state := FromParts(wsURL, "k", "t").
		SubscribeToken(ModeFull, 408065).
		SubscribeToken(ModeLTP, 884737)

	client, err := Connect(context.Background(), state, Config{})
	require.NoError(t, err)
	defer client.Close()

	select {
	case frame := <-client.Frames():
		require.True(t, frame.Binary())
		mode, err := frame.Mode()
		require.NoError(t, err)
		assert.Equal(t, ModeLTP, mode)
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
	}

	require.Len(t, replayed, 2)
	assert.Equal(t, `{"a":"mode","v":["full",[408065]]}`, <-replayed)
	assert.Equal(t, `{"a":"mode","v":["ltp",[884737]]}`, <-replayed)

	client.Close()
	select {
	case <-handlerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("server handler did not exit")
	}
}

func TestReconnectReplaysFullLedger(t *testing.T) {
	replays := make(chan string, 8)

	_, wsURL := feedServer(t, func(conn *websocket.Conn, connNum int) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		replays <- string(msg)
		if connNum == 1 {
			return // drop the first connection right after replay
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, PacketSizeQuote)); err != nil {
			return
		}
		conn.ReadMessage()
	})

	state := FromParts(wsURL, "k", "t").SubscribeToken(ModeQuote, 738561)
	client, err := Connect(context.Background(), state, Config{
		AutoReconnect:  true,
		ReconnectDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer client.Close()

	// A frame arriving at all proves the second connection was established.
	select {
	case frame := <-client.Frames():
		mode, err := frame.Mode()
		require.NoError(t, err)
		assert.Equal(t, ModeQuote, mode)
	case <-time.After(5 * time.Second):
		t.Fatal("no frame after reconnect")
	}

	want := `{"a":"mode","v":["quote",[738561]]}`
	for i := 0; i < 2; i++ {
		select {
		case msg := <-replays:
			assert.Equal(t, want, msg)
		case <-time.After(5 * time.Second):
			t.Fatalf("replay %d never arrived", i+1)
		}
	}

	status := client.Status()
	assert.True(t, status.Running)
	assert.GreaterOrEqual(t, status.ReconnectAttempts, 1)
}

func TestCloseStopsServingAndLeaksNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	handlerDone := make(chan struct{})
	srv, wsURL := feedServer(t, func(conn *websocket.Conn, _ int) {
		defer close(handlerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	state := FromParts(wsURL, "k", "t").SubscribeToken(ModeFull, 1)
	client, err := Connect(context.Background(), state, Config{AutoReconnect: true})
	require.NoError(t, err)

	client.Close()
	client.Close() // idempotent

	select {
	case _, open := <-client.Frames():
		assert.False(t, open, "frames channel should be closed")
	case <-time.After(5 * time.Second):
		t.Fatal("frames channel never closed")
	}

	select {
	case <-handlerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("server handler did not exit")
	}
	srv.Close()

	status := client.Status()
	assert.False(t, status.Running)
	assert.False(t, status.Connected)
}

func TestStatusReportsSubscriptions(t *testing.T) {
	handlerDone := make(chan struct{})
	_, wsURL := feedServer(t, func(conn *websocket.Conn, _ int) {
		defer close(handlerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	state := FromParts(wsURL, "k", "t").
		SubscribeToken(ModeFull, 408065).
		SubscribeToken(ModeLTP, 884737)
	client, err := Connect(context.Background(), state, Config{})
	require.NoError(t, err)
	defer client.Close()

	status := client.Status()
	assert.True(t, status.Running)
	assert.True(t, status.Connected)
	assert.Len(t, status.Subscriptions, 2)

	client.Close()
	<-handlerDone
}
