package socket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"heartline/client/internal/wire"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// wsServer runs handler once per accepted connection and counts dials.
func wsServer(t *testing.T, handler func(conn *websocket.Conn, dial int64)) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var dials atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn, dials.Add(1))
	}))
	t.Cleanup(srv.Close)
	return srv, &dials
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %v", timeout)
}

func TestConnectAndDisconnect(t *testing.T) {
	srv, dials := wsServer(t, func(conn *websocket.Conn, _ int64) { holdOpen(conn) })

	manager := NewManager(Config{URL: wsURL(srv), ReconnectDelay: 10 * time.Millisecond}, NewRegistry())
	if err := manager.Connect("token"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !manager.IsConnectedToServer() {
		t.Fatalf("expected connected state")
	}

	// Second connect is a no-op, not a second dial.
	if err := manager.Connect("token"); err != nil {
		t.Fatalf("repeat connect: %v", err)
	}
	if got := dials.Load(); got != 1 {
		t.Fatalf("expected one dial, got %d", got)
	}

	manager.Disconnect()
	manager.Disconnect()
	if manager.IsConnectedToServer() {
		t.Fatalf("expected disconnected state")
	}

	// A client-initiated disconnect must not trigger a redial.
	time.Sleep(60 * time.Millisecond)
	if got := dials.Load(); got != 1 {
		t.Fatalf("unexpected redial after Disconnect, dials=%d", got)
	}
}

func TestReconnectBound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := wsURL(srv)
	srv.Close()

	registry := NewRegistry()
	var failed atomic.Int64
	fn := func(wire.Envelope) { failed.Add(1) }
	registry.On(EvReconnectFailed, callbackKey(fn), fn)

	manager := NewManager(Config{
		URL:                  url,
		MaxReconnectAttempts: 3,
		ReconnectDelay:       5 * time.Millisecond,
	}, registry)

	if err := manager.Connect("token"); err == nil {
		t.Fatalf("expected dial error against closed server")
	}

	waitFor(t, 2*time.Second, func() bool { return failed.Load() == 1 })
	time.Sleep(100 * time.Millisecond)
	if got := failed.Load(); got != 1 {
		t.Fatalf("expected exactly one terminal failure, got %d", got)
	}
	if manager.IsConnectedToServer() {
		t.Fatalf("expected terminal disconnected state")
	}
}

func TestRemoteDropTriggersRedial(t *testing.T) {
	srv, dials := wsServer(t, func(conn *websocket.Conn, dial int64) {
		if dial == 1 {
			conn.Close()
			return
		}
		holdOpen(conn)
	})

	registry := NewRegistry()
	manager := NewManager(Config{URL: wsURL(srv), ReconnectDelay: 10 * time.Millisecond}, registry)
	if err := manager.Connect("token"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return dials.Load() >= 2 && manager.IsConnectedToServer()
	})
	manager.Disconnect()
}

func TestEmitReachesServer(t *testing.T) {
	received := make(chan wire.Envelope, 1)
	srv, _ := wsServer(t, func(conn *websocket.Conn, _ int64) {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := wire.DecodeEnvelope(raw)
			if err != nil {
				continue
			}
			select {
			case received <- env:
			default:
			}
		}
	})

	manager := NewManager(Config{URL: wsURL(srv)}, NewRegistry())
	if err := manager.Connect("token"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer manager.Disconnect()

	if err := manager.Emit(wire.EvSendMessage, wire.SendMessagePayload{RoomID: "r1", Content: "hi"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	select {
	case env := <-received:
		if env.Event != wire.EvSendMessage {
			t.Fatalf("unexpected event %q", env.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the emission")
	}
}

func TestEmitWhileDisconnected(t *testing.T) {
	manager := NewManager(Config{URL: "ws://127.0.0.1:0"}, NewRegistry())
	if err := manager.Emit(wire.EvPing, nil); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestHealthPing(t *testing.T) {
	var pings atomic.Int64
	srv, _ := wsServer(t, func(conn *websocket.Conn, _ int64) {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if env, err := wire.DecodeEnvelope(raw); err == nil && env.Event == wire.EvPing {
				pings.Add(1)
				_ = conn.WriteMessage(websocket.TextMessage, mustEncode(t, wire.EvPong, wire.PongPayload{At: time.Now()}))
			}
		}
	})

	registry := NewRegistry()
	var pongs atomic.Int64
	onPong := func(wire.Envelope) { pongs.Add(1) }
	registry.On(wire.EvPong, callbackKey(onPong), onPong)

	manager := NewManager(Config{
		URL:          wsURL(srv),
		PingInterval: 20 * time.Millisecond,
	}, registry)
	if err := manager.Connect("token"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer manager.Disconnect()

	waitFor(t, 2*time.Second, func() bool { return pings.Load() >= 1 && pongs.Load() >= 1 })
}

func TestIsConnectedRequiresTransportAgreement(t *testing.T) {
	manager := NewManager(Config{URL: "ws://127.0.0.1:0"}, NewRegistry())
	manager.mu.Lock()
	manager.connected = true
	manager.conn = nil
	manager.mu.Unlock()
	if manager.IsConnectedToServer() {
		t.Fatalf("flag without live transport must read as disconnected")
	}
}

func mustEncode(t *testing.T, event string, payload any) []byte {
	t.Helper()
	raw, err := wire.Encode(event, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", event, err)
	}
	return raw
}
