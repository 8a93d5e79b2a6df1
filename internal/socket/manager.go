package socket

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"heartline/client/internal/wire"
)

var ErrNotConnected = errors.New("socket: not connected")

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = time.Second
	defaultPingInterval         = 30 * time.Second
	defaultStatePollInterval    = 5 * time.Second
)

type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/api/v1/ws.
	URL string

	MaxReconnectAttempts int
	// ReconnectDelay is the base backoff unit; attempt n waits n times
	// this long before redialing.
	ReconnectDelay    time.Duration
	PingInterval      time.Duration
	StatePollInterval time.Duration

	Dialer *websocket.Dialer
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.StatePollInterval == 0 {
		cfg.StatePollInterval = defaultStatePollInterval
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return cfg
}

// Manager owns the one transport connection of an authenticated
// session. It redials with linearly growing delay when the server side
// drops the link, keeps the connection warm with application pings, and
// periodically reconciles its connected flag against the transport.
type Manager struct {
	cfg      Config
	registry *Registry

	// onDrop runs after an unrequested disconnect, before any redial.
	onDrop func()

	mu                sync.Mutex
	conn              *websocket.Conn
	connected         bool
	closing           bool
	token             string
	reconnectAttempts int
	healthStop        chan struct{}

	writeMu sync.Mutex
}

func NewManager(cfg Config, registry *Registry) *Manager {
	return &Manager{cfg: cfg.withDefaults(), registry: registry}
}

// SetDropHandler installs a hook invoked when the transport drops
// without a local Disconnect call.
func (m *Manager) SetDropHandler(fn func()) {
	m.onDrop = fn
}

// Connect opens the transport authenticated with token. Calling it
// while connected is a no-op. A failed dial starts the reconnect
// schedule and returns the dial error.
func (m *Manager) Connect(token string) error {
	m.mu.Lock()
	if m.connected && m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	m.closing = false
	m.token = token
	m.reconnectAttempts = 0
	m.mu.Unlock()

	if err := m.dial(); err != nil {
		m.scheduleReconnect()
		return err
	}
	return nil
}

// Disconnect tears the transport down and stops all recovery. Safe to
// call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closing = true
	m.connected = false
	m.reconnectAttempts = 0
	conn := m.conn
	m.conn = nil
	m.stopHealthLocked()
	m.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
		m.registry.Dispatch(wire.Envelope{Event: EvDisconnect})
	}
}

// IsConnectedToServer reports true only when the tracked flag and the
// live transport agree, so a stale flag never masks a dead link.
func (m *Manager) IsConnectedToServer() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected && m.conn != nil
}

// Emit sends one named event to the server.
func (m *Manager) Emit(event string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.connected
	m.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	raw, err := wire.Encode(event, payload)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (m *Manager) dial() error {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	conn, resp, err := m.cfg.Dialer.Dial(m.cfg.URL+"?token="+token, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	m.conn = conn
	m.connected = true
	m.reconnectAttempts = 0
	m.stopHealthLocked()
	stop := make(chan struct{})
	m.healthStop = stop
	m.mu.Unlock()

	go m.readPump(conn)
	go m.healthLoop(stop)
	m.registry.Dispatch(wire.Envelope{Event: EvConnect})
	return nil
}

func (m *Manager) readPump(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		env, err := wire.DecodeEnvelope(raw)
		if err != nil {
			log.Printf("socket: dropping malformed frame: %v", err)
			continue
		}
		m.registry.Dispatch(env)
	}
	m.handleDrop(conn)
}

func (m *Manager) handleDrop(conn *websocket.Conn) {
	m.mu.Lock()
	if m.conn != conn {
		// A newer connection already replaced this one.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.connected = false
	m.stopHealthLocked()
	closing := m.closing
	m.mu.Unlock()

	_ = conn.Close()
	if closing {
		return
	}
	if m.onDrop != nil {
		m.onDrop()
	}
	m.registry.Dispatch(wire.Envelope{Event: EvDisconnect})
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	if m.reconnectAttempts >= m.cfg.MaxReconnectAttempts {
		m.mu.Unlock()
		log.Printf("socket: giving up after %d reconnect attempts", m.cfg.MaxReconnectAttempts)
		m.registry.Dispatch(wire.Envelope{Event: EvReconnectFailed})
		return
	}
	m.reconnectAttempts++
	attempt := m.reconnectAttempts
	m.mu.Unlock()

	delay := time.Duration(attempt) * m.cfg.ReconnectDelay
	time.AfterFunc(delay, func() {
		m.mu.Lock()
		closing := m.closing
		connected := m.connected
		m.mu.Unlock()
		if closing || connected {
			return
		}
		if err := m.dial(); err != nil {
			log.Printf("socket: reconnect attempt %d failed: %v", attempt, err)
			m.scheduleReconnect()
		}
	})
}

// healthLoop emits an application ping on a long interval and, on a
// short one, corrects any drift between the connected flag and the
// actual transport.
func (m *Manager) healthLoop(stop chan struct{}) {
	ping := time.NewTicker(m.cfg.PingInterval)
	poll := time.NewTicker(m.cfg.StatePollInterval)
	defer ping.Stop()
	defer poll.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ping.C:
			if err := m.Emit(wire.EvPing, nil); err != nil && !errors.Is(err, ErrNotConnected) {
				log.Printf("socket: ping failed: %v", err)
			}
		case <-poll.C:
			m.mu.Lock()
			if m.connected && m.conn == nil {
				m.connected = false
			}
			if !m.connected && m.conn != nil && !m.closing {
				m.connected = true
			}
			m.mu.Unlock()
		}
	}
}

func (m *Manager) stopHealthLocked() {
	if m.healthStop != nil {
		close(m.healthStop)
		m.healthStop = nil
	}
}
