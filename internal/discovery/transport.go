package discovery

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/wardlink/wardlink/internal/logger"
)

// ErrNotConnected is returned by Send while the relay socket is not
// open. Heartbeats treat it as a skipped tick, not a fault.
var ErrNotConnected = errors.New("transport is not connected")

// TransportState tracks the relay connection lifecycle.
type TransportState int

const (
	StateIdle TransportState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s TransportState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MessageHandler receives every well-formed inbound frame.
type MessageHandler func(*Message)

// Transport owns exactly one relay connection and its reconnection
// policy: after any close while running, exactly one reconnect attempt
// is scheduled after a fixed delay. No backoff, no jitter; the relay is
// a single local endpoint and the source protocol keeps this simple.
type Transport struct {
	url      string
	delay    time.Duration
	clock    clock.Clock
	logger   logger.Logger
	handler  MessageHandler
	announce func() *Message

	dialer *websocket.Dialer

	mutex      sync.Mutex
	writeMutex sync.Mutex
	state      TransportState
	conn       *websocket.Conn
	reconnect  *clock.Timer
	running    bool
	generation uint64
}

// DiscoveryURL derives the relay websocket endpoint from the backend
// base URL: http(s) becomes ws(s) and the fixed discovery path is
// appended.
func DiscoveryURL(backendURL string) (string, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend url %q: %w", backendURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported backend url scheme %q", u.Scheme)
	}
	u.Path = "/ws/discovery"
	return u.String(), nil
}

// NewTransport creates a transport for the given backend URL. announce
// builds the local NODE_ANNOUNCE, which is always the first frame sent
// after a connection opens.
func NewTransport(backendURL string, delay time.Duration, clk clock.Clock,
	handler MessageHandler, announce func() *Message, log logger.Logger) (*Transport, error) {

	wsURL, err := DiscoveryURL(backendURL)
	if err != nil {
		return nil, err
	}
	return &Transport{
		url:      wsURL,
		delay:    delay,
		clock:    clk,
		logger:   log,
		handler:  handler,
		announce: announce,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		state:    StateIdle,
	}, nil
}

// Start begins connecting. It returns immediately; connection results
// arrive as state changes, never as errors to the caller. Calling
// Start while already running is a no-op.
func (t *Transport) Start() {
	t.mutex.Lock()
	if t.running {
		t.mutex.Unlock()
		return
	}
	t.running = true
	t.state = StateConnecting
	t.generation++
	gen := t.generation
	t.mutex.Unlock()

	go t.dial(gen)
}

// dial belongs to one run of the transport; gen ties it to the Start
// that spawned it so a dial still in flight across a Stop/Start cycle
// cannot install its connection into the newer run.
func (t *Transport) dial(gen uint64) {
	t.logger.Debug("Connecting to relay at %s", t.url)
	conn, _, err := t.dialer.Dial(t.url, nil)

	t.mutex.Lock()
	if !t.running || gen != t.generation {
		t.mutex.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		t.state = StateClosed
		t.scheduleReconnectLocked(gen)
		t.mutex.Unlock()
		t.logger.Warn("Relay connection failed: %v", err)
		return
	}
	t.conn = conn
	t.state = StateOpen
	t.mutex.Unlock()

	t.logger.Info("Connected to relay at %s", t.url)

	// Presence must be announced before anything else goes out.
	if err := t.Send(t.announce()); err != nil {
		t.logger.Warn("Failed to announce presence: %v", err)
	}

	t.readLoop(conn, gen)
}

func (t *Transport) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleClosed(conn, gen, err)
			return
		}
		msg, err := decodeMessage(data)
		if err != nil {
			// Drop the frame, keep the connection.
			t.logger.Warn("Dropping inbound frame: %v", err)
			continue
		}
		t.handler(msg)
	}
}

func (t *Transport) handleClosed(conn *websocket.Conn, gen uint64, cause error) {
	t.mutex.Lock()
	if t.conn != conn || gen != t.generation {
		// A Stop or a newer connection already took over.
		t.mutex.Unlock()
		return
	}
	t.conn = nil
	t.state = StateClosed
	running := t.running
	if running {
		t.scheduleReconnectLocked(gen)
	}
	t.mutex.Unlock()

	conn.Close()
	if running {
		t.logger.Warn("Relay connection closed (%v), reconnecting in %v", cause, t.delay)
	}
}

// scheduleReconnectLocked arms the single reconnect timer. The mutex
// must be held. An already-armed timer is left alone so a close event
// racing a failed dial cannot double-schedule.
func (t *Transport) scheduleReconnectLocked(gen uint64) {
	if t.reconnect != nil {
		return
	}
	t.reconnect = t.clock.AfterFunc(t.delay, func() {
		t.mutex.Lock()
		t.reconnect = nil
		if !t.running || gen != t.generation {
			t.mutex.Unlock()
			return
		}
		t.state = StateConnecting
		t.mutex.Unlock()
		t.dial(gen)
	})
}

// Send writes one frame to the relay. Returns ErrNotConnected unless
// the transport is open.
func (t *Transport) Send(msg *Message) error {
	t.mutex.Lock()
	conn := t.conn
	open := t.state == StateOpen
	t.mutex.Unlock()

	if !open || conn == nil {
		return ErrNotConnected
	}

	data, err := msg.encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.Type, err)
	}

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// State returns the current connection state.
func (t *Transport) State() TransportState {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.state
}

// Stop closes the connection and cancels any pending reconnect. It is
// idempotent and forces any state back to idle.
func (t *Transport) Stop() {
	t.mutex.Lock()
	t.running = false
	t.state = StateIdle
	t.generation++
	if t.reconnect != nil {
		t.reconnect.Stop()
		t.reconnect = nil
	}
	conn := t.conn
	t.conn = nil
	t.mutex.Unlock()

	if conn != nil {
		conn.Close()
	}
}
