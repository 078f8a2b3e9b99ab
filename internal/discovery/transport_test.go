package discovery

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
)

// relayStub is a minimal in-process relay: it accepts websocket
// connections on the discovery path and records every decoded frame.
type relayStub struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mutex  sync.Mutex
	conns  []*websocket.Conn
	connCh chan *websocket.Conn
	frames chan *Message
}

func newRelayStub() *relayStub {
	rs := &relayStub{
		connCh: make(chan *websocket.Conn, 8),
		frames: make(chan *Message, 64),
	}
	rs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/discovery" {
			http.NotFound(w, r)
			return
		}
		conn, err := rs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		rs.mutex.Lock()
		rs.conns = append(rs.conns, conn)
		rs.mutex.Unlock()
		rs.connCh <- conn

		go func() {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if msg, err := decodeMessage(data); err == nil {
					rs.frames <- msg
				}
			}
		}()
	}))
	return rs
}

func (rs *relayStub) url() string { return rs.server.URL }

func (rs *relayStub) close() { rs.server.Close() }

func (rs *relayStub) connCount() int {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	return len(rs.conns)
}

func (rs *relayStub) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-rs.connCh:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a relay connection")
		return nil
	}
}

func (rs *relayStub) waitFrame(t *testing.T) *Message {
	t.Helper()
	select {
	case msg := <-rs.frames:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a frame")
		return nil
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func newTestTransport(t *testing.T, backendURL string, delay time.Duration,
	handler MessageHandler) *Transport {
	t.Helper()
	local := &Node{ID: "local-1", Type: TypeBedside, Name: "Bed 1"}
	if handler == nil {
		handler = func(*Message) {}
	}
	tr, err := NewTransport(backendURL, delay, clock.New(), handler, func() *Message {
		return announceMessage(local)
	}, &mockLogger{})
	if err != nil {
		t.Fatalf("Failed to create transport: %v", err)
	}
	return tr
}

func TestDiscoveryURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws/discovery"},
		{"https://relay.example.com", "wss://relay.example.com/ws/discovery"},
		{"ws://relay.local:9000", "ws://relay.local:9000/ws/discovery"},
	}
	for _, tc := range cases {
		got, err := DiscoveryURL(tc.in)
		if err != nil {
			t.Errorf("DiscoveryURL(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("DiscoveryURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if _, err := DiscoveryURL("ftp://nope"); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}

func TestAnnounceIsFirstFrame(t *testing.T) {
	rs := newRelayStub()
	defer rs.close()

	tr := newTestTransport(t, rs.url(), 100*time.Millisecond, nil)
	tr.Start()
	defer tr.Stop()

	rs.waitConn(t)
	first := rs.waitFrame(t)
	if first.Type != MsgNodeAnnounce || first.NodeID != "local-1" {
		t.Errorf("Expected NODE_ANNOUNCE for the local node first, got %+v", first)
	}

	waitFor(t, time.Second, func() bool { return tr.State() == StateOpen })
}

func TestInboundDispatch(t *testing.T) {
	rs := newRelayStub()
	defer rs.close()

	received := make(chan *Message, 8)
	tr := newTestTransport(t, rs.url(), 100*time.Millisecond, func(m *Message) {
		received <- m
	})
	tr.Start()
	defer tr.Stop()

	conn := rs.waitConn(t)
	rs.waitFrame(t) // the initial announce

	announce := &Message{Type: MsgNodeAnnounce, NodeID: "nurse-1", NodeType: TypeNurseStation}
	data, _ := announce.encode()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-received:
		if msg.Type != MsgNodeAnnounce || msg.NodeID != "nurse-1" {
			t.Errorf("Unexpected dispatch: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Handler never saw the inbound frame")
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	rs := newRelayStub()
	defer rs.close()

	received := make(chan *Message, 8)
	tr := newTestTransport(t, rs.url(), 100*time.Millisecond, func(m *Message) {
		received <- m
	})
	tr.Start()
	defer tr.Stop()

	conn := rs.waitConn(t)
	rs.waitFrame(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json at all")); err != nil {
		t.Fatal(err)
	}
	data, _ := (&Message{Type: MsgPing}).encode()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
	}

	// The bad frame is swallowed; the next frame still arrives on the
	// same connection.
	select {
	case msg := <-received:
		if msg.Type != MsgPing {
			t.Errorf("Expected the PING after the bad frame, got %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connection did not survive the malformed frame")
	}
	if tr.State() != StateOpen {
		t.Errorf("Expected transport to stay open, got %v", tr.State())
	}
}

func TestReconnectAfterClose(t *testing.T) {
	rs := newRelayStub()
	defer rs.close()

	delay := 100 * time.Millisecond
	tr := newTestTransport(t, rs.url(), delay, nil)
	tr.Start()
	defer tr.Stop()

	conn := rs.waitConn(t)
	first := rs.waitFrame(t)
	if first.Type != MsgNodeAnnounce {
		t.Fatalf("Expected initial announce, got %+v", first)
	}

	conn.Close()

	// Exactly one reconnect attempt after the fixed delay, and the new
	// connection announces first again.
	rs.waitConn(t)
	again := rs.waitFrame(t)
	if again.Type != MsgNodeAnnounce || again.NodeID != "local-1" {
		t.Errorf("Expected announce as first frame after reconnect, got %+v", again)
	}

	time.Sleep(3 * delay)
	if got := rs.connCount(); got != 2 {
		t.Errorf("Expected exactly 2 connections total, got %d", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rs := newRelayStub()
	defer rs.close()

	tr := newTestTransport(t, rs.url(), 50*time.Millisecond, nil)
	tr.Start()
	rs.waitConn(t)

	tr.Stop()
	tr.Stop()

	if tr.State() != StateIdle {
		t.Errorf("Expected idle after stop, got %v", tr.State())
	}

	// No reconnect fires after stop
	time.Sleep(200 * time.Millisecond)
	if got := rs.connCount(); got != 1 {
		t.Errorf("Expected no reconnect after stop, got %d connections", got)
	}
}

func TestStopBeforeStart(t *testing.T) {
	tr := newTestTransport(t, "http://localhost:0", 50*time.Millisecond, nil)
	tr.Stop()
	tr.Stop()
	if tr.State() != StateIdle {
		t.Errorf("Expected idle, got %v", tr.State())
	}
}

func TestSendWhileNotConnected(t *testing.T) {
	tr := newTestTransport(t, "http://localhost:0", 50*time.Millisecond, nil)
	err := tr.Send(&Message{Type: MsgPong})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestReconnectAfterFailedDial(t *testing.T) {
	rs := newRelayStub()
	url := rs.url()
	rs.close() // relay is down for the first attempt

	tr := newTestTransport(t, url, 50*time.Millisecond, nil)
	tr.Start()
	defer tr.Stop()

	waitFor(t, time.Second, func() bool { return tr.State() == StateClosed || tr.State() == StateConnecting })

	// Bring a relay back on the same address; the dial keeps retrying
	// on the fixed delay until it lands.
	// (The original listener address cannot be rebound reliably here,
	// so just verify the transport keeps cycling rather than giving up.)
	states := map[TransportState]bool{}
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		states[tr.State()] = true
		time.Sleep(5 * time.Millisecond)
	}
	if !states[StateClosed] && !states[StateConnecting] {
		t.Errorf("Expected the transport to keep retrying, saw states %v", states)
	}
}
