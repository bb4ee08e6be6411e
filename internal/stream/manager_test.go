package stream

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tradebridge/internal/models"
)

// wsHarness is a stub push-channel server. It exposes accepted connections
// and the control frames clients send.
type wsHarness struct {
	server *httptest.Server
	conns  chan *websocket.Conn
	frames chan controlFrame
}

func newWSHarness(t *testing.T) *wsHarness {
	t.Helper()

	h := &wsHarness{
		conns:  make(chan *websocket.Conn, 8),
		frames: make(chan controlFrame, 64),
	}

	upgrader := websocket.Upgrader{}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.conns <- conn
		for {
			var frame controlFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			h.frames <- frame
		}
	}))
	t.Cleanup(h.server.Close)

	return h
}

func (h *wsHarness) url() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http")
}

func (h *wsHarness) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-h.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection established")
		return nil
	}
}

func (h *wsHarness) waitFrame(t *testing.T) controlFrame {
	t.Helper()
	select {
	case frame := <-h.frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no control frame received")
		return controlFrame{}
	}
}

func newTestManager(h *wsHarness) *Manager {
	return NewManager(ManagerConfig{
		URL:            h.url(),
		ReconnectDelay: 50 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})
}

func TestSubscribeEstablishesSharedConnection(t *testing.T) {
	h := newWSHarness(t)
	m := newTestManager(h)
	defer m.Close()

	m.Subscribe("NSE:SBIN-EQ", func(models.Tick) {})
	h.waitConn(t)

	frame := h.waitFrame(t)
	if frame.Type != "subscribe" || len(frame.Symbols) != 1 || frame.Symbols[0] != "NSE:SBIN-EQ" {
		t.Fatalf("unexpected first frame: %+v", frame)
	}

	// A second symbol rides the same connection as an incremental frame.
	m.Subscribe("NSE:TCS-EQ", func(models.Tick) {})
	frame = h.waitFrame(t)
	if frame.Type != "subscribe" || len(frame.Symbols) != 1 || frame.Symbols[0] != "NSE:TCS-EQ" {
		t.Fatalf("unexpected incremental frame: %+v", frame)
	}

	select {
	case <-h.conns:
		t.Fatal("second symbol must not open a second connection")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSecondSubscriberSameSymbolSendsNothing(t *testing.T) {
	h := newWSHarness(t)
	m := newTestManager(h)
	defer m.Close()

	m.Subscribe("NSE:SBIN-EQ", func(models.Tick) {})
	h.waitConn(t)
	h.waitFrame(t)

	m.Subscribe("NSE:SBIN-EQ", func(models.Tick) {})

	select {
	case frame := <-h.frames:
		t.Fatalf("already-subscribed symbol must not resubscribe, got %+v", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatchFansOutToAllCallbacks(t *testing.T) {
	h := newWSHarness(t)
	m := newTestManager(h)
	defer m.Close()

	got1 := make(chan models.Tick, 1)
	got2 := make(chan models.Tick, 1)
	m.Subscribe("NSE:SBIN-EQ", func(tick models.Tick) { got1 <- tick })
	m.Subscribe("NSE:SBIN-EQ", func(tick models.Tick) { got2 <- tick })

	conn := h.waitConn(t)
	h.waitFrame(t)

	err := conn.WriteJSON(map[string]interface{}{
		"type": "market_data",
		"data": map[string]interface{}{
			"symbol": "NSE:SBIN-EQ",
			"ltp":    830.5,
			"volume": 12000,
		},
	})
	if err != nil {
		t.Fatalf("server write failed: %v", err)
	}

	for i, ch := range []chan models.Tick{got1, got2} {
		select {
		case tick := <-ch:
			if tick.Symbol != "NSE:SBIN-EQ" || tick.LTP != 830.5 {
				t.Errorf("callback %d got wrong tick: %+v", i, tick)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("callback %d never fired", i)
		}
	}
}

func TestCallbackUnsubscribingItselfDuringDispatch(t *testing.T) {
	h := newWSHarness(t)
	m := newTestManager(h)
	defer m.Close()

	selfTicks := make(chan models.Tick, 4)
	sibTicks := make(chan models.Tick, 4)

	// The callback pulls its own handle from the channel so the handoff is
	// synchronized with the read loop.
	handleCh := make(chan Handle, 1)
	handleCh <- m.Subscribe("NSE:SBIN-EQ", func(tick models.Tick) {
		selfTicks <- tick
		m.Unsubscribe("NSE:SBIN-EQ", <-handleCh)
	})
	m.Subscribe("NSE:SBIN-EQ", func(tick models.Tick) { sibTicks <- tick })

	conn := h.waitConn(t)
	h.waitFrame(t)

	push := func(ltp float64) {
		err := conn.WriteJSON(map[string]interface{}{
			"type": "market_data",
			"data": map[string]interface{}{"symbol": "NSE:SBIN-EQ", "ltp": ltp},
		})
		if err != nil {
			t.Fatalf("server write failed: %v", err)
		}
	}

	// Both callbacks see the first tick, even though one of them removes
	// itself while the tick is being delivered.
	push(100)
	for name, ch := range map[string]chan models.Tick{"self": selfTicks, "sibling": sibTicks} {
		select {
		case tick := <-ch:
			if tick.LTP != 100 {
				t.Errorf("%s callback got wrong tick: %+v", name, tick)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s callback never saw the first tick", name)
		}
	}

	// The removed handle stays dead; the sibling keeps receiving.
	push(200)
	select {
	case tick := <-sibTicks:
		if tick.LTP != 200 {
			t.Errorf("sibling got wrong second tick: %+v", tick)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sibling never saw the second tick")
	}
	select {
	case tick := <-selfTicks:
		t.Fatalf("unsubscribed callback still invoked: %+v", tick)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTickForUnknownSymbolIsNoOp(t *testing.T) {
	h := newWSHarness(t)
	m := newTestManager(h)
	defer m.Close()

	got := make(chan models.Tick, 1)
	m.Subscribe("NSE:SBIN-EQ", func(tick models.Tick) { got <- tick })

	conn := h.waitConn(t)
	h.waitFrame(t)

	conn.WriteJSON(map[string]interface{}{
		"type": "market_data",
		"data": map[string]interface{}{"symbol": "NSE:OTHER-EQ", "ltp": 1.0},
	})

	select {
	case tick := <-got:
		t.Fatalf("tick for unsubscribed symbol delivered: %+v", tick)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeRemovesSymbolOnlyWhenLastHandleGoes(t *testing.T) {
	h := newWSHarness(t)
	m := newTestManager(h)
	defer m.Close()

	h1 := m.Subscribe("NSE:SBIN-EQ", func(models.Tick) {})
	h2 := m.Subscribe("NSE:SBIN-EQ", func(models.Tick) {})
	m.Subscribe("NSE:TCS-EQ", func(models.Tick) {})

	h.waitConn(t)
	h.waitFrame(t) // initial subscribe
	for len(h.frames) > 0 {
		<-h.frames
	}

	// First handle out: symbol stays, nothing on the wire.
	m.Unsubscribe("NSE:SBIN-EQ", h1)
	if got := m.Symbols(); len(got) != 2 {
		t.Fatalf("symbol dropped too early: %v", got)
	}
	select {
	case frame := <-h.frames:
		t.Fatalf("premature unsubscribe frame: %+v", frame)
	case <-time.After(100 * time.Millisecond):
	}

	// Last handle out: registry entry and wire subscription both go.
	m.Unsubscribe("NSE:SBIN-EQ", h2)
	if got := m.Symbols(); len(got) != 1 || got[0] != "NSE:TCS-EQ" {
		t.Fatalf("registry wrong after final unsubscribe: %v", got)
	}
	frame := h.waitFrame(t)
	if frame.Type != "unsubscribe" || len(frame.Symbols) != 1 || frame.Symbols[0] != "NSE:SBIN-EQ" {
		t.Fatalf("unexpected unsubscribe frame: %+v", frame)
	}
}

func TestLastUnsubscribeTearsDownConnection(t *testing.T) {
	h := newWSHarness(t)
	m := newTestManager(h)
	defer m.Close()

	handle := m.Subscribe("NSE:SBIN-EQ", func(models.Tick) {})
	h.waitConn(t)
	h.waitFrame(t)

	m.Unsubscribe("NSE:SBIN-EQ", handle)

	if m.State() != Disconnected {
		t.Errorf("expected Disconnected after last unsubscribe, got %s", m.State())
	}
	if got := m.Symbols(); len(got) != 0 {
		t.Errorf("registry should be empty, got %v", got)
	}

	// No reconnect attempt follows while the registry is empty.
	select {
	case <-h.conns:
		t.Fatal("reconnect attempted with empty registry")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReconnectResendsRegistryState(t *testing.T) {
	h := newWSHarness(t)
	m := newTestManager(h)
	defer m.Close()

	m.Subscribe("NSE:SBIN-EQ", func(models.Tick) {})
	conn := h.waitConn(t)
	h.waitFrame(t)

	// Server drops the connection; a subscribe arrives during the outage.
	conn.Close()
	m.Subscribe("NSE:TCS-EQ", func(models.Tick) {})

	h.waitConn(t)

	// The post-reconnect subscribe covers the registry as of reconnect
	// time, so both symbols appear across the frames sent.
	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case frame := <-h.frames:
			if frame.Type != "subscribe" {
				t.Fatalf("unexpected frame type: %+v", frame)
			}
			for _, s := range frame.Symbols {
				seen[s] = true
			}
		case <-deadline:
			t.Fatalf("reconnect did not resubscribe both symbols, saw %v", seen)
		}
	}

	want := []string{"NSE:SBIN-EQ", "NSE:TCS-EQ"}
	var got []string
	for s := range seen {
		got = append(got, s)
	}
	sort.Strings(got)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("resubscribed %v, want %v", got, want)
		}
	}
}

func TestCloseStopsReconnect(t *testing.T) {
	h := newWSHarness(t)
	m := newTestManager(h)

	m.Subscribe("NSE:SBIN-EQ", func(models.Tick) {})
	conn := h.waitConn(t)
	h.waitFrame(t)

	m.Close()
	conn.Close()

	select {
	case <-h.conns:
		t.Fatal("reconnect attempted after Close")
	case <-time.After(200 * time.Millisecond):
	}

	if m.State() != Disconnected {
		t.Errorf("expected Disconnected after Close, got %s", m.State())
	}
}
