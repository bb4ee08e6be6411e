// Package stream manages the shared push channel: one upstream websocket
// connection fanning out per-symbol ticks to every registered callback.
package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tradebridge/internal/models"
)

// ConnState represents the push-channel connection state.
type ConnState string

const (
	Disconnected ConnState = "disconnected"
	Connecting   ConnState = "connecting"
	Connected    ConnState = "connected"
)

// Handle identifies one registered callback so it can be unsubscribed.
type Handle uint64

// Callback receives ticks for a subscribed symbol. Callbacks for one symbol
// are invoked in arrival order; no ordering holds across symbols.
type Callback func(models.Tick)

// ManagerConfig holds configuration for the subscription manager.
type ManagerConfig struct {
	URL            string
	ReconnectDelay time.Duration
	Logger         zerolog.Logger
}

// Manager owns the single shared push connection and the subscription
// registry. A symbol is present in the registry if and only if at least one
// callback is interested in it.
type Manager struct {
	url            string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	logger         zerolog.Logger

	mu         sync.Mutex
	state      ConnState
	conn       *websocket.Conn
	gen        int // connection generation; stale readers are ignored
	registry   map[string]map[Handle]Callback
	nextHandle Handle
	pending    bool // a reconnect timer is already armed
	closed     bool
}

// NewManager creates a push-channel subscription manager. No connection is
// made until the first subscribe call.
func NewManager(cfg ManagerConfig) *Manager {
	delay := cfg.ReconnectDelay
	if delay == 0 {
		delay = 5 * time.Second
	}
	return &Manager{
		url:            cfg.URL,
		reconnectDelay: delay,
		dialer:         websocket.DefaultDialer,
		logger:         cfg.Logger,
		state:          Disconnected,
		registry:       make(map[string]map[Handle]Callback),
	}
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Symbols returns the symbols currently held in the registry.
func (m *Manager) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.symbolsLocked()
}

func (m *Manager) symbolsLocked() []string {
	symbols := make([]string, 0, len(m.registry))
	for s := range m.registry {
		symbols = append(symbols, s)
	}
	return symbols
}

// Subscribe registers a callback for a symbol and returns its handle.
// The first subscribe triggers a connect; on an established connection a
// newly-added symbol is sent upstream as an incremental subscription.
func (m *Manager) Subscribe(symbol string, cb Callback) Handle {
	m.mu.Lock()

	m.nextHandle++
	handle := m.nextHandle

	set, known := m.registry[symbol]
	if !known {
		set = make(map[Handle]Callback)
		m.registry[symbol] = set
	}
	set[handle] = cb

	switch m.state {
	case Disconnected:
		m.state = Connecting
		go m.connect()
	case Connected:
		if !known {
			m.sendControlLocked("subscribe", []string{symbol})
		}
	}
	m.mu.Unlock()

	return handle
}

// Unsubscribe removes a callback. When a symbol's last callback goes, the
// registry entry goes with it and an incremental unsubscribe is sent; when
// the last symbol goes, the connection is torn down.
func (m *Manager) Unsubscribe(symbol string, handle Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.registry[symbol]
	if !ok {
		return
	}
	delete(set, handle)
	if len(set) > 0 {
		return
	}

	delete(m.registry, symbol)
	if m.state == Connected {
		m.sendControlLocked("unsubscribe", []string{symbol})
	}
	if len(m.registry) == 0 && m.conn != nil {
		m.conn.Close()
		m.conn = nil
		m.state = Disconnected
		m.gen++
	}
}

// Close tears the connection down and stops all reconnection.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.registry = make(map[string]map[Handle]Callback)
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.state = Disconnected
	m.gen++
}

// controlFrame is the incremental subscribe/unsubscribe message.
type controlFrame struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

func (m *Manager) sendControlLocked(msgType string, symbols []string) {
	if m.conn == nil || len(symbols) == 0 {
		return
	}
	if err := m.conn.WriteJSON(controlFrame{Type: msgType, Symbols: symbols}); err != nil {
		m.logger.Warn().Err(err).Str("type", msgType).Msg("Push-channel write failed")
	}
}

// connect dials the upstream. On success it sends the registry's current
// symbol set and starts the read loop; on failure it schedules a reconnect.
func (m *Manager) connect() {
	conn, _, err := m.dialer.Dial(m.url, nil)

	m.mu.Lock()
	if m.closed || len(m.registry) == 0 {
		m.state = Disconnected
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		m.state = Disconnected
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		m.logger.Warn().Err(err).Msg("Push-channel connect failed")
		return
	}

	m.conn = conn
	m.state = Connected
	m.gen++
	gen := m.gen
	// Resubscribe with the registry as it stands now, not as it stood at
	// disconnect time: subscribes made during the outage must be honored.
	m.sendControlLocked("subscribe", m.symbolsLocked())
	m.mu.Unlock()

	m.logger.Info().Msg("Push channel connected")
	go m.readLoop(conn, gen)
}

// scheduleReconnectLocked arms a single fixed-delay reconnect attempt while
// at least one subscriber remains. An empty registry stays disconnected
// until a new subscribe arrives.
func (m *Manager) scheduleReconnectLocked() {
	if m.pending || m.closed || len(m.registry) == 0 {
		return
	}
	m.pending = true

	time.AfterFunc(m.reconnectDelay, func() {
		m.mu.Lock()
		m.pending = false
		if m.closed || len(m.registry) == 0 || m.state != Disconnected {
			m.mu.Unlock()
			return
		}
		m.state = Connecting
		m.mu.Unlock()
		m.connect()
	})
}

// pushMessage is the inbound per-symbol tick frame.
type pushMessage struct {
	Type string `json:"type"`
	Data struct {
		Symbol        string  `json:"symbol"`
		LTP           float64 `json:"ltp"`
		Open          float64 `json:"open"`
		High          float64 `json:"high"`
		Low           float64 `json:"low"`
		PrevClose     float64 `json:"prevClose"`
		Change        float64 `json:"change"`
		ChangePercent float64 `json:"changePercent"`
		Volume        int64   `json:"volume"`
		Bid           float64 `json:"bid"`
		Ask           float64 `json:"ask"`
	} `json:"data"`
}

func (m *Manager) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(conn, gen, err)
			return
		}

		var msg pushMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			m.logger.Debug().Err(err).Msg("Unparseable push message")
			continue
		}
		if msg.Type != "market_data" || msg.Data.Symbol == "" {
			continue
		}

		m.dispatch(models.Tick{
			Symbol:        msg.Data.Symbol,
			LTP:           msg.Data.LTP,
			Open:          msg.Data.Open,
			High:          msg.Data.High,
			Low:           msg.Data.Low,
			PrevClose:     msg.Data.PrevClose,
			Change:        msg.Data.Change,
			ChangePercent: msg.Data.ChangePercent,
			Volume:        msg.Data.Volume,
			Bid:           msg.Data.Bid,
			Ask:           msg.Data.Ask,
			Timestamp:     time.Now(),
		})
	}
}

// dispatch fans a tick out to every callback registered for its symbol.
// The callback set is copied before iterating: a callback that
// unsubscribes itself mid-delivery must not corrupt the iteration.
// A symbol with no registry entry is a no-op.
func (m *Manager) dispatch(tick models.Tick) {
	m.mu.Lock()
	set := m.registry[tick.Symbol]
	callbacks := make([]Callback, 0, len(set))
	for _, cb := range set {
		callbacks = append(callbacks, cb)
	}
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(tick)
	}
}

// handleDisconnect moves the machine to Disconnected and arms the
// reconnect timer. Reads from a superseded connection are ignored.
func (m *Manager) handleDisconnect(conn *websocket.Conn, gen int, err error) {
	conn.Close()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = Disconnected
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	if !m.isClosed() {
		m.logger.Warn().Err(err).Msg("Push channel disconnected")
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
