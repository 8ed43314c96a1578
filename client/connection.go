package client

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnState is the lifecycle state of the single logical relay connection.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingInterval     = 30 * time.Second
	handshakeTimeout = 10 * time.Second
	maxMessageSize   = 64 * 1024
)

type eventKind int

const (
	evOpened eventKind = iota
	evFrame
	evClosed
)

// connEvent is the single-consumer dispatch unit. Transport callbacks are
// funneled through one channel so the owner processes open/frame/close
// strictly in the order the transport delivered them.
type connEvent struct {
	kind   eventKind
	data   []byte // evFrame
	errMsg string // evClosed; empty means the closure was clean
}

// ConnectionManager owns one logical connection: connect, detect
// open/error/close, classify closures, and surface frames. Reconnection is
// the owning facade's job; the manager never redials on its own.
type ConnectionManager struct {
	mu      sync.Mutex
	writeMu sync.Mutex

	state      ConnState
	lastErr    string
	conn       *websocket.Conn
	gen        int // connection generation; stale pumps are ignored
	localClose bool
	pingStop   chan struct{}

	dialer *websocket.Dialer
	events chan connEvent
	quit   chan struct{}
	once   sync.Once
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		state:  StateDisconnected,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		events: make(chan connEvent, 64),
		quit:   make(chan struct{}),
	}
}

// Events delivers transport events in arrival order to a single consumer.
func (m *ConnectionManager) Events() <-chan connEvent {
	return m.events
}

// Done is closed on Shutdown.
func (m *ConnectionManager) Done() <-chan struct{} {
	return m.quit
}

// State returns the current connection state.
func (m *ConnectionManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the recorded error, or "" if none.
func (m *ConnectionManager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// RecordError stores an error for the status surface without touching the
// connection state. Used by the owner for protocol and operational errors.
func (m *ConnectionManager) RecordError(msg string) {
	m.mu.Lock()
	m.lastErr = msg
	m.mu.Unlock()
}

// Connect starts a connection attempt. It never blocks; completion is
// signaled through the event channel. A duplicate attempt while connecting
// or open is rejected, not queued.
func (m *ConnectionManager) Connect(url string) error {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		m.lastErr = "Already connected."
		m.mu.Unlock()
		return errors.New("already connected")
	case StateConnecting:
		m.lastErr = "Connection attempt already in progress."
		m.mu.Unlock()
		return errors.New("connection attempt already in progress")
	case StateClosing:
		m.mu.Unlock()
		return errors.New("connection is closing")
	}
	m.state = StateConnecting
	m.lastErr = ""
	m.localClose = false
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	log.Printf("[CONN] Connecting to %s", url)
	go m.dial(url, gen)
	return nil
}

func (m *ConnectionManager) dial(url string, gen int) {
	conn, _, err := m.dialer.Dial(url, nil)

	m.mu.Lock()
	if gen != m.gen || m.state != StateConnecting {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		m.state = StateDisconnected
		m.lastErr = fmt.Sprintf("Failed to connect: %v", err)
		errMsg := m.lastErr
		m.mu.Unlock()
		log.Printf("[CONN] Dial failed: %v", err)
		m.emit(connEvent{kind: evClosed, errMsg: errMsg})
		return
	}
	m.conn = conn
	m.state = StateOpen
	m.lastErr = ""
	stop := make(chan struct{})
	m.pingStop = stop
	m.mu.Unlock()

	log.Printf("[CONN] Connected")
	m.emit(connEvent{kind: evOpened})
	go m.readPump(conn, gen)
	go m.pingLoop(conn, stop)
}

func (m *ConnectionManager) readPump(conn *websocket.Conn, gen int) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(conn, gen, err)
			return
		}
		m.emit(connEvent{kind: evFrame, data: data})
	}
}

func (m *ConnectionManager) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			m.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func (m *ConnectionManager) handleDisconnect(conn *websocket.Conn, gen int, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		conn.Close()
		return
	}
	var errMsg string
	if m.localClose {
		errMsg = ""
	} else {
		errMsg = classifyClose(err)
	}
	m.state = StateDisconnected
	m.conn = nil
	m.lastErr = errMsg
	if m.pingStop != nil {
		close(m.pingStop)
		m.pingStop = nil
	}
	m.mu.Unlock()

	conn.Close()
	if errMsg == "" {
		log.Printf("[CONN] Disconnected cleanly")
	} else {
		log.Printf("[CONN] Disconnected: %s", errMsg)
	}
	m.emit(connEvent{kind: evClosed, errMsg: errMsg})
}

// classifyClose maps a read error to a human-readable status line. A normal
// closure is clean and yields no error.
func classifyClose(err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure:
			return ""
		case websocket.CloseGoingAway:
			return "Peer is going away."
		case websocket.CloseProtocolError:
			return "WebSocket protocol error."
		case websocket.CloseUnsupportedData:
			return "Peer received unsupported data type."
		case websocket.CloseNoStatusReceived:
			return "Connection closed without a status code."
		case websocket.CloseAbnormalClosure:
			return "Connection closed abnormally (code 1006)."
		default:
			return fmt.Sprintf("Connection closed unexpectedly (code %d).", ce.Code)
		}
	}
	// No close frame at all, e.g. the network dropped underneath us.
	return "Connection closed abnormally (code 1006)."
}

// Send transmits one frame. It fails immediately unless the connection is
// Open; nothing is buffered for later flush.
func (m *ConnectionManager) Send(data []byte) error {
	m.mu.Lock()
	if m.state != StateOpen {
		m.mu.Unlock()
		return errors.New("not connected")
	}
	conn := m.conn
	m.mu.Unlock()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close performs a clean local disconnect. The read pump observes the
// closure and finishes the transition to Disconnected.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	switch m.state {
	case StateDisconnected, StateClosing:
		m.mu.Unlock()
		return
	case StateConnecting:
		if m.conn == nil {
			// Dial still in flight; supersede it and report a clean close.
			m.gen++
			m.state = StateDisconnected
			m.lastErr = ""
			m.mu.Unlock()
			m.emit(connEvent{kind: evClosed})
			return
		}
	}
	conn := m.conn
	m.state = StateClosing
	m.localClose = true
	m.mu.Unlock()

	m.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"))
	m.writeMu.Unlock()
	conn.Close()
}

// Shutdown tears the manager down. Pending events are discarded and the
// event channel's consumer is released via Done.
func (m *ConnectionManager) Shutdown() {
	m.Close()
	m.once.Do(func() { close(m.quit) })
}

func (m *ConnectionManager) emit(ev connEvent) {
	select {
	case m.events <- ev:
	case <-m.quit:
	}
}
