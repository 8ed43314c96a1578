package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"relaychat/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

// Client is one connected socket. The relay keeps no session state beyond
// membership in the fan-out set.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	addr string
}

type inboundFrame struct {
	client *Client
	data   []byte
}

// Hub accepts connections and fans every accepted message out to all open
// sockets, including the sender. One loop processes each inbound frame to
// completion before the next, so a broadcast is fully enqueued before any
// later frame is looked at.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		inbound:    make(chan inboundFrame, 256),
	}
}

func (h *Hub) Run() {
	log.Printf("[HUB] Hub started and running")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("[HUB] Client connected: %s (total clients: %d)", client.addr, count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("[HUB] Client disconnected: %s (total clients: %d)", client.addr, count)

		case frame := <-h.inbound:
			h.handleFrame(frame.client, frame.data)
		}
	}
}

// handleFrame parses and validates one inbound frame. A malformed frame gets
// an error envelope back to the sender only and never terminates the
// connection or reaches anyone else.
func (h *Hub) handleFrame(c *Client, data []byte) {
	env, err := models.ParseEnvelope(data)
	if err != nil {
		log.Printf("[HUB] Invalid JSON from %s: %v", c.addr, err)
		h.sendError(c, "Invalid JSON format")
		return
	}

	switch env.Type {
	case models.TypeSendMessage:
		payload, err := models.DecodeSendMessage(env.Payload)
		if err != nil {
			log.Printf("[HUB] Bad sendMessage payload from %s: %v", c.addr, err)
			h.sendError(c, "Invalid sendMessage payload")
			return
		}
		msg := models.Message{
			ID:        uuid.NewString(),
			ChannelID: payload.ChannelID,
			SenderID:  payload.UserID,
			Text:      payload.Text,
			Timestamp: time.Now().UnixMilli(),
		}
		h.broadcast(msg)

	default:
		log.Printf("[HUB] Unknown message type %q from %s", env.Type, c.addr)
		h.sendError(c, "Unknown message type")
	}
}

// broadcast delivers a newMessage envelope to every open connection,
// including the sender. The sender relies on the echo to reconcile its
// optimistic local copy. A slow or broken connection is dropped rather than
// allowed to block delivery to the others.
func (h *Hub) broadcast(msg models.Message) {
	data, err := models.NewEnvelope(models.TypeNewMessage, msg)
	if err != nil {
		log.Printf("[HUB] Failed to marshal broadcast: %v", err)
		return
	}

	var stale []*Client
	h.mu.RLock()
	total := len(h.clients)
	sent := 0
	for client := range h.clients {
		select {
		case client.send <- data:
			sent++
		default:
			log.Printf("[HUB] Client %s buffer full - marking as stale", client.addr)
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	log.Printf("[HUB] Broadcast message %s (channel %s) sent to %d/%d clients", msg.ID, msg.ChannelID, sent, total)

	if len(stale) > 0 {
		h.mu.Lock()
		for _, client := range stale {
			if _, ok := h.clients[client]; ok {
				close(client.send)
				delete(h.clients, client)
				log.Printf("[HUB] Removed stale client: %s", client.addr)
			}
		}
		h.mu.Unlock()
	}
}

// sendError delivers an error envelope to the offending connection only.
func (h *Hub) sendError(c *Client, message string) {
	data, err := models.NewEnvelope(models.TypeError, models.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		// Buffer full, drop the error frame
	}
}

// ClientCount reports the size of the fan-out set.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error from %s: %v", r.RemoteAddr, err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		addr: r.RemoteAddr,
	}

	go client.writePump()
	go client.readPump()

	h.register <- client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Read error for client %s: %v", c.addr, err)
			}
			break
		}
		c.hub.inbound <- inboundFrame{client: c, data: message}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for client %s: %v", c.addr, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
