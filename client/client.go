package client

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"relaychat/models"
)

// reconnectDelay is how long the facade waits before the single automatic
// reconnection attempt after a silent drop.
const reconnectDelay = 5 * time.Second

// Client composes the connection manager and the channel/message store into
// the operations the rendering layer calls. All socket events are consumed by
// one internal loop, preserving the transport's delivery order into the
// store.
type Client struct {
	userID string
	cm     *ConnectionManager
	store  *Store

	mu             sync.Mutex
	url            string
	manualStop     bool
	reconnectTimer *time.Timer
	reconnectAfter time.Duration

	onMessage func(models.Message)
	updates   chan struct{}
}

// New builds a client for the given local user and static channel set and
// starts its event loop. Callers must Close it when done.
func New(userID string, channels []models.ChannelConfig) *Client {
	c := &Client{
		userID:         userID,
		cm:             NewConnectionManager(),
		store:          NewStore(userID, channels),
		reconnectAfter: reconnectDelay,
		updates:        make(chan struct{}, 1),
	}
	go c.run()
	return c
}

// SetMessageHandler registers a callback invoked from the event loop for
// every newly ingested (non-duplicate) message. Set it before Connect; the
// callback must not block.
func (c *Client) SetMessageHandler(handler func(models.Message)) {
	c.mu.Lock()
	c.onMessage = handler
	c.mu.Unlock()
}

// SetReconnectDelay overrides the automatic reconnection delay.
func (c *Client) SetReconnectDelay(d time.Duration) {
	c.mu.Lock()
	c.reconnectAfter = d
	c.mu.Unlock()
}

// Updates signals that the observable state changed; the rendering layer
// re-reads the snapshots on each tick. The channel coalesces bursts.
func (c *Client) Updates() <-chan struct{} {
	return c.updates
}

// Connect starts connecting to the relay at url. A manual connect clears any
// recorded error and supersedes a pending reconnection attempt.
func (c *Client) Connect(url string) error {
	if url == "" {
		c.cm.RecordError("WebSocket URL is required.")
		c.notify()
		return errors.New("url is required")
	}
	c.mu.Lock()
	c.url = url
	c.manualStop = false
	c.cancelReconnectLocked()
	c.mu.Unlock()

	err := c.cm.Connect(url)
	c.notify()
	return err
}

// Disconnect closes the connection cleanly and suppresses automatic
// reconnection until the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manualStop = true
	c.cancelReconnectLocked()
	c.mu.Unlock()

	c.cm.Close()
	c.notify()
}

// SendMessage appends an optimistic local entry and transmits the envelope.
// It requires an Open connection; nothing is queued while disconnected. If
// the transmit fails the optimistic entry is rolled back.
func (c *Client) SendMessage(channelID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if c.cm.State() != StateOpen {
		c.cm.RecordError("Cannot send message. Not connected.")
		c.notify()
		return errors.New("not connected")
	}

	msg := models.Message{
		ID:        models.ProvisionalIDPrefix + uuid.NewString(),
		ChannelID: channelID,
		SenderID:  c.userID,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		IsRead:    true,
	}
	c.store.AppendLocal(msg)

	frame, err := models.NewEnvelope(models.TypeSendMessage, models.SendMessagePayload{
		UserID:    c.userID,
		ChannelID: channelID,
		Text:      text,
	})
	if err == nil {
		err = c.cm.Send(frame)
	}
	if err != nil {
		c.store.RemoveMessage(channelID, msg.ID)
		c.cm.RecordError("Failed to send message.")
		c.notify()
		return err
	}

	if c.store.ActiveChannel() == channelID {
		c.store.MarkAsRead(channelID)
	}
	c.notify()
	return nil
}

// SelectChannel makes channelID the active channel; selecting a channel with
// unread messages marks it read.
func (c *Client) SelectChannel(channelID string) {
	c.store.SetActiveChannel(channelID)
	c.notify()
}

// MarkAsRead flags a channel read without selecting it.
func (c *Client) MarkAsRead(channelID string) {
	c.store.MarkAsRead(channelID)
	c.notify()
}

// ConnectionState reports the connection manager's current state.
func (c *Client) ConnectionState() ConnState {
	return c.cm.State()
}

// LastError reports the recorded error, or "" if none.
func (c *Client) LastError() string {
	return c.cm.LastError()
}

// UserID returns the local user identifier used to tag outgoing messages.
func (c *Client) UserID() string {
	return c.userID
}

// Channels returns a snapshot of all channels in configuration order.
func (c *Client) Channels() []models.Channel {
	return c.store.Channels()
}

// Messages returns a snapshot of one channel's message sequence.
func (c *Client) Messages(channelID string) []models.Message {
	return c.store.Messages(channelID)
}

// ActiveChannel returns the selected channel id, or "".
func (c *Client) ActiveChannel() string {
	return c.store.ActiveChannel()
}

// TotalUnread sums unread counters across channels.
func (c *Client) TotalUnread() int {
	return c.store.TotalUnread()
}

// Close tears the client down: the reconnect timer is cancelled, the
// connection closed, and the event loop released.
func (c *Client) Close() {
	c.mu.Lock()
	c.manualStop = true
	c.cancelReconnectLocked()
	c.mu.Unlock()
	c.cm.Shutdown()
}

func (c *Client) run() {
	for {
		select {
		case ev := <-c.cm.Events():
			switch ev.kind {
			case evOpened:
				c.mu.Lock()
				c.cancelReconnectLocked()
				c.mu.Unlock()

			case evFrame:
				msg, err := c.store.Ingest(ev.data)
				if err != nil {
					log.Printf("[CLIENT] %s", err)
					c.cm.RecordError(err.Error())
				} else if msg != nil {
					c.mu.Lock()
					handler := c.onMessage
					c.mu.Unlock()
					if handler != nil {
						handler(*msg)
					}
				}

			case evClosed:
				c.maybeScheduleReconnect()
			}
			c.notify()

		case <-c.cm.Done():
			return
		}
	}
}

// maybeScheduleReconnect arms the single reconnection attempt: only after a
// disconnect with no recorded error, and never after a manual Disconnect.
// A recorded error leaves reconnection to the user's explicit action.
func (c *Client) maybeScheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.manualStop || c.url == "" || c.reconnectTimer != nil {
		return
	}
	if c.cm.LastError() != "" {
		return
	}
	url := c.url
	log.Printf("[CLIENT] Scheduling reconnect attempt in %s", c.reconnectAfter)
	c.reconnectTimer = time.AfterFunc(c.reconnectAfter, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		stopped := c.manualStop
		c.mu.Unlock()
		if stopped {
			return
		}
		if c.cm.State() != StateDisconnected || c.cm.LastError() != "" {
			return
		}
		log.Printf("[CLIENT] Reconnecting to %s", url)
		_ = c.cm.Connect(url)
		c.notify()
	})
}

func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}
