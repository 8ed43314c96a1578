package client

import (
	"errors"
	"fmt"
	"sync"

	"relaychat/models"
)

// dupWindowMillis is the tolerance for judging a relay echo a duplicate of an
// optimistic local entry. An echo older than this double-displays; see
// DESIGN.md before changing.
const dupWindowMillis = 5000

// Store holds the per-channel ordered message sequences, unread counters and
// channel previews. It is mutated only through Ingest, AppendLocal,
// RemoveMessage, MarkAsRead and SetActiveChannel; readers get copies.
type Store struct {
	mu          sync.RWMutex
	localUserID string
	order       []string
	channels    map[string]*models.Channel
	messages    map[string][]models.Message
	activeID    string
}

// NewStore builds a store with the static channel set. Channels are never
// created or destroyed after this point.
func NewStore(localUserID string, configs []models.ChannelConfig) *Store {
	s := &Store{
		localUserID: localUserID,
		channels:    make(map[string]*models.Channel),
		messages:    make(map[string][]models.Message),
	}
	for _, cfg := range configs {
		if _, ok := s.channels[cfg.ID]; ok {
			continue
		}
		s.order = append(s.order, cfg.ID)
		s.channels[cfg.ID] = &models.Channel{
			ID:          cfg.ID,
			DisplayName: cfg.DisplayName,
			Members:     append([]string(nil), cfg.Members...),
		}
		s.messages[cfg.ID] = nil
	}
	return s
}

// Ingest parses one relay frame and applies it. A bad frame leaves the store
// untouched; the returned error is reporting-only and carries the
// user-visible text for the status surface. The returned message is non-nil
// only when a new entry was actually appended (echo duplicates return nil).
func (s *Store) Ingest(data []byte) (*models.Message, error) {
	env, err := models.ParseEnvelope(data)
	if err != nil {
		return nil, errors.New("Received malformed message from server.")
	}

	switch env.Type {
	case models.TypeNewMessage:
		msg, err := models.DecodeNewMessage(env.Payload)
		if err != nil {
			return nil, errors.New("Received invalid message data from server (newMessage).")
		}
		if s.ingestMessage(msg) {
			return msg, nil
		}
		return nil, nil

	case models.TypeError:
		payload, err := models.DecodeError(env.Payload)
		if err != nil {
			return nil, errors.New("Received invalid error data from server.")
		}
		return nil, fmt.Errorf("Server error: %s", payload.Message)

	default:
		return nil, errors.New("Received message with unknown type from server.")
	}
}

// ingestMessage appends a confirmed message unless it is judged a duplicate
// of an existing entry. The duplicate check absorbs the relay's echo of a
// message the local user just optimistically added. Reports whether the
// message was appended.
func (s *Store) ingestMessage(msg *models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[msg.ChannelID]
	if !ok {
		// Unknown channel: channels are static, so drop silently.
		return false
	}

	for _, existing := range s.messages[msg.ChannelID] {
		if existing.SenderID == msg.SenderID &&
			existing.Text == msg.Text &&
			abs64(existing.Timestamp-msg.Timestamp) < dupWindowMillis {
			return false
		}
	}

	// A message authored by the local user arrives read; unread counts only
	// messages the local user has not seen, keeping the counter equal to the
	// number of unread entries.
	msg.IsRead = msg.SenderID == s.localUserID
	s.messages[msg.ChannelID] = append(s.messages[msg.ChannelID], *msg)

	ch.LastPreviewText = msg.Text
	ch.LastMessageTimestamp = msg.Timestamp
	if !msg.IsRead {
		ch.UnreadCount++
	}
	return true
}

// AppendLocal records an optimistic entry for a message the local user just
// sent. The entry is already read and never bumps the unread counter.
func (s *Store) AppendLocal(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[msg.ChannelID]
	if !ok {
		return
	}
	msg.IsRead = true
	s.messages[msg.ChannelID] = append(s.messages[msg.ChannelID], msg)
	ch.LastPreviewText = msg.Text
	ch.LastMessageTimestamp = msg.Timestamp
}

// RemoveMessage rolls back an entry by id, used when transmitting an
// optimistic send fails. Reports whether an entry was removed.
func (s *Store) RemoveMessage(channelID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[channelID]
	for i, m := range msgs {
		if m.ID == messageID {
			s.messages[channelID] = append(msgs[:i], msgs[i+1:]...)
			return true
		}
	}
	return false
}

// MarkAsRead flags every message in the channel read and resets the unread
// counter. Both updates happen under one lock so readers never observe one
// without the other. Idempotent.
func (s *Store) MarkAsRead(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return
	}
	msgs := s.messages[channelID]
	for i := range msgs {
		msgs[i].IsRead = true
	}
	ch.UnreadCount = 0
}

// SetActiveChannel selects a channel; selecting one with unread messages
// marks it read as a side effect.
func (s *Store) SetActiveChannel(channelID string) {
	s.mu.Lock()
	ch, ok := s.channels[channelID]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.activeID = channelID
	unread := ch.UnreadCount
	s.mu.Unlock()

	if unread > 0 {
		s.MarkAsRead(channelID)
	}
}

// ActiveChannel returns the currently selected channel id, or "".
func (s *Store) ActiveChannel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Channels returns a snapshot of all channels in configuration order.
func (s *Store) Channels() []models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Channel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.channels[id])
	}
	return out
}

// Channel returns a snapshot of one channel.
func (s *Store) Channel(channelID string) (models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return models.Channel{}, false
	}
	return *ch, true
}

// Messages returns a snapshot of one channel's ordered message sequence.
func (s *Store) Messages(channelID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.messages[channelID]...)
}

// TotalUnread sums the unread counters across all channels.
func (s *Store) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, ch := range s.channels {
		total += ch.UnreadCount
	}
	return total
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
