package models

// Message is a single chat message. For relay-confirmed messages the ID and
// Timestamp are assigned by the relay; optimistic local copies carry a
// provisional "temp-" id and the sender's local clock until the relay echo
// lands.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
	SenderID  string `json:"senderId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch

	// IsRead is client-side bookkeeping and never crosses the wire.
	IsRead bool `json:"-"`
}

// ProvisionalIDPrefix marks client-assigned message ids. Relay ids are
// UUIDs, so a prefixed id can never collide with a confirmed one.
const ProvisionalIDPrefix = "temp-"
