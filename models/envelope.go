package models

import (
	"encoding/json"
	"fmt"
)

// Envelope is the {type, payload} wrapper used in both directions over the
// socket. Payload stays raw until the type is known so a bad payload can be
// rejected without touching the rest of the frame stream.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Envelope types.
const (
	// Client -> Relay
	TypeSendMessage = "sendMessage"

	// Relay -> Client
	TypeNewMessage = "newMessage"
	TypeError      = "error"
)

// SendMessagePayload is the only client-originated operation.
type SendMessagePayload struct {
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
	Text      string `json:"text"`
}

// ErrorPayload is sent by the relay to the offending connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEnvelope marshals a payload into a wire-ready envelope frame.
func NewEnvelope(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// ParseEnvelope parses a raw frame into an envelope. The payload is not
// validated here; use the Decode helpers once the type is known.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON frame: %w", err)
	}
	return &env, nil
}

// DecodeSendMessage validates a sendMessage payload. Every field must be
// present and a string; userId and channelId must be non-empty.
func DecodeSendMessage(payload json.RawMessage) (*SendMessagePayload, error) {
	var raw struct {
		UserID    *string `json:"userId"`
		ChannelID *string `json:"channelId"`
		Text      *string `json:"text"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("malformed sendMessage payload: %w", err)
	}
	if raw.UserID == nil || *raw.UserID == "" {
		return nil, fmt.Errorf("sendMessage payload missing userId")
	}
	if raw.ChannelID == nil || *raw.ChannelID == "" {
		return nil, fmt.Errorf("sendMessage payload missing channelId")
	}
	if raw.Text == nil {
		return nil, fmt.Errorf("sendMessage payload missing text")
	}
	return &SendMessagePayload{
		UserID:    *raw.UserID,
		ChannelID: *raw.ChannelID,
		Text:      *raw.Text,
	}, nil
}

// DecodeNewMessage validates a newMessage payload and normalizes it into a
// canonical Message. Some senders put the author under "userId" instead of
// "senderId"; both are accepted.
func DecodeNewMessage(payload json.RawMessage) (*Message, error) {
	var raw struct {
		ID        *string `json:"id"`
		ChannelID *string `json:"channelId"`
		SenderID  *string `json:"senderId"`
		UserID    *string `json:"userId"`
		Text      *string `json:"text"`
		Timestamp *int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("malformed newMessage payload: %w", err)
	}
	sender := raw.SenderID
	if sender == nil {
		sender = raw.UserID
	}
	if raw.ID == nil || *raw.ID == "" {
		return nil, fmt.Errorf("newMessage payload missing id")
	}
	if raw.ChannelID == nil || *raw.ChannelID == "" {
		return nil, fmt.Errorf("newMessage payload missing channelId")
	}
	if sender == nil || *sender == "" {
		return nil, fmt.Errorf("newMessage payload missing senderId")
	}
	if raw.Text == nil {
		return nil, fmt.Errorf("newMessage payload missing text")
	}
	if raw.Timestamp == nil {
		return nil, fmt.Errorf("newMessage payload missing timestamp")
	}
	return &Message{
		ID:        *raw.ID,
		ChannelID: *raw.ChannelID,
		SenderID:  *sender,
		Text:      *raw.Text,
		Timestamp: *raw.Timestamp,
	}, nil
}

// DecodeError validates an error payload.
func DecodeError(payload json.RawMessage) (*ErrorPayload, error) {
	var raw struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("malformed error payload: %w", err)
	}
	if raw.Message == nil {
		return nil, fmt.Errorf("error payload missing message")
	}
	return &ErrorPayload{Message: *raw.Message}, nil
}
