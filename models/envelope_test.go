package models

import (
	"encoding/json"
	"testing"
)

func TestParseEnvelopeRejectsInvalidJSON(t *testing.T) {
	if _, err := ParseEnvelope([]byte("not valid json")); err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
}

func TestNewEnvelopeRoundTrip(t *testing.T) {
	data, err := NewEnvelope(TypeError, ErrorPayload{Message: "boom"})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	env, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("ParseEnvelope failed: %v", err)
	}
	if env.Type != TypeError {
		t.Fatalf("expected type %q, got %q", TypeError, env.Type)
	}
	payload, err := DecodeError(env.Payload)
	if err != nil {
		t.Fatalf("DecodeError failed: %v", err)
	}
	if payload.Message != "boom" {
		t.Fatalf("expected message %q, got %q", "boom", payload.Message)
	}
}

func TestDecodeSendMessage(t *testing.T) {
	valid := json.RawMessage(`{"userId":"u1","channelId":"c1","text":"hi"}`)
	payload, err := DecodeSendMessage(valid)
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if payload.UserID != "u1" || payload.ChannelID != "c1" || payload.Text != "hi" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	// Empty text is allowed; missing text is not.
	if _, err := DecodeSendMessage(json.RawMessage(`{"userId":"u1","channelId":"c1","text":""}`)); err != nil {
		t.Fatalf("empty text should be accepted: %v", err)
	}

	bad := []string{
		`{"channelId":"c1","text":"hi"}`,
		`{"userId":"","channelId":"c1","text":"hi"}`,
		`{"userId":"u1","text":"hi"}`,
		`{"userId":"u1","channelId":"c1"}`,
		`{"userId":7,"channelId":"c1","text":"hi"}`,
		`[]`,
		``,
	}
	for _, raw := range bad {
		if _, err := DecodeSendMessage(json.RawMessage(raw)); err == nil {
			t.Fatalf("expected rejection for payload %s", raw)
		}
	}
}

func TestDecodeNewMessageNormalizesSender(t *testing.T) {
	withSenderID := json.RawMessage(`{"id":"m1","channelId":"c1","senderId":"u1","text":"hi","timestamp":1700000000000}`)
	msg, err := DecodeNewMessage(withSenderID)
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if msg.SenderID != "u1" {
		t.Fatalf("expected senderId u1, got %q", msg.SenderID)
	}

	// Some senders put the author under userId instead.
	withUserID := json.RawMessage(`{"id":"m2","channelId":"c1","userId":"u2","text":"hi","timestamp":1700000000000}`)
	msg, err = DecodeNewMessage(withUserID)
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if msg.SenderID != "u2" {
		t.Fatalf("expected normalized senderId u2, got %q", msg.SenderID)
	}

	// senderId wins when both are present.
	withBoth := json.RawMessage(`{"id":"m3","channelId":"c1","senderId":"a","userId":"b","text":"hi","timestamp":1700000000000}`)
	msg, err = DecodeNewMessage(withBoth)
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if msg.SenderID != "a" {
		t.Fatalf("expected senderId a, got %q", msg.SenderID)
	}
}

func TestDecodeNewMessageRejectsBadPayloads(t *testing.T) {
	bad := []string{
		`{"channelId":"c1","senderId":"u1","text":"hi","timestamp":1}`,
		`{"id":"m1","senderId":"u1","text":"hi","timestamp":1}`,
		`{"id":"m1","channelId":"c1","text":"hi","timestamp":1}`,
		`{"id":"m1","channelId":"c1","senderId":"u1","timestamp":1}`,
		`{"id":"m1","channelId":"c1","senderId":"u1","text":"hi"}`,
		`{"id":"m1","channelId":"c1","senderId":"u1","text":"hi","timestamp":"then"}`,
		`"hi"`,
	}
	for _, raw := range bad {
		if _, err := DecodeNewMessage(json.RawMessage(raw)); err == nil {
			t.Fatalf("expected rejection for payload %s", raw)
		}
	}
}
