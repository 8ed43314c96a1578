package client

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"relaychat/models"
)

var testChannels = []models.ChannelConfig{
	{ID: "c1", DisplayName: "Channel One"},
	{ID: "c2", DisplayName: "Channel Two"},
}

func newTestStore() *Store {
	return NewStore("me", testChannels)
}

func frame(t *testing.T, msg models.Message) []byte {
	t.Helper()
	data, err := models.NewEnvelope(models.TypeNewMessage, msg)
	if err != nil {
		t.Fatalf("failed to build frame: %v", err)
	}
	return data
}

// checkUnreadInvariant verifies unreadCount == number of unread messages for
// every channel.
func checkUnreadInvariant(t *testing.T, s *Store) {
	t.Helper()
	for _, ch := range s.Channels() {
		unread := 0
		for _, m := range s.Messages(ch.ID) {
			if !m.IsRead {
				unread++
			}
		}
		if ch.UnreadCount != unread {
			t.Fatalf("channel %s: unreadCount=%d but %d unread messages", ch.ID, ch.UnreadCount, unread)
		}
	}
}

func TestIngestMaintainsUnreadInvariant(t *testing.T) {
	s := newTestStore()
	now := time.Now().UnixMilli()

	frames := []models.Message{
		{ID: "m1", ChannelID: "c1", SenderID: "alice", Text: "one", Timestamp: now},
		{ID: "m2", ChannelID: "c1", SenderID: "bob", Text: "two", Timestamp: now + 10_000},
		{ID: "m3", ChannelID: "c2", SenderID: "alice", Text: "three", Timestamp: now + 20_000},
		{ID: "m4", ChannelID: "c1", SenderID: "me", Text: "mine", Timestamp: now + 30_000},
	}
	for _, msg := range frames {
		if _, err := s.Ingest(frame(t, msg)); err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
		checkUnreadInvariant(t, s)
	}

	c1, _ := s.Channel("c1")
	if c1.UnreadCount != 2 {
		t.Fatalf("expected 2 unread in c1, got %d", c1.UnreadCount)
	}
	c2, _ := s.Channel("c2")
	if c2.UnreadCount != 1 {
		t.Fatalf("expected 1 unread in c2, got %d", c2.UnreadCount)
	}

	// The local user's own message arrives already read.
	msgs := s.Messages("c1")
	if last := msgs[len(msgs)-1]; !last.IsRead {
		t.Fatalf("own message should be read: %+v", last)
	}
}

func TestEchoOfOptimisticSendIsDeduplicated(t *testing.T) {
	s := newTestStore()
	now := time.Now().UnixMilli()

	s.AppendLocal(models.Message{
		ID:        models.ProvisionalIDPrefix + "abc",
		ChannelID: "c1",
		SenderID:  "me",
		Text:      "hello",
		Timestamp: now,
	})

	// The relay echo has a fresh id and a slightly later server timestamp.
	msg, err := s.Ingest(frame(t, models.Message{
		ID: "server-1", ChannelID: "c1", SenderID: "me", Text: "hello", Timestamp: now + 1200,
	}))
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if msg != nil {
		t.Fatalf("echo should be dropped, got %+v", msg)
	}

	msgs := s.Messages("c1")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 visible message, got %d", len(msgs))
	}
	if !strings.HasPrefix(msgs[0].ID, models.ProvisionalIDPrefix) {
		t.Fatalf("the provisional entry should stand as the durable record, got id %q", msgs[0].ID)
	}
	checkUnreadInvariant(t, s)
}

func TestEchoOutsideWindowDoubleDisplays(t *testing.T) {
	// Documented behavior: an echo delayed past the dedup window is not
	// correlated and appears twice.
	s := newTestStore()
	now := time.Now().UnixMilli()

	s.AppendLocal(models.Message{
		ID: models.ProvisionalIDPrefix + "abc", ChannelID: "c1", SenderID: "me", Text: "hello", Timestamp: now,
	})
	msg, err := s.Ingest(frame(t, models.Message{
		ID: "server-1", ChannelID: "c1", SenderID: "me", Text: "hello", Timestamp: now + dupWindowMillis + 1000,
	}))
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if msg == nil {
		t.Fatal("late echo should be appended")
	}
	if got := len(s.Messages("c1")); got != 2 {
		t.Fatalf("expected 2 visible messages, got %d", got)
	}
}

func TestSameTextDifferentSenderIsNotADuplicate(t *testing.T) {
	s := newTestStore()
	now := time.Now().UnixMilli()

	for i, sender := range []string{"alice", "bob"} {
		msg, err := s.Ingest(frame(t, models.Message{
			ID: "m" + string(rune('1'+i)), ChannelID: "c1", SenderID: sender, Text: "same text", Timestamp: now,
		}))
		if err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
		if msg == nil {
			t.Fatalf("message from %s should not be judged a duplicate", sender)
		}
	}
	if got := len(s.Messages("c1")); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	s := newTestStore()
	now := time.Now().UnixMilli()
	s.Ingest(frame(t, models.Message{ID: "m1", ChannelID: "c1", SenderID: "alice", Text: "one", Timestamp: now}))
	s.Ingest(frame(t, models.Message{ID: "m2", ChannelID: "c1", SenderID: "bob", Text: "two", Timestamp: now + 10_000}))

	s.MarkAsRead("c1")
	first := s.Messages("c1")
	firstCh, _ := s.Channel("c1")

	s.MarkAsRead("c1")
	second := s.Messages("c1")
	secondCh, _ := s.Channel("c1")

	if !reflect.DeepEqual(first, second) || !reflect.DeepEqual(firstCh, secondCh) {
		t.Fatal("second MarkAsRead changed state")
	}
	if firstCh.UnreadCount != 0 {
		t.Fatalf("expected 0 unread, got %d", firstCh.UnreadCount)
	}
	for _, m := range first {
		if !m.IsRead {
			t.Fatalf("message %s still unread", m.ID)
		}
	}
}

func TestSelectChannelWithUnreadMarksRead(t *testing.T) {
	s := newTestStore()
	now := time.Now().UnixMilli()
	s.Ingest(frame(t, models.Message{ID: "m1", ChannelID: "c1", SenderID: "alice", Text: "one", Timestamp: now}))

	s.SetActiveChannel("c1")
	if got := s.ActiveChannel(); got != "c1" {
		t.Fatalf("expected active channel c1, got %q", got)
	}
	ch, _ := s.Channel("c1")
	if ch.UnreadCount != 0 {
		t.Fatalf("selection should mark the channel read, got %d unread", ch.UnreadCount)
	}
	checkUnreadInvariant(t, s)
}

func TestIngestErrors(t *testing.T) {
	s := newTestStore()

	cases := []struct {
		name string
		data string
		want string
	}{
		{"malformed json", `not valid json`, "Received malformed message from server."},
		{"invalid newMessage", `{"type":"newMessage","payload":{"id":"m1"}}`, "Received invalid message data from server (newMessage)."},
		{"server error", `{"type":"error","payload":{"message":"Invalid JSON format"}}`, "Server error: Invalid JSON format"},
		{"invalid error payload", `{"type":"error","payload":{}}`, "Received invalid error data from server."},
		{"unknown type", `{"type":"welcome","payload":{}}`, "Received message with unknown type from server."},
	}
	for _, tc := range cases {
		msg, err := s.Ingest([]byte(tc.data))
		if err == nil || err.Error() != tc.want {
			t.Fatalf("%s: expected error %q, got %v", tc.name, tc.want, err)
		}
		if msg != nil {
			t.Fatalf("%s: no message should be ingested", tc.name)
		}
	}

	// Nothing above may have touched the store.
	for _, ch := range s.Channels() {
		if len(s.Messages(ch.ID)) != 0 || ch.UnreadCount != 0 {
			t.Fatalf("store was modified by a rejected frame: %+v", ch)
		}
	}
}

func TestIngestUpdatesPreview(t *testing.T) {
	s := newTestStore()
	now := time.Now().UnixMilli()
	s.Ingest(frame(t, models.Message{ID: "m1", ChannelID: "c1", SenderID: "alice", Text: "latest news", Timestamp: now}))

	ch, _ := s.Channel("c1")
	if ch.LastPreviewText != "latest news" {
		t.Fatalf("expected preview %q, got %q", "latest news", ch.LastPreviewText)
	}
	if ch.LastMessageTimestamp != now {
		t.Fatalf("expected timestamp %d, got %d", now, ch.LastMessageTimestamp)
	}
}

func TestUnknownChannelDroppedSilently(t *testing.T) {
	s := newTestStore()
	msg, err := s.Ingest(frame(t, models.Message{
		ID: "m1", ChannelID: "nope", SenderID: "alice", Text: "hi", Timestamp: time.Now().UnixMilli(),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != nil {
		t.Fatalf("message for an unknown channel should be dropped")
	}
}

func TestRollbackRemovesOptimisticEntry(t *testing.T) {
	s := newTestStore()
	id := models.ProvisionalIDPrefix + "x"
	s.AppendLocal(models.Message{ID: id, ChannelID: "c1", SenderID: "me", Text: "oops", Timestamp: time.Now().UnixMilli()})

	if !s.RemoveMessage("c1", id) {
		t.Fatal("expected the entry to be removed")
	}
	if got := len(s.Messages("c1")); got != 0 {
		t.Fatalf("expected empty channel, got %d messages", got)
	}
	if s.RemoveMessage("c1", id) {
		t.Fatal("second removal should report false")
	}
}
