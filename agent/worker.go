package agent

import (
	"fmt"
	"log"
	"strings"

	"relaychat/client"
	"relaychat/models"
)

// historyWindow bounds how much channel history is sent to the model.
const historyWindow = 12

// Worker is an autonomous agent connected to the relay as an ordinary
// client. Only the "agent-" naming convention on its user id distinguishes it
// from a human sender; the relay and the other clients treat it as opaque.
type Worker struct {
	client      *client.Client
	ai          *OpenAIClient
	userID      string
	homeChannel string
	prompt      string
	inbox       chan models.Message
	quit        chan struct{}
}

// NewWorker wires a worker onto a client facade. The facade must not be
// connected yet; the worker registers its message handler before dialing.
func NewWorker(c *client.Client, ai *OpenAIClient, homeChannel, prompt string) *Worker {
	w := &Worker{
		client:      c,
		ai:          ai,
		userID:      c.UserID(),
		homeChannel: homeChannel,
		prompt:      prompt,
		inbox:       make(chan models.Message, 64),
		quit:        make(chan struct{}),
	}
	c.SetMessageHandler(w.enqueue)
	return w
}

// enqueue runs on the client's event loop and must not block; a full inbox
// drops the message rather than stalling frame processing.
func (w *Worker) enqueue(msg models.Message) {
	if !w.wants(msg) {
		return
	}
	select {
	case w.inbox <- msg:
	default:
		log.Printf("[AGENT] Inbox full, dropping message %s", msg.ID)
	}
}

// wants reports whether the worker should answer: messages from others in its
// home channel, or mentioning its id anywhere.
func (w *Worker) wants(msg models.Message) bool {
	if msg.SenderID == w.userID {
		return false
	}
	if msg.ChannelID == w.homeChannel {
		return true
	}
	return strings.Contains(msg.Text, "@"+w.userID)
}

// Run consumes the inbox until Stop. Model calls happen here, off the
// client's event loop.
func (w *Worker) Run() {
	log.Printf("[AGENT] Worker %s watching channel %s", w.userID, w.homeChannel)
	for {
		select {
		case msg := <-w.inbox:
			w.respond(msg)
		case <-w.quit:
			return
		}
	}
}

// Stop ends the Run loop. In-flight model calls finish their reply first.
func (w *Worker) Stop() {
	close(w.quit)
}

func (w *Worker) respond(msg models.Message) {
	reply, err := w.reply(msg)
	if err != nil {
		log.Printf("[AGENT] Failed to produce reply for %s: %v", msg.ID, err)
		return
	}
	if reply == "" {
		return
	}
	if err := w.client.SendMessage(msg.ChannelID, reply); err != nil {
		log.Printf("[AGENT] Failed to send reply to %s: %v", msg.ChannelID, err)
	}
}

func (w *Worker) reply(msg models.Message) (string, error) {
	if !w.ai.IsConfigured() {
		return "", fmt.Errorf("OPENAI_KEY not set")
	}

	history := w.client.Messages(msg.ChannelID)
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	input := make([]InputMessage, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.SenderID == w.userID {
			role = "assistant"
		}
		input = append(input, InputMessage{
			Role:    role,
			Content: fmt.Sprintf("%s: %s", m.SenderID, m.Text),
		})
	}

	return w.ai.GetResponseWithContext(input, w.prompt)
}
