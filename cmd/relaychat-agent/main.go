package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"relaychat/agent"
	"relaychat/client"
	"relaychat/models"
)

const defaultPrompt = "You are a helpful sales research assistant participating in a team chat. " +
	"Answer concisely in plain text. Messages are prefixed with the sender's id; do not prefix your own replies."

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	relayURL := os.Getenv("RELAY_URL")
	if relayURL == "" {
		relayURL = "ws://localhost:8080/ws"
	}
	userID := os.Getenv("AGENT_USER_ID")
	if userID == "" {
		userID = "agent-researcher"
	}
	homeChannel := os.Getenv("AGENT_CHANNEL")
	if homeChannel == "" {
		homeChannel = "channel_leads"
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-5.2"
	}

	ai := agent.NewOpenAIClient(model)
	if !ai.IsConfigured() {
		log.Println("Warning: OPENAI_KEY not set. The agent will connect but cannot reply.")
	}

	c := client.New(userID, models.DefaultChannels)
	defer c.Close()

	worker := agent.NewWorker(c, ai, homeChannel, defaultPrompt)

	if err := c.Connect(relayURL); err != nil {
		log.Fatalf("Failed to start connection: %v", err)
	}
	log.Printf("Agent %s connecting to %s (home channel %s, model %s)", userID, relayURL, homeChannel, model)

	go worker.Run()
	defer worker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("Agent shutting down")
}
