package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"relaychat/handlers"
	"relaychat/middleware"
	"relaychat/models"
)

func main() {
	// .env is optional; real environments set variables directly
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	hub := handlers.NewHub()
	go hub.Run()

	channels := handlers.NewChannelHandler(models.DefaultChannels)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", hub.HandleWebSocket)
	mux.Handle("GET /channels", middleware.Logging(http.HandlerFunc(channels.List)))
	mux.Handle("GET /channels/{id}", middleware.Logging(http.HandlerFunc(channels.Get)))
	mux.Handle("GET /health", middleware.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Relay server starting on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, mux))
}
