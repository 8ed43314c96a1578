package handlers

import (
	"encoding/json"
	"net/http"

	"relaychat/models"
)

// ChannelHandler serves the static channel directory. The relay does not
// persist channels; clients bootstrap the same fixed roster and this endpoint
// lets operators and tooling inspect it.
type ChannelHandler struct {
	channels []models.ChannelConfig
}

func NewChannelHandler(channels []models.ChannelConfig) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.channels)
}

func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")
	if channelID == "" {
		http.Error(w, "Channel ID required", http.StatusBadRequest)
		return
	}

	for _, ch := range h.channels {
		if ch.ID == channelID {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(ch)
			return
		}
	}
	http.Error(w, "Channel not found", http.StatusNotFound)
}
