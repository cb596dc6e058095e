package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler serves the render stream.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	room              RoomController
}

func NewWebSocketHandler(cm *ConnectionManager, room RoomController) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm, room: room}
}

// HandleStream upgrades to a WebSocket that receives the current view and
// then one view per state change.
func (h *WebSocketHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if err := h.connectionManager.UpgradeConnection(w, r, h.room.View()); err != nil {
		// Upgrade already wrote the HTTP error.
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
	}
}
