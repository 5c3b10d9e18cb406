// internal/messaging/handlers.go

package messaging

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/imadgeboyega/heartwing-backend/internal/auth"
	"github.com/imadgeboyega/heartwing-backend/internal/common/utils"
	"github.com/imadgeboyega/heartwing-backend/internal/dating"
)

type Handler struct {
	service  dating.Service
	hub      *Hub
	sessions *SessionBuffer
	upgrader *websocket.Upgrader
}

func NewHandler(service dating.Service, hub *Hub, sessions *SessionBuffer, upgrader *websocket.Upgrader) *Handler {
	return &Handler{
		service:  service,
		hub:      hub,
		sessions: sessions,
		upgrader: upgrader,
	}
}

// HandleWebSocket upgrades an authenticated request and registers the client
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for user %d: %v", userID, err)
		return
	}

	client := NewClient(h.hub, conn, userID, h.service, h.sessions)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	client.Start()
}

// GetStats reports the connection count
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]int{
		"active_connections": h.hub.GetActiveConnections(),
		"open_sync_sessions": h.sessions.open(),
	})
}
