// internal/messaging/routes.go

package messaging

import (
	"github.com/gorilla/mux"

	"github.com/imadgeboyega/heartwing-backend/internal/auth"
)

// RegisterRoutes registers the realtime endpoints
func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(authMiddleware.Authenticate)
	ws.HandleFunc("", handler.HandleWebSocket).Methods("GET")

	api := router.PathPrefix("/api/v1/realtime").Subrouter()
	api.Use(authMiddleware.Authenticate)
	api.HandleFunc("/stats", handler.GetStats).Methods("GET")
}
