package dating

import (
	"github.com/gorilla/mux"
	"github.com/imadgeboyega/heartwing-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/dating").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Profile
	api.HandleFunc("/profile", handler.GetProfile).Methods("GET")
	api.HandleFunc("/profile", handler.UpdateProfile).Methods("PUT")

	// Matches
	api.HandleFunc("/likes", handler.Like).Methods("POST")
	api.HandleFunc("/matches", handler.GetMatches).Methods("GET")
	api.HandleFunc("/matches/{id:[0-9]+}", handler.GetMatch).Methods("GET")
	api.HandleFunc("/matches/{id:[0-9]+}/status", handler.SetStatus).Methods("POST")

	// Butterflies
	api.HandleFunc("/matches/{id:[0-9]+}/interactions", handler.RecordInteraction).Methods("POST")
	api.HandleFunc("/matches/{id:[0-9]+}/milestones", handler.AchieveMilestone).Methods("POST")
	api.HandleFunc("/matches/{id:[0-9]+}/collect", handler.CollectReward).Methods("POST")

	// Heart sync
	api.HandleFunc("/matches/{id:[0-9]+}/heart-sync", handler.StartHeartSync).Methods("POST")
	api.HandleFunc("/matches/{id:[0-9]+}/heart-sync/end", handler.EndHeartSync).Methods("POST")

	// Insights
	api.HandleFunc("/matches/{id:[0-9]+}/ghosting", handler.CheckGhosting).Methods("GET")
	api.HandleFunc("/matches/{id:[0-9]+}/compatibility", handler.GetCompatibility).Methods("GET")
}
