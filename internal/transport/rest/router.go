package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"squizy/internal/config"
	"squizy/internal/service"
	"squizy/internal/transport/rest/handler"
	"squizy/internal/transport/rest/middleware"
	"squizy/internal/transport/ws"
)

// maxBodyBytes bounds PUT and PATCH bodies; a long generated game is well below it
const maxBodyBytes = 1 << 20

// Container holds all dependencies for the router
type Container struct {
	Config      *config.ServerConfig
	RoomService *service.RoomService
	WSHub       *ws.Hub
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	roomHandler := handler.NewRoomHandler(c.RoomService, c.Config.JoinBaseURL)
	wsHandler := ws.NewHandler(c.WSHub, service.NormalizeRoomCode)
	limiter := middleware.NewRateLimiter(c.Config.RateLimit, c.Config.RateLimitBurst, c.Config.TrustProxy)

	// CORS middleware (apply first)
	r.Use(middleware.CORS(c.Config.AllowedOrigins()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		rooms := c.WSHub.Connections()
		conns := 0
		for _, n := range rooms {
			conns += n
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "ok",
			"rooms":       len(rooms),
			"connections": conns,
		})
	}).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// WebSocket stays outside the limiter: one long-lived connection per client
	v1.HandleFunc("/ws/rooms/{code}", wsHandler.RoomWS).Methods("GET")

	api := v1.NewRoute().Subrouter()
	api.Use(limiter.Middleware)
	api.Use(middleware.MaxBodySize(maxBodyBytes))

	api.HandleFunc("/rooms/{code}", roomHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/rooms/{code}", roomHandler.Put).Methods("PUT", "OPTIONS")
	api.HandleFunc("/rooms/{code}", roomHandler.Patch).Methods("PATCH", "OPTIONS")
	api.HandleFunc("/rooms/{code}", roomHandler.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/rooms/{code}/leaderboard", roomHandler.Leaderboard).Methods("GET", "OPTIONS")
	api.HandleFunc("/rooms/{code}/qr", roomHandler.QRCode).Methods("GET", "OPTIONS")
	api.HandleFunc("/history", roomHandler.Recent).Methods("GET", "OPTIONS")
	api.HandleFunc("/history/{code}", roomHandler.History).Methods("GET", "OPTIONS")

	return r
}
