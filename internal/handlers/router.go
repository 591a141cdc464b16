package handlers

import (
	"net/http"

	"github.com/jason-s-yu/arena/internal/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter mounts every endpoint behind the request logger.
func NewRouter(logger *logrus.Logger, hub *Hub, eng Engine, users *UserHandlers) http.Handler {
	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("POST /user/create", users.Create)
	mux.HandleFunc("POST /user/login", users.Login)

	mux.HandleFunc("GET /healthz", HealthHandler(hub, eng))

	// matchmaking websocket
	mux.HandleFunc("GET /ws", MatchmakingWSHandler(logger, hub, eng))

	return middleware.LogMiddleware(logger)(mux)
}
