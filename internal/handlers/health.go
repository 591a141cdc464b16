package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jason-s-yu/arena/internal/engine"
)

type healthResponse struct {
	Status    string          `json:"status"`
	Connected int             `json:"connected"`
	Engine    engine.Snapshot `json:"engine"`
}

// HealthHandler reports engine table sizes. A stopped or wedged engine loop
// answers 503.
func HealthHandler(hub *Hub, eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		snap, err := eng.Stats(ctx)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Connected: hub.Connected()})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Connected: hub.Connected(), Engine: snap})
	}
}
