package gateway

import (
	"encoding/json"
	"net/http"

	"feedwire/internal/transport"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"` // "ok" or "degraded"
	Messages int    `json:"messages"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 once a transport has been selected, 503 while detection is
// still in flight.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.store != nil {
			resp.Messages = g.store.Len()
		}
		if g.negotiator != nil && g.negotiator.State() == transport.StateDetecting {
			resp.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
