package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime    float64 `json:"uptime_seconds"`
	Transport string  `json:"transport"`
	Uploads   string  `json:"uploads"`
	Messages  int     `json:"messages"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime: g.now().Sub(g.startedAt).Truncate(time.Second).Seconds(),
		}

		if g.negotiator != nil {
			resp.Transport = g.negotiator.State().String()
		}
		if g.capability != nil {
			resp.Uploads = g.capability.State().String()
		}
		if g.store != nil {
			resp.Messages = g.store.Len()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// handleReset returns an http.HandlerFunc for POST /transport/reset. It
// rewinds the negotiator to detection so both channels race again.
func (g *Gateway) handleReset() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.negotiator == nil {
			http.Error(w, "no negotiator", http.StatusServiceUnavailable)
			return
		}
		g.logger.Info("transport reset requested via gateway")
		g.negotiator.Reset()
		w.WriteHeader(http.StatusAccepted)
	}
}
