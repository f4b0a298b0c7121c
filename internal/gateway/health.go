package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string    `json:"status"` // "ok" or "degraded"
	Feeds     int       `json:"feeds"`
	LastCycle time.Time `json:"last_cycle"`
	Telegraph bool      `json:"telegraph"`
}

// handleHealth returns an http.HandlerFunc for GET /health. Reports
// degraded when the last poll cycle saw errors.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.status != nil {
			snap := g.status.Status()
			resp.Feeds = snap.Feeds
			resp.LastCycle = snap.LastCycleAt
			if snap.LastCycleErrors > 0 {
				resp.Status = "degraded"
			}
		}
		if g.telegraph != nil {
			resp.Telegraph = g.telegraph.Valid()
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Version string `json:"version"`
	Uptime  int64  `json:"uptime_seconds"`

	Feeds           int       `json:"feeds"`
	Delivered       int64     `json:"delivered"`
	LastCycleAt     time.Time `json:"last_cycle_at"`
	LastCycleErrors int       `json:"last_cycle_errors"`

	Subscribers int `json:"event_subscribers"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Version:     g.appCtx.Version,
			Uptime:      int64(time.Since(g.startedAt).Seconds()),
			Subscribers: g.hub.Len(),
		}

		if g.status != nil {
			snap := g.status.Status()
			resp.Feeds = snap.Feeds
			resp.Delivered = snap.Delivered
			resp.LastCycleAt = snap.LastCycleAt
			resp.LastCycleErrors = snap.LastCycleErrors
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
