package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MasterofGames77/game-ai-assistant/pipeline"
)

type handlers struct {
	deps      Deps
	startedAt time.Time
}

// handleHealthz answers liveness probes by checking database connectivity.
func (h *handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.deps.DB != nil {
		if err := h.deps.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statusResponse struct {
	Status        string         `json:"status"`
	Version       string         `json:"version,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Channels      []string       `json:"channels"`
	Pipeline      pipeline.Stats `json:"pipeline"`
}

// handleStatus returns a lightweight runtime summary for dashboards.
func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:        "ok",
		Version:       h.deps.Version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Channels:      h.deps.Channels,
	}
	if h.deps.Pipeline != nil {
		resp.Pipeline = h.deps.Pipeline.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
