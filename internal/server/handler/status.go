package handler

import (
	"net/http"

	"github.com/avetrov/gridbot/internal/engine"
)

// StatusSource reports a point-in-time view of the running engine.
type StatusSource interface {
	Snapshot() engine.Status
}

// StatusHandler serves the engine status for dashboards and monitoring.
type StatusHandler struct {
	mode   string
	source StatusSource
}

// NewStatusHandler creates a StatusHandler for the given run mode and engine.
func NewStatusHandler(mode string, source StatusSource) *StatusHandler {
	return &StatusHandler{mode: mode, source: source}
}

// GetStatus responds with the run mode and the current engine snapshot.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":   h.mode,
		"engine": h.source.Snapshot(),
	})
}
