package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetrov/gridbot/internal/engine"
)

type stubStatusSource struct {
	status engine.Status
}

func (s *stubStatusSource) Snapshot() engine.Status { return s.status }

func TestStatusReportsModeAndEngine(t *testing.T) {
	source := &stubStatusSource{status: engine.Status{
		Running:      true,
		Prices:       map[string]float64{"BTCUSDT": 64250.5},
		ActiveOrders: 2,
		FreeAccounts: 1,
	}}
	h := NewStatusHandler("full", source)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.GetStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Mode   string        `json:"mode"`
		Engine engine.Status `json:"engine"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "full", resp.Mode)
	assert.True(t, resp.Engine.Running)
	assert.Equal(t, 2, resp.Engine.ActiveOrders)
	assert.InDelta(t, 64250.5, resp.Engine.Prices["BTCUSDT"], 1e-9)
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
