package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aci-dispatcher/internal/dispatch"
	"aci-dispatcher/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStats dispatch.Stats

func (s staticStats) Snapshot() dispatch.Stats { return dispatch.Stats(s) }

func newTestServer(t *testing.T, stats dispatch.Stats) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewStatusHandler(staticStats(stats), "work", slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStatusHandler_Status(t *testing.T) {
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	srv := newTestServer(t, dispatch.Stats{
		State:          dispatch.StateDispatching,
		Cycles:         9,
		Received:       3,
		Dispatched:     2,
		LastUnit:       "a1b2c3d",
		LastDispatchAt: at,
		Errors:         map[domain.ErrorKind]uint64{domain.ErrorKindDecode: 1},
	})

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "DISPATCHING", body.State)
	assert.Equal(t, "work", body.Queue)
	assert.Equal(t, uint64(9), body.Cycles)
	assert.Equal(t, uint64(2), body.Dispatched)
	assert.Equal(t, "a1b2c3d", body.LastUnit)
	require.NotNil(t, body.LastDispatchAt)
	assert.True(t, at.Equal(*body.LastDispatchAt))
	assert.Equal(t, map[string]uint64{"decode": 1}, body.Errors)
}

func TestStatusHandler_StatusRejectsPost(t *testing.T) {
	srv := newTestServer(t, dispatch.Stats{State: dispatch.StatePolling})

	resp, err := http.Post(srv.URL+"/status", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatusHandler_Healthz(t *testing.T) {
	tests := []struct {
		state dispatch.State
		want  int
	}{
		{dispatch.StatePolling, http.StatusOK},
		{dispatch.StateDispatching, http.StatusOK},
		{dispatch.StateStopped, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			srv := newTestServer(t, dispatch.Stats{State: tt.state})
			resp, err := http.Get(srv.URL + "/healthz")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
