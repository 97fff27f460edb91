// internal/api/routes/routes_test.go
package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fawad-mazhar/helios/internal/config"
	"github.com/fawad-mazhar/helios/internal/lifecycle"
	"github.com/fawad-mazhar/helios/internal/models"
	"github.com/fawad-mazhar/helios/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()

	reg := registry.NewRegistry()
	controller := lifecycle.NewController(reg, 2, time.Minute, time.Minute)
	router := SetupRouter(&config.Config{}, reg, controller, nil, nil)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, reg
}

func getSummary(t *testing.T, srv *httptest.Server) models.StatusReport {
	t.Helper()

	resp, err := http.Get(srv.URL + "/api/v1/summary")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report models.StatusReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	return report
}

func TestSummaryEndpoint(t *testing.T) {
	srv, reg := newTestServer(t)

	reg.BeginBatch(3)
	for _, port := range []int{9001, 9002, 9003} {
		reg.Create(port).Begin()
	}
	run, _ := reg.Get(9002)
	run.Pause()

	report := getSummary(t, srv)
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Running)
	assert.Equal(t, 1, report.Summary.Paused)
	assert.Equal(t, models.RunStatusPaused, report.Sims["9002"].Status)
}

func TestPauseAllEndpoint(t *testing.T) {
	srv, reg := newTestServer(t)

	reg.BeginBatch(2)
	reg.Create(9001).Begin()
	reg.Create(9002).Begin()

	resp, err := http.Post(srv.URL+"/pause_all", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	report := getSummary(t, srv)
	assert.Equal(t, 0, report.Summary.Running)
	assert.Equal(t, 2, report.Summary.Paused)
}

func TestEndAllEndpoint(t *testing.T) {
	srv, reg := newTestServer(t)

	reg.BeginBatch(2)
	reg.Create(9001).Begin()
	paused := reg.Create(9002)
	paused.Begin()
	paused.Pause()

	resp, err := http.Post(srv.URL+"/end_all", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	report := getSummary(t, srv)
	assert.Equal(t, 0, report.Summary.Running)
	assert.Equal(t, 0, report.Summary.Paused)
	assert.True(t, reg.Aborted())
}

func TestPerRunCommandEndpoints(t *testing.T) {
	srv, reg := newTestServer(t)

	run := reg.Create(9001)
	run.Begin()

	resp, err := http.Get(srv.URL + "/pause_sim/9001")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.RunStatusPaused, run.Status())

	resp, err = http.Get(srv.URL + "/start_sim/9001")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, models.RunStatusRunning, run.Status())

	resp, err = http.Get(srv.URL + "/end_sim/9001")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, models.RunStatusEnded, run.Status())
}

func TestCommandOnUnknownPortIsNoOp(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/pause_sim/55555")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCommandRejectsBadPort(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/pause_sim/notaport")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunDetailEndpoint(t *testing.T) {
	srv, reg := newTestServer(t)

	run := reg.Create(9001)
	run.Begin()
	run.Checkpoint(12.5)

	resp, err := http.Get(srv.URL + "/api/v1/runs/9001")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state models.RunState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, 9001, state.Port)
	assert.Equal(t, 12.5, state.SimTime)

	resp, err = http.Get(srv.URL + "/api/v1/runs/55555")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchSimServesLiveResult(t *testing.T) {
	srv, reg := newTestServer(t)

	run := reg.Create(9001)
	run.Begin()
	run.Finish([]byte(`{"t": 99}`), nil)

	resp, err := http.Get(srv.URL + "/fetch_sim/9001")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"t": 99}`, string(body))
}

func TestFetchSimUnknownPort(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/fetch_sim/55555")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestDashboardPage(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "/api/v1/summary")
}
