package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"umap-replay/src/cluster"
	"umap-replay/src/logger"
	"umap-replay/src/models"
	"umap-replay/src/playback"
	"umap-replay/src/timecache"
	"umap-replay/src/timerange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fake Backend
// -----------------------------------------------------------------------------

type fakeBackend struct {
	steps map[string]int // time label -> step for reverse lookups
}

func (f *fakeBackend) ListInstruments(ctx context.Context) ([]string, error) {
	return []string{"000001.SZ", "600000.SH"}, nil
}

func (f *fakeBackend) InstrumentInfo(ctx context.Context, stockCode string) (*models.MInstrumentInfo, error) {
	return &models.MInstrumentInfo{StockCode: stockCode, TotalTimeSteps: 240}, nil
}

func (f *fakeBackend) LookupTime(ctx context.Context, timeStep int) (string, error) {
	return fmt.Sprintf("2019-01-02 09:%02d:00", 30+timeStep%25), nil
}

func (f *fakeBackend) LookupTimeStep(ctx context.Context, timeLabel string) (int, error) {
	step, ok := f.steps[timeLabel]
	if !ok {
		return 0, errors.New("time not covered")
	}
	return step, nil
}

func (f *fakeBackend) FetchCoordinates(ctx context.Context, stockCodes []string, timeStep int) (map[string]models.MCoordinate, error) {
	coords := make(map[string]models.MCoordinate, len(stockCodes))
	for i, code := range stockCodes {
		coords[code] = models.MCoordinate{Umap1: float64(i), Umap2: float64(timeStep)}
	}
	return coords, nil
}

func (f *fakeBackend) FetchClusteredCoordinates(ctx context.Context, stockCodes []string, timeStep int) (map[string]models.MCoordinate, map[string]int, error) {
	coords, _ := f.FetchCoordinates(ctx, stockCodes, timeStep)
	info := make(map[string]int, len(stockCodes))
	for i, code := range stockCodes {
		info[code] = i % 2
	}
	return coords, info, nil
}

// -----------------------------------------------------------------------------

// newTestServer wires the full control surface with a fake backend and a slow
// tick so the cursor never moves on its own during a test.
func newTestServer(t *testing.T) *ReplayServer {
	t.Helper()

	cfg := &models.MConfig{
		Name:     "umap-replay-test",
		Host:     "127.0.0.1",
		Port:     8090,
		LogLevel: "INFO",
	}
	cfg.Playback.TickIntervalMS = 60_000
	cfg.Playback.HistoryLimit = 100
	cfg.Backend.FetchTimeout = 1

	backend := &fakeBackend{steps: map[string]int{
		"2019-01-02 09:31": 1,
		"2019-01-03 09:31": 51,
	}}

	log := logger.NewLogger("INFO", "Server-test")
	clusters := cluster.NewStore(backend, log)
	times := timecache.NewTimeCache(backend, log)

	srv := NewReplayServer(cfg, log, backend, clusters, nil, nil, times, nil)

	scheduler := playback.NewScheduler(cfg, backend, clusters, times, srv, log)
	srv.Scheduler = scheduler
	srv.Resolver = timerange.NewResolver(backend, times, scheduler, log)
	clusters.OnInvalidate(scheduler.HandleInvalidate)

	go srv.handleWebsockets()

	return srv
}

// waitForFrame polls until the hub has absorbed a published frame.
func waitForFrame(t *testing.T, srv *ReplayServer) *models.MPlaybackFrame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if frame := srv.LatestFrame(); frame != nil {
			return frame
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("no frame reached the hub")
	return nil
}

// -----------------------------------------------------------------------------

func doJSON(srv *ReplayServer, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "stopped", body["state"])
}

// -----------------------------------------------------------------------------

func TestConfigEndpointExposesPalette(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	palette, ok := body["palette"].([]interface{})
	require.True(t, ok)
	assert.Len(t, palette, len(cluster.Palette))
}

// -----------------------------------------------------------------------------

func TestInstrumentsPassthrough(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, http.MethodGet, "/api/instruments", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(2), body["total_count"])
}

// -----------------------------------------------------------------------------

func TestPlayWithoutAssignmentConflicts(t *testing.T) {
	srv := newTestServer(t)
	srv.Scheduler.SetInstruments([]string{"000001.SZ"})

	w := doJSON(srv, http.MethodPost, "/api/playback/play", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

// -----------------------------------------------------------------------------

func TestClusterGenerateThenPlaybackLifecycle(t *testing.T) {
	srv := newTestServer(t)

	step := 0
	w := doJSON(srv, http.MethodPost, "/api/clusters/generate", map[string]interface{}{
		"stock_codes": []string{"000001.SZ", "600000.SH"},
		"time_step":   step,
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.NotEmpty(t, body["colors"])
	assert.NotEmpty(t, body["coordinates"])

	// The baseline frame was published for subscribers
	frame := waitForFrame(t, srv)
	assert.Equal(t, step, frame.TimeStep)
	assert.Equal(t, "FRAME", frame.Type)

	w = doJSON(srv, http.MethodPost, "/api/playback/play", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "playing", decode(t, w)["state"])

	w = doJSON(srv, http.MethodPost, "/api/playback/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paused", decode(t, w)["state"])

	w = doJSON(srv, http.MethodPost, "/api/playback/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stopped", decode(t, w)["state"])
}

// -----------------------------------------------------------------------------

func TestSelectInstrumentsInvalidatesAssignment(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, http.MethodPost, "/api/clusters/generate", map[string]interface{}{
		"stock_codes": []string{"000001.SZ"},
		"time_step":   0,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, srv.Clusters.Active())

	w = doJSON(srv, http.MethodPost, "/api/instruments/select", map[string]interface{}{
		"stock_codes": []string{"600000.SH"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	assert.False(t, srv.Clusters.Active())
	assert.Equal(t, "stopped", decode(t, w)["state"])
}

// -----------------------------------------------------------------------------

func TestRangeByStepBounds(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, http.MethodPost, "/api/playback/range", map[string]interface{}{
		"start": 5, "end": 20,
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(5), body["start"])
	assert.Equal(t, float64(20), body["end"])
	assert.NotEmpty(t, body["start_label"])

	start, end := srv.Scheduler.Range()
	assert.Equal(t, 5, start)
	assert.Equal(t, 20, end)
}

// -----------------------------------------------------------------------------

func TestRangeByTimeBounds(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, http.MethodPost, "/api/playback/range", map[string]interface{}{
		"start_time": "2019-01-02 09:31",
		"end_time":   "2019-01-03 09:31",
	})
	require.Equal(t, http.StatusOK, w.Code)

	start, end := srv.Scheduler.Range()
	assert.Equal(t, 1, start)
	assert.Equal(t, 51, end)
}

// -----------------------------------------------------------------------------

func TestRangeByInvertedTimeBoundsRejected(t *testing.T) {
	srv := newTestServer(t)
	srv.Scheduler.SetRange(5, 10)

	w := doJSON(srv, http.MethodPost, "/api/playback/range", map[string]interface{}{
		"start_time": "2019-01-03 09:31",
		"end_time":   "2019-01-02 09:31",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	start, end := srv.Scheduler.Range()
	assert.Equal(t, 5, start)
	assert.Equal(t, 10, end)
}

// -----------------------------------------------------------------------------

func TestSkipToggle(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, http.MethodPost, "/api/playback/skip", map[string]interface{}{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, srv.Scheduler.SkipNonTrading())
}

// -----------------------------------------------------------------------------

func TestHistoryDisabledWithoutStore(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, http.MethodGet, "/api/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// -----------------------------------------------------------------------------

func TestCalendarDateValidation(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(srv, http.MethodGet, "/api/calendar/not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(srv, http.MethodGet, "/api/calendar/2019-01-05?instrument=000001.SZ", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["trading_day"])
}
