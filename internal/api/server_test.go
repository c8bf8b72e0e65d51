package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenpulse-data/flow.report/internal/config"
	"github.com/greenpulse-data/flow.report/internal/counting"
	"github.com/greenpulse-data/flow.report/internal/db"
	"github.com/greenpulse-data/flow.report/internal/timeutil"
)

type testHarness struct {
	db       *db.DB
	agg      *counting.FlowAggregator
	pipeline *counting.Pipeline
	clock    *timeutil.MockClock
	mux      *http.ServeMux
}

func newTestServer(t *testing.T) *testHarness {
	t.Helper()

	database, err := db.NewDB(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp("../../migrations"))

	clock := timeutil.NewMockClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	agg := counting.NewFlowAggregator(counting.OccupancyLatest)
	sched := counting.NewReportScheduler(agg, clock, 30*time.Second, "run-api",
		&db.ReportSink{DB: database})
	pipeline := counting.NewPipeline(counting.PipelineConfig{
		Zone: counting.CrossingZone{
			LineY: 500, Offset: 15, MotoOffset: 25, MinTravel: 15, MotoTravel: 8,
		},
		FrameStride: 1,
	}, agg, sched, clock)

	srv := NewServer(database, agg, pipeline, config.EmptyTuningConfig(), "run-api")
	return &testHarness{
		db:       database,
		agg:      agg,
		pipeline: pipeline,
		clock:    clock,
		mux:      srv.ServeMux(),
	}
}

func (h *testHarness) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

// crossCar drives one car through the counting zone.
func (h *testHarness) crossCar(t *testing.T, trackID int64) {
	t.Helper()
	ctx := context.Background()
	for i, y := range []float64{470, 498, 520} {
		h.pipeline.ProcessFrame(ctx, counting.Frame{
			Number: int64(i + 1),
			Detections: []counting.Detection{{
				TrackID: trackID,
				Class:   counting.ClassCar,
				Box:     counting.Rect{X1: 100, Y1: y - 120, X2: 220, Y2: y},
			}},
		})
	}
}

func TestFlowStats(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)
	h.crossCar(t, 1)

	rec := h.get(t, "/flow_stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var stats struct {
		RunID           string           `json:"run_id"`
		Cumulative      map[string]int64 `json:"cumulative"`
		CumulativeTotal int64            `json:"cumulative_total"`
		IntervalTotal   int64            `json:"interval_total"`
		Occupancy       int              `json:"occupancy"`
		ActiveTracks    int              `json:"active_tracks"`
		FramesProcessed int64            `json:"frames_processed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	assert.Equal(t, "run-api", stats.RunID)
	assert.Equal(t, int64(1), stats.Cumulative["car"])
	assert.Equal(t, int64(1), stats.CumulativeTotal)
	assert.Equal(t, int64(1), stats.IntervalTotal)
	assert.Equal(t, 1, stats.Occupancy)
	assert.Equal(t, 1, stats.ActiveTracks)
	assert.Equal(t, int64(3), stats.FramesProcessed)
}

func TestFlowStatsMethodNotAllowed(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/flow_stats", nil)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListReports(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)

	// empty database still returns a JSON array
	rec := h.get(t, "/reports")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	// drive a crossing through a flush so a row lands
	h.crossCar(t, 1)
	h.clock.Advance(30 * time.Second)
	h.pipeline.Tick(context.Background())

	rec = h.get(t, "/reports")
	require.Equal(t, http.StatusOK, rec.Code)

	var reports []db.FlowReportRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "run-api", reports[0].RunID)
	assert.Equal(t, int64(1), reports[0].Cars)
	assert.Equal(t, int64(1), reports[0].IntervalTotal)
}

func TestListReportsInvalidLimit(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)
	for _, q := range []string{"limit=0", "limit=-5", "limit=abc", "limit=99999"} {
		rec := h.get(t, "/reports?"+q)
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "query %q", q)
	}
}

func TestRunTotals(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)
	h.crossCar(t, 1)
	h.clock.Advance(30 * time.Second)
	h.pipeline.Tick(context.Background())
	h.crossCar(t, 2)
	h.clock.Advance(30 * time.Second)
	h.pipeline.Tick(context.Background())

	rec := h.get(t, "/totals")
	require.Equal(t, http.StatusOK, rec.Code)

	var totals db.RunTotals
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &totals))
	assert.Equal(t, "run-api", totals.RunID)
	assert.Equal(t, int64(2), totals.Flushes)
	assert.Equal(t, int64(2), totals.IntervalSum)
	assert.Equal(t, int64(2), totals.LatestCumulative)
}

func TestShowConfig(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)
	rec := h.get(t, "/config")
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 500.0, cfg["line_y"])
	assert.Equal(t, 15.0, cfg["offset"])
	assert.Equal(t, 25.0, cfg["moto_offset"])
	assert.Equal(t, "30s", cfg["report_interval"])
	assert.Equal(t, "latest", cfg["occupancy_mode"])
}

func TestChartsWithNoReports(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, h.get(t, "/charts/flow").Code)
	assert.Equal(t, http.StatusNotFound, h.get(t, "/charts/flow.png").Code)
}

func TestChartsRender(t *testing.T) {
	t.Parallel()

	h := newTestServer(t)
	h.crossCar(t, 1)
	h.clock.Advance(30 * time.Second)
	h.pipeline.Tick(context.Background())
	h.clock.Advance(30 * time.Second)
	h.pipeline.Tick(context.Background())

	rec := h.get(t, "/charts/flow")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")

	rec = h.get(t, "/charts/flow.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	// PNG magic bytes
	body := rec.Body.Bytes()
	require.Greater(t, len(body), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, body[:4])
}

func TestStatusCodeColor(t *testing.T) {
	t.Parallel()

	assert.Contains(t, statusCodeColor(200), "200")
	assert.Contains(t, statusCodeColor(301), "301")
	assert.Contains(t, statusCodeColor(404), "404")
	assert.Contains(t, statusCodeColor(500), "500")
	assert.Equal(t, "102", statusCodeColor(102))
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	t.Parallel()

	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
