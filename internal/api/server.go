package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/greenpulse-data/flow.report/internal/config"
	"github.com/greenpulse-data/flow.report/internal/counting"
	"github.com/greenpulse-data/flow.report/internal/db"
	"github.com/greenpulse-data/flow.report/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes the live counters and persisted reports over HTTP.
type Server struct {
	db       *db.DB
	agg      *counting.FlowAggregator
	pipeline *counting.Pipeline
	tuning   *config.TuningConfig
	runID    string
}

func NewServer(database *db.DB, agg *counting.FlowAggregator, pipeline *counting.Pipeline, tuning *config.TuningConfig, runID string) *Server {
	return &Server{
		db:       database,
		agg:      agg,
		pipeline: pipeline,
		tuning:   tuning,
		runID:    runID,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/flow_stats", s.showFlowStats)
	mux.HandleFunc("/reports", s.listReports)
	mux.HandleFunc("/totals", s.showRunTotals)
	mux.HandleFunc("/config", s.showConfig)
	mux.HandleFunc("/charts/flow", s.renderFlowChart)
	mux.HandleFunc("/charts/flow.png", s.renderFlowPNG)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// flowStats is the live (unflushed) view of the counters.
type flowStats struct {
	RunID           string              `json:"run_id"`
	Cumulative      counting.FlowCounts `json:"cumulative"`
	CumulativeTotal int64               `json:"cumulative_total"`
	Interval        counting.FlowCounts `json:"interval"`
	IntervalTotal   int64               `json:"interval_total"`
	Occupancy       int                 `json:"occupancy"`
	ActiveTracks    int                 `json:"active_tracks"`
	FramesProcessed int64               `json:"frames_processed"`
	Version         string              `json:"version"`
}

func (s *Server) showFlowStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cumulative, interval, occupancy := s.agg.Live()
	s.writeJSON(w, flowStats{
		RunID:           s.runID,
		Cumulative:      cumulative,
		CumulativeTotal: cumulative.Total(),
		Interval:        interval,
		IntervalTotal:   interval.Total(),
		Occupancy:       occupancy,
		ActiveTracks:    s.pipeline.Store().Len(),
		FramesProcessed: s.pipeline.FramesProcessed(),
		Version:         version.Version,
	})
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 || v > 10000 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = v
	}

	reports, err := s.db.RecentFlowReports(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []db.FlowReportRow{}
	}
	s.writeJSON(w, reports)
}

func (s *Server) showRunTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		runID = s.runID
	}
	totals, err := s.db.FlowReportTotals(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, totals)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	zone := s.pipeline.Zone()
	s.writeJSON(w, map[string]interface{}{
		"line_y":          zone.LineY,
		"offset":          zone.Offset,
		"moto_offset":     zone.MotoOffset,
		"min_travel":      zone.MinTravel,
		"moto_travel":     zone.MotoTravel,
		"frame_stride":    s.tuning.GetFrameStride(),
		"report_interval": s.tuning.GetReportInterval().String(),
		"occupancy_mode":  s.tuning.GetOccupancyMode(),
		"track_max_age":   s.tuning.GetTrackMaxAge().String(),
	})
}
