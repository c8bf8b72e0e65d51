package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/greenpulse-data/flow.report/internal/api"
	"github.com/greenpulse-data/flow.report/internal/config"
	"github.com/greenpulse-data/flow.report/internal/counting"
	"github.com/greenpulse-data/flow.report/internal/db"
	"github.com/greenpulse-data/flow.report/internal/detmux"
	"github.com/greenpulse-data/flow.report/internal/report"
	"github.com/greenpulse-data/flow.report/internal/timeutil"
	"github.com/greenpulse-data/flow.report/internal/version"
)

var (
	devMode       = flag.Bool("dev", false, "Run in dev mode (replay fixtures instead of listening for a detector)")
	listen        = flag.String("listen", ":8080", "HTTP listen address")
	ingest        = flag.String("ingest", ":9000", "TCP listen address for the detector frame stream")
	dbFile        = flag.String("db", "flow.db", "SQLite database path")
	csvFile       = flag.String("csv", "traffic_flow_data.csv", "CSV report log path")
	configPath    = flag.String("config", "", "Tuning config JSON path (defaults applied when empty)")
	migrationsDir = flag.String("migrations", "migrations", "Database migrations directory")
)

// consoleSink mirrors each flush to the process log.
type consoleSink struct{}

func (consoleSink) WriteReport(ctx context.Context, rep counting.FlowReport) error {
	log.Printf("[%s] flow: %d vehicles | queue proxy: %d in frame | cumulative: %d",
		rep.Timestamp.Local().Format("2006-01-02 15:04:05"),
		rep.IntervalTotal, rep.Occupancy, rep.CumulativeTotal)
	return nil
}

// handleLine parses one detector stream line and feeds it through the
// counting pipeline.
func handleLine(ctx context.Context, pipeline *counting.Pipeline, line string) error {
	frame, err := detmux.ParseFrame(line)
	if err != nil {
		return err
	}
	pipeline.ProcessFrame(ctx, frame)
	return nil
}

func loadTuning(path string) *config.TuningConfig {
	if path != "" {
		cfg, err := config.LoadTuningConfig(path)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
		return cfg
	}
	if cfg, err := config.LoadTuningConfig(config.DefaultConfigPath); err == nil {
		return cfg
	}
	return config.EmptyTuningConfig()
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := loadTuning(*configPath)
	runID := uuid.NewString()
	log.Printf("flow.report %s (run %s): logging to %s every %s",
		version.Version, runID, *csvFile, tuning.GetReportInterval())

	var m detmux.DetMuxInterface
	if *devMode {
		data, err := os.ReadFile("fixtures.ndjson")
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		m = detmux.NewMockDetMux(data)
	} else {
		source, err := detmux.NewTCPSource(*ingest)
		if err != nil {
			log.Fatalf("failed to listen for detector stream: %v", err)
		}
		log.Printf("awaiting detector stream on %s", source.Addr())
		m = detmux.New(source)
	}
	defer m.Close()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	csvSink, err := report.NewCSVSink(*csvFile)
	if err != nil {
		log.Fatalf("Failed to create CSV sink: %v", err)
	}

	clock := timeutil.RealClock{}
	agg := counting.NewFlowAggregator(counting.OccupancyMode(tuning.GetOccupancyMode()))
	sched := counting.NewReportScheduler(agg, clock, tuning.GetReportInterval(), runID,
		&db.ReportSink{DB: database}, csvSink, consoleSink{})
	pipeline := counting.NewPipeline(counting.PipelineConfig{
		Zone: counting.CrossingZone{
			LineY:      tuning.GetLineY(),
			Offset:     tuning.GetOffset(),
			MotoOffset: tuning.GetMotoOffset(),
			MinTravel:  tuning.GetMinTravel(),
			MotoTravel: tuning.GetMotoTravel(),
		},
		FrameStride: tuning.GetFrameStride(),
		TrackMaxAge: tuning.GetTrackMaxAge(),
	}, agg, sched, clock)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the detector stream
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor detector stream: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to the frame stream and feed the counting pipeline
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := m.Subscribe()
		defer m.Unsubscribe(id)
		for {
			select {
			case line, ok := <-c:
				if !ok {
					log.Printf("subscribe routine terminated (stream closed)")
					return
				}
				if err := handleLine(ctx, pipeline, line); err != nil {
					log.Printf("error handling frame: %v", err)
				}
			case <-ctx.Done():
				log.Printf("subscribe routine terminated")
				return
			}
		}
	}()

	// keepalive ticks so empty intervals still flush their zero-count
	// reports when no frames are arriving
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := clock.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				pipeline.Tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode
		// or over Tailscale)
		database.AttachAdminRoutes(mux)
		m.AttachAdminRoutes(mux)

		apiMux := api.NewServer(database, agg, pipeline, tuning, runID).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
