package counting

import (
	"context"
	"sync"
	"time"

	"github.com/greenpulse-data/flow.report/internal/monitoring"
	"github.com/greenpulse-data/flow.report/internal/timeutil"
)

// PipelineConfig carries the session-fixed counting parameters.
type PipelineConfig struct {
	Zone CrossingZone

	// FrameStride processes every Nth frame. Values below 1 are
	// treated as 1. The stride changes the apparent per-frame travel
	// distance, not the counting invariants.
	FrameStride int

	// TrackMaxAge evicts track state unseen for this long, swept after
	// each flush. Zero keeps state for the whole session.
	TrackMaxAge time.Duration
}

// Pipeline is the counting stage: it runs the whole
// store → detector → aggregator → scheduler chain as a single serialized
// critical section per frame. Two detections for the same track id must
// never be evaluated concurrently, and a flush must never interleave
// with an increment; one mutex covers both.
type Pipeline struct {
	mu       sync.Mutex
	store    *TrackStateStore
	detector *CrossingDetector
	agg      *FlowAggregator
	sched    *ReportScheduler
	clock    timeutil.Clock

	stride      int
	trackMaxAge time.Duration
	framesSeen  int64
	processed   int64
}

// NewPipeline wires the counting components together.
func NewPipeline(cfg PipelineConfig, agg *FlowAggregator, sched *ReportScheduler, clock timeutil.Clock) *Pipeline {
	stride := cfg.FrameStride
	if stride < 1 {
		stride = 1
	}
	store := NewTrackStateStore()
	return &Pipeline{
		store:       store,
		detector:    NewCrossingDetector(store, cfg.Zone),
		agg:         agg,
		sched:       sched,
		clock:       clock,
		stride:      stride,
		trackMaxAge: cfg.TrackMaxAge,
	}
}

// Store exposes the track state store (stats endpoints, tests).
func (p *Pipeline) Store() *TrackStateStore { return p.store }

// Zone returns the configured crossing zone.
func (p *Pipeline) Zone() CrossingZone { return p.detector.Zone() }

// ProcessFrame feeds one detection frame through the counting stage and
// returns the crossing events that fired. Frames skipped by the sampling
// stride touch no state at all.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame Frame) []CrossingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.framesSeen++
	if p.framesSeen%int64(p.stride) != 0 {
		return nil
	}
	p.processed++

	nowNanos := p.clock.Now().UnixNano()
	var events []CrossingEvent
	for _, det := range frame.Detections {
		if ev := p.detector.Evaluate(det, nowNanos); ev != nil {
			p.agg.OnEvent(*ev)
			events = append(events, *ev)
		}
	}
	p.agg.SetOccupancy(len(frame.Detections))

	p.tickLocked(ctx)
	return events
}

// Tick drives the scheduler when no frames are arriving, so empty
// intervals still produce their zero-count reports. The driver calls
// this on a slow keepalive cadence.
func (p *Pipeline) Tick(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickLocked(ctx)
}

func (p *Pipeline) tickLocked(ctx context.Context) {
	if rep := p.sched.Tick(ctx); rep != nil {
		if evicted := p.store.EvictStale(p.clock.Now().UnixNano(), p.trackMaxAge); evicted > 0 {
			monitoring.Logf("evicted %d stale tracks (%d live)", evicted, p.store.Len())
		}
	}
}

// FramesProcessed returns how many frames passed the sampling stride.
func (p *Pipeline) FramesProcessed() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed
}
