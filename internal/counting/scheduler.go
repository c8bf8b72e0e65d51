package counting

import (
	"context"
	"time"

	"github.com/greenpulse-data/flow.report/internal/monitoring"
	"github.com/greenpulse-data/flow.report/internal/timeutil"
)

// FlowReport is one flush record: the interval counters frozen at flush
// time plus the session-cumulative total and the occupancy proxy.
type FlowReport struct {
	Timestamp       time.Time  `json:"timestamp"`
	RunID           string     `json:"run_id"`
	Interval        FlowCounts `json:"interval"`
	IntervalTotal   int64      `json:"interval_total"`
	CumulativeTotal int64      `json:"cumulative_total"`
	Occupancy       int        `json:"occupancy"`
}

// ReportSink receives flushed reports. Sinks are external collaborators
// (database, CSV file, console); their failures are logged and do not
// affect counting.
type ReportSink interface {
	WriteReport(ctx context.Context, rep FlowReport) error
}

// ReportScheduler flushes the aggregator's interval counters on a fixed
// wall-clock interval. It is polled by the frame loop rather than driven
// by its own goroutine, so a flush can never race a counter increment:
// both run on the pipeline's critical section.
//
// One flush occurs per due tick. If the driver stalls across several
// intervals, freshness is re-measured from now, so missed intervals are
// not backfilled.
type ReportScheduler struct {
	agg      *FlowAggregator
	clock    timeutil.Clock
	interval time.Duration
	runID    string
	sinks    []ReportSink

	lastFlush time.Time
}

// NewReportScheduler creates a scheduler. The first interval is measured
// from construction time.
func NewReportScheduler(agg *FlowAggregator, clock timeutil.Clock, interval time.Duration, runID string, sinks ...ReportSink) *ReportScheduler {
	return &ReportScheduler{
		agg:       agg,
		clock:     clock,
		interval:  interval,
		runID:     runID,
		sinks:     sinks,
		lastFlush: clock.Now(),
	}
}

// Interval returns the configured flush period.
func (s *ReportScheduler) Interval() time.Duration {
	return s.interval
}

// Tick checks whether a flush is due and performs it. Returns the
// emitted report, or nil when the interval has not yet elapsed.
func (s *ReportScheduler) Tick(ctx context.Context) *FlowReport {
	if s.clock.Since(s.lastFlush) < s.interval {
		return nil
	}
	return s.flush(ctx)
}

// FlushNow snapshots and emits a report immediately, regardless of the
// interval. Intended for operator use; shutdown deliberately discards
// pending interval data instead of calling this.
func (s *ReportScheduler) FlushNow(ctx context.Context) *FlowReport {
	return s.flush(ctx)
}

func (s *ReportScheduler) flush(ctx context.Context) *FlowReport {
	now := s.clock.Now()
	snap := s.agg.SnapshotAndResetInterval()

	rep := &FlowReport{
		Timestamp:       now,
		RunID:           s.runID,
		Interval:        snap.Interval,
		IntervalTotal:   snap.IntervalTotal,
		CumulativeTotal: snap.CumulativeTotal,
		Occupancy:       snap.Occupancy,
	}

	for _, sink := range s.sinks {
		if err := sink.WriteReport(ctx, *rep); err != nil {
			monitoring.Logf("report sink %T failed: %v", sink, err)
		}
	}

	s.lastFlush = now
	return rep
}
