package counting

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// OccupancyMode selects which occupancy value a snapshot reports.
type OccupancyMode string

const (
	// OccupancyLatest reports the detection count of the most recently
	// processed frame (the source behavior).
	OccupancyLatest OccupancyMode = "latest"
	// OccupancyMean reports the mean per-frame detection count over the
	// interval.
	OccupancyMean OccupancyMode = "mean"
	// OccupancyPeak reports the highest per-frame detection count seen
	// during the interval.
	OccupancyPeak OccupancyMode = "peak"
)

// FlowCounts maps vehicle class to a non-negative event count.
type FlowCounts map[VehicleClass]int64

// Total sums the counts across all classes.
func (fc FlowCounts) Total() int64 {
	var total int64
	for _, n := range fc {
		total += n
	}
	return total
}

func (fc FlowCounts) clone() FlowCounts {
	out := make(FlowCounts, len(fc))
	for c, n := range fc {
		out[c] = n
	}
	return out
}

func zeroCounts() FlowCounts {
	fc := make(FlowCounts, len(Classes()))
	for _, c := range Classes() {
		fc[c] = 0
	}
	return fc
}

// IntervalSnapshot is the result of an atomic snapshot-and-reset of the
// interval counters.
type IntervalSnapshot struct {
	Interval        FlowCounts
	IntervalTotal   int64
	CumulativeTotal int64
	Occupancy       int
}

// FlowAggregator accumulates crossing events into cumulative and
// interval-windowed per-class counters and records the in-frame
// occupancy proxy. All operations take the aggregator mutex, so a
// snapshot never observes a counter mid-increment and no increment can
// land between a snapshot's read and its reset.
type FlowAggregator struct {
	mu         sync.Mutex
	cumulative FlowCounts
	interval   FlowCounts
	occupancy  int
	samples    []float64
	mode       OccupancyMode
}

// NewFlowAggregator returns an aggregator with every enumerated class
// zeroed. mode defaults to OccupancyLatest if empty.
func NewFlowAggregator(mode OccupancyMode) *FlowAggregator {
	if mode == "" {
		mode = OccupancyLatest
	}
	return &FlowAggregator{
		cumulative: zeroCounts(),
		interval:   zeroCounts(),
		mode:       mode,
	}
}

// OnEvent increments both the cumulative and interval counter for the
// event's class.
func (a *FlowAggregator) OnEvent(ev CrossingEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cumulative[ev.Class]++
	a.interval[ev.Class]++
}

// SetOccupancy records the current frame's detection count. Last write
// wins within an interval; each call also contributes a sample for the
// mean/peak occupancy modes.
func (a *FlowAggregator) SetOccupancy(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.occupancy = n
	a.samples = append(a.samples, float64(n))
}

// SnapshotAndResetInterval atomically reads the interval counters,
// cumulative total and occupancy, then zeroes every interval counter and
// clears the interval's occupancy samples. Cumulative counters are
// unchanged.
func (a *FlowAggregator) SnapshotAndResetInterval() IntervalSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := IntervalSnapshot{
		Interval:        a.interval.clone(),
		CumulativeTotal: a.cumulative.Total(),
		Occupancy:       a.intervalOccupancyLocked(),
	}
	snap.IntervalTotal = snap.Interval.Total()

	a.interval = zeroCounts()
	a.samples = a.samples[:0]
	return snap
}

func (a *FlowAggregator) intervalOccupancyLocked() int {
	if len(a.samples) == 0 || a.mode == OccupancyLatest {
		return a.occupancy
	}
	switch a.mode {
	case OccupancyMean:
		return int(math.Round(stat.Mean(a.samples, nil)))
	case OccupancyPeak:
		return int(floats.Max(a.samples))
	}
	return a.occupancy
}

// Live returns copies of the current counters for the stats API without
// resetting anything.
func (a *FlowAggregator) Live() (cumulative, interval FlowCounts, occupancy int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cumulative.clone(), a.interval.clone(), a.occupancy
}
