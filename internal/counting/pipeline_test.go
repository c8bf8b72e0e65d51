package counting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenpulse-data/flow.report/internal/timeutil"
)

func newTestPipeline(t *testing.T, stride int) (*Pipeline, *FlowAggregator, *memorySink, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	agg := NewFlowAggregator(OccupancyLatest)
	sink := &memorySink{}
	sched := NewReportScheduler(agg, clock, 30*time.Second, "run-1", sink)
	p := NewPipeline(PipelineConfig{
		Zone:        testZone(),
		FrameStride: stride,
	}, agg, sched, clock)
	return p, agg, sink, clock
}

func frameOf(num int64, dets ...Detection) Frame {
	return Frame{Number: num, Detections: dets}
}

func TestProcessFrameCountsCrossings(t *testing.T) {
	t.Parallel()

	p, agg, _, _ := newTestPipeline(t, 1)
	ctx := context.Background()

	require.Empty(t, p.ProcessFrame(ctx, frameOf(1, carAt(1, 470))))
	events := p.ProcessFrame(ctx, frameOf(2, carAt(1, 498), motoAt(2, 440)))
	require.Len(t, events, 1)
	assert.Equal(t, ClassCar, events[0].Class)

	cumulative, _, occupancy := agg.Live()
	assert.Equal(t, int64(1), cumulative[ClassCar])
	assert.Equal(t, 2, occupancy)
	assert.Equal(t, 2, p.Store().Len())
	assert.Equal(t, int64(2), p.FramesProcessed())
}

func TestFrameStrideSkipsFramesEntirely(t *testing.T) {
	t.Parallel()

	p, agg, _, _ := newTestPipeline(t, 2)
	ctx := context.Background()

	// frame 1 is skipped (1 % 2 != 0): the car inside the band with real
	// travel behind it is never observed, so no track state exists
	events := p.ProcessFrame(ctx, frameOf(1, carAt(1, 470)))
	assert.Empty(t, events)
	assert.Equal(t, 0, p.Store().Len())
	assert.Equal(t, int64(0), p.FramesProcessed())
	_, _, occupancy := agg.Live()
	assert.Equal(t, 0, occupancy)

	// frame 2 is processed and becomes the track's first observation
	p.ProcessFrame(ctx, frameOf(2, carAt(1, 480)))
	assert.Equal(t, 1, p.Store().Len())
	assert.Equal(t, int64(1), p.FramesProcessed())

	// frame 3 skipped, frame 4 fires: displacement measured from the
	// first processed observation (480), not the skipped one
	p.ProcessFrame(ctx, frameOf(3, carAt(1, 490)))
	events = p.ProcessFrame(ctx, frameOf(4, carAt(1, 498)))
	require.Len(t, events, 1)
}

func TestPipelineFlushesViaScheduler(t *testing.T) {
	t.Parallel()

	p, _, sink, clock := newTestPipeline(t, 1)
	ctx := context.Background()

	p.ProcessFrame(ctx, frameOf(1, carAt(1, 470)))
	p.ProcessFrame(ctx, frameOf(2, carAt(1, 498)))
	require.Empty(t, sink.all())

	clock.Advance(30 * time.Second)
	p.ProcessFrame(ctx, frameOf(3, carAt(1, 505)))

	reports := sink.all()
	require.Len(t, reports, 1)
	assert.Equal(t, int64(1), reports[0].IntervalTotal)
	assert.Equal(t, int64(1), reports[0].Interval[ClassCar])
	assert.Equal(t, 1, reports[0].Occupancy)
}

func TestKeepaliveTickFlushesWithoutFrames(t *testing.T) {
	t.Parallel()

	p, _, sink, clock := newTestPipeline(t, 1)
	ctx := context.Background()

	clock.Advance(30 * time.Second)
	p.Tick(ctx)
	clock.Advance(30 * time.Second)
	p.Tick(ctx)

	reports := sink.all()
	require.Len(t, reports, 2)
	assert.Equal(t, int64(0), reports[0].IntervalTotal)
	assert.Equal(t, int64(0), reports[1].IntervalTotal)
}

func TestPipelineEvictsStaleTracksAfterFlush(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	agg := NewFlowAggregator(OccupancyLatest)
	sched := NewReportScheduler(agg, clock, 30*time.Second, "run-1", &memorySink{})
	p := NewPipeline(PipelineConfig{
		Zone:        testZone(),
		FrameStride: 1,
		TrackMaxAge: time.Minute,
	}, agg, sched, clock)
	ctx := context.Background()

	p.ProcessFrame(ctx, frameOf(1, carAt(1, 470)))
	require.Equal(t, 1, p.Store().Len())

	// the track goes unseen for two minutes; the next flush sweeps it
	clock.Advance(2 * time.Minute)
	p.Tick(ctx)
	assert.Equal(t, 0, p.Store().Len())
}

func TestZeroStrideBehavesAsOne(t *testing.T) {
	t.Parallel()

	p, _, _, _ := newTestPipeline(t, 0)
	p.ProcessFrame(context.Background(), frameOf(1, carAt(1, 470)))
	assert.Equal(t, int64(1), p.FramesProcessed())
}
