package counting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCreatesAndUpdates(t *testing.T) {
	t.Parallel()

	ts := NewTrackStateStore()

	st := ts.Observe(42, 100, 1)
	require.NotNil(t, st)
	assert.Equal(t, 100.0, st.FirstAnchorY)
	assert.Equal(t, 100.0, st.LastAnchorY)
	assert.False(t, st.Counted)
	assert.Equal(t, 0.0, st.Displacement())
	assert.Equal(t, 1, ts.Len())

	// subsequent observations move LastAnchorY only
	st = ts.Observe(42, 140, 2)
	assert.Equal(t, 100.0, st.FirstAnchorY)
	assert.Equal(t, 140.0, st.LastAnchorY)
	assert.Equal(t, 40.0, st.Displacement())
	assert.Equal(t, 1, ts.Len())

	// upward movement gives negative displacement
	st = ts.Observe(42, 80, 3)
	assert.Equal(t, -20.0, st.Displacement())
}

func TestObserveDoesNotResetCounted(t *testing.T) {
	t.Parallel()

	ts := NewTrackStateStore()
	st := ts.Observe(7, 500, 1)
	st.Counted = true

	st = ts.Observe(7, 510, 2)
	assert.True(t, st.Counted)
}

func TestEvictStale(t *testing.T) {
	t.Parallel()

	ts := NewTrackStateStore()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC).UnixNano()

	ts.Observe(1, 100, base)
	ts.Observe(2, 200, base+int64(30*time.Second))
	ts.Observe(3, 300, base+int64(90*time.Second))
	require.Equal(t, 3, ts.Len())

	now := base + int64(2*time.Minute)
	evicted := ts.EvictStale(now, time.Minute)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 1, ts.Len())

	// the surviving track keeps its state
	st := ts.Observe(3, 310, now)
	assert.Equal(t, 300.0, st.FirstAnchorY)
}

func TestEvictStaleDisabledByDefault(t *testing.T) {
	t.Parallel()

	ts := NewTrackStateStore()
	ts.Observe(1, 100, 0)

	assert.Equal(t, 0, ts.EvictStale(time.Now().UnixNano(), 0))
	assert.Equal(t, 0, ts.EvictStale(time.Now().UnixNano(), -time.Second))
	assert.Equal(t, 1, ts.Len())
}
