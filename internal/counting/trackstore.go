package counting

import (
	"sync"
	"time"
)

// TrackState is the per-track crossing state. FirstAnchorY is fixed at
// first observation and never updated; Counted latches true exactly once
// for the lifetime of the track.
type TrackState struct {
	FirstAnchorY float64
	LastAnchorY  float64
	Counted      bool

	// LastSeen (unix nanos) supports stale-track eviction for
	// long-running sessions.
	LastSeen int64
}

// Displacement returns the signed net vertical travel since first
// observation. Positive means moving down-frame.
func (s *TrackState) Displacement() float64 {
	return s.LastAnchorY - s.FirstAnchorY
}

// TrackStateStore holds crossing state for every track id seen this
// session. Mutation must be serialized per track id; the store's mutex
// serializes all access, which is sufficient for the single-pipeline
// scheduling model.
type TrackStateStore struct {
	mu     sync.Mutex
	tracks map[int64]*TrackState
}

func NewTrackStateStore() *TrackStateStore {
	return &TrackStateStore{tracks: make(map[int64]*TrackState)}
}

// Observe creates state for an unseen track id (first and last anchor
// both set to anchorY, not yet counted) or updates LastAnchorY on an
// existing one, and returns the state. FirstAnchorY and Counted are
// never touched for existing tracks.
func (ts *TrackStateStore) Observe(trackID int64, anchorY float64, nowNanos int64) *TrackState {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	st, ok := ts.tracks[trackID]
	if !ok {
		st = &TrackState{
			FirstAnchorY: anchorY,
			LastAnchorY:  anchorY,
		}
		ts.tracks[trackID] = st
	} else {
		st.LastAnchorY = anchorY
	}
	st.LastSeen = nowNanos
	return st
}

// Len returns the number of tracked states currently held.
func (ts *TrackStateStore) Len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tracks)
}

// EvictStale removes tracks not observed for longer than maxAge and
// returns how many were dropped. maxAge <= 0 disables eviction, which
// preserves the keep-forever base behavior for short sessions.
func (ts *TrackStateStore) EvictStale(nowNanos int64, maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()

	cutoff := nowNanos - maxAge.Nanoseconds()
	evicted := 0
	for id, st := range ts.tracks {
		if st.LastSeen < cutoff {
			delete(ts.tracks, id)
			evicted++
		}
	}
	return evicted
}
