package counting

// CrossingZone configures the virtual counting line: the reference line
// position, a per-class symmetric band around it, and a per-class
// minimum net displacement before a detection inside the band counts as
// real motion rather than detector jitter. Motorcycles get a wider band
// but a shorter travel threshold: their boxes are small and noisy, so
// the band tolerates more jitter while the travel gate confirms motion
// sooner.
type CrossingZone struct {
	LineY      float64
	Offset     float64
	MotoOffset float64
	MinTravel  float64
	MotoTravel float64
}

func (z CrossingZone) offsetFor(c VehicleClass) float64 {
	if c == ClassMotorcycle {
		return z.MotoOffset
	}
	return z.Offset
}

func (z CrossingZone) travelFor(c VehicleClass) float64 {
	if c == ClassMotorcycle {
		return z.MotoTravel
	}
	return z.MinTravel
}

// CrossingEvent fires at most once per track lifetime, at the first
// frame where the track satisfies the crossing conditions.
type CrossingEvent struct {
	TrackID int64
	Class   VehicleClass
}

// CrossingDetector decides, per detection, whether a countable crossing
// event fires. The band and the travel gate form a two-stage debounce:
// the band absorbs single-frame noise near the line, and the travel gate
// rejects tracks that spawn already inside the band (mid-crossing
// appearance, occlusion reappearance) without having demonstrated
// motion.
type CrossingDetector struct {
	store *TrackStateStore
	zone  CrossingZone
}

func NewCrossingDetector(store *TrackStateStore, zone CrossingZone) *CrossingDetector {
	return &CrossingDetector{store: store, zone: zone}
}

// Zone returns the detector's immutable zone configuration.
func (d *CrossingDetector) Zone() CrossingZone {
	return d.zone
}

// Evaluate folds one detection into the track's state and returns a
// CrossingEvent if this observation completes a crossing, or nil.
//
// A crossing fires iff the anchor lies strictly inside
// (LineY-offset, LineY+offset), the track has not been counted, and its
// net displacement strictly exceeds the class travel threshold. A track
// that enters and leaves the band without satisfying the travel gate
// stays uncounted and remains eligible on a later genuine pass.
func (d *CrossingDetector) Evaluate(det Detection, nowNanos int64) *CrossingEvent {
	_, anchorY := det.Box.Anchor()
	st := d.store.Observe(det.TrackID, anchorY, nowNanos)

	offset := d.zone.offsetFor(det.Class)
	if anchorY <= d.zone.LineY-offset || anchorY >= d.zone.LineY+offset {
		return nil
	}
	if st.Counted {
		return nil
	}
	if st.Displacement() <= d.zone.travelFor(det.Class) {
		return nil
	}

	st.Counted = true
	return &CrossingEvent{TrackID: det.TrackID, Class: det.Class}
}
