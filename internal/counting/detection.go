package counting

// Rect is a detection bounding box in pixel coordinates with the origin
// at the top-left of the frame (Y grows downward).
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Anchor returns the bottom-center point of the box. All crossing
// comparisons use this single point: the horizontal midpoint tracks the
// vehicle laterally and the bottom edge sits on the road surface, which
// makes it the most stable reference under box jitter.
func (r Rect) Anchor() (x, y float64) {
	return (r.X1 + r.X2) / 2, r.Y2
}

// Detection is one tracked object in one frame, as produced by the
// external detector/tracker. TrackID is stable across frames for the
// same physical object; a recycled id is indistinguishable from a new
// object and is treated as one.
type Detection struct {
	TrackID int64        `json:"track_id"`
	Class   VehicleClass `json:"class"`
	Box     Rect         `json:"box"`
}

// Frame is an ordered set of detections observed at the same instant.
type Frame struct {
	Number     int64       `json:"frame"`
	Detections []Detection `json:"detections"`
}
