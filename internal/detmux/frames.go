package detmux

import (
	"encoding/json"
	"fmt"

	"github.com/greenpulse-data/flow.report/internal/counting"
	"github.com/greenpulse-data/flow.report/internal/monitoring"
)

// Wire format: one JSON object per line.
//
//	{"frame":12,"detections":[{"track_id":4,"class":"car","box":[410,300,520,505]}]}
//
// The detector may send the string class label or the raw COCO class id
// (class_id); ids outside the enumerated vehicle set are dropped here so
// the counting core never sees them.
type wireDetection struct {
	TrackID int64      `json:"track_id"`
	Class   string     `json:"class"`
	ClassID *int       `json:"class_id,omitempty"`
	Box     [4]float64 `json:"box"`
}

type wireFrame struct {
	Frame      int64           `json:"frame"`
	Detections []wireDetection `json:"detections"`
}

// ParseFrame decodes a single stream line into a detection frame.
// Unknown-class detections are dropped (logged), not errors; a malformed
// line is an error for the caller to log and skip.
func ParseFrame(line string) (counting.Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal([]byte(line), &wf); err != nil {
		return counting.Frame{}, fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	frame := counting.Frame{Number: wf.Frame}
	for _, wd := range wf.Detections {
		class, err := resolveClass(wd)
		if err != nil {
			monitoring.Logf("dropping detection track_id=%d: %v", wd.TrackID, err)
			continue
		}
		frame.Detections = append(frame.Detections, counting.Detection{
			TrackID: wd.TrackID,
			Class:   class,
			Box: counting.Rect{
				X1: wd.Box[0], Y1: wd.Box[1],
				X2: wd.Box[2], Y2: wd.Box[3],
			},
		})
	}
	return frame, nil
}

func resolveClass(wd wireDetection) (counting.VehicleClass, error) {
	if wd.Class != "" {
		return counting.ParseClass(wd.Class)
	}
	if wd.ClassID != nil {
		if c, ok := counting.ClassFromCocoID(*wd.ClassID); ok {
			return c, nil
		}
		return "", fmt.Errorf("unknown class id %d", *wd.ClassID)
	}
	return "", fmt.Errorf("detection carries neither class nor class_id")
}
