package workflow

import (
	"image"

	"github.com/google/uuid"

	"github.com/soocke/scrollshot-go/domain/frame"
)

// Phase enumerates the states of the capture workflow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDrawing
	PhaseCapturing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDrawing:
		return "drawing"
	case PhaseCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// Quality selects the output encoding of a finished capture.
type Quality int

const (
	QualityLossy Quality = iota
	QualityLossless
)

func (q Quality) String() string {
	if q == QualityLossless {
		return "lossless"
	}
	return "lossy"
}

// ParseQuality maps a config string to a Quality, defaulting to lossy.
func ParseQuality(s string) Quality {
	if s == "lossless" {
		return QualityLossless
	}
	return QualityLossy
}

// Grabber captures a region of the screen. The region is in points; the
// implementation converts it to pixels at the given pixels-per-point scale.
// It must exclude the workflow's own windows from the captured image.
type Grabber interface {
	CaptureRegion(region image.Rectangle, scale float64) (*frame.Frame, error)
}

// Sink receives the finalized stitched image and returns the save location.
type Sink interface {
	Save(f *frame.Frame, q Quality) (string, error)
}

// PhaseListener is called on each successful phase transition.
type PhaseListener func(prev, next Phase)

// Session is one activate→draw→capture cycle. Exactly one is live at a time.
type Session struct {
	ID      uuid.UUID
	Region  image.Rectangle // in points
	Quality Quality
}
