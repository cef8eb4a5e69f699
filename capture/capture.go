package capture

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/kbinani/screenshot"

	"github.com/soocke/scrollshot-go/domain/frame"
)

var (
	ErrEmptyRegion = errors.New("capture: empty selection region")
	ErrNoDisplay   = errors.New("capture: no active display")
)

// Grabber captures screen regions through the OS screenshot facility and
// wraps them into frames. The selection rectangle arrives in points; it is
// converted to pixels at the requested scale and clipped to the virtual
// screen before the grab.
type Grabber struct {
	logger *slog.Logger
}

// NewGrabber returns a screen grabber.
func NewGrabber(logger *slog.Logger) *Grabber { return &Grabber{logger: logger} }

// CaptureRegion grabs the given region of the screen.
func (g *Grabber) CaptureRegion(region image.Rectangle, scale float64) (*frame.Frame, error) {
	if region.Empty() {
		return nil, ErrEmptyRegion
	}
	if scale <= 0 {
		return nil, fmt.Errorf("capture: invalid pixel scale %g", scale)
	}
	px := image.Rect(
		int(math.Round(float64(region.Min.X)*scale)),
		int(math.Round(float64(region.Min.Y)*scale)),
		int(math.Round(float64(region.Max.X)*scale)),
		int(math.Round(float64(region.Max.Y)*scale)),
	)
	screen, err := virtualBounds()
	if err != nil {
		return nil, err
	}
	clipped := px.Intersect(screen)
	if clipped.Empty() {
		if g.logger != nil {
			g.logger.Warn("capture: selection out of bounds", "selection", region.String(), "screen", screen.String())
		}
		return nil, fmt.Errorf("capture: selection out of bounds sel=%v screen=%v", region, screen)
	}
	if clipped != px {
		if g.logger != nil {
			g.logger.Debug("capture: selection clipped to screen", "requested", px.String(), "clipped", clipped.String())
		}
		px = clipped
	}
	img, err := screenshot.CaptureRect(px)
	if err != nil {
		return nil, fmt.Errorf("capture rect %v: %w", px, err)
	}
	return frame.New(img, scale)
}

// virtualBounds is the union of all active display bounds in pixels.
func virtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	b := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		b = b.Union(screenshot.GetDisplayBounds(i))
	}
	return b, nil
}
