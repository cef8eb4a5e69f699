package frame

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync/atomic"
)

// ErrNilImage is returned when a frame is constructed from a nil image.
var ErrNilImage = errors.New("frame: nil image")

// sequence numbers frames process-wide; alignment uses them as cache keys.
var sequence atomic.Uint64

// Frame is one captured image of the selection region plus its logical size.
// Pixel data is owned by whichever component currently holds the frame and is
// treated as immutable: stitching never writes into a frame, it composes new
// canvases from them.
type Frame struct {
	Img    *image.RGBA
	Width  float64 // logical width in points
	Height float64 // logical height in points
	Scale  float64 // pixels per point
	Seq    uint64
}

// New wraps img into a Frame, deriving the logical size from the pixel
// bounds and the given pixels-per-point scale.
func New(img *image.RGBA, scale float64) (*Frame, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("frame: empty image bounds %v", b)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("frame: invalid pixel scale %g", scale)
	}
	return &Frame{
		Img:    img,
		Width:  float64(b.Dx()) / scale,
		Height: float64(b.Dy()) / scale,
		Scale:  scale,
		Seq:    sequence.Add(1),
	}, nil
}

// PixelWidth returns the frame width in pixels.
func (f *Frame) PixelWidth() int { return f.Img.Bounds().Dx() }

// PixelHeight returns the frame height in pixels.
func (f *Frame) PixelHeight() int { return f.Img.Bounds().Dy() }

// PtsToPx converts a length in points to whole pixels at the frame's scale.
func (f *Frame) PtsToPx(pts float64) int { return int(math.Round(pts * f.Scale)) }
