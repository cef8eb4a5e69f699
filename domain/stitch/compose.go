package stitch

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/soocke/scrollshot-go/domain/frame"
)

// growCanvas composites f beneath canvas. The frame anchors to the bottom of
// the enlarged canvas and the existing canvas is painted last, so already
// accumulated content covers the overlap and hides sticky elements
// duplicated in f.
func growCanvas(canvas *image.RGBA, f *frame.Frame, offsetPx int) *image.RGBA {
	cb := canvas.Bounds()
	cw, ch := cb.Dx(), cb.Dy()
	newH := ch + offsetPx
	out := image.NewRGBA(image.Rect(0, 0, cw, newH))
	fb := f.Img.Bounds()
	top := newH - fb.Dy()
	src := fb.Min
	if top < 0 {
		// Frame taller than the enlarged canvas (possible after a deep
		// trim). Keep it bottom-anchored by skipping its top rows instead
		// of shifting it down.
		src = fb.Min.Add(image.Pt(0, -top))
		top = 0
	}
	draw.Draw(out, image.Rect(0, top, cw, newH), f.Img, src, draw.Src)
	draw.Draw(out, image.Rect(0, 0, cw, ch), canvas, cb.Min, draw.Src)
	return out
}

// cropBottom keeps the top keepPx rows of canvas.
func cropBottom(canvas *image.RGBA, keepPx int) *image.RGBA {
	b := canvas.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), keepPx))
	draw.Draw(out, out.Bounds(), canvas, b.Min, draw.Src)
	return out
}

// conformFrame brings f to the canvas pixel geometry. Frames from the same
// session share a region, but a display scale change mid-session (window
// dragged between monitors) yields a different pixel density; those frames
// are resampled. A frame whose logical width no longer matches the canvas
// cannot be stitched and conformFrame returns nil.
func conformFrame(f *frame.Frame, widthPx int, scale float64) *frame.Frame {
	if f.Scale == scale && f.PixelWidth() == widthPx {
		return f
	}
	canvasWPts := float64(widthPx) / scale
	if math.Abs(f.Width-canvasWPts) > 1 {
		return nil
	}
	targetH := int(math.Round(f.Height * scale))
	if targetH <= 0 {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, widthPx, targetH))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), f.Img, f.Img.Bounds(), xdraw.Src, nil)
	nf, err := frame.New(dst, scale)
	if err != nil {
		return nil
	}
	return nf
}
