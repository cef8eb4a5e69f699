package align

import (
	"image"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/soocke/scrollshot-go/domain/frame"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// randomRows returns per-row gray values for a synthetic document.
func randomRows(n int, seed int64) []uint8 {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]uint8, n)
	for i := range rows {
		rows[i] = uint8(rng.Intn(256))
	}
	return rows
}

// rowsImage paints each row of a w-wide image with one gray value.
func rowsImage(w int, rows []uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, len(rows)))
	for y, v := range rows {
		for x := 0; x < w; x++ {
			off := y*img.Stride + x*4
			img.Pix[off] = v
			img.Pix[off+1] = v
			img.Pix[off+2] = v
			img.Pix[off+3] = 255
		}
	}
	return img
}

func rowsFrame(t *testing.T, w int, rows []uint8, scale float64) *frame.Frame {
	t.Helper()
	f, err := frame.New(rowsImage(w, rows), scale)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	return f
}

func testEngine() *Engine {
	return NewEngine(Config{TopMarginPts: 0, BottomMarginPts: 0, MinScore: 0.8, MinOverlapPts: 24}, discardLogger)
}

func TestEstimateOffset_DownwardScroll(t *testing.T) {
	const h, shift = 120, 30
	doc := randomRows(h+shift, 1)
	prev := rowsFrame(t, 40, doc[:h], 1)
	cur := rowsFrame(t, 40, doc[shift:h+shift], 1)

	offset, ok := testEngine().EstimateOffset(cur, prev)
	if !ok {
		t.Fatal("expected a usable offset")
	}
	if offset != shift {
		t.Fatalf("expected offset %d, got %g", shift, offset)
	}
}

func TestEstimateOffset_UpwardScroll(t *testing.T) {
	const h, shift = 120, 30
	doc := randomRows(h+shift, 2)
	prev := rowsFrame(t, 40, doc[shift:h+shift], 1)
	cur := rowsFrame(t, 40, doc[:h], 1)

	offset, ok := testEngine().EstimateOffset(cur, prev)
	if !ok {
		t.Fatal("expected a usable offset")
	}
	if offset != -shift {
		t.Fatalf("expected offset %d, got %g", -shift, offset)
	}
}

func TestEstimateOffset_IdenticalFramesYieldZero(t *testing.T) {
	doc := randomRows(100, 3)
	a := rowsFrame(t, 40, doc, 1)
	b := rowsFrame(t, 40, doc, 1)

	offset, ok := testEngine().EstimateOffset(a, b)
	if !ok || offset != 0 {
		t.Fatalf("expected (0, true), got (%g, %v)", offset, ok)
	}
}

func TestEstimateOffset_FlatContentFails(t *testing.T) {
	flat := make([]uint8, 100)
	for i := range flat {
		flat[i] = 128
	}
	a := rowsFrame(t, 40, flat, 1)
	b := rowsFrame(t, 40, flat, 1)

	if _, ok := testEngine().EstimateOffset(a, b); ok {
		t.Fatal("expected no usable offset for flat frames")
	}
}

func TestEstimateOffset_PixelScaleConversion(t *testing.T) {
	const h, shiftPx = 160, 40
	doc := randomRows(h+shiftPx, 4)
	prev := rowsFrame(t, 40, doc[:h], 2)
	cur := rowsFrame(t, 40, doc[shiftPx:h+shiftPx], 2)

	offset, ok := testEngine().EstimateOffset(cur, prev)
	if !ok {
		t.Fatal("expected a usable offset")
	}
	if want := float64(shiftPx) / 2; math.Abs(offset-want) > 1e-9 {
		t.Fatalf("expected %g points, got %g", want, offset)
	}
}

func TestEstimateOffset_MarginsExcludeStickyHeader(t *testing.T) {
	const header, body, shift = 24, 120, 30
	content := randomRows(body+shift, 5)
	sticky := randomRows(header, 6)

	build := func(rows []uint8) []uint8 {
		out := make([]uint8, 0, header+body)
		out = append(out, sticky...)
		out = append(out, rows...)
		return out
	}
	prev := rowsFrame(t, 40, build(content[:body]), 1)
	cur := rowsFrame(t, 40, build(content[shift:body+shift]), 1)

	e := NewEngine(Config{TopMarginPts: header, BottomMarginPts: 0, MinScore: 0.8, MinOverlapPts: 24}, discardLogger)
	offset, ok := e.EstimateOffset(cur, prev)
	if !ok {
		t.Fatal("expected a usable offset")
	}
	if offset != shift {
		t.Fatalf("expected offset %d with header excluded, got %g", shift, offset)
	}
}

func TestEstimateOffset_OversizeMarginsDegradeToFullFrame(t *testing.T) {
	const h, shift = 120, 30
	doc := randomRows(h+shift, 7)
	prev := rowsFrame(t, 40, doc[:h], 1)
	cur := rowsFrame(t, 40, doc[shift:h+shift], 1)

	// Default margins (200pt top, 100pt bottom) exceed this frame's height.
	e := NewEngine(DefaultConfig(), discardLogger)
	offset, ok := e.EstimateOffset(cur, prev)
	if !ok {
		t.Fatal("expected graceful degradation to full-frame comparison")
	}
	if offset != shift {
		t.Fatalf("expected offset %d, got %g", shift, offset)
	}
}

func TestEstimateOffset_NilFrames(t *testing.T) {
	if _, ok := testEngine().EstimateOffset(nil, nil); ok {
		t.Fatal("expected failure for nil frames")
	}
}
