package stitch

import (
	"bytes"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/soocke/scrollshot-go/domain/frame"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// scriptAligner replays a fixed list of offset observations in order.
type scriptAligner struct {
	mu     sync.Mutex
	script []scripted
	calls  int
}

type scripted struct {
	offset float64
	ok     bool
}

func (s *scriptAligner) EstimateOffset(cur, prev *frame.Frame) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.script) == 0 {
		return 0, false
	}
	v := s.script[0]
	s.script = s.script[1:]
	return v.offset, v.ok
}

func (s *scriptAligner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func solidFrame(t *testing.T, w, h int, c color.RGBA) *frame.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := frame.New(img, 1)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	return f
}

func newTestAccumulator(script ...scripted) (*Accumulator, uuid.UUID, *scriptAligner) {
	id := uuid.New()
	al := &scriptAligner{script: script}
	a := NewAccumulator(id, al, Options{}, discardLogger)
	return a, id, al
}

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	gray  = color.RGBA{R: 90, G: 90, B: 90, A: 255}
)

func TestAccumulator_ZeroOffsetsKeepFirstFrame(t *testing.T) {
	a, id, _ := newTestAccumulator(
		scripted{0, true},
		scripted{0, false},
		scripted{0, true},
	)
	defer a.Close()

	first := solidFrame(t, 40, 60, red)
	a.AddFrame(id, first)
	a.AddFrame(id, solidFrame(t, 40, 60, green))
	a.AddFrame(id, solidFrame(t, 40, 60, blue))
	a.AddFrame(id, solidFrame(t, 40, 60, gray))

	out := a.Finalize(id)
	if out == nil {
		t.Fatal("expected a canvas")
	}
	if out.PixelHeight() != 60 || out.PixelWidth() != 40 {
		t.Fatalf("canvas should match first frame, got %dx%d", out.PixelWidth(), out.PixelHeight())
	}
	if !bytes.Equal(out.Img.Pix, first.Img.Pix) {
		t.Fatal("canvas pixels should equal the first frame exactly")
	}
}

func TestAccumulator_DownwardGrowth(t *testing.T) {
	a, id, _ := newTestAccumulator(
		scripted{50, true},
		scripted{30, true},
		scripted{20, true},
	)
	defer a.Close()

	const h = 100
	a.AddFrame(id, solidFrame(t, 40, h, red))
	a.AddFrame(id, solidFrame(t, 40, h, green))
	a.AddFrame(id, solidFrame(t, 40, h, blue))
	a.AddFrame(id, solidFrame(t, 40, h, gray))

	out := a.Finalize(id)
	if out == nil {
		t.Fatal("expected a canvas")
	}
	if got := out.PixelHeight(); got != h+100 {
		t.Fatalf("expected height %d, got %d", h+100, got)
	}
	// Each growth keeps the prior canvas on top and exposes only the new
	// frame's bottom band.
	checks := []struct {
		y    int
		want color.RGBA
	}{
		{0, red},        // original canvas
		{h + 25, green}, // band exposed by the first growth
		{h + 65, blue},  // second growth
		{h + 90, gray},  // third growth
	}
	for _, c := range checks {
		if got := out.Img.RGBAAt(20, c.y); got != c.want {
			t.Fatalf("row %d: expected %v, got %v", c.y, c.want, got)
		}
	}
}

func TestAccumulator_TrimUpwardKeepsTop(t *testing.T) {
	a, id, _ := newTestAccumulator(scripted{-50, true})
	defer a.Close()

	// Two-tone initial frame: top half red, bottom half blue.
	img := image.NewRGBA(image.Rect(0, 0, 40, 200))
	for y := 0; y < 200; y++ {
		c := red
		if y >= 100 {
			c = blue
		}
		for x := 0; x < 40; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	first, err := frame.New(img, 1)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	a.AddFrame(id, first)
	a.AddFrame(id, solidFrame(t, 40, 200, gray))

	out := a.Finalize(id)
	if out == nil {
		t.Fatal("expected a canvas")
	}
	if got := out.PixelHeight(); got != 150 {
		t.Fatalf("expected height 150 after trim, got %d", got)
	}
	if got := out.Img.RGBAAt(10, 50); got != red {
		t.Fatalf("expected red at row 50, got %v", got)
	}
	if got := out.Img.RGBAAt(10, 149); got != blue {
		t.Fatalf("expected blue at row 149 (kept top), got %v", got)
	}
}

func TestAccumulator_RejectsOversizeTrim(t *testing.T) {
	a, id, _ := newTestAccumulator(scripted{-100, true})
	defer a.Close()

	first := solidFrame(t, 40, 100, red)
	a.AddFrame(id, first)
	a.AddFrame(id, solidFrame(t, 40, 100, gray))

	out := a.Finalize(id)
	if out == nil {
		t.Fatal("expected a canvas")
	}
	if got := out.PixelHeight(); got != 100 {
		t.Fatalf("oversize trim must leave canvas unchanged, got height %d", got)
	}
	if !bytes.Equal(out.Img.Pix, first.Img.Pix) {
		t.Fatal("oversize trim must not alter canvas content")
	}
}

func TestAccumulator_GrowAfterDeepTrimStaysBottomAnchored(t *testing.T) {
	a, id, _ := newTestAccumulator(
		scripted{-150, true},
		scripted{20, true},
	)
	defer a.Close()

	const h = 200
	a.AddFrame(id, solidFrame(t, 40, h, red))
	a.AddFrame(id, solidFrame(t, 40, h, gray))

	// Third frame: blue with a green bottom band. After the deep trim the
	// canvas (50 rows) is shorter than this frame, so the growth must expose
	// the frame's bottom rows, not its top.
	img := image.NewRGBA(image.Rect(0, 0, 40, h))
	for y := 0; y < h; y++ {
		c := blue
		if y >= h-50 {
			c = green
		}
		for x := 0; x < 40; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	tall, err := frame.New(img, 1)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	a.AddFrame(id, tall)

	out := a.Finalize(id)
	if out == nil {
		t.Fatal("expected a canvas")
	}
	if got := out.PixelHeight(); got != 70 {
		t.Fatalf("expected height 70 (200 - 150 + 20), got %d", got)
	}
	if got := out.Img.RGBAAt(20, 25); got != red {
		t.Fatalf("trimmed canvas should still cover the top, got %v at row 25", got)
	}
	for _, y := range []int{50, 60, 69} {
		if got := out.Img.RGBAAt(20, y); got != green {
			t.Fatalf("exposed band should be the frame's bottom content, got %v at row %d", got, y)
		}
	}
}

func TestAccumulator_FinalizeIsABarrier(t *testing.T) {
	a, id, _ := newTestAccumulator(
		scripted{50, true},
		scripted{30, true},
	)
	defer a.Close()

	a.AddFrame(id, solidFrame(t, 40, 100, red))
	a.AddFrame(id, solidFrame(t, 40, 100, green))

	mid := a.Finalize(id)
	if mid == nil || mid.PixelHeight() != 150 {
		t.Fatalf("first finalize must reflect exactly the frames before it, got %v", mid)
	}

	a.AddFrame(id, solidFrame(t, 40, 100, blue))
	end := a.Finalize(id)
	if end == nil || end.PixelHeight() != 180 {
		t.Fatalf("second finalize must include the later frame, got %v", end)
	}
	if mid.PixelHeight() != 150 {
		t.Fatal("earlier finalize result must not change")
	}
}

func TestAccumulator_Scenario(t *testing.T) {
	a, id, _ := newTestAccumulator(
		scripted{100, true},
		scripted{-40, true},
	)
	defer a.Close()

	a.AddFrame(id, solidFrame(t, 800, 600, red))
	a.AddFrame(id, solidFrame(t, 800, 600, green))
	a.AddFrame(id, solidFrame(t, 800, 600, blue))

	out := a.Finalize(id)
	if out == nil {
		t.Fatal("expected a canvas")
	}
	if out.PixelWidth() != 800 || out.PixelHeight() != 660 {
		t.Fatalf("expected 800x660, got %dx%d", out.PixelWidth(), out.PixelHeight())
	}
	if out.Height != 660 {
		t.Fatalf("expected logical height 660, got %g", out.Height)
	}
}

func TestAccumulator_DiscardDropsState(t *testing.T) {
	a, id, _ := newTestAccumulator(scripted{50, true})
	defer a.Close()

	a.AddFrame(id, solidFrame(t, 40, 100, red))
	a.AddFrame(id, solidFrame(t, 40, 100, green))
	a.Discard()

	if out := a.Finalize(id); out != nil {
		t.Fatalf("expected nil canvas after discard, got height %d", out.PixelHeight())
	}
}

func TestAccumulator_StaleSessionFramesDropped(t *testing.T) {
	a, id, _ := newTestAccumulator()
	defer a.Close()

	a.AddFrame(uuid.New(), solidFrame(t, 40, 100, red))
	if out := a.Finalize(id); out != nil {
		t.Fatal("stale-session frame must not establish state")
	}
	if out := a.Finalize(uuid.New()); out != nil {
		t.Fatal("finalize for a stale session must return nil")
	}
}

func TestAccumulator_DuplicateFramesSkipRegistration(t *testing.T) {
	id := uuid.New()
	al := &scriptAligner{script: []scripted{{50, true}}}
	a := NewAccumulator(id, al, Options{SkipDuplicates: true}, discardLogger)
	defer a.Close()

	a.AddFrame(id, solidFrame(t, 40, 100, red))
	a.AddFrame(id, solidFrame(t, 40, 100, red)) // pixel-identical

	out := a.Finalize(id)
	if out == nil || out.PixelHeight() != 100 {
		t.Fatalf("duplicate frame must not grow the canvas, got %v", out)
	}
	if al.callCount() != 0 {
		t.Fatalf("registration should be skipped for duplicates, got %d calls", al.callCount())
	}
}

func TestAccumulator_FinalizeAfterCloseIsNil(t *testing.T) {
	a, id, _ := newTestAccumulator()
	a.AddFrame(id, solidFrame(t, 40, 100, red))
	a.Close()
	a.Close() // idempotent

	if out := a.Finalize(id); out != nil {
		t.Fatal("finalize after close must return nil")
	}
}
