package align

import (
	"image"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soocke/scrollshot-go/domain/frame"
)

// profileCacheSize keeps the previous frame's precomputed profile warm: in
// steady state every estimate reuses the profile built for the prior call.
const profileCacheSize = 8

// Config bounds the comparison band and the registration search.
type Config struct {
	TopMarginPts    float64 // excluded from comparison at the visual top (sticky headers)
	BottomMarginPts float64 // excluded at the visual bottom (sticky footers)
	MinScore        float64 // minimum NCC score to accept a shift
	MinOverlapPts   float64 // smallest usable overlap between the two bands
}

// DefaultConfig returns the standard margins and thresholds.
func DefaultConfig() Config {
	return Config{TopMarginPts: 200, BottomMarginPts: 100, MinScore: 0.85, MinOverlapPts: 48}
}

// Engine estimates the vertical scroll offset between two consecutive frames
// by normalized cross-correlation of their row-luma profiles. The margins
// crop sticky headers/footers out of the comparison; cropping degrades to the
// full frame when the margins would not leave any band.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	profiles *lru.Cache[uint64, *profile]
}

// NewEngine constructs an engine with cfg, clamping unusable thresholds.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if cfg.MinScore <= 0 || cfg.MinScore > 1 {
		cfg.MinScore = 0.85
	}
	if cfg.MinOverlapPts <= 0 {
		cfg.MinOverlapPts = 48
	}
	if cfg.TopMarginPts < 0 {
		cfg.TopMarginPts = 0
	}
	if cfg.BottomMarginPts < 0 {
		cfg.BottomMarginPts = 0
	}
	cache, _ := lru.New[uint64, *profile](profileCacheSize)
	return &Engine{cfg: cfg, logger: logger, profiles: cache}
}

// profile caches per-row luma means of a frame's comparison band together
// with prefix sums for O(1) windowed mean/variance queries.
type profile struct {
	rows     []float64
	prefix   []float64 // prefix[i] = sum(rows[:i])
	prefixSq []float64
	pxPerPt  float64 // band pixel height over band logical height
}

// EstimateOffset returns the vertical scroll offset in points between cur and
// prev. Positive means the content scrolled down (new content appeared at the
// bottom), negative means it scrolled up. ok is false when registration
// produced no usable observation.
func (e *Engine) EstimateOffset(cur, prev *frame.Frame) (offset float64, ok bool) {
	if cur == nil || prev == nil {
		return 0, false
	}
	pc := e.profileFor(cur)
	pp := e.profileFor(prev)
	if pc == nil || pp == nil {
		return 0, false
	}
	n := len(pc.rows)
	if len(pp.rows) < n {
		n = len(pp.rows)
	}
	minOverlap := int(math.Round(e.cfg.MinOverlapPts * cur.Scale))
	if minOverlap < 2 {
		minOverlap = 2
	}
	if n < minOverlap {
		return 0, false
	}

	// Scrolling down by d pixels moves content up: cur[y] == prev[y+d].
	// Score every shift whose overlap is at least minOverlap rows.
	bestShift := 0
	bestScore := math.Inf(-1)
	for d := -(n - minOverlap); d <= n-minOverlap; d++ {
		c0, p0 := 0, d
		if d < 0 {
			c0, p0 = -d, 0
		}
		m := n - d
		if d < 0 {
			m = n + d
		}
		score, usable := nccWindow(pc, pp, c0, p0, m)
		if usable && score > bestScore {
			bestScore, bestShift = score, d
		}
	}
	if math.IsInf(bestScore, -1) || bestScore < e.cfg.MinScore {
		if e.logger != nil {
			e.logger.Debug("align: no acceptable shift", "best_score", bestScore, "cur_seq", cur.Seq)
		}
		return 0, false
	}
	if pc.pxPerPt <= 0 {
		return 0, false
	}
	return float64(bestShift) / pc.pxPerPt, true
}

// profileFor returns the cached profile for f's comparison band or builds it.
func (e *Engine) profileFor(f *frame.Frame) *profile {
	if p, hit := e.profiles.Get(f.Seq); hit {
		return p
	}
	p := e.buildProfile(f)
	if p != nil {
		e.profiles.Add(f.Seq, p)
	}
	return p
}

func (e *Engine) buildProfile(f *frame.Frame) *profile {
	h := f.PixelHeight()
	topPx := f.PtsToPx(e.cfg.TopMarginPts)
	botPx := f.PtsToPx(e.cfg.BottomMarginPts)
	if topPx+botPx >= h {
		// Margins swallow the whole frame; compare the full frame instead.
		topPx, botPx = 0, 0
	}
	b := f.Img.Bounds()
	band := imaging.Crop(f.Img, image.Rect(b.Min.X, b.Min.Y+topPx, b.Max.X, b.Max.Y-botPx))
	bb := band.Bounds()
	w, bh := bb.Dx(), bb.Dy()
	if w <= 0 || bh <= 0 || f.Scale <= 0 {
		return nil
	}
	bandPts := float64(bh) / f.Scale
	if bandPts <= 0 {
		return nil
	}
	p := &profile{
		rows:     make([]float64, bh),
		prefix:   make([]float64, bh+1),
		prefixSq: make([]float64, bh+1),
		pxPerPt:  float64(bh) / bandPts,
	}
	for y := 0; y < bh; y++ {
		row := band.Pix[y*band.Stride : y*band.Stride+w*4]
		var sum float64
		for x := 0; x < w; x++ {
			r := float64(row[x*4])
			g := float64(row[x*4+1])
			bl := float64(row[x*4+2])
			sum += 0.2126*r + 0.7152*g + 0.0722*bl
		}
		mean := sum / float64(w)
		p.rows[y] = mean
		p.prefix[y+1] = p.prefix[y] + mean
		p.prefixSq[y+1] = p.prefixSq[y] + mean*mean
	}
	return p
}

// nccWindow scores the correlation of a.rows[a0:a0+m] against b.rows[b0:b0+m].
// usable is false for windows without variance (flat content tells nothing).
func nccWindow(a, b *profile, a0, b0, m int) (score float64, usable bool) {
	n := float64(m)
	sumA := a.prefix[a0+m] - a.prefix[a0]
	sumA2 := a.prefixSq[a0+m] - a.prefixSq[a0]
	sumB := b.prefix[b0+m] - b.prefix[b0]
	sumB2 := b.prefixSq[b0+m] - b.prefixSq[b0]
	meanA := sumA / n
	meanB := sumB / n
	varA := (sumA2 - sumA*sumA/n) / n
	varB := (sumB2 - sumB*sumB/n) / n
	if varA <= 1e-9 || varB <= 1e-9 {
		return 0, false
	}
	var dot float64
	for i := 0; i < m; i++ {
		dot += a.rows[a0+i] * b.rows[b0+i]
	}
	numer := dot - n*meanA*meanB
	denom := n * math.Sqrt(varA) * math.Sqrt(varB)
	if denom <= 0 {
		return 0, false
	}
	return numer / denom, true
}
