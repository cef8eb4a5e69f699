package stitch

import (
	"image"
	"log/slog"
	"math"
	"runtime/debug"
	"sync/atomic"

	"github.com/corona10/goimagehash"
	"github.com/google/uuid"

	"github.com/soocke/scrollshot-go/domain/frame"
)

const jobQueueSize = 64

// Aligner estimates the vertical scroll offset in points between two frames.
type Aligner interface {
	EstimateOffset(cur, prev *frame.Frame) (offset float64, ok bool)
}

// Options tune accumulator behaviour.
type Options struct {
	// SkipDuplicates short-circuits registration when the incoming frame's
	// perception hash matches the previous frame exactly (the user paused
	// scrolling between ticks).
	SkipDuplicates bool
}

type jobKind int

const (
	jobAdd jobKind = iota
	jobFinalize
	jobDiscard
	jobQuit
)

type job struct {
	kind  jobKind
	frame *frame.Frame
	reply chan *frame.Frame
}

// state is the stitch state of one session: the growing canvas, its logical
// height, and the baseline frame the next alignment compares against. Owned
// exclusively by the worker goroutine.
type state struct {
	canvas   *image.RGBA
	totalPts float64 // canvas logical height; always pixel height / scale
	scale    float64
	widthPx  int
	last     *frame.Frame
	lastHash *goimagehash.ImageHash
}

// Accumulator owns the stitch state of one capture session. All mutations go
// through a single worker goroutine fed by a FIFO job queue, so no two frame
// jobs ever run concurrently and Finalize acts as a barrier over everything
// enqueued before it.
type Accumulator struct {
	session uuid.UUID
	aligner Aligner
	opts    Options
	logger  *slog.Logger
	jobs    chan job
	done    chan struct{}
	closed  atomic.Bool

	st *state // worker-owned
}

// NewAccumulator starts the worker for one session identified by session.
func NewAccumulator(session uuid.UUID, aligner Aligner, opts Options, logger *slog.Logger) *Accumulator {
	a := &Accumulator{
		session: session,
		aligner: aligner,
		opts:    opts,
		logger:  logger,
		jobs:    make(chan job, jobQueueSize),
		done:    make(chan struct{}),
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if logger != nil {
					logger.Error("stitch worker panic", "error", r, "stack", string(debug.Stack()))
				}
			}
			close(a.done)
		}()
		a.loop()
	}()
	return a
}

func (a *Accumulator) loop() {
	for j := range a.jobs {
		switch j.kind {
		case jobAdd:
			a.handleAdd(j.frame)
		case jobFinalize:
			j.reply <- a.snapshot()
		case jobDiscard:
			a.st = nil
		case jobQuit:
			return
		}
	}
}

// AddFrame enqueues f for stitching. Fire-and-forget: frames for a different
// session (late scheduler ticks) are dropped on arrival, and frames that do
// not fit the queue are dropped with a warning rather than stalling capture.
func (a *Accumulator) AddFrame(session uuid.UUID, f *frame.Frame) {
	if f == nil {
		return
	}
	if session != a.session {
		if a.logger != nil {
			a.logger.Debug("stitch: dropping frame from stale session", "session", session, "seq", f.Seq)
		}
		return
	}
	if a.closed.Load() {
		return
	}
	select {
	case a.jobs <- job{kind: jobAdd, frame: f}:
	case <-a.done:
	default:
		if a.logger != nil {
			a.logger.Warn("stitch: job queue full, dropping frame", "seq", f.Seq)
		}
	}
}

// Finalize waits until every frame enqueued before it has been applied, then
// returns the accumulated canvas, or nil when no state was ever established.
// Frames enqueued after Finalize do not affect the returned canvas.
func (a *Accumulator) Finalize(session uuid.UUID) *frame.Frame {
	if session != a.session {
		return nil
	}
	reply := make(chan *frame.Frame, 1)
	select {
	case a.jobs <- job{kind: jobFinalize, reply: reply}:
	case <-a.done:
		return nil
	}
	select {
	case f := <-reply:
		return f
	case <-a.done:
		return nil
	}
}

// Discard drops the stitch state without finalizing. Frames already queued
// still run to completion first; their result is never observed.
func (a *Accumulator) Discard() {
	select {
	case a.jobs <- job{kind: jobDiscard}:
	case <-a.done:
	}
}

// Close stops the worker after all currently queued jobs have been handled.
// Safe to call more than once.
func (a *Accumulator) Close() {
	if !a.closed.CompareAndSwap(false, true) {
		return
	}
	select {
	case a.jobs <- job{kind: jobQuit}:
	case <-a.done:
	}
}

// snapshot wraps the current canvas into a frame.
func (a *Accumulator) snapshot() *frame.Frame {
	if a.st == nil || a.st.canvas == nil {
		return nil
	}
	f, err := frame.New(a.st.canvas, a.st.scale)
	if err != nil {
		return nil
	}
	return f
}

func (a *Accumulator) handleAdd(f *frame.Frame) {
	if a.st == nil {
		a.start(f)
		return
	}
	st := a.st
	f = conformFrame(f, st.widthPx, st.scale)
	if f == nil {
		if a.logger != nil {
			a.logger.Warn("stitch: frame geometry incompatible with canvas, dropped")
		}
		return
	}

	hash := a.hashOf(f)
	if hash != nil && st.lastHash != nil {
		if dist, err := st.lastHash.Distance(hash); err == nil && dist == 0 {
			// Unchanged screen; registration would only confirm offset zero.
			st.last, st.lastHash = f, hash
			return
		}
	}

	offset, ok := a.aligner.EstimateOffset(f, st.last)
	switch {
	case !ok:
		// No usable registration. The canvas stays, but the baseline still
		// advances to this frame: the next comparison runs against the raw
		// previous frame, not the last frame that composited.
		if a.logger != nil {
			a.logger.Debug("stitch: no offset detected, baseline advanced", "seq", f.Seq)
		}
	case offset > 0:
		offPx := int(math.Round(offset * st.scale))
		if offPx > 0 {
			st.canvas = growCanvas(st.canvas, f, offPx)
			st.totalPts += float64(offPx) / st.scale
		}
	case offset < 0:
		cropPts := -offset
		if cropPts >= st.totalPts {
			// A trim this large would empty the canvas; treat like a failed
			// detection instead of corrupting the accumulated image.
			if a.logger != nil {
				a.logger.Warn("stitch: rejecting trim larger than canvas", "crop_pts", cropPts, "total_pts", st.totalPts)
			}
		} else {
			cropPx := int(math.Round(cropPts * st.scale))
			if keep := st.canvas.Bounds().Dy() - cropPx; cropPx > 0 && keep > 0 {
				st.canvas = cropBottom(st.canvas, keep)
				st.totalPts -= float64(cropPx) / st.scale
			}
		}
	}
	st.last = f
	if hash != nil {
		st.lastHash = hash
	}
}

func (a *Accumulator) start(f *frame.Frame) {
	a.st = &state{
		canvas:   f.Img,
		totalPts: f.Height,
		scale:    f.Scale,
		widthPx:  f.PixelWidth(),
		last:     f,
		lastHash: a.hashOf(f),
	}
	if a.logger != nil {
		a.logger.Debug("stitch: state initialized", "width_px", a.st.widthPx, "height_pts", a.st.totalPts)
	}
}

func (a *Accumulator) hashOf(f *frame.Frame) *goimagehash.ImageHash {
	if !a.opts.SkipDuplicates {
		return nil
	}
	h, err := goimagehash.PerceptionHash(f.Img)
	if err != nil {
		return nil
	}
	return h
}
