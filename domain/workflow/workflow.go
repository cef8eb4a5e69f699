package workflow

import (
	"image"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/scrollshot-go/config"
	"github.com/soocke/scrollshot-go/domain/stitch"
)

// Deps are the external collaborators the workflow drives. Ownership flows
// one direction: the caller holds the workflow, never the reverse.
type Deps struct {
	Grabber      Grabber
	Sink         Sink
	Aligner      stitch.Aligner
	DisplayScale float64 // pixels per point of the captured display
}

// Workflow is the capture state machine. It owns at most one live session,
// arms the frame scheduler while capturing and forwards frames into the
// session's stitch accumulator. All transitions run on a single event loop;
// events invalid for the current phase are no-ops, which tolerates UI races
// such as duplicate stop clicks.
type Workflow struct {
	logger *slog.Logger
	cfg    *config.Config
	deps   Deps

	events chan interface{}
	phase  atomic.Int32
	closed atomic.Bool

	// Loop-owned session state.
	session   *Session
	anchor    image.Point
	region    image.Rectangle
	sched     *Scheduler
	acc       *stitch.Accumulator
	listeners []PhaseListener
}

type (
	evtActivate    struct{}
	evtPointerDown struct{ p image.Point }
	evtPointerDrag struct{ p image.Point }
	evtPointerUp   struct{}
	evtStop        struct{ done chan stopResult }
	evtCancel      struct{}
	evtAddListener struct{ l PhaseListener }
)

type stopResult struct {
	path string
	err  error
}

// New constructs the workflow and starts its event loop.
func New(logger *slog.Logger, cfg *config.Config, deps Deps) *Workflow {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if deps.DisplayScale <= 0 {
		deps.DisplayScale = 1
	}
	w := &Workflow{logger: logger, cfg: cfg, deps: deps, events: make(chan interface{}, 64)}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if logger != nil {
					logger.Error("workflow panic", "error", r, "stack", string(debug.Stack()))
				}
			}
		}()
		w.loop()
	}()
	return w
}

func (w *Workflow) loop() {
	for ev := range w.events {
		switch e := ev.(type) {
		case evtAddListener:
			w.listeners = append(w.listeners, e.l)
		case evtActivate:
			w.handleActivate()
		case evtPointerDown:
			w.handlePointerDown(e.p)
		case evtPointerDrag:
			w.handlePointerDrag(e.p)
		case evtPointerUp:
			w.handlePointerUp()
		case evtStop:
			w.handleStop(e.done)
		case evtCancel:
			w.handleCancel()
		}
	}
}

func (w *Workflow) handleActivate() {
	if w.current() != PhaseIdle {
		if w.logger != nil {
			w.logger.Info("activation ignored, session already live", "phase", w.current().String())
		}
		return
	}
	w.anchor = image.Point{}
	w.region = image.Rectangle{}
	w.transition(PhaseDrawing)
}

func (w *Workflow) handlePointerDown(p image.Point) {
	if w.current() != PhaseDrawing {
		return
	}
	w.anchor = p
	w.region = image.Rectangle{Min: p, Max: p}
}

func (w *Workflow) handlePointerDrag(p image.Point) {
	if w.current() != PhaseDrawing {
		return
	}
	w.region = image.Rect(w.anchor.X, w.anchor.Y, p.X, p.Y)
}

func (w *Workflow) handlePointerUp() {
	if w.current() != PhaseDrawing {
		return
	}
	region := w.region
	minSel := w.cfg.MinSelectionPts
	if region.Dx() <= minSel || region.Dy() <= minSel {
		if w.logger != nil {
			w.logger.Info("selection below minimum size, cancelled", "region", region.String())
		}
		w.clearSession()
		w.transition(PhaseIdle)
		return
	}

	first, err := w.deps.Grabber.CaptureRegion(region, w.deps.DisplayScale)
	if err != nil {
		if w.logger != nil {
			w.logger.Error("initial capture failed, session aborted", "error", err)
		}
		w.clearSession()
		w.transition(PhaseIdle)
		return
	}

	sess := &Session{ID: uuid.New(), Region: region, Quality: ParseQuality(w.cfg.Quality)}
	acc := stitch.NewAccumulator(sess.ID, w.deps.Aligner, stitch.Options{SkipDuplicates: w.cfg.SkipDuplicateFrames}, w.logger)
	acc.AddFrame(sess.ID, first)
	w.session = sess
	w.acc = acc
	w.rememberSelection(region)

	period := time.Duration(w.cfg.TickMillis) * time.Millisecond
	w.sched = NewScheduler(period, w.captureTick(sess.ID, region, acc))
	w.sched.Start()
	w.transition(PhaseCapturing)
}

// captureTick runs on the scheduler goroutine, concurrently with stitching:
// the next capture never waits for the previous frame's composite.
func (w *Workflow) captureTick(id uuid.UUID, region image.Rectangle, acc *stitch.Accumulator) func() {
	return func() {
		f, err := w.deps.Grabber.CaptureRegion(region, w.deps.DisplayScale)
		if err != nil {
			if w.logger != nil {
				w.logger.Debug("tick capture failed, frame wasted", "error", err)
			}
			return
		}
		acc.AddFrame(id, f)
	}
}

func (w *Workflow) handleStop(done chan stopResult) {
	if w.current() != PhaseCapturing {
		if w.logger != nil {
			w.logger.Info("stop ignored", "phase", w.current().String())
		}
		done <- stopResult{}
		return
	}
	w.sched.Stop()
	result := w.acc.Finalize(w.session.ID)
	w.acc.Close()

	var res stopResult
	if result == nil {
		if w.logger != nil {
			w.logger.Warn("nothing accumulated, nothing saved")
		}
	} else {
		res.path, res.err = w.deps.Sink.Save(result, w.session.Quality)
		if w.logger != nil {
			if res.err != nil {
				w.logger.Error("save failed", "error", res.err)
			} else {
				w.logger.Info("capture saved", "path", res.path, "height_pts", result.Height)
			}
		}
	}
	w.clearSession()
	w.transition(PhaseIdle)
	done <- res
}

func (w *Workflow) handleCancel() {
	phase := w.current()
	if phase != PhaseDrawing && phase != PhaseCapturing {
		return
	}
	if w.sched != nil {
		w.sched.Stop()
	}
	if w.acc != nil {
		// Discard without finalizing; queued frames drain harmlessly.
		w.acc.Discard()
		w.acc.Close()
	}
	w.clearSession()
	w.transition(PhaseIdle)
}

func (w *Workflow) clearSession() {
	w.session = nil
	w.sched = nil
	w.acc = nil
	w.anchor = image.Point{}
	w.region = image.Rectangle{}
}

// rememberSelection persists the confirmed region so the next run can offer it.
func (w *Workflow) rememberSelection(r image.Rectangle) {
	w.cfg.SelectionX = r.Min.X
	w.cfg.SelectionY = r.Min.Y
	w.cfg.SelectionW = r.Dx()
	w.cfg.SelectionH = r.Dy()
}

func (w *Workflow) transition(next Phase) {
	prev := w.current()
	if prev == next {
		return
	}
	w.phase.Store(int32(next))
	if w.logger != nil {
		w.logger.Debug("workflow phase transition", "from", prev.String(), "to", next.String())
	}
	for _, l := range w.listeners {
		l(prev, next)
	}
}

func (w *Workflow) current() Phase { return Phase(w.phase.Load()) }

// Public API. Methods enqueue events; the loop applies them in order.

// Current returns the workflow phase.
func (w *Workflow) Current() Phase { return w.current() }

// AddListener registers l for phase transitions.
func (w *Workflow) AddListener(l PhaseListener) { w.send(evtAddListener{l: l}) }

// Activate moves Idle to Drawing; ignored in any other phase.
func (w *Workflow) Activate() { w.send(evtActivate{}) }

// PointerDown anchors the selection rectangle at p (points).
func (w *Workflow) PointerDown(p image.Point) { w.send(evtPointerDown{p: p}) }

// PointerDrag extends the selection rectangle from the anchor to p.
func (w *Workflow) PointerDrag(p image.Point) { w.send(evtPointerDrag{p: p}) }

// PointerUp confirms the selection and, if large enough, starts capturing.
func (w *Workflow) PointerUp() { w.send(evtPointerUp{}) }

// Stop ends the live capture session. It blocks until all frames submitted
// before the stop have been stitched and the result handed to the sink, then
// returns the save location. A stop outside Capturing is a no-op.
func (w *Workflow) Stop() (string, error) {
	done := make(chan stopResult, 1)
	if !w.send(evtStop{done: done}) {
		return "", nil
	}
	r := <-done
	return r.path, r.err
}

// Cancel abandons the session in any phase; nothing is saved.
func (w *Workflow) Cancel() { w.send(evtCancel{}) }

// Close shuts down the event loop. The workflow must not be used afterwards.
func (w *Workflow) Close() {
	if w.closed.CompareAndSwap(false, true) {
		close(w.events)
	}
}

func (w *Workflow) send(ev interface{}) bool {
	if w.closed.Load() {
		return false
	}
	w.events <- ev
	return true
}
