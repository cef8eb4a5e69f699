package workflow

import (
	"sync/atomic"
	"time"
)

// Scheduler fires the capture tick at a fixed period while a session is in
// the capturing phase. One scheduler serves one session; construct a fresh
// one per session.
//
// Stop is synchronous: once it returns no new tick callback starts. A
// callback already running may still finish; its frame is discarded
// downstream by the accumulator's session check.
type Scheduler struct {
	period time.Duration
	tick   func()
	quit   chan struct{}
	armed  atomic.Bool
}

// NewScheduler builds a scheduler invoking tick every period.
func NewScheduler(period time.Duration, tick func()) *Scheduler {
	if period <= 0 {
		period = 250 * time.Millisecond
	}
	return &Scheduler{period: period, tick: tick, quit: make(chan struct{})}
}

// Start arms the scheduler. Repeated calls are no-ops.
func (s *Scheduler) Start() {
	if !s.armed.CompareAndSwap(false, true) {
		return
	}
	go s.loop()
}

func (s *Scheduler) loop() {
	t := time.NewTicker(s.period)
	defer t.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-t.C:
			if !s.armed.Load() {
				return
			}
			s.tick()
		}
	}
}

// Stop disarms the scheduler. Safe to call more than once.
func (s *Scheduler) Stop() {
	if s.armed.CompareAndSwap(true, false) {
		close(s.quit)
	}
}
