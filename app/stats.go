package app

import (
	"sync"
	"time"
)

// SessionStats tracks the current capture duration and the accumulated
// capture time across sessions. Updates arrive from the workflow's phase
// listener; reads come from the command loop, hence the mutex.
type SessionStats struct {
	mu           sync.Mutex
	active       bool
	captureStart time.Time
	lastSession  time.Duration
	accumulated  time.Duration
}

// NewSessionStats returns a ready-to-use SessionStats.
func NewSessionStats() *SessionStats { return &SessionStats{} }

// OnPhase updates the stats from the current capturing state and timestamp.
func (s *SessionStats) OnPhase(capturing bool, now time.Time) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if capturing {
		if !s.active { // transition off -> on
			s.active = true
			s.captureStart = now
			s.lastSession = 0
		}
		s.lastSession = now.Sub(s.captureStart)
	} else if s.active { // transition on -> off
		s.lastSession = now.Sub(s.captureStart)
		s.accumulated += s.lastSession
		s.active = false
	}
}

// Values returns the current session duration and the total accumulated
// duration. The total includes the ongoing session when active.
func (s *SessionStats) Values(now time.Time) (session, total time.Duration) {
	if s == nil {
		return 0, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session = s.lastSession
	total = s.accumulated
	if s.active {
		session = now.Sub(s.captureStart)
		total += session
	}
	return
}
