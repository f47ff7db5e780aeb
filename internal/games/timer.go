package games

import (
	"sync"
	"time"
)

// timerSlot holds at most one pending callback. Scheduling replaces the previous timer, and a replaced or
// cancelled callback never runs even if its time.Timer had already fired.
type timerSlot struct {
	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// Schedule stops any pending timer and runs fn after d.
func (s *timerSlot) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.seq != seq {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending timer. It reports whether one was pending; cancelling twice is a no-op.
func (s *timerSlot) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	s.seq++
	return true
}

// Pending reports whether a callback is scheduled.
func (s *timerSlot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
