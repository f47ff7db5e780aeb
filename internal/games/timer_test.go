package games

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerSlot_Fires(t *testing.T) {
	var s timerSlot
	done := make(chan struct{})
	s.Schedule(5*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	if s.Pending() {
		t.Error("pending after firing")
	}
	if s.Cancel() {
		t.Error("cancel after firing reported a pending timer")
	}
}

func TestTimerSlot_CancelIsIdempotent(t *testing.T) {
	var s timerSlot
	var fired int32
	s.Schedule(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	if !s.Cancel() {
		t.Error("first cancel found nothing pending")
	}
	if s.Cancel() {
		t.Error("second cancel reported a pending timer")
	}
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("cancelled timer fired")
	}
}

func TestTimerSlot_ScheduleReplaces(t *testing.T) {
	var s timerSlot
	var first, second int32
	done := make(chan struct{})
	s.Schedule(10*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	s.Schedule(30*time.Millisecond, func() { atomic.AddInt32(&second, 1); close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("replacement timer did not fire")
	}
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&first) != 0 {
		t.Error("replaced timer fired")
	}
	if atomic.LoadInt32(&second) != 1 {
		t.Error("replacement fired more than once")
	}
}

func TestTimerSlot_CancelNeverScheduled(t *testing.T) {
	var s timerSlot
	if s.Cancel() {
		t.Error("empty slot reported a pending timer")
	}
}
