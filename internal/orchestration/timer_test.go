package orchestration

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSimpleTimerScheduleAfter(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	id := timer.ScheduleAfter(10*time.Millisecond, "test fire", func() { close(fired) })
	if id == "" {
		t.Fatal("Expected non-empty timer ID")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("Expected scheduled function to fire")
	}
}

func TestSimpleTimerCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	var fired atomic.Bool
	id := timer.ScheduleAfter(30*time.Millisecond, "cancelled", func() { fired.Store(true) })
	timer.Cancel(id)

	time.Sleep(80 * time.Millisecond)
	if fired.Load() {
		t.Error("Expected cancelled timer not to fire")
	}
}

func TestSimpleTimerCancelUnknownIsNoOp(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()
	timer.Cancel("timer_999")
	timer.Cancel("")
}

func TestSimpleTimerStopCancelsAll(t *testing.T) {
	timer := NewSimpleTimer()

	var fired atomic.Int32
	for i := 0; i < 5; i++ {
		timer.ScheduleAfter(30*time.Millisecond, "batch", func() { fired.Add(1) })
	}
	timer.Stop()
	timer.Stop()

	time.Sleep(80 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("Expected no timers to fire after Stop, got %d", n)
	}
	if active := timer.ListActive(); len(active) != 0 {
		t.Errorf("Expected no active timers after Stop, got %d", len(active))
	}
}

func TestSimpleTimerListActive(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	timer.ScheduleAfter(time.Minute, "long one", func() {})
	timer.ScheduleAfter(time.Minute, "long two", func() {})

	active := timer.ListActive()
	if len(active) != 2 {
		t.Fatalf("Expected 2 active timers, got %d", len(active))
	}
	for _, info := range active {
		if info.Description == "" {
			t.Error("Expected timer info to carry its description")
		}
		if !info.ExpiresAt.After(info.ScheduledAt) {
			t.Error("Expected expiry after scheduling time")
		}
	}
}

func TestSimpleTimerFiredTimerRemoved(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	timer.ScheduleAfter(5*time.Millisecond, "quick", func() { close(fired) })
	<-fired

	// Cleanup runs right after fn; give it a beat.
	time.Sleep(20 * time.Millisecond)
	if active := timer.ListActive(); len(active) != 0 {
		t.Errorf("Expected fired timer to be removed, got %d active", len(active))
	}
}
