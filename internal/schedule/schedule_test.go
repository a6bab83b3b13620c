package schedule_test

import (
	"testing"
	"time"

	"configbot/internal/schedule"
	"configbot/internal/schedule/scheduletest"

	"go.uber.org/zap"
)

func newScheduler() (*schedule.Scheduler, *scheduletest.Clock) {
	clock := scheduletest.New(time.Unix(0, 0))
	s := schedule.New(zap.NewNop())
	s.WithClock(clock)
	return s, clock
}

func TestScheduleRunsAfterDelay(t *testing.T) {
	s, clock := newScheduler()
	ran := 0
	s.Schedule("g/ban/u1", time.Minute, func() { ran++ })

	clock.Advance(30 * time.Second)
	if ran != 0 {
		t.Fatalf("expected task pending, ran %d", ran)
	}
	clock.Advance(30 * time.Second)
	if ran != 1 {
		t.Fatalf("expected task run once, ran %d", ran)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("expected nothing pending")
	}
}

func TestScheduleReplacesSameKey(t *testing.T) {
	s, clock := newScheduler()
	var got []string
	s.Schedule("k", time.Minute, func() { got = append(got, "first") })
	s.Schedule("k", 2*time.Minute, func() { got = append(got, "second") })

	if pending := s.Pending(); len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}
	clock.Advance(3 * time.Minute)
	if len(got) != 1 || got[0] != "second" {
		t.Fatalf("expected only replacement to run, got %v", got)
	}
}

func TestCancel(t *testing.T) {
	s, clock := newScheduler()
	ran := false
	s.Schedule("k", time.Second, func() { ran = true })
	if !s.Cancel("k") {
		t.Fatalf("expected cancel to find task")
	}
	if s.Cancel("k") {
		t.Fatalf("expected second cancel to miss")
	}
	clock.Advance(time.Minute)
	if ran {
		t.Fatalf("expected cancelled task not to run")
	}
}

func TestCloseCancelsAll(t *testing.T) {
	s, clock := newScheduler()
	ran := 0
	s.Schedule("a", time.Second, func() { ran++ })
	s.Schedule("b", time.Second, func() { ran++ })

	if n := s.Close(); n != 2 {
		t.Fatalf("expected 2 cancelled, got %d", n)
	}
	if s.Schedule("c", time.Second, func() { ran++ }) {
		t.Fatalf("expected closed scheduler to refuse tasks")
	}
	clock.Advance(time.Minute)
	if ran != 0 {
		t.Fatalf("expected no task to run, ran %d", ran)
	}
	if clock.Waiting() != 0 {
		t.Fatalf("expected timers stopped")
	}
}

func TestPendingOrderedByDue(t *testing.T) {
	s, _ := newScheduler()
	s.Schedule("late", 2*time.Minute, func() {})
	s.Schedule("early", time.Minute, func() {})
	pending := s.Pending()
	if len(pending) != 2 || pending[0].Key != "early" || pending[1].Key != "late" {
		t.Fatalf("unexpected order %+v", pending)
	}
}

func TestPanickingTaskIsContained(t *testing.T) {
	s, clock := newScheduler()
	s.Schedule("boom", time.Second, func() { panic("boom") })
	ran := false
	s.Schedule("next", time.Second, func() { ran = true })
	clock.Advance(time.Second)
	if !ran {
		t.Fatalf("expected later task to run")
	}
}
