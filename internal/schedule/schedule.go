// Package schedule runs delayed tasks keyed by name. Scheduling a key that is
// already pending replaces the earlier task.
package schedule

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// RealClock is the wall clock.
func RealClock() Clock { return realClock{} }

// Entry describes a pending task.
type Entry struct {
	Key string
	Due time.Time
}

type task struct {
	id    uint64
	due   time.Time
	timer Timer
}

type Scheduler struct {
	mu     sync.Mutex
	clock  Clock
	logger *zap.Logger
	tasks  map[string]*task
	seq    uint64
	closed bool
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		clock:  realClock{},
		logger: logger,
		tasks:  make(map[string]*task),
	}
}

func (s *Scheduler) WithClock(clock Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Now()
}

// Schedule runs fn after delay. A pending task under the same key is
// cancelled first. It returns false once the scheduler is closed.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if prev := s.tasks[key]; prev != nil {
		prev.timer.Stop()
		s.logger.Debug("scheduled task replaced", zap.String("key", key))
	}

	s.seq++
	t := &task{id: s.seq, due: s.clock.Now().Add(delay)}
	id := t.id
	t.timer = s.clock.AfterFunc(delay, func() { s.fire(key, id, fn) })
	s.tasks[key] = t
	return true
}

func (s *Scheduler) fire(key string, id uint64, fn func()) {
	s.mu.Lock()
	current := s.tasks[key]
	if current == nil || current.id != id {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, key)
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", zap.String("key", key), zap.Any("panic", r))
		}
	}()
	fn()
}

// Cancel drops the pending task for key and reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[key]
	if t == nil {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, key)
	return true
}

// Pending lists pending tasks ordered by due time.
func (s *Scheduler) Pending() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.tasks))
	for key, t := range s.tasks {
		out = append(out, Entry{Key: key, Due: t.due})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Due.Equal(out[j].Due) {
			return out[i].Key < out[j].Key
		}
		return out[i].Due.Before(out[j].Due)
	})
	return out
}

// Close cancels every pending task and refuses new ones.
func (s *Scheduler) Close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	n := len(s.tasks)
	for key, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, key)
	}
	return n
}
