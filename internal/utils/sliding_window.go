package utils

import (
	"sync"
	"time"
)

// SlidingWindow counts hits inside a trailing time window.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(now)
	return len(w.hits)
}

func (w *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}

// WindowSet keeps one SlidingWindow per key, e.g. per user.
type WindowSet struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string]*SlidingWindow
}

func NewWindowSet(window time.Duration) *WindowSet {
	return &WindowSet{window: window, windows: make(map[string]*SlidingWindow)}
}

// Allow records a hit for key and reports whether it is within limit.
func (s *WindowSet) Allow(key string, limit int, now time.Time) bool {
	if limit <= 0 || s.window <= 0 {
		return true
	}
	s.mu.Lock()
	w := s.windows[key]
	if w == nil {
		w = NewSlidingWindow(s.window)
		s.windows[key] = w
	}
	s.mu.Unlock()

	if w.Count(now) >= limit {
		return false
	}
	w.Add(now)
	return true
}
