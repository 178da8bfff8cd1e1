// Package ratelimit provides a fixed-window request counter keyed by client
// identity. Counters live in process memory only; a restart starts everyone
// with a clean slate. Distinct policies are independent Limiter instances.
package ratelimit

import (
	"sync"
	"time"
)

type entry struct {
	count   int
	resetAt time.Time
}

type Limiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(window time.Duration, max int) *Limiter {
	return NewWithClock(window, max, time.Now)
}

// NewWithClock lets tests control time.
func NewWithClock(window time.Duration, max int, now func() time.Time) *Limiter {
	return &Limiter{
		window:  window,
		max:     max,
		now:     now,
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
	}
}

// Admit counts a request for key. It reports whether the request is allowed
// and, when it is not, how long until the window resets.
//
// The first request in a window creates the counter; once the window has
// elapsed the counter restarts at one. Bursts across a window boundary are
// an accepted tradeoff of the fixed-window scheme.
func (l *Limiter) Admit(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.entries[key] = &entry{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}

	e.count++
	if e.count > l.max {
		return false, e.resetAt.Sub(now)
	}

	return true, 0
}

// Start launches the background sweep that drops counters whose window has
// elapsed. It only ever deletes expired entries, never live ones.
func (l *Limiter) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-l.stopCh:
				return
			}
		}
	}()
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Sweep removes expired counters. Exported so tests can trigger it directly.
func (l *Limiter) Sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
		}
	}
}

// Len reports the number of tracked keys. Tests and metrics use it.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}
