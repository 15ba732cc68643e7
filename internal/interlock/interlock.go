// Package interlock implements the process-wide half-duplex latch that keeps
// capture and playback from overlapping. Any engine that is about to play
// audio acquires the latch; every segmenter checks it before treating a frame
// as speech. The latch counts acquisitions so that overlapping playback
// bursts from both engines extend the held period instead of ending it early.
package interlock

import (
	"log/slog"
	"sync"
)

// Interlock is a refcounted latch shared by all engines in the process.
// The zero value is not usable; create instances with [New].
type Interlock struct {
	mu      sync.Mutex
	count   int
	holders map[string]int
}

// New returns a released Interlock.
func New() *Interlock {
	return &Interlock{holders: make(map[string]int)}
}

// Acquire increments the hold count on behalf of owner. Multiple acquisitions
// by the same owner stack and must be balanced by the same number of Release
// calls.
func (l *Interlock) Acquire(owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	l.holders[owner]++
}

// Release decrements the hold count on behalf of owner. Releasing below zero
// indicates a bookkeeping bug in the caller; the count is clamped to zero and
// the inconsistency is logged rather than propagated.
func (l *Interlock) Release(owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count <= 0 {
		slog.Error("interlock: release without matching acquire, clamping to zero", "owner", owner)
		l.count = 0
		delete(l.holders, owner)
		return
	}
	l.count--

	n := l.holders[owner] - 1
	switch {
	case n > 0:
		l.holders[owner] = n
	case n == 0:
		delete(l.holders, owner)
	default:
		slog.Error("interlock: owner released more than it acquired", "owner", owner)
		delete(l.holders, owner)
	}
}

// Held reports whether any engine currently holds the latch.
func (l *Interlock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count > 0
}

// Count returns the current hold count.
func (l *Interlock) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Holders returns the names of all owners with at least one outstanding
// acquisition. The order is unspecified.
func (l *Interlock) Holders() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.holders))
	for name := range l.holders {
		out = append(out, name)
	}
	return out
}
