// Package util holds small helpers shared by the commands.
package util

import (
	"sync"
	"time"
)

// SkipThrottler allows an action at most once per period, skipping the calls in between.
// It is safe for concurrent use.
type SkipThrottler struct {
	d   time.Duration
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewSkipThrottler(d time.Duration) *SkipThrottler {
	return &SkipThrottler{d: d, now: time.Now}
}

// Ok reports whether the action may run now, and if so starts a new period.
func (tt *SkipThrottler) Ok() bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	now := tt.now()
	if !tt.last.IsZero() && now.Before(tt.last.Add(tt.d)) {
		return false
	}
	tt.last = now
	return true
}
