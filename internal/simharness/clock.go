package simharness

import (
	"sync"
	"time"
)

// VirtualClock is a controllable time source for deterministic tests: it
// implements internal/engine.Clock so a RuleSet can be driven through
// MaxDurationMs truncation and window checks without a real wall clock.
type VirtualClock struct {
	mu          sync.RWMutex
	current     time.Time
	timers      []*VirtualTimer
	nextTimerID int
}

// NewVirtualClock creates a clock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{
		current: start,
		timers:  make([]*VirtualTimer, 0, 16),
	}
}

// Now returns the current simulated time.
func (c *VirtualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Advance moves time forward by d and fires any timers whose deadline has
// passed, returning the timers that fired.
func (c *VirtualClock) Advance(d time.Duration) []*VirtualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	var fired []*VirtualTimer

	remaining := make([]*VirtualTimer, 0, len(c.timers))
	for _, timer := range c.timers {
		if !timer.deadline.After(c.current) {
			fired = append(fired, timer)
			timer.Fire()
		} else {
			remaining = append(remaining, timer)
		}
	}
	c.timers = remaining
	return fired
}

// After schedules callback to run once d has elapsed in simulated time.
func (c *VirtualClock) After(d time.Duration, callback func()) *VirtualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &VirtualTimer{
		id:       c.nextTimerID,
		deadline: c.current.Add(d),
		callback: callback,
		clock:    c,
	}
	c.nextTimerID++
	c.timers = append(c.timers, timer)
	return timer
}

// Sleep advances the clock by d (instant in wall-clock time).
func (c *VirtualClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// PendingTimers returns the number of timers still scheduled.
func (c *VirtualClock) PendingTimers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.timers)
}

// Reset rewinds the clock to t and discards all pending timers.
func (c *VirtualClock) Reset(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
	c.timers = c.timers[:0]
}

// VirtualTimer is a scheduled callback bound to a VirtualClock.
type VirtualTimer struct {
	id       int
	deadline time.Time
	callback func()
	clock    *VirtualClock
	fired    bool
	mu       sync.Mutex
}

// Fire runs the timer's callback exactly once.
func (t *VirtualTimer) Fire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired {
		return
	}
	t.fired = true
	if t.callback != nil {
		t.callback()
	}
}

// Cancel prevents the timer from firing if it hasn't already.
func (t *VirtualTimer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired {
		return false
	}

	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	remaining := make([]*VirtualTimer, 0, len(t.clock.timers))
	for _, timer := range t.clock.timers {
		if timer.id != t.id {
			remaining = append(remaining, timer)
		}
	}
	t.clock.timers = remaining
	t.fired = true
	return true
}
