package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic clock for store timestamps: every Now call
// returns a time one Step later than the previous one.
//
// Thread-safe.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	Step time.Duration
}

// NewStepClock starts at start; the first Now returns start.
func NewStepClock(start time.Time) *StepClock {
	return &StepClock{next: start, Step: time.Second}
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.Step)
	return now
}
