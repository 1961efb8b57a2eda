package sync

import "time"

// Deadline is the cooperative wall-clock budget checked at loop boundaries.
// There is no mid-run cancellation signal; the scan finishes the current
// unit of work and yields once the budget is spent.
type Deadline struct {
	start  time.Time
	budget time.Duration
	now    func() time.Time
}

// NewDeadline starts a budget from the real clock.
func NewDeadline(budget time.Duration) *Deadline {
	return NewDeadlineWithClock(budget, time.Now)
}

// NewDeadlineWithClock starts a budget from an injected clock. Tests use
// this to simulate exhaustion.
func NewDeadlineWithClock(budget time.Duration, now func() time.Time) *Deadline {
	return &Deadline{start: now(), budget: budget, now: now}
}

// Elapsed returns the time consumed so far.
func (d *Deadline) Elapsed() time.Duration {
	return d.now().Sub(d.start)
}

// Expired reports whether the budget is spent.
func (d *Deadline) Expired() bool {
	return d.Elapsed() >= d.budget
}
