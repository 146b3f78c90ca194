package models

import "time"

// RateLimitState is the budget reported by one response.
type RateLimitState struct {
	Bucket     string
	Remaining  int
	ResetAfter time.Duration
	Present    bool // false when the response carried no rate-limit headers
}

// Exhausted reports whether the response used up the bucket's budget.
func (s RateLimitState) Exhausted() bool {
	return s.Present && s.Remaining == 0
}

// ContainerStats is the outcome of draining one container.
type ContainerStats struct {
	Container         Container
	BulkDeleted       int
	IndividualDeleted int
	Skipped           int
	Deleted           bool // the container itself was removed
	Elapsed           time.Duration
}

// Messages returns the number of messages actually deleted.
func (s ContainerStats) Messages() int {
	return s.BulkDeleted + s.IndividualDeleted
}

// RunStats aggregates every container of a run.
type RunStats struct {
	BulkDeleted       int
	IndividualDeleted int
	Skipped           int
	ThreadsDrained    int
	ChannelsDeleted   int
	Elapsed           time.Duration
}

// Add folds one container's stats into the run totals.
func (r *RunStats) Add(s ContainerStats) {
	r.BulkDeleted += s.BulkDeleted
	r.IndividualDeleted += s.IndividualDeleted
	r.Skipped += s.Skipped
	if s.Container.IsThread() {
		r.ThreadsDrained++
	} else if s.Deleted {
		r.ChannelsDeleted++
	}
}

// Messages returns the number of messages deleted in the run.
func (r RunStats) Messages() int {
	return r.BulkDeleted + r.IndividualDeleted
}
