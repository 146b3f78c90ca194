package models

import "time"

// Phase identifies a stage of the pipeline.
type Phase string

const (
	PhaseClassify   Phase = "classify"
	PhaseBulk       Phase = "bulk"
	PhaseIndividual Phase = "individual"
)

// ProgressEvent is emitted after every deletion step.
type ProgressEvent struct {
	Container         Container
	Phase             Phase
	BulkDeleted       int // within Container
	IndividualDeleted int // within Container
	RemainingOld      int // across all containers
	ETA               time.Duration
}

// PlanEntry describes one container's classified workload.
type PlanEntry struct {
	Container Container
	Recent    int
	Old       int
}

// BulkCalls returns how many bulk-delete calls the recent bucket needs.
func (p PlanEntry) BulkCalls(chunk int) int {
	calls := p.Recent / chunk
	if rem := p.Recent % chunk; rem >= 2 {
		calls++
	}
	return calls
}

// IndividualCalls returns how many single deletes the entry needs, including
// a lone leftover recent message.
func (p PlanEntry) IndividualCalls(chunk int) int {
	n := p.Old
	if p.Recent%chunk == 1 {
		n++
	}
	return n
}
