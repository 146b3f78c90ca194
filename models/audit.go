package models

import "time"

// Run statuses stored by the audit log.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunFailed   = "failed"
)

// RunRecord is one row of the audit log's runs table.
type RunRecord struct {
	ID                string
	GuildID           string
	GuildName         string
	StartedAt         time.Time
	FinishedAt        time.Time // zero while running
	Status            string
	BulkDeleted       int
	IndividualDeleted int
	Skipped           int
	ChannelsDeleted   int
	Error             string
}

// Messages returns the number of messages the run deleted.
func (r RunRecord) Messages() int {
	return r.BulkDeleted + r.IndividualDeleted
}

// ContainerRecord is one drained container of a run.
type ContainerRecord struct {
	RunID             string
	ContainerID       string
	Name              string
	Kind              ContainerKind
	BulkDeleted       int
	IndividualDeleted int
	Skipped           int
	Deleted           bool
	Elapsed           time.Duration
}
