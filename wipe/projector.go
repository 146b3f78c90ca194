package wipe

import (
	"time"

	"discleanse/discord"
	"discleanse/models"
)

// Projector turns a count of pending single deletes into a duration.
type Projector struct {
	Pace time.Duration
}

// Project returns remaining × pace.
func (p Projector) Project(remaining int) time.Duration {
	if remaining <= 0 {
		return 0
	}
	return time.Duration(remaining) * p.Pace
}

// ProjectPlan estimates a whole run: bulk calls are treated as free, every
// individual delete costs one pace interval.
func (p Projector) ProjectPlan(entries []models.PlanEntry) time.Duration {
	n := 0
	for _, e := range entries {
		n += e.IndividualCalls(discord.BulkMax)
	}
	return p.Project(n)
}
