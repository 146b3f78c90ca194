package wipe

import "discleanse/models"

// Observer receives pipeline progress. Implementations must not block for long:
// they run on the pipeline's only thread of control.
type Observer interface {
	RunStarted(tree models.GuildTree)
	PhaseStarted(phase models.Phase, containers int)
	ContainerStarted(c models.Container, phase models.Phase, position, total int)
	Progress(ev models.ProgressEvent)
	ContainerFinished(stats models.ContainerStats)
	RunFinished(stats models.RunStats, err error)
}

// NopObserver ignores every event. Embed it to implement only some methods.
type NopObserver struct{}

func (NopObserver) RunStarted(models.GuildTree)                               {}
func (NopObserver) PhaseStarted(models.Phase, int)                            {}
func (NopObserver) ContainerStarted(models.Container, models.Phase, int, int) {}
func (NopObserver) Progress(models.ProgressEvent)                             {}
func (NopObserver) ContainerFinished(models.ContainerStats)                   {}
func (NopObserver) RunFinished(models.RunStats, error)                        {}

// Observers fans every event out, in order.
type Observers []Observer

func (o Observers) RunStarted(tree models.GuildTree) {
	for _, ob := range o {
		ob.RunStarted(tree)
	}
}

func (o Observers) PhaseStarted(phase models.Phase, containers int) {
	for _, ob := range o {
		ob.PhaseStarted(phase, containers)
	}
}

func (o Observers) ContainerStarted(c models.Container, phase models.Phase, position, total int) {
	for _, ob := range o {
		ob.ContainerStarted(c, phase, position, total)
	}
}

func (o Observers) Progress(ev models.ProgressEvent) {
	for _, ob := range o {
		ob.Progress(ev)
	}
}

func (o Observers) ContainerFinished(stats models.ContainerStats) {
	for _, ob := range o {
		ob.ContainerFinished(stats)
	}
}

func (o Observers) RunFinished(stats models.RunStats, err error) {
	for _, ob := range o {
		ob.RunFinished(stats, err)
	}
}
