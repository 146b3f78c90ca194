package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"discleanse/models"

	"github.com/stretchr/testify/assert"
)

func TestSummary(t *testing.T) {
	s := models.RunStats{
		BulkDeleted:       12000,
		IndividualDeleted: 345,
		ThreadsDrained:    4,
		ChannelsDeleted:   9,
		Elapsed:           3*time.Minute + 20*time.Second,
	}
	assert.Equal(t, "Completed: 12,345 messages, 4 threads, 9 channels deleted in 3m 20s", Summary(s))
}

func TestConsole_PlainWriter(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsole(&buf)
	assert.False(t, p.tty)

	channel := models.Container{ID: "10", Name: "chat", Kind: models.KindChannel}
	thread := models.Container{ID: "20", Name: "ideas", Kind: models.KindThread, ParentID: "10"}

	p.RunStarted(models.GuildTree{GuildID: "1", GuildName: "guild", Channels: []models.Container{channel}, Threads: []models.Container{thread}})
	p.PhaseStarted(models.PhaseClassify, 2)
	p.ContainerStarted(thread, models.PhaseClassify, 1, 2)
	p.PhaseStarted(models.PhaseIndividual, 2)
	p.ContainerStarted(thread, models.PhaseIndividual, 1, 2)
	p.Progress(models.ProgressEvent{Container: thread, Phase: models.PhaseIndividual, IndividualDeleted: 1, RemainingOld: 1500, ETA: 90 * time.Second})
	p.ContainerFinished(models.ContainerStats{Container: thread, IndividualDeleted: 1, Elapsed: time.Second})
	p.ContainerStarted(channel, models.PhaseIndividual, 2, 2)
	p.ContainerFinished(models.ContainerStats{Container: channel, Deleted: true})
	p.RunFinished(models.RunStats{IndividualDeleted: 1, ThreadsDrained: 1, ChannelsDeleted: 1, Elapsed: 2 * time.Second}, nil)

	out := buf.String()
	assert.Contains(t, out, "Guild: guild (1)")
	assert.Contains(t, out, "Found 1 text-based channels and 1 threads")
	assert.Contains(t, out, "[1/2] Thread: ideas\n")
	assert.Contains(t, out, "[2/2] #chat\n")
	assert.Contains(t, out, "  Deleted: 0 bulk, 1 individual (1,500 old left, ETA 1m 30s)\n")
	assert.Contains(t, out, "  Channel deleted\n")
	assert.Contains(t, out, "Completed: 1 messages, 1 threads, 1 channels deleted in 2s")
	assert.NotContains(t, out, "\r")
	assert.Equal(t, 1, strings.Count(out, "[1/2]"), "classification is not listed per container")
}

func TestConsole_TerminalRewritesLine(t *testing.T) {
	var buf bytes.Buffer
	p := &Console{w: &buf, tty: true}
	c := models.Container{ID: "10", Name: "chat", Kind: models.KindChannel}

	p.Progress(models.ProgressEvent{Container: c, Phase: models.PhaseBulk, BulkDeleted: 100})
	p.Progress(models.ProgressEvent{Container: c, Phase: models.PhaseBulk, BulkDeleted: 120})
	p.ContainerFinished(models.ContainerStats{Container: c, BulkDeleted: 120})

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r  Deleted: 100 bulk, 0 individual\r  Deleted: 120 bulk, 0 individual\r"))
	assert.Contains(t, out, "  Bulk deleted: 120\n")
}

func TestConsole_Aborted(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsole(&buf)
	p.RunFinished(models.RunStats{BulkDeleted: 2000}, errors.New("boom"))
	assert.Contains(t, buf.String(), "Aborted after 2,000 messages: boom")
	assert.NotContains(t, buf.String(), "Completed")
}
