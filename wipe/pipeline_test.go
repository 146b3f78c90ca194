package wipe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"discleanse/discord"
	"discleanse/discord/discordtest"
	"discleanse/models"
	"discleanse/scanner"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	recentAge = time.Hour
	oldAge    = 30 * 24 * time.Hour
)

type recorder struct {
	NopObserver
	mu       sync.Mutex
	events   []models.ProgressEvent
	finished []models.ContainerStats
	phases   []models.Phase
}

func (r *recorder) PhaseStarted(phase models.Phase, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
}

func (r *recorder) Progress(ev models.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ContainerFinished(s models.ContainerStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, s)
}

func newClient(t *testing.T, srv *discordtest.Server) *discord.Client {
	t.Helper()
	c, err := discord.NewClient(discord.Options{BaseURL: srv.URL, Token: "secret"})
	require.NoError(t, err)
	return c
}

func runWipe(t *testing.T, srv *discordtest.Server, opts Options) (models.RunStats, error) {
	t.Helper()
	c := newClient(t, srv)
	ctx := context.Background()
	tree, err := scanner.Enumerate(ctx, c, "1", scanner.Options{})
	require.NoError(t, err)
	return NewPipeline(c, opts).Run(ctx, tree)
}

func bulkSizes(t *testing.T, calls []discordtest.Call) []int {
	t.Helper()
	var sizes []int
	for _, c := range calls {
		if c.Method != http.MethodPost || !strings.HasSuffix(c.Path, "/bulk-delete") {
			continue
		}
		var body struct {
			Messages []string `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(c.Body, &body))
		sizes = append(sizes, len(body.Messages))
	}
	return sizes
}

func isSingleDelete(c discordtest.Call) bool {
	return c.Method == http.MethodDelete && discordtest.Match("channels/*/messages/*", c.Path)
}

func isChannelDelete(c discordtest.Call) bool {
	return c.Method == http.MethodDelete && discordtest.Match("channels/*", c.Path)
}

func TestRun_RecentAndOldMessages(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "chat", discordgo.ChannelTypeGuildText)
	srv.AddMessages("10", 30, oldAge)
	srv.AddMessages("10", 120, recentAge)

	stats, err := runWipe(t, srv, Options{})
	require.NoError(t, err)

	assert.Equal(t, []int{100, 20}, bulkSizes(t, srv.Calls()))
	assert.Equal(t, 30, srv.Count(http.MethodDelete, "channels/10/messages/*"))
	assert.Equal(t, 1, srv.Count(http.MethodDelete, "channels/10"))

	assert.Equal(t, 120, stats.BulkDeleted)
	assert.Equal(t, 30, stats.IndividualDeleted)
	assert.Equal(t, 1, stats.ChannelsDeleted)
	assert.Equal(t, 150, stats.Messages())
	assert.Empty(t, srv.ChannelIDs())
}

func TestRun_SingleRecentMessageUsesIndividualPath(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "chat", discordgo.ChannelTypeGuildText)
	srv.AddMessages("10", 1, recentAge)

	stats, err := runWipe(t, srv, Options{})
	require.NoError(t, err)

	assert.Empty(t, bulkSizes(t, srv.Calls()))
	assert.Equal(t, 1, srv.Count(http.MethodDelete, "channels/10/messages/*"))
	assert.Equal(t, 1, srv.Count(http.MethodDelete, "channels/10"))
	assert.Equal(t, 1, stats.IndividualDeleted)
	assert.Zero(t, stats.BulkDeleted)

	// The channel goes after its last message.
	calls := srv.Calls()
	assert.True(t, isChannelDelete(calls[len(calls)-1]))
}

func TestRun_LeftoverAfterFullChunks(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "chat", discordgo.ChannelTypeGuildText)
	srv.AddMessages("10", 201, recentAge)

	stats, err := runWipe(t, srv, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100}, bulkSizes(t, srv.Calls()))
	assert.Equal(t, 1, srv.Count(http.MethodDelete, "channels/10/messages/*"))
	assert.Equal(t, 200, stats.BulkDeleted)
	assert.Equal(t, 1, stats.IndividualDeleted)
}

func TestRun_EmptyGuild(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")

	stats, err := runWipe(t, srv, Options{})
	require.NoError(t, err)
	assert.Zero(t, stats.Messages())
	assert.Zero(t, stats.ChannelsDeleted)
	for _, c := range srv.Calls() {
		assert.Equal(t, http.MethodGet, c.Method, c.Path)
	}
}

func TestRun_RerunIsSafe(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "chat", discordgo.ChannelTypeGuildText)
	srv.AddMessages("10", 5, recentAge)

	_, err := runWipe(t, srv, Options{})
	require.NoError(t, err)

	stats, err := runWipe(t, srv, Options{})
	require.NoError(t, err)
	assert.Zero(t, stats.Messages())
	assert.Zero(t, stats.ChannelsDeleted)
}

func TestRun_GlobalOrdering(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "big", discordgo.ChannelTypeGuildText)
	srv.AddChannel("11", "small", discordgo.ChannelTypeGuildText)
	srv.AddThread("20", "thread big", "10", false, false)
	srv.AddThread("21", "thread small", "11", true, false)

	srv.AddMessages("10", 3, oldAge)
	srv.AddMessages("10", 5, recentAge)
	srv.AddMessages("11", 1, oldAge)
	srv.AddMessages("11", 50, recentAge)
	srv.AddMessages("20", 2, oldAge)
	srv.AddMessages("20", 10, recentAge)
	srv.AddMessages("21", 1, oldAge)
	srv.AddMessages("21", 3, recentAge)

	rec := &recorder{}
	stats, err := runWipe(t, srv, Options{Observer: rec})
	require.NoError(t, err)

	calls := srv.Calls()
	lastBulk, firstSingle := -1, -1
	var singles []string // container of each single delete, in order
	var channelDeletes []string
	for i, c := range calls {
		switch {
		case c.Method == http.MethodPost:
			lastBulk = i
		case isSingleDelete(c):
			if firstSingle < 0 {
				firstSingle = i
			}
			singles = append(singles, strings.Split(c.Path, "/")[2])
		case isChannelDelete(c):
			channelDeletes = append(channelDeletes, strings.Split(c.Path, "/")[2])
		}
	}
	require.Positive(t, firstSingle)
	assert.Less(t, lastBulk, firstSingle, "every bulk call precedes every single delete")

	// threads first, smallest first; then channels, smallest first
	assert.Equal(t, []string{"21", "20", "20", "11", "10", "10", "10"}, singles)
	assert.Equal(t, []string{"11", "10"}, channelDeletes)

	var order []string
	for _, s := range rec.finished {
		order = append(order, s.Container.ID)
	}
	assert.Equal(t, []string{"21", "20", "11", "10"}, order)
	assert.Equal(t, []models.Phase{models.PhaseClassify, models.PhaseBulk, models.PhaseIndividual}, rec.phases)

	assert.Equal(t, 68, stats.BulkDeleted)
	assert.Equal(t, 7, stats.IndividualDeleted)
	assert.Equal(t, 2, stats.ThreadsDrained)
	assert.Equal(t, 2, stats.ChannelsDeleted)
}

func TestRun_ProgressTracksGlobalRemaining(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "a", discordgo.ChannelTypeGuildText)
	srv.AddChannel("11", "b", discordgo.ChannelTypeGuildText)
	srv.AddMessages("10", 2, oldAge)
	srv.AddMessages("11", 3, oldAge)

	rec := &recorder{}
	_, err := runWipe(t, srv, Options{Observer: rec, DeleteInterval: time.Millisecond})
	require.NoError(t, err)

	var remaining []int
	for _, ev := range rec.events {
		require.Equal(t, models.PhaseIndividual, ev.Phase)
		remaining = append(remaining, ev.RemainingOld)
		assert.Equal(t, time.Duration(ev.RemainingOld)*time.Millisecond, ev.ETA)
	}
	assert.Equal(t, []int{4, 3, 2, 1, 0}, remaining)
}

func TestRun_SkipsSystemMessages(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "chat", discordgo.ChannelTypeGuildText)
	srv.AddSystemMessage("10", oldAge)
	srv.AddMessages("10", 2, oldAge)

	stats, err := runWipe(t, srv, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.IndividualDeleted)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 3, srv.Count(http.MethodDelete, "channels/10/messages/*"), "skips are not retried")
	assert.Equal(t, 1, stats.ChannelsDeleted)
}

func TestRun_BulkTooOldFallsBackToSingleDeletes(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "chat", discordgo.ChannelTypeGuildText)
	srv.AddMessages("10", 4, 15*24*time.Hour)

	// Classify as if two days ago, so the messages look bulk-eligible.
	past := func() time.Time { return time.Now().Add(-2 * 24 * time.Hour) }
	stats, err := runWipe(t, srv, Options{Now: past})
	require.NoError(t, err)

	assert.Equal(t, []int{4}, bulkSizes(t, srv.Calls()))
	assert.Equal(t, 4, srv.Count(http.MethodDelete, "channels/10/messages/*"))
	assert.Zero(t, stats.BulkDeleted)
	assert.Equal(t, 4, stats.IndividualDeleted)
	assert.Empty(t, srv.Messages("10"))
}

func TestRun_APIErrorAborts(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "chat", discordgo.ChannelTypeGuildText)
	srv.AddMessages("10", 3, recentAge)
	srv.Intercept = func(w http.ResponseWriter, r *http.Request, _ int) bool {
		if r.Method == http.MethodDelete && r.URL.Path == "/channels/10" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":50013,"message":"Missing Permissions"}`))
			return true
		}
		return false
	}

	stats, err := runWipe(t, srv, Options{})
	require.Error(t, err)
	assert.True(t, discord.IsStatus(err, http.StatusForbidden))
	assert.Zero(t, stats.ChannelsDeleted)
	assert.Empty(t, srv.Messages("10"), "bulk phase finished before the failure")
}

func TestRun_RateLimitIsTransparent(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "chat", discordgo.ChannelTypeGuildText)
	srv.AddMessages("10", 2, oldAge)
	var limited atomic.Bool
	srv.Intercept = func(w http.ResponseWriter, r *http.Request, _ int) bool {
		if r.Method == http.MethodDelete && limited.CompareAndSwap(false, true) {
			discordtest.RateLimited(w, "0.05")
			return true
		}
		return false
	}

	stats, err := runWipe(t, srv, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.IndividualDeleted)
	assert.Equal(t, 3, srv.Count(http.MethodDelete, "channels/10/messages/*"))
}

func TestRun_PacesSingleDeletes(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "chat", discordgo.ChannelTypeGuildText)
	srv.AddMessages("10", 3, oldAge)

	_, err := runWipe(t, srv, Options{DeleteInterval: 60 * time.Millisecond})
	require.NoError(t, err)

	var at []time.Time
	for _, c := range srv.Calls() {
		if isSingleDelete(c) {
			at = append(at, c.At)
		}
	}
	require.Len(t, at, 3)
	assert.GreaterOrEqual(t, at[2].Sub(at[0]), 110*time.Millisecond)
}

func TestPrepare_GeneralLast(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "General", discordgo.ChannelTypeGuildText)
	srv.AddChannel("11", "busy", discordgo.ChannelTypeGuildText)
	srv.AddMessages("11", 5, oldAge)

	c := newClient(t, srv)
	ctx := context.Background()
	tree, err := scanner.Enumerate(ctx, c, "1", scanner.Options{ReadOnly: true})
	require.NoError(t, err)

	plan, err := NewPipeline(c, Options{}).Prepare(ctx, tree)
	require.NoError(t, err)
	assert.Equal(t, "10", plan.Entries()[0].Container.ID, "empty channel sorts first")

	plan, err = NewPipeline(c, Options{GeneralLast: true}).Prepare(ctx, tree)
	require.NoError(t, err)
	entries := plan.Entries()
	assert.Equal(t, "10", entries[len(entries)-1].Container.ID)
	assert.Equal(t, 5, plan.OldRemaining())
}
