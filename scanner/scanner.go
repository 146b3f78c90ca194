// Package scanner walks a guild's channel and thread tree and collects the
// text-capable containers that hold messages.
package scanner

import (
	"context"
	"fmt"
	"time"

	"discleanse/models"
	"discleanse/utils"

	"github.com/bwmarrin/discordgo"
)

// API is the slice of the gateway the scanner needs.
type API interface {
	GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
	GuildThreadsActive(ctx context.Context, guildID string) (*discordgo.ThreadsList, error)
	ThreadsArchived(ctx context.Context, channelID string, private bool, before *time.Time) (*discordgo.ThreadsList, error)
	UnarchiveThread(ctx context.Context, threadID string) error
}

// Options tunes enumeration.
type Options struct {
	// ReadOnly skips unarchiving, for runs that never delete.
	ReadOnly bool
}

// IsTextBased reports whether a channel type holds messages or threads we wipe.
func IsTextBased(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews, discordgo.ChannelTypeGuildForum:
		return true
	}
	return false
}

// IsThread reports whether a channel type is a thread.
func IsThread(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildNewsThread, discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread:
		return true
	}
	return false
}

// Enumerate lists the guild's text channels and all of their threads, active
// and archived, and unarchives every archived thread.
func Enumerate(ctx context.Context, api API, guildID string, opts Options) (models.GuildTree, error) {
	tree := models.GuildTree{GuildID: guildID}

	channels, err := api.GuildChannels(ctx, guildID)
	if err != nil {
		return tree, fmt.Errorf("failed to list channels for guild %s: %w", guildID, err)
	}
	for _, ch := range channels {
		if IsTextBased(ch.Type) {
			tree.Channels = append(tree.Channels, models.Container{ID: ch.ID, Name: ch.Name, Kind: models.KindChannel})
		}
	}
	utils.Info("scanner", "Enumerate", fmt.Sprintf("found %d text-based channels of %d", len(tree.Channels), len(channels)))

	processed := make(map[string]bool)
	add := func(th *discordgo.Channel) {
		if th == nil || processed[th.ID] {
			return
		}
		processed[th.ID] = true
		tree.Threads = append(tree.Threads, threadContainer(th))
	}

	active, err := api.GuildThreadsActive(ctx, guildID)
	if err != nil {
		return tree, fmt.Errorf("failed to list active threads for guild %s: %w", guildID, err)
	}
	for _, th := range active.Threads {
		add(th)
	}

	for _, ch := range tree.Channels {
		for _, private := range []bool{false, true} {
			for _, th := range archivedThreads(ctx, api, ch.ID, private) {
				add(th)
			}
		}
	}
	utils.Info("scanner", "Enumerate", fmt.Sprintf("found %d threads", len(tree.Threads)))

	if !opts.ReadOnly {
		unarchiveAll(ctx, api, tree.Threads)
	}
	return tree, ctx.Err()
}

func threadContainer(th *discordgo.Channel) models.Container {
	c := models.Container{ID: th.ID, Name: th.Name, Kind: models.KindThread, ParentID: th.ParentID}
	// Without metadata we cannot tell, so treat it as archived and unarchive it.
	c.Archived = th.ThreadMetadata == nil || th.ThreadMetadata.Archived
	return c
}

// archivedThreads pages through one channel's archived threads. Failures are
// not fatal: a channel that cannot list them contributes what it returned so far.
func archivedThreads(ctx context.Context, api API, channelID string, private bool) []*discordgo.Channel {
	kind := "public"
	if private {
		kind = "private"
	}

	var (
		out    []*discordgo.Channel
		before *time.Time
	)
	for {
		list, err := api.ThreadsArchived(ctx, channelID, private, before)
		if err != nil {
			utils.Debug("scanner", "archivedThreads", fmt.Sprintf("skipping %s archived threads of %s: %v", kind, channelID, err))
			return out
		}
		if len(list.Threads) == 0 {
			return out
		}
		out = append(out, list.Threads...)

		last := list.Threads[len(list.Threads)-1]
		if !list.HasMore || last.ThreadMetadata == nil {
			return out
		}
		// The API paginates by archive timestamp.
		t := last.ThreadMetadata.ArchiveTimestamp
		if before != nil && !t.Before(*before) {
			return out
		}
		before = &t
	}
}

func unarchiveAll(ctx context.Context, api API, threads []models.Container) {
	for _, th := range threads {
		if !th.Archived {
			continue
		}
		if err := api.UnarchiveThread(ctx, th.ID); err != nil {
			// Already open, or no permission; later calls surface real problems.
			utils.Debug("scanner", "unarchive", fmt.Sprintf("could not unarchive thread %s: %v", th.ID, err))
			continue
		}
		utils.Debug("scanner", "unarchive", "unarchived thread "+th.ID)
	}
}
