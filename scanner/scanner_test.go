package scanner

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"discleanse/discord"
	"discleanse/discord/discordtest"
	"discleanse/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, srv *discordtest.Server) *discord.Client {
	t.Helper()
	c, err := discord.NewClient(discord.Options{BaseURL: srv.URL, Token: "secret"})
	require.NoError(t, err)
	return c
}

func ids(cs []models.Container) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestIsTextBased(t *testing.T) {
	assert.True(t, IsTextBased(discordgo.ChannelTypeGuildText))
	assert.True(t, IsTextBased(discordgo.ChannelTypeGuildNews))
	assert.True(t, IsTextBased(discordgo.ChannelTypeGuildForum))
	assert.False(t, IsTextBased(discordgo.ChannelTypeGuildVoice))
	assert.False(t, IsTextBased(discordgo.ChannelTypeGuildCategory))
	assert.True(t, IsThread(discordgo.ChannelTypeGuildPrivateThread))
	assert.False(t, IsThread(discordgo.ChannelTypeGuildText))
}

func TestEnumerate(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "general", discordgo.ChannelTypeGuildText)
	srv.AddChannel("11", "news", discordgo.ChannelTypeGuildNews)
	srv.AddChannel("12", "forum", discordgo.ChannelTypeGuildForum)
	srv.AddChannel("13", "voice", discordgo.ChannelTypeGuildVoice)
	srv.AddChannel("14", "category", discordgo.ChannelTypeGuildCategory)
	srv.AddThread("20", "active", "10", false, false)
	srv.AddThread("21", "archived public", "10", true, false)
	srv.AddThread("22", "archived private", "12", true, true)

	tree, err := Enumerate(context.Background(), newClient(t, srv), "1", Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"10", "11", "12"}, ids(tree.Channels))
	assert.ElementsMatch(t, []string{"20", "21", "22"}, ids(tree.Threads))
	for _, th := range tree.Threads {
		assert.Equal(t, models.KindThread, th.Kind)
		assert.NotEmpty(t, th.ParentID)
	}

	// Only archived threads are reopened.
	assert.Equal(t, 2, srv.Count(http.MethodPatch, "channels/*"))
	assert.Equal(t, 0, srv.Count(http.MethodPatch, "channels/20"))
}

func TestEnumerate_ArchivedListingFailureIsSwallowed(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "general", discordgo.ChannelTypeGuildText)
	srv.AddChannel("11", "locked", discordgo.ChannelTypeGuildText)
	srv.AddThread("20", "hidden", "11", true, true)
	srv.AddThread("21", "visible", "10", true, false)
	srv.FailArchived["11"] = true

	tree, err := Enumerate(context.Background(), newClient(t, srv), "1", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"21"}, ids(tree.Threads))
}

func TestEnumerate_UnarchiveFailureIsSwallowed(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "general", discordgo.ChannelTypeGuildText)
	srv.AddThread("21", "archived", "10", true, false)
	srv.FailUnarchive = true

	tree, err := Enumerate(context.Background(), newClient(t, srv), "1", Options{})
	require.NoError(t, err)
	assert.Len(t, tree.Threads, 1)
	assert.Equal(t, 1, srv.Count(http.MethodPatch, "channels/21"))
}

func TestEnumerate_PaginatesAndDeduplicates(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.AddChannel("10", "general", discordgo.ChannelTypeGuildText)
	for i := 0; i < 5; i++ {
		srv.AddThread(fmt.Sprintf("3%d", i), "t", "10", true, false)
	}
	srv.ArchivedPageSize = 2

	tree, err := Enumerate(context.Background(), newClient(t, srv), "1", Options{ReadOnly: true})
	require.NoError(t, err)
	assert.Len(t, tree.Threads, 5)
	assert.Equal(t, 3, srv.Count(http.MethodGet, "channels/10/threads/archived/public"))
	assert.Zero(t, srv.Count(http.MethodPatch, "channels/*"), "read-only runs never unarchive")
}

func TestEnumerate_EmptyGuild(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")

	tree, err := Enumerate(context.Background(), newClient(t, srv), "1", Options{})
	require.NoError(t, err)
	assert.True(t, tree.Empty())
}

func TestEnumerate_ChannelListFailureIsFatal(t *testing.T) {
	srv := discordtest.New(t, "1", "guild")
	srv.Intercept = func(w http.ResponseWriter, r *http.Request, n int) bool {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":50001,"message":"Missing Access"}`))
		return true
	}

	_, err := Enumerate(context.Background(), newClient(t, srv), "1", Options{})
	require.Error(t, err)
	assert.True(t, discord.IsCode(err, discord.CodeMissingAccess))
}
