package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"discleanse/models"

	"github.com/bwmarrin/discordgo"
)

// Bulk delete accepts between BulkMin and BulkMax ids per call.
const (
	BulkMin = 2
	BulkMax = 100

	// MessagePageSize is the fixed page size for message history.
	MessagePageSize = 100
)

// Guild fetches the guild, which also proves the credential can see it.
func (c *Client) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	var guild discordgo.Guild
	if err := c.Call(ctx, http.MethodGet, "/guilds/"+guildID, nil, &guild); err != nil {
		return nil, err
	}
	return &guild, nil
}

// GuildChannels lists every channel of the guild.
func (c *Client) GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	var channels []*discordgo.Channel
	if err := c.Call(ctx, http.MethodGet, "/guilds/"+guildID+"/channels", nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// GuildThreadsActive lists the guild's active threads.
func (c *Client) GuildThreadsActive(ctx context.Context, guildID string) (*discordgo.ThreadsList, error) {
	var list discordgo.ThreadsList
	if err := c.Call(ctx, http.MethodGet, "/guilds/"+guildID+"/threads/active", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ThreadsArchived lists one page of a channel's archived public or private
// threads. A nil before asks for the most recently archived page.
func (c *Client) ThreadsArchived(ctx context.Context, channelID string, private bool, before *time.Time) (*discordgo.ThreadsList, error) {
	kind := "public"
	if private {
		kind = "private"
	}
	path := "/channels/" + channelID + "/threads/archived/" + kind
	if before != nil {
		q := url.Values{}
		q.Set("before", before.UTC().Format(time.RFC3339Nano))
		path += "?" + q.Encode()
	}

	var list discordgo.ThreadsList
	if err := c.Call(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// UnarchiveThread reopens an archived thread so its messages can be deleted.
func (c *Client) UnarchiveThread(ctx context.Context, threadID string) error {
	archived := false
	return c.Call(ctx, http.MethodPatch, "/channels/"+threadID, &discordgo.ChannelEdit{Archived: &archived}, nil)
}

// messageRef decodes only the fields needed for deletion.
type messageRef struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// ChannelMessages returns one page of up to MessagePageSize messages, newest
// first, older than before when it is set.
func (c *Client) ChannelMessages(ctx context.Context, channelID, before string) ([]models.MessageRef, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(MessagePageSize))
	if before != "" {
		q.Set("before", before)
	}

	var page []messageRef
	if err := c.Call(ctx, http.MethodGet, "/channels/"+channelID+"/messages?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}

	refs := make([]models.MessageRef, 0, len(page))
	for _, m := range page {
		ts := m.Timestamp
		if ts.IsZero() {
			// Snowflakes carry their creation time.
			if t, err := discordgo.SnowflakeTimestamp(m.ID); err == nil {
				ts = t
			}
		}
		refs = append(refs, models.MessageRef{ID: m.ID, Timestamp: ts})
	}
	return refs, nil
}

// DeleteMessage deletes one message. It reports false without error when the
// message is a system message that cannot be deleted.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) (bool, error) {
	err := c.Call(ctx, http.MethodDelete, "/channels/"+channelID+"/messages/"+messageID, nil, nil)
	if err == nil {
		return true, nil
	}
	if IsCode(err, CodeSystemMessage) {
		return false, nil
	}
	return false, err
}

// ErrBulkSize is returned for bulk deletes outside [BulkMin, BulkMax].
var ErrBulkSize = errors.New("bulk delete requires 2-100 message ids")

// BulkDeleteMessages deletes 2 to 100 messages younger than 14 days in one call.
func (c *Client) BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error {
	if len(messageIDs) < BulkMin || len(messageIDs) > BulkMax {
		return fmt.Errorf("%w: got %d", ErrBulkSize, len(messageIDs))
	}
	body := struct {
		Messages []string `json:"messages"`
	}{Messages: messageIDs}
	return c.Call(ctx, http.MethodPost, "/channels/"+channelID+"/messages/bulk-delete", body, nil)
}

// DeleteChannel deletes a channel together with its threads.
func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	return c.Call(ctx, http.MethodDelete, "/channels/"+channelID, nil, nil)
}
