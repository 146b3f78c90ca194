package wipe

import (
	"context"
	"fmt"
	"time"

	"discleanse/discord"
	"discleanse/models"
)

// DefaultAgeThreshold is the platform's bulk-delete ceiling.
const DefaultAgeThreshold = 14 * 24 * time.Hour

// MessageSource pages through a container's history, newest first.
type MessageSource interface {
	ChannelMessages(ctx context.Context, channelID, before string) ([]models.MessageRef, error)
}

// Classifier splits a container's messages into bulk-eligible and old buckets.
type Classifier struct {
	source    MessageSource
	threshold time.Duration
	now       func() time.Time
}

// NewClassifier builds a Classifier. A zero threshold means DefaultAgeThreshold.
func NewClassifier(source MessageSource, threshold time.Duration, now func() time.Time) *Classifier {
	if threshold <= 0 {
		threshold = DefaultAgeThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &Classifier{source: source, threshold: threshold, now: now}
}

// Classify walks the whole history of containerID. Ages are judged once, at
// the moment classification starts.
func (c *Classifier) Classify(ctx context.Context, containerID string) (models.Buckets, error) {
	var (
		buckets models.Buckets
		before  string
	)
	cutoff := c.now().Add(-c.threshold)

	for {
		page, err := c.source.ChannelMessages(ctx, containerID, before)
		if err != nil {
			return buckets, fmt.Errorf("failed to fetch messages of %s: %w", containerID, err)
		}
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			if m.Timestamp.After(cutoff) {
				buckets.Recent = append(buckets.Recent, m)
			} else {
				buckets.Old = append(buckets.Old, m)
			}
		}
		if len(page) < discord.MessagePageSize {
			break
		}
		before = page[len(page)-1].ID
	}
	return buckets, nil
}

// Estimate returns the size of the first page, capped at a page. It is only
// good for coarse sorting.
func (c *Classifier) Estimate(ctx context.Context, containerID string) (int, error) {
	page, err := c.source.ChannelMessages(ctx, containerID, "")
	if err != nil {
		return 0, fmt.Errorf("failed to estimate messages of %s: %w", containerID, err)
	}
	return min(len(page), discord.MessagePageSize), nil
}
