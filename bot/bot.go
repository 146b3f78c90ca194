package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discleanse/discord"
	"discleanse/models"
	"discleanse/scanner"
	"discleanse/utils"
	"discleanse/wipe"
)

// Bot owns one guild's gateway and runs wipes against it.
type Bot struct {
	Config    *models.Config
	Client    *discord.Client
	observers wipe.Observers
}

// NewBot builds the gateway from cfg; observers receive every run's events.
func NewBot(cfg *models.Config, observers ...wipe.Observer) (*Bot, error) {
	client, err := discord.NewClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Bot{Config: cfg, Client: client, observers: observers}, nil
}

// AddObserver attaches another observer for later runs.
func (b *Bot) AddObserver(o wipe.Observer) {
	b.observers = append(b.observers, o)
}

func (b *Bot) pipeline() *wipe.Pipeline {
	return wipe.NewPipeline(b.Client, wipe.Options{
		DeleteInterval: b.Config.Wipe.DeleteInterval,
		AgeThreshold:   b.Config.Wipe.AgeThreshold,
		GeneralLast:    b.Config.Wipe.GeneralLast,
		Observer:       b.observers,
	})
}

// enumerate validates guild access, then lists every container.
func (b *Bot) enumerate(ctx context.Context, readOnly bool) (models.GuildTree, error) {
	guildID := b.Config.GuildID
	guild, err := b.Client.Guild(ctx, guildID)
	if err != nil {
		return models.GuildTree{GuildID: guildID}, fmt.Errorf("cannot access guild %s: %w", guildID, err)
	}
	utils.Info("bot", "guild", fmt.Sprintf("%s (%s)", guild.Name, guild.ID))

	tree, err := scanner.Enumerate(ctx, b.Client, guildID, scanner.Options{ReadOnly: readOnly})
	tree.GuildName = guild.Name
	return tree, err
}

// Wipe removes every message, thread and text channel of the guild.
func (b *Bot) Wipe(ctx context.Context) (models.RunStats, error) {
	tree, err := b.enumerate(ctx, false)
	if err != nil {
		return models.RunStats{}, err
	}
	stats, err := b.pipeline().Run(ctx, tree)
	if err != nil {
		return stats, err
	}
	utils.Info("bot", "wipe", utils.Summary(stats))
	return stats, nil
}

// Report is the outcome of a dry run.
type Report struct {
	Tree    models.GuildTree
	Entries []models.PlanEntry // execution order; empty for a quick report
	Samples map[string]int     // quick report: first-page message count per container
	ETA     time.Duration      // projected individual phase; zero for a quick report
}

// BulkCalls sums the bulk deletes the plan needs.
func (r Report) BulkCalls() int {
	n := 0
	for _, e := range r.Entries {
		n += e.BulkCalls(discord.BulkMax)
	}
	return n
}

// IndividualCalls sums the single deletes the plan needs.
func (r Report) IndividualCalls() int {
	n := 0
	for _, e := range r.Entries {
		n += e.IndividualCalls(discord.BulkMax)
	}
	return n
}

// Estimate classifies the guild without changing anything. Archived threads
// stay archived. A quick estimate only samples the newest page of each
// container.
func (b *Bot) Estimate(ctx context.Context, quick bool) (*Report, error) {
	tree, err := b.enumerate(ctx, true)
	if err != nil {
		return nil, err
	}
	report := &Report{Tree: tree}
	p := b.pipeline()

	if quick {
		classifier := wipe.NewClassifier(b.Client, b.Config.Wipe.AgeThreshold, nil)
		report.Samples = make(map[string]int)
		for _, c := range append(append([]models.Container(nil), tree.Threads...), tree.Channels...) {
			n, err := classifier.Estimate(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			report.Samples[c.ID] = n
		}
		return report, nil
	}

	plan, err := p.Prepare(ctx, tree)
	if err != nil {
		return nil, err
	}
	report.Entries = plan.Entries()
	report.ETA = p.Projector().ProjectPlan(report.Entries)
	return report, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
