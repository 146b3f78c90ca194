// Package wipe classifies every container of a guild and drains it: all recent
// messages through bulk deletes first, then old messages one at a time,
// threads before channels, smallest first.
package wipe

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"discleanse/discord"
	"discleanse/models"
	"discleanse/utils"

	"golang.org/x/time/rate"
)

// DefaultDeleteInterval paces single deletes at about one per second.
const DefaultDeleteInterval = time.Second

// API is the slice of the gateway the pipeline needs.
type API interface {
	MessageSource
	DeleteMessage(ctx context.Context, channelID, messageID string) (bool, error)
	BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error
	DeleteChannel(ctx context.Context, channelID string) error
}

// Options tunes a Pipeline.
type Options struct {
	DeleteInterval time.Duration // zero disables pacing, negative means the default
	AgeThreshold   time.Duration
	GeneralLast    bool // keep channels named "general" at the end of the channel group
	Observer       Observer
	Now            func() time.Time
}

// Pipeline runs one wipe. It is not safe for concurrent use.
type Pipeline struct {
	api         API
	classifier  *Classifier
	pacer       *rate.Limiter
	projector   Projector
	observer    Observer
	generalLast bool
}

// NewPipeline builds a Pipeline over api.
func NewPipeline(api API, opts Options) *Pipeline {
	interval := opts.DeleteInterval
	if interval < 0 {
		interval = DefaultDeleteInterval
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	return &Pipeline{
		api:         api,
		classifier:  NewClassifier(api, opts.AgeThreshold, opts.Now),
		pacer:       rate.NewLimiter(limit, 1),
		projector:   Projector{Pace: interval},
		observer:    observer,
		generalLast: opts.GeneralLast,
	}
}

// Projector returns the ETA projector matching the pipeline's pacing.
func (p *Pipeline) Projector() Projector {
	return p.projector
}

// work is one container's classified state for the run.
type work struct {
	container models.Container
	buckets   models.Buckets
	stats     models.ContainerStats
}

// Plan is the classified, ordered workload of a run.
type Plan struct {
	threads  []*work
	channels []*work
}

func (pl *Plan) ordered() []*work {
	return append(append([]*work(nil), pl.threads...), pl.channels...)
}

// Entries describes the plan in execution order.
func (pl *Plan) Entries() []models.PlanEntry {
	all := pl.ordered()
	entries := make([]models.PlanEntry, 0, len(all))
	for _, w := range all {
		entries = append(entries, models.PlanEntry{Container: w.container, Recent: len(w.buckets.Recent), Old: len(w.buckets.Old)})
	}
	return entries
}

// OldRemaining is the number of old messages across all containers.
func (pl *Plan) OldRemaining() int {
	n := 0
	for _, w := range pl.ordered() {
		n += len(w.buckets.Old)
	}
	return n
}

// Prepare classifies every container and orders the result: threads first,
// then channels, each group ascending by old-message count.
func (p *Pipeline) Prepare(ctx context.Context, tree models.GuildTree) (*Plan, error) {
	total := len(tree.Threads) + len(tree.Channels)
	p.observer.PhaseStarted(models.PhaseClassify, total)

	plan := &Plan{}
	position := 0
	classify := func(c models.Container) (*work, error) {
		position++
		p.observer.ContainerStarted(c, models.PhaseClassify, position, total)
		buckets, err := p.classifier.Classify(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		utils.Debug("wipe", "classify", fmt.Sprintf("%s %s: %d recent, %d old", c.Kind, c.ID, len(buckets.Recent), len(buckets.Old)))
		return &work{container: c, buckets: buckets, stats: models.ContainerStats{Container: c}}, nil
	}

	for _, c := range tree.Threads {
		w, err := classify(c)
		if err != nil {
			return nil, err
		}
		plan.threads = append(plan.threads, w)
	}
	for _, c := range tree.Channels {
		w, err := classify(c)
		if err != nil {
			return nil, err
		}
		plan.channels = append(plan.channels, w)
	}

	byOld := func(a, b *work) int {
		return cmp.Compare(len(a.buckets.Old), len(b.buckets.Old))
	}
	slices.SortStableFunc(plan.threads, byOld)
	slices.SortStableFunc(plan.channels, func(a, b *work) int {
		if p.generalLast {
			ag, bg := isGeneral(a.container), isGeneral(b.container)
			if ag != bg {
				if ag {
					return 1
				}
				return -1
			}
		}
		return byOld(a, b)
	})
	return plan, nil
}

func isGeneral(c models.Container) bool {
	return strings.EqualFold(c.Name, "general")
}

// Run wipes every container of tree and then deletes the channels.
func (p *Pipeline) Run(ctx context.Context, tree models.GuildTree) (models.RunStats, error) {
	start := time.Now()
	var stats models.RunStats
	p.observer.RunStarted(tree)

	err := p.run(ctx, tree, &stats)
	stats.Elapsed = time.Since(start)
	p.observer.RunFinished(stats, err)
	return stats, err
}

func (p *Pipeline) run(ctx context.Context, tree models.GuildTree, stats *models.RunStats) error {
	if tree.Empty() {
		return nil
	}
	plan, err := p.Prepare(ctx, tree)
	if err != nil {
		return err
	}
	order := plan.ordered()

	// Every recent bucket drains before any old bucket starts.
	bulkTotal := 0
	for _, w := range order {
		if len(w.buckets.Recent) > 0 {
			bulkTotal++
		}
	}
	p.observer.PhaseStarted(models.PhaseBulk, bulkTotal)
	position := 0
	remaining := plan.OldRemaining()
	for _, w := range order {
		if len(w.buckets.Recent) == 0 {
			continue
		}
		position++
		p.observer.ContainerStarted(w.container, models.PhaseBulk, position, bulkTotal)
		if err := p.drainRecent(ctx, w, remaining); err != nil {
			return err
		}
	}

	// Threads vanish with their parent, so a channel may only go once its
	// threads are drained.
	pendingThreads := make(map[string]int)
	for _, w := range plan.threads {
		pendingThreads[w.container.ParentID]++
	}

	p.observer.PhaseStarted(models.PhaseIndividual, len(order))
	for i, w := range order {
		p.observer.ContainerStarted(w.container, models.PhaseIndividual, i+1, len(order))
		if err := p.drainOld(ctx, w, &remaining); err != nil {
			return err
		}
		if w.container.IsThread() {
			pendingThreads[w.container.ParentID]--
		} else {
			if n := pendingThreads[w.container.ID]; n > 0 {
				return fmt.Errorf("channel %s still has %d undrained threads", w.container.ID, n)
			}
			if err := p.teardown(ctx, w); err != nil {
				return err
			}
		}
		stats.Add(w.stats)
		p.observer.ContainerFinished(w.stats)
	}
	return nil
}

func (p *Pipeline) drainRecent(ctx context.Context, w *work, remaining int) error {
	started := time.Now()
	defer func() { w.stats.Elapsed += time.Since(started) }()

	id := w.container.ID
	recent := w.buckets.Recent
	for start := 0; start < len(recent); start += discord.BulkMax {
		chunk := recent[start:min(start+discord.BulkMax, len(recent))]
		if len(chunk) < discord.BulkMin {
			if err := p.deleteSingle(ctx, w, chunk[0], models.PhaseBulk, remaining); err != nil {
				return err
			}
			continue
		}

		ids := make([]string, len(chunk))
		for i, m := range chunk {
			ids[i] = m.ID
		}
		err := p.api.BulkDeleteMessages(ctx, id, ids)
		if discord.IsCode(err, discord.CodeBulkTooOld) {
			// Some ids aged past the ceiling since classification.
			utils.Warn("wipe", "bulk", fmt.Sprintf("bulk delete in %s rejected as too old, deleting %d messages one by one", id, len(chunk)))
			for _, m := range chunk {
				if err := p.deleteSingle(ctx, w, m, models.PhaseBulk, remaining); err != nil {
					return err
				}
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("bulk delete in %s failed: %w", id, err)
		}
		w.stats.BulkDeleted += len(chunk)
		p.emit(w, models.PhaseBulk, remaining)
	}
	w.buckets.Recent = nil
	return nil
}

func (p *Pipeline) drainOld(ctx context.Context, w *work, remaining *int) error {
	started := time.Now()
	defer func() { w.stats.Elapsed += time.Since(started) }()

	for _, m := range w.buckets.Old {
		*remaining--
		if err := p.deleteSingle(ctx, w, m, models.PhaseIndividual, *remaining); err != nil {
			return err
		}
	}
	w.buckets.Old = nil
	return nil
}

// deleteSingle deletes one message through the paced individual path.
func (p *Pipeline) deleteSingle(ctx context.Context, w *work, m models.MessageRef, phase models.Phase, remaining int) error {
	if err := p.pacer.Wait(ctx); err != nil {
		return err
	}
	deleted, err := p.api.DeleteMessage(ctx, w.container.ID, m.ID)
	if err != nil {
		return fmt.Errorf("failed to delete message %s in %s: %w", m.ID, w.container.ID, err)
	}
	if deleted {
		w.stats.IndividualDeleted++
	} else {
		w.stats.Skipped++
		utils.Info("wipe", "delete", fmt.Sprintf("skipped system message %s in %s", m.ID, w.container.ID))
	}
	p.emit(w, phase, remaining)
	return nil
}

func (p *Pipeline) teardown(ctx context.Context, w *work) error {
	started := time.Now()
	if err := p.api.DeleteChannel(ctx, w.container.ID); err != nil {
		return fmt.Errorf("failed to delete channel %s: %w", w.container.ID, err)
	}
	w.stats.Deleted = true
	w.stats.Elapsed += time.Since(started)
	return nil
}

func (p *Pipeline) emit(w *work, phase models.Phase, remaining int) {
	p.observer.Progress(models.ProgressEvent{
		Container:         w.container,
		Phase:             phase,
		BulkDeleted:       w.stats.BulkDeleted,
		IndividualDeleted: w.stats.IndividualDeleted,
		RemainingOld:      remaining,
		ETA:               p.projector.Project(remaining),
	})
}
