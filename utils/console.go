package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"discleanse/models"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const clearWidth = 60

// Console prints pipeline progress for an operator. On a terminal the live
// counter line is rewritten in place; elsewhere each update is its own line.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	tty  bool
	live bool // a rewritable line is on screen
}

// NewConsole writes to w. Line rewriting is enabled when w is a terminal.
func NewConsole(w io.Writer) *Console {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &Console{w: w, tty: tty}
}

func (p *Console) printf(format string, args ...any) {
	if p.live {
		fmt.Fprint(p.w, "\r"+strings.Repeat(" ", clearWidth)+"\r")
		p.live = false
	}
	fmt.Fprintf(p.w, format, args...)
}

func (p *Console) RunStarted(tree models.GuildTree) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\ndiscleanse - Starting...\n")
	p.printf("Guild: %s (%s)\n", tree.GuildName, tree.GuildID)
	p.printf("Found %d text-based channels and %d threads\n\n", len(tree.Channels), len(tree.Threads))
}

func (p *Console) PhaseStarted(phase models.Phase, containers int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch phase {
	case models.PhaseClassify:
		p.printf("Indexing %d containers...\n", containers)
	case models.PhaseBulk:
		p.printf("\nBulk phase: %d containers with recent messages\n\n", containers)
	case models.PhaseIndividual:
		p.printf("\nIndividual phase: %d containers\n\n", containers)
	}
}

func (p *Console) ContainerStarted(c models.Container, phase models.Phase, position, total int) {
	if phase == models.PhaseClassify {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("[%d/%d] %s\n", position, total, label(c))
}

func (p *Console) Progress(ev models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := fmt.Sprintf("  Deleted: %d bulk, %d individual", ev.BulkDeleted, ev.IndividualDeleted)
	if ev.Phase == models.PhaseIndividual {
		line += fmt.Sprintf(" (%s old left, ETA %s)", humanize.Comma(int64(ev.RemainingOld)), FormatDuration(ev.ETA))
	}
	if p.tty {
		fmt.Fprint(p.w, "\r"+line)
		p.live = true
		return
	}
	fmt.Fprintln(p.w, line)
}

func (p *Console) ContainerFinished(s models.ContainerStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("  Bulk deleted: %d\n", s.BulkDeleted)
	p.printf("  Individual deleted: %d\n", s.IndividualDeleted)
	if s.Skipped > 0 {
		p.printf("  Skipped: %d\n", s.Skipped)
	}
	if s.Deleted {
		p.printf("  Channel deleted\n")
	}
	p.printf("  Done in %s\n\n", FormatDuration(s.Elapsed))
}

func (p *Console) RunFinished(s models.RunStats, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("%s\n", strings.Repeat("─", 50))
	if err != nil {
		p.printf("Aborted after %s messages: %v\n", humanize.Comma(int64(s.Messages())), err)
		return
	}
	p.printf("%s\n", Summary(s))
}

// Summary is the one-line account of a finished run.
func Summary(s models.RunStats) string {
	return fmt.Sprintf("Completed: %s messages, %d threads, %d channels deleted in %s",
		humanize.Comma(int64(s.Messages())), s.ThreadsDrained, s.ChannelsDeleted, FormatDuration(s.Elapsed))
}

func label(c models.Container) string {
	if c.IsThread() {
		return "Thread: " + c.Name
	}
	return "#" + c.Name
}
