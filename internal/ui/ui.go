// Package ui renders CLI progress and per-image consensus tables.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/avelsen/vision-consensus/internal/consensus"
	"github.com/avelsen/vision-consensus/internal/runner"
)

// Color codes for terminal output.
const (
	Reset      = "\033[0m"
	Bold       = "\033[1m"
	Dim        = "\033[2m"
	Green      = "\033[32m"
	Yellow     = "\033[33m"
	Blue       = "\033[34m"
	Cyan       = "\033[36m"
	Red        = "\033[31m"
	BoldGreen  = "\033[1;32m"
	BoldYellow = "\033[1;33m"
	BoldCyan   = "\033[1;36m"
)

// CallStatus represents the current state of one model call.
type CallStatus int

const (
	StatusPending CallStatus = iota
	StatusRunning
	StatusComplete
	StatusFailed
)

type callState struct {
	model     string
	status    CallStatus
	startTime time.Time
	endTime   time.Time
	err       error
}

// Progress displays real-time progress of model calls.
type Progress struct {
	mu        sync.Mutex
	w         io.Writer
	calls     map[string]*callState
	order     []string
	startTime time.Time
	ticker    *time.Ticker
	done      chan struct{}
	quiet     bool
	rendered  bool
}

// NewProgress creates a progress display tracking one line per model.
func NewProgress(w io.Writer, models []string, quiet bool) *Progress {
	p := &Progress{
		w:         w,
		calls:     make(map[string]*callState),
		order:     models,
		startTime: time.Now(),
		done:      make(chan struct{}),
		quiet:     quiet,
	}

	for _, m := range models {
		p.calls[m] = &callState{model: m, status: StatusPending}
	}

	return p
}

// Start begins the refresh loop.
func (p *Progress) Start() {
	if p.quiet {
		return
	}

	p.ticker = time.NewTicker(100 * time.Millisecond)
	go func() {
		for {
			select {
			case <-p.ticker.C:
				p.render()
			case <-p.done:
				return
			}
		}
	}()

	p.render()
}

// Stop ends the progress display.
func (p *Progress) Stop() {
	if p.quiet {
		return
	}

	close(p.done)
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.rendered {
		p.clearLines(len(p.order) + 2)
	}
}

// CallStarted marks a model call as in flight.
func (p *Progress) CallStarted(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if state, ok := p.calls[model]; ok {
		state.status = StatusRunning
		state.startTime = time.Now()
	}
}

// CallCompleted marks a model call as finished.
func (p *Progress) CallCompleted(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if state, ok := p.calls[model]; ok {
		state.status = StatusComplete
		state.endTime = time.Now()
	}
}

// CallFailed marks a model call as failed.
func (p *Progress) CallFailed(model string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if state, ok := p.calls[model]; ok {
		state.status = StatusFailed
		state.endTime = time.Now()
		state.err = err
	}
}

func (p *Progress) render() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rendered {
		p.clearLines(len(p.order) + 2)
	}
	p.rendered = true

	elapsed := time.Since(p.startTime)
	fmt.Fprintf(p.w, "%s⚡ Querying %d models%s %s(%.1fs)%s\n",
		BoldCyan, len(p.order), Reset,
		Dim, elapsed.Seconds(), Reset)

	for _, model := range p.order {
		p.renderCallLine(p.calls[model])
	}

	fmt.Fprintln(p.w)
}

func (p *Progress) renderCallLine(state *callState) {
	var icon, color, status string

	switch state.status {
	case StatusPending:
		icon = "○"
		color = Dim
		status = "pending"
	case StatusRunning:
		icon = spinner(time.Now())
		color = Yellow
		status = fmt.Sprintf("waiting... %.1fs", time.Since(state.startTime).Seconds())
	case StatusComplete:
		icon = "✓"
		color = Green
		status = fmt.Sprintf("done in %.1fs", state.endTime.Sub(state.startTime).Seconds())
	case StatusFailed:
		icon = "✗"
		color = Red
		status = fmt.Sprintf("failed: %v", state.err)
	}

	fmt.Fprintf(p.w, "  %s%s%s %-25s %s%s%s\n",
		color, icon, Reset,
		truncate(state.model, 25),
		color, status, Reset)
}

func (p *Progress) clearLines(n int) {
	for i := 0; i < n; i++ {
		fmt.Fprintf(p.w, "\033[A\033[K") // Move up, clear line
	}
}

func spinner(t time.Time) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	idx := int(t.UnixMilli()/100) % len(frames)
	return frames[idx]
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max-1] + "…"
	}
	return s
}

// PrintHeader prints a styled header.
func PrintHeader(w io.Writer, images, models int, mode runner.Mode) {
	fmt.Fprintf(w, "\n%s╭─ Vision Consensus ─╮%s\n", BoldCyan, Reset)
	fmt.Fprintf(w, "%s│%s %d image(s) × %d model(s), %s mode\n", Cyan, Reset, images, models, mode)
	fmt.Fprintf(w, "%s╰────────────────────╯%s\n\n", Cyan, Reset)
}

// PrintPhase prints a phase header.
func PrintPhase(w io.Writer, phase string) {
	fmt.Fprintf(w, "%s▸ %s%s\n", BoldYellow, phase, Reset)
}

// PrintSuccess prints a success message.
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s✓ %s%s\n", Green, msg, Reset)
}

// PrintError prints an error message.
func PrintError(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s✗ %s%s\n", Red, msg, Reset)
}

// PrintImageResult prints one image's answers as a status table.
func PrintImageResult(w io.Writer, res runner.ImageResult) {
	fmt.Fprintf(w, "\n%s┌─ %s ─┐%s\n", Blue, res.Filename, Reset)

	if res.ProcessingError != "" {
		fmt.Fprintf(w, "%s│%s %sprocessing failed: %s%s\n", Blue, Reset, Red, res.ProcessingError, Reset)
		fmt.Fprintf(w, "%s└──────────────────┘%s\n", Blue, Reset)
		return
	}

	for _, a := range res.Answers {
		text := a.Text
		if !a.OK {
			text = a.ErrorMessage
		}
		note := ""
		if a.Unresolved {
			note = Dim + " (unresolved)" + Reset
		}
		fmt.Fprintf(w, "%s│%s %-25s %s%-10s%s %s%s\n",
			Blue, Reset,
			truncate(a.Model, 25),
			statusColor(a.Status), a.Status, Reset,
			truncate(text, 50), note)
	}
	fmt.Fprintf(w, "%s└──────────────────┘%s\n", Blue, Reset)
}

func statusColor(s consensus.Status) string {
	switch s {
	case consensus.StatusConsensus:
		return BoldGreen
	case consensus.StatusPartial:
		return Yellow
	case consensus.StatusDifferent:
		return Red
	default:
		return Dim
	}
}

// PrintSummary prints a summary of the run.
func PrintSummary(w io.Writer, images, agreed, callsSaved int, totalTime time.Duration) {
	fmt.Fprintf(w, "\n%s─── Summary ───%s\n", Dim, Reset)
	fmt.Fprintf(w, "Images analyzed: %d (%s%d with full consensus%s)\n",
		images, Green, agreed, Reset)
	if callsSaved > 0 {
		fmt.Fprintf(w, "Model calls saved by batching: %d\n", callsSaved)
	}
	fmt.Fprintf(w, "Total time: %.1fs\n", totalTime.Seconds())
}

// IsTerminal checks if the given file is a terminal.
func IsTerminal(f *os.File) bool {
	stat, _ := f.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}
