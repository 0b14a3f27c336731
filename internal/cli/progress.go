package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/spice-tally/internal/model"
)

// Progress shows completed day tasks as a progress bar. It implements engine.Observer.
type Progress struct {
	bar    *progressbar.ProgressBar
	writer io.Writer
	mu     sync.Mutex
	done   int
}

// NewProgress creates a bar expecting total day tasks across all strategies.
func NewProgress(writer io.Writer, total int, description string) *Progress {
	p := &Progress{writer: writer}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// DayCompleted advances the bar by one day.
func (p *Progress) DayCompleted(_ string, _ model.DayResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// AggregationFinished is a no-op; the bar completes when every day is counted.
func (p *Progress) AggregationFinished(string, model.AggregateResult, time.Duration, error) {}

// Completed returns the number of day tasks seen.
func (p *Progress) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish completes the bar, for runs that stopped early.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar.IsFinished() {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}
