package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/spice-tally/internal/model"
)

// funcClassifier adapts a function to Classifier.
type funcClassifier struct {
	fn   func(ctx context.Context, msg model.Message) (model.Label, error)
	name string
}

func (f funcClassifier) Name() string { return f.name }

func (f funcClassifier) Classify(ctx context.Context, msg model.Message) (model.Label, error) {
	return f.fn(ctx, msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustRange(start, end string) model.DateRange {
	r, err := model.NewDateRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// recordingObserver collects notifications.
type recordingObserver struct {
	days     []model.DayResult
	finished []string
	mu       sync.Mutex
}

func (r *recordingObserver) DayCompleted(_ string, day model.DayResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.days = append(r.days, day)
}

func (r *recordingObserver) AggregationFinished(strategy string, _ model.AggregateResult, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, strategy)
}
