package engine

import (
	"context"
	"time"

	"github.com/Veraticus/spice-tally/internal/model"
)

// Classifier labels one message. Implementations must be safe for concurrent use;
// an error marks the message unclassified without stopping the batch.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, msg model.Message) (model.Label, error)
}

// Observer is notified as day tasks and aggregations finish.
// DayCompleted is called from worker goroutines.
type Observer interface {
	DayCompleted(strategy string, day model.DayResult)
	AggregationFinished(strategy string, result model.AggregateResult, elapsed time.Duration, err error)
}

// Observers fans notifications out to several observers.
type Observers []Observer

// DayCompleted notifies every observer.
func (o Observers) DayCompleted(strategy string, day model.DayResult) {
	for _, obs := range o {
		obs.DayCompleted(strategy, day)
	}
}

// AggregationFinished notifies every observer.
func (o Observers) AggregationFinished(strategy string, result model.AggregateResult, elapsed time.Duration, err error) {
	for _, obs := range o {
		obs.AggregationFinished(strategy, result, elapsed, err)
	}
}

type nopObserver struct{}

func (nopObserver) DayCompleted(string, model.DayResult) {}

func (nopObserver) AggregationFinished(string, model.AggregateResult, time.Duration, error) {}
