// Package engine partitions messages by day, classifies each day in parallel
// and merges the per-day counts.
package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spice-tally/internal/common"
	"github.com/Veraticus/spice-tally/internal/model"
)

// maxErrorsPerDay caps the error strings kept for a single day.
const maxErrorsPerDay = 10

// Aggregator counts matched messages per day using one Classifier.
// It holds no state between calls.
type Aggregator struct {
	classifier Classifier
	opts       options
}

// NewAggregator creates an aggregator for the given strategy.
func NewAggregator(classifier Classifier, opts ...Option) *Aggregator {
	return &Aggregator{
		classifier: classifier,
		opts:       buildOptions(opts),
	}
}

// Strategy returns the classifier name.
func (a *Aggregator) Strategy() string {
	return a.classifier.Name()
}

// AggregateDates parses the YYYY-MM-DD bounds and aggregates.
func (a *Aggregator) AggregateDates(ctx context.Context, messages []model.Message, start, end string) (model.AggregateResult, error) {
	r, err := model.NewDateRange(start, end)
	if err != nil {
		return model.AggregateResult{}, err
	}
	return a.Aggregate(ctx, messages, r)
}

// Aggregate runs one task per day of r and merges their counts. Every day of r
// is present in the result. Per-message and per-day failures are recorded in
// the result; only an invalid range or a canceled ctx return an error.
func (a *Aggregator) Aggregate(ctx context.Context, messages []model.Message, r model.DateRange) (model.AggregateResult, error) {
	if err := r.Validate(); err != nil {
		return model.AggregateResult{}, err
	}

	strategy := a.classifier.Name()
	started := time.Now()

	part := PartitionByDay(messages, r)
	if part.Skipped > 0 {
		a.opts.logger.Warn("skipped messages with unparseable dates",
			"strategy", strategy,
			"count", part.Skipped)
	}

	days := r.Days()
	dayResults := make([]model.DayResult, len(days))

	var g errgroup.Group
	g.SetLimit(a.opts.maxWorkers)

	for i, day := range days {
		bucket := part.Bucket(day)
		g.Go(func() error {
			res := a.runDay(ctx, day, bucket)
			dayResults[i] = res
			a.opts.observer.DayCompleted(strategy, res)
			return nil
		})
	}
	_ = g.Wait()

	result := merge(strategy, dayResults, part.Skipped)

	err := ctx.Err()
	if err != nil {
		err = fmt.Errorf("aggregation canceled: %w", err)
	}

	a.opts.observer.AggregationFinished(strategy, result, time.Since(started), err)
	a.opts.logger.Info("aggregation complete",
		"strategy", strategy,
		"range", r.String(),
		"days", len(days),
		"matched", result.Total(),
		"skipped", result.Skipped,
		"errors", len(result.Errors),
		"elapsed", time.Since(started))

	return result, err
}

// runDay classifies one bucket sequentially. The returned result is owned by
// the caller; a panic keeps the counts gathered so far.
func (a *Aggregator) runDay(ctx context.Context, day time.Time, bucket []model.Message) (res model.DayResult) {
	res = model.DayResult{Day: day, Date: model.DayKey(day)}
	suppressed := 0

	addError := func(err error) {
		if len(res.Errors) < maxErrorsPerDay {
			res.Errors = append(res.Errors, err.Error())
			return
		}
		suppressed++
	}

	defer func() {
		if rec := recover(); rec != nil {
			addError(fmt.Errorf("%w: day task panicked: %v", common.ErrClassificationFailed, rec))
			a.opts.logger.Error("day task panicked",
				"day", res.Date,
				"panic", rec)
		}
		if suppressed > 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("%d further errors suppressed", suppressed))
		}
	}()

	for _, msg := range bucket {
		if err := ctx.Err(); err != nil {
			addError(err)
			return res
		}

		label, err := a.classifier.Classify(ctx, msg)
		if err != nil {
			res.Unclassified++
			addError(err)
			continue
		}

		res.Classified++
		if label.Matched() {
			res.Count++
		}
	}

	return res
}

// merge is the single writer of the result mapping.
func merge(strategy string, days []model.DayResult, skipped int) model.AggregateResult {
	result := model.AggregateResult{
		Strategy: strategy,
		Counts:   make(map[string]int, len(days)),
		Days:     days,
		Skipped:  skipped,
	}

	for _, d := range days {
		result.Counts[d.Date] = d.Count
		for _, e := range d.Errors {
			result.Errors = append(result.Errors, model.DayError{Day: d.Date, Error: e})
		}
	}

	return result
}

// SelectStrategy returns the classifier whose Name matches.
func SelectStrategy(name string, classifiers ...Classifier) (Classifier, error) {
	for _, c := range classifiers {
		if c != nil && c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", common.ErrUnknownStrategy, name)
}
