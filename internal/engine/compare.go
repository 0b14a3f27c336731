package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/Veraticus/spice-tally/internal/profile"
)

// Comparer profiles the pattern and model strategies over the same batch.
type Comparer struct {
	pattern  *Aggregator
	model    *Aggregator
	profiler *profile.Profiler
	opts     options
}

// NewComparer creates a comparison driver. Options apply to both aggregators.
func NewComparer(pattern, model Classifier, profiler *profile.Profiler, opts ...Option) *Comparer {
	return &Comparer{
		pattern:  NewAggregator(pattern, opts...),
		model:    NewAggregator(model, opts...),
		profiler: profiler,
		opts:     buildOptions(opts),
	}
}

type profiledRun struct {
	result  model.AggregateResult
	metrics model.ResourceMetrics
}

// Compare runs both strategies and returns the raw paired output.
// The runs share no state and execute concurrently unless WithSequential was set.
func (c *Comparer) Compare(ctx context.Context, messages []model.Message, r model.DateRange) (model.ComparisonReport, error) {
	if err := r.Validate(); err != nil {
		return model.ComparisonReport{}, err
	}

	report := model.ComparisonReport{
		RunID: uuid.NewString(),
		Range: r.String(),
	}

	var patternRun, modelRun profiledRun
	run := func(agg *Aggregator, out *profiledRun) func() error {
		return func() error {
			res, metrics, err := profile.Run(ctx, c.profiler, func(ctx context.Context) (model.AggregateResult, error) {
				return agg.Aggregate(ctx, messages, r)
			})
			if err != nil {
				return fmt.Errorf("%s strategy: %w", agg.Strategy(), err)
			}
			*out = profiledRun{result: res, metrics: metrics}
			return nil
		}
	}

	c.opts.logger.Info("comparing strategies",
		"run_id", report.RunID,
		"range", report.Range,
		"messages", len(messages),
		"sequential", c.opts.sequential)

	if c.opts.sequential {
		if err := run(c.pattern, &patternRun)(); err != nil {
			return report, err
		}
		if err := run(c.model, &modelRun)(); err != nil {
			return report, err
		}
	} else {
		var g errgroup.Group
		g.Go(run(c.pattern, &patternRun))
		g.Go(run(c.model, &modelRun))
		if err := g.Wait(); err != nil {
			return report, err
		}
	}

	report.PatternResults = patternRun.result
	report.PatternMetrics = patternRun.metrics
	report.ModelResults = modelRun.result
	report.ModelMetrics = modelRun.metrics

	return report, nil
}
