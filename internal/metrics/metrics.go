// Package metrics exposes aggregation counters and latencies to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Veraticus/spice-tally/internal/model"
)

const namespace = "tally"

const (
	// OutcomeSuccess labels aggregations that returned without error.
	OutcomeSuccess = "success"
	// OutcomeError labels aggregations that were canceled or rejected.
	OutcomeError = "error"
)

// Recorder holds the collectors for one registry. It implements engine.Observer.
type Recorder struct {
	aggregations   *prometheus.CounterVec
	dayTasks       *prometheus.CounterVec
	failures       *prometheus.CounterVec
	skipped        *prometheus.CounterVec
	matched        *prometheus.CounterVec
	aggregationDur *prometheus.HistogramVec
}

// NewRecorder creates the collectors and registers them with reg.
// Collectors already registered under the same descriptor are reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		aggregations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "aggregations_total",
				Help:      "Total number of aggregation runs, partitioned by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		),
		dayTasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "day_tasks_total",
				Help:      "Total number of completed day tasks.",
			},
			[]string{"strategy"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classification_failures_total",
				Help:      "Messages that could not be classified.",
			},
			[]string{"strategy"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_messages_total",
				Help:      "Messages excluded because their date could not be parsed.",
			},
			[]string{"strategy"},
		),
		matched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matched_messages_total",
				Help:      "Messages classified as a transaction.",
			},
			[]string{"strategy"},
		),
		aggregationDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "aggregation_seconds",
				Help:      "Aggregation latency in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"strategy"},
		),
	}

	if err := r.register(reg); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) register(reg prometheus.Registerer) error {
	var err error
	for _, vec := range []**prometheus.CounterVec{&r.aggregations, &r.dayTasks, &r.failures, &r.skipped, &r.matched} {
		if *vec, err = registerOrReuse(reg, *vec); err != nil {
			return err
		}
	}
	r.aggregationDur, err = registerOrReuse(reg, r.aggregationDur)
	return err
}

// registerOrReuse registers c, or returns the collector already registered
// under the same descriptor.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// DayCompleted counts a finished day task and its failed classifications.
func (r *Recorder) DayCompleted(strategy string, day model.DayResult) {
	r.dayTasks.WithLabelValues(strategy).Inc()
	if day.Unclassified > 0 {
		r.failures.WithLabelValues(strategy).Add(float64(day.Unclassified))
	}
	if day.Count > 0 {
		r.matched.WithLabelValues(strategy).Add(float64(day.Count))
	}
}

// AggregationFinished records the outcome and latency of one run.
func (r *Recorder) AggregationFinished(strategy string, result model.AggregateResult, elapsed time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	r.aggregations.WithLabelValues(strategy, outcome).Inc()

	if result.Skipped > 0 {
		r.skipped.WithLabelValues(strategy).Add(float64(result.Skipped))
	}

	if elapsed < 0 {
		elapsed = 0
	}
	r.aggregationDur.WithLabelValues(strategy).Observe(elapsed.Seconds())
}
