// Package profile measures the wall time, CPU and memory cost of a call.
package profile

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-tally/internal/model"
)

const bytesPerMB = 1024 * 1024

// Profiler wraps calls with resource measurement.
type Profiler struct {
	sampler Sampler
	logger  *slog.Logger
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithSampler replaces the /proc sampler.
func WithSampler(s Sampler) Option {
	return func(p *Profiler) {
		p.sampler = s
	}
}

// WithLogger sets the logger used for measurement failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Profiler) {
		p.logger = logger
	}
}

// New creates a Profiler. Without WithSampler it reads /proc; if that is not
// available every call still runs and reports zero metrics.
func New(opts ...Option) *Profiler {
	p := &Profiler{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}

	if p.sampler == nil {
		s, err := NewProcSampler()
		if err != nil {
			p.sampler = unavailableSampler{err: err}
		} else {
			p.sampler = s
		}
	}
	return p
}

// Run calls fn and measures it. fn's value and error are returned unchanged;
// when fn fails the metrics are zero. A failed measurement never fails the call.
func Run[T any](ctx context.Context, p *Profiler, fn func(context.Context) (T, error)) (T, model.ResourceMetrics, error) {
	before, beforeErr := p.sampler.Read()

	start := time.Now()
	result, err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		return result, model.ResourceMetrics{}, err
	}

	after, afterErr := p.sampler.Read()

	metrics := model.ResourceMetrics{Duration: elapsed.Seconds()}
	if beforeErr != nil || afterErr != nil {
		measureErr := beforeErr
		if measureErr == nil {
			measureErr = afterErr
		}
		p.logger.Warn("resource metrics unavailable", "error", measureErr)
		return result, metrics, nil
	}

	metrics.CPUDelta = cpuPercentSince(before, after) - lifetimeCPUPercent(before)
	metrics.MemoryDeltaMB = float64(after.RSSBytes-before.RSSBytes) / bytesPerMB
	metrics.Available = true

	return result, metrics, nil
}

// lifetimeCPUPercent is the average CPU usage of the process up to r.
func lifetimeCPUPercent(r Reading) float64 {
	wall := r.At.Sub(r.Started).Seconds()
	if wall <= 0 {
		return 0
	}
	return r.CPUSeconds / wall * 100
}

// cpuPercentSince is the CPU usage between two readings.
func cpuPercentSince(before, after Reading) float64 {
	wall := after.At.Sub(before.At).Seconds()
	if wall <= 0 {
		return 0
	}
	return (after.CPUSeconds - before.CPUSeconds) / wall * 100
}
