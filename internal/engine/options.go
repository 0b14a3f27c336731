package engine

import (
	"log/slog"
	"runtime"
)

// options holds settings shared by Aggregator and Comparer.
type options struct {
	logger     *slog.Logger
	observer   Observer
	maxWorkers int
	sequential bool
}

// Option configures an Aggregator or Comparer.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers an observer for day and run completion.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithMaxWorkers bounds the number of concurrent day tasks. Values <= 0 keep the default.
func WithMaxWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// WithSequential makes the Comparer run the two strategies one after the other,
// so their resource metrics do not overlap.
func WithSequential(sequential bool) Option {
	return func(o *options) {
		o.sequential = sequential
	}
}

// DefaultMaxWorkers is min(32, NumCPU+4).
func DefaultMaxWorkers() int {
	n := runtime.NumCPU() + 4
	if n > 32 {
		n = 32
	}
	return n
}

func buildOptions(opts []Option) options {
	o := options{
		logger:     slog.Default(),
		observer:   nopObserver{},
		maxWorkers: DefaultMaxWorkers(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
