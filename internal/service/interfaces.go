// Package service defines the interfaces shared between application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-tally/internal/model"
)

// MessageFilter defines filtering options for message queries.
type MessageFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Source    string
	Limit     int
}

// MessageStore defines the contract for the ingested-message persistence layer.
// Only inputs are stored; classification results are never persisted.
type MessageStore interface {
	SaveMessages(ctx context.Context, messages []model.Message) (int, error)
	GetMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error)
	CountMessages(ctx context.Context) (int, error)
	Migrate(ctx context.Context) error
	Close() error
}

// MessageSource produces messages from an external system.
type MessageSource interface {
	Fetch(ctx context.Context, since time.Time) ([]model.Message, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// WithDefaults fills unset fields with the standard backoff settings.
func (o RetryOptions) WithDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
	return o
}
