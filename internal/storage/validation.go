// Package storage persists ingested messages in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/Veraticus/spice-tally/internal/service"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidMessage   = errors.New("invalid message")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateMessages rejects a nil batch and messages without content.
// Dates are stored as given; unparseable ones are skipped at aggregation time.
func validateMessages(messages []model.Message) error {
	if messages == nil {
		return fmt.Errorf("%w: messages", ErrNilParameter)
	}

	for i, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			return fmt.Errorf("message at index %d: %w: missing content", i, ErrInvalidMessage)
		}
	}
	return nil
}

// validateFilter checks the date bounds of a message query.
func validateFilter(filter service.MessageFilter) error {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return fmt.Errorf("%w: end date %s is before start date %s",
			ErrInvalidDateRange, filter.EndDate.Format(time.DateOnly), filter.StartDate.Format(time.DateOnly))
	}
	if filter.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidMessage)
	}
	return nil
}
