package model

import (
	"errors"
	"fmt"
	"time"
)

// Date errors.
var (
	// ErrInvalidRange is an input error: the whole call is rejected before any work starts.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrUnparseableDate marks a message whose date does not match DateLayout.
	ErrUnparseableDate = errors.New("unparseable date")
)

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange parses both bounds and validates start <= end.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := ParseDay(start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start: %v", ErrInvalidRange, err)
	}
	e, err := ParseDay(end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end: %v", ErrInvalidRange, err)
	}

	r := DateRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate checks the range bounds.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: missing bound", ErrInvalidRange)
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, DayKey(r.Start), DayKey(r.End))
	}
	return nil
}

const secondsPerDay = 24 * 60 * 60

// Len returns the number of calendar days in the range. Whole seconds are used
// since a time.Duration cannot span more than about 292 years.
func (r DateRange) Len() int {
	return int((r.End.Unix()-r.Start.Unix())/secondsPerDay) + 1
}

// Days enumerates every calendar day from Start to End inclusive.
func (r DateRange) Days() []time.Time {
	if r.Start.After(r.End) {
		return nil
	}

	days := make([]time.Time, 0, r.Len())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether day falls inside the range.
func (r DateRange) Contains(day time.Time) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

// String formats the range as "start..end".
func (r DateRange) String() string {
	return DayKey(r.Start) + ".." + DayKey(r.End)
}

// SpanOf returns the range covering the earliest and latest parseable message dates.
func SpanOf(messages []Message) (DateRange, error) {
	var r DateRange
	for _, msg := range messages {
		day, err := msg.ParseDate()
		if err != nil {
			continue
		}
		if r.Start.IsZero() || day.Before(r.Start) {
			r.Start = day
		}
		if r.End.IsZero() || day.After(r.End) {
			r.End = day
		}
	}

	if r.Start.IsZero() {
		return DateRange{}, fmt.Errorf("%w: no message has a parseable date", ErrInvalidRange)
	}
	return r, nil
}
