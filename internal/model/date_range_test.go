package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDateRange(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantLen int
		wantErr bool
	}{
		{name: "single day", start: "2023-08-01", end: "2023-08-01", wantLen: 1},
		{name: "two days", start: "2023-08-01", end: "2023-08-02", wantLen: 2},
		{name: "across month boundary", start: "2023-08-30", end: "2023-09-02", wantLen: 4},
		{name: "leap year february", start: "2024-02-28", end: "2024-03-01", wantLen: 3},
		{name: "default api range", start: "2023-08-01", end: "2023-10-31", wantLen: 92},
		{name: "longer than a duration can hold", start: "1500-01-01", end: "2023-08-01", wantLen: 191235},
		{name: "start after end", start: "2023-08-02", end: "2023-08-01", wantErr: true},
		{name: "unparseable start", start: "08/01/2023", end: "2023-08-01", wantErr: true},
		{name: "unparseable end", start: "2023-08-01", end: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewDateRange(tt.start, tt.end)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, r.Len())
			assert.Len(t, r.Days(), tt.wantLen)
		})
	}
}

func TestDateRange_DaysAreConsecutive(t *testing.T) {
	r, err := NewDateRange("2023-12-30", "2024-01-02")
	require.NoError(t, err)

	var keys []string
	for _, d := range r.Days() {
		keys = append(keys, DayKey(d))
	}
	assert.Equal(t, []string{"2023-12-30", "2023-12-31", "2024-01-01", "2024-01-02"}, keys)
	assert.True(t, r.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2023-12-30..2024-01-02", r.String())
}

func TestSpanOf(t *testing.T) {
	r, err := SpanOf([]Message{
		{Date: "2023-08-05", Content: "a"},
		{Date: "not a date", Content: "b"},
		{Date: "2023-08-01", Content: "c"},
		{Date: "2023-08-03", Content: "d"},
	})
	require.NoError(t, err)
	assert.Equal(t, "2023-08-01..2023-08-05", r.String())

	_, err = SpanOf([]Message{{Date: "garbage"}})
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = SpanOf(nil)
	require.ErrorIs(t, err, ErrInvalidRange)
}
