package model

import (
	"sort"
	"time"
)

// DayResult is the owned output of one day task.
type DayResult struct {
	Day          time.Time `json:"-"`
	Date         string    `json:"date"`
	Count        int       `json:"count"`
	Classified   int       `json:"classified"`
	Unclassified int       `json:"unclassified"`
	Errors       []string  `json:"errors,omitempty"`
}

// DayError is a non-fatal failure attached to a day.
type DayError struct {
	Day   string `json:"day"`
	Error string `json:"error"`
}

// AggregateResult is the merged per-day count mapping for one strategy run.
type AggregateResult struct {
	Counts   map[string]int `json:"results"`
	Strategy string         `json:"strategy"`
	Days     []DayResult    `json:"days"`
	Errors   []DayError     `json:"errors,omitempty"`
	Skipped  int            `json:"skipped"`
}

// Total sums the counts of every day.
func (r AggregateResult) Total() int {
	total := 0
	for _, c := range r.Counts {
		total += c
	}
	return total
}

// SortedDays returns the day keys in calendar order.
func (r AggregateResult) SortedDays() []string {
	keys := make([]string, 0, len(r.Counts))
	for k := range r.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResourceMetrics is the cost of one profiled call.
type ResourceMetrics struct {
	Duration      float64 `json:"execution_time"`
	CPUDelta      float64 `json:"cpu_usage"`
	MemoryDeltaMB float64 `json:"memory_usage"`
	Available     bool    `json:"available"`
}

// ComparisonReport pairs the results and cost of both strategies.
type ComparisonReport struct {
	RunID          string          `json:"run_id"`
	Range          string          `json:"range"`
	PatternResults AggregateResult `json:"pattern_results"`
	PatternMetrics ResourceMetrics `json:"pattern_metrics"`
	ModelResults   AggregateResult `json:"model_results"`
	ModelMetrics   ResourceMetrics `json:"model_metrics"`
}
