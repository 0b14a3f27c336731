package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/spice-tally/internal/model"
)

func sampleResult(strategy string, counts map[string]int) model.AggregateResult {
	return model.AggregateResult{
		Strategy: strategy,
		Counts:   counts,
	}
}

func TestRenderAggregate(t *testing.T) {
	result := sampleResult("pattern", map[string]int{"2023-08-02": 1, "2023-08-01": 2, "2023-08-03": 0})
	result.Skipped = 4
	result.Errors = []model.DayError{{Day: "2023-08-01", Error: "classification failed: timeout"}}

	out := RenderAggregate(result, model.ResourceMetrics{Duration: 0.25, CPUDelta: 12.5, MemoryDeltaMB: 1.5, Available: true})

	assert.Contains(t, out, "Transactions per day (pattern)")
	assert.Less(t, bytes.Index([]byte(out), []byte("2023-08-01")), bytes.Index([]byte(out), []byte("2023-08-02")),
		"days are listed in calendar order")
	assert.Contains(t, out, "Transactions: 3")
	assert.Contains(t, out, "Skipped (bad date): 4")
	assert.Contains(t, out, "Execution time: 0.250s")
	assert.Contains(t, out, "CPU delta: +12.5%")
	assert.Contains(t, out, "2023-08-01: classification failed: timeout")
}

func TestRenderAggregate_MetricsUnavailable(t *testing.T) {
	out := RenderAggregate(sampleResult("model", map[string]int{"2023-08-01": 0}), model.ResourceMetrics{Duration: 1})
	assert.Contains(t, out, "CPU/memory: unavailable")
}

func TestRenderComparison(t *testing.T) {
	report := model.ComparisonReport{
		RunID:          "run-123",
		Range:          "2023-08-01..2023-08-02",
		PatternResults: sampleResult("pattern", map[string]int{"2023-08-01": 1, "2023-08-02": 1}),
		PatternMetrics: model.ResourceMetrics{Duration: 0.01, Available: true},
		ModelResults:   sampleResult("model", map[string]int{"2023-08-01": 1, "2023-08-02": 0}),
		ModelMetrics:   model.ResourceMetrics{Duration: 2.5},
	}
	report.ModelResults.Errors = []model.DayError{{Day: "2023-08-02", Error: "empty completion"}}

	out := RenderComparison(report)

	assert.Contains(t, out, "Pattern vs model 2023-08-01..2023-08-02")
	assert.Contains(t, out, "≠")
	assert.Contains(t, out, "2.500s")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "run run-123")
	assert.Contains(t, out, "2023-08-02: empty completion")
}

func TestRenderErrors_Truncates(t *testing.T) {
	var errs []model.DayError
	for i := 0; i < maxErrorLines+3; i++ {
		errs = append(errs, model.DayError{Day: "2023-08-01", Error: "boom"})
	}

	out := renderErrors(errs)
	assert.Equal(t, maxErrorLines, bytes.Count([]byte(out), []byte("boom")))
	assert.Contains(t, out, "3 more")
}

func TestProgress(t *testing.T) {
	var buf syncBuffer
	p := NewProgress(&buf, 3, "Aggregating")

	p.DayCompleted("pattern", model.DayResult{})
	p.DayCompleted("pattern", model.DayResult{})
	assert.Equal(t, 2, p.Completed())

	p.Finish()
	p.Finish()
	assert.Contains(t, buf.String(), "Aggregating")
}
