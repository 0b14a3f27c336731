package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/spice-tally/internal/common"
	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/Veraticus/spice-tally/internal/pattern"
	"github.com/Veraticus/spice-tally/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_Scenario(t *testing.T) {
	messages := []model.Message{
		{Date: "2023-08-01", Content: "Your account was debited $50"},
		{Date: "2023-08-01", Content: "hello"},
		{Date: "2023-08-02", Content: "You were credited $20"},
	}

	agg := NewAggregator(pattern.NewDefaultMatcher(), WithLogger(quietLogger()))
	result, err := agg.AggregateDates(context.Background(), messages, "2023-08-01", "2023-08-02")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"2023-08-01": 1, "2023-08-02": 1}, result.Counts)
	assert.Equal(t, pattern.StrategyName, result.Strategy)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Days, 2)
	assert.Equal(t, 2, result.Days[0].Classified)
}

func TestAggregator_EmptyMessages(t *testing.T) {
	agg := NewAggregator(pattern.NewDefaultMatcher(), WithLogger(quietLogger()))
	result, err := agg.AggregateDates(context.Background(), nil, "2023-08-01", "2023-08-03")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"2023-08-01": 0, "2023-08-02": 0, "2023-08-03": 0}, result.Counts)
}

func TestAggregator_InvalidRange(t *testing.T) {
	var calls atomic.Int32
	classifier := funcClassifier{name: "counting", fn: func(context.Context, model.Message) (model.Label, error) {
		calls.Add(1)
		return model.LabelDebited, nil
	}}
	agg := NewAggregator(classifier, WithLogger(quietLogger()))
	messages := []model.Message{{Date: "2023-08-01", Content: "debited"}}

	tests := []struct {
		name  string
		start string
		end   string
	}{
		{name: "start after end", start: "2023-08-02", end: "2023-08-01"},
		{name: "unparseable start", start: "yesterday", end: "2023-08-01"},
		{name: "unparseable end", start: "2023-08-01", end: "2023/08/02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := agg.AggregateDates(context.Background(), messages, tt.start, tt.end)
			require.ErrorIs(t, err, model.ErrInvalidRange)
		})
	}

	_, err := agg.Aggregate(context.Background(), messages, model.DateRange{})
	require.ErrorIs(t, err, model.ErrInvalidRange)
	assert.Zero(t, calls.Load(), "no classification before input validation")
}

func TestAggregator_EveryDayPresent(t *testing.T) {
	agg := NewAggregator(pattern.NewDefaultMatcher(), WithLogger(quietLogger()))

	for _, span := range []int{0, 1, 6, 30, 91, 365} {
		t.Run(fmt.Sprintf("%d days", span+1), func(t *testing.T) {
			start := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)
			r := model.DateRange{Start: start, End: start.AddDate(0, 0, span)}

			result, err := agg.Aggregate(context.Background(), nil, r)
			require.NoError(t, err)
			assert.Len(t, result.Counts, span+1)
			assert.Len(t, result.Days, span+1)
			for _, d := range r.Days() {
				assert.Contains(t, result.Counts, model.DayKey(d))
			}
		})
	}
}

// randomBatch builds messages whose expected pattern total is known.
func randomBatch(rng *rand.Rand, r model.DateRange, n int) ([]model.Message, int) {
	contents := []struct {
		text    string
		matches bool
	}{
		{"Your account was debited $50", true},
		{"You were CREDITED $20", true},
		{"hello there", false},
		{"undebited balance", false},
		{"Amount credited.", true},
		{"weekly newsletter", false},
	}

	days := r.Days()
	var messages []model.Message
	expected := 0
	for i := 0; i < n; i++ {
		c := contents[rng.Intn(len(contents))]
		var date string
		switch rng.Intn(10) {
		case 0:
			date = "not-a-date"
		case 1:
			date = model.DayKey(r.End.AddDate(0, 0, 1+rng.Intn(5)))
		default:
			date = model.DayKey(days[rng.Intn(len(days))])
			if c.matches {
				expected++
			}
		}
		messages = append(messages, model.Message{Date: date, Content: c.text})
	}
	return messages, expected
}

func TestAggregator_OrderIndependentSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := mustRange("2023-08-01", "2023-08-31")
	messages, expected := randomBatch(rng, r, 500)

	matcher := pattern.NewDefaultMatcher()
	// Random per-message delay forces arbitrary completion order.
	jittery := funcClassifier{name: "pattern", fn: func(ctx context.Context, msg model.Message) (model.Label, error) {
		if len(msg.Content)%3 == 0 {
			time.Sleep(time.Duration(len(msg.Content)%5) * 100 * time.Microsecond)
		}
		return matcher.Classify(ctx, msg)
	}}

	var first model.AggregateResult
	for i, workers := range []int{1, 3, 64} {
		agg := NewAggregator(jittery, WithLogger(quietLogger()), WithMaxWorkers(workers))
		result, err := agg.Aggregate(context.Background(), messages, r)
		require.NoError(t, err)
		assert.Equal(t, expected, result.Total(), "workers=%d", workers)

		if i == 0 {
			first = result
			continue
		}
		assert.Equal(t, first.Counts, result.Counts, "workers=%d", workers)
	}
}

func TestAggregator_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := mustRange("2023-08-01", "2023-08-10")
	messages, _ := randomBatch(rng, r, 200)

	agg := NewAggregator(pattern.NewDefaultMatcher(), WithLogger(quietLogger()))
	a, err := agg.Aggregate(context.Background(), messages, r)
	require.NoError(t, err)
	b, err := agg.Aggregate(context.Background(), messages, r)
	require.NoError(t, err)

	assert.Equal(t, a.Counts, b.Counts)
	assert.Equal(t, a.Skipped, b.Skipped)
}

func TestAggregator_UnparseableDatesExcluded(t *testing.T) {
	messages := []model.Message{
		{Date: "01/08/2023", Content: "debited"},
		{Date: "2023-08-01T10:00:00Z", Content: "credited"},
		{Date: "2023-08-01", Content: "debited"},
	}

	agg := NewAggregator(pattern.NewDefaultMatcher(), WithLogger(quietLogger()))
	result, err := agg.AggregateDates(context.Background(), messages, "2023-08-01", "2023-08-01")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"2023-08-01": 1}, result.Counts)
	assert.Equal(t, 2, result.Skipped)
	assert.Empty(t, result.Errors)
}

func TestAggregator_MatchesBuiltBatch(t *testing.T) {
	batch := testutil.NewMessageBuilder(t).
		On("2023-08-01").Debited(3).Noise(2).
		On("2023-08-04").Credited(2).Debited(1).
		On("2023-08-09").Noise(4).
		On("2023-08-20").Debited(1).
		Unparseable(2)
	r := mustRange("2023-08-01", "2023-08-10")

	result, err := NewAggregator(pattern.NewDefaultMatcher(), WithLogger(quietLogger())).
		Aggregate(context.Background(), batch.Build(), r)
	require.NoError(t, err)

	assert.Equal(t, batch.Expected(r), result.Counts)
	assert.Equal(t, 6, result.Total())
	assert.Equal(t, 2, result.Skipped)
}

func TestAggregator_ClassifierFailureDegradesCount(t *testing.T) {
	errBackend := errors.New("backend unavailable")
	flaky := funcClassifier{name: "model", fn: func(_ context.Context, msg model.Message) (model.Label, error) {
		if msg.Content == "fail" {
			return model.LabelUnknown, fmt.Errorf("%w: %w", common.ErrClassificationFailed, errBackend)
		}
		return model.NormalizeLabel(msg.Content), nil
	}}

	messages := []model.Message{
		{Date: "2023-08-01", Content: "debited"},
		{Date: "2023-08-01", Content: "fail"},
		{Date: "2023-08-01", Content: "credited"},
		{Date: "2023-08-02", Content: "fail"},
		{Date: "2023-08-02", Content: "none"},
	}

	agg := NewAggregator(flaky, WithLogger(quietLogger()))
	result, err := agg.AggregateDates(context.Background(), messages, "2023-08-01", "2023-08-02")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"2023-08-01": 2, "2023-08-02": 0}, result.Counts)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0].Error, "backend unavailable")

	require.Len(t, result.Days, 2)
	assert.Equal(t, 1, result.Days[0].Unclassified)
	assert.Equal(t, 2, result.Days[0].Classified)
	assert.Equal(t, 1, result.Days[1].Unclassified)
}

func TestAggregator_ErrorsPerDayAreCapped(t *testing.T) {
	failing := funcClassifier{name: "model", fn: func(context.Context, model.Message) (model.Label, error) {
		return model.LabelUnknown, common.ErrClassificationFailed
	}}

	var messages []model.Message
	for i := 0; i < 25; i++ {
		messages = append(messages, model.Message{Date: "2023-08-01", Content: fmt.Sprint(i)})
	}

	agg := NewAggregator(failing, WithLogger(quietLogger()))
	result, err := agg.AggregateDates(context.Background(), messages, "2023-08-01", "2023-08-01")
	require.NoError(t, err)

	require.Len(t, result.Days, 1)
	assert.Equal(t, 25, result.Days[0].Unclassified)
	assert.Len(t, result.Days[0].Errors, maxErrorsPerDay+1)
	assert.Contains(t, result.Days[0].Errors[maxErrorsPerDay], "15 further errors suppressed")
}

func TestAggregator_PanicIsContainedToItsDay(t *testing.T) {
	panicky := funcClassifier{name: "pattern", fn: func(_ context.Context, msg model.Message) (model.Label, error) {
		if msg.Content == "boom" {
			panic("classifier exploded")
		}
		return model.LabelDebited, nil
	}}

	messages := []model.Message{
		{Date: "2023-08-01", Content: "ok"},
		{Date: "2023-08-01", Content: "boom"},
		{Date: "2023-08-01", Content: "never reached"},
		{Date: "2023-08-02", Content: "ok"},
		{Date: "2023-08-03", Content: "ok"},
	}

	agg := NewAggregator(panicky, WithLogger(quietLogger()))
	result, err := agg.AggregateDates(context.Background(), messages, "2023-08-01", "2023-08-03")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"2023-08-01": 1, "2023-08-02": 1, "2023-08-03": 1}, result.Counts)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "2023-08-01", result.Errors[0].Day)
	assert.Contains(t, result.Errors[0].Error, "classifier exploded")
}

func TestAggregator_RunsDaysConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := funcClassifier{name: "model", fn: func(context.Context, model.Message) (model.Label, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return model.LabelCredited, nil
	}}

	var messages []model.Message
	r := mustRange("2023-08-01", "2023-08-08")
	for _, d := range r.Days() {
		messages = append(messages, model.Message{Date: model.DayKey(d), Content: "x"})
	}

	agg := NewAggregator(slow, WithLogger(quietLogger()), WithMaxWorkers(4))
	result, err := agg.Aggregate(context.Background(), messages, r)
	require.NoError(t, err)

	assert.Equal(t, 8, result.Total())
	assert.Greater(t, peak.Load(), int32(1), "days should overlap")
	assert.LessOrEqual(t, peak.Load(), int32(4), "worker limit respected")
}

func TestAggregator_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	messages := []model.Message{{Date: "2023-08-01", Content: "debited"}}
	agg := NewAggregator(pattern.NewDefaultMatcher(), WithLogger(quietLogger()))
	result, err := agg.AggregateDates(ctx, messages, "2023-08-01", "2023-08-02")
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, result.Counts, 2, "partial result still covers every day")
}

func TestAggregator_NotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	agg := NewAggregator(pattern.NewDefaultMatcher(), WithLogger(quietLogger()), WithObserver(Observers{obs}))

	_, err := agg.AggregateDates(context.Background(), nil, "2023-08-01", "2023-08-05")
	require.NoError(t, err)

	assert.Len(t, obs.days, 5)
	assert.Equal(t, []string{pattern.StrategyName}, obs.finished)
}

func TestSelectStrategy(t *testing.T) {
	p := pattern.NewDefaultMatcher()
	m := funcClassifier{name: "model"}

	got, err := SelectStrategy("model", p, m)
	require.NoError(t, err)
	assert.Equal(t, "model", got.Name())

	_, err = SelectStrategy("regex", p, m)
	require.ErrorIs(t, err, common.ErrUnknownStrategy)
}
