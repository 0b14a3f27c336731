package engine

import (
	"testing"

	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestPartitionByDay(t *testing.T) {
	messages := []model.Message{
		{Date: "2023-08-01", Content: "a"},
		{Date: "2023-08-01", Content: "b"},
		{Date: "2023-08-03", Content: "c"},
		{Date: "Tue, 01 Aug 2023 10:00:00 +0000", Content: "rfc822 date"},
		{Date: "", Content: "no date"},
		{Date: "2023-07-31", Content: "before range"},
		{Date: "2023-08-04", Content: "after range"},
	}

	p := PartitionByDay(messages, mustRange("2023-08-01", "2023-08-03"))

	assert.Len(t, p.Buckets, 3)
	assert.Len(t, p.Buckets["2023-08-01"], 2)
	assert.Empty(t, p.Buckets["2023-08-02"])
	assert.Contains(t, p.Buckets, "2023-08-02", "empty days still have a bucket")
	assert.Len(t, p.Buckets["2023-08-03"], 1)
	assert.Equal(t, 2, p.Skipped)
	assert.Equal(t, 2, p.OutOfRange)

	for _, bucket := range p.Buckets {
		for _, msg := range bucket {
			assert.NotEqual(t, "rfc822 date", msg.Content)
			assert.NotEqual(t, "no date", msg.Content)
		}
	}
}

func TestPartitionByDay_DoesNotMutateInput(t *testing.T) {
	messages := []model.Message{
		{Date: "2023-08-02", Content: "x"},
		{Date: "2023-08-01", Content: "y"},
	}
	before := append([]model.Message(nil), messages...)

	_ = PartitionByDay(messages, mustRange("2023-08-01", "2023-08-02"))
	assert.Equal(t, before, messages)
}
