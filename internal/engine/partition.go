package engine

import (
	"time"

	"github.com/Veraticus/spice-tally/internal/model"
)

// Partition is the set of day buckets for a range.
type Partition struct {
	Buckets    map[string][]model.Message
	Range      model.DateRange
	Skipped    int
	OutOfRange int
}

// PartitionByDay buckets messages by calendar day. Every day of the range has a
// bucket, possibly empty. Messages with unparseable dates are counted in Skipped
// and land in no bucket; messages outside the range are counted in OutOfRange.
func PartitionByDay(messages []model.Message, r model.DateRange) Partition {
	p := Partition{
		Buckets: make(map[string][]model.Message, r.Len()),
		Range:   r,
	}

	for _, day := range r.Days() {
		p.Buckets[model.DayKey(day)] = nil
	}

	for _, msg := range messages {
		day, err := msg.ParseDate()
		if err != nil {
			p.Skipped++
			continue
		}
		if !r.Contains(day) {
			p.OutOfRange++
			continue
		}
		key := model.DayKey(day)
		p.Buckets[key] = append(p.Buckets[key], msg)
	}

	return p
}

// Bucket returns the messages for one day.
func (p Partition) Bucket(day time.Time) []model.Message {
	return p.Buckets[model.DayKey(day)]
}
