package testutil

import (
	"fmt"
	"testing"

	"github.com/Veraticus/spice-tally/internal/model"
)

// MessageBuilder assembles a batch of messages day by day and tracks how many
// of them the keyword pattern should count.
//
//	batch := testutil.NewMessageBuilder(t).
//		On("2023-08-01").Debited(2).Noise(1).
//		On("2023-08-03").Credited(1).
//		Unparseable(1)
//	messages, want := batch.Build(), batch.Expected()
type MessageBuilder struct {
	t        *testing.T
	expected map[string]int
	day      string
	messages []model.Message
	seq      int
}

// NewMessageBuilder starts an empty batch.
func NewMessageBuilder(t *testing.T) *MessageBuilder {
	t.Helper()
	return &MessageBuilder{t: t, expected: make(map[string]int)}
}

// On sets the day of the messages added next.
func (b *MessageBuilder) On(day string) *MessageBuilder {
	b.t.Helper()
	if _, err := model.ParseDay(day); err != nil {
		b.t.Fatalf("invalid fixture day %q: %v", day, err)
	}
	b.day = day
	return b
}

// Debited adds n debit alerts on the current day.
func (b *MessageBuilder) Debited(n int) *MessageBuilder {
	return b.add(n, true, "Rs %d.00 debited from A/c XX1234")
}

// Credited adds n credit alerts on the current day.
func (b *MessageBuilder) Credited(n int) *MessageBuilder {
	return b.add(n, true, "INR %d.00 credited to A/c XX1234")
}

// Noise adds n messages that are not transactions.
func (b *MessageBuilder) Noise(n int) *MessageBuilder {
	return b.add(n, false, "Your one-time password is %d")
}

// Unparseable adds n debit alerts whose date cannot be parsed.
func (b *MessageBuilder) Unparseable(n int) *MessageBuilder {
	for range n {
		b.seq++
		b.messages = append(b.messages, model.Message{
			Date:    "31/12/2023",
			Content: fmt.Sprintf("Rs %d.00 debited", b.seq),
		})
	}
	return b
}

func (b *MessageBuilder) add(n int, matched bool, format string) *MessageBuilder {
	b.t.Helper()
	if b.day == "" {
		b.t.Fatal("call On before adding messages")
	}
	for range n {
		b.seq++
		b.messages = append(b.messages, model.Message{Date: b.day, Content: fmt.Sprintf(format, b.seq)})
		if matched {
			b.expected[b.day]++
		}
	}
	return b
}

// Build returns a copy of the batch.
func (b *MessageBuilder) Build() []model.Message {
	return append([]model.Message(nil), b.messages...)
}

// Expected returns the pattern count of every day of r, zeros included.
func (b *MessageBuilder) Expected(r model.DateRange) map[string]int {
	out := make(map[string]int, r.Len())
	for _, day := range r.Days() {
		key := model.DayKey(day)
		out[key] = b.expected[key]
	}
	return out
}
