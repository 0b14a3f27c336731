package pattern

import (
	"context"
	"testing"

	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Classify(t *testing.T) {
	ctx := context.Background()
	m := NewDefaultMatcher()

	tests := []struct {
		name    string
		content string
		want    model.Label
	}{
		{name: "debited", content: "Your account was debited $50", want: model.LabelDebited},
		{name: "credited", content: "You were credited $20", want: model.LabelCredited},
		{name: "case insensitive", content: "AMOUNT DEBITED: 12.00", want: model.LabelDebited},
		{name: "mixed case", content: "Salary CrEdItEd to a/c", want: model.LabelCredited},
		{name: "punctuation boundary", content: "a/c XX12 debited.", want: model.LabelDebited},
		{name: "leftmost wins", content: "credited back after being debited", want: model.LabelCredited},
		{name: "no keyword", content: "hello", want: model.LabelNone},
		{name: "prefix is not whole word", content: "undebited balance", want: model.LabelNone},
		{name: "suffix is not whole word", content: "creditedness", want: model.LabelNone},
		{name: "different inflection", content: "amount debit alert", want: model.LabelNone},
		{name: "empty content", content: "", want: model.LabelNone},
		{name: "accented letter before", content: "Ådebited", want: model.LabelNone},
		{name: "accented letter after", content: "creditedé", want: model.LabelNone},
		{name: "combining mark after", content: "debited\u0301", want: model.LabelNone},
		{name: "cyrillic neighbour", content: "жdebited", want: model.LabelNone},
		{name: "non-letter neighbours", content: "«debited»", want: model.LabelDebited},
		{name: "accented words around", content: "café débit: debited 10€", want: model.LabelDebited},
		{name: "underscore is a word char", content: "debited_flag", want: model.LabelNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Classify(ctx, model.Message{Date: "2023-08-01", Content: tt.content})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMatcher(t *testing.T) {
	t.Run("custom keywords", func(t *testing.T) {
		m, err := NewMatcher(RulesFromKeywords([]string{"Refunded", " withdrawn ", ""}))
		require.NoError(t, err)
		assert.Equal(t, model.Label("refunded"), m.Match("Your order was REFUNDED"))
		assert.Equal(t, model.Label("withdrawn"), m.Match("cash withdrawn at ATM"))
		assert.Equal(t, model.LabelNone, m.Match("debited"))
	})

	t.Run("regex metacharacters are literal", func(t *testing.T) {
		m, err := NewMatcher([]Rule{{Label: "dot", Words: []string{"a.b"}}})
		require.NoError(t, err)
		assert.Equal(t, model.Label("dot"), m.Match("see a.b now"))
		assert.Equal(t, model.LabelNone, m.Match("see axb now"))
	})

	t.Run("no keywords", func(t *testing.T) {
		_, err := NewMatcher(nil)
		require.Error(t, err)
	})

	assert.Equal(t, StrategyName, NewDefaultMatcher().Name())
}
