package pattern

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/spice-tally/internal/model"
)

// wordChars is the character class of letters, digits, marks and underscore.
const wordChars = `\p{L}\p{N}\p{M}_`

// Matcher labels messages by whole-word, case-insensitive keyword matches.
// It is safe for concurrent use.
type Matcher struct {
	re     *regexp.Regexp
	labels map[string]model.Label
}

// NewMatcher compiles the rules into a single alternation.
func NewMatcher(rules []Rule) (*Matcher, error) {
	labels := make(map[string]model.Label)
	var words []string

	for _, rule := range rules {
		for _, w := range rule.Words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			if _, dup := labels[w]; dup {
				continue
			}
			labels[w] = rule.Label
			words = append(words, regexp.QuoteMeta(w))
		}
	}

	if len(words) == 0 {
		return nil, fmt.Errorf("pattern matcher needs at least one keyword")
	}

	// \b is ASCII-only in RE2; spell out a Unicode word boundary instead.
	re, err := regexp.Compile(`(?i)(?:^|[^` + wordChars + `])(` + strings.Join(words, "|") + `)(?:[^` + wordChars + `]|$)`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile keyword pattern: %w", err)
	}

	return &Matcher{re: re, labels: labels}, nil
}

// NewDefaultMatcher returns the debited/credited matcher.
func NewDefaultMatcher() *Matcher {
	m, err := NewMatcher(DefaultRules())
	if err != nil {
		panic(err)
	}
	return m
}

// Name returns the strategy name.
func (m *Matcher) Name() string {
	return StrategyName
}

// Classify returns the label of the leftmost keyword in the content, or none.
// It never fails.
func (m *Matcher) Classify(_ context.Context, msg model.Message) (model.Label, error) {
	return m.Match(msg.Content), nil
}

// Match labels raw text.
func (m *Matcher) Match(content string) model.Label {
	if content == "" {
		return model.LabelNone
	}

	match := m.re.FindStringSubmatch(content)
	if match == nil {
		return model.LabelNone
	}

	if label, ok := m.labels[strings.ToLower(match[1])]; ok {
		return label
	}
	return model.LabelNone
}
