// Package pattern provides the deterministic, keyword-based message classifier.
package pattern

import "github.com/Veraticus/spice-tally/internal/model"

// StrategyName identifies the pattern strategy in results and metrics.
const StrategyName = "pattern"

// Rule maps whole words found in message content to a label.
type Rule struct {
	Label model.Label
	Words []string
}

// DefaultRules match the words "debited" and "credited".
func DefaultRules() []Rule {
	return []Rule{
		{Label: model.LabelDebited, Words: []string{"debited"}},
		{Label: model.LabelCredited, Words: []string{"credited"}},
	}
}

// RulesFromKeywords builds one rule per keyword, labeled by the keyword itself.
func RulesFromKeywords(keywords []string) []Rule {
	rules := make([]Rule, 0, len(keywords))
	for _, kw := range keywords {
		label := model.NormalizeLabel(kw)
		if !label.Matched() {
			continue
		}
		rules = append(rules, Rule{Label: label, Words: []string{string(label)}})
	}
	return rules
}
