package model

import "strings"

// Label is the outcome of classifying one message.
type Label string

// Known labels. Model-based strategies may return any other string.
const (
	LabelDebited  Label = "debited"
	LabelCredited Label = "credited"
	LabelNone     Label = "none"
	// LabelUnknown marks a message the classifier failed on.
	LabelUnknown Label = "unknown"
)

// Matched reports whether the label counts as a transaction.
func (l Label) Matched() bool {
	switch l {
	case "", LabelNone, LabelUnknown:
		return false
	}
	return true
}

// NormalizeLabel trims and lower-cases free text into a label.
func NormalizeLabel(text string) Label {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.Trim(s, ".'\"` ")
	if s == "" {
		return LabelNone
	}
	return Label(s)
}
