// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date layout every message date must use.
const DateLayout = "2006-01-02"

// Message sources.
const (
	SourceJSON = "json"
	SourceOFX  = "ofx"
	SourceIMAP = "imap"
)

// Message is a single textual notification (bank alert, email body) to be classified.
// Messages are read-only once ingested.
type Message struct {
	Date    string `json:"date"`
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// ParseDate parses the message date into a calendar day at UTC midnight.
func (m Message) ParseDate() (time.Time, error) {
	return ParseDay(m.Date)
}

// Hash creates a stable hash for duplicate detection.
func (m Message) Hash() string {
	data := fmt.Sprintf("%s:%s", strings.TrimSpace(m.Date), m.Content)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ParseDay parses a YYYY-MM-DD string into a UTC calendar day.
func ParseDay(s string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
	}
	return day, nil
}

// DayKey formats a time as its calendar-day key.
func DayKey(t time.Time) string {
	return t.Format(DateLayout)
}
