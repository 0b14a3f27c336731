// Package ingest loads messages from JSON files, OFX statements and IMAP mailboxes.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Veraticus/spice-tally/internal/model"
)

// ErrUnsupportedFormat is returned for input that is neither a JSON array nor an envelope.
var ErrUnsupportedFormat = errors.New("unsupported message format")

// envelope is the {"messages": [...]} request shape.
type envelope struct {
	Messages []model.Message `json:"messages"`
}

// LoadJSON reads a bare array of {date, content} objects or an object with a
// "messages" array. Messages without a source are tagged as JSON.
func LoadJSON(r io.Reader) ([]model.Message, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnsupportedFormat)
	}

	var messages []model.Message
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return nil, fmt.Errorf("failed to decode message array: %w", err)
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("failed to decode message envelope: %w", err)
		}
		messages = env.Messages
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", ErrUnsupportedFormat)
	}

	for i := range messages {
		if messages[i].Source == "" {
			messages[i].Source = model.SourceJSON
		}
	}
	return messages, nil
}
