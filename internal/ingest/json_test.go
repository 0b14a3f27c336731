package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-tally/internal/model"
)

func TestLoadJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []model.Message
		wantErr bool
	}{
		{
			name:  "bare array",
			input: `[{"date": "2023-08-01", "content": "debited $5"}]`,
			want:  []model.Message{{Date: "2023-08-01", Content: "debited $5", Source: model.SourceJSON}},
		},
		{
			name:  "envelope keeps explicit source",
			input: ` {"messages": [{"date": "2023-08-02", "content": "hi", "source": "imap"}]}`,
			want:  []model.Message{{Date: "2023-08-02", Content: "hi", Source: model.SourceIMAP}},
		},
		{
			name:  "empty array",
			input: `[]`,
			want:  []model.Message{},
		},
		{
			name:    "empty input",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "scalar",
			input:   `"2023-08-01"`,
			wantErr: true,
		},
		{
			name:    "malformed",
			input:   `[{"date": }]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadJSON(strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	jsonPath := filepath.Join(dir, "messages.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"date":"2023-08-01","content":"credited"}]`), 0o600))

	messages, err := LoadFile(context.Background(), jsonPath, logger)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "credited", messages[0].Content)

	csvPath := filepath.Join(dir, "messages.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("date,content"), 0o600))
	_, err = LoadFile(context.Background(), csvPath, logger)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadFile(context.Background(), filepath.Join(dir, "missing.json"), logger)
	require.Error(t, err)
}
