// Package testutil provides shared fixtures for tests: seeded message stores
// and a fluent builder for message batches with known per-day counts.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/Veraticus/spice-tally/internal/storage"
)

// SetupTestDB creates a migrated in-memory message store seeded with messages.
// The store is closed when the test ends.
func SetupTestDB(t *testing.T, messages ...model.Message) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(storage.MemoryPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	if len(messages) > 0 {
		if _, err := store.SaveMessages(ctx, messages); err != nil {
			t.Fatalf("failed to seed messages: %v", err)
		}
	}

	return store
}
