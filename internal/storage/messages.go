package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/Veraticus/spice-tally/internal/service"
)

// SaveMessages stores messages, ignoring ones already present by hash.
// It returns how many rows were inserted.
func (s *SQLiteStorage) SaveMessages(ctx context.Context, messages []model.Message) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateMessages(messages); err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := s.saveMessagesTx(ctx, tx, messages)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit messages: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStorage) saveMessagesTx(ctx context.Context, tx *sql.Tx, messages []model.Message) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO messages (hash, date, content, source)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, msg := range messages {
		res, err := stmt.ExecContext(ctx,
			msg.Hash(),
			strings.TrimSpace(msg.Date),
			msg.Content,
			msg.Source,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert message dated %q: %w", msg.Date, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	return inserted, nil
}

// GetMessages returns stored messages matching filter, oldest first.
// Date bounds compare the stored YYYY-MM-DD text, so messages with other
// date formats only appear in unbounded queries.
func (s *SQLiteStorage) GetMessages(ctx context.Context, filter service.MessageFilter) ([]model.Message, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return s.getMessagesTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getMessagesTx(ctx context.Context, q queryable, filter service.MessageFilter) ([]model.Message, error) {
	query := `SELECT date, content, source FROM messages WHERE 1=1`
	args := []any{}

	if filter.StartDate != nil {
		query += " AND date >= ?"
		args = append(args, model.DayKey(*filter.StartDate))
	}
	if filter.EndDate != nil {
		query += " AND date <= ?"
		args = append(args, model.DayKey(*filter.EndDate))
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}

	query += " ORDER BY date ASC, id ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.Date, &msg.Content, &msg.Source); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// CountMessages returns the number of stored messages.
func (s *SQLiteStorage) CountMessages(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
