package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"props_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A second pooled connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetState returns the value stored for a chat under key.
func (s *SQLite) GetState(ctx context.Context, chatID int64, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM chat_state WHERE chat_id = ? AND key = ?`, chatID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return value, nil
}

// PutState stores value for a chat under key, replacing any previous value.
func (s *SQLite) PutState(ctx context.Context, chatID int64, key string, value []byte) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_state (chat_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (chat_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		chatID, key, value, now,
	)
	if err != nil {
		return fmt.Errorf("put state: %w", err)
	}
	return nil
}

// ListChats returns the ids of all chats that have a value under key.
func (s *SQLite) ListChats(ctx context.Context, key string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id FROM chat_state WHERE key = ? ORDER BY chat_id`, key,
	)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkSeen records that a listing has been sent for a saved search.
func (s *SQLite) MarkSeen(ctx context.Context, chatID int64, searchID, listingID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_listings (chat_id, search_id, listing_id) VALUES (?, ?, ?)`,
		chatID, searchID, listingID,
	)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// IsSeen checks whether a listing has already been sent for a saved search.
func (s *SQLite) IsSeen(ctx context.Context, chatID int64, searchID, listingID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_listings WHERE chat_id = ? AND search_id = ? AND listing_id = ?`,
		chatID, searchID, listingID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return count > 0, nil
}

// ForgetSearch removes the seen listings of a deleted saved search.
func (s *SQLite) ForgetSearch(ctx context.Context, chatID int64, searchID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_listings WHERE chat_id = ? AND search_id = ?`, chatID, searchID,
	)
	if err != nil {
		return fmt.Errorf("forget search: %w", err)
	}
	return nil
}
