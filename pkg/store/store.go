// Copyright 2024-2026 Aiku AI

// Package store persists the bot's durable state in SQLite: the sync
// cursor (filter ID and next-batch token, exposed as a
// mautrix.SyncStore) and the per-room spellcheck correction cooldowns.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrations string

// Store is a SQLite-backed persistence layer. Safe for concurrent use;
// SQLite itself serializes writers.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// The sync loop owns SyncStore error handling: mautrix logs a failed
// cursor write and keeps syncing.
var _ mautrix.SyncStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	if _, err := db.Exec(migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}
	s := &Store{db: db, log: log.With().Str("component", "store").Logger()}
	s.log.Debug().Str("path", path).Msg("Database opened")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveFilterID stores the sync filter ID for a user.
func (s *Store) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_state(user_id, filter_id) VALUES(?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET filter_id = excluded.filter_id`,
		string(userID), filterID,
	)
	return err
}

// LoadFilterID returns the stored sync filter ID, or "" if none.
func (s *Store) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	var filterID string
	err := s.db.QueryRowContext(ctx,
		`SELECT filter_id FROM sync_state WHERE user_id = ?`, string(userID),
	).Scan(&filterID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return filterID, err
}

// SaveNextBatch stores the sync cursor for a user.
func (s *Store) SaveNextBatch(ctx context.Context, userID id.UserID, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_state(user_id, next_batch) VALUES(?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET next_batch = excluded.next_batch`,
		string(userID), token,
	)
	return err
}

// LoadNextBatch returns the stored sync cursor, or "" if none.
func (s *Store) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT next_batch FROM sync_state WHERE user_id = ?`, string(userID),
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return token, err
}

// LastCorrection returns the last correction timestamp for a room.
// found is false when the room has never been corrected.
func (s *Store) LastCorrection(ctx context.Context, room id.RoomID) (at time.Time, found bool, err error) {
	var ms int64
	err = s.db.QueryRowContext(ctx,
		`SELECT last_sent_ms FROM corrections WHERE room_id = ?`, string(room),
	).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// SetLastCorrection records a correction timestamp for a room,
// replacing any previous value.
func (s *Store) SetLastCorrection(ctx context.Context, room id.RoomID, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO corrections(room_id, last_sent_ms) VALUES(?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET last_sent_ms = excluded.last_sent_ms`,
		string(room), at.UnixMilli(),
	)
	return err
}
