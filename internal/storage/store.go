// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DefaultMaxTranscripts is the retention cap when none is configured.
const DefaultMaxTranscripts = 100

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound  = errors.New("transcript not found")
	ErrAmbiguous = errors.New("transcript id prefix is ambiguous")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	checkpoint    TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	message_count INTEGER NOT NULL,
	preview       TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL DEFAULT '',
	messages      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_updated ON transcripts(updated_at);
`

const metaColumns = `id, title, created_at, updated_at, message_count, preview`

// =============================================================================
// STORE
// =============================================================================

// Store persists transcripts in SQLite.
type Store struct {
	db *sql.DB

	// MaxTranscripts limits stored transcripts (0 = unlimited).
	// The least recently updated are removed first.
	MaxTranscripts int

	now func() time.Time
}

// Open opens (creating if needed) the transcript database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{
		db:             db,
		MaxTranscripts: DefaultMaxTranscripts,
		now:            time.Now,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save inserts or replaces a transcript and returns its ID.
// A missing ID, title or creation time is filled in.
func (s *Store) Save(ctx context.Context, t *Transcript) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Title == "" {
		t.Title = t.generateTitle()
	}
	t.UpdatedAt = s.now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = t.UpdatedAt
	}

	data, err := json.Marshal(t.Messages)
	if err != nil {
		return "", fmt.Errorf("encode messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, title, checkpoint, created_at, updated_at, message_count, preview, body, messages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			checkpoint = excluded.checkpoint,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count,
			preview = excluded.preview,
			body = excluded.body,
			messages = excluded.messages`,
		t.ID, t.Title, t.Checkpoint,
		t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano(),
		len(t.Messages), t.Preview(), t.body(), string(data),
	)
	if err != nil {
		return "", fmt.Errorf("save transcript: %w", err)
	}

	if s.MaxTranscripts > 0 {
		if err := s.enforceLimit(ctx); err != nil {
			return t.ID, err
		}
	}
	return t.ID, nil
}

// enforceLimit removes the oldest transcripts beyond MaxTranscripts.
func (s *Store) enforceLimit(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM transcripts WHERE id NOT IN (
			SELECT id FROM transcripts ORDER BY updated_at DESC, id DESC LIMIT ?
		)`, s.MaxTranscripts)
	if err != nil {
		return fmt.Errorf("enforce transcript limit: %w", err)
	}
	return nil
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a transcript by exact ID.
func (s *Store) Load(ctx context.Context, id string) (*Transcript, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, checkpoint, created_at, updated_at, messages
		FROM transcripts WHERE id = ?`, id)

	var (
		t                Transcript
		created, updated int64
		messages         string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Checkpoint, &created, &updated, &messages)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	if err := json.Unmarshal([]byte(messages), &t.Messages); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", id, err)
	}
	t.CreatedAt = time.Unix(0, created).UTC()
	t.UpdatedAt = time.Unix(0, updated).UTC()
	return &t, nil
}

// Resolve loads a transcript by full ID or by a unique ID prefix.
func (s *Store) Resolve(ctx context.Context, ref string) (*Transcript, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	if t, err := s.Load(ctx, ref); !errors.Is(err, ErrNotFound) {
		return t, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM transcripts WHERE substr(id, 1, length(?)) = ? LIMIT 2`, ref, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve transcript: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("resolve transcript: %w", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("resolve transcript: %w", err)
	}

	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return s.Load(ctx, ids[0])
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, ref)
	}
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved transcripts, most recently updated first.
func (s *Store) List(ctx context.Context) ([]TranscriptMeta, error) {
	return s.queryMetas(ctx, `SELECT `+metaColumns+` FROM transcripts
		ORDER BY updated_at DESC, id DESC`)
}

// Search finds transcripts whose title or any message contains query
// (case-insensitive for ASCII).
func (s *Store) Search(ctx context.Context, query string) ([]TranscriptMeta, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx)
	}
	pattern := "%" + escapeLike(query) + "%"
	return s.queryMetas(ctx, `SELECT `+metaColumns+` FROM transcripts
		WHERE title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC, id DESC`, pattern, pattern)
}

func (s *Store) queryMetas(ctx context.Context, query string, args ...any) ([]TranscriptMeta, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	metas := []TranscriptMeta{}
	for rows.Next() {
		var (
			m                TranscriptMeta
			created, updated int64
		)
		if err := rows.Scan(&m.ID, &m.Title, &created, &updated, &m.MessageCount, &m.Preview); err != nil {
			return nil, fmt.Errorf("list transcripts: %w", err)
		}
		m.CreatedAt = time.Unix(0, created).UTC()
		m.UpdatedAt = time.Unix(0, updated).UTC()
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	return metas, nil
}

// escapeLike escapes LIKE wildcards so query matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a transcript by exact ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
