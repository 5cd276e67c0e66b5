// Package postlog keeps an optional sqlite record of every status the
// bridge has submitted. It is purely observational: the watermark remains
// the only publish authority and the log is never consulted for
// deduplication.
package postlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

type Log struct {
	db *sql.DB
}

// Rec is one published entry.
type Rec struct {
	EntryLink        string
	EntryTitle       string
	EntryPublishedAt int64
	StatusID         string
	StatusURL        string
	PostedAt         time.Time
}

func Open(path string) (*Log, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("postlog: path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create postlog dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Log{db: db}, nil
}

func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record appends one published status to the log.
func (l *Log) Record(ctx context.Context, rec Rec) error {
	if l == nil || l.db == nil {
		return errors.New("postlog is not initialized")
	}
	if strings.TrimSpace(rec.EntryLink) == "" {
		return errors.New("entry link is required")
	}
	if strings.TrimSpace(rec.StatusID) == "" {
		return errors.New("status id is required")
	}
	if rec.PostedAt.IsZero() {
		rec.PostedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO statuses (entry_link, entry_title, entry_published_at, status_id, status_url, posted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.EntryLink,
		rec.EntryTitle,
		rec.EntryPublishedAt,
		rec.StatusID,
		rec.StatusURL,
		rec.PostedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record status: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (l *Log) Recent(ctx context.Context, n int) ([]Rec, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("postlog is not initialized")
	}
	if n <= 0 {
		n = 20
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT entry_link, entry_title, entry_published_at, status_id, status_url, posted_at
		FROM statuses
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []Rec
	for rows.Next() {
		var (
			rec      Rec
			urlVal   sql.NullString
			postedAt string
		)
		if err := rows.Scan(&rec.EntryLink, &rec.EntryTitle, &rec.EntryPublishedAt, &rec.StatusID, &urlVal, &postedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if urlVal.Valid {
			rec.StatusURL = urlVal.String
		}
		rec.PostedAt, err = time.Parse(time.RFC3339, postedAt)
		if err != nil {
			return nil, fmt.Errorf("parse posted_at: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return recs, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply schema: %w", err)
	}

	var version string
	err = tx.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.ExecContext(ctx, "INSERT INTO metadata(key, value) VALUES('schema_version', ?)",
			fmt.Sprint(schemaVersion)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert schema version: %w", err)
		}
		return tx.Commit()
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != fmt.Sprint(schemaVersion) {
		_ = tx.Rollback()
		return fmt.Errorf("postlog schema version %s is not supported", version)
	}

	return tx.Commit()
}
