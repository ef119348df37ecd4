// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package photo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/camsession/internal/persistence/sqlite"
)

// ErrCorruptCatalog is returned when the catalog fails its integrity check.
var ErrCorruptCatalog = errors.New("photo catalog failed integrity check")

// Record is one persisted photo.
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"-"`
	DeviceID    string    `json:"device_id"`
	SessionID   string    `json:"session_id"`
	SequenceID  int       `json:"sequence_id"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Orientation int       `json:"orientation"`
	Bytes       int64     `json:"bytes"`
	CapturedAt  time.Time `json:"captured_at"`
	WrittenAt   time.Time `json:"written_at"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS photos (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		path         TEXT NOT NULL,
		device_id    TEXT NOT NULL,
		session_id   TEXT NOT NULL,
		sequence_id  INTEGER NOT NULL,
		width        INTEGER NOT NULL,
		height       INTEGER NOT NULL,
		orientation  INTEGER NOT NULL,
		bytes        INTEGER NOT NULL,
		captured_at  INTEGER NOT NULL,
		written_at   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS photos_written_at ON photos (written_at DESC)`,
}

// Catalog indexes written photos in SQLite.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens or creates the catalog at path.
func OpenCatalog(ctx context.Context, path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("photo: create catalog dir: %w", err)
	}
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if diag, err := sqlite.QuickCheck(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	} else if diag != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s", ErrCorruptCatalog, strings.Join(diag, "; "))
	}
	if err := sqlite.Migrate(ctx, db, schema...); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

// Add inserts one record.
func (c *Catalog) Add(ctx context.Context, r Record) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO photos
		(id, name, path, device_id, session_id, sequence_id, width, height, orientation, bytes, captured_at, written_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Path, r.DeviceID, r.SessionID, r.SequenceID,
		r.Width, r.Height, r.Orientation, r.Bytes,
		r.CapturedAt.UnixNano(), r.WrittenAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("catalog insert %s: %w", r.Name, err)
	}
	return nil
}

// List returns up to limit records, newest first.
func (c *Catalog) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := c.db.QueryContext(ctx, `SELECT
		id, name, path, device_id, session_id, sequence_id, width, height, orientation, bytes, captured_at, written_at
		FROM photos ORDER BY written_at DESC, name DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                 Record
			captured, written int64
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Path, &r.DeviceID, &r.SessionID, &r.SequenceID,
			&r.Width, &r.Height, &r.Orientation, &r.Bytes, &captured, &written); err != nil {
			return nil, fmt.Errorf("catalog scan: %w", err)
		}
		r.CapturedAt = time.Unix(0, captured).UTC()
		r.WrittenAt = time.Unix(0, written).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of records.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos`).Scan(&n)
	return n, err
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
