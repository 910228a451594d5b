// Package sqlitestore provides an embedded SQLite implementation of triage.Store
// for single-node deployments.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/linnemanlabs/radtriage/internal/triage"
)

//go:embed schema.sql
var schema string

// Store persists triage results in a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Pass ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// single writer avoids "database is locked"
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const resultColumns = `image_name, severity_rating, comment, image_data, radiologist_notes, created_at`

// Get retrieves a triage result by image name.
func (s *Store) Get(ctx context.Context, imageName string) (*triage.Result, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM mri_triage_results WHERE image_name = ?`, imageName)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// Put inserts or fully replaces the row keyed by image name.
func (s *Store) Put(ctx context.Context, r *triage.Result) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO mri_triage_results (`+resultColumns+`)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (image_name) DO UPDATE SET
		severity_rating   = excluded.severity_rating,
		comment           = excluded.comment,
		image_data        = excluded.image_data,
		radiologist_notes = excluded.radiologist_notes,
		created_at        = excluded.created_at`,
		r.ImageName, nullFloat(r.SeverityRating), r.Comment, r.ImageData,
		nullString(r.RadiologistNotes), r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

// Names returns every stored image name.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT image_name FROM mri_triage_results ORDER BY image_name`)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return names, nil
}

// List returns every result, highest severity first and unrated last.
func (s *Store) List(ctx context.Context) ([]*triage.Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultColumns+` FROM mri_triage_results
	ORDER BY severity_rating IS NULL, severity_rating DESC, image_name`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []*triage.Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*triage.Result, error) {
	var (
		r       triage.Result
		rating  sql.NullFloat64
		notes   sql.NullString
		created string
	)
	if err := row.Scan(&r.ImageName, &rating, &r.Comment, &r.ImageData, &notes, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	if rating.Valid {
		r.SeverityRating = &rating.Float64
	}
	if notes.Valid {
		r.RadiologistNotes = &notes.String
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	r.CreatedAt = t
	return &r, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
