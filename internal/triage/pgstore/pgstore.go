// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/radtriage/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/radtriage/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists triage results in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, span := startSpan(ctx, "pgstore.Ping", "SELECT")
	defer span.End()
	if err := s.pool.Ping(ctx); err != nil {
		return fail(span, err)
	}
	return nil
}

const resultColumns = `image_name, severity_rating, comment, image_data, radiologist_notes, created_at`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Get retrieves a triage result by image name.
func (s *Store) Get(ctx context.Context, imageName string) (*triage.Result, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	query := `SELECT ` + resultColumns + ` FROM mri_triage_results WHERE image_name = $1`
	r, err := scanResult(s.pool.QueryRow(ctx, query, imageName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, err)
	}
	return r, true, nil
}

// Put inserts or fully replaces the row keyed by image name.
func (s *Store) Put(ctx context.Context, r *triage.Result) error {
	ctx, span := startSpan(ctx, "pgstore.Put", "UPSERT")
	defer span.End()
	span.SetAttributes(attribute.String("radtriage.image_name", r.ImageName))

	query := `INSERT INTO mri_triage_results (` + resultColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (image_name) DO UPDATE SET
		severity_rating   = EXCLUDED.severity_rating,
		comment           = EXCLUDED.comment,
		image_data        = EXCLUDED.image_data,
		radiologist_notes = EXCLUDED.radiologist_notes,
		created_at        = EXCLUDED.created_at`

	_, err := s.pool.Exec(ctx, query,
		r.ImageName, r.SeverityRating, r.Comment, r.ImageData, r.RadiologistNotes, r.CreatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert result: %w", err))
	}
	return nil
}

// Names returns every stored image name.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	ctx, span := startSpan(ctx, "pgstore.Names", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT image_name FROM mri_triage_results`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query names: %w", err))
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fail(span, fmt.Errorf("collect names: %w", err))
	}
	return names, nil
}

// List returns every result, highest severity first and unrated last.
func (s *Store) List(ctx context.Context) ([]*triage.Result, error) {
	ctx, span := startSpan(ctx, "pgstore.List", "SELECT")
	defer span.End()

	query := `SELECT ` + resultColumns + ` FROM mri_triage_results
	ORDER BY severity_rating DESC NULLS LAST, image_name`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query history: %w", err))
	}
	defer rows.Close()

	out := []*triage.Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate history: %w", err))
	}
	span.SetAttributes(attribute.Int("db.rows", len(out)))
	return out, nil
}

// scanResult scans one row in resultColumns order.
func scanResult(row pgx.Row) (*triage.Result, error) {
	var r triage.Result
	err := row.Scan(&r.ImageName, &r.SeverityRating, &r.Comment, &r.ImageData, &r.RadiologistNotes, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return &r, nil
}
