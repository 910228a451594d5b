package main

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/radtriage/internal/blobstore"
	rc "github.com/linnemanlabs/radtriage/internal/cfg"
	"github.com/linnemanlabs/radtriage/internal/llm/claude"
	"github.com/linnemanlabs/radtriage/internal/llm/gemini"
	"github.com/linnemanlabs/radtriage/internal/postgres"
	"github.com/linnemanlabs/radtriage/internal/triage"
	"github.com/linnemanlabs/radtriage/internal/triage/memstore"
	"github.com/linnemanlabs/radtriage/internal/triage/pgstore"
	"github.com/linnemanlabs/radtriage/internal/triage/sqlitestore"
)

// closer releases a component on shutdown. Never nil.
type closer func()

func noopCloser() {}

// openStore picks postgres, sqlite, or memory in that order of preference.
func openStore(ctx context.Context, c *rc.Config, L log.Logger) (triage.Store, closer, error) {
	switch {
	case c.DatabaseURL != "":
		pool, err := postgres.NewPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, noopCloser, fmt.Errorf("postgres pool: %w", err)
		}
		s, err := pgstore.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noopCloser, fmt.Errorf("pgstore init: %w", err)
		}
		L.Info(ctx, "using postgres store")
		return s, pool.Close, nil

	case c.SQLitePath != "":
		s, err := sqlitestore.Open(ctx, c.SQLitePath)
		if err != nil {
			return nil, noopCloser, fmt.Errorf("sqlitestore init: %w", err)
		}
		L.Info(ctx, "using sqlite store", "path", c.SQLitePath)
		return s, func() { _ = s.Close() }, nil

	default:
		L.Info(ctx, "using in-memory store (no database-url or sqlite-path configured)")
		return memstore.New(), noopCloser, nil
	}
}

// openBlobStore builds the image storage backend.
func openBlobStore(ctx context.Context, c *rc.Config, L log.Logger) (triage.BlobStore, error) {
	switch c.StorageBackend {
	case rc.StorageS3:
		s, err := blobstore.NewS3(ctx, blobstore.S3Config{
			Bucket:          c.S3Bucket,
			Prefix:          c.S3Prefix,
			Region:          c.S3Region,
			Endpoint:        c.S3Endpoint,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 blob store: %w", err)
		}
		L.Info(ctx, "using s3 image storage", "bucket", c.S3Bucket, "prefix", c.S3Prefix, "endpoint", c.S3Endpoint)
		return s, nil

	case rc.StorageDir:
		d, err := blobstore.NewDir(c.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("dir blob store: %w", err)
		}
		L.Info(ctx, "using local image storage", "dir", c.StorageDir)
		return d, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

// newClassifier builds the configured classification backend.
func newClassifier(ctx context.Context, c *rc.Config, L log.Logger) (triage.Classifier, closer, error) {
	switch c.Classifier {
	case rc.ClassifierGemini:
		g, err := gemini.New(ctx, c.GeminiAPIKey, c.GeminiModel)
		if err != nil {
			return nil, noopCloser, err
		}
		L.Info(ctx, "initialized classifier", "provider", "gemini", "model", c.GeminiModel)
		return g, func() { _ = g.Close() }, nil

	case rc.ClassifierClaude:
		L.Info(ctx, "initialized classifier", "provider", "claude", "model", c.ClaudeModel)
		return claude.New(c.ClaudeAPIKey, c.ClaudeModel), noopCloser, nil

	default:
		return nil, noopCloser, fmt.Errorf("unknown classifier %q", c.Classifier)
	}
}

// observeQueries records every database query in a duration histogram
// labelled by HTTP method, route and outcome.
func observeQueries(reg prometheus.Registerer) error {
	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radtriage_db_query_duration_seconds",
		Help:    "Duration of individual database queries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "outcome"})
	if err := reg.Register(hist); err != nil {
		return fmt.Errorf("register db query histogram: %w", err)
	}

	postgres.SetQueryObserver(postgres.QueryObserverFunc(
		func(_ context.Context, method, route, outcome string, d time.Duration) {
			hist.WithLabelValues(method, route, outcome).Observe(d.Seconds())
		},
	))
	return nil
}

// pinger is implemented by stores backed by a database connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// storeProbe reports readiness from the store's database. Stores without a
// connection are always ready.
func storeProbe(s triage.Store) health.Probe {
	if p, ok := s.(pinger); ok {
		return health.CheckFunc(func(ctx context.Context) error {
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("result store: %w", err)
			}
			return nil
		})
	}
	return health.Fixed(true, "")
}
