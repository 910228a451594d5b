// Package triageapi exposes the triage service over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/radtriage/internal/postgres"
	"github.com/linnemanlabs/radtriage/internal/triage"
)

// DefaultMaxUploadBytes bounds a single upload request body.
const DefaultMaxUploadBytes = 32 << 20

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	FetchAndTriage(ctx context.Context) (*triage.BatchResult, error)
	TriageUploads(ctx context.Context, uploads []triage.Upload) (*triage.UploadResult, error)
	SaveNotes(ctx context.Context, r *triage.Result) (*triage.Result, error)
	History(ctx context.Context) []*triage.Result
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger         log.Logger
	svc            TriageService
	maxUploadBytes int64
}

// Option configures an API.
type Option func(*API)

// WithMaxUploadBytes caps the upload request body. Non-positive values keep the default.
func WithMaxUploadBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxUploadBytes = n
		}
	}
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService, opts ...Option) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	a := &API{
		logger:         logger,
		svc:            svc,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.queryStats)
		r.Post("/fetch-images", a.handleFetchImages)
		r.Post("/upload-image", a.handleUploadImage)
		r.Post("/save-image-notes", a.handleSaveNotes)
		r.Get("/view-history", a.handleViewHistory)
	})
}

// queryStats tags the request context for the query tracer and logs the
// per-request database totals once the handler returns.
func (a *API) queryStats(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := postgres.WithHTTPMethod(r.Context(), r.Method)
		ctx = postgres.NewReqDBStatsContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))

		stats, _ := postgres.ReqDBStatsFromContext(ctx)
		if count, total, errs := stats.Snapshot(); count > 0 {
			a.logger.Info(ctx, "request db stats",
				"path", r.URL.Path,
				"db.queries", count,
				"db.duration", total.Seconds(),
				"db.errors", errs,
			)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
