package triage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// DefaultCriticalThreshold matches the lower bound of the prompt's critical band.
const DefaultCriticalThreshold = 9.0

const (
	sourceBatch  = "batch"
	sourceUpload = "upload"
)

// ErrNoValidImages is returned when an upload request yields no graded image.
var ErrNoValidImages = errors.New("no valid images processed")

var allowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
}

// AllowedFile reports whether filename carries an accepted image extension.
func AllowedFile(filename string) bool {
	_, ok := allowedExtensions[extensionOf(filename)]
	return ok
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sends results at or above threshold to n.
func WithNotifier(n Notifier, threshold float64) Option {
	return func(s *Service) {
		s.notifier = n
		s.criticalThreshold = threshold
	}
}

// WithNamer overrides the upload namer.
func WithNamer(n *Namer) Option {
	return func(s *Service) { s.namer = n }
}

// Service is the business boundary for triage operations.
type Service struct {
	blobs             BlobStore
	adapter           *Adapter
	gateway           *Gateway
	namer             *Namer
	logger            log.Logger
	metrics           *Metrics
	notifier          Notifier
	criticalThreshold float64
}

// NewService creates a new triage service.
func NewService(blobs BlobStore, adapter *Adapter, gateway *Gateway, logger log.Logger, metrics *Metrics, opts ...Option) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		blobs:             blobs,
		adapter:           adapter,
		gateway:           gateway,
		namer:             NewNamer(),
		logger:            logger,
		metrics:           metrics,
		criticalThreshold: DefaultCriticalThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FetchAndTriage grades every stored image that has not been persisted yet and
// returns the results ranked by severity. A listing failure yields an empty batch.
func (s *Service) FetchAndTriage(ctx context.Context) (*BatchResult, error) {
	batchID := ulid.Make().String()
	L := s.logger.With("batch_id", batchID)
	start := time.Now()

	ctx, span := tracer().Start(ctx, "triage.batch", trace.WithAttributes(
		attribute.String("radtriage.batch_id", batchID),
	))
	defer span.End()

	br := &BatchResult{
		BatchID: batchID,
		Results: []*Result{},
		Failed:  []Failure{},
	}

	names, err := s.blobs.List(ctx)
	if err != nil {
		L.Error(ctx, err, "failed to list images from storage")
		failSpan(span, err)
		s.metrics.observeBatch("list_error", 0)
		return br, nil
	}

	pending := FilterUnprocessed(names, s.gateway.ProcessedNames(ctx))
	L.Info(ctx, "fetched image listing", "listed", len(names), "pending", len(pending))

	for _, name := range pending {
		data, err := s.blobs.Get(ctx, name)
		if err != nil {
			L.Error(ctx, err, "failed to download image", "image_name", name)
			br.Failed = append(br.Failed, Failure{ImageName: name, Error: err.Error()})
			continue
		}

		r, err := s.grade(ctx, L, sourceBatch, name, data)
		if err != nil {
			br.Failed = append(br.Failed, Failure{ImageName: name, Error: err.Error()})
			continue
		}
		br.Results = append(br.Results, r)
	}

	RankBySeverity(br.Results)
	br.ProcessedCount = len(br.Results)

	outcome := "ok"
	if len(br.Failed) > 0 {
		outcome = "partial"
	}
	s.metrics.observeBatch(outcome, len(pending))
	span.SetAttributes(
		attribute.Int("radtriage.batch.pending", len(pending)),
		attribute.Int("radtriage.batch.processed", br.ProcessedCount),
		attribute.Int("radtriage.batch.failed", len(br.Failed)),
	)

	L.Info(ctx, "batch complete",
		"processed", br.ProcessedCount,
		"failed", len(br.Failed),
		"duration", time.Since(start).Seconds(),
	)

	s.notifyCritical(ctx, L, br.Results)
	return br, nil
}

// TriageUploads stores and grades manually submitted images. Files with a
// disallowed extension are skipped. ErrNoValidImages is returned, along with
// any per-file failures, when nothing could be graded.
func (s *Service) TriageUploads(ctx context.Context, uploads []Upload) (*UploadResult, error) {
	ur := &UploadResult{
		Results: []*Result{},
		Failed:  []Failure{},
	}

	for _, up := range uploads {
		if !AllowedFile(up.Filename) {
			s.logger.Warn(ctx, "skipping upload with disallowed extension", "filename", up.Filename)
			s.metrics.observeRejectedUpload("extension")
			continue
		}

		r, err := s.triageUpload(ctx, up)
		if err != nil {
			ur.Failed = append(ur.Failed, Failure{ImageName: up.Filename, Error: err.Error()})
			continue
		}
		ur.Results = append(ur.Results, r)
	}

	if len(ur.Results) == 0 {
		return ur, ErrNoValidImages
	}

	s.notifyCritical(ctx, s.logger, ur.Results)
	return ur, nil
}

func (s *Service) triageUpload(ctx context.Context, up Upload) (*Result, error) {
	name, err := s.namer.Resolve(up.Filename, s.gateway.ProcessedNames(ctx))
	if err != nil {
		s.logger.Error(ctx, err, "failed to resolve upload name", "filename", up.Filename)
		s.metrics.observeRejectedUpload("name")
		return nil, err
	}

	L := s.logger.With("image_name", name)

	contentType := DetectMIMEType(up.Data)
	if err := s.blobs.Put(ctx, name, up.Data, contentType); err != nil {
		L.Error(ctx, err, "failed to upload image to storage")
		s.metrics.observeRejectedUpload("storage")
		return nil, fmt.Errorf("upload to storage: %w", err)
	}
	if name != up.Filename {
		L.Info(ctx, "renamed upload to avoid collision", "filename", up.Filename)
	}

	return s.grade(ctx, L, sourceUpload, name, up.Data)
}

// grade classifies one image and assembles its result.
func (s *Service) grade(ctx context.Context, L log.Logger, source, name string, data []byte) (*Result, error) {
	ctx, span := tracer().Start(ctx, "triage.grade", trace.WithAttributes(
		attribute.String("radtriage.image_name", name),
		attribute.String("radtriage.source", source),
	))
	defer span.End()

	outcome := s.adapter.Classify(ctx, data, DetectMIMEType(data))
	s.metrics.observeClassification(source, outcome)
	if !outcome.OK() {
		failSpan(span, outcome.Err)
		L.Warn(ctx, "excluding image after classification failure", "image_name", name, "error", outcome.Err)
		return nil, fmt.Errorf("classify: %w", outcome.Err)
	}

	rating, comment := ParseResponse(outcome.Text)
	s.metrics.observeRating(rating)
	if rating != nil {
		span.SetAttributes(attribute.Float64("radtriage.severity_rating", *rating))
	}
	if rating == nil {
		L.Warn(ctx, "no severity rating in classifier response", "image_name", name)
	} else if !InRange(*rating) {
		L.Warn(ctx, "severity rating outside clinical scale", "image_name", name, "severity_rating", *rating)
	}

	return &Result{
		ImageName:      name,
		SeverityRating: rating,
		Comment:        comment,
		ImageData:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

// SaveNotes persists a graded result with the radiologist's notes.
func (s *Service) SaveNotes(ctx context.Context, r *Result) (*Result, error) {
	saved, err := s.gateway.Upsert(ctx, r)
	if err != nil {
		if !errors.Is(err, ErrNameRequired) {
			s.logger.Error(ctx, err, "failed to save image notes", "image_name", r.ImageName)
		}
		return nil, err
	}
	s.logger.Info(ctx, "saved image notes", "image_name", saved.ImageName, "has_notes", saved.RadiologistNotes != nil)
	return saved, nil
}

// History returns every persisted result ordered by severity.
func (s *Service) History(ctx context.Context) []*Result {
	return s.gateway.History(ctx)
}

func (s *Service) notifyCritical(ctx context.Context, L log.Logger, results []*Result) {
	if s.notifier == nil {
		return
	}
	for _, r := range results {
		if r.SeverityRating == nil || *r.SeverityRating < s.criticalThreshold {
			continue
		}
		err := s.notifier.Send(ctx, r)
		s.metrics.observeNotification(err)
		if err != nil {
			L.Error(ctx, err, "failed to send critical finding notification", "image_name", r.ImageName)
		}
	}
}

// extensionOf returns the lowercase extension of name without the dot.
func extensionOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}
