package triage

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

const tracerName = "github.com/linnemanlabs/radtriage/internal/triage"

// tracer is resolved per call so a swapped global provider takes effect.
func tracer() trace.Tracer { return otel.Tracer(tracerName) }

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// ErrEmptyResponse is reported when the classifier returns no text.
var ErrEmptyResponse = errors.New("no valid response from classifier")

// ClassifyRequest is a single image submitted to a classifier.
type ClassifyRequest struct {
	MIMEType string
	// ImageBase64 is the standard base64 encoding of the image bytes.
	ImageBase64 string
	Prompt      string
}

// Classifier is the interface for any image classification backend.
type Classifier interface {
	Classify(ctx context.Context, req *ClassifyRequest) (string, error)
}

// Outcome is the tagged result of one classification: either Text or Err is set.
type Outcome struct {
	Text     string
	Err      error
	Duration time.Duration
}

// OK reports whether the classification produced text.
func (o Outcome) OK() bool { return o.Err == nil }

// Adapter wraps a Classifier so that a single image never hard-fails a batch.
type Adapter struct {
	classifier Classifier
	prompt     string
	logger     log.Logger
}

// NewAdapter creates an adapter that sends prompt with every image.
func NewAdapter(c Classifier, prompt string, logger log.Logger) *Adapter {
	if logger == nil {
		logger = log.Nop()
	}
	if prompt == "" {
		prompt = SeverityPrompt
	}
	return &Adapter{classifier: c, prompt: prompt, logger: logger}
}

// Classify encodes image and submits it once. Collaborator failures are
// returned in Outcome.Err, never as classifier text.
func (a *Adapter) Classify(ctx context.Context, image []byte, mimeType string) Outcome {
	if mimeType == "" {
		mimeType = DetectMIMEType(image)
	}

	ctx, span := tracer().Start(ctx, "classifier.call", trace.WithAttributes(
		attribute.String("radtriage.image.mime_type", mimeType),
		attribute.Int("radtriage.image.bytes", len(image)),
	))
	defer span.End()

	start := time.Now()
	text, err := a.classifier.Classify(ctx, &ClassifyRequest{
		MIMEType:    mimeType,
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		Prompt:      a.prompt,
	})
	dur := time.Since(start)

	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		failSpan(span, err)
		a.logger.Error(ctx, err, "classification failed", "duration", dur.Seconds())
		return Outcome{Err: err, Duration: dur}
	}
	span.SetAttributes(attribute.Int("radtriage.response.chars", len(text)))
	return Outcome{Text: text, Duration: dur}
}

// DetectMIMEType sniffs an image content type, defaulting to image/jpeg.
func DetectMIMEType(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}
