package triageapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/radtriage/internal/triage"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

func (a *API) handleFetchImages(w http.ResponseWriter, r *http.Request) {
	br, err := a.svc.FetchAndTriage(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "fetch and triage failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("radtriage.batch_id", br.BatchID),
		attribute.Int("radtriage.batch.processed", br.ProcessedCount),
		attribute.Int("radtriage.batch.failed", len(br.Failed)),
	)

	if br.ProcessedCount == 0 && len(br.Failed) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "No new images to process",
			"results": []*triage.Result{},
		})
		return
	}
	writeJSON(w, http.StatusOK, br)
}

func (a *API) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	// multipart keeps a part with an empty filename as a plain value, so any
	// value under "file" is an empty selection
	if _, ok := r.MultipartForm.Value["file"]; ok {
		writeError(w, http.StatusBadRequest, "No selected file")
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}

	uploads := make([]triage.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			a.logger.Warn(r.Context(), "failed to read uploaded file", "filename", fh.Filename, "error", err)
			continue
		}
		uploads = append(uploads, triage.Upload{Filename: fh.Filename, Data: data})
	}

	res, err := a.svc.TriageUploads(r.Context(), uploads)
	switch {
	case errors.Is(err, triage.ErrNoValidImages):
		failed := []triage.Failure{}
		if res != nil && res.Failed != nil {
			failed = res.Failed
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "No valid images processed",
			"failed": failed,
		})
		return
	case err != nil:
		a.logger.Error(r.Context(), err, "upload triage failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open part: %w", err)
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func (a *API) handleSaveNotes(w http.ResponseWriter, r *http.Request) {
	var in triage.Result
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	saved, err := a.svc.SaveNotes(r.Context(), &in)
	switch {
	case errors.Is(err, triage.ErrNameRequired):
		writeError(w, http.StatusBadRequest, "Image name is required")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Notes saved successfully",
		"data":    []*triage.Result{saved},
	})
}

func (a *API) handleViewHistory(w http.ResponseWriter, r *http.Request) {
	history := a.svc.History(r.Context())
	if history == nil {
		history = []*triage.Result{}
	}
	writeJSON(w, http.StatusOK, history)
}
