package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/moneta-app/moneta/internal/api/middleware"
	"github.com/moneta-app/moneta/internal/jobs"
	"github.com/moneta-app/moneta/internal/textsource"
	"github.com/moneta-app/moneta/internal/workflow"
)

// maxUploadBytes caps the multipart form parsed into memory.
const maxUploadBytes = 20 << 20 // 20 MiB

// DocumentsHandler handles document-related endpoints.
type DocumentsHandler struct {
	svc *workflow.Service
	log zerolog.Logger
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(svc *workflow.Service, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{svc: svc, log: log}
}

// UploadDocument handles POST /api/documents. The multipart form carries
// the file plus an optional account_id field. Unsupported content types
// are rejected synchronously with 415; accepted documents come back as
// 202 with status PENDING.
func (h *DocumentsHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.OwnerID(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "text/plain"
	}
	filename := filepath.Base(header.Filename)
	accountID := r.FormValue("account_id")

	doc, err := h.svc.CreateFromUpload(ctx, ownerID, accountID, filename, mimeType, data)
	if err != nil {
		if errors.Is(err, textsource.ErrUnsupported) {
			middleware.WriteError(w, http.StatusUnsupportedMediaType, "Unsupported content type")
			return
		}
		h.log.Error().Err(err).Msg("Failed to create document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create document")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, doc)
}

// GetDocument handles GET /api/documents/{id}. The response carries the
// document status, the extracted candidate list once processing ran, and
// the error message for failed documents.
func (h *DocumentsHandler) GetDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx := r.Context()

	doc, err := h.svc.Get(ctx, middleware.OwnerID(ctx), documentID)
	if err != nil {
		if errors.Is(err, workflow.ErrDocumentNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Document not found")
			return
		}
		h.log.Error().Err(err).Str("document_id", documentID).Msg("Failed to get document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get document")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, doc)
}

// ConfirmImport handles POST /api/documents/{id}/confirm for documents
// waiting in review.
func (h *DocumentsHandler) ConfirmImport(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx := r.Context()

	var req workflow.ConfirmImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	doc, err := h.svc.ConfirmImport(ctx, middleware.OwnerID(ctx), documentID, req)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrDocumentNotFound):
			middleware.WriteError(w, http.StatusNotFound, "Document not found")
		case errors.Is(err, workflow.ErrNotReviewable):
			middleware.WriteError(w, http.StatusConflict, "Document is not pending review")
		case errors.Is(err, workflow.ErrInvalidSelection):
			middleware.WriteError(w, http.StatusBadRequest, "Invalid candidate selection")
		default:
			h.log.Error().Err(err).Str("document_id", documentID).Msg("Failed to confirm import")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to confirm import")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, doc)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		DocumentID: query.Get("document_id"),
		Status:     jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
