// Package workflow owns the document lifecycle: upload, background
// extraction, duplicate review, and confirmed import into the ledger.
// Every document moves through the monotonic status machine in
// internal/domain; this package is the only writer of those statuses.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moneta-app/moneta/internal/domain"
	"github.com/moneta-app/moneta/internal/extract"
	"github.com/moneta-app/moneta/internal/filestore"
	"github.com/moneta-app/moneta/internal/jobs"
	"github.com/moneta-app/moneta/internal/ledger"
	"github.com/moneta-app/moneta/internal/textsource"
)

// ImportAction selects which persisted candidates confirm-import commits.
type ImportAction string

const (
	// ActionAddAll imports every candidate, duplicates included.
	ActionAddAll ImportAction = "add_all"
	// ActionSkipDuplicates imports only candidates not flagged as duplicates.
	ActionSkipDuplicates ImportAction = "skip_duplicates"
	// ActionAddNone imports nothing and closes the review.
	ActionAddNone ImportAction = "add_none"
)

// ConfirmImportRequest is the reviewer's decision for a PENDING_REVIEW
// document. A non-nil Indices list selects an explicit subset by position
// in the persisted candidate list and takes precedence over Action.
type ConfirmImportRequest struct {
	// AccountID optionally overrides the account recorded at upload time.
	AccountID string `json:"account_id,omitempty"`

	Action  ImportAction `json:"action,omitempty"`
	Indices []int        `json:"indices,omitempty"`
}

// Deps are the collaborators the workflow service is wired with.
// Contexts and Publisher may be nil: no categorization bias and no
// background dispatch respectively.
type Deps struct {
	Documents DocumentStore
	Ledger    ledger.Store
	Files     filestore.BlobStore
	Texts     *textsource.Resolver
	Pipeline  *extract.Pipeline
	Contexts  ContextProvider
	Publisher jobs.Publisher

	// MaxRawTextChars caps the text persisted on the document row.
	MaxRawTextChars int

	Log zerolog.Logger
}

// Service drives documents through the extraction workflow.
type Service struct {
	docs      DocumentStore
	ledger    ledger.Store
	dedup     *ledger.DuplicateDetector
	files     filestore.BlobStore
	texts     *textsource.Resolver
	pipeline  *extract.Pipeline
	contexts  ContextProvider
	publisher jobs.Publisher

	maxRawText int
	locks      *documentLocks
	log        zerolog.Logger
}

// NewService wires a workflow service from its collaborators.
func NewService(deps Deps) *Service {
	return &Service{
		docs:       deps.Documents,
		ledger:     deps.Ledger,
		dedup:      ledger.NewDuplicateDetector(deps.Ledger),
		files:      deps.Files,
		texts:      deps.Texts,
		pipeline:   deps.Pipeline,
		contexts:   deps.Contexts,
		publisher:  deps.Publisher,
		maxRawText: deps.MaxRawTextChars,
		locks:      newDocumentLocks(),
		log:        deps.Log,
	}
}

// CreateFromUpload validates and stores an uploaded file, records a
// PENDING document, and publishes its extraction job. Unsupported content
// types are rejected here, synchronously, before anything is stored.
func (s *Service) CreateFromUpload(ctx context.Context, ownerID, accountID, filename, mimeType string, data []byte) (*domain.Document, error) {
	if !s.texts.Supported(mimeType) {
		return nil, fmt.Errorf("%w: %q", textsource.ErrUnsupported, mimeType)
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	path := fmt.Sprintf("uploads/%s/%s-%s", now.Format("2006/01/02"), id, filename)

	if err := s.files.Save(ctx, path, mimeType, data); err != nil {
		return nil, fmt.Errorf("CreateFromUpload: store file: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		OwnerID:     ownerID,
		AccountID:   accountID,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: path,
		Status:      domain.StatusPending,
		UploadedAt:  now,
	}
	if err := s.docs.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("CreateFromUpload: insert document: %w", err)
	}

	if s.publisher != nil {
		job := &jobs.ExtractDocumentJob{
			JobID:      uuid.NewString(),
			OwnerID:    ownerID,
			DocumentID: doc.ID,
			Status:     jobs.JobStatusPending,
			CreatedAt:  now,
		}
		if err := s.publisher.PublishExtractDocument(ctx, job); err != nil {
			return nil, fmt.Errorf("CreateFromUpload: publish extraction job: %w", err)
		}
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Str("owner_id", ownerID).
		Str("mime_type", mimeType).
		Msg("document uploaded")

	return doc, nil
}

// Get returns a document scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	return s.docs.Get(ctx, ownerID, documentID)
}

// Process runs the extraction pipeline for one uploaded document.
//
// Only PENDING documents are processed; any other status makes Process a
// no-op so queue redelivery and manual re-runs are harmless. Every
// failure path inside, panics included, lands the document in the
// terminal FAILED status with the error message recorded on the row.
func (s *Service) Process(ctx context.Context, ownerID, documentID string) error {
	unlock := s.locks.lock(documentID)
	defer unlock()

	doc, err := s.docs.Get(ctx, ownerID, documentID)
	if err != nil {
		return fmt.Errorf("Process: load document %s: %w", documentID, err)
	}

	if doc.Status != domain.StatusPending {
		s.log.Info().
			Str("document_id", doc.ID).
			Str("status", string(doc.Status)).
			Msg("document is not pending, skipping")
		return nil
	}

	doc.Status = domain.StatusProcessing
	if err := s.docs.Update(ctx, doc); err != nil {
		return fmt.Errorf("Process: mark document processing: %w", err)
	}

	return s.runExtraction(ctx, doc)
}

// runExtraction does the PROCESSING-stage work. The document is already
// marked PROCESSING and locked by the caller.
func (s *Service) runExtraction(ctx context.Context, doc *domain.Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("document_id", doc.ID).
				Interface("panic", r).
				Msg("extraction panicked")
			s.fail(ctx, doc, fmt.Sprintf("internal error: %v", r))
			err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()

	data, err := s.files.Load(ctx, doc.StoragePath)
	if err != nil {
		s.fail(ctx, doc, err.Error())
		return nil
	}

	text, err := s.texts.Text(doc.MimeType, data)
	if err != nil {
		s.fail(ctx, doc, err.Error())
		return nil
	}
	doc.RawText = truncateRunes(text, s.maxRawText)

	userContext := ""
	if s.contexts != nil {
		userContext = s.contexts.Recent(ctx, doc.OwnerID)
	}

	cands := s.pipeline.Run(ctx, doc.RawText, userContext)

	duplicates, err := s.dedup.Mark(ctx, doc.OwnerID, doc.AccountID, cands)
	if err != nil {
		s.fail(ctx, doc, err.Error())
		return nil
	}

	now := time.Now().UTC()
	doc.Extracted = cands
	doc.ProcessedAt = &now

	if duplicates > 0 {
		doc.Status = domain.StatusPendingReview
		if err := s.docs.Update(ctx, doc); err != nil {
			return fmt.Errorf("runExtraction: persist review state: %w", err)
		}
		s.log.Info().
			Str("document_id", doc.ID).
			Int("candidates", len(cands)).
			Int("duplicates", duplicates).
			Msg("document routed to review")
		return nil
	}

	if err := s.ledger.InsertBatch(ctx, entriesFromCandidates(doc, cands)); err != nil {
		s.fail(ctx, doc, err.Error())
		return nil
	}

	doc.Status = domain.StatusCompleted
	if len(cands) == 0 {
		doc.ErrorMessage = "no transactions were found in the document"
	}
	if err := s.docs.Update(ctx, doc); err != nil {
		return fmt.Errorf("runExtraction: persist completed state: %w", err)
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Int("candidates", len(cands)).
		Msg("document completed")
	return nil
}

// ConfirmImport commits the reviewer's decision on a PENDING_REVIEW
// document and moves it to COMPLETED. The candidate list persisted at
// extraction time is authoritative; the request only selects from it.
func (s *Service) ConfirmImport(ctx context.Context, ownerID, documentID string, req ConfirmImportRequest) (*domain.Document, error) {
	unlock := s.locks.lock(documentID)
	defer unlock()

	doc, err := s.docs.Get(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.StatusPendingReview {
		return nil, fmt.Errorf("%w: document %s is %s", ErrNotReviewable, doc.ID, doc.Status)
	}

	if req.AccountID != "" {
		doc.AccountID = req.AccountID
	}

	selected, err := selectCandidates(doc.Extracted, req)
	if err != nil {
		return nil, err
	}

	if len(selected) > 0 {
		if err := s.ledger.InsertBatch(ctx, entriesFromCandidates(doc, selected)); err != nil {
			return nil, fmt.Errorf("ConfirmImport: insert entries: %w", err)
		}
	}

	doc.Status = domain.StatusCompleted
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("ConfirmImport: persist completed state: %w", err)
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Int("imported", len(selected)).
		Str("action", string(req.Action)).
		Msg("review confirmed")
	return doc, nil
}

// fail records a terminal FAILED status with the message verbatim. A
// store error at this point is only logged; the job layer will surface
// the original failure regardless.
func (s *Service) fail(ctx context.Context, doc *domain.Document, message string) {
	now := time.Now().UTC()
	doc.Status = domain.StatusFailed
	doc.ErrorMessage = message
	doc.ProcessedAt = &now

	if err := s.docs.Update(ctx, doc); err != nil {
		s.log.Error().
			Err(err).
			Str("document_id", doc.ID).
			Msg("failed to persist FAILED status")
	}
	s.log.Warn().
		Str("document_id", doc.ID).
		Str("error_message", message).
		Msg("document failed")
}

// selectCandidates resolves a confirm-import request against the
// persisted candidate list.
func selectCandidates(cands []domain.ExtractedTransaction, req ConfirmImportRequest) ([]domain.ExtractedTransaction, error) {
	if len(req.Indices) > 0 {
		selected := make([]domain.ExtractedTransaction, 0, len(req.Indices))
		for _, idx := range req.Indices {
			if idx < 0 || idx >= len(cands) {
				return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidSelection, idx)
			}
			selected = append(selected, cands[idx])
		}
		return selected, nil
	}

	switch req.Action {
	case ActionAddAll:
		return cands, nil
	case ActionSkipDuplicates:
		selected := make([]domain.ExtractedTransaction, 0, len(cands))
		for _, c := range cands {
			if !c.IsDuplicate {
				selected = append(selected, c)
			}
		}
		return selected, nil
	case ActionAddNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidSelection, req.Action)
	}
}

// entriesFromCandidates converts candidates into ledger entries with
// document provenance.
func entriesFromCandidates(doc *domain.Document, cands []domain.ExtractedTransaction) []*ledger.Entry {
	now := time.Now().UTC()
	entries := make([]*ledger.Entry, 0, len(cands))
	for _, c := range cands {
		entries = append(entries, &ledger.Entry{
			ID:          uuid.NewString(),
			OwnerID:     doc.OwnerID,
			AccountID:   doc.AccountID,
			Date:        c.Date,
			Amount:      c.Amount,
			Description: c.Description,
			Category:    c.Category,
			Source:      ledger.SourceDocument,
			DocumentID:  doc.ID,
			CreatedAt:   now,
		})
	}
	return entries
}

// truncateRunes caps s at max runes; max <= 0 means no cap.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
