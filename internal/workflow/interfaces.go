package workflow

import (
	"context"
	"errors"

	"github.com/moneta-app/moneta/internal/domain"
)

// Caller-facing sentinel errors.
var (
	// ErrDocumentNotFound is returned when the document id does not exist
	// for the owner.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrNotReviewable is returned by confirm-import when the document is
	// not in PENDING_REVIEW; no state change happens.
	ErrNotReviewable = errors.New("document is not pending review")

	// ErrInvalidSelection is returned when an explicit index selection
	// references positions outside the persisted candidate list.
	ErrInvalidSelection = errors.New("invalid candidate selection")
)

// DocumentStore persists Document rows across workflow transitions.
type DocumentStore interface {
	Insert(ctx context.Context, doc *domain.Document) error
	Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error)
	Update(ctx context.Context, doc *domain.Document) error
}

// ContextProvider supplies a bounded free-text summary of the owner's
// recent categorization history, used only to bias the generative
// extractor. An empty string means no bias.
type ContextProvider interface {
	Recent(ctx context.Context, ownerID string) string
}
