package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Source markers distinguish how an entry got into the ledger.
const (
	SourceDocument = "document"
	SourceManual   = "manual"
)

// Entry is one committed ledger transaction.
type Entry struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	AccountID string `json:"account_id"`

	// Date in YYYY-MM-DD form.
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`

	// Source is SourceDocument or SourceManual; DocumentID records
	// provenance for document-sourced entries.
	Source     string `json:"source"`
	DocumentID string `json:"document_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Store is the external ledger contract the extraction subsystem needs:
// point lookup for duplicate checks, batch insert for confirmed imports,
// and a recent-entries read for the categorization-history context.
type Store interface {
	// FindMatch returns an entry with identical owner, account, date,
	// amount and description, or nil when none exists.
	FindMatch(ctx context.Context, ownerID, accountID, date string, amount decimal.Decimal, description string) (*Entry, error)

	// InsertBatch writes entries in one batch.
	InsertBatch(ctx context.Context, entries []*Entry) error

	// ListRecent returns up to limit entries for the owner, newest first.
	ListRecent(ctx context.Context, ownerID string, limit int) ([]*Entry, error)
}
