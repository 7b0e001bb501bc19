package ledger

import (
	"context"
	"fmt"

	"github.com/moneta-app/moneta/internal/domain"
)

// DuplicateDetector flags extracted candidates that already exist in the
// ledger so the workflow can route the document to human review.
type DuplicateDetector struct {
	store Store
}

// NewDuplicateDetector creates a detector over the given ledger store.
func NewDuplicateDetector(store Store) *DuplicateDetector {
	return &DuplicateDetector{store: store}
}

// Mark checks each candidate against the ledger and sets IsDuplicate plus
// the existing-entry reference on exact (account, date, amount,
// description) matches. Candidates with malformed or missing dates are
// passed through unmarked: they are not provably duplicates. Returns the
// number of duplicates found.
func (d *DuplicateDetector) Mark(ctx context.Context, ownerID, accountID string, cands []domain.ExtractedTransaction) (int, error) {
	found := 0

	for idx := range cands {
		c := &cands[idx]
		if _, ok := c.ParsedDate(); !ok {
			continue
		}

		existing, err := d.store.FindMatch(ctx, ownerID, accountID, c.Date, c.Amount, c.Description)
		if err != nil {
			return found, fmt.Errorf("duplicate check for candidate %d: %w", idx, err)
		}
		if existing == nil {
			continue
		}

		c.IsDuplicate = true
		c.ExistingTransaction = &domain.ExistingTransactionRef{
			ID:          existing.ID,
			Date:        existing.Date,
			Amount:      existing.Amount,
			Description: existing.Description,
		}
		found++
	}

	return found, nil
}
