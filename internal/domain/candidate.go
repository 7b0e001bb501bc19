package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ISODate is the calendar-date layout used across the pipeline.
const ISODate = "2006-01-02"

// ExtractedTransaction is one validated row produced by the extraction
// pipeline. Its field set is the persisted/API contract for the review UI,
// so renames here are breaking changes.
type ExtractedTransaction struct {
	// Date in YYYY-MM-DD form. May be empty when no date could be resolved
	// for the row; such rows are never flagged as duplicates.
	Date string `json:"date"`

	Description string `json:"description"`

	// Amount is signed: positive for money in, negative for money out.
	Amount decimal.Decimal `json:"amount"`

	// Category is one of the configured slugs, defaulting to "other".
	Category string `json:"category,omitempty"`

	// TotalAmount is the full purchase price when the row is one payment of
	// an installment plan.
	TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`

	// InstallmentCurrent/InstallmentTotal are the 1-based position and
	// count of an installment plan ("payment 2 of 3").
	InstallmentCurrent int `json:"installmentCurrent,omitempty"`
	InstallmentTotal   int `json:"installmentTotal,omitempty"`

	IsDuplicate bool `json:"isDuplicate,omitempty"`

	// ExistingTransaction references the matched ledger entry when
	// IsDuplicate is true.
	ExistingTransaction *ExistingTransactionRef `json:"existingTransaction,omitempty"`
}

// ExistingTransactionRef is a compact reference to a ledger entry that an
// extracted candidate duplicates.
type ExistingTransactionRef struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// ParsedDate returns the candidate date as a time.Time, with ok=false for
// empty or malformed dates.
func (t *ExtractedTransaction) ParsedDate() (time.Time, bool) {
	if t.Date == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(ISODate, t.Date)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
