// Package bigquery holds the BigQuery-backed stores: the committed
// transaction ledger and the document workflow rows. The in-memory
// stores in internal/ledger and internal/workflow back tests and
// single-node runs.
package bigquery

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/moneta-app/moneta/internal/domain"
	"github.com/moneta-app/moneta/internal/ledger"
)

const (
	entriesTable   = "ledger_entries"
	documentsTable = "documents"
)

// EntryRow mirrors one finance.ledger_entries row.
type EntryRow struct {
	EntryID   string `bigquery:"entry_id"`   // REQUIRED
	OwnerID   string `bigquery:"owner_id"`   // REQUIRED
	AccountID string `bigquery:"account_id"` // REQUIRED

	EntryDate   civil.Date `bigquery:"entry_date"` // REQUIRED
	Amount      *big.Rat   `bigquery:"amount"`     // REQUIRED NUMERIC
	Description string     `bigquery:"description"`

	Category bigquery.NullString `bigquery:"category"` // NULLABLE

	Source     string              `bigquery:"source"`      // REQUIRED
	DocumentID bigquery.NullString `bigquery:"document_id"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// DocumentRow mirrors one finance.documents row.
type DocumentRow struct {
	DocumentID string `bigquery:"document_id"` // REQUIRED
	OwnerID    string `bigquery:"owner_id"`    // REQUIRED
	AccountID  string `bigquery:"account_id"`  // REQUIRED

	Filename    string `bigquery:"filename"`     // NULLABLE
	MimeType    string `bigquery:"mime_type"`    // NULLABLE
	StoragePath string `bigquery:"storage_path"` // REQUIRED

	RawText string `bigquery:"raw_text"` // NULLABLE

	Status       string `bigquery:"status"`        // REQUIRED
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	Extracted bigquery.NullJSON `bigquery:"extracted"` // NULLABLE JSON

	UploadedTS  time.Time              `bigquery:"uploaded_ts"`  // REQUIRED
	ProcessedTS bigquery.NullTimestamp `bigquery:"processed_ts"` // NULLABLE
}

// entryToRow converts a ledger entry for insert.
func entryToRow(e *ledger.Entry) (*EntryRow, error) {
	date, err := civil.ParseDate(e.Date)
	if err != nil {
		return nil, fmt.Errorf("entryToRow: parse date %q: %w", e.Date, err)
	}

	row := &EntryRow{
		EntryID:     e.ID,
		OwnerID:     e.OwnerID,
		AccountID:   e.AccountID,
		EntryDate:   date,
		Amount:      e.Amount.Rat(),
		Description: e.Description,
		Source:      e.Source,
		CreatedTS:   e.CreatedAt,
	}
	if e.Category != "" {
		row.Category = bigquery.NullString{StringVal: e.Category, Valid: true}
	}
	if e.DocumentID != "" {
		row.DocumentID = bigquery.NullString{StringVal: e.DocumentID, Valid: true}
	}
	return row, nil
}

// rowToEntry converts a query result row back to a ledger entry.
func rowToEntry(row *EntryRow) *ledger.Entry {
	return &ledger.Entry{
		ID:          row.EntryID,
		OwnerID:     row.OwnerID,
		AccountID:   row.AccountID,
		Date:        row.EntryDate.String(),
		Amount:      decimalFromRat(row.Amount),
		Description: row.Description,
		Category:    row.Category.StringVal,
		Source:      row.Source,
		DocumentID:  row.DocumentID.StringVal,
		CreatedAt:   row.CreatedTS,
	}
}

// documentToRow converts a workflow document for insert or update.
func documentToRow(doc *domain.Document) (*DocumentRow, error) {
	row := &DocumentRow{
		DocumentID:   doc.ID,
		OwnerID:      doc.OwnerID,
		AccountID:    doc.AccountID,
		Filename:     doc.Filename,
		MimeType:     doc.MimeType,
		StoragePath:  doc.StoragePath,
		RawText:      doc.RawText,
		Status:       string(doc.Status),
		ErrorMessage: doc.ErrorMessage,
		UploadedTS:   doc.UploadedAt,
	}
	if doc.Extracted != nil {
		data, err := json.Marshal(doc.Extracted)
		if err != nil {
			return nil, fmt.Errorf("documentToRow: marshal extracted: %w", err)
		}
		row.Extracted = bigquery.NullJSON{JSONVal: string(data), Valid: true}
	}
	if doc.ProcessedAt != nil {
		row.ProcessedTS = bigquery.NullTimestamp{Timestamp: *doc.ProcessedAt, Valid: true}
	}
	return row, nil
}

// rowToDocument converts a query result row back to a workflow document.
func rowToDocument(row *DocumentRow) (*domain.Document, error) {
	doc := &domain.Document{
		ID:           row.DocumentID,
		OwnerID:      row.OwnerID,
		AccountID:    row.AccountID,
		Filename:     row.Filename,
		MimeType:     row.MimeType,
		StoragePath:  row.StoragePath,
		RawText:      row.RawText,
		Status:       domain.DocumentStatus(row.Status),
		ErrorMessage: row.ErrorMessage,
		UploadedAt:   row.UploadedTS,
	}
	if row.Extracted.Valid {
		if err := json.Unmarshal([]byte(row.Extracted.JSONVal), &doc.Extracted); err != nil {
			return nil, fmt.Errorf("rowToDocument: unmarshal extracted: %w", err)
		}
	}
	if row.ProcessedTS.Valid {
		ts := row.ProcessedTS.Timestamp
		doc.ProcessedAt = &ts
	}
	return doc, nil
}

// decimalFromRat converts a NUMERIC value read from BigQuery. Ledger
// amounts carry at most two fraction digits; four covers the round trip.
func decimalFromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(r.FloatString(4))
	if err != nil {
		return decimal.Zero
	}
	return d
}
