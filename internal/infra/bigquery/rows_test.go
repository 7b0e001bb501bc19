package bigquery

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneta-app/moneta/internal/domain"
	"github.com/moneta-app/moneta/internal/ledger"
)

func TestEntryRowRoundTrip(t *testing.T) {
	in := &ledger.Entry{
		ID:          "e1",
		OwnerID:     "owner-1",
		AccountID:   "acc-1",
		Date:        "2025-03-01",
		Amount:      decimal.RequireFromString("-45.50"),
		Description: "Coffee Shop",
		Category:    "dining",
		Source:      ledger.SourceDocument,
		DocumentID:  "doc-1",
		CreatedAt:   time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	row, err := entryToRow(in)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", row.EntryDate.String())
	assert.True(t, row.Category.Valid)
	assert.True(t, row.DocumentID.Valid)

	out := rowToEntry(row)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Date, out.Date)
	assert.True(t, out.Amount.Equal(in.Amount), "amount = %s", out.Amount)
	assert.Equal(t, in.Category, out.Category)
	assert.Equal(t, in.DocumentID, out.DocumentID)
}

func TestEntryRowNullableFields(t *testing.T) {
	in := &ledger.Entry{
		ID:        "e1",
		OwnerID:   "owner-1",
		AccountID: "acc-1",
		Date:      "2025-03-01",
		Amount:    decimal.RequireFromString("100"),
		Source:    ledger.SourceManual,
		CreatedAt: time.Now(),
	}

	row, err := entryToRow(in)
	require.NoError(t, err)
	assert.False(t, row.Category.Valid)
	assert.False(t, row.DocumentID.Valid)
}

func TestEntryRowRejectsBadDate(t *testing.T) {
	_, err := entryToRow(&ledger.Entry{ID: "e1", Date: "05/03/25", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
}

func TestDocumentRowRoundTrip(t *testing.T) {
	processed := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	in := &domain.Document{
		ID:          "doc-1",
		OwnerID:     "owner-1",
		AccountID:   "acc-1",
		Filename:    "stmt.txt",
		MimeType:    "text/plain",
		StoragePath: "uploads/2025/03/02/doc-1-stmt.txt",
		RawText:     "01/03/25 Coffee Shop 45.00",
		Status:      domain.StatusPendingReview,
		Extracted: []domain.ExtractedTransaction{
			{Date: "2025-03-01", Description: "Coffee Shop", Amount: decimal.RequireFromString("-45"), Category: "dining", IsDuplicate: true},
		},
		UploadedAt:  time.Date(2025, 3, 2, 11, 0, 0, 0, time.UTC),
		ProcessedAt: &processed,
	}

	row, err := documentToRow(in)
	require.NoError(t, err)
	assert.True(t, row.Extracted.Valid)
	assert.True(t, row.ProcessedTS.Valid)

	out, err := rowToDocument(row)
	require.NoError(t, err)
	assert.Equal(t, in.Status, out.Status)
	require.Len(t, out.Extracted, 1)
	assert.Equal(t, "Coffee Shop", out.Extracted[0].Description)
	assert.True(t, out.Extracted[0].Amount.Equal(in.Extracted[0].Amount))
	assert.True(t, out.Extracted[0].IsDuplicate)
	require.NotNil(t, out.ProcessedAt)
	assert.True(t, out.ProcessedAt.Equal(processed))
}

func TestDocumentRowBeforeProcessing(t *testing.T) {
	row, err := documentToRow(&domain.Document{
		ID:     "doc-1",
		Status: domain.StatusPending,
	})
	require.NoError(t, err)
	assert.False(t, row.Extracted.Valid)
	assert.False(t, row.ProcessedTS.Valid)

	out, err := rowToDocument(row)
	require.NoError(t, err)
	assert.Nil(t, out.Extracted)
	assert.Nil(t, out.ProcessedAt)
}
