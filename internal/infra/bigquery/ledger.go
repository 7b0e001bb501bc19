package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/moneta-app/moneta/internal/ledger"
)

// LedgerStore is the BigQuery-backed ledger.Store. It holds a shared
// BigQuery client to avoid creating a new connection for each operation.
type LedgerStore struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewLedgerStore creates a ledger store with a shared BigQuery client.
func NewLedgerStore(ctx context.Context, projectID, datasetID string) (*LedgerStore, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerStore: creating client: %w", err)
	}
	return &LedgerStore{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (s *LedgerStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// FindMatch implements ledger.Store. It returns an entry with identical
// owner, account, date, amount and description, or nil when none exists.
func (s *LedgerStore) FindMatch(ctx context.Context, ownerID, accountID, date string, amount decimal.Decimal, description string) (*ledger.Entry, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			entry_id,
			owner_id,
			account_id,
			entry_date,
			amount,
			description,
			category,
			source,
			document_id,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE owner_id = @owner_id
		  AND account_id = @account_id
		  AND entry_date = @entry_date
		  AND amount = @amount
		  AND description = @description
		LIMIT 1
	`, s.projectID, s.datasetID, entriesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "account_id", Value: accountID},
		{Name: "entry_date", Value: date},
		{Name: "amount", Value: amount.Rat()},
		{Name: "description", Value: description},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindMatch: reading query: %w", err)
	}

	var row EntryRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindMatch: reading row: %w", err)
	}
	return rowToEntry(&row), nil
}

// InsertBatch implements ledger.Store.
func (s *LedgerStore) InsertBatch(ctx context.Context, entries []*ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]*EntryRow, 0, len(entries))
	for _, e := range entries {
		row, err := entryToRow(e)
		if err != nil {
			return fmt.Errorf("InsertBatch: %w", err)
		}
		rows = append(rows, row)
	}

	inserter := s.client.Dataset(s.datasetID).Table(entriesTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertBatch: inserting rows: %w", err)
	}
	return nil
}

// ListRecent implements ledger.Store.
func (s *LedgerStore) ListRecent(ctx context.Context, ownerID string, limit int) ([]*ledger.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	q := s.client.Query(fmt.Sprintf(`
		SELECT
			entry_id,
			owner_id,
			account_id,
			entry_date,
			amount,
			description,
			category,
			source,
			document_id,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE owner_id = @owner_id
		ORDER BY created_ts DESC
		LIMIT %d
	`, s.projectID, s.datasetID, entriesTable, limit))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: reading query: %w", err)
	}

	var entries []*ledger.Entry
	for {
		var row EntryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecent: iterating: %w", err)
		}
		entries = append(entries, rowToEntry(&row))
	}
	return entries, nil
}

var _ ledger.Store = (*LedgerStore)(nil)
