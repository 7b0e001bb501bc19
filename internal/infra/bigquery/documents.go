package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/moneta-app/moneta/internal/domain"
	"github.com/moneta-app/moneta/internal/workflow"
)

// DocumentStore is the BigQuery-backed workflow.DocumentStore. It holds a
// shared BigQuery client to avoid creating a new connection for each
// operation.
type DocumentStore struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewDocumentStore creates a document store with a shared BigQuery client.
func NewDocumentStore(ctx context.Context, projectID, datasetID string) (*DocumentStore, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewDocumentStore: creating client: %w", err)
	}
	return &DocumentStore{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (s *DocumentStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Insert implements workflow.DocumentStore.
func (s *DocumentStore) Insert(ctx context.Context, doc *domain.Document) error {
	row, err := documentToRow(doc)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	inserter := s.client.Dataset(s.datasetID).Table(documentsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("Insert: inserting row: %w", err)
	}
	return nil
}

// Get implements workflow.DocumentStore.
func (s *DocumentStore) Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			document_id,
			owner_id,
			account_id,
			filename,
			mime_type,
			storage_path,
			raw_text,
			status,
			error_message,
			extracted,
			uploaded_ts,
			processed_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE document_id = @document_id
		  AND owner_id = @owner_id
		LIMIT 1
	`, s.projectID, s.datasetID, documentsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
		{Name: "owner_id", Value: ownerID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get: reading query: %w", err)
	}

	var row DocumentRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, workflow.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: reading row: %w", err)
	}
	return rowToDocument(&row)
}

// Update implements workflow.DocumentStore. It rewrites the mutable
// columns of the document row via DML.
func (s *DocumentStore) Update(ctx context.Context, doc *domain.Document) error {
	row, err := documentToRow(doc)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	q := s.client.Query(fmt.Sprintf(`
		UPDATE `+"`%s.%s.%s`"+`
		SET account_id = @account_id,
		    raw_text = @raw_text,
		    status = @status,
		    error_message = @error_message,
		    extracted = PARSE_JSON(@extracted),
		    processed_ts = @processed_ts
		WHERE document_id = @document_id
	`, s.projectID, s.datasetID, documentsTable))

	var processedTS interface{}
	if doc.ProcessedAt != nil {
		processedTS = *doc.ProcessedAt
	} else {
		processedTS = (*time.Time)(nil)
	}
	var extracted interface{}
	if row.Extracted.Valid {
		extracted = row.Extracted.JSONVal
	} else {
		extracted = (*string)(nil)
	}
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: doc.AccountID},
		{Name: "raw_text", Value: doc.RawText},
		{Name: "status", Value: string(doc.Status)},
		{Name: "error_message", Value: doc.ErrorMessage},
		{Name: "extracted", Value: extracted},
		{Name: "processed_ts", Value: processedTS},
		{Name: "document_id", Value: doc.ID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("Update: running update query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("Update: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("Update: job error: %w", err)
	}
	return nil
}

var _ workflow.DocumentStore = (*DocumentStore)(nil)
