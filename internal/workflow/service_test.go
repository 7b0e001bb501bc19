package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneta-app/moneta/internal/config"
	"github.com/moneta-app/moneta/internal/domain"
	"github.com/moneta-app/moneta/internal/extract"
	"github.com/moneta-app/moneta/internal/filestore"
	"github.com/moneta-app/moneta/internal/jobs"
	"github.com/moneta-app/moneta/internal/ledger"
	"github.com/moneta-app/moneta/internal/textsource"
)

type fakePublisher struct {
	published []*jobs.ExtractDocumentJob
	err       error
}

func (p *fakePublisher) PublishExtractDocument(ctx context.Context, job *jobs.ExtractDocumentJob) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, job)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type testEnv struct {
	svc    *Service
	docs   *MemoryDocumentStore
	ledger *ledger.MemoryStore
	files  *filestore.MemoryStore
	pub    *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()

	env := &testEnv{
		docs:   NewMemoryDocumentStore(),
		ledger: ledger.NewMemoryStore(),
		files:  filestore.NewMemoryStore(),
		pub:    &fakePublisher{},
	}
	env.svc = NewService(Deps{
		Documents:       env.docs,
		Ledger:          env.ledger,
		Files:           env.files,
		Texts:           textsource.NewResolver(),
		Pipeline:        extract.NewPipeline(cfg.Extraction, cfg.Model, nil, zerolog.Nop()),
		Contexts:        ledger.NewContextProvider(env.ledger, 50, cfg.Model.MaxContextChars),
		Publisher:       env.pub,
		MaxRawTextChars: cfg.Extraction.MaxRawTextChars,
		Log:             zerolog.Nop(),
	})
	return env
}

func (e *testEnv) upload(t *testing.T, text string) *domain.Document {
	t.Helper()
	doc, err := e.svc.CreateFromUpload(context.Background(), "owner-1", "acc-1", "stmt.txt", "text/plain", []byte(text))
	require.NoError(t, err)
	return doc
}

func TestCreateFromUploadRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateFromUpload(context.Background(), "owner-1", "acc-1", "scan.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.ErrorIs(t, err, textsource.ErrUnsupported)
	assert.Empty(t, env.pub.published, "rejected upload must not publish a job")
}

func TestCreateFromUploadHappyPath(t *testing.T) {
	env := newTestEnv(t)

	doc := env.upload(t, "01/03/25 Coffee Shop 45.00")

	assert.Equal(t, domain.StatusPending, doc.Status)
	assert.Equal(t, "owner-1", doc.OwnerID)
	assert.NotEmpty(t, doc.ID)
	assert.NotEmpty(t, doc.StoragePath)
	assert.Nil(t, doc.Extracted, "extraction has not run yet")

	data, err := env.files.Load(context.Background(), doc.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, "01/03/25 Coffee Shop 45.00", string(data))

	require.Len(t, env.pub.published, 1)
	assert.Equal(t, doc.ID, env.pub.published[0].DocumentID)
	assert.Equal(t, "owner-1", env.pub.published[0].OwnerID)
}

func TestProcessCompletesCleanDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := env.upload(t, "01/03/25 Coffee Shop 45.00")
	require.NoError(t, env.svc.Process(ctx, "owner-1", doc.ID))

	got, err := env.svc.Get(ctx, "owner-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)
	require.Len(t, got.Extracted, 1)
	assert.Equal(t, "Coffee Shop", got.Extracted[0].Description)

	entries, err := env.ledger.ListRecent(ctx, "owner-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "acc-1", e.AccountID)
	assert.Equal(t, "2025-03-01", e.Date)
	assert.True(t, e.Amount.Equal(decimal.RequireFromString("-45")), "amount = %s", e.Amount)
	assert.Equal(t, ledger.SourceDocument, e.Source)
	assert.Equal(t, doc.ID, e.DocumentID)
}

func TestProcessRoutesDuplicatesToReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.ledger.InsertBatch(ctx, []*ledger.Entry{{
		ID:          "existing-1",
		OwnerID:     "owner-1",
		AccountID:   "acc-1",
		Date:        "2025-03-01",
		Amount:      decimal.RequireFromString("-45"),
		Description: "Coffee Shop",
		Source:      ledger.SourceManual,
		CreatedAt:   time.Now(),
	}}))

	doc := env.upload(t, "01/03/25 Coffee Shop 45.00\n02/03/25 Grocery Store 120.00")
	require.NoError(t, env.svc.Process(ctx, "owner-1", doc.ID))

	got, err := env.svc.Get(ctx, "owner-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, got.Status)
	require.Len(t, got.Extracted, 2)

	dup := got.Extracted[0]
	require.True(t, dup.IsDuplicate)
	require.NotNil(t, dup.ExistingTransaction)
	assert.Equal(t, "existing-1", dup.ExistingTransaction.ID)
	assert.False(t, got.Extracted[1].IsDuplicate)

	// Nothing committed while the document waits for review.
	assert.Equal(t, 1, env.ledger.Len())
}

func TestProcessIsNoopOutsidePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := env.upload(t, "01/03/25 Coffee Shop 45.00")
	require.NoError(t, env.svc.Process(ctx, "owner-1", doc.ID))
	require.Equal(t, 1, env.ledger.Len())

	// Redelivery of the same job must not double-import.
	require.NoError(t, env.svc.Process(ctx, "owner-1", doc.ID))
	assert.Equal(t, 1, env.ledger.Len())

	got, err := env.svc.Get(ctx, "owner-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestProcessMissingFileFailsDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := env.upload(t, "01/03/25 Coffee Shop 45.00")
	env.files.Delete(doc.StoragePath)

	require.NoError(t, env.svc.Process(ctx, "owner-1", doc.ID))

	got, err := env.svc.Get(ctx, "owner-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
	assert.NotNil(t, got.ProcessedAt)
	assert.Equal(t, 0, env.ledger.Len())
}

func TestProcessEmptyDocumentCompletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := env.upload(t, "no transactions in this text")
	require.NoError(t, env.svc.Process(ctx, "owner-1", doc.ID))

	got, err := env.svc.Get(ctx, "owner-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.NotNil(t, got.Extracted, "extraction ran, the list must be present even when empty")
	assert.Len(t, got.Extracted, 0)
	assert.Equal(t, "no transactions were found in the document", got.ErrorMessage)
	assert.Equal(t, 0, env.ledger.Len())
}

func TestProcessUnknownDocument(t *testing.T) {
	env := newTestEnv(t)
	err := env.svc.Process(context.Background(), "owner-1", "missing")
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func reviewedDocument(t *testing.T, env *testEnv) *domain.Document {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, env.ledger.InsertBatch(ctx, []*ledger.Entry{{
		ID:          "existing-1",
		OwnerID:     "owner-1",
		AccountID:   "acc-1",
		Date:        "2025-03-01",
		Amount:      decimal.RequireFromString("-45"),
		Description: "Coffee Shop",
		Source:      ledger.SourceManual,
		CreatedAt:   time.Now(),
	}}))

	doc := env.upload(t, "01/03/25 Coffee Shop 45.00\n02/03/25 Grocery Store 120.00")
	require.NoError(t, env.svc.Process(ctx, "owner-1", doc.ID))

	got, err := env.svc.Get(ctx, "owner-1", doc.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPendingReview, got.Status)
	return got
}

func TestConfirmImportSkipDuplicates(t *testing.T) {
	env := newTestEnv(t)
	doc := reviewedDocument(t, env)

	got, err := env.svc.ConfirmImport(context.Background(), "owner-1", doc.ID, ConfirmImportRequest{Action: ActionSkipDuplicates})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	// The pre-existing entry plus the one non-duplicate candidate.
	assert.Equal(t, 2, env.ledger.Len())
}

func TestConfirmImportAddAll(t *testing.T) {
	env := newTestEnv(t)
	doc := reviewedDocument(t, env)

	_, err := env.svc.ConfirmImport(context.Background(), "owner-1", doc.ID, ConfirmImportRequest{Action: ActionAddAll})
	require.NoError(t, err)
	assert.Equal(t, 3, env.ledger.Len())
}

func TestConfirmImportAddNone(t *testing.T) {
	env := newTestEnv(t)
	doc := reviewedDocument(t, env)

	got, err := env.svc.ConfirmImport(context.Background(), "owner-1", doc.ID, ConfirmImportRequest{Action: ActionAddNone})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 1, env.ledger.Len())
}

func TestConfirmImportExplicitIndices(t *testing.T) {
	env := newTestEnv(t)
	doc := reviewedDocument(t, env)
	ctx := context.Background()

	_, err := env.svc.ConfirmImport(ctx, "owner-1", doc.ID, ConfirmImportRequest{Indices: []int{1}})
	require.NoError(t, err)
	assert.Equal(t, 2, env.ledger.Len())

	entries, err := env.ledger.ListRecent(ctx, "owner-1", 10)
	require.NoError(t, err)
	assert.Equal(t, "Grocery Store", entries[0].Description)
}

func TestConfirmImportInvalidIndex(t *testing.T) {
	env := newTestEnv(t)
	doc := reviewedDocument(t, env)

	_, err := env.svc.ConfirmImport(context.Background(), "owner-1", doc.ID, ConfirmImportRequest{Indices: []int{5}})
	require.ErrorIs(t, err, ErrInvalidSelection)

	// The failed request must not close the review.
	got, getErr := env.svc.Get(context.Background(), "owner-1", doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusPendingReview, got.Status)
}

func TestConfirmImportUnknownAction(t *testing.T) {
	env := newTestEnv(t)
	doc := reviewedDocument(t, env)

	_, err := env.svc.ConfirmImport(context.Background(), "owner-1", doc.ID, ConfirmImportRequest{Action: "merge"})
	require.ErrorIs(t, err, ErrInvalidSelection)
}

func TestConfirmImportOutsideReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := env.upload(t, "01/03/25 Coffee Shop 45.00")
	require.NoError(t, env.svc.Process(ctx, "owner-1", doc.ID))

	_, err := env.svc.ConfirmImport(ctx, "owner-1", doc.ID, ConfirmImportRequest{Action: ActionAddAll})
	require.ErrorIs(t, err, ErrNotReviewable)
}

func TestGetScopesToOwner(t *testing.T) {
	env := newTestEnv(t)
	doc := env.upload(t, "01/03/25 Coffee Shop 45.00")

	_, err := env.svc.Get(context.Background(), "someone-else", doc.ID)
	require.ErrorIs(t, err, ErrDocumentNotFound)
}
