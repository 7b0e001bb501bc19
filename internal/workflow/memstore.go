package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/moneta-app/moneta/internal/domain"
)

// MemoryDocumentStore is an in-memory DocumentStore, safe for concurrent
// use. Production uses the BigQuery-backed store.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*domain.Document
}

// NewMemoryDocumentStore creates an empty in-memory document store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string]*domain.Document)}
}

// Insert implements DocumentStore.
func (s *MemoryDocumentStore) Insert(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		return fmt.Errorf("document already exists: %s", doc.ID)
	}
	s.docs[doc.ID] = copyDocument(doc)
	return nil
}

// Get implements DocumentStore.
func (s *MemoryDocumentStore) Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.docs[documentID]
	if !exists || doc.OwnerID != ownerID {
		return nil, ErrDocumentNotFound
	}
	return copyDocument(doc), nil
}

// Update implements DocumentStore.
func (s *MemoryDocumentStore) Update(ctx context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; !exists {
		return ErrDocumentNotFound
	}
	s.docs[doc.ID] = copyDocument(doc)
	return nil
}

// copyDocument deep-copies the mutable parts so callers cannot alias the
// stored row.
func copyDocument(doc *domain.Document) *domain.Document {
	docCopy := *doc
	if doc.Extracted != nil {
		docCopy.Extracted = make([]domain.ExtractedTransaction, len(doc.Extracted))
		copy(docCopy.Extracted, doc.Extracted)
	}
	if doc.ProcessedAt != nil {
		ts := *doc.ProcessedAt
		docCopy.ProcessedAt = &ts
	}
	return &docCopy
}

var _ DocumentStore = (*MemoryDocumentStore)(nil)
