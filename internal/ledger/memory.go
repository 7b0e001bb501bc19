package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store, safe for concurrent use. It backs
// tests and single-node deployments; production uses the BigQuery store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FindMatch implements Store.
func (s *MemoryStore) FindMatch(ctx context.Context, ownerID, accountID, date string, amount decimal.Decimal, description string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.OwnerID == ownerID &&
			e.AccountID == accountID &&
			e.Date == date &&
			e.Amount.Equal(amount) &&
			e.Description == description {
			entryCopy := *e
			return &entryCopy, nil
		}
	}
	return nil, nil
}

// InsertBatch implements Store.
func (s *MemoryStore) InsertBatch(ctx context.Context, entries []*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("entry ID is required")
		}
		entryCopy := *e
		s.entries = append(s.entries, &entryCopy)
	}
	return nil
}

// ListRecent implements Store. Entries are returned newest first.
func (s *MemoryStore) ListRecent(ctx context.Context, ownerID string, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Entry
	for i := len(s.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if s.entries[i].OwnerID != ownerID {
			continue
		}
		entryCopy := *s.entries[i]
		result = append(result, &entryCopy)
	}
	return result, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ Store = (*MemoryStore)(nil)
