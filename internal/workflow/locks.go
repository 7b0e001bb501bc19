package workflow

import "sync"

// documentLocks serializes workflow mutations per document id so a
// confirm-import cannot race a late extraction job for the same document.
type documentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDocumentLocks() *documentLocks {
	return &documentLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for documentID and returns its unlock func.
func (d *documentLocks) lock(documentID string) func() {
	d.mu.Lock()
	m, ok := d.locks[documentID]
	if !ok {
		m = &sync.Mutex{}
		d.locks[documentID] = m
	}
	d.mu.Unlock()

	m.Lock()
	return m.Unlock
}
