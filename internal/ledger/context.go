package ledger

import (
	"context"
	"strings"
)

// ContextProvider summarizes an owner's recent categorization history into
// a bounded free-text block. The summary only biases the generative
// extractor's category choices; when the ledger is empty or errors, it
// degrades to an empty string.
type ContextProvider struct {
	store    Store
	maxChars int
	limit    int
}

// NewContextProvider creates a provider reading at most limit recent
// entries and emitting at most maxChars characters.
func NewContextProvider(store Store, limit, maxChars int) *ContextProvider {
	return &ContextProvider{store: store, limit: limit, maxChars: maxChars}
}

// Recent returns "description => category" lines for the owner's latest
// categorized entries.
func (p *ContextProvider) Recent(ctx context.Context, ownerID string) string {
	entries, err := p.store.ListRecent(ctx, ownerID, p.limit)
	if err != nil || len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	for _, e := range entries {
		if e.Category == "" {
			continue
		}
		line := e.Description + " => " + e.Category + "\n"
		if b.Len()+len(line) > p.maxChars {
			break
		}
		b.WriteString(line)
	}
	return strings.TrimSpace(b.String())
}
