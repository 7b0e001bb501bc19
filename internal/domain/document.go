package domain

import (
	"time"
)

// DocumentStatus tracks an uploaded document through the extraction workflow.
type DocumentStatus string

const (
	// StatusPending is the initial status set at upload time.
	StatusPending DocumentStatus = "PENDING"
	// StatusProcessing means the background extraction job has started.
	StatusProcessing DocumentStatus = "PROCESSING"
	// StatusFailed is terminal: the file was missing, the content type was
	// unsupported, or extraction raised an unrecoverable error.
	StatusFailed DocumentStatus = "FAILED"
	// StatusPendingReview means extraction succeeded but at least one
	// candidate matched an existing ledger entry; a human decision is needed.
	StatusPendingReview DocumentStatus = "PENDING_REVIEW"
	// StatusCompleted is terminal: candidates were written to the ledger
	// (or there was nothing to write).
	StatusCompleted DocumentStatus = "COMPLETED"
)

// validTransitions encodes the monotonic state machine. Terminal statuses
// have no outgoing edges except PENDING_REVIEW -> COMPLETED via
// confirm-import.
var validTransitions = map[DocumentStatus][]DocumentStatus{
	StatusPending:       {StatusProcessing},
	StatusProcessing:    {StatusFailed, StatusPendingReview, StatusCompleted},
	StatusPendingReview: {StatusCompleted},
}

// CanTransitionTo reports whether moving from s to next is a legal
// workflow transition.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no background work may run on a document in
// this status anymore.
func (s DocumentStatus) Terminal() bool {
	return s == StatusFailed || s == StatusCompleted || s == StatusPendingReview
}

// Document is one uploaded file moving through the extraction pipeline.
type Document struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	// AccountID is the ledger account the extracted transactions belong to.
	AccountID string `json:"account_id"`

	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
	StoragePath string `json:"storage_path"`

	// RawText is the extracted plain text, truncated to MaxRawTextChars.
	RawText string `json:"raw_text,omitempty"`

	Status       DocumentStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`

	// Extracted is nil until extraction has run at least once. Once set it
	// is the stable, ordered candidate list the review UI and the
	// confirm-import index selection operate on.
	Extracted []ExtractedTransaction `json:"extracted,omitempty"`

	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
