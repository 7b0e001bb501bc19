// Package textsource turns stored file bytes into plain text, keyed by
// declared MIME type. It implements the narrow text-source contract the
// extraction workflow consumes; OCR and richer formats plug in as
// additional Source implementations.
package textsource

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned for MIME types with no registered source.
// The workflow turns it into a terminal FAILED document status.
var ErrUnsupported = errors.New("unsupported content type")

// Source converts one content type's bytes to plain text.
type Source interface {
	Text(data []byte) (string, error)
}

// Resolver routes by MIME type to a registered Source.
type Resolver struct {
	sources map[string]Source
}

// NewResolver builds a resolver with the built-in sources: plain text and
// CSV flattening.
func NewResolver() *Resolver {
	return &Resolver{
		sources: map[string]Source{
			"text/plain": PlainText{},
			"text/csv":   CSVFlattener{},
		},
	}
}

// Register adds or replaces the source for a MIME type.
func (r *Resolver) Register(mimeType string, src Source) {
	r.sources[normalizeMime(mimeType)] = src
}

// Supported reports whether the MIME type has a registered source. Upload
// uses this for synchronous input rejection.
func (r *Resolver) Supported(mimeType string) bool {
	_, ok := r.sources[normalizeMime(mimeType)]
	return ok
}

// Text converts data to plain text, or ErrUnsupported for unknown types.
func (r *Resolver) Text(mimeType string, data []byte) (string, error) {
	src, ok := r.sources[normalizeMime(mimeType)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, mimeType)
	}
	return src.Text(data)
}

// normalizeMime drops parameters ("text/csv; charset=utf-8") and case.
func normalizeMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

// PlainText passes file bytes through unchanged.
type PlainText struct{}

// Text implements Source.
func (PlainText) Text(data []byte) (string, error) {
	return string(data), nil
}
