package extract

import (
	"regexp"
	"strings"

	"github.com/moneta-app/moneta/internal/config"
)

var (
	latinRunPattern   = regexp.MustCompile(`[A-Za-z]{2,}`)
	hebrewCharPattern = regexp.MustCompile(`[\x{0590}-\x{05FF}]`)
)

// Sanitizer cleans OCR/model artifacts out of candidate descriptions.
type Sanitizer struct {
	fixes  map[string]string
	maxLen int
}

// NewSanitizer builds a sanitizer from the configured fix table and
// description length cap.
func NewSanitizer(cfg config.ExtractionConfig) *Sanitizer {
	return &Sanitizer{
		fixes:  cfg.TextFixes,
		maxLen: cfg.MaxDescriptionChars,
	}
}

// Clean applies the known-misreading table, strips Latin-letter runs from
// mixed-script strings and clamps the result. Pure-Latin descriptions are
// left alone: the Latin noise this targets is OCR garbage interleaved with
// Hebrew text, not genuinely Latin documents.
func (s *Sanitizer) Clean(desc string) string {
	for garbled, fixed := range s.fixes {
		desc = strings.ReplaceAll(desc, garbled, fixed)
	}

	if hebrewCharPattern.MatchString(desc) {
		desc = latinRunPattern.ReplaceAllString(desc, " ")
	}

	desc = strings.Join(strings.Fields(desc), " ")
	return clampRunes(desc, s.maxLen)
}
