package textsource

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// CSVFlattener renders a CSV export as line-per-row plain text so the
// extraction pipeline can scan it like any other statement text.
type CSVFlattener struct{}

// Text implements Source. Rows keep their order; fields are joined with
// single spaces. Ragged rows are accepted since bank exports are rarely
// rectangular.
func (CSVFlattener) Text(data []byte) (string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return "", fmt.Errorf("reading CSV: %w", err)
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, strings.Join(rec, " "))
	}
	return strings.Join(lines, "\n"), nil
}
