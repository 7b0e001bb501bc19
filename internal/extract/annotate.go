package extract

import (
	"fmt"
	"strings"
)

// Annotate rewrites the raw text with each line's hint inlined as a
// machine-readable tag. The extraction model cannot perceive the visual
// cues (column position, coloring) a human uses to read a statement, so
// the deterministic judgments are spelled out in the text itself. Line
// count and order are preserved.
func Annotate(text string, hints *SignHints) string {
	lines := strings.Split(text, "\n")
	out := make([]string, len(lines))

	for i, line := range lines {
		if pair, ok := hints.TwoAmounts[i]; ok {
			out[i] = fmt.Sprintf("[IN=%s OUT=%s] %s",
				pair.Income.StringFixed(2), pair.Expense.StringFixed(2), line)
			continue
		}
		if hint, ok := hints.ByLine[i]; ok {
			out[i] = fmt.Sprintf("[%s %s] %s",
				hint.Sign, hint.Amount.StringFixed(2), line)
			continue
		}
		out[i] = line
	}

	return strings.Join(out, "\n")
}
