package extract

import (
	"strings"

	"github.com/moneta-app/moneta/internal/domain"
)

// ApplySignOverlay re-scans the original text and forces the sign of any
// candidate that contradicts a strong deterministic hint. The extractor is
// instructed to obey the inline tags but is not contractually guaranteed
// to; this pass corrects it after the fact. Candidates are mutated in
// place and the slice is returned for chaining.
func ApplySignOverlay(cands []domain.ExtractedTransaction, text string, hints *SignHints) []domain.ExtractedTransaction {
	runningDate := ""

	for i, line := range strings.Split(text, "\n") {
		if date, ok := firstDate(line); ok {
			runningDate = date
		}

		if pair, ok := hints.TwoAmounts[i]; ok {
			// Dual-column row: the income figure must be positive and the
			// expense figure negative, whatever the extractor reported.
			for idx := range cands {
				if cands[idx].Amount.Abs().Equal(pair.Income) && cands[idx].Amount.IsNegative() {
					cands[idx].Amount = cands[idx].Amount.Neg()
					break
				}
			}
			for idx := range cands {
				if cands[idx].Amount.Abs().Equal(pair.Expense) && cands[idx].Amount.IsPositive() {
					cands[idx].Amount = cands[idx].Amount.Neg()
					break
				}
			}
			continue
		}

		hint, ok := hints.ByLine[i]
		if !ok || hint.Sign == SignUnknown {
			continue
		}

		for idx := range cands {
			if cands[idx].Date != runningDate {
				continue
			}
			if !cands[idx].Amount.Abs().Equal(hint.Amount) {
				continue
			}
			if hint.Sign == SignIncome && cands[idx].Amount.IsNegative() {
				cands[idx].Amount = cands[idx].Amount.Neg()
				break
			}
			if hint.Sign == SignExpense && cands[idx].Amount.IsPositive() {
				cands[idx].Amount = cands[idx].Amount.Neg()
				break
			}
		}
	}

	return cands
}
