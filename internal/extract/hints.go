package extract

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/moneta-app/moneta/internal/config"
)

// Sign is a deterministic pre-model judgment about the direction of money
// on a text line.
type Sign int

const (
	SignUnknown Sign = iota
	SignIncome
	SignExpense
)

func (s Sign) String() string {
	switch s {
	case SignIncome:
		return "INCOME"
	case SignExpense:
		return "EXPENSE"
	default:
		return "UNKNOWN"
	}
}

// LineHint is the judgment for a line carrying exactly one priced amount.
type LineHint struct {
	Sign   Sign
	Amount decimal.Decimal
}

// TwoAmounts records a dual-column statement row: two currency-like
// numbers on one line, one incoming and one outgoing.
type TwoAmounts struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// SignHints is the line-indexed output of the hint scanner. A line present
// in TwoAmounts is never also resolved in ByLine; the dual-column case is
// handled separately downstream.
type SignHints struct {
	ByLine     map[int]LineHint
	TwoAmounts map[int]TwoAmounts
}

// HintScanner derives income/expense hints from layout and keyword lists.
// It is a pure function of its input text: no side effects, no I/O.
type HintScanner struct {
	incomeKeywords  []string
	expenseKeywords []string
	minAmount       decimal.Decimal
	maxAmount       decimal.Decimal
}

// NewHintScanner builds a scanner from the injected extraction config.
func NewHintScanner(cfg config.ExtractionConfig) *HintScanner {
	return &HintScanner{
		incomeKeywords:  lowerAll(cfg.IncomeKeywords),
		expenseKeywords: lowerAll(cfg.ExpenseKeywords),
		minAmount:       decimal.NewFromFloat(cfg.MinAmount),
		maxAmount:       decimal.NewFromFloat(cfg.MaxAmount),
	}
}

func lowerAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}

// Scan walks the text line by line and records sign hints. Line indices
// are positions in strings.Split(text, "\n"), so they stay aligned with
// the annotation builder and the sign overlay.
func (s *HintScanner) Scan(text string) *SignHints {
	hints := &SignHints{
		ByLine:     make(map[int]LineHint),
		TwoAmounts: make(map[int]TwoAmounts),
	}

	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		tokens := preferPriceLike(scanAmounts(line, s.minAmount, s.maxAmount))
		switch len(tokens) {
		case 1:
			hints.ByLine[i] = LineHint{
				Sign:   s.classify(residualText(line)),
				Amount: tokens[0].Value,
			}
		case 2:
			// Two numbers joined by an installment separator ("650.00 מתוך
			// 1,950.00") are payment-of-total, not a dual-column row.
			if xOfYPattern.MatchString(stripDates(line)) {
				continue
			}
			// Dual-column convention: first number is the income column,
			// second the expense column. Expense-only keyword evidence on
			// the residual text swaps the assignment.
			pair := TwoAmounts{Income: tokens[0].Value, Expense: tokens[1].Value}
			if s.classify(residualText(line)) == SignExpense {
				pair = TwoAmounts{Income: tokens[1].Value, Expense: tokens[0].Value}
			}
			hints.TwoAmounts[i] = pair
		}
		// Zero or three-plus candidates: no hint; downstream treats the
		// line as unknown.
	}

	return hints
}

// classify resolves the keyword lists against a line's residual text.
// Matches on exactly one list decide the sign; anything else is unknown.
func (s *HintScanner) classify(residual string) Sign {
	lower := strings.ToLower(residual)
	income := containsAny(lower, s.incomeKeywords)
	expense := containsAny(lower, s.expenseKeywords)

	switch {
	case income && !expense:
		return SignIncome
	case expense && !income:
		return SignExpense
	default:
		return SignUnknown
	}
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

// residualText strips dates and numbers from a line, leaving the
// description words the keyword lists are tested against.
func residualText(line string) string {
	line = stripDates(line)
	line = amountPattern.ReplaceAllString(line, " ")
	return strings.Join(strings.Fields(line), " ")
}
