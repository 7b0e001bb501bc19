package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/moneta-app/moneta/internal/config"
)

// xOfYPattern matches the bilingual "X of Y" construction used both for
// installment money ("650.00 מתוך 1,950.00") and for installment indices
// ("2 מתוך 3"). Which of the two it is depends on whether a side looks
// price-like.
var xOfYPattern = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)\s*(?:מתוך|out of|of)\s*(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`)

// installmentWords flag lines that mention an installment plan, which
// changes amount selection: prefer the smallest plausible value so the
// payment wins over the full price.
var installmentWords = []string{"מתוך", "תשלום", "תשלומים", "installment", " of "}

// separatorWords are dropped from fallback descriptions.
var separatorWords = map[string]bool{
	"מתוך": true, "of": true, "out": true,
}

// fallbackParser is the pure-regex extraction path: the sole path when no
// model is configured and the safety net when the model fails.
type fallbackParser struct {
	minAmount decimal.Decimal
	maxAmount decimal.Decimal
	priceBar  decimal.Decimal
}

func newFallbackParser(cfg config.ExtractionConfig) *fallbackParser {
	return &fallbackParser{
		minAmount: decimal.NewFromFloat(cfg.MinAmount),
		maxAmount: decimal.NewFromFloat(cfg.MaxAmount),
		priceBar:  decimal.NewFromInt(100),
	}
}

// parse walks the raw text line by line. Dates carry forward to dateless
// rows; dual-column lines yield two candidates; the default sign is
// expense unless a line-level hint says income.
func (p *fallbackParser) parse(text string, hints *SignHints) []rawCandidate {
	var out []rawCandidate
	lastDate := ""

	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if date, ok := firstDate(line); ok {
			lastDate = date
		}

		if pair, ok := hints.TwoAmounts[i]; ok {
			desc := p.describe(line)
			out = append(out,
				rawCandidate{Date: lastDate, Description: desc, Amount: pair.Income.InexactFloat64()},
				rawCandidate{Date: lastDate, Description: desc, Amount: pair.Expense.Neg().InexactFloat64()},
			)
			continue
		}

		cand, ok := p.parseLine(line, hints.ByLine[i])
		if !ok {
			continue
		}
		cand.Date = lastDate
		out = append(out, cand)
	}

	return out
}

func (p *fallbackParser) parseLine(line string, hint LineHint) (rawCandidate, bool) {
	stripped := stripDates(line)
	lower := strings.ToLower(line)

	cand := rawCandidate{Description: p.describe(line)}

	if m := xOfYPattern.FindStringSubmatch(stripped); m != nil {
		left, errL := parseAmount(m[1])
		right, errR := parseAmount(m[2])
		if errL == nil && errR == nil {
			if p.priceLike(m[1], left) || p.priceLike(m[2], right) {
				// Money pattern: single payment of a full price.
				payment, total := left, right
				if payment.GreaterThan(total) {
					payment, total = total, payment
				}
				if p.plausible(payment) {
					amount := payment.Neg().InexactFloat64()
					totalF := total.InexactFloat64()
					cand.Amount = amount
					cand.TotalAmount = &totalF
					return cand, true
				}
			} else if left.IsInteger() && right.IsInteger() {
				// Index pair: "payment N of M".
				cur, tot := int(left.IntPart()), int(right.IntPart())
				if cur >= 1 && tot >= 1 && cur <= tot {
					cand.InstallmentCurrent = &cur
					cand.InstallmentTotal = &tot
				}
			}
		}
	}

	tokens := preferPriceLike(scanAmounts(line, p.minAmount, p.maxAmount))
	if len(tokens) == 0 {
		return rawCandidate{}, false
	}

	// An installment marker means the largest number is probably the full
	// price, so take the smallest; otherwise the largest plausible value
	// is the transaction amount.
	wantSmallest := cand.InstallmentTotal != nil || containsAny(lower, installmentWords)
	picked := tokens[0].Value
	for _, t := range tokens[1:] {
		if wantSmallest && t.Value.LessThan(picked) {
			picked = t.Value
		}
		if !wantSmallest && t.Value.GreaterThan(picked) {
			picked = t.Value
		}
	}

	if hint.Sign == SignIncome {
		cand.Amount = picked.InexactFloat64()
	} else {
		cand.Amount = picked.Neg().InexactFloat64()
	}
	return cand, true
}

func (p *fallbackParser) priceLike(raw string, val decimal.Decimal) bool {
	return strings.Contains(raw, ".") || val.GreaterThan(p.priceBar)
}

func (p *fallbackParser) plausible(val decimal.Decimal) bool {
	return !val.LessThan(p.minAmount) && !val.GreaterThan(p.maxAmount)
}

// describe builds the candidate description: the line minus dates,
// amounts and separator words.
func (p *fallbackParser) describe(line string) string {
	residual := residualText(line)
	fields := strings.Fields(residual)
	kept := fields[:0]
	for _, f := range fields {
		if separatorWords[strings.ToLower(f)] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
