package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Patterns shared by the hint scanner, the fallback parser and the sign
// overlay. Bank text mixes DD/MM/YY and DD.MM.YY dates with comma-grouped
// amounts, so dates are always stripped before amounts are scanned.
var (
	// DD/MM/YY, DD/MM/YYYY, DD.MM.YY, DD.MM.YYYY
	datePattern = regexp.MustCompile(`\b\d{1,2}[./]\d{1,2}[./](?:\d{4}|\d{2})\b`)
	// YYYY-MM-DD (model output and pre-normalized exports)
	isoDatePattern = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	// digit groups with optional thousands separators and optional fraction
	amountPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+\.\d{1,2}|\d+`)
)

// amountToken is one currency-like number found on a line.
type amountToken struct {
	Value decimal.Decimal
	// PriceLike is true for values with a decimal fraction or above 100.
	// Small bare integers are usually installment indices, not money.
	PriceLike bool
}

// parseAmount converts "1,234.56" to a decimal. Currency symbols are
// removed; thousands separators are dropped.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	for _, sym := range []string{"₪", "$", "€", "£", " "} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(s)
}

// stripDates removes date-like substrings so "01/03/25" never contributes
// the tokens 01, 03 and 25 to the amount scan.
func stripDates(line string) string {
	line = isoDatePattern.ReplaceAllString(line, " ")
	return datePattern.ReplaceAllString(line, " ")
}

// scanAmounts extracts plausible currency-like tokens from a line, after
// date stripping. min and max bound plausible money values.
func scanAmounts(line string, min, max decimal.Decimal) []amountToken {
	var tokens []amountToken
	for _, raw := range amountPattern.FindAllString(stripDates(line), -1) {
		val, err := parseAmount(raw)
		if err != nil {
			continue
		}
		if val.LessThan(min) || val.GreaterThan(max) {
			continue
		}
		tokens = append(tokens, amountToken{
			Value:     val,
			PriceLike: strings.Contains(raw, ".") || val.GreaterThan(decimal.NewFromInt(100)),
		})
	}
	return tokens
}

// preferPriceLike keeps only price-like tokens when at least one exists;
// otherwise the small-integer tokens are returned unchanged.
func preferPriceLike(tokens []amountToken) []amountToken {
	var priced []amountToken
	for _, t := range tokens {
		if t.PriceLike {
			priced = append(priced, t)
		}
	}
	if len(priced) > 0 {
		return priced
	}
	return tokens
}

// normalizeDate converts a date token found in document text to ISO
// YYYY-MM-DD form. Day-first formats are assumed (DD/MM/YY etc.).
func normalizeDate(tok string) (string, bool) {
	tok = strings.TrimSpace(tok)
	if isoDatePattern.MatchString(tok) {
		return tok, true
	}

	sep := "/"
	if strings.Contains(tok, ".") {
		sep = "."
	}
	parts := strings.Split(tok, sep)
	if len(parts) != 3 {
		return "", false
	}

	day, month, year := parts[0], parts[1], parts[2]
	if len(day) == 1 {
		day = "0" + day
	}
	if len(month) == 1 {
		month = "0" + month
	}
	switch len(year) {
	case 2:
		year = "20" + year
	case 4:
	default:
		return "", false
	}
	if len(day) != 2 || len(month) != 2 {
		return "", false
	}
	return year + "-" + month + "-" + day, true
}

// firstDate returns the ISO form of the first date-like token on a line.
func firstDate(line string) (string, bool) {
	if tok := isoDatePattern.FindString(line); tok != "" {
		return tok, true
	}
	if tok := datePattern.FindString(line); tok != "" {
		return normalizeDate(tok)
	}
	return "", false
}
