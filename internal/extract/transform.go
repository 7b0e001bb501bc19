package extract

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/moneta-app/moneta/internal/config"
	"github.com/moneta-app/moneta/internal/domain"
)

// rawCandidate is one row as reported by the extractor before any
// validation. Model output is untrusted: fields may be missing, malformed
// or out of range, so rawCandidate is kept strictly separate from the
// validated domain.ExtractedTransaction.
type rawCandidate struct {
	Date        string
	Description string
	Amount      float64
	Category    string

	TotalAmount        *float64
	InstallmentCurrent *int
	InstallmentTotal   *int
}

// parseModelRecords converts the decoded model JSON (a top-level array of
// objects) into raw candidates. A malformed element fails the whole parse
// so the caller can fall back to the regex extractor.
func parseModelRecords(parsed interface{}) ([]rawCandidate, error) {
	items, ok := parsed.([]interface{})
	if !ok {
		return nil, fmt.Errorf("parseModelRecords: top level is %T, want array", parsed)
	}

	raws := make([]rawCandidate, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("parseModelRecords: element %d is %T, want object", i, item)
		}

		date, err := getStringField(obj, "date", false)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		desc, err := getStringField(obj, "description", true)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		category, err := getStringField(obj, "category", false)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		amount, err := getFloat64Field(obj, "amount", true)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		totalAmount, err := getOptionalFloat64Field(obj, "total_amount")
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		instCurrent, err := getOptionalIntField(obj, "installment_current")
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		instTotal, err := getOptionalIntField(obj, "installment_total")
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}

		raws = append(raws, rawCandidate{
			Date:               date,
			Description:        desc,
			Amount:             amount,
			Category:           category,
			TotalAmount:        totalAmount,
			InstallmentCurrent: instCurrent,
			InstallmentTotal:   instTotal,
		})
	}

	return raws, nil
}

// normalizer turns raw candidates into validated domain candidates:
// bounds-checked amounts, whitelisted categories, clamped strings.
type normalizer struct {
	categories      map[string]bool
	defaultCategory string
	minAmount       decimal.Decimal
	maxAmount       decimal.Decimal
	maxDescription  int
}

func newNormalizer(cfg config.ExtractionConfig) *normalizer {
	categories := make(map[string]bool, len(cfg.Categories))
	for _, slug := range cfg.Categories {
		categories[strings.ToLower(strings.TrimSpace(slug))] = true
	}
	return &normalizer{
		categories:      categories,
		defaultCategory: cfg.DefaultCategory,
		minAmount:       decimal.NewFromFloat(cfg.MinAmount),
		maxAmount:       decimal.NewFromFloat(cfg.MaxAmount),
		maxDescription:  cfg.MaxDescriptionChars,
	}
}

// normalize validates and converts raw candidates. Rows with non-finite,
// near-zero or out-of-range amounts are dropped as parsing noise.
func (n *normalizer) normalize(raws []rawCandidate) []domain.ExtractedTransaction {
	out := make([]domain.ExtractedTransaction, 0, len(raws))

	for _, raw := range raws {
		if math.IsNaN(raw.Amount) || math.IsInf(raw.Amount, 0) {
			continue
		}
		amount := decimal.NewFromFloat(raw.Amount).Round(2)
		if amount.Abs().LessThan(n.minAmount) || amount.Abs().GreaterThan(n.maxAmount) {
			continue
		}

		cand := domain.ExtractedTransaction{
			Date:        n.normalizeDateField(raw.Date),
			Description: clampRunes(strings.TrimSpace(raw.Description), n.maxDescription),
			Amount:      amount,
			Category:    n.normalizeCategory(raw.Category),
		}

		if raw.TotalAmount != nil && !math.IsNaN(*raw.TotalAmount) && !math.IsInf(*raw.TotalAmount, 0) {
			total := decimal.NewFromFloat(*raw.TotalAmount).Round(2)
			if total.IsPositive() && total.LessThanOrEqual(n.maxAmount) {
				cand.TotalAmount = &total
			}
		}

		if raw.InstallmentTotal != nil && *raw.InstallmentTotal >= 1 {
			cand.InstallmentTotal = *raw.InstallmentTotal
			cand.InstallmentCurrent = 1
			if raw.InstallmentCurrent != nil && *raw.InstallmentCurrent >= 1 {
				cand.InstallmentCurrent = *raw.InstallmentCurrent
			}
			if cand.InstallmentCurrent > cand.InstallmentTotal {
				cand.InstallmentCurrent = cand.InstallmentTotal
			}
		}

		out = append(out, cand)
	}

	return out
}

// normalizeDateField accepts ISO dates as-is, converts the document
// formats (DD/MM/YY etc.) and blanks anything else.
func (n *normalizer) normalizeDateField(date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return ""
	}
	if iso, ok := normalizeDate(date); ok {
		return iso
	}
	return ""
}

func (n *normalizer) normalizeCategory(category string) string {
	slug := strings.ToLower(strings.TrimSpace(category))
	if n.categories[slug] {
		return slug
	}
	return n.defaultCategory
}

// dropNoise filters near-zero amounts from a final candidate list. It runs
// again after installment correction so no correction can reintroduce a
// sub-threshold row.
func dropNoise(cands []domain.ExtractedTransaction, min decimal.Decimal) []domain.ExtractedTransaction {
	out := cands[:0]
	for _, c := range cands {
		if c.Amount.Abs().LessThan(min) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func clampRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// Field helpers for the untrusted model JSON. encoding/json decodes all
// numbers as float64, so integer fields arrive as floats too.

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	val, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
	if required && strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("required field %q is empty", key)
	}
	return val, nil
}

func getFloat64Field(m map[string]interface{}, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

func getOptionalFloat64Field(m map[string]interface{}, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case float64:
		f := val
		return &f, nil
	case int:
		f := float64(val)
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
}

func getOptionalIntField(m map[string]interface{}, key string) (*int, error) {
	f, err := getOptionalFloat64Field(m, key)
	if err != nil || f == nil {
		return nil, err
	}
	i := int(*f)
	return &i, nil
}
