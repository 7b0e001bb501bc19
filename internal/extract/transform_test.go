package extract

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/moneta-app/moneta/internal/config"
)

func decodeRecords(t *testing.T, raw string) []rawCandidate {
	t.Helper()
	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		t.Fatalf("test JSON is invalid: %v", err)
	}
	raws, err := parseModelRecords(parsed)
	if err != nil {
		t.Fatalf("parseModelRecords: %v", err)
	}
	return raws
}

func TestParseModelRecords(t *testing.T) {
	raws := decodeRecords(t, `[
		{"date": "2025-03-05", "description": "משכורת", "amount": 12500.00, "category": "salary"},
		{"description": "ריהוט", "amount": -650.0, "total_amount": 1950.0, "installment_current": 1, "installment_total": 3}
	]`)

	if len(raws) != 2 {
		t.Fatalf("len(raws) = %d, want 2", len(raws))
	}
	if raws[0].Date != "2025-03-05" || raws[0].Amount != 12500 || raws[0].Category != "salary" {
		t.Errorf("first record = %+v", raws[0])
	}
	if raws[1].TotalAmount == nil || *raws[1].TotalAmount != 1950 {
		t.Errorf("TotalAmount = %v, want 1950", raws[1].TotalAmount)
	}
	if raws[1].InstallmentTotal == nil || *raws[1].InstallmentTotal != 3 {
		t.Errorf("InstallmentTotal = %v, want 3", raws[1].InstallmentTotal)
	}
}

func TestParseModelRecordsRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"top level object", `{"date": "2025-03-05"}`},
		{"element not object", `[42]`},
		{"missing description", `[{"amount": 10.0}]`},
		{"missing amount", `[{"description": "x"}]`},
		{"amount wrong type", `[{"description": "x", "amount": "10"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var parsed interface{}
			if err := json.Unmarshal([]byte(tt.raw), &parsed); err != nil {
				t.Fatalf("test JSON is invalid: %v", err)
			}
			if _, err := parseModelRecords(parsed); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNormalizeDropsBadAmounts(t *testing.T) {
	n := newNormalizer(config.Default().Extraction)

	tiny := 0.004
	huge := 200000.0
	raws := []rawCandidate{
		{Description: "ok", Amount: -45},
		{Description: "zero-ish", Amount: tiny},
		{Description: "too big", Amount: huge},
	}

	cands := n.normalize(raws)
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if cands[0].Description != "ok" {
		t.Errorf("kept %q, want the in-range candidate", cands[0].Description)
	}
}

func TestNormalizeCoercesCategory(t *testing.T) {
	n := newNormalizer(config.Default().Extraction)

	raws := []rawCandidate{
		{Description: "a", Amount: -10, Category: "groceries"},
		{Description: "b", Amount: -10, Category: "Groceries "},
		{Description: "c", Amount: -10, Category: "made-up-slug"},
		{Description: "d", Amount: -10},
	}

	cands := n.normalize(raws)
	want := []string{"groceries", "groceries", "other", "other"}
	for i, w := range want {
		if cands[i].Category != w {
			t.Errorf("cands[%d].Category = %q, want %q", i, cands[i].Category, w)
		}
	}
}

func TestNormalizeDates(t *testing.T) {
	n := newNormalizer(config.Default().Extraction)

	raws := []rawCandidate{
		{Description: "iso", Amount: -10, Date: "2025-03-05"},
		{Description: "doc", Amount: -10, Date: "05/03/25"},
		{Description: "bad", Amount: -10, Date: "March 5th"},
	}

	cands := n.normalize(raws)
	if cands[0].Date != "2025-03-05" {
		t.Errorf("iso Date = %q", cands[0].Date)
	}
	if cands[1].Date != "2025-03-05" {
		t.Errorf("doc Date = %q, want 2025-03-05", cands[1].Date)
	}
	if cands[2].Date != "" {
		t.Errorf("bad Date = %q, want empty", cands[2].Date)
	}
}

func TestNormalizeClampsDescription(t *testing.T) {
	cfg := config.Default().Extraction
	n := newNormalizer(cfg)

	long := strings.Repeat("א", cfg.MaxDescriptionChars+50)
	cands := n.normalize([]rawCandidate{{Description: long, Amount: -10}})

	if got := len([]rune(cands[0].Description)); got != cfg.MaxDescriptionChars {
		t.Errorf("description rune length = %d, want %d", got, cfg.MaxDescriptionChars)
	}
}

func TestNormalizeInstallmentFields(t *testing.T) {
	n := newNormalizer(config.Default().Extraction)

	cur, tot := 5, 3
	zero := 0
	total := 1950.0
	negTotal := -5.0
	raws := []rawCandidate{
		{Description: "clamped", Amount: -10, InstallmentCurrent: &cur, InstallmentTotal: &tot},
		{Description: "no total", Amount: -10, InstallmentCurrent: &cur},
		{Description: "zero total", Amount: -10, InstallmentTotal: &zero},
		{Description: "with money", Amount: -650, TotalAmount: &total, InstallmentTotal: &tot},
		{Description: "neg total amount", Amount: -10, TotalAmount: &negTotal},
	}

	cands := n.normalize(raws)

	if cands[0].InstallmentCurrent != 3 || cands[0].InstallmentTotal != 3 {
		t.Errorf("current/total = %d/%d, want clamped 3/3", cands[0].InstallmentCurrent, cands[0].InstallmentTotal)
	}
	if cands[1].InstallmentTotal != 0 {
		t.Errorf("current without total must be ignored, got total %d", cands[1].InstallmentTotal)
	}
	if cands[2].InstallmentTotal != 0 {
		t.Errorf("zero installment total must be ignored, got %d", cands[2].InstallmentTotal)
	}
	if cands[3].TotalAmount == nil || !cands[3].TotalAmount.Equal(decimal.NewFromInt(1950)) {
		t.Errorf("TotalAmount = %v, want 1950", cands[3].TotalAmount)
	}
	if cands[4].TotalAmount != nil {
		t.Errorf("negative total amount must be dropped, got %v", cands[4].TotalAmount)
	}
}

func TestDropNoise(t *testing.T) {
	n := newNormalizer(config.Default().Extraction)
	cands := n.normalize([]rawCandidate{
		{Description: "keep", Amount: -45},
		{Description: "also keep", Amount: 0.02},
	})

	out := dropNoise(cands, decimal.NewFromInt(1))
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Description != "keep" {
		t.Errorf("kept %q", out[0].Description)
	}
}
