package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/moneta-app/moneta/internal/config"
)

// fakeModel is a canned ModelClient.
type fakeModel struct {
	GenerateContentFunc func(ctx context.Context, prompt string) (string, error)
	prompts             []string
}

func (f *fakeModel) GenerateContent(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.GenerateContentFunc(ctx, prompt)
}

func newTestPipeline(model ModelClient) *Pipeline {
	cfg := config.Default()
	return NewPipeline(cfg.Extraction, cfg.Model, model, zerolog.Nop())
}

func TestPipelineFallbackOnly(t *testing.T) {
	p := newTestPipeline(nil)

	cands := p.Run(context.Background(), "01/03/25 Coffee Shop 45.00", "")
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	c := cands[0]
	if !c.Amount.Equal(amount("-45")) {
		t.Errorf("Amount = %s, want -45", c.Amount)
	}
	if c.Date != "2025-03-01" {
		t.Errorf("Date = %q, want 2025-03-01", c.Date)
	}
	if c.Description != "Coffee Shop" {
		t.Errorf("Description = %q, want Coffee Shop", c.Description)
	}
	if c.Category != "other" {
		t.Errorf("Category = %q, want other", c.Category)
	}
}

func TestPipelineModelPath(t *testing.T) {
	model := &fakeModel{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) {
			return `[{"date": "2025-03-05", "description": "משכורת חודש מרץ", "amount": 12500.00, "category": "salary"}]`, nil
		},
	}
	p := newTestPipeline(model)

	cands := p.Run(context.Background(), "05/03/25 משכורת חודש מרץ 12,500.00", "")
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if !cands[0].Amount.Equal(amount("12500")) {
		t.Errorf("Amount = %s, want 12500", cands[0].Amount)
	}
	if cands[0].Category != "salary" {
		t.Errorf("Category = %q, want salary", cands[0].Category)
	}
	if len(model.prompts) != 1 || !strings.Contains(model.prompts[0], "[INCOME 12500.00]") {
		t.Error("model prompt must carry the annotated text")
	}
}

func TestPipelineOverlayCorrectsModelSign(t *testing.T) {
	// The model reports salary as an expense; the overlay must flip it.
	model := &fakeModel{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) {
			return `[{"date": "2025-03-05", "description": "משכורת", "amount": -12500.00, "category": "salary"}]`, nil
		},
	}
	p := newTestPipeline(model)

	cands := p.Run(context.Background(), "05/03/25 משכורת 12,500.00", "")
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if !cands[0].Amount.Equal(amount("12500")) {
		t.Errorf("Amount = %s, want 12500 after overlay", cands[0].Amount)
	}
}

func TestPipelineFallsBackOnModelError(t *testing.T) {
	model := &fakeModel{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("quota exceeded")
		},
	}
	p := newTestPipeline(model)

	cands := p.Run(context.Background(), "06/03/25 חיוב ויזה 350.50", "")
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1 from fallback", len(cands))
	}
	if !cands[0].Amount.Equal(amount("-350.5")) {
		t.Errorf("Amount = %s, want -350.5", cands[0].Amount)
	}
}

func TestPipelineFallsBackOnGarbageJSON(t *testing.T) {
	model := &fakeModel{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) {
			return "I could not find any transactions, sorry!", nil
		},
	}
	p := newTestPipeline(model)

	cands := p.Run(context.Background(), "06/03/25 חיוב ויזה 350.50", "")
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1 from fallback", len(cands))
	}
}

func TestPipelineAcceptsFencedJSON(t *testing.T) {
	model := &fakeModel{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) {
			return "```json\n[{\"date\": \"2025-03-06\", \"description\": \"חיוב ויזה\", \"amount\": -350.50}]\n```", nil
		},
	}
	p := newTestPipeline(model)

	cands := p.Run(context.Background(), "06/03/25 חיוב ויזה 350.50", "")
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if !cands[0].Amount.Equal(amount("-350.5")) {
		t.Errorf("Amount = %s, want -350.5", cands[0].Amount)
	}
}

func TestPipelineInstallmentCorrection(t *testing.T) {
	// The model reports the full purchase price on an installment row.
	model := &fakeModel{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) {
			return `[{"date": "2025-03-06", "description": "ריהוט", "amount": -1950.00,
				"total_amount": 1950.00, "installment_current": 1, "installment_total": 3}]`, nil
		},
	}
	p := newTestPipeline(model)

	cands := p.Run(context.Background(), "06/03/25 ריהוט 650.00 מתוך 1,950.00", "")
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if !cands[0].Amount.Equal(amount("-650")) {
		t.Errorf("Amount = %s, want -650 after installment correction", cands[0].Amount)
	}
}

func TestPipelineDualColumnFallback(t *testing.T) {
	p := newTestPipeline(nil)

	cands := p.Run(context.Background(), "07/03/25 העברה בין חשבונות 1,000.00 250.00", "")
	if len(cands) != 2 {
		t.Fatalf("len(cands) = %d, want 2", len(cands))
	}
	if !cands[0].Amount.Equal(amount("1000")) || !cands[1].Amount.Equal(amount("-250")) {
		t.Errorf("amounts = %s, %s, want 1000 and -250", cands[0].Amount, cands[1].Amount)
	}
}

func TestPipelineSanitizesDescriptions(t *testing.T) {
	model := &fakeModel{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) {
			return `[{"date": "2025-03-06", "description": "שופרסל דיל BRN חולון", "amount": -45.00}]`, nil
		},
	}
	p := newTestPipeline(model)

	cands := p.Run(context.Background(), "06/03/25 שופרסל דיל 45.00", "")
	if len(cands) != 1 {
		t.Fatalf("len(cands) = %d, want 1", len(cands))
	}
	if strings.Contains(cands[0].Description, "BRN") {
		t.Errorf("Description = %q, Latin noise survived", cands[0].Description)
	}
}

func TestPipelineUserContextReachesPrompt(t *testing.T) {
	model := &fakeModel{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) {
			return `[]`, nil
		},
	}
	p := newTestPipeline(model)

	p.Run(context.Background(), "06/03/25 חיוב 10.00", "שופרסל => groceries")
	if len(model.prompts) != 1 || !strings.Contains(model.prompts[0], "שופרסל => groceries") {
		t.Error("user context must be appended to the prompt")
	}
}

func TestPipelineNeverReturnsZeroAmounts(t *testing.T) {
	model := &fakeModel{
		GenerateContentFunc: func(ctx context.Context, prompt string) (string, error) {
			return `[{"description": "zero", "amount": 0.0},
				{"description": "real", "amount": -45.00, "date": "2025-03-06"}]`, nil
		},
	}
	p := newTestPipeline(model)

	cands := p.Run(context.Background(), "06/03/25 something 45.00", "")
	for _, c := range cands {
		if c.Amount.IsZero() {
			t.Error("zero-amount candidate survived the pipeline")
		}
	}
	if len(cands) != 1 {
		t.Errorf("len(cands) = %d, want 1", len(cands))
	}
}
