package extract

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/moneta-app/moneta/internal/config"
	"github.com/moneta-app/moneta/internal/domain"
)

// Pipeline turns one document's raw text into a validated candidate list:
// hint scan, annotation, extraction (model or regex fallback), sign
// overlay, installment correction, description cleanup, noise filter.
// Duplicate detection and persistence belong to the workflow layer.
type Pipeline struct {
	scanner   *HintScanner
	extractor *Extractor
	sanitizer *Sanitizer
	norm      *normalizer
	minAmount decimal.Decimal
	log       zerolog.Logger
}

// NewPipeline wires the extraction pipeline. model may be nil to run on
// the regex extractor alone.
func NewPipeline(cfg config.ExtractionConfig, modelCfg config.ModelConfig, model ModelClient, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		scanner:   NewHintScanner(cfg),
		extractor: NewExtractor(cfg, modelCfg, model, log),
		sanitizer: NewSanitizer(cfg),
		norm:      newNormalizer(cfg),
		minAmount: decimal.NewFromFloat(cfg.MinAmount),
		log:       log,
	}
}

// Run executes the full extraction sequence for one document. Model
// failures degrade to the fallback extractor inside, so Run itself never
// fails on bad input text; it just returns fewer (or zero) candidates.
func (p *Pipeline) Run(ctx context.Context, text, userContext string) []domain.ExtractedTransaction {
	hints := p.scanner.Scan(text)
	annotated := Annotate(text, hints)

	raws := p.extractor.Extract(ctx, text, annotated, userContext, hints)
	p.log.Debug().Int("raw_candidates", len(raws)).Msg("extraction produced raw candidates")

	cands := p.norm.normalize(raws)
	cands = ApplySignOverlay(cands, text, hints)
	cands = NormalizeInstallments(cands)
	for i := range cands {
		cands[i].Description = p.sanitizer.Clean(cands[i].Description)
	}
	return dropNoise(cands, p.minAmount)
}
