package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/moneta-app/moneta/internal/config"
)

// ModelClient abstracts the generative extraction capability so tests can
// substitute a fake and deployments can run without one configured.
type ModelClient interface {
	// GenerateContent sends the prompt and returns the raw model text.
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// GeminiClient is the genai-backed ModelClient.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a ModelClient for the given Gemini model name.
func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// GenerateContent implements ModelClient.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("GenerateContent: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("GenerateContent: empty response from model")
	}
	return rawText, nil
}

// Extractor produces raw transaction candidates from annotated text,
// preferring the generative model and falling back to the deterministic
// regex parser on any model failure.
type Extractor struct {
	modelCfg config.ModelConfig
	model    ModelClient // nil means the model path is unconfigured
	fallback *fallbackParser
	system   string
	log      zerolog.Logger
}

// NewExtractor wires the extractor. model may be nil, in which case every
// extraction runs on the regex fallback alone.
func NewExtractor(cfg config.ExtractionConfig, modelCfg config.ModelConfig, model ModelClient, log zerolog.Logger) *Extractor {
	return &Extractor{
		modelCfg: modelCfg,
		model:    model,
		fallback: newFallbackParser(cfg),
		system:   buildSystemPrompt(cfg),
		log:      log,
	}
}

// Extract returns raw candidates for the document. rawText and hints feed
// the fallback path; annotated feeds the model path. userContext is a
// bounded free-text bias (recent categorization history) and may be empty.
func (e *Extractor) Extract(ctx context.Context, rawText, annotated, userContext string, hints *SignHints) []rawCandidate {
	if e.model != nil {
		raws, err := e.extractWithModel(ctx, annotated, userContext)
		if err == nil {
			return raws
		}
		e.log.Warn().Err(err).Msg("model extraction failed, using regex fallback")
	}
	return e.fallback.parse(rawText, hints)
}

func (e *Extractor) extractWithModel(ctx context.Context, annotated, userContext string) ([]rawCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, e.modelCfg.Timeout)
	defer cancel()

	prompt := e.system + "\n\nDocument text:\n" + clampRunes(annotated, e.modelCfg.MaxPromptChars)
	if userContext != "" {
		prompt += "\n\nContext from the user's recent categorization history (use it to pick better categories):\n" +
			clampRunes(userContext, e.modelCfg.MaxContextChars)
	}

	rawText, err := e.model.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed interface{}
	clean := cleanModelJSON(rawText)
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("extractWithModel: unmarshal JSON: %w", err)
	}

	return parseModelRecords(parsed)
}

// cleanModelJSON strips Markdown fences and surrounding junk when the
// model ignores the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only from the first '[' to the last ']' if junk remains.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
