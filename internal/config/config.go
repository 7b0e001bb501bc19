package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level moneta.yaml configuration. Zero values fall back
// to Default(), so a partial file only overrides what it names.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Model      ModelConfig      `yaml:"model"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// StorageConfig holds blob storage settings for uploaded files.
type StorageConfig struct {
	// Bucket is the GCS bucket for uploads. Empty means the in-memory
	// store is used (single-node / tests).
	Bucket string `yaml:"bucket"`
}

// ModelConfig controls the generative extraction path.
type ModelConfig struct {
	// Name of the Gemini model. Empty disables the model path entirely and
	// the pipeline runs on the regex extractor alone.
	Name string `yaml:"name"`

	// Timeout bounds a single model call; on expiry the pipeline falls
	// back to the regex extractor.
	Timeout time.Duration `yaml:"timeout"`

	// MaxPromptChars caps how much annotated text is sent to the model.
	MaxPromptChars int `yaml:"max_prompt_chars"`

	// MaxContextChars caps the user-context hint appended to the prompt.
	MaxContextChars int `yaml:"max_context_chars"`
}

// ExtractionConfig is the deterministic-engine configuration: keyword
// lists, category taxonomy and numeric bounds. These are data, not code,
// so deployments can localize them without touching pipeline logic.
type ExtractionConfig struct {
	// IncomeKeywords / ExpenseKeywords classify residual line text when a
	// line carries amounts but no explicit sign.
	IncomeKeywords  []string `yaml:"income_keywords"`
	ExpenseKeywords []string `yaml:"expense_keywords"`

	// Categories is the slug allow-list for candidate categorization.
	// Anything outside it is coerced to DefaultCategory.
	Categories      []string `yaml:"categories"`
	DefaultCategory string   `yaml:"default_category"`

	// MinAmount/MaxAmount bound plausible money values. Candidates below
	// MinAmount (absolute) are discarded as parsing noise.
	MinAmount float64 `yaml:"min_amount"`
	MaxAmount float64 `yaml:"max_amount"`

	// MaxRawTextChars truncates document text before it is persisted and
	// scanned.
	MaxRawTextChars int `yaml:"max_raw_text_chars"`

	// MaxDescriptionChars clamps candidate descriptions.
	MaxDescriptionChars int `yaml:"max_description_chars"`

	// TextFixes maps known OCR/model misreadings to their correct forms,
	// applied to descriptions before Latin-noise stripping.
	TextFixes map[string]string `yaml:"text_fixes"`
}

// Default returns the built-in configuration: Hebrew/English keyword
// lists, the standard category taxonomy and the pipeline bounds.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Model: ModelConfig{
			Name:            "gemini-2.5-flash",
			Timeout:         60 * time.Second,
			MaxPromptChars:  13000,
			MaxContextChars: 2000,
		},
		Extraction: ExtractionConfig{
			IncomeKeywords: []string{
				"משכורת", "שכר", "הפקדה", "הפקדת", "זיכוי", "החזר",
				"קצבה", "קצבת", "ביטוח לאומי", "ריבית זכות", "מענק",
				"salary", "payroll", "deposit", "refund", "cashback",
				"benefit", "interest earned",
			},
			ExpenseKeywords: []string{
				"חיוב", "משיכה", "משיכת", "תשלום", "עמלה", "עמלת",
				"קניה", "רכישה", "הוראת קבע", "ויזה", "ישראכרט",
				"מסטרקארד", "ביט", "פייבוקס", "כספומט",
				"charge", "withdrawal", "payment", "purchase", "fee",
				"direct debit", "standing order", "paypal", "visa",
				"mastercard",
			},
			Categories: []string{
				"groceries", "dining", "transport", "utilities", "housing",
				"health", "insurance", "salary", "entertainment", "shopping",
				"education", "fees", "transfer", "atm", "other",
			},
			DefaultCategory:     "other",
			MinAmount:           0.01,
			MaxAmount:           100000,
			MaxRawTextChars:     50000,
			MaxDescriptionChars: 300,
			TextFixes: map[string]string{
				"חשבוו":       "חשבון",
				"תשלוט":       "תשלום",
				"העברח":       "העברה",
				"משיכת מזומו": "משיכת מזומן",
				"כרטיס אשראל": "כרטיס אשראי",
				"הוראת קכע":   "הוראת קבע",
			},
		},
	}
}

// Load reads a YAML config file and overlays it on Default(). An empty
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults backfills zero values after a partial file overlay.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Server.Port == "" {
		c.Server.Port = def.Server.Port
	}
	if c.Model.Timeout <= 0 {
		c.Model.Timeout = def.Model.Timeout
	}
	if c.Model.MaxPromptChars <= 0 {
		c.Model.MaxPromptChars = def.Model.MaxPromptChars
	}
	if c.Model.MaxContextChars <= 0 {
		c.Model.MaxContextChars = def.Model.MaxContextChars
	}

	ext := &c.Extraction
	if len(ext.IncomeKeywords) == 0 {
		ext.IncomeKeywords = def.Extraction.IncomeKeywords
	}
	if len(ext.ExpenseKeywords) == 0 {
		ext.ExpenseKeywords = def.Extraction.ExpenseKeywords
	}
	if len(ext.Categories) == 0 {
		ext.Categories = def.Extraction.Categories
	}
	if ext.DefaultCategory == "" {
		ext.DefaultCategory = def.Extraction.DefaultCategory
	}
	if ext.MinAmount <= 0 {
		ext.MinAmount = def.Extraction.MinAmount
	}
	if ext.MaxAmount <= 0 {
		ext.MaxAmount = def.Extraction.MaxAmount
	}
	if ext.MaxRawTextChars <= 0 {
		ext.MaxRawTextChars = def.Extraction.MaxRawTextChars
	}
	if ext.MaxDescriptionChars <= 0 {
		ext.MaxDescriptionChars = def.Extraction.MaxDescriptionChars
	}
	if len(ext.TextFixes) == 0 {
		ext.TextFixes = def.Extraction.TextFixes
	}
}
