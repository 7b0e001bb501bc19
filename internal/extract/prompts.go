package extract

import (
	"strings"

	"github.com/moneta-app/moneta/internal/config"
)

// buildSystemPrompt constructs the extraction instructions sent with the
// annotated text. The model must return a STRICT JSON array and must obey
// the inline sign tags produced by Annotate.
func buildSystemPrompt(cfg config.ExtractionConfig) string {
	var b strings.Builder

	b.WriteString("You are a financial document parser for bank and credit-card statements in Hebrew and English.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Parse ALL transactions in the text below.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a JSON array of objects.\n\n")
	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"date\": string, ISO format \"YYYY-MM-DD\"\n")
	b.WriteString("- \"description\": string\n")
	b.WriteString("- \"amount\": number (positive for money IN, negative for money OUT)\n")
	b.WriteString("- \"category\": string (one of the predefined slugs below)\n")
	b.WriteString("- \"total_amount\": number or null (full purchase price for installment plans)\n")
	b.WriteString("- \"installment_current\": number or null (1-based payment position)\n")
	b.WriteString("- \"installment_total\": number or null (number of payments)\n\n")

	b.WriteString("Use ONLY the following category slugs:\n")
	for _, slug := range cfg.Categories {
		b.WriteString("  - " + slug + "\n")
	}
	b.WriteString("If unsure, use \"" + cfg.DefaultCategory + "\".\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Lines may start with machine-readable tags: [INCOME 45.00], [EXPENSE 45.00], [UNKNOWN 45.00] or [IN=40.00 OUT=120.00].\n")
	b.WriteString("- A line tagged [INCOME ...] MUST produce a positive amount; [EXPENSE ...] MUST produce a negative amount. NEVER override these tags.\n")
	b.WriteString("- A line tagged [IN=x OUT=y] is a dual-column row: produce one transaction with amount +x and one with amount -y.\n")
	b.WriteString("- If a line has no date, use the date of the closest preceding line that has one.\n")
	b.WriteString("- Installments appear as \"X מתוך Y\" or \"X of Y\". Report the SINGLE payment in \"amount\" (negative), the full price in \"total_amount\" and the position/count in \"installment_current\"/\"installment_total\".\n")
	b.WriteString("- Never mix Hebrew and Latin characters inside one word in \"description\"; drop garbled fragments instead.\n\n")
	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")

	return b.String()
}
