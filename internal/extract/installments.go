package extract

import (
	"github.com/shopspring/decimal"

	"github.com/moneta-app/moneta/internal/domain"
)

// nearFullRatio decides whether the extractor reported the full purchase
// price instead of the single payment.
var nearFullRatio = decimal.NewFromFloat(0.99)

// NormalizeInstallments corrects the common extractor error of reporting
// an installment purchase's full price as the row amount. When a
// candidate's absolute amount is at least 99% of its total, the amount is
// replaced with -round(total/count, 2). The correction is idempotent.
func NormalizeInstallments(cands []domain.ExtractedTransaction) []domain.ExtractedTransaction {
	for idx := range cands {
		c := &cands[idx]
		if c.TotalAmount == nil || c.InstallmentTotal < 1 {
			continue
		}

		total := *c.TotalAmount
		if c.Amount.Abs().GreaterThanOrEqual(total.Mul(nearFullRatio)) {
			c.Amount = total.
				Div(decimal.NewFromInt(int64(c.InstallmentTotal))).
				Round(2).
				Neg()
		}
	}
	return cands
}
