package costs

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

// Calculator turns token counts into costs. Routing works with float
// estimates; amounts headed for the ledger are computed in decimal and
// rounded to a fixed scale so they hash identically everywhere.
type Calculator struct {
	scale int32
}

// NewCalculator creates a calculator that rounds ledger amounts to scale
// decimal places.
func NewCalculator(scale int32) *Calculator {
	if scale < 0 {
		scale = 0
	}
	return &Calculator{scale: scale}
}

// Estimate returns tokens × costPer1K / 1000 for routing decisions.
func (c *Calculator) Estimate(tokens int, costPer1K float64) float64 {
	return calculateTokenCost(tokens, costPer1K)
}

// Charge computes the credit amount for actual usage at the given blended
// rate. The result is suitable as a credit_burn amount.
func (c *Calculator) Charge(usage TokenUsage, costPer1K float64) (*Charge, error) {
	if usage.PromptTokens < 0 || usage.CompletionTokens < 0 {
		return nil, fmt.Errorf("token counts must be non-negative: prompt=%d completion=%d",
			usage.PromptTokens, usage.CompletionTokens)
	}
	if costPer1K < 0 {
		return nil, fmt.Errorf("cost per 1k tokens must be non-negative: %v", costPer1K)
	}

	rate := decimal.NewFromFloat(costPer1K)
	total := usage.Total()
	amount := rate.Mul(decimal.NewFromInt(int64(total))).Div(thousand).Round(c.scale)

	return &Charge{
		Usage:           usage,
		Tokens:          total,
		CostPer1KTokens: rate,
		Amount:          amount,
	}, nil
}

// calculateTokenCost calculates the cost for a given number of tokens.
// costPer1K is the cost per 1000 tokens.
func calculateTokenCost(tokens int, costPer1K float64) float64 {
	if tokens <= 0 {
		return 0.0
	}

	return float64(tokens) * costPer1K / 1000.0
}
