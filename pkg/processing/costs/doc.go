// Package costs provides cost arithmetic for routing and billing.
//
// Routing decisions carry a float estimate, tokens × cost_per_1k / 1000.
// Once actual usage is known the same rate is applied in decimal
// arithmetic (shopspring/decimal) and rounded to the ledger amount scale,
// producing the amount and metadata for a credit_burn entry:
//
//	calc := costs.NewCalculator(cfg.Ledger.AmountScale)
//	charge, err := calc.Charge(costs.TokenUsage{Model: "gpt-4o", PromptTokens: 900, CompletionTokens: 300}, 0.005)
//	// charge.Amount == 0.006, charge.Metadata()["tokens"] == 1200
//
// `carpool ledger burn --model` and POST /v1/ledger/usage bill this way.
package costs
