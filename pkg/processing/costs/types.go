package costs

import "github.com/shopspring/decimal"

// TokenUsage contains actual token counts reported once a provider call
// has completed.
type TokenUsage struct {
	// Model is the catalog key of the model that served the call.
	Model string

	// PromptTokens is the actual number of tokens in the prompt.
	PromptTokens int

	// CompletionTokens is the actual number of tokens in the completion.
	CompletionTokens int
}

// Total returns prompt plus completion tokens.
func (u TokenUsage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Charge is the credit amount owed for a completed call.
type Charge struct {
	// Usage is the usage that was billed.
	Usage TokenUsage

	// Tokens is the number of tokens billed.
	Tokens int

	// CostPer1KTokens is the blended rate applied.
	CostPer1KTokens decimal.Decimal

	// Amount is the credit amount, rounded to the ledger scale.
	Amount decimal.Decimal
}

// Metadata describes the charge for the ledger entry that records it.
// The rate is a string so it hashes the same before and after storage.
func (c *Charge) Metadata() map[string]any {
	meta := map[string]any{
		"tokens":             c.Tokens,
		"prompt_tokens":      c.Usage.PromptTokens,
		"completion_tokens":  c.Usage.CompletionTokens,
		"cost_per_1k_tokens": c.CostPer1KTokens.String(),
	}
	if c.Usage.Model != "" {
		meta["model"] = c.Usage.Model
	}
	return meta
}
