package costs

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculator_Estimate(t *testing.T) {
	calc := NewCalculator(8)

	tests := []struct {
		name      string
		tokens    int
		costPer1K float64
		expected  float64
	}{
		{name: "zero tokens", tokens: 0, costPer1K: 0.005, expected: 0},
		{name: "negative tokens", tokens: -5, costPer1K: 0.005, expected: 0},
		{name: "gpt-4o", tokens: 1000, costPer1K: 0.005, expected: 0.005},
		{name: "gpt-4o-mini trivial", tokens: 5, costPer1K: 0.00015, expected: 0.00000075},
		{name: "gemini large", tokens: 500000, costPer1K: 0.0001, expected: 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Estimate(tt.tokens, tt.costPer1K)
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("Estimate(%d, %v) = %v, want %v", tt.tokens, tt.costPer1K, got, tt.expected)
			}
		})
	}
}

func TestCalculator_Charge(t *testing.T) {
	tests := []struct {
		name      string
		scale     int32
		usage     TokenUsage
		costPer1K float64
		expected  string
	}{
		{name: "exact", scale: 8, usage: TokenUsage{PromptTokens: 900, CompletionTokens: 300}, costPer1K: 0.005, expected: "0.006"},
		{name: "rounded to scale", scale: 4, usage: TokenUsage{PromptTokens: 1, CompletionTokens: 0}, costPer1K: 0.15, expected: "0.0002"},
		{name: "tiny cost at scale 8", scale: 8, usage: TokenUsage{PromptTokens: 5}, costPer1K: 0.00015, expected: "0.00000075"},
		{name: "free model", scale: 8, usage: TokenUsage{PromptTokens: 1000, CompletionTokens: 1000}, costPer1K: 0, expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charge, err := NewCalculator(tt.scale).Charge(tt.usage, tt.costPer1K)
			if err != nil {
				t.Fatalf("Charge() error = %v", err)
			}
			want := decimal.RequireFromString(tt.expected)
			if !charge.Amount.Equal(want) {
				t.Errorf("Charge().Amount = %s, want %s", charge.Amount, want)
			}
			if charge.Tokens != tt.usage.Total() {
				t.Errorf("Charge().Tokens = %d, want %d", charge.Tokens, tt.usage.Total())
			}
		})
	}
}

func TestCharge_Metadata(t *testing.T) {
	charge, err := NewCalculator(8).Charge(TokenUsage{Model: "gpt-4o", PromptTokens: 900, CompletionTokens: 300}, 0.005)
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}

	meta := charge.Metadata()
	want := map[string]any{
		"model":              "gpt-4o",
		"tokens":             1200,
		"prompt_tokens":      900,
		"completion_tokens":  300,
		"cost_per_1k_tokens": "0.005",
	}
	if len(meta) != len(want) {
		t.Fatalf("Metadata() = %v, want %v", meta, want)
	}
	for k, v := range want {
		if meta[k] != v {
			t.Errorf("Metadata()[%q] = %v, want %v", k, meta[k], v)
		}
	}

	anonymous, _ := NewCalculator(8).Charge(TokenUsage{PromptTokens: 1}, 0.005)
	if _, ok := anonymous.Metadata()["model"]; ok {
		t.Error("model should be omitted when usage names none")
	}
}

func TestCalculator_ChargeRejectsNegative(t *testing.T) {
	calc := NewCalculator(8)

	if _, err := calc.Charge(TokenUsage{PromptTokens: -1}, 0.01); err == nil {
		t.Error("expected error for negative tokens")
	}
	if _, err := calc.Charge(TokenUsage{PromptTokens: 10}, -0.01); err == nil {
		t.Error("expected error for negative rate")
	}
}

func TestNewCalculator_NegativeScale(t *testing.T) {
	charge, err := NewCalculator(-3).Charge(TokenUsage{PromptTokens: 1500}, 1)
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if !charge.Amount.Equal(decimal.NewFromInt(2)) {
		t.Errorf("scale should clamp to 0, got %s", charge.Amount)
	}
}
