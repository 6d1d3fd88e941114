package routing

import (
	"math"
	"testing"
)

const scoreTolerance = 1e-9

func mustCapability(t *testing.T, key string) ModelCapability {
	t.Helper()
	mc, ok := DefaultCatalog().Lookup(key)
	if !ok {
		t.Fatalf("catalog has no %q", key)
	}
	return mc
}

func TestScore(t *testing.T) {
	tests := []struct {
		name  string
		task  TaskProfile
		model string
		prefs *Preferences
		want  float64
	}{
		{
			name:  "trivial on good fast model",
			task:  TaskProfile{Complexity: ComplexityTrivial, ContextLength: 5},
			model: "gpt-4o-mini",
			want:  15,
		},
		{
			name:  "trivial on excellent medium model",
			task:  TaskProfile{Complexity: ComplexityTrivial, ContextLength: 5},
			model: "claude-3.5-sonnet",
			want:  13,
		},
		{
			name:  "moderate exact tier with cost adjustment",
			task:  TaskProfile{Complexity: ComplexityModerate, ContextLength: 800},
			model: "gpt-4o-mini",
			want:  10 + 5 + (0.01-0.00015)*100 + 5,
		},
		{
			name:  "moderate exact tier medium speed",
			task:  TaskProfile{Complexity: ComplexityModerate, ContextLength: 800},
			model: "grok-beta",
			want:  18.5,
		},
		{
			name:  "expert exact tier pays for cost above pivot",
			task:  TaskProfile{Complexity: ComplexityExpert, ContextLength: 12000},
			model: "o1",
			want:  14.5,
		},
		{
			name:  "insufficient quality penalty",
			task:  TaskProfile{Complexity: ComplexityExpert, ContextLength: 12000},
			model: "claude-3.5-sonnet",
			want:  -7,
		},
		{
			name:  "context overflow penalty",
			task:  TaskProfile{Complexity: ComplexityComplex, ContextLength: 150000},
			model: "gpt-4o",
			want:  10 + 5 + 0.5 + 5 - 50,
		},
		{
			name:  "context exactly at window fits",
			task:  TaskProfile{Complexity: ComplexityComplex, ContextLength: 128000},
			model: "gpt-4o",
			want:  20.5,
		},
		{
			name:  "preferred provider bonus",
			task:  TaskProfile{Complexity: ComplexityTrivial, ContextLength: 5},
			model: "claude-3-haiku",
			prefs: &Preferences{PreferredProvider: ProviderAnthropic},
			want:  23,
		},
		{
			name:  "preference for another provider",
			task:  TaskProfile{Complexity: ComplexityTrivial, ContextLength: 5},
			model: "gpt-4o",
			prefs: &Preferences{PreferredProvider: ProviderAnthropic},
			want:  15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(&tt.task, mustCapability(t, tt.model), tt.prefs)
			if math.Abs(got-tt.want) > scoreTolerance {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_CheaperWinsAtMatchingTier(t *testing.T) {
	task := &TaskProfile{Complexity: ComplexityModerate, ContextLength: 600}
	mini := Score(task, mustCapability(t, "gpt-4o-mini"), nil)
	haiku := Score(task, mustCapability(t, "claude-3-haiku"), nil)

	if mini <= haiku {
		t.Errorf("cheaper model should score higher at matching tier: mini=%v haiku=%v", mini, haiku)
	}
	if math.Abs((mini-haiku)-0.01) > scoreTolerance {
		t.Errorf("difference = %v, want 0.01", mini-haiku)
	}
}

func TestScore_NoCostAdjustmentAboveTier(t *testing.T) {
	task := &TaskProfile{Complexity: ComplexityTrivial}
	cheap := ModelCapability{Provider: ProviderLocal, ModelID: "a", ContextWindow: 10, CostPer1KTokens: 0, SpeedTier: SpeedFast, QualityTier: QualityExcellent}
	pricey := cheap
	pricey.CostPer1KTokens = 10

	if Score(task, cheap, nil) != Score(task, pricey, nil) {
		t.Error("cost should not matter when model is above the required tier")
	}
}
