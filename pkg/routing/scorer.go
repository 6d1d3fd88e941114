package routing

// Score components.
const (
	sufficientQualityBonus = 10.0
	exactQualityBonus      = 5.0
	insufficientPenalty    = -10.0
	costPivot              = 0.01
	costWeight             = 100.0
	contextOverflowPenalty = -50.0
	preferredProviderBonus = 8.0
)

// Score rates how well a capability fits a task. Higher is better; the
// result is unbounded in both directions.
//
// A model at or above the required quality earns 10, and 5 more at an exact
// tier match. At the exact tier, cheaper models also gain
// (0.01 - cost_per_1k) × 100. A model below the required tier loses 10.
// Speed adds 5 (fast), 3 (medium) or 0 (slow). A task whose context does not
// fit the window loses 50, and a matching preferred provider adds 8.
func Score(task *TaskProfile, mc ModelCapability, prefs *Preferences) float64 {
	score := 0.0

	required := task.Complexity.RequiredOrdinal()
	quality := mc.QualityTier.Ordinal()

	if quality >= required {
		score += sufficientQualityBonus
		if quality == required {
			score += exactQualityBonus
			score += (costPivot - mc.CostPer1KTokens) * costWeight
		}
	} else {
		score += insufficientPenalty
	}

	score += mc.SpeedTier.Bonus()

	if task.ContextLength > mc.ContextWindow {
		score += contextOverflowPenalty
	}

	if prefs != nil && prefs.PreferredProvider != "" && prefs.PreferredProvider == mc.Provider {
		score += preferredProviderBonus
	}

	return score
}
