package tokens

import (
	"fmt"

	"blackroad-os/carpool/pkg/config"
)

// Estimator estimates token counts for text.
// Implementations must be deterministic: identical input always yields the
// same count.
type Estimator interface {
	// EstimateText estimates tokens for a single text string. The model may be
	// empty when no model has been selected yet.
	EstimateText(text string, model string) (int, error)

	// EstimateTexts returns the sum of EstimateText over every text.
	EstimateTexts(texts []string, model string) (int, error)
}

// New builds the estimator named by cfg.Estimator. A nil config selects the
// tiktoken estimator with DefaultEncoding.
func New(cfg *config.TokensConfig) (Estimator, error) {
	if cfg == nil {
		return NewTiktokenEstimator(DefaultEncoding)
	}
	switch cfg.Estimator {
	case "", "tiktoken":
		return NewTiktokenEstimator(cfg.Encoding)
	case "simple":
		return NewSimpleEstimator(cfg), nil
	default:
		return nil, fmt.Errorf("unknown token estimator %q", cfg.Estimator)
	}
}
