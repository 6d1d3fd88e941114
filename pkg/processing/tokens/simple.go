package tokens

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"blackroad-os/carpool/pkg/config"
)

// SimpleEstimator implements character-based token estimation.
// It uses model-specific characters-per-token ratios to estimate token counts.
type SimpleEstimator struct {
	mu     sync.RWMutex
	ratios map[string]float64
	// prefixes holds ratio keys sorted longest first so family matches
	// resolve the same way on every call.
	prefixes []string
}

// NewSimpleEstimator creates a new simple character-based token estimator.
// A nil config uses the default ratio for every model.
func NewSimpleEstimator(cfg *config.TokensConfig) *SimpleEstimator {
	e := &SimpleEstimator{}
	var models map[string]float64
	if cfg != nil {
		models = cfg.Models
	}
	e.setRatios(models)
	return e
}

// EstimateText estimates tokens for a single text string.
// Characters are counted as runes. Non-empty text is at least one token.
func (e *SimpleEstimator) EstimateText(text string, model string) (int, error) {
	if text == "" {
		return 0, nil
	}
	if !utf8.ValidString(text) {
		return 0, fmt.Errorf("text is not valid UTF-8")
	}

	charsPerToken := e.charsPerToken(model)
	charCount := utf8.RuneCountInString(text)

	tokens := float64(charCount) / charsPerToken
	if tokens < 1.0 {
		tokens = 1.0
	}

	return int(tokens + 0.5), nil
}

// EstimateTexts sums EstimateText over texts.
func (e *SimpleEstimator) EstimateTexts(texts []string, model string) (int, error) {
	total := 0
	for i, text := range texts {
		n, err := e.EstimateText(text, model)
		if err != nil {
			return 0, fmt.Errorf("failed to estimate text %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}

// UpdateRatios replaces the per-model ratios (hot-reload support).
func (e *SimpleEstimator) UpdateRatios(cfg *config.TokensConfig) {
	if cfg == nil {
		return
	}
	e.setRatios(cfg.Models)
}

func (e *SimpleEstimator) setRatios(models map[string]float64) {
	ratios := make(map[string]float64, len(models)+1)
	prefixes := make([]string, 0, len(models))
	for k, v := range models {
		if v <= 0 {
			continue
		}
		ratios[k] = v
		if k != "default" {
			prefixes = append(prefixes, k)
		}
	}
	if _, ok := ratios["default"]; !ok {
		ratios["default"] = config.DefaultTokensCharsPerToken
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})

	e.mu.Lock()
	e.ratios = ratios
	e.prefixes = prefixes
	e.mu.Unlock()
}

// charsPerToken returns the ratio for a model: exact match, then the
// longest configured prefix (e.g. "gpt-4" matches "gpt-4-0613"), then default.
func (e *SimpleEstimator) charsPerToken(model string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if model != "" {
		if ratio, ok := e.ratios[model]; ok {
			return ratio
		}
		for _, prefix := range e.prefixes {
			if strings.HasPrefix(model, prefix) {
				return e.ratios[prefix]
			}
		}
	}
	return e.ratios["default"]
}
