package routing

import (
	"fmt"
	"strings"

	"blackroad-os/carpool/pkg/processing/tokens"
)

// Complexity thresholds on estimated tokens. Each bound is exclusive.
const (
	trivialBelow  = 100
	simpleBelow   = 500
	moderateBelow = 2000
	complexBelow  = 10000
)

type typeRule struct {
	taskType TaskType
	keywords []string
}

// typeRules is checked in order; the first rule with a matching keyword wins.
var typeRules = []typeRule{
	{TaskCode, []string{"code", "function", "debug", "implement", "program"}},
	{TaskAnalysis, []string{"analyze", "data", "compare", "evaluate"}},
	{TaskCreative, []string{"write", "create", "story", "poem", "article"}},
	{TaskMultimodal, []string{"image", "picture", "video", "audio"}},
	{TaskReasoning, []string{"solve", "calculate", "prove", "logic"}},
	{TaskRealtime, []string{"current", "latest", "today", "news"}},
}

var (
	visionKeywords = []string{"image", "picture", "photo", "visual", "diagram"}
	toolKeywords   = []string{"search", "web", "current", "latest", "today"}
)

// Analyzer turns task text and history into a TaskProfile. It holds no
// mutable state and is safe for concurrent use.
type Analyzer struct {
	estimator tokens.Estimator
}

// NewAnalyzer creates an analyzer. A nil estimator selects a
// SimpleEstimator with default ratios.
func NewAnalyzer(estimator tokens.Estimator) *Analyzer {
	if estimator == nil {
		estimator = tokens.NewSimpleEstimator(nil)
	}
	return &Analyzer{estimator: estimator}
}

// Analyze profiles a task. The token estimate covers text plus every
// history message's content. Type and requirement flags look only at text.
func (a *Analyzer) Analyze(text string, history []Message) (*TaskProfile, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyTask
	}

	texts := make([]string, 0, len(history)+1)
	texts = append(texts, text)
	for _, m := range history {
		texts = append(texts, m.Content)
	}
	estimated, err := a.estimator.EstimateTexts(texts, "")
	if err != nil {
		return nil, fmt.Errorf("token estimation failed: %w", err)
	}

	lower := strings.ToLower(text)
	requiresTools := containsAny(lower, toolKeywords)

	return &TaskProfile{
		Type:            ClassifyTaskType(text),
		Complexity:      ClassifyComplexity(estimated),
		EstimatedTokens: estimated,
		RequiresVision:  containsAny(lower, visionKeywords),
		RequiresTools:   requiresTools,
		// Realtime has no detector of its own yet and tracks tool need.
		RequiresRealtime: requiresTools,
		ContextLength:    estimated,
	}, nil
}

// ClassifyComplexity maps a token count onto a Complexity.
func ClassifyComplexity(tokens int) Complexity {
	switch {
	case tokens < trivialBelow:
		return ComplexityTrivial
	case tokens < simpleBelow:
		return ComplexitySimple
	case tokens < moderateBelow:
		return ComplexityModerate
	case tokens < complexBelow:
		return ComplexityComplex
	default:
		return ComplexityExpert
	}
}

// ClassifyTaskType returns the first task type whose keywords appear in
// text, case-insensitively, or TaskChat.
func ClassifyTaskType(text string) TaskType {
	lower := strings.ToLower(text)
	for _, rule := range typeRules {
		if containsAny(lower, rule.keywords) {
			return rule.taskType
		}
	}
	return TaskChat
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
