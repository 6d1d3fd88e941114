package routing

import (
	"fmt"
	"time"
)

// Provider is the closed set of backend provider tags a capability can
// belong to. Routing only reads this tag; it never calls a provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderXAI       Provider = "xai"
	ProviderLocal     Provider = "local"
	ProviderCustom    Provider = "custom"
)

// Providers lists every known provider tag.
var Providers = []Provider{
	ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderXAI, ProviderLocal, ProviderCustom,
}

// ParseProvider converts a tag into a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderXAI, ProviderLocal, ProviderCustom:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// ParseProviders converts a list of tags, failing on the first unknown one.
func ParseProviders(tags []string) ([]Provider, error) {
	out := make([]Provider, 0, len(tags))
	for _, tag := range tags {
		p, err := ParseProvider(tag)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SpeedTier is a model's latency class.
type SpeedTier string

const (
	SpeedFast   SpeedTier = "fast"
	SpeedMedium SpeedTier = "medium"
	SpeedSlow   SpeedTier = "slow"
)

// ParseSpeedTier converts a string into a SpeedTier.
func ParseSpeedTier(s string) (SpeedTier, error) {
	t := SpeedTier(s)
	switch t {
	case SpeedFast, SpeedMedium, SpeedSlow:
		return t, nil
	default:
		return "", fmt.Errorf("unknown speed tier %q", s)
	}
}

// Bonus is the score added for this speed tier.
func (t SpeedTier) Bonus() float64 {
	switch t {
	case SpeedFast:
		return 5
	case SpeedMedium:
		return 3
	case SpeedSlow:
		return 0
	default:
		panic(fmt.Sprintf("routing: unhandled speed tier %q", string(t)))
	}
}

// QualityTier is a model's output quality class.
type QualityTier string

const (
	QualityBasic     QualityTier = "basic"
	QualityGood      QualityTier = "good"
	QualityExcellent QualityTier = "excellent"
	QualityExpert    QualityTier = "expert"
)

// ParseQualityTier converts a string into a QualityTier.
func ParseQualityTier(s string) (QualityTier, error) {
	t := QualityTier(s)
	switch t {
	case QualityBasic, QualityGood, QualityExcellent, QualityExpert:
		return t, nil
	default:
		return "", fmt.Errorf("unknown quality tier %q", s)
	}
}

// Ordinal maps the tier onto 1..4.
func (t QualityTier) Ordinal() int {
	switch t {
	case QualityBasic:
		return 1
	case QualityGood:
		return 2
	case QualityExcellent:
		return 3
	case QualityExpert:
		return 4
	default:
		panic(fmt.Sprintf("routing: unhandled quality tier %q", string(t)))
	}
}

// Complexity is the analyzer's size class for a task.
type Complexity string

const (
	ComplexityTrivial  Complexity = "trivial"
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
	ComplexityExpert   Complexity = "expert"
)

// ParseComplexity converts a string into a Complexity.
func ParseComplexity(s string) (Complexity, error) {
	c := Complexity(s)
	switch c {
	case ComplexityTrivial, ComplexitySimple, ComplexityModerate, ComplexityComplex, ComplexityExpert:
		return c, nil
	default:
		return "", fmt.Errorf("unknown complexity %q", s)
	}
}

// RequiredOrdinal is the minimum quality ordinal this complexity calls for.
func (c Complexity) RequiredOrdinal() int {
	switch c {
	case ComplexityTrivial, ComplexitySimple:
		return 1
	case ComplexityModerate:
		return 2
	case ComplexityComplex:
		return 3
	case ComplexityExpert:
		return 4
	default:
		panic(fmt.Sprintf("routing: unhandled complexity %q", string(c)))
	}
}

// TaskType is the analyzer's classification of what a task asks for.
type TaskType string

const (
	TaskChat       TaskType = "chat"
	TaskCode       TaskType = "code"
	TaskAnalysis   TaskType = "analysis"
	TaskCreative   TaskType = "creative"
	TaskMultimodal TaskType = "multimodal"
	TaskReasoning  TaskType = "reasoning"
	TaskRealtime   TaskType = "realtime"
)

// ParseTaskType converts a string into a TaskType.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(s)
	switch t {
	case TaskChat, TaskCode, TaskAnalysis, TaskCreative, TaskMultimodal, TaskReasoning, TaskRealtime:
		return t, nil
	default:
		return "", fmt.Errorf("unknown task type %q", s)
	}
}

// ModelCapability describes one model's static fitness, cost and latency.
type ModelCapability struct {
	Provider                Provider    `json:"provider" yaml:"provider"`
	ModelID                 string      `json:"model_id" yaml:"model_id"`
	ContextWindow           int         `json:"context_window" yaml:"context_window"`
	SupportsVision          bool        `json:"supports_vision" yaml:"supports_vision"`
	SupportsFunctionCalling bool        `json:"supports_function_calling" yaml:"supports_function_calling"`
	CostPer1KTokens         float64     `json:"cost_per_1k_tokens" yaml:"cost_per_1k_tokens"`
	SpeedTier               SpeedTier   `json:"speed_tier" yaml:"speed_tier"`
	QualityTier             QualityTier `json:"quality_tier" yaml:"quality_tier"`
}

// Message is one prior turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TaskProfile is the analyzer's structured summary of a task. It is built
// once per request and not modified afterwards.
type TaskProfile struct {
	Type             TaskType   `json:"task_type"`
	Complexity       Complexity `json:"complexity"`
	EstimatedTokens  int        `json:"estimated_tokens"`
	RequiresVision   bool       `json:"requires_vision"`
	RequiresTools    bool       `json:"requires_tools"`
	RequiresRealtime bool       `json:"requires_realtime"`
	ContextLength    int        `json:"context_length"`
}

// Validate checks that a profile supplied from outside the analyzer (for
// example over HTTP) is well formed.
func (p *TaskProfile) Validate() error {
	if _, err := ParseTaskType(string(p.Type)); err != nil {
		return err
	}
	if _, err := ParseComplexity(string(p.Complexity)); err != nil {
		return err
	}
	if p.EstimatedTokens < 0 {
		return fmt.Errorf("estimated tokens must be non-negative: %d", p.EstimatedTokens)
	}
	if p.ContextLength < 0 {
		return fmt.Errorf("context length must be non-negative: %d", p.ContextLength)
	}
	return nil
}

// Preferences carries optional caller preferences for scoring.
type Preferences struct {
	PreferredProvider Provider `json:"preferred_provider,omitempty"`
}

// Decision is the result of one routing call.
type Decision struct {
	// SelectedModel is the catalog key of the winning model.
	SelectedModel string `json:"selected_model"`

	// SelectedProvider is the winner's provider tag.
	SelectedProvider Provider `json:"selected_provider"`

	// ModelID is the provider-side identifier of the winner.
	ModelID string `json:"model_id"`

	// Rationale is descriptive only; nothing downstream parses it.
	Rationale string `json:"rationale"`

	// Alternatives holds up to three runner-up catalog keys, best first.
	Alternatives []string `json:"alternatives"`

	// EstimatedCost is estimated_tokens × cost_per_1k / 1000.
	EstimatedCost float64 `json:"estimated_cost"`

	// Confidence is the winner's raw score. Higher is a better fit.
	Confidence float64 `json:"confidence"`

	// RequirementsRelaxed is set when vision or tool narrowing left no
	// candidates and the full available set was scored instead.
	RequirementsRelaxed bool `json:"requirements_relaxed"`
}

// RoutingStats contains statistics about routing decisions.
type RoutingStats struct {
	// TotalRequests is the total number of routing requests processed.
	TotalRequests int64

	// RequestsPerProvider tracks decisions won by each provider.
	RequestsPerProvider map[string]int64

	// RequestsPerTaskType tracks decisions by task classification.
	RequestsPerTaskType map[string]int64

	// RelaxedCount is the number of decisions that fell back to the full
	// available set.
	RelaxedCount int64

	// PreferenceMatchCount is the number of decisions won by the caller's
	// preferred provider.
	PreferenceMatchCount int64

	// Errors is the total number of routing errors.
	Errors int64

	// LastResetTime is when statistics were last reset.
	LastResetTime time.Time
}
