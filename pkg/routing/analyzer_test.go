package routing

import (
	"errors"
	"strings"
	"testing"

	"blackroad-os/carpool/pkg/processing/tokens"
)

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		tokens int
		want   Complexity
	}{
		{0, ComplexityTrivial},
		{99, ComplexityTrivial},
		{100, ComplexitySimple},
		{499, ComplexitySimple},
		{500, ComplexityModerate},
		{1999, ComplexityModerate},
		{2000, ComplexityComplex},
		{9999, ComplexityComplex},
		{10000, ComplexityExpert},
		{1000000, ComplexityExpert},
	}

	for _, tt := range tests {
		if got := ClassifyComplexity(tt.tokens); got != tt.want {
			t.Errorf("ClassifyComplexity(%d) = %s, want %s", tt.tokens, got, tt.want)
		}
	}
}

func TestClassifyComplexity_Monotone(t *testing.T) {
	prev := ClassifyComplexity(0).RequiredOrdinal()
	for n := 1; n <= 12000; n++ {
		cur := ClassifyComplexity(n).RequiredOrdinal()
		if cur < prev {
			t.Fatalf("complexity decreased at %d tokens", n)
		}
		prev = cur
	}
}

func TestClassifyTaskType(t *testing.T) {
	tests := []struct {
		text string
		want TaskType
	}{
		{"debug this function", TaskCode},
		{"Write a Python FUNCTION that sorts", TaskCode},
		{"Analyze this data set", TaskAnalysis},
		{"compare these and write a summary", TaskAnalysis},
		{"Write a poem about autumn", TaskCreative},
		{"Describe this picture", TaskMultimodal},
		{"Solve for x", TaskReasoning},
		{"What's the latest news", TaskRealtime},
		{"Hello there", TaskChat},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := ClassifyTaskType(tt.text); got != tt.want {
				t.Errorf("ClassifyTaskType(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestAnalyzer_Analyze(t *testing.T) {
	a := NewAnalyzer(nil)

	tests := []struct {
		name     string
		text     string
		history  []Message
		expected TaskProfile
	}{
		{
			name: "debug prompt",
			text: "debug this function",
			expected: TaskProfile{
				Type: TaskCode, Complexity: ComplexityTrivial,
				EstimatedTokens: 5, ContextLength: 5,
			},
		},
		{
			name: "tools and realtime",
			text: "Search the web for today's weather",
			expected: TaskProfile{
				Type: TaskRealtime, Complexity: ComplexityTrivial,
				EstimatedTokens: 9, ContextLength: 9,
				RequiresTools: true, RequiresRealtime: true,
			},
		},
		{
			name: "vision flag independent of type",
			text: "Look at this diagram",
			expected: TaskProfile{
				Type: TaskChat, Complexity: ComplexityTrivial,
				EstimatedTokens: 5, ContextLength: 5,
				RequiresVision: true,
			},
		},
		{
			name: "history counts toward tokens",
			text: "debug this function",
			history: []Message{
				{Role: "user", Content: strings.Repeat("a", 40)},
				{Role: "assistant", Content: strings.Repeat("b", 400)},
			},
			expected: TaskProfile{
				Type: TaskCode, Complexity: ComplexitySimple,
				EstimatedTokens: 115, ContextLength: 115,
			},
		},
		{
			name:    "history does not affect classification",
			text:    "hello",
			history: []Message{{Role: "user", Content: "please debug my code and search the web"}},
			expected: TaskProfile{
				Type: TaskChat, Complexity: ComplexityTrivial,
				EstimatedTokens: 11, ContextLength: 11,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Analyze(tt.text, tt.history)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if *got != tt.expected {
				t.Errorf("Analyze() = %+v, want %+v", *got, tt.expected)
			}
		})
	}
}

func TestAnalyzer_Deterministic(t *testing.T) {
	a := NewAnalyzer(nil)
	history := []Message{{Role: "user", Content: "compare these two datasets"}}

	first, err := a.Analyze("calculate the totals", history)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _ := a.Analyze("calculate the totals", history)
		if *again != *first {
			t.Fatalf("profile changed: %+v vs %+v", *again, *first)
		}
	}
}

func TestAnalyzer_EmptyText(t *testing.T) {
	a := NewAnalyzer(nil)
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := a.Analyze(text, nil); !errors.Is(err, ErrEmptyTask) {
			t.Errorf("Analyze(%q) error = %v, want ErrEmptyTask", text, err)
		}
	}
}

func TestAnalyzer_BPEComplexityBoundary(t *testing.T) {
	estimator, err := tokens.NewTiktokenEstimator(tokens.DefaultEncoding)
	if err != nil {
		t.Fatalf("NewTiktokenEstimator() error = %v", err)
	}
	a := NewAnalyzer(estimator)

	// "hello" and " hello" are single cl100k tokens.
	words := func(n int) string { return "hello" + strings.Repeat(" hello", n-1) }

	tests := []struct {
		name   string
		text   string
		tokens int
		want   Complexity
	}{
		{name: "debug prompt", text: "debug this function", tokens: 3, want: ComplexityTrivial},
		{name: "just below simple", text: words(99), tokens: 99, want: ComplexityTrivial},
		{name: "at simple", text: words(100), tokens: 100, want: ComplexitySimple},
		{name: "just below moderate", text: words(499), tokens: 499, want: ComplexitySimple},
		{name: "at moderate", text: words(500), tokens: 500, want: ComplexityModerate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Analyze(tt.text, nil)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if got.EstimatedTokens != tt.tokens || got.Complexity != tt.want {
				t.Errorf("Analyze() = %d tokens %s, want %d tokens %s",
					got.EstimatedTokens, got.Complexity, tt.tokens, tt.want)
			}
		})
	}
}

type failingEstimator struct{}

func (failingEstimator) EstimateText(string, string) (int, error) {
	return 0, errors.New("tokenizer fault")
}

func (failingEstimator) EstimateTexts([]string, string) (int, error) {
	return 0, errors.New("tokenizer fault")
}

func TestAnalyzer_EstimatorFault(t *testing.T) {
	a := NewAnalyzer(failingEstimator{})
	_, err := a.Analyze("hello", nil)
	if err == nil {
		t.Fatal("expected estimator error to be reported")
	}
	if !strings.Contains(err.Error(), "tokenizer fault") {
		t.Errorf("error = %v, want wrapped estimator error", err)
	}
}
