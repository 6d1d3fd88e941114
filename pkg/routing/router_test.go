package routing

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
)

var defaultProviders = []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderXAI}

type recordedDecision struct {
	provider, model, taskType string
	score                     float64
	relaxed                   bool
}

type fakeRecorder struct {
	mu        sync.Mutex
	decisions []recordedDecision
	failures  []string
}

func (f *fakeRecorder) RecordRoutingDecision(provider, model, taskType string, score float64, relaxed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, recordedDecision{provider, model, taskType, score, relaxed})
}

func (f *fakeRecorder) RecordRoutingFailure(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, reason)
}

func newTestRouter(t *testing.T, opts ...Option) *Router {
	t.Helper()
	r, err := NewRouter(DefaultCatalog(), opts...)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return r
}

func TestRouter_DebugScenario(t *testing.T) {
	task, err := NewAnalyzer(nil).Analyze("debug this function", nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if task.Type != TaskCode || task.Complexity != ComplexityTrivial {
		t.Fatalf("profile = %+v, want code/trivial", task)
	}

	catalog, err := NewCatalog([]CatalogEntry{
		{Key: "claude-3.5-sonnet", Capability: mustCapability(t, "claude-3.5-sonnet")},
		{Key: "gpt-4o-mini", Capability: mustCapability(t, "gpt-4o-mini")},
	})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	r, _ := NewRouter(catalog)

	decision, err := r.Route(context.Background(), task, defaultProviders, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if decision.SelectedModel != "gpt-4o-mini" {
		t.Errorf("SelectedModel = %q, want gpt-4o-mini", decision.SelectedModel)
	}
	if decision.Confidence != 15 {
		t.Errorf("Confidence = %v, want 15 (10 sufficient quality + 5 fast)", decision.Confidence)
	}
	if !reflect.DeepEqual(decision.Alternatives, []string{"claude-3.5-sonnet"}) {
		t.Errorf("Alternatives = %v", decision.Alternatives)
	}
	if got := Score(task, mustCapability(t, "claude-3.5-sonnet"), nil); got != 13 {
		t.Errorf("runner-up score = %v, want 13", got)
	}
}

func TestRouter_DefaultCatalogTrivial(t *testing.T) {
	r := newTestRouter(t)
	task := &TaskProfile{Type: TaskCode, Complexity: ComplexityTrivial, EstimatedTokens: 5, ContextLength: 5}

	decision, err := r.Route(context.Background(), task, defaultProviders, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	want := &Decision{
		SelectedModel:    "gpt-4o",
		SelectedProvider: ProviderOpenAI,
		ModelID:          "gpt-4o",
		Rationale:        "Selected gpt-4o for code task with trivial complexity. Model offers excellent quality at fast speed, matching task requirements (score: 15.0).",
		Alternatives:     []string{"gpt-4o-mini", "claude-3-haiku", "gemini-2.0-flash"},
		Confidence:       15,
	}
	if math.Abs(decision.EstimatedCost-0.000025) > 1e-15 {
		t.Errorf("EstimatedCost = %v, want 0.000025", decision.EstimatedCost)
	}
	want.EstimatedCost = decision.EstimatedCost
	if !reflect.DeepEqual(decision, want) {
		t.Errorf("Route() =\n%+v\nwant\n%+v", decision, want)
	}
}

func TestRouter_ModerateFavorsCheapExactTier(t *testing.T) {
	r := newTestRouter(t)
	task := &TaskProfile{Type: TaskChat, Complexity: ComplexityModerate, EstimatedTokens: 800, ContextLength: 800}

	decision, err := r.Route(context.Background(), task, defaultProviders, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if decision.SelectedModel != "gpt-4o-mini" {
		t.Errorf("SelectedModel = %q, want gpt-4o-mini", decision.SelectedModel)
	}
	if math.Abs(decision.Confidence-20.985) > scoreTolerance {
		t.Errorf("Confidence = %v, want 20.985", decision.Confidence)
	}
	if !reflect.DeepEqual(decision.Alternatives, []string{"claude-3-haiku", "grok-beta", "gpt-4o"}) {
		t.Errorf("Alternatives = %v", decision.Alternatives)
	}
	if math.Abs(decision.EstimatedCost-800*0.00015/1000) > 1e-15 {
		t.Errorf("EstimatedCost = %v", decision.EstimatedCost)
	}
}

func TestRouter_ExpertPicksExpertModel(t *testing.T) {
	r := newTestRouter(t)
	task := &TaskProfile{Type: TaskReasoning, Complexity: ComplexityExpert, EstimatedTokens: 12000, ContextLength: 12000}

	decision, err := r.Route(context.Background(), task, defaultProviders, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.SelectedModel != "o1" || math.Abs(decision.Confidence-14.5) > scoreTolerance {
		t.Errorf("got %s (%v), want o1 (14.5)", decision.SelectedModel, decision.Confidence)
	}
}

func TestRouter_ContextOverflowAvoided(t *testing.T) {
	r := newTestRouter(t)
	task := &TaskProfile{Type: TaskAnalysis, Complexity: ComplexityComplex, EstimatedTokens: 150000, ContextLength: 150000}

	decision, err := r.Route(context.Background(), task, defaultProviders, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.SelectedModel != "gemini-2.0-flash" {
		t.Errorf("SelectedModel = %q, want gemini-2.0-flash", decision.SelectedModel)
	}

	decision, err = r.Route(context.Background(), task, []Provider{ProviderOpenAI, ProviderAnthropic}, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.SelectedModel != "claude-3.5-sonnet" {
		t.Errorf("SelectedModel = %q, want claude-3.5-sonnet", decision.SelectedModel)
	}
	if math.Abs(decision.Confidence-18.7) > scoreTolerance {
		t.Errorf("Confidence = %v, want 18.7", decision.Confidence)
	}
}

func TestRouter_PreferredProvider(t *testing.T) {
	r := newTestRouter(t)
	task := &TaskProfile{Type: TaskChat, Complexity: ComplexityTrivial, EstimatedTokens: 5, ContextLength: 5}

	decision, err := r.Route(context.Background(), task, defaultProviders, &Preferences{PreferredProvider: ProviderAnthropic})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.SelectedModel != "claude-3-haiku" || decision.Confidence != 23 {
		t.Errorf("got %s (%v), want claude-3-haiku (23)", decision.SelectedModel, decision.Confidence)
	}
	if got := r.Stats().PreferenceMatchCount; got != 1 {
		t.Errorf("PreferenceMatchCount = %d, want 1", got)
	}
}

func TestRouter_DefaultPreference(t *testing.T) {
	r := newTestRouter(t, WithDefaultPreference(ProviderGoogle))
	task := &TaskProfile{Type: TaskChat, Complexity: ComplexityTrivial, EstimatedTokens: 5, ContextLength: 5}

	decision, _ := r.Route(context.Background(), task, defaultProviders, nil)
	if decision.SelectedModel != "gemini-2.0-flash" {
		t.Errorf("default preference ignored: %s", decision.SelectedModel)
	}

	decision, _ = r.Route(context.Background(), task, defaultProviders, &Preferences{PreferredProvider: ProviderXAI})
	if decision.SelectedModel != "grok-beta" {
		t.Errorf("caller preference should override default: %s", decision.SelectedModel)
	}

	r.SetDefaultPreference("")
	decision, _ = r.Route(context.Background(), task, defaultProviders, nil)
	if decision.SelectedModel != "gpt-4o" {
		t.Errorf("cleared default preference still applied: %s", decision.SelectedModel)
	}
}

func TestRouter_RequirementNarrowing(t *testing.T) {
	tests := []struct {
		name        string
		task        TaskProfile
		available   []Provider
		wantModel   string
		wantAlts    []string
		wantRelaxed bool
	}{
		{
			name:      "tools exclude o1",
			task:      TaskProfile{Type: TaskRealtime, Complexity: ComplexityExpert, EstimatedTokens: 12000, ContextLength: 12000, RequiresTools: true, RequiresRealtime: true},
			available: []Provider{ProviderOpenAI},
			wantModel: "gpt-4o",
			wantAlts:  []string{"gpt-4o-mini"},
		},
		{
			name:      "vision excludes grok",
			task:      TaskProfile{Type: TaskMultimodal, Complexity: ComplexityModerate, EstimatedTokens: 600, ContextLength: 600, RequiresVision: true},
			available: []Provider{ProviderXAI, ProviderAnthropic},
			wantModel: "claude-3-haiku",
			wantAlts:  []string{"claude-3.5-sonnet"},
		},
		{
			name:        "vision unsatisfiable falls back",
			task:        TaskProfile{Type: TaskMultimodal, Complexity: ComplexityTrivial, EstimatedTokens: 10, ContextLength: 10, RequiresVision: true},
			available:   []Provider{ProviderXAI},
			wantModel:   "grok-beta",
			wantAlts:    []string{},
			wantRelaxed: true,
		},
		{
			name:        "vision and tools both satisfiable",
			task:        TaskProfile{Type: TaskChat, Complexity: ComplexityExpert, EstimatedTokens: 12000, ContextLength: 12000, RequiresVision: true, RequiresTools: true},
			available:   []Provider{ProviderOpenAI},
			wantModel:   "gpt-4o",
			wantAlts:    []string{"gpt-4o-mini"},
			wantRelaxed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t)
			decision, err := r.Route(context.Background(), &tt.task, tt.available, nil)
			if err != nil {
				t.Fatalf("Route() error = %v", err)
			}
			if decision.SelectedModel != tt.wantModel {
				t.Errorf("SelectedModel = %q, want %q", decision.SelectedModel, tt.wantModel)
			}
			if !reflect.DeepEqual(decision.Alternatives, tt.wantAlts) {
				t.Errorf("Alternatives = %v, want %v", decision.Alternatives, tt.wantAlts)
			}
			if decision.RequirementsRelaxed != tt.wantRelaxed {
				t.Errorf("RequirementsRelaxed = %v, want %v", decision.RequirementsRelaxed, tt.wantRelaxed)
			}
		})
	}
}

func TestRouter_NoCandidates(t *testing.T) {
	rec := &fakeRecorder{}
	r := newTestRouter(t, WithRecorder(rec))
	task := &TaskProfile{Type: TaskChat, Complexity: ComplexityTrivial}

	for _, available := range [][]Provider{nil, {ProviderLocal, ProviderCustom}} {
		_, err := r.Route(context.Background(), task, available, nil)
		if !errors.Is(err, ErrNoCandidates) {
			t.Fatalf("Route(%v) error = %v, want ErrNoCandidates", available, err)
		}
		var nc *NoCandidatesError
		if !errors.As(err, &nc) {
			t.Fatalf("error type = %T, want *NoCandidatesError", err)
		}
		if len(nc.CatalogProviders) != 4 {
			t.Errorf("CatalogProviders = %v", nc.CatalogProviders)
		}
	}

	if len(rec.failures) != 2 || rec.failures[0] != "no_candidates" {
		t.Errorf("recorded failures = %v", rec.failures)
	}
	if r.Stats().Errors != 2 {
		t.Errorf("Errors = %d, want 2", r.Stats().Errors)
	}
}

func TestRouter_InvalidInput(t *testing.T) {
	r := newTestRouter(t)

	if _, err := r.Route(context.Background(), nil, defaultProviders, nil); err == nil {
		t.Error("expected error for nil task")
	}
	bad := &TaskProfile{Type: "poetry", Complexity: ComplexityTrivial}
	if _, err := r.Route(context.Background(), bad, defaultProviders, nil); err == nil {
		t.Error("expected error for unknown task type")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	good := &TaskProfile{Type: TaskChat, Complexity: ComplexityTrivial}
	if _, err := r.Route(ctx, good, defaultProviders, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRouter_Deterministic(t *testing.T) {
	r := newTestRouter(t)
	task := &TaskProfile{Type: TaskCode, Complexity: ComplexitySimple, EstimatedTokens: 300, ContextLength: 300}
	prefs := &Preferences{PreferredProvider: ProviderOpenAI}

	first, err := r.Route(context.Background(), task, defaultProviders, prefs)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Route(context.Background(), task, defaultProviders, prefs)
			if err != nil {
				t.Errorf("Route() error = %v", err)
				return
			}
			if !reflect.DeepEqual(got, first) {
				t.Errorf("decision differs: %+v vs %+v", got, first)
			}
		}()
	}
	wg.Wait()

	stats := r.Stats()
	if stats.TotalRequests != 17 {
		t.Errorf("TotalRequests = %d, want 17", stats.TotalRequests)
	}
	if stats.RequestsPerProvider["openai"] != 17 {
		t.Errorf("RequestsPerProvider = %v", stats.RequestsPerProvider)
	}
}

func TestRouter_RecordsDecisions(t *testing.T) {
	rec := &fakeRecorder{}
	r := newTestRouter(t, WithRecorder(rec))
	task := &TaskProfile{Type: TaskMultimodal, Complexity: ComplexityTrivial, RequiresVision: true}

	if _, err := r.Route(context.Background(), task, []Provider{ProviderXAI}, nil); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	want := []recordedDecision{{provider: "xai", model: "grok-beta", taskType: "multimodal", score: 13, relaxed: true}}
	if !reflect.DeepEqual(rec.decisions, want) {
		t.Errorf("recorded = %+v, want %+v", rec.decisions, want)
	}
	if r.Stats().RelaxedCount != 1 {
		t.Errorf("RelaxedCount = %d, want 1", r.Stats().RelaxedCount)
	}
}

func TestNewRouter_NilCatalog(t *testing.T) {
	if _, err := NewRouter(nil); err == nil {
		t.Error("expected error for nil catalog")
	}
}
