package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"blackroad-os/carpool/pkg/processing/costs"
)

// maxAlternatives bounds the runner-up list in a Decision.
const maxAlternatives = 3

// Recorder receives routing outcomes, typically a metrics collector.
type Recorder interface {
	RecordRoutingDecision(provider, model, taskType string, score float64, relaxed bool)
	RecordRoutingFailure(reason string)
}

// Router builds routing decisions from a catalog. It is constructed once
// at startup and shared; Route is safe for concurrent use and never
// blocks on I/O.
type Router struct {
	catalog  *Catalog
	calc     *costs.Calculator
	stats    *AtomicRoutingStats
	recorder Recorder
	logger   *slog.Logger

	// defaultPreferred is applied when a caller passes no preference.
	defaultPreferred atomic.Value // Provider
}

// Option configures a Router.
type Option func(*Router)

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(rt *Router) { rt.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Router) {
		if l != nil {
			rt.logger = l
		}
	}
}

// WithDefaultPreference sets the provider preference used when a caller
// passes none.
func WithDefaultPreference(p Provider) Option {
	return func(rt *Router) { rt.defaultPreferred.Store(p) }
}

// NewRouter creates a router over catalog.
func NewRouter(catalog *Catalog, opts ...Option) (*Router, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	r := &Router{
		catalog: catalog,
		calc:    costs.NewCalculator(8),
		stats:   NewAtomicRoutingStats(),
		logger:  slog.Default().With("component", "routing"),
	}
	r.defaultPreferred.Store(Provider(""))
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Catalog returns the router's catalog.
func (r *Router) Catalog() *Catalog {
	return r.catalog
}

// SetDefaultPreference replaces the fallback provider preference. An empty
// provider clears it.
func (r *Router) SetDefaultPreference(p Provider) {
	r.defaultPreferred.Store(p)
}

// DefaultPreference returns the fallback provider preference.
func (r *Router) DefaultPreference() Provider {
	return r.defaultPreferred.Load().(Provider)
}

// Stats returns a snapshot of routing statistics.
func (r *Router) Stats() *RoutingStats {
	return r.stats.Snapshot()
}

type scored struct {
	entry CatalogEntry
	score float64
}

// Route selects a model for task among the catalog models of the available
// providers.
//
// Vision and tool requirements narrow the candidates; if narrowing leaves
// nothing, the full available set is scored instead and the decision is
// marked RequirementsRelaxed. Candidates are ordered by descending score
// with ties kept in catalog order. The winner becomes the decision and the
// next three become alternatives.
func (r *Router) Route(ctx context.Context, task *TaskProfile, available []Provider, prefs *Preferences) (*Decision, error) {
	r.stats.IncrementTotal()

	if err := ctx.Err(); err != nil {
		r.fail("canceled")
		return nil, err
	}
	if task == nil {
		r.fail("invalid_task")
		return nil, fmt.Errorf("task profile cannot be nil")
	}
	if err := task.Validate(); err != nil {
		r.fail("invalid_task")
		return nil, fmt.Errorf("invalid task profile: %w", err)
	}

	pool := r.catalog.ForProviders(available)
	if len(pool) == 0 {
		r.fail("no_candidates")
		return nil, &NoCandidatesError{
			AvailableProviders: append([]Provider(nil), available...),
			CatalogProviders:   r.catalog.ProviderSet(),
		}
	}

	candidates := pool
	if task.RequiresVision {
		candidates = filterEntries(candidates, func(mc ModelCapability) bool { return mc.SupportsVision })
	}
	if task.RequiresTools {
		candidates = filterEntries(candidates, func(mc ModelCapability) bool { return mc.SupportsFunctionCalling })
	}
	relaxed := false
	if len(candidates) == 0 {
		candidates = pool
		relaxed = true
	}

	prefs = r.effectivePreferences(prefs)

	ranked := make([]scored, len(candidates))
	for i, e := range candidates {
		ranked[i] = scored{entry: e, score: Score(task, e.Capability, prefs)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	winner := ranked[0]
	alternatives := make([]string, 0, maxAlternatives)
	for _, s := range ranked[1:] {
		if len(alternatives) == maxAlternatives {
			break
		}
		alternatives = append(alternatives, s.entry.Key)
	}

	mc := winner.entry.Capability
	decision := &Decision{
		SelectedModel:       winner.entry.Key,
		SelectedProvider:    mc.Provider,
		ModelID:             mc.ModelID,
		Rationale:           rationale(task, mc, winner.score),
		Alternatives:        alternatives,
		EstimatedCost:       r.calc.Estimate(task.EstimatedTokens, mc.CostPer1KTokens),
		Confidence:          winner.score,
		RequirementsRelaxed: relaxed,
	}

	r.stats.IncrementProvider(mc.Provider)
	r.stats.IncrementTaskType(task.Type)
	if relaxed {
		r.stats.IncrementRelaxed()
	}
	if prefs != nil && prefs.PreferredProvider == mc.Provider {
		r.stats.IncrementPreferenceMatch()
	}
	if r.recorder != nil {
		r.recorder.RecordRoutingDecision(string(mc.Provider), winner.entry.Key, string(task.Type), winner.score, relaxed)
	}

	r.logger.Debug("routing decision",
		"model", decision.SelectedModel,
		"provider", decision.SelectedProvider,
		"task_type", task.Type,
		"complexity", task.Complexity,
		"score", decision.Confidence,
		"candidates", len(candidates),
		"relaxed", relaxed,
	)

	return decision, nil
}

func (r *Router) effectivePreferences(prefs *Preferences) *Preferences {
	if prefs != nil && prefs.PreferredProvider != "" {
		return prefs
	}
	if def := r.DefaultPreference(); def != "" {
		return &Preferences{PreferredProvider: def}
	}
	return prefs
}

func (r *Router) fail(reason string) {
	r.stats.IncrementErrors()
	if r.recorder != nil {
		r.recorder.RecordRoutingFailure(reason)
	}
}

func filterEntries(entries []CatalogEntry, keep func(ModelCapability) bool) []CatalogEntry {
	var out []CatalogEntry
	for _, e := range entries {
		if keep(e.Capability) {
			out = append(out, e)
		}
	}
	return out
}

func rationale(task *TaskProfile, mc ModelCapability, score float64) string {
	return fmt.Sprintf("Selected %s for %s task with %s complexity. Model offers %s quality at %s speed, matching task requirements (score: %.1f).",
		mc.ModelID, task.Type, task.Complexity, mc.QualityTier, mc.SpeedTier, score)
}
