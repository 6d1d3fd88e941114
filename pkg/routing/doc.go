// Package routing decides which backend model should serve a task.
//
// The package has four parts:
//
//   - Catalog: the immutable table of model capabilities, built once at
//     startup from DefaultCatalog or configuration.
//   - Analyzer: classifies task text into a TaskProfile (type, complexity,
//     token estimate, vision and tool needs).
//   - Score: a pure function rating one capability against one profile.
//   - Router: filters the catalog to the caller's providers, scores every
//     candidate and returns a Decision with up to three alternatives.
//
// Routing only describes providers. It never calls them.
//
// # Usage
//
//	router, err := routing.NewRouter(routing.DefaultCatalog(), routing.WithRecorder(collector))
//	profile, err := routing.NewAnalyzer(estimator).Analyze("debug this function", nil)
//	decision, err := router.Route(ctx, profile, []routing.Provider{routing.ProviderOpenAI}, nil)
//
// Route returns a *NoCandidatesError (matching ErrNoCandidates) when none of
// the available providers has a catalog entry.
package routing
