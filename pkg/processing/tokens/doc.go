// Package tokens provides token estimation for routing.
//
// The task analyzer needs a length estimate before any model is chosen, so
// the estimator works from text alone. Two implementations exist:
//
//   - TiktokenEstimator counts BPE tokens with an embedded vocabulary
//     (cl100k_base by default). The analyzer's complexity thresholds are
//     expressed in these tokens.
//   - SimpleEstimator divides the rune count by a characters-per-token ratio
//     (4.0 by default, configurable per model family) and rounds to the
//     nearest integer.
//
// New picks one from configuration:
//
//	est, err := tokens.New(&cfg.Processing.Tokens)
//	n, err := est.EstimateTexts([]string{text, prior1, prior2}, "")
//
// Both are deterministic.
package tokens
