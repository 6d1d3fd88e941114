package routing

import (
	"errors"
	"fmt"
	"strings"
)

// Common routing errors that can be checked with errors.Is().
var (
	// ErrNoCandidates is returned when no catalog model belongs to any of the
	// available providers.
	ErrNoCandidates = errors.New("no candidate models for available providers")

	// ErrEmptyTask is returned when the analyzer is given blank text.
	ErrEmptyTask = errors.New("task text is empty")

	// ErrInvalidCatalog is returned when a catalog cannot be built.
	ErrInvalidCatalog = errors.New("invalid capability catalog")
)

// NoCandidatesError is returned when routing has nothing to score. It is
// not retried; the caller must add a provider or fail the request.
type NoCandidatesError struct {
	// AvailableProviders contains the provider tags the caller offered.
	AvailableProviders []Provider

	// CatalogProviders contains the provider tags present in the catalog.
	CatalogProviders []Provider
}

// Error implements the error interface.
func (e *NoCandidatesError) Error() string {
	return fmt.Sprintf("no candidate models for available providers [%s] (catalog providers: %s)",
		joinProviders(e.AvailableProviders), joinProviders(e.CatalogProviders))
}

// Is implements error matching for errors.Is().
func (e *NoCandidatesError) Is(target error) bool {
	return target == ErrNoCandidates
}

// CatalogError describes why a catalog entry was rejected.
type CatalogError struct {
	// Key is the offending catalog key.
	Key string

	// Reason explains the rejection.
	Reason string
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	return fmt.Sprintf("invalid catalog entry %q: %s", e.Key, e.Reason)
}

// Is implements error matching for errors.Is().
func (e *CatalogError) Is(target error) bool {
	return target == ErrInvalidCatalog
}

func joinProviders(ps []Provider) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}
