package auth

import "errors"

// Scope names a group of API endpoints a key may call.
type Scope string

const (
	ScopeRoute       Scope = "route"
	ScopeLedgerRead  Scope = "ledger:read"
	ScopeLedgerWrite Scope = "ledger:write"
)

// AllScopes is granted to keys that list none.
var AllScopes = []Scope{ScopeRoute, ScopeLedgerRead, ScopeLedgerWrite}

// Principal is the caller identified by an API key.
type Principal struct {
	// Name is the configured key name. It never contains key material.
	Name   string
	Scopes []Scope
}

// Allows reports whether the principal was granted scope.
func (p *Principal) Allows(scope Scope) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

var (
	// ErrMissingKey is returned when no configured source carries a key.
	ErrMissingKey = errors.New("missing API key")
	// ErrInvalidKey is returned for keys that match no configured key.
	ErrInvalidKey = errors.New("invalid API key")
	// ErrKeyDisabled is returned for keys configured as disabled.
	ErrKeyDisabled = errors.New("API key disabled")
	// ErrForbidden is returned when a valid key lacks the endpoint's scope.
	ErrForbidden = errors.New("API key not permitted for this endpoint")
)
