package auth

import (
	"context"
	"net/http"
	"strings"

	"blackroad-os/carpool/pkg/config"
)

// Authenticator extracts and validates API keys from requests.
type Authenticator struct {
	validator *Validator
	sources   []config.APIKeySourceConfig
}

// NewAuthenticator builds an Authenticator from the server auth settings.
func NewAuthenticator(cfg config.AuthConfig) (*Authenticator, error) {
	validator, err := NewValidator(cfg.Keys, nil)
	if err != nil {
		return nil, err
	}
	return &Authenticator{validator: validator, sources: cfg.Sources}, nil
}

// Authenticate returns the principal behind the request's API key.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	key, ok := a.extractKey(r)
	if !ok {
		return nil, ErrMissingKey
	}
	return a.validator.Validate(key)
}

// Require wraps next so that it only runs for principals holding scope.
// Rejections are handed to reject with one of the package errors.
func (a *Authenticator) Require(scope Scope, reject func(http.ResponseWriter, *http.Request, error), next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.Authenticate(r)
		if err != nil {
			reject(w, r, err)
			return
		}
		if !principal.Allows(scope) {
			reject(w, r, ErrForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// extractKey returns the first key found in the configured sources.
func (a *Authenticator) extractKey(r *http.Request) (string, bool) {
	for _, source := range a.sources {
		var value string
		switch source.Type {
		case "header":
			value = r.Header.Get(source.Name)
			if value != "" && source.Scheme != "" {
				prefix := source.Scheme + " "
				if len(value) <= len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
					continue
				}
				value = strings.TrimSpace(value[len(prefix):])
			}
		case "query":
			value = r.URL.Query().Get(source.Name)
		}
		if value != "" {
			return value, true
		}
	}
	return "", false
}

type contextKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok
}
