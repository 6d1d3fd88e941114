package auth

import (
	"errors"
	"strings"
	"testing"

	"blackroad-os/carpool/pkg/config"
)

func lookupFrom(env map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestNewValidator(t *testing.T) {
	tests := []struct {
		name    string
		keys    []config.APIKeyConfig
		env     map[string]string
		wantErr string
	}{
		{
			name: "inline and env keys",
			keys: []config.APIKeyConfig{
				{Name: "ci", Key: "sk-ci"},
				{Name: "ops", KeyEnv: "OPS_KEY"},
			},
			env: map[string]string{"OPS_KEY": "sk-ops"},
		},
		{
			name:    "unset env var",
			keys:    []config.APIKeyConfig{{Name: "ops", KeyEnv: "OPS_KEY"}},
			wantErr: "OPS_KEY is not set",
		},
		{
			name:    "empty value",
			keys:    []config.APIKeyConfig{{Name: "blank"}},
			wantErr: "has no value",
		},
		{
			name: "shared value",
			keys: []config.APIKeyConfig{
				{Name: "a", Key: "same"},
				{Name: "b", Key: "same"},
			},
			wantErr: "share the same value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewValidator(tt.keys, lookupFrom(tt.env))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("NewValidator() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewValidator() error = %v", err)
			}
			if v.Len() != len(tt.keys) {
				t.Errorf("Len() = %d, want %d", v.Len(), len(tt.keys))
			}
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v, err := NewValidator([]config.APIKeyConfig{
		{Name: "router", Key: "sk-route", Scopes: []string{"route"}},
		{Name: "admin", KeyEnv: "ADMIN_KEY"},
		{Name: "old", Key: "sk-old", Disabled: true},
	}, lookupFrom(map[string]string{"ADMIN_KEY": "sk-admin"}))
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	p, err := v.Validate("sk-route")
	if err != nil {
		t.Fatalf("Validate(sk-route) error = %v", err)
	}
	if p.Name != "router" || !p.Allows(ScopeRoute) || p.Allows(ScopeLedgerWrite) {
		t.Errorf("router principal = %+v", p)
	}

	p, err = v.Validate("sk-admin")
	if err != nil {
		t.Fatalf("Validate(sk-admin) error = %v", err)
	}
	for _, s := range AllScopes {
		if !p.Allows(s) {
			t.Errorf("key without scopes should allow %s", s)
		}
	}

	if _, err := v.Validate("sk-old"); !errors.Is(err, ErrKeyDisabled) {
		t.Errorf("disabled key error = %v, want ErrKeyDisabled", err)
	}
	if _, err := v.Validate("sk-nope"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("unknown key error = %v, want ErrInvalidKey", err)
	}
}
