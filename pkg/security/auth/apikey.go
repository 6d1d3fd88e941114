package auth

import (
	"crypto/sha256"
	"fmt"
	"os"

	"blackroad-os/carpool/pkg/config"
)

type keyDigest [sha256.Size]byte

type keyEntry struct {
	principal *Principal
	disabled  bool
}

// Validator checks presented keys against the configured set. Keys are held
// only as SHA-256 digests.
type Validator struct {
	keys map[keyDigest]*keyEntry
}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(string) (string, bool)

// NewValidator builds a Validator from configured keys, resolving key_env
// references with lookup. A nil lookup uses os.LookupEnv.
func NewValidator(keys []config.APIKeyConfig, lookup LookupFunc) (*Validator, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	v := &Validator{keys: make(map[keyDigest]*keyEntry, len(keys))}
	for _, kc := range keys {
		value := kc.Key
		if kc.KeyEnv != "" {
			env, ok := lookup(kc.KeyEnv)
			if !ok || env == "" {
				return nil, fmt.Errorf("API key %q: environment variable %s is not set", kc.Name, kc.KeyEnv)
			}
			value = env
		}
		if value == "" {
			return nil, fmt.Errorf("API key %q has no value", kc.Name)
		}

		digest := sha256.Sum256([]byte(value))
		if existing, ok := v.keys[digest]; ok {
			return nil, fmt.Errorf("API keys %q and %q share the same value", existing.principal.Name, kc.Name)
		}

		scopes := AllScopes
		if len(kc.Scopes) > 0 {
			scopes = make([]Scope, len(kc.Scopes))
			for i, s := range kc.Scopes {
				scopes[i] = Scope(s)
			}
		}
		v.keys[digest] = &keyEntry{
			principal: &Principal{Name: kc.Name, Scopes: scopes},
			disabled:  kc.Disabled,
		}
	}
	return v, nil
}

// Validate returns the principal for key.
func (v *Validator) Validate(key string) (*Principal, error) {
	entry, ok := v.keys[sha256.Sum256([]byte(key))]
	if !ok {
		return nil, ErrInvalidKey
	}
	if entry.disabled {
		return nil, ErrKeyDisabled
	}
	return entry.principal, nil
}

// Len returns the number of configured keys.
func (v *Validator) Len() int {
	return len(v.keys)
}
