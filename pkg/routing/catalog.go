package routing

import (
	"fmt"

	"blackroad-os/carpool/pkg/config"
)

// CatalogEntry pairs a catalog key with its capability.
type CatalogEntry struct {
	Key        string
	Capability ModelCapability
}

// Catalog is the read-only table of known models. Iteration order is the
// order entries were supplied in, and score ties resolve in that order.
type Catalog struct {
	entries []CatalogEntry
	index   map[string]int
}

// NewCatalog validates entries and builds an immutable catalog.
func NewCatalog(entries []CatalogEntry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrInvalidCatalog)
	}

	c := &Catalog{
		entries: make([]CatalogEntry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, err
		}
		if _, dup := c.index[e.Key]; dup {
			return nil, &CatalogError{Key: e.Key, Reason: "duplicate key"}
		}
		c.index[e.Key] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

func validateEntry(e CatalogEntry) error {
	if e.Key == "" {
		return &CatalogError{Key: e.Key, Reason: "key is required"}
	}
	mc := e.Capability
	if _, err := ParseProvider(string(mc.Provider)); err != nil {
		return &CatalogError{Key: e.Key, Reason: err.Error()}
	}
	if mc.ModelID == "" {
		return &CatalogError{Key: e.Key, Reason: "model id is required"}
	}
	if mc.ContextWindow <= 0 {
		return &CatalogError{Key: e.Key, Reason: "context window must be positive"}
	}
	if mc.CostPer1KTokens < 0 {
		return &CatalogError{Key: e.Key, Reason: "cost must be non-negative"}
	}
	if _, err := ParseSpeedTier(string(mc.SpeedTier)); err != nil {
		return &CatalogError{Key: e.Key, Reason: err.Error()}
	}
	if _, err := ParseQualityTier(string(mc.QualityTier)); err != nil {
		return &CatalogError{Key: e.Key, Reason: err.Error()}
	}
	return nil
}

// DefaultCatalog returns the built-in seven-model catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultEntries())
	if err != nil {
		panic(fmt.Sprintf("routing: built-in catalog is invalid: %v", err))
	}
	return c
}

func defaultEntries() []CatalogEntry {
	return []CatalogEntry{
		{Key: "gpt-4o", Capability: ModelCapability{
			Provider: ProviderOpenAI, ModelID: "gpt-4o", ContextWindow: 128000,
			SupportsVision: true, SupportsFunctionCalling: true,
			CostPer1KTokens: 0.005, SpeedTier: SpeedFast, QualityTier: QualityExcellent,
		}},
		{Key: "gpt-4o-mini", Capability: ModelCapability{
			Provider: ProviderOpenAI, ModelID: "gpt-4o-mini", ContextWindow: 128000,
			SupportsVision: true, SupportsFunctionCalling: true,
			CostPer1KTokens: 0.00015, SpeedTier: SpeedFast, QualityTier: QualityGood,
		}},
		{Key: "o1", Capability: ModelCapability{
			Provider: ProviderOpenAI, ModelID: "o1", ContextWindow: 200000,
			CostPer1KTokens: 0.015, SpeedTier: SpeedSlow, QualityTier: QualityExpert,
		}},
		{Key: "claude-3.5-sonnet", Capability: ModelCapability{
			Provider: ProviderAnthropic, ModelID: "claude-3-5-sonnet-20241022", ContextWindow: 200000,
			SupportsVision: true, SupportsFunctionCalling: true,
			CostPer1KTokens: 0.003, SpeedTier: SpeedMedium, QualityTier: QualityExcellent,
		}},
		{Key: "claude-3-haiku", Capability: ModelCapability{
			Provider: ProviderAnthropic, ModelID: "claude-3-haiku-20240307", ContextWindow: 200000,
			SupportsVision: true, SupportsFunctionCalling: true,
			CostPer1KTokens: 0.00025, SpeedTier: SpeedFast, QualityTier: QualityGood,
		}},
		{Key: "gemini-2.0-flash", Capability: ModelCapability{
			Provider: ProviderGoogle, ModelID: "gemini-2.0-flash-exp", ContextWindow: 1000000,
			SupportsVision: true, SupportsFunctionCalling: true,
			CostPer1KTokens: 0.0001, SpeedTier: SpeedFast, QualityTier: QualityExcellent,
		}},
		{Key: "grok-beta", Capability: ModelCapability{
			Provider: ProviderXAI, ModelID: "grok-beta", ContextWindow: 128000,
			SupportsFunctionCalling: true,
			CostPer1KTokens: 0.005, SpeedTier: SpeedMedium, QualityTier: QualityGood,
		}},
	}
}

// CatalogFromConfig builds a catalog from configuration. An empty list
// yields the built-in catalog.
func CatalogFromConfig(cfg *config.RoutingConfig) (*Catalog, error) {
	if cfg == nil || len(cfg.Catalog) == 0 {
		return DefaultCatalog(), nil
	}

	entries := make([]CatalogEntry, 0, len(cfg.Catalog))
	for _, ec := range cfg.Catalog {
		entries = append(entries, CatalogEntry{
			Key: ec.Key,
			Capability: ModelCapability{
				Provider:                Provider(ec.Provider),
				ModelID:                 ec.ModelID,
				ContextWindow:           ec.ContextWindow,
				SupportsVision:          ec.SupportsVision,
				SupportsFunctionCalling: ec.SupportsFunctionCalling,
				CostPer1KTokens:         ec.CostPer1KTokens,
				SpeedTier:               SpeedTier(ec.SpeedTier),
				QualityTier:             QualityTier(ec.QualityTier),
			},
		})
	}
	return NewCatalog(entries)
}

// Entries returns the catalog in iteration order. The slice is a copy.
func (c *Catalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Capabilities returns a key → capability map.
func (c *Catalog) Capabilities() map[string]ModelCapability {
	out := make(map[string]ModelCapability, len(c.entries))
	for _, e := range c.entries {
		out[e.Key] = e.Capability
	}
	return out
}

// Lookup returns the capability for key.
func (c *Catalog) Lookup(key string) (ModelCapability, bool) {
	i, ok := c.index[key]
	if !ok {
		return ModelCapability{}, false
	}
	return c.entries[i].Capability, true
}

// ForProviders returns the entries whose provider is in providers, in
// catalog order.
func (c *Catalog) ForProviders(providers []Provider) []CatalogEntry {
	allowed := make(map[Provider]bool, len(providers))
	for _, p := range providers {
		allowed[p] = true
	}
	var out []CatalogEntry
	for _, e := range c.entries {
		if allowed[e.Capability.Provider] {
			out = append(out, e)
		}
	}
	return out
}

// ProviderSet returns the distinct providers present, in first-seen order.
func (c *Catalog) ProviderSet() []Provider {
	seen := make(map[Provider]bool)
	var out []Provider
	for _, e := range c.entries {
		if !seen[e.Capability.Provider] {
			seen[e.Capability.Provider] = true
			out = append(out, e.Capability.Provider)
		}
	}
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}
