package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntryType is the closed set of ledger movements.
type EntryType string

const (
	EntryCreditGrant  EntryType = "credit_grant"
	EntryCreditBurn   EntryType = "credit_burn"
	EntryTransfer     EntryType = "transfer"
	EntryVerification EntryType = "verification"
	EntryReward       EntryType = "reward"
	EntryPayout       EntryType = "payout"
)

// EntryTypes lists every entry type.
var EntryTypes = []EntryType{
	EntryCreditGrant, EntryCreditBurn, EntryTransfer, EntryVerification, EntryReward, EntryPayout,
}

// ParseEntryType converts a string into an EntryType.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(s)
	switch t {
	case EntryCreditGrant, EntryCreditBurn, EntryTransfer, EntryVerification, EntryReward, EntryPayout:
		return t, nil
	default:
		return "", fmt.Errorf("unknown entry type %q", s)
	}
}

// EntityType is the closed set of balance holders.
type EntityType string

const (
	EntityUser   EntityType = "user"
	EntityOrg    EntityType = "org"
	EntityAgent  EntityType = "agent"
	EntitySystem EntityType = "system"
)

// ParseEntityType converts a string into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	switch t {
	case EntityUser, EntityOrg, EntityAgent, EntitySystem:
		return t, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", s)
	}
}

// EntityRef is a weak reference to an identity owned elsewhere. The ledger
// never checks that the entity exists.
type EntityRef struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id"`
}

// String renders the reference as "type:id".
func (r EntityRef) String() string {
	return string(r.Type) + ":" + r.ID
}

// Validate checks the type tag and that the id is non-empty.
func (r EntityRef) Validate() error {
	if _, err := ParseEntityType(string(r.Type)); err != nil {
		return err
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("entity id is required")
	}
	return nil
}

// ParseEntityRef parses "type:id".
func ParseEntityRef(s string) (EntityRef, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok {
		return EntityRef{}, fmt.Errorf("entity reference %q must be type:id", s)
	}
	ref := EntityRef{Type: EntityType(typ), ID: id}
	if err := ref.Validate(); err != nil {
		return EntityRef{}, fmt.Errorf("entity reference %q: %w", s, err)
	}
	return ref, nil
}

// Entry is one immutable, hash-linked ledger record. Entries are created
// only by the chain writer.
type Entry struct {
	Sequence       int64           `json:"sequence"`
	ID             string          `json:"id"`
	Type           EntryType       `json:"type"`
	From           *EntityRef      `json:"from,omitempty"`
	To             *EntityRef      `json:"to,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	// ExternalRef is an opaque payment processor reference. It is stored
	// but not part of the hash.
	ExternalRef string         `json:"external_ref,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	PrevHash    string         `json:"prev_hash"`
	Hash        string         `json:"hash"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Touches reports whether ref appears on either side of the entry.
func (e *Entry) Touches(ref EntityRef) bool {
	return (e.From != nil && *e.From == ref) || (e.To != nil && *e.To == ref)
}

// BalanceKey identifies one running balance.
type BalanceKey struct {
	Entity   EntityRef
	Currency string
}

// String renders the key as "type:id/currency".
func (k BalanceKey) String() string {
	return k.Entity.String() + "/" + k.Currency
}

// Balance is a materialized running total.
type Balance struct {
	Entity    EntityRef       `json:"entity"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Key returns the balance's key.
func (b Balance) Key() BalanceKey {
	return BalanceKey{Entity: b.Entity, Currency: b.Currency}
}

// Delta is a signed change to one balance.
type Delta struct {
	Key    BalanceKey
	Amount decimal.Decimal
}

// DeltasFor returns the balance changes an entry causes: the debit of
// From followed by the credit of To. Zero amounts produce no deltas.
func DeltasFor(e *Entry) []Delta {
	if e.Amount.IsZero() {
		return nil
	}
	var out []Delta
	if e.From != nil {
		out = append(out, Delta{Key: BalanceKey{Entity: *e.From, Currency: e.Currency}, Amount: e.Amount.Neg()})
	}
	if e.To != nil {
		out = append(out, Delta{Key: BalanceKey{Entity: *e.To, Currency: e.Currency}, Amount: e.Amount})
	}
	return out
}

// DefaultListLimit is used when an EntryFilter has no limit.
const DefaultListLimit = 50

// EntryFilter selects entries for listing. Results are newest first.
type EntryFilter struct {
	// Entity matches entries where it appears as From or To.
	Entity *EntityRef

	// Type restricts results to one entry type.
	Type EntryType

	// Limit caps the result size. Zero means DefaultListLimit.
	Limit int

	// Offset skips that many matching entries.
	Offset int
}

// Normalize applies the default limit and clamps negative values.
func (f EntryFilter) Normalize() EntryFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches reports whether e satisfies the entity and type conditions.
func (f EntryFilter) Matches(e *Entry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Entity != nil && !e.Touches(*f.Entity) {
		return false
	}
	return true
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	if e.From != nil {
		from := *e.From
		out.From = &from
	}
	if e.To != nil {
		to := *e.To
		out.To = &to
	}
	if e.Metadata != nil {
		out.Metadata = cloneValue(e.Metadata).(map[string]any)
	}
	return &out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}
