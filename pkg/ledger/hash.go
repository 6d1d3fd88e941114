package ledger

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// GenesisHash is the previous-hash value of the first entry in a chain.
const GenesisHash = "GENESIS"

// TimestampLayout is the canonical form of CreatedAt inside the hash input.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// HashScheme names the digest used for an entry hash. Stored hashes carry
// the scheme as a prefix so a chain can be verified after the configured
// scheme changes.
type HashScheme string

const (
	SchemeSHA256 HashScheme = "ps-sha256"
	SchemeSHA512 HashScheme = "ps-sha512"
)

// ParseHashScheme converts a string into a HashScheme.
func ParseHashScheme(s string) (HashScheme, error) {
	switch HashScheme(s) {
	case SchemeSHA256, SchemeSHA512:
		return HashScheme(s), nil
	default:
		return "", fmt.Errorf("unknown hash scheme %q", s)
	}
}

// SchemeOf extracts the scheme prefix from a stored hash.
func SchemeOf(hash string) (HashScheme, error) {
	prefix, _, ok := strings.Cut(hash, ":")
	if !ok {
		return "", fmt.Errorf("hash %q has no scheme prefix", hash)
	}
	return ParseHashScheme(prefix)
}

// NormalizeTime truncates t to microseconds in UTC, the precision that
// survives the canonical encoding and storage round trips.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Canonicalize produces the byte sequence an entry's hash covers: a compact
// JSON object with sorted keys over prev, type, from, to, amount, currency,
// ts and meta. The amount is rendered with exactly scale decimal places.
// Identifiers, the idempotency key and the external reference are not
// covered.
func Canonicalize(e *Entry, scale int32) ([]byte, error) {
	meta, err := CanonicalMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{
		"prev":     e.PrevHash,
		"type":     string(e.Type),
		"from":     refOrNull(e.From),
		"to":       refOrNull(e.To),
		"amount":   e.Amount.StringFixed(scale),
		"currency": e.Currency,
		"ts":       NormalizeTime(e.CreatedAt).Format(TimestampLayout),
		"meta":     string(meta),
	}
	return encodeCompact(fields)
}

// CanonicalMetadata encodes metadata as compact JSON with sorted keys.
// Nil metadata encodes as an empty object.
func CanonicalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	out, err := encodeCompact(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return out, nil
}

// DecodeMetadata parses stored metadata, keeping numbers in their literal
// form so re-encoding reproduces the same bytes.
func DecodeMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var meta map[string]any
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil
	}
	return meta, nil
}

// ComputeHash returns "<scheme>:<hex digest>" of the entry's canonical form.
func ComputeHash(scheme HashScheme, e *Entry, scale int32) (string, error) {
	data, err := Canonicalize(e, scale)
	if err != nil {
		return "", err
	}
	var digest []byte
	switch scheme {
	case SchemeSHA256:
		sum := sha256.Sum256(data)
		digest = sum[:]
	case SchemeSHA512:
		sum := sha512.Sum512(data)
		digest = sum[:]
	default:
		return "", fmt.Errorf("unknown hash scheme %q", scheme)
	}
	return string(scheme) + ":" + hex.EncodeToString(digest), nil
}

func refOrNull(ref *EntityRef) string {
	if ref == nil {
		return "null"
	}
	return ref.String()
}

// encodeCompact marshals v without HTML escaping or a trailing newline.
// encoding/json already sorts map keys.
func encodeCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
