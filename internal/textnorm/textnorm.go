// ABOUTME: Trim/bound/dedupe primitives for scalar and list fields
// ABOUTME: Best-effort readers never fail; strict list validation reports the field name
package textnorm

import (
	"strings"

	"github.com/harper/companion/internal/apperr"
)

// ListOptions bounds DedupeList output. Zero MaxItems/MaxLen mean unbounded.
type ListOptions struct {
	MaxItems   int
	MaxLen     int
	AllowEmpty bool
}

// TrimOrEmpty returns value trimmed and truncated to maxLen runes.
// ok is false when value is not a string or is blank.
func TrimOrEmpty(value any, maxLen int) (string, bool) {
	s, isString := value.(string)
	if !isString {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return Truncate(s, maxLen), true
}

// String is TrimOrEmpty without bounds or the ok flag.
func String(value any) string {
	s, _ := TrimOrEmpty(value, 0)
	return s
}

// FirstNonEmpty returns the first value that trims to a non-empty string.
func FirstNonEmpty(values ...any) string {
	for _, v := range values {
		if s, ok := TrimOrEmpty(v, 0); ok {
			return s
		}
	}
	return ""
}

// Truncate cuts s to at most maxLen runes. maxLen <= 0 leaves s untouched.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}

// DedupeList normalizes values (a []string or []any) to trimmed, non-empty,
// exact-match unique strings in first-seen order.
func DedupeList(field string, values any, opts ListOptions) ([]string, error) {
	out := []string{}
	seen := make(map[string]struct{})
	for _, entry := range toSlice(values) {
		item, ok := TrimOrEmpty(entry, opts.MaxLen)
		if !ok {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
		if opts.MaxItems > 0 && len(out) >= opts.MaxItems {
			break
		}
	}

	if !opts.AllowEmpty && len(out) == 0 {
		return nil, apperr.Validation(field, "%s requires at least one item", field)
	}
	return out, nil
}

// StringList is the best-effort DedupeList used on reconciliation paths.
func StringList(values any) []string {
	out, _ := DedupeList("", values, ListOptions{AllowEmpty: true})
	return out
}

func toSlice(values any) []any {
	switch v := values.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}
