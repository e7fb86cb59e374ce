// ABOUTME: Slug generation for role identifiers
// ABOUTME: NFKD-folds accents away and keeps ASCII letters and digits joined by hyphens
package roles

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify returns a lowercase hyphenated slug, or "" when nothing usable remains
func Slugify(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	folder := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(folder, trimmed)
	if err != nil {
		folded = trimmed
	}

	var sb strings.Builder
	pendingHyphen := false
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingHyphen = false
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingHyphen = true
	}
	return sb.String()
}
