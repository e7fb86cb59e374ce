// ABOUTME: Recovers reply suggestions from free-form model output
// ABOUTME: Falls back to persona-aware templates when too few usable lines survive
package core

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/harper/companion/internal/models"
)

// DefaultSuggestionCount is how many suggestions a caller gets by default
const DefaultSuggestionCount = 3

const (
	maxExtractDepth     = 6
	maxQuotedLen        = 200
	maxFallbackAttempts = 12
	maxShortNameRunes   = 6
)

var (
	fencePattern  = regexp.MustCompile("```[A-Za-z0-9_-]*")
	quotedPattern = regexp.MustCompile(`"((?:[^"\\\r\n]|\\.){1,200})"`)
	listMarker    = regexp.MustCompile(`^\s*(?:[-*•\x{FFFD}]|\d+[.)、]|[（(]?\d+[）)])\s*`)
	textKeys      = []string{"text", "value", "message", "content", "suggestion", "output"}
)

// PersonaHints carries what fallback generation needs to know about the companion
type PersonaHints struct {
	Name    string
	Persona string
	Summary string
	Tags    []string
}

// PersonaHintsFrom reads hints off a conversation record
func PersonaHintsFrom(conv *models.Conversation) PersonaHints {
	if conv == nil {
		return PersonaHints{}
	}
	return PersonaHints{Name: conv.AIName, Persona: conv.AIPersona, Summary: conv.Summary, Tags: conv.Tags}
}

// ExtractSuggestions parses up to limit suggestions out of raw model output
func ExtractSuggestions(raw string, limit int) []string {
	if limit <= 0 {
		limit = DefaultSuggestionCount
	}
	return sanitizeSuggestions(extractCandidates(raw), nil, limit)
}

// RecoverSuggestions is ExtractSuggestions topped up from persona templates
func RecoverSuggestions(raw string, hints PersonaHints, limit int) []string {
	if limit <= 0 {
		limit = DefaultSuggestionCount
	}
	out := ExtractSuggestions(raw, limit)
	if len(out) >= limit {
		return out
	}
	return backfillSuggestions(out, hints, limit)
}

func extractCandidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if value, ok := parseJSON(trimmed); ok {
		return textsFrom(value)
	}

	stripped := strings.TrimSpace(strings.ReplaceAll(fencePattern.ReplaceAllString(trimmed, ""), "```", ""))
	if value, ok := parseJSON(stripped); ok {
		if texts := textsFrom(value); len(texts) > 0 {
			return texts
		}
	}
	if span := bracketedSpan(stripped); span != "" {
		if value, ok := parseJSON(span); ok {
			if texts := textsFrom(value); len(texts) > 0 {
				return texts
			}
		}
	}

	if quoted := quotedStrings(stripped); len(quoted) > 0 {
		return quoted
	}
	return lines(stripped)
}

func parseJSON(s string) (any, bool) {
	var value any
	if err := json.Unmarshal([]byte(s), &value); err != nil {
		return nil, false
	}
	return value, true
}

// bracketedSpan returns the outermost [...] (or {...}) span of s, if any
func bracketedSpan(s string) string {
	for _, pair := range [][2]string{{"[", "]"}, {"{", "}"}} {
		start := strings.Index(s, pair[0])
		end := strings.LastIndex(s, pair[1])
		if start >= 0 && end > start {
			return s[start : end+1]
		}
	}
	return ""
}

func textsFrom(value any) []string {
	var entries []any
	switch v := value.(type) {
	case []any:
		entries = v
	case map[string]any:
		if list, ok := v["suggestions"].([]any); ok {
			entries = list
		} else {
			entries = []any{v}
		}
	case string:
		entries = []any{v}
	}

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if text := extractText(entry, 0); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// extractText finds the first usable string in a loosely-shaped entry
func extractText(value any, depth int) string {
	if depth > maxExtractDepth {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		for _, item := range v {
			if text := extractText(item, depth+1); text != "" {
				return text
			}
		}
	case map[string]any:
		for _, key := range textKeys {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		for _, key := range textKeys {
			switch nested := v[key].(type) {
			case map[string]any, []any:
				if text := extractText(nested, depth+1); text != "" {
					return text
				}
			}
		}

		return shallowText(v, 1)
	}
	return ""
}

// shallowText scans the fields outside textKeys in sorted order: direct strings
// first, then up to nesting more levels of objects and lists
func shallowText(v map[string]any, nesting int) string {
	others := make([]string, 0, len(v))
	for key := range v {
		if !isTextKey(key) {
			others = append(others, key)
		}
	}
	sort.Strings(others)
	for _, key := range others {
		if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	if nesting <= 0 {
		return ""
	}
	for _, key := range others {
		switch nested := v[key].(type) {
		case map[string]any:
			for _, k := range textKeys {
				if s, ok := nested[k].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
			if text := shallowText(nested, nesting-1); text != "" {
				return text
			}
		case []any:
			for _, item := range nested {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}

func isTextKey(key string) bool {
	for _, k := range textKeys {
		if k == key {
			return true
		}
	}
	return false
}

func quotedStrings(s string) []string {
	matches := quotedPattern.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		var decoded string
		if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &decoded); err != nil {
			decoded = m[1]
		}
		if len([]rune(decoded)) > maxQuotedLen {
			continue
		}
		out = append(out, decoded)
	}
	return out
}

func lines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimFunc(listMarker.ReplaceAllString(line, ""), isEdgeNoise)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// isEdgeNoise reports runes trimmed from both ends of a recovered line
func isEdgeNoise(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || r == '`' || r == '\uFFFD'
}

// sanitizeSuggestions trims, strips one pair of wrapping quotes, and keeps
// case-insensitively unique entries until limit is reached
func sanitizeSuggestions(candidates, existing []string, limit int) []string {
	out := append([]string{}, existing...)
	seen := make(map[string]struct{}, len(out)+len(candidates))
	for _, s := range out {
		seen[strings.ToLower(s)] = struct{}{}
	}
	for _, candidate := range candidates {
		if len(out) >= limit {
			break
		}
		text := stripQuotes(strings.TrimSpace(candidate))
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, text)
	}
	return out
}

func stripQuotes(s string) string {
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, `"`)
	s = strings.TrimSuffix(s, "'")
	s = strings.TrimPrefix(s, "「")
	s = strings.TrimSuffix(s, "」")
	return strings.TrimSpace(s)
}

type personaCluster struct {
	keywords  []string
	templates []string
}

var personaClusters = []personaCluster{
	{
		keywords: []string{"dj", "音樂", "派對", "夜店", "混音", "music", "party", "club"},
		templates: []string{
			"{name}，今晚想放哪首歌給我聽？",
			"{name}，帶我去你最愛的派對吧！",
			"{name}，幫我的心情混一首歌好嗎？",
			"{name}，下一段我可以點歌嗎？",
		},
	},
	{
		keywords: []string{"療癒", "聆聽", "陪伴", "安撫", "溫柔"},
		templates: []string{
			"{name}，今天有點累，可以陪我聊聊嗎？",
			"{name}，謝謝你一直聽我說話。",
			"{name}，可以給我一點勇氣嗎？",
		},
	},
	{
		keywords: []string{"冒險", "探索", "旅行"},
		templates: []string{
			"{name}，下一站我們去哪裡探險？",
			"{name}，說說你最難忘的旅程吧！",
			"{name}，帶我一起去看星星好嗎？",
		},
	},
	{
		keywords: []string{"導師", "學習", "指導", "mentor", "coach", "教練"},
		templates: []string{
			"{name}，可以教我一個新技巧嗎？",
			"{name}，我該從哪裡開始學起？",
			"{name}，幫我想想下一步該怎麼做？",
		},
	},
}

var genericTemplates = []string{
	"{name}，今天過得怎麼樣？",
	"{name}，想多聽聽你的故事！",
	"{name}，我們聊點輕鬆的吧？",
	"{name}，你現在在想什麼呢？",
}

func backfillSuggestions(existing []string, hints PersonaHints, limit int) []string {
	name := ShortDisplayName(hints.Name)
	if name == "" {
		name = ShortDisplayName(DefaultAIName)
	}

	templates := append(clusterTemplates(hints), genericTemplates...)
	candidates := make([]string, 0, maxFallbackAttempts)
	for i := 0; i < maxFallbackAttempts && i < len(templates); i++ {
		candidates = append(candidates, strings.ReplaceAll(templates[i], "{name}", name))
	}
	return sanitizeSuggestions(candidates, existing, limit)
}

func clusterTemplates(hints PersonaHints) []string {
	haystack := strings.ToLower(strings.Join(append([]string{hints.Name, hints.Persona, hints.Summary}, hints.Tags...), " "))
	for _, cluster := range personaClusters {
		for _, keyword := range cluster.keywords {
			if strings.Contains(haystack, keyword) {
				return append([]string{}, cluster.templates...)
			}
		}
	}
	return nil
}

// ShortDisplayName is the last delimiter-separated segment of name, at most six runes
func ShortDisplayName(name string) string {
	segments := strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	if len(segments) == 0 {
		return ""
	}
	last := []rune(segments[len(segments)-1])
	if len(last) > maxShortNameRunes {
		last = last[:maxShortNameRunes]
	}
	return string(last)
}
