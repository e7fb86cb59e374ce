// ABOUTME: IntimacyLabelResolver derives and repairs the relationship-level label
// ABOUTME: Numeric labels must agree with the level; free-form labels pass through
package core

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/harper/companion/internal/models"
)

const (
	// IntimacyPrefix starts every generated label
	IntimacyPrefix       = "親密度等級"
	legacyIntimacyPrefix = "親密等級"
	DefaultIntimacyLevel = 1
)

// U+FFFD shows up where stored text was decoded with the wrong charset
const corruptionMarker = "�"

var intimacyLabelPattern = regexp.MustCompile(`^(?:` + IntimacyPrefix + `|` + legacyIntimacyPrefix + `)\s*(\d+)`)

// IntimacyLabel returns the canonical label for level
func IntimacyLabel(level int) string {
	if level < 1 {
		level = DefaultIntimacyLevel
	}
	return IntimacyPrefix + " " + strconv.Itoa(level)
}

// NormalizeIntimacyLevel truncates a finite positive number; anything else is the default level
func NormalizeIntimacyLevel(raw any) int {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return DefaultIntimacyLevel
		}
		f = parsed
	default:
		return DefaultIntimacyLevel
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f > math.MaxInt32 {
		return DefaultIntimacyLevel
	}
	level := int(math.Trunc(f))
	if level < 1 {
		return DefaultIntimacyLevel
	}
	return level
}

// ResolveIntimacy normalizes a stored level and label pair. It never fails.
func ResolveIntimacy(rawLevel, rawLabel any) models.Intimacy {
	level := NormalizeIntimacyLevel(rawLevel)
	canonical := IntimacyLabel(level)

	label, ok := rawLabel.(string)
	if !ok {
		return models.Intimacy{Level: level, Label: canonical}
	}
	label = strings.TrimSpace(label)
	if label == "" || strings.Contains(label, corruptionMarker) {
		return models.Intimacy{Level: level, Label: canonical}
	}

	if match := intimacyLabelPattern.FindStringSubmatch(label); match != nil {
		n, err := strconv.Atoi(match[1])
		if err != nil || n != level {
			return models.Intimacy{Level: level, Label: canonical}
		}
	}
	return models.Intimacy{Level: level, Label: label}
}

// intimacyFromDocument reads the intimacy object plus the top-level mirror label.
// The top-level intimacyLabel wins when it is a string.
func intimacyFromDocument(data map[string]any) models.Intimacy {
	var rawLevel, rawLabel any
	if obj, ok := data["intimacy"].(map[string]any); ok {
		rawLevel = obj["level"]
		rawLabel = obj["label"]
	}
	if top, ok := data["intimacyLabel"].(string); ok {
		rawLabel = top
	}
	return ResolveIntimacy(rawLevel, rawLabel)
}
