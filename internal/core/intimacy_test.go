// ABOUTME: Tests for intimacy level and label resolution
// ABOUTME: Covers canonical regeneration, corruption, legacy prefixes and free-form labels
package core

import (
	"fmt"
	"math"
	"testing"

	"github.com/harper/companion/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeIntimacyLevel(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{float64(3), 3},
		{3.9, 3},
		{7, 7},
		{0.5, 1},
		{float64(0), 1},
		{-4.0, 1},
		{math.NaN(), 1},
		{math.Inf(1), 1},
		{"5", 1},
		{nil, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIntimacyLevel(tt.in))
		})
	}
}

func TestResolveIntimacy_MismatchOrCorruptIsCanonical(t *testing.T) {
	for level := 1; level <= 30; level++ {
		canonical := IntimacyPrefix + fmt.Sprintf(" %d", level)
		bad := []any{
			IntimacyPrefix + fmt.Sprintf(" %d", level+1),
			"親密等級" + fmt.Sprintf("%d 以上", level+5),
			"親密�等級 " + fmt.Sprint(level),
			fmt.Sprintf("level %d �", level),
			"   ",
			42,
			nil,
		}
		for _, label := range bad {
			got := ResolveIntimacy(float64(level), label)
			assert.Equal(t, models.Intimacy{Level: level, Label: canonical}, got, "label %q", label)
		}
	}
}

func TestResolveIntimacy_FreeFormPassThrough(t *testing.T) {
	labels := []string{"摯友", "best friends forever", "Level up soon", "等級很高"}
	for _, label := range labels {
		got := ResolveIntimacy(float64(4), "  "+label+" ")
		assert.Equal(t, label, got.Label)
		assert.Equal(t, 4, got.Level)
	}
}

func TestResolveIntimacy_MatchingLabelKeptVerbatim(t *testing.T) {
	got := ResolveIntimacy(float64(2), "親密度等級 2 ❤")
	assert.Equal(t, "親密度等級 2 ❤", got.Label)

	legacy := ResolveIntimacy(float64(2), "親密等級2")
	assert.Equal(t, "親密等級2", legacy.Label)
}

func TestResolveIntimacy_HugeNumberRegenerates(t *testing.T) {
	got := ResolveIntimacy(float64(1), "親密度等級 99999999999999999999999")
	assert.Equal(t, IntimacyLabel(1), got.Label)
}

func TestIntimacyFromDocument(t *testing.T) {
	got := intimacyFromDocument(map[string]any{
		"intimacy":      map[string]any{"level": float64(3), "label": "old"},
		"intimacyLabel": "親密度等級 3",
	})
	assert.Equal(t, models.Intimacy{Level: 3, Label: "親密度等級 3"}, got)

	got = intimacyFromDocument(map[string]any{"intimacy": map[string]any{"level": float64(2), "label": "親密度等級 5"}})
	assert.Equal(t, models.Intimacy{Level: 2, Label: "親密度等級 2"}, got)

	got = intimacyFromDocument(map[string]any{})
	assert.Equal(t, models.Intimacy{Level: 1, Label: "親密度等級 1"}, got)
}
