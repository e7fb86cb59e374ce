// ABOUTME: Tests for tier normalization and model selection
// ABOUTME: Covers aliases, fuzzy inference, numeric levels and claim precedence
package membership

import (
	"testing"

	"github.com/harper/companion/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeTier(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   Tier
		wantOK bool
	}{
		{"canonical", "vip", TierVIP, true},
		{"canonical with underscore", "basic_plus", TierBasicPlus, true},
		{"mixed case spaced", "  VIP Plus ", TierVIPPlus, true},
		{"alias", "premium", TierVIP, true},
		{"localized alias", "訪客", TierVisitor, true},
		{"localized plus", "尊榮plus", TierVIPPlus, true},
		{"fuzzy vip gold", "vip-gold-annual", TierVIPPlus, true},
		{"fuzzy member coin", "member_coin_pack", TierBasicPlus, true},
		{"fuzzy standard", "standard-monthly", TierBasic, true},
		{"fuzzy free", "free_trial_7d", TierVisitor, true},
		{"numeric 0", float64(0), TierVisitor, true},
		{"numeric 2", 2, TierVIP, true},
		{"numeric 3", int64(3), TierVIPPlus, true},
		{"numeric clamps negative", -5.0, TierVisitor, true},
		{"numeric 4 unmapped", 4.0, "", false},
		{"unknown", "platypus", "", false},
		{"empty", "  ", "", false},
		{"nil", nil, "", false},
		{"map", map[string]any{"tier": "vip"}, "", false},
		{"bool", true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeTier(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTierFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]any
		want   Tier
		wantOK bool
	}{
		{"direct key", map[string]any{"plan": "pro"}, TierVIP, true},
		{"direct key order", map[string]any{"tier": "basic", "membershipTier": "vip_plus"}, TierVIPPlus, true},
		{"nested", map[string]any{"entitlements": map[string]any{"ai": map[string]any{"tier": "silver"}}}, TierBasicPlus, true},
		{"roles array", map[string]any{"roles": []any{"admin", "vip"}}, TierVIP, true},
		{"entitlements array of objects", map[string]any{"entitlements": []any{map[string]any{"name": "gold"}}}, TierVIPPlus, true},
		{"nothing", map[string]any{"email": "a@b"}, "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TierFromClaims(tt.claims)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolverSelect(t *testing.T) {
	r := NewResolver(map[Tier]string{TierVIP: "  gpt-vip-custom "})
	conv := &models.Conversation{MembershipTier: "basic"}

	sel := r.Select(Input{ExplicitTier: "vip", Claims: map[string]any{"tier": "basic"}})
	assert.Equal(t, Selection{Tier: TierVIP, Model: "gpt-vip-custom", Source: SourceExplicit}, sel)

	sel = r.Select(Input{Claims: map[string]any{"tier": "vip_plus"}, Conversation: conv})
	assert.Equal(t, Selection{Tier: TierVIPPlus, Model: DefaultModels[TierVIPPlus], Source: SourceClaims}, sel)

	sel = r.Select(Input{Profile: map[string]any{"membership": map[string]any{"level": "standard"}}})
	assert.Equal(t, SourceProfile, sel.Source)
	assert.Equal(t, TierBasic, sel.Tier)

	sel = r.Select(Input{Conversation: conv})
	assert.Equal(t, Selection{Tier: TierBasic, Model: DefaultModels[TierBasic], Source: SourceConversation}, sel)

	sel = r.Select(Input{})
	assert.Equal(t, Selection{Tier: DefaultTier, Model: DefaultModels[DefaultTier], Source: SourceDefault}, sel)
}

func TestModelForUnknownTier(t *testing.T) {
	r := NewResolver(nil)
	assert.Equal(t, DefaultModels[TierVisitor], r.ModelFor("nonsense"))
	assert.Equal(t, DefaultModels[TierBasicPlus], r.ModelFor("basic-plus"))
}
