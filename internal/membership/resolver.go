// ABOUTME: Resolver picks the membership tier and completion model for a request
// ABOUTME: Precedence is explicit tier, auth claims, profile, conversation, then default
package membership

import (
	"strings"

	"github.com/harper/companion/internal/models"
)

// Source names where a resolved tier came from
const (
	SourceExplicit     = "explicit"
	SourceClaims       = "claims"
	SourceProfile      = "profile"
	SourceConversation = "conversation"
	SourceDefault      = "default"
)

// DefaultModels is the built-in tier to model table
var DefaultModels = map[Tier]string{
	TierVisitor:   "gpt-4o-mini",
	TierBasic:     "gpt-4o",
	TierBasicPlus: "gpt-4o",
	TierVIP:       "gpt-4.1",
	TierVIPPlus:   "gpt-4.1",
}

var claimDirectKeys = []string{
	"membershipTier", "membership_level", "membershipLevel", "tier", "plan", "subscriptionTier",
	"subscription", "entitlementTier", "aiTier", "aiAccess", "accessTier", "role", "membership", "level",
}

var claimNestedPaths = [][]string{
	{"membership", "tier"},
	{"membership", "level"},
	{"membership", "plan"},
	{"membership", "name"},
	{"entitlements", "ai", "tier"},
	{"entitlements", "aiTier"},
	{"entitlements", "membership", "tier"},
	{"tiers", "ai"},
	{"tiers", "primary"},
}

// Input is everything known about the caller when choosing a model
type Input struct {
	ExplicitTier any
	Claims       map[string]any
	Profile      map[string]any
	Conversation *models.Conversation
	FallbackTier Tier
}

// Selection is the resolved tier, its model and the tier's source
type Selection struct {
	Tier   Tier   `json:"tier"`
	Model  string `json:"model"`
	Source string `json:"source"`
}

// Resolver maps callers to tiers and tiers to models
type Resolver struct {
	models map[Tier]string
}

// NewResolver creates a resolver. Tiers missing from overrides use DefaultModels.
func NewResolver(overrides map[Tier]string) *Resolver {
	table := make(map[Tier]string, len(DefaultModels))
	for tier, model := range DefaultModels {
		table[tier] = model
	}
	for tier, model := range overrides {
		if m := strings.TrimSpace(model); m != "" {
			if canonical, ok := NormalizeTier(string(tier)); ok {
				table[canonical] = m
			}
		}
	}
	return &Resolver{models: table}
}

// ModelFor returns the completion model configured for tier
func (r *Resolver) ModelFor(tier Tier) string {
	if canonical, ok := NormalizeTier(string(tier)); ok {
		tier = canonical
	} else {
		tier = DefaultTier
	}
	if m, ok := r.models[tier]; ok {
		return m
	}
	return r.models[DefaultTier]
}

// ResolveTier applies the precedence chain without choosing a model
func ResolveTier(in Input) (Tier, string) {
	if tier, ok := NormalizeTier(in.ExplicitTier); ok {
		return tier, SourceExplicit
	}
	if tier, ok := TierFromClaims(in.Claims); ok {
		return tier, SourceClaims
	}
	if tier, ok := tierFromProfile(in.Profile); ok {
		return tier, SourceProfile
	}
	if in.Conversation != nil {
		if tier, ok := NormalizeTier(in.Conversation.MembershipTier); ok {
			return tier, SourceConversation
		}
	}
	if tier, ok := NormalizeTier(string(in.FallbackTier)); ok {
		return tier, SourceDefault
	}
	return DefaultTier, SourceDefault
}

// Select resolves the tier and the model it unlocks
func (r *Resolver) Select(in Input) Selection {
	tier, source := ResolveTier(in)
	return Selection{Tier: tier, Model: r.ModelFor(tier), Source: source}
}

// TierFromClaims reads a tier out of authentication claims
func TierFromClaims(claims map[string]any) (Tier, bool) {
	if len(claims) == 0 {
		return "", false
	}
	if tier, ok := fromKeys(claims, claimDirectKeys); ok {
		return tier, true
	}
	for _, path := range claimNestedPaths {
		if tier, ok := NormalizeTier(lookupPath(claims, path)); ok {
			return tier, true
		}
	}
	if tier, ok := fromArray(claims["roles"]); ok {
		return tier, true
	}
	return fromArray(claims["entitlements"])
}

func tierFromProfile(profile map[string]any) (Tier, bool) {
	if len(profile) == 0 {
		return "", false
	}
	if tier, ok := fromKeys(profile, []string{"membershipTier", "plan", "tier"}); ok {
		return tier, true
	}
	if membership, ok := profile["membership"].(map[string]any); ok {
		return fromKeys(membership, []string{"tier", "level", "plan"})
	}
	return "", false
}

func fromKeys(source map[string]any, keys []string) (Tier, bool) {
	for _, key := range keys {
		v, present := source[key]
		if !present {
			continue
		}
		if tier, ok := NormalizeTier(v); ok {
			return tier, true
		}
	}
	return "", false
}

func lookupPath(source map[string]any, path []string) any {
	var cursor any = source
	for _, segment := range path {
		m, ok := cursor.(map[string]any)
		if !ok {
			return nil
		}
		cursor = m[segment]
	}
	return cursor
}

func fromArray(value any) (Tier, bool) {
	entries, ok := value.([]any)
	if !ok {
		return "", false
	}
	for _, entry := range entries {
		if obj, isMap := entry.(map[string]any); isMap {
			for _, key := range []string{"tier", "level", "name"} {
				if v, present := obj[key]; present && v != nil {
					if tier, ok := NormalizeTier(v); ok {
						return tier, true
					}
					break
				}
			}
			continue
		}
		if tier, ok := NormalizeTier(entry); ok {
			return tier, true
		}
	}
	return "", false
}
