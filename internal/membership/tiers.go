// ABOUTME: Membership tier enumeration with alias registry and fuzzy inference
// ABOUTME: Maps free-form plan names, numeric levels and localized labels to canonical tiers
package membership

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"
)

// Tier is a canonical membership level
type Tier string

const (
	TierVisitor   Tier = "visitor"
	TierBasic     Tier = "basic"
	TierBasicPlus Tier = "basic_plus"
	TierVIP       Tier = "vip"
	TierVIPPlus   Tier = "vip_plus"

	DefaultTier = TierVisitor
)

// Tiers lists every tier from lowest to highest
var Tiers = []Tier{TierVisitor, TierBasic, TierBasicPlus, TierVIP, TierVIPPlus}

var numericTiers = map[int]Tier{
	0: TierVisitor,
	1: TierBasic,
	2: TierVIP,
	3: TierVIPPlus,
}

type aliasSet struct {
	tier    Tier
	aliases map[string]struct{}
}

// checked in tier order so the first registered owner of an alias wins
var aliasRegistry = []aliasSet{
	newAliasSet(TierVisitor, "visitor", "guest", "tourist", "free", "freemium", "trial", "intro", "遊客", "訪客"),
	newAliasSet(TierBasic, "basic", "standard", "member", "starter", "core", "essential", "base", "classic", "entry", "基礎", "標準"),
	newAliasSet(TierBasicPlus,
		"basicplus", "basicboost", "basicboosted", "basicupgrade", "basicupgraded", "basiccoin", "basiccoins",
		"memberplus", "standardplus", "starterplus", "coreplus", "essentialplus", "classicplus", "entryplus",
		"silver", "silverplus", "基礎plus", "基礎金幣", "基礎升級", "基礎增幅", "普通金幣", "金幣基礎"),
	newAliasSet(TierVIP, "vip", "premium", "platinum", "pro", "尊榮", "白金", "貴賓", "advance", "advanced", "尊爵", "星級"),
	newAliasSet(TierVIPPlus,
		"vipplus", "vipboost", "vipboosted", "vipupgrade", "vipupgraded", "vipcoin", "vipcoins",
		"premiumplus", "platinumplus", "proplus", "privileged", "elite", "ultra", "ultimate", "max",
		"boost", "boosted", "gold", "goldplus", "coin", "coins", "coinplus", "upgrade", "upgraded",
		"o1", "o1preview", "金幣", "金幣升級", "金幣升級ai智能", "超頻", "超進化",
		"尊榮plus", "白金plus", "貴賓plus", "尊爵plus"),
}

func newAliasSet(tier Tier, aliases ...string) aliasSet {
	set := aliasSet{tier: tier, aliases: map[string]struct{}{sanitizeAlias(string(tier)): {}}}
	for _, a := range aliases {
		if s := sanitizeAlias(a); s != "" {
			set.aliases[s] = struct{}{}
		}
	}
	return set
}

// sanitizeAlias lowercases and drops whitespace, underscores, hyphens and plus signs
func sanitizeAlias(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '_' || r == '-' || r == '+' {
			return -1
		}
		return unicode.ToLower(r)
	}, strings.TrimSpace(value))
}

// NormalizeTier maps any stored or claimed value onto a canonical tier.
// ok is false when the value is absent or unrecognized.
func NormalizeTier(value any) (Tier, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case Tier:
		return NormalizeTier(string(v))
	case string:
		return inferTier(sanitizeAlias(v))
	case bool:
		return "", false
	case float64:
		return numericTier(v)
	case float32:
		return numericTier(float64(v))
	case int:
		return numericTier(float64(v))
	case int64:
		return numericTier(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return "", false
		}
		return numericTier(f)
	default:
		return "", false
	}
}

func numericTier(v float64) (Tier, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	level := int(math.Max(0, math.Min(4, math.Trunc(v))))
	tier, ok := numericTiers[level]
	return tier, ok
}

func inferTier(value string) (Tier, bool) {
	if value == "" {
		return "", false
	}

	for _, set := range aliasRegistry {
		if _, ok := set.aliases[value]; ok {
			return set.tier, true
		}
	}

	has := func(needles ...string) bool {
		for _, n := range needles {
			if strings.Contains(value, n) {
				return true
			}
		}
		return false
	}

	switch {
	case has("vipplus", "vipboost", "vipcoin", "premiumplus", "platinumplus", "proplus", "elite", "ultra", "ultimate", "max"),
		has("vip") && has("plus", "boost", "coin", "gold"):
		return TierVIPPlus, true
	case has("basicplus", "basicboost", "basiccoin", "memberplus", "standardplus", "starterplus",
		"coreplus", "essentialplus", "classicplus", "entryplus", "silver"),
		has("basic") && has("plus", "boost", "coin"),
		has("member") && has("plus", "coin"):
		return TierBasicPlus, true
	case has("vip", "premium", "platinum", "prestige", "尊榮", "白金", "貴賓", "尊爵"):
		return TierVIP, true
	case has("basic", "standard", "member", "starter", "core", "essential", "classic", "entry"):
		return TierBasic, true
	case has("coin", "gold", "boost"):
		return TierVIPPlus, true
	case has("free", "guest", "tourist", "trial"):
		return TierVisitor, true
	}
	return "", false
}
