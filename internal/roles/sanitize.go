// ABOUTME: Strict validation of role payloads for create and seed paths
// ABOUTME: Bounds every text field and rejects missing required values with Validation errors
package roles

import (
	"strings"

	"github.com/harper/companion/internal/apperr"
	"github.com/harper/companion/internal/models"
	"github.com/harper/companion/internal/textnorm"
)

const DefaultGender = "無性別"

var genderAliases = map[string]string{
	"male": "男", "m": "男", "boy": "男", "男性": "男", "man": "男", "男": "男", "gentleman": "男", "sir": "男",
	"女": "女", "female": "女", "f": "女", "girl": "女", "女性": "女", "woman": "女", "lady": "女", "madam": "女",
	"無性別": "無性別", "none": "無性別", "無": "無性別", "未指定": "無性別", "unknown": "無性別",
	"n/a": "無性別", "na": "無性別", "undefined": "無性別", "neutral": "無性別",
}

var allowedStatuses = map[string]bool{"draft": true, "review": true, "published": true, "retired": true}

// RoleInput is an unvalidated role payload
type RoleInput struct {
	ID               string         `json:"id"`
	Slug             string         `json:"slug"`
	Name             string         `json:"name"`
	Gender           string         `json:"gender"`
	Persona          string         `json:"persona"`
	Summary          string         `json:"summary"`
	Tags             []string       `json:"tags"`
	SampleMessages   []string       `json:"sampleMessages"`
	CoverImageURL    string         `json:"coverImageUrl"`
	PortraitImageURL string         `json:"portraitImageUrl"`
	AccentColor      string         `json:"accentColor"`
	Profile          map[string]any `json:"profile"`
	Prompt           PromptInput    `json:"prompt"`
	Visibility       models.RoleVisibility `json:"visibility"`
	Metrics          models.RoleMetrics    `json:"metrics"`
}

// PromptInput is the unvalidated persona prompt
type PromptInput struct {
	System     string   `json:"system"`
	Goals      []string `json:"goals"`
	StyleGuide []string `json:"styleGuide"`
}

// NormalizeGender maps free-form gender text to 男, 女 or 無性別
func NormalizeGender(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	if g, ok := genderAliases[strings.ToLower(trimmed)]; ok {
		return g, true
	}
	if g, ok := genderAliases[trimmed]; ok {
		return g, true
	}
	return "", false
}

func requireString(field, value string, maxLen int) (string, error) {
	s, ok := textnorm.TrimOrEmpty(value, maxLen)
	if !ok {
		return "", apperr.Validation(field, "%s is required", field)
	}
	return s, nil
}

// Sanitize validates input and returns the role to persist (without id or timestamps)
func Sanitize(in RoleInput) (*models.Role, error) {
	slug := Slugify(textnorm.FirstNonEmpty(in.Slug, in.ID, in.Name))
	if slug == "" {
		return nil, apperr.Validation("slug", "slug is required")
	}

	gender, ok := NormalizeGender(in.Gender)
	if !ok {
		return nil, apperr.Validation("gender", "gender must be one of 男, 女 or 無性別")
	}

	role := &models.Role{Slug: slug, Gender: gender}
	var err error
	if role.Name, err = requireString("name", in.Name, 80); err != nil {
		return nil, err
	}
	if role.Persona, err = requireString("persona", in.Persona, 120); err != nil {
		return nil, err
	}
	if role.Summary, err = requireString("summary", in.Summary, 400); err != nil {
		return nil, err
	}
	if role.Tags, err = textnorm.DedupeList("tags", in.Tags, textnorm.ListOptions{MaxItems: 12, MaxLen: 32}); err != nil {
		return nil, err
	}
	role.SampleMessages, _ = textnorm.DedupeList("sampleMessages", in.SampleMessages, textnorm.ListOptions{MaxItems: 6, MaxLen: 160, AllowEmpty: true})
	if role.CoverImageURL, err = requireString("coverImageUrl", in.CoverImageURL, 512); err != nil {
		return nil, err
	}
	role.PortraitImageURL, _ = textnorm.TrimOrEmpty(in.PortraitImageURL, 512)
	role.AccentColor, _ = textnorm.TrimOrEmpty(in.AccentColor, 16)

	if role.Prompt.System, err = requireString("prompt.system", in.Prompt.System, 4096); err != nil {
		return nil, err
	}
	role.Prompt.Goals, _ = textnorm.DedupeList("prompt.goals", in.Prompt.Goals, textnorm.ListOptions{MaxItems: 6, MaxLen: 200, AllowEmpty: true})
	role.Prompt.StyleGuide, _ = textnorm.DedupeList("prompt.styleGuide", in.Prompt.StyleGuide, textnorm.ListOptions{MaxItems: 6, MaxLen: 220, AllowEmpty: true})

	status := strings.ToLower(textnorm.FirstNonEmpty(in.Visibility.Status, "draft"))
	if !allowedStatuses[status] {
		return nil, apperr.Validation("visibility.status", "visibility.status %q is not allowed", status)
	}
	role.Visibility = models.RoleVisibility{Status: status, Scope: textnorm.FirstNonEmpty(textnorm.Truncate(in.Visibility.Scope, 64), "private")}

	role.Profile = map[string]any{}
	for k, v := range in.Profile {
		role.Profile[k] = v
	}
	if g, ok := role.Profile["gender"].(string); ok {
		normalized, valid := NormalizeGender(g)
		if !valid {
			return nil, apperr.Validation("profile.gender", "profile.gender must be one of 男, 女 or 無性別")
		}
		role.Profile["gender"] = normalized
	} else {
		role.Profile["gender"] = gender
	}

	role.Metrics = models.RoleMetrics{
		Likes:             nonNegative(in.Metrics.Likes),
		Favorites:         nonNegative(in.Metrics.Favorites),
		ConversationCount: nonNegative(in.Metrics.ConversationCount),
	}
	return role, nil
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
