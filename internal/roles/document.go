// ABOUTME: Conversion between role documents and models.Role
// ABOUTME: Reading is tolerant of legacy shapes; missing counters read as zero
package roles

import (
	"math"

	"github.com/harper/companion/internal/models"
	"github.com/harper/companion/internal/textnorm"
)

// FromDocument reads a stored role. Unknown or malformed fields fall back to defaults.
func FromDocument(id string, data map[string]any) *models.Role {
	if data == nil {
		return nil
	}

	slug := Slugify(textnorm.FirstNonEmpty(data["slug"], data["slugId"], data["publicId"], data["legacyId"], data["id"], id))
	if slug == "" {
		slug = id
	}
	gender, ok := NormalizeGender(textnorm.String(data["gender"]))
	if !ok {
		gender = DefaultGender
	}

	profile := map[string]any{}
	if p, ok := data["profile"].(map[string]any); ok {
		for k, v := range p {
			profile[k] = v
		}
	}
	if textnorm.String(profile["gender"]) == "" {
		profile["gender"] = gender
	}

	role := &models.Role{
		ID:               id,
		Slug:             slug,
		Gender:           gender,
		Name:             textnorm.String(data["name"]),
		Persona:          textnorm.String(data["persona"]),
		Summary:          textnorm.String(data["summary"]),
		Tags:             textnorm.StringList(data["tags"]),
		SampleMessages:   textnorm.StringList(data["sampleMessages"]),
		CoverImageURL:    textnorm.String(data["coverImageUrl"]),
		PortraitImageURL: textnorm.String(data["portraitImageUrl"]),
		AccentColor:      textnorm.String(data["accentColor"]),
		Profile:          profile,
		CreatedAt:        models.MillisFrom(data["createdAt"]),
		UpdatedAt:        models.MillisFrom(data["updatedAt"]),

		Bio:             textnorm.String(data["bio"]),
		Subtitle:        textnorm.String(data["subtitle"]),
		Description:     textnorm.String(data["description"]),
		Greeting:        textnorm.String(data["greeting"]),
		Image:           textnorm.String(data["image"]),
		Avatar:          textnorm.String(data["avatar"]),
		Samples:         data["samples"],
		ExampleMessages: data["exampleMessages"],
		Examples:        data["examples"],
	}

	if prompt, ok := data["prompt"].(map[string]any); ok {
		role.Prompt = models.RolePrompt{
			System:     textnorm.String(prompt["system"]),
			Goals:      textnorm.StringList(prompt["goals"]),
			StyleGuide: textnorm.StringList(prompt["styleGuide"]),
		}
	}

	role.Visibility = models.RoleVisibility{Status: "draft", Scope: "private"}
	if vis, ok := data["visibility"].(map[string]any); ok {
		role.Visibility.Status = textnorm.FirstNonEmpty(vis["status"], "draft")
		role.Visibility.Scope = textnorm.FirstNonEmpty(vis["scope"], "private")
	}

	if metrics, ok := data["metrics"].(map[string]any); ok {
		role.Metrics = models.RoleMetrics{
			Likes:             Counter(metrics["likes"]),
			Favorites:         Counter(metrics["favorites"]),
			ConversationCount: Counter(metrics["conversationCount"]),
		}
	}
	return role
}

// ToDocument converts a role into its stored field map
func ToDocument(role *models.Role) (map[string]any, error) {
	return models.ToDocument(role)
}

// Counter reads a non-negative integer counter from a stored value
func Counter(v any) int {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	default:
		return 0
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0
	}
	return int(math.Round(n))
}
