// ABOUTME: RoleMetadataMapper projects roles into conversation metadata and display cards
// ABOUTME: Also reads loosely-shaped stored cards and merges sample-message sources
package core

import (
	"github.com/harper/companion/internal/models"
	"github.com/harper/companion/internal/textnorm"
)

// DefaultAIName is shown when neither the conversation nor its role has a name
const DefaultAIName = "AI 夥伴"

// RoleMetadata is the role-derived part of a conversation record
type RoleMetadata struct {
	AIRoleID  string
	AIName    string
	AIPersona string
	Bio       string
	Tags      []string
	Image     *string
	Gender    string
	Profile   map[string]any
	Card      *models.Card
}

// CardFromRole builds the display card for role
func CardFromRole(role *models.Role) *models.Card {
	if role == nil {
		return nil
	}

	portrait := textnorm.FirstNonEmpty(role.PortraitImageURL, role.Image, role.Avatar)
	cover := textnorm.FirstNonEmpty(role.CoverImageURL, portrait)
	persona := textnorm.String(role.Persona)

	return &models.Card{
		ID:      textnorm.FirstNonEmpty(role.ID, role.Slug),
		Name:    textnorm.FirstNonEmpty(role.Name, DefaultAIName),
		Persona: persona,
		Summary: textnorm.FirstNonEmpty(
			role.Summary, role.Bio, role.Subtitle, role.Description, role.Greeting, persona,
		),
		Tags:             textnorm.StringList(role.Tags),
		PortraitImageURL: models.StringPtr(portrait),
		CoverImageURL:    models.StringPtr(cover),
		SampleMessages: MergeSampleMessages(
			role.SampleMessages, role.Samples, role.Greeting, role.ExampleMessages, role.Examples,
		),
		Profile:          roleProfile(role),
		AccentColor:      textnorm.String(role.AccentColor),
	}
}

func roleProfile(role *models.Role) map[string]any {
	if len(role.Profile) == 0 && role.Gender == "" {
		return nil
	}
	profile := make(map[string]any, len(role.Profile)+1)
	for k, v := range role.Profile {
		profile[k] = v
	}
	if role.Gender != "" && textnorm.String(profile["gender"]) == "" {
		profile["gender"] = role.Gender
	}
	return profile
}

// MetadataFromRole maps role onto conversation metadata. Returns nil for a nil role.
func MetadataFromRole(role *models.Role) *RoleMetadata {
	if role == nil {
		return nil
	}
	card := CardFromRole(role)

	var image *string
	if card.PortraitImageURL != nil {
		image = card.PortraitImageURL
	} else {
		image = card.CoverImageURL
	}

	return &RoleMetadata{
		AIRoleID:  textnorm.FirstNonEmpty(role.ID, role.Slug),
		AIName:    card.Name,
		AIPersona: card.Persona,
		Bio:       card.Summary,
		Tags:      card.Tags,
		Image:     image,
		Gender:    role.Gender,
		Profile:   card.Profile,
		Card:      card,
	}
}

// NormalizeCard reads a stored or client-supplied card. Returns nil unless raw is an object.
func NormalizeCard(raw any) *models.Card {
	var card map[string]any
	switch v := raw.(type) {
	case map[string]any:
		card = v
	case *models.Card:
		if v == nil {
			return nil
		}
		doc, err := models.ToDocument(v)
		if err != nil {
			return nil
		}
		card = doc
	default:
		return nil
	}

	persona := textnorm.FirstNonEmpty(card["persona"], card["aiPersona"], card["character"])
	portrait := textnorm.FirstNonEmpty(card["portraitImageUrl"], card["image"], card["avatar"])

	var profile map[string]any
	if p, ok := card["profile"].(map[string]any); ok {
		profile = p
	}

	id, _ := card["id"].(string)
	return &models.Card{
		ID:      id,
		Name:    textnorm.FirstNonEmpty(card["name"], DefaultAIName),
		Persona: persona,
		Summary: textnorm.FirstNonEmpty(
			card["summary"], card["bio"], card["subtitle"], card["description"], card["greeting"], persona,
		),
		Tags:             textnorm.StringList(card["tags"]),
		PortraitImageURL: models.StringPtr(portrait),
		CoverImageURL:    models.StringPtr(textnorm.FirstNonEmpty(card["coverImageUrl"], portrait)),
		SampleMessages: MergeSampleMessages(
			card["sampleMessages"], card["samples"], card["greeting"], card["exampleMessages"], card["examples"],
		),
		Profile:     profile,
		AccentColor: textnorm.String(card["accentColor"]),
	}
}

// MergeSampleMessages flattens each source (a string, a list, or an object with
// messages/samples) and concatenates them in order, keeping the first copy of each line.
func MergeSampleMessages(sources ...any) []string {
	merged := []string{}
	seen := make(map[string]struct{})
	for _, source := range sources {
		for _, entry := range flattenSamples(source, 0) {
			if _, dup := seen[entry]; dup {
				continue
			}
			seen[entry] = struct{}{}
			merged = append(merged, entry)
		}
	}
	return merged
}

const maxSampleDepth = 6

func flattenSamples(source any, depth int) []string {
	if depth > maxSampleDepth {
		return nil
	}
	switch v := source.(type) {
	case string:
		if s := textnorm.String(v); s != "" {
			return []string{s}
		}
	case []string:
		return textnorm.StringList(v)
	case []any:
		var out []string
		for _, item := range v {
			out = append(out, flattenSamples(item, depth+1)...)
		}
		return out
	case map[string]any:
		if list, ok := v["messages"].([]any); ok {
			return flattenSamples(list, depth+1)
		}
		if list, ok := v["samples"].([]any); ok {
			return flattenSamples(list, depth+1)
		}
	}
	return nil
}
