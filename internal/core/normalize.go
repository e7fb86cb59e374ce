// ABOUTME: Canonical conversation shape: normalization, completeness and defaults
// ABOUTME: Pure functions over stored documents; the service decides what to persist
package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/harper/companion/internal/membership"
	"github.com/harper/companion/internal/models"
	"github.com/harper/companion/internal/textnorm"
)

// NormalizeConversation turns a stored document of any vintage into the canonical record
func NormalizeConversation(id string, data map[string]any) *models.Conversation {
	if data == nil {
		data = map[string]any{}
	}

	intimacy := intimacyFromDocument(data)
	card := NormalizeCard(data["card"])

	conversationID := textnorm.FirstNonEmpty(data["conversationId"], id)
	aiRoleID := textnorm.FirstNonEmpty(data["aiRoleId"])
	aiName := textnorm.FirstNonEmpty(data["aiName"])
	aiPersona := textnorm.FirstNonEmpty(data["aiPersona"])
	var cardID, cardName, cardPersona, cardSummary, cardPortrait, cardCover string
	var cardTags, cardSamples []string
	if card != nil {
		cardID, cardName, cardPersona, cardSummary = card.ID, card.Name, card.Persona, card.Summary
		cardPortrait, cardCover = models.Deref(card.PortraitImageURL), models.Deref(card.CoverImageURL)
		cardTags, cardSamples = card.Tags, card.SampleMessages
	}
	aiRoleID = textnorm.FirstNonEmpty(aiRoleID, cardID, conversationID)
	aiName = textnorm.FirstNonEmpty(aiName, cardName, DefaultAIName)
	aiPersona = textnorm.FirstNonEmpty(aiPersona, cardPersona)
	summary := textnorm.FirstNonEmpty(data["summary"], data["bio"], cardSummary, aiPersona)

	tags := textnorm.StringList(data["tags"])
	if len(tags) == 0 && len(cardTags) > 0 {
		tags = cardTags
	}
	image := textnorm.FirstNonEmpty(data["image"], cardPortrait, cardCover)
	samples := MergeSampleMessages(data["sampleMessages"], data["samples"], cardSamples)

	if card != nil {
		card.Summary = textnorm.FirstNonEmpty(card.Summary, summary)
		card.Persona = textnorm.FirstNonEmpty(card.Persona, aiPersona)
		if len(card.Tags) == 0 {
			card.Tags = tags
		}
		card.SampleMessages = samples
	}

	tier, ok := membership.NormalizeTier(data["membershipTier"])
	if !ok {
		tier = membership.DefaultTier
	}

	archivedAt := models.MillisFrom(data["archivedAt"])
	isArchived, isBool := data["isArchived"].(bool)
	if !isBool {
		isArchived = archivedAt != nil
	}

	var imageStoragePath *string
	if p, ok := data["imageStoragePath"].(string); ok {
		imageStoragePath = &p
	}
	lastMessage, _ := data["lastMessage"].(string)
	lastSender, _ := data["lastMessageSender"].(string)
	isFavorite, _ := data["isFavorite"].(bool)

	return &models.Conversation{
		ID:                id,
		ConversationID:    conversationID,
		AIRoleID:          aiRoleID,
		AIName:            aiName,
		AIPersona:         aiPersona,
		Bio:               summary,
		Summary:           summary,
		Tags:              tags,
		Image:             models.StringPtr(image),
		ImageStoragePath:  imageStoragePath,
		Card:              card,
		SampleMessages:    samples,
		Intimacy:          intimacy,
		IntimacyLabel:     intimacy.Label,
		MembershipTier:    string(tier),
		LastModel:         models.StringPtr(textnorm.String(data["lastModel"])),
		LastModelSource:   models.StringPtr(textnorm.String(data["lastModelSource"])),
		LastModelAt:       models.MillisFrom(data["lastModelAt"]),
		UnreadCount:       unreadCount(data["unreadCount"]),
		IsFavorite:        isFavorite,
		LastMessage:       lastMessage,
		LastMessageAt:     models.MillisFrom(data["lastMessageAt"]),
		LastMessageSender: lastSender,
		LastClearedAt:     models.MillisFrom(data["lastClearedAt"]),
		ArchivedAt:        archivedAt,
		IsArchived:        isArchived,
		CreatedAt:         models.MillisFrom(data["createdAt"]),
		UpdatedAt:         models.MillisFrom(data["updatedAt"]),
	}
}

func unreadCount(v any) int {
	n, ok := v.(float64)
	if !ok {
		if i, isInt := v.(int); isInt {
			n = float64(i)
		}
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0
	}
	return int(n)
}

// MetadataComplete reports whether a record has everything a display needs.
// Incomplete records are backfilled from their role on read.
func MetadataComplete(c *models.Conversation) bool {
	if c == nil {
		return false
	}
	return strings.TrimSpace(c.AIName) != "" &&
		c.Card != nil &&
		strings.TrimSpace(c.Card.Summary) != "" &&
		strings.TrimSpace(c.Summary) != "" &&
		len(c.SampleMessages) > 0
}

// BuildDefaults creates the full record for a conversation first referenced now
func BuildDefaults(conversationID string, role *models.Role, now int64) *models.Conversation {
	meta := MetadataFromRole(role)
	if meta == nil {
		meta = &RoleMetadata{}
	}
	if role == nil {
		role = &models.Role{}
	}
	card := meta.Card

	var cardID, cardName, cardSummary, cardPortrait, cardCover string
	var cardTags, cardSamples []string
	if card != nil {
		cardID, cardName, cardSummary = card.ID, card.Name, card.Summary
		cardPortrait, cardCover = models.Deref(card.PortraitImageURL), models.Deref(card.CoverImageURL)
		cardTags, cardSamples = card.Tags, card.SampleMessages
	}

	summary := textnorm.FirstNonEmpty(meta.Bio, cardSummary, role.Summary, role.Persona)
	tags := meta.Tags
	if len(tags) == 0 {
		tags = cardTags
	}
	if tags == nil {
		tags = []string{}
	}
	image := textnorm.FirstNonEmpty(models.Deref(meta.Image), cardPortrait, cardCover, role.PortraitImageURL, role.CoverImageURL)
	intimacy := models.Intimacy{Level: DefaultIntimacyLevel, Label: IntimacyLabel(DefaultIntimacyLevel)}

	return &models.Conversation{
		ID:             conversationID,
		ConversationID: conversationID,
		AIRoleID:       textnorm.FirstNonEmpty(meta.AIRoleID, cardID, role.ID, conversationID),
		AIName:         textnorm.FirstNonEmpty(meta.AIName, cardName, role.Name, DefaultAIName),
		AIPersona:      textnorm.FirstNonEmpty(meta.AIPersona, role.Persona),
		Bio:            summary,
		Summary:        summary,
		Tags:           tags,
		Image:          models.StringPtr(image),
		Card:           card,
		SampleMessages: MergeSampleMessages(cardSamples, role.SampleMessages),
		Intimacy:       intimacy,
		IntimacyLabel:  intimacy.Label,
		MembershipTier: string(membership.DefaultTier),
		CreatedAt:      models.Int64Ptr(now),
		UpdatedAt:      models.Int64Ptr(now),
	}
}

// metadataPatch fills only the fields that are empty in the stored document
func metadataPatch(data map[string]any, current, defaults *models.Conversation) map[string]any {
	patch := map[string]any{}
	fill := func(key, value string) {
		if textnorm.String(data[key]) == "" && value != "" {
			patch[key] = value
		}
	}
	fill("aiRoleId", defaults.AIRoleID)
	fill("aiName", defaults.AIName)
	fill("aiPersona", defaults.AIPersona)
	fill("bio", defaults.Bio)
	fill("summary", defaults.Summary)

	if len(textnorm.StringList(data["tags"])) == 0 && len(defaults.Tags) > 0 {
		patch["tags"] = defaults.Tags
	}
	if defaults.Card != nil && (current.Card == nil ||
		(strings.TrimSpace(current.Card.Summary) == "" && defaults.Card.Summary != "")) {
		if card, err := models.ToDocument(defaults.Card); err == nil {
			patch["card"] = card
		}
	}
	if len(current.SampleMessages) == 0 && len(defaults.SampleMessages) > 0 {
		patch["sampleMessages"] = defaults.SampleMessages
	}
	if current.Image == nil && defaults.Image != nil {
		patch["image"] = *defaults.Image
	}
	return patch
}

// membershipPatch repairs an unknown tier and a non-string lastModel
func membershipPatch(data map[string]any) map[string]any {
	patch := map[string]any{}

	tier, ok := membership.NormalizeTier(data["membershipTier"])
	raw, isString := data["membershipTier"].(string)
	switch {
	case !ok:
		patch["membershipTier"] = string(membership.DefaultTier)
	case !isString || raw != string(tier):
		patch["membershipTier"] = string(tier)
	}

	switch v := data["lastModel"].(type) {
	case nil, string:
	case float64:
		patch["lastModel"] = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		patch["lastModel"] = strconv.FormatBool(v)
	case json.Number:
		patch["lastModel"] = v.String()
	default:
		patch["lastModel"] = nil
	}
	return patch
}

// applyMembershipPatch mirrors a membership patch onto the in-memory record
func applyMembershipPatch(c *models.Conversation, patch map[string]any) {
	if tier, ok := patch["membershipTier"].(string); ok {
		c.MembershipTier = tier
	}
	if v, present := patch["lastModel"]; present {
		s, _ := v.(string)
		c.LastModel = models.StringPtr(s)
	}
}
