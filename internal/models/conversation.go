// ABOUTME: Conversation is the canonical, reconciled per-user chat record
// ABOUTME: Persisted as a JSON document; timestamps are Unix milliseconds
package models

import (
	"encoding/json"
	"fmt"
)

// Intimacy is the relationship-progress indicator. Label must encode Level.
type Intimacy struct {
	Level int    `json:"level"`
	Label string `json:"label"`
}

// Conversation represents the canonical conversation record
type Conversation struct {
	ID             string   `json:"id,omitempty"`
	ConversationID string   `json:"conversationId"`
	AIRoleID       string   `json:"aiRoleId"`
	AIName         string   `json:"aiName"`
	AIPersona      string   `json:"aiPersona"`
	Bio            string   `json:"bio"`
	Summary        string   `json:"summary"`
	Tags           []string `json:"tags"`
	Image          *string  `json:"image"`
	// ImageStoragePath points at an uploaded override image
	ImageStoragePath *string  `json:"imageStoragePath"`
	Card             *Card    `json:"card"`
	SampleMessages   []string `json:"sampleMessages"`
	Intimacy         Intimacy `json:"intimacy"`
	IntimacyLabel    string   `json:"intimacyLabel"`

	MembershipTier    string  `json:"membershipTier"`
	LastModel         *string `json:"lastModel"`
	LastModelSource   *string `json:"lastModelSource"`
	LastModelAt       *int64  `json:"lastModelAt"`
	UnreadCount       int     `json:"unreadCount"`
	IsFavorite        bool    `json:"isFavorite"`
	LastMessage       string  `json:"lastMessage"`
	LastMessageAt     *int64  `json:"lastMessageAt"`
	LastMessageSender string  `json:"lastMessageSender,omitempty"`
	LastClearedAt     *int64  `json:"lastClearedAt"`
	ArchivedAt        *int64  `json:"archivedAt"`
	IsArchived        bool    `json:"isArchived"`
	CreatedAt         *int64  `json:"createdAt"`
	UpdatedAt         *int64  `json:"updatedAt"`
}

// Document returns the record as a persistable field map
func (c *Conversation) Document() (map[string]any, error) {
	doc, err := ToDocument(c)
	if err != nil {
		return nil, err
	}
	delete(doc, "id")
	return doc, nil
}

// ToDocument converts a JSON-tagged struct into a generic field map
func ToDocument(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// StringPtr returns nil for an empty string, otherwise a pointer to s
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or ""
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
