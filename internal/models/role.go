// ABOUTME: Role is the persona template behind an AI companion
// ABOUTME: Carries persona text, tags, sample lines, imagery and aggregate metrics
package models

// Role represents a persona record. The conversation core treats it as read-only.
type Role struct {
	ID               string         `json:"id"`
	Slug             string         `json:"slug"`
	Name             string         `json:"name"`
	Persona          string         `json:"persona"`
	Summary          string         `json:"summary"`
	Gender           string         `json:"gender,omitempty"`
	Tags             []string       `json:"tags"`
	SampleMessages   []string       `json:"sampleMessages"`
	PortraitImageURL string         `json:"portraitImageUrl,omitempty"`
	CoverImageURL    string         `json:"coverImageUrl,omitempty"`
	AccentColor      string         `json:"accentColor,omitempty"`
	Profile          map[string]any `json:"profile,omitempty"`
	Prompt           RolePrompt     `json:"prompt"`
	Visibility       RoleVisibility `json:"visibility"`
	Metrics          RoleMetrics    `json:"metrics"`
	CreatedAt        *int64         `json:"createdAt,omitempty"`
	UpdatedAt        *int64         `json:"updatedAt,omitempty"`

	// Older role documents carry display text and samples under these names.
	Bio             string `json:"bio,omitempty"`
	Subtitle        string `json:"subtitle,omitempty"`
	Description     string `json:"description,omitempty"`
	Greeting        string `json:"greeting,omitempty"`
	Image           string `json:"image,omitempty"`
	Avatar          string `json:"avatar,omitempty"`
	Samples         any    `json:"samples,omitempty"`
	ExampleMessages any    `json:"exampleMessages,omitempty"`
	Examples        any    `json:"examples,omitempty"`
}

// RolePrompt holds the persona's system prompt and style notes
type RolePrompt struct {
	System     string   `json:"system,omitempty"`
	Goals      []string `json:"goals,omitempty"`
	StyleGuide []string `json:"styleGuide,omitempty"`
}

// RoleVisibility controls where a role is listed
type RoleVisibility struct {
	Status string `json:"status"`
	Scope  string `json:"scope"`
}

// RoleMetrics are aggregate counters maintained transactionally
type RoleMetrics struct {
	Likes             int `json:"likes"`
	Favorites         int `json:"favorites"`
	ConversationCount int `json:"conversationCount"`
}

// Card is the denormalized display projection of a role or conversation
type Card struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Persona          string         `json:"persona"`
	Summary          string         `json:"summary"`
	Tags             []string       `json:"tags"`
	PortraitImageURL *string        `json:"portraitImageUrl"`
	CoverImageURL    *string        `json:"coverImageUrl"`
	SampleMessages   []string       `json:"sampleMessages"`
	Profile          map[string]any `json:"profile"`
	AccentColor      string         `json:"accentColor,omitempty"`
}

// Favorite is one entry of a user's favorites ledger
type Favorite struct {
	RoleID    string `json:"roleId"`
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}
