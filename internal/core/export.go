// ABOUTME: Export of a user's conversations, messages and favorites
// ABOUTME: Supports YAML and Markdown export formats
package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harper/companion/internal/apperr"
	"github.com/harper/companion/internal/models"
	"github.com/harper/companion/internal/storage"
	"gopkg.in/yaml.v3"
)

const exportVersion = "1.0"

// ExportData represents the complete exportable data structure
type ExportData struct {
	Version       string               `yaml:"version" json:"version"`
	ExportedAt    string               `yaml:"exported_at" json:"exported_at"`
	Tool          string               `yaml:"tool" json:"tool"`
	UserID        string               `yaml:"user_id" json:"user_id"`
	Favorites     []string             `yaml:"favorites,omitempty" json:"favorites,omitempty"`
	Conversations []ExportConversation `yaml:"conversations" json:"conversations"`
}

// ExportConversation is one conversation with its full message log
type ExportConversation struct {
	ConversationID string          `yaml:"conversation_id" json:"conversation_id"`
	AIName         string          `yaml:"ai_name" json:"ai_name"`
	Summary        string          `yaml:"summary,omitempty" json:"summary,omitempty"`
	Tags           []string        `yaml:"tags,omitempty" json:"tags,omitempty"`
	Intimacy       string          `yaml:"intimacy" json:"intimacy"`
	MembershipTier string          `yaml:"membership_tier" json:"membership_tier"`
	LastModel      string          `yaml:"last_model,omitempty" json:"last_model,omitempty"`
	IsFavorite     bool            `yaml:"is_favorite" json:"is_favorite"`
	UpdatedAt      string          `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
	Messages       []ExportMessage `yaml:"messages" json:"messages"`
}

// ExportMessage represents a message for export
type ExportMessage struct {
	Sender    string `yaml:"sender" json:"sender"`
	Message   string `yaml:"message" json:"message"`
	Timestamp string `yaml:"timestamp" json:"timestamp"`
}

// Exporter reads everything a user owns straight from the store
type Exporter struct {
	store storage.Store
	now   func() time.Time
}

// NewExporter creates an exporter over store
func NewExporter(store storage.Store) *Exporter {
	return &Exporter{store: store, now: time.Now}
}

// Export collects every conversation of userID, most recently updated first
func (e *Exporter) Export(ctx context.Context, userID string) (*ExportData, error) {
	if strings.TrimSpace(userID) == "" || strings.Contains(userID, "/") {
		return nil, apperr.Validation("userId", "user id is required")
	}

	data := &ExportData{
		Version:       exportVersion,
		ExportedAt:    e.now().UTC().Format(time.RFC3339),
		Tool:          "companion",
		UserID:        userID,
		Conversations: []ExportConversation{},
	}

	favs, err := e.store.Query(ctx, storage.Query{
		Collection: storage.FavoritesPath(userID),
		OrderBy:    "createdAt",
		Desc:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	for _, doc := range favs {
		data.Favorites = append(data.Favorites, textOr(doc.Data["roleId"], doc.ID))
	}

	docs, err := e.store.Query(ctx, storage.Query{
		Collection: storage.ConversationsPath(userID),
		OrderBy:    "updatedAt",
		Desc:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	for _, doc := range docs {
		conv := NormalizeConversation(doc.ID, doc.Data)
		entry := ExportConversation{
			ConversationID: conv.ConversationID,
			AIName:         conv.AIName,
			Summary:        conv.Summary,
			Tags:           conv.Tags,
			Intimacy:       conv.IntimacyLabel,
			MembershipTier: conv.MembershipTier,
			LastModel:      models.Deref(conv.LastModel),
			IsFavorite:     conv.IsFavorite,
			UpdatedAt:      formatMillis(conv.UpdatedAt),
			Messages:       []ExportMessage{},
		}

		msgs, err := e.store.Query(ctx, storage.Query{
			Collection: storage.MessagesPath(userID, doc.ID),
			OrderBy:    "createdAt",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list messages of %s: %w", doc.ID, err)
		}
		for _, m := range msgs {
			msg := models.MessageFromDocument(m.ID, m.Data)
			entry.Messages = append(entry.Messages, ExportMessage{
				Sender:    msg.Sender,
				Message:   msg.Message,
				Timestamp: formatMillis(&msg.CreatedAt),
			})
		}

		data.Conversations = append(data.Conversations, entry)
	}

	return data, nil
}

// WriteYAML encodes data as YAML
func WriteYAML(w io.Writer, data *ExportData) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// WriteMarkdown renders data as a readable transcript
func WriteMarkdown(w io.Writer, data *ExportData) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Companion Export - %s\n\n", data.UserID)
	fmt.Fprintf(&b, "Generated: %s\n\n", data.ExportedAt)

	if len(data.Favorites) > 0 {
		b.WriteString("## Favorites\n\n")
		for _, id := range data.Favorites {
			fmt.Fprintf(&b, "- %s\n", id)
		}
		b.WriteString("\n")
	}

	if len(data.Conversations) > 0 {
		b.WriteString("## Conversations\n\n")
	}
	for _, conv := range data.Conversations {
		fmt.Fprintf(&b, "### %s (%s)\n\n", conv.AIName, conv.ConversationID)
		if conv.Summary != "" {
			fmt.Fprintf(&b, "*%s*\n\n", conv.Summary)
		}
		fmt.Fprintf(&b, "- **Intimacy:** %s\n", conv.Intimacy)
		fmt.Fprintf(&b, "- **Tier:** %s\n", conv.MembershipTier)
		if len(conv.Tags) > 0 {
			fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(conv.Tags, ", "))
		}
		b.WriteString("\n")

		for _, m := range conv.Messages {
			speaker := "User"
			if m.Sender == models.SenderAI {
				speaker = conv.AIName
			}
			fmt.Fprintf(&b, "**%s:** %s\n\n", speaker, m.Message)
		}
		b.WriteString("---\n\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write markdown: %w", err)
	}
	return nil
}

func formatMillis(ms *int64) string {
	if ms == nil || *ms <= 0 {
		return ""
	}
	return time.UnixMilli(*ms).UTC().Format(time.RFC3339)
}
