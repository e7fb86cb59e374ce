// ABOUTME: Message is a single chat line stored under a conversation
// ABOUTME: Sender is either the user or the AI companion
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Message represents one entry in a conversation's message sub-collection
type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"createdAt"`
}

// NewUserMessage creates a user message; the text must not be blank
func NewUserMessage(text string, at time.Time) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("message must not be empty")
	}
	return &Message{ID: generateMessageID(), Sender: SenderUser, Message: text, CreatedAt: Millis(at)}, nil
}

// NewAIMessage creates an AI reply. Empty replies are kept.
func NewAIMessage(text string, at time.Time) *Message {
	return &Message{ID: generateMessageID(), Sender: SenderAI, Message: strings.TrimSpace(text), CreatedAt: Millis(at)}
}

// Document returns the persisted field set (the id is the document key)
func (m *Message) Document() map[string]any {
	return map[string]any{
		"sender":    m.Sender,
		"message":   m.Message,
		"createdAt": m.CreatedAt,
	}
}

// MessageFromDocument reads a stored message, tolerating missing fields
func MessageFromDocument(id string, data map[string]any) Message {
	msg := Message{ID: id}
	if s, ok := data["sender"].(string); ok {
		msg.Sender = s
	}
	if s, ok := data["message"].(string); ok {
		msg.Message = s
	}
	if at := MillisFrom(data["createdAt"]); at != nil {
		msg.CreatedAt = *at
	}
	return msg
}

func generateMessageID() string {
	return "msg_" + time.Now().UTC().Format("20060102150405") + "_" + uuid.New().String()[:8]
}
