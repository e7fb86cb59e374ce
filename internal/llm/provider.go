// ABOUTME: Completion provider contract used by the conversation core
// ABOUTME: A role-tagged message list in, one text completion out
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged prompt entry
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single completion call. Zero values fall back to client defaults.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int
	// Metadata describes the call for logs; it is not sent upstream
	Metadata map[string]string
}

// Completion is the provider's answer
type Completion struct {
	Text         string
	Model        string
	FinishReason string
}

// Provider produces chat completions
type Provider interface {
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
}
