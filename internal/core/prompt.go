// ABOUTME: Builds completion prompts from a conversation and its recent history
// ABOUTME: Injects a synthesized assistant intro when the history has no AI turn yet
package core

import (
	"fmt"
	"strings"

	"github.com/harper/companion/internal/llm"
	"github.com/harper/companion/internal/models"
)

const (
	// SystemPrompt frames every completion
	SystemPrompt = "You are an empathetic AI companion that follows safety guardrails and keeps the conversation supportive."

	// SuggestionPrompt asks for three short replies the user could send, as a JSON array
	SuggestionPrompt = "根據近期的對話內容，請提供 3 句使用者可以回覆 AI 的建議。保持真誠溫柔，每句限 25 個字以內。請以 JSON 陣列輸出，不要加入其他內容。"
)

func personaInstruction(conv *models.Conversation) string {
	if conv == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "你正在扮演「%s」。", conv.AIName)
	if conv.AIPersona != "" {
		fmt.Fprintf(&b, "角色設定：%s。", conv.AIPersona)
	}
	if conv.Summary != "" && conv.Summary != conv.AIPersona {
		fmt.Fprintf(&b, "背景：%s。", conv.Summary)
	}
	if len(conv.Tags) > 0 {
		fmt.Fprintf(&b, "關鍵字：%s。", strings.Join(conv.Tags, "、"))
	}
	if conv.IntimacyLabel != "" {
		fmt.Fprintf(&b, "目前%s。", conv.IntimacyLabel)
	}
	return b.String()
}

// BuildPrompt assembles system framing, an optional intro turn, then history oldest first
func BuildPrompt(conv *models.Conversation, history []models.Message, intro string) []llm.Message {
	system := SystemPrompt
	if persona := personaInstruction(conv); persona != "" {
		system += "\n" + persona
	}

	prompt := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	if intro = strings.TrimSpace(intro); intro != "" {
		prompt = append(prompt, llm.Message{Role: llm.RoleAssistant, Content: intro})
	}
	for _, msg := range history {
		text := strings.TrimSpace(msg.Message)
		if text == "" {
			continue
		}
		role := llm.RoleUser
		if msg.Sender == models.SenderAI {
			role = llm.RoleAssistant
		}
		prompt = append(prompt, llm.Message{Role: role, Content: text})
	}
	return prompt
}

func hasAssistantTurn(history []models.Message) bool {
	for _, msg := range history {
		if msg.Sender == models.SenderAI && strings.TrimSpace(msg.Message) != "" {
			return true
		}
	}
	return false
}
