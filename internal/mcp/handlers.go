// ABOUTME: MCP tool handler implementations for the companion server
// ABOUTME: Maps tool arguments onto the conversation core and tagged errors onto tool errors
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harper/companion/internal/apperr"
	"github.com/harper/companion/internal/core"
	"github.com/harper/companion/internal/logger"
	"github.com/harper/companion/internal/roles"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	conversations *core.ConversationService
	favorites     *core.FavoriteService
	roles         *roles.Service
	userID        string
	log           *logger.Logger
}

// NewHandlers creates handlers acting on behalf of userID
func NewHandlers(conversations *core.ConversationService, favorites *core.FavoriteService, roleService *roles.Service, userID string, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.Nop()
	}
	return &Handlers{
		conversations: conversations,
		favorites:     favorites,
		roles:         roleService,
		userID:        userID,
		log:           log,
	}
}

// ListConversations handles the list_conversations tool
func (h *Handlers) ListConversations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversations, err := h.conversations.List(ctx, h.userID)
	if err != nil {
		return h.toolError("list conversations", err), nil
	}
	return jsonResult(map[string]interface{}{"conversations": conversations})
}

// GetConversation handles the get_conversation tool
func (h *Handlers) GetConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}

	res, err := h.conversations.Ensure(ctx, h.userID, conversationID)
	if err != nil {
		return h.toolError("get conversation", err), nil
	}
	return jsonResult(map[string]interface{}{
		"conversation": res.Conversation,
		"created":      res.Created,
	})
}

// SendMessage handles the send_message tool
func (h *Handlers) SendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message argument is required and must be a string"), nil
	}

	res, err := h.conversations.SendMessage(ctx, core.SendRequest{
		UserID:         h.userID,
		ConversationID: conversationID,
		Message:        message,
		ExplicitTier:   optionalTier(request),
	})
	if err != nil {
		return h.toolError("send message", err), nil
	}

	return jsonResult(map[string]interface{}{
		"user_message": res.UserMessage,
		"ai_message":   res.AIMessage,
		"conversation": res.Conversation,
		"tier":         res.Selection.Tier,
		"model":        res.Selection.Model,
	})
}

// GetMessages handles the get_messages tool
func (h *Handlers) GetMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}
	limit := request.GetInt("limit", core.DefaultMessagesLimit)

	messages, err := h.conversations.Messages(ctx, h.userID, conversationID, limit)
	if err != nil {
		return h.toolError("get messages", err), nil
	}
	return jsonResult(map[string]interface{}{"messages": messages})
}

// GenerateSuggestions handles the generate_suggestions tool
func (h *Handlers) GenerateSuggestions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}

	suggestions, err := h.conversations.GenerateSuggestions(ctx, core.SuggestRequest{
		UserID:         h.userID,
		ConversationID: conversationID,
		ExplicitTier:   optionalTier(request),
		Limit:          request.GetInt("count", core.DefaultSuggestionCount),
	})
	if err != nil {
		return h.toolError("generate suggestions", err), nil
	}
	return jsonResult(map[string]interface{}{"suggestions": suggestions})
}

// ClearMessages handles the clear_messages tool
func (h *Handlers) ClearMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}
	if err := h.conversations.ClearMessages(ctx, h.userID, conversationID); err != nil {
		return h.toolError("clear messages", err), nil
	}
	return jsonResult(map[string]interface{}{"success": true})
}

// DeleteConversation handles the delete_conversation tool
func (h *Handlers) DeleteConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}
	if err := h.conversations.Delete(ctx, h.userID, conversationID); err != nil {
		return h.toolError("delete conversation", err), nil
	}
	return jsonResult(map[string]interface{}{"success": true})
}

// SetFavorite handles the set_favorite tool
func (h *Handlers) SetFavorite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roleID, err := request.RequireString("role_id")
	if err != nil {
		return mcp.NewToolResultError("role_id argument is required and must be a string"), nil
	}

	favorite := true
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		if v, ok := args["favorite"].(bool); ok {
			favorite = v
		}
	}

	var res *core.FavoriteResult
	if favorite {
		res, err = h.favorites.Add(ctx, h.userID, roleID)
	} else {
		res, err = h.favorites.Remove(ctx, h.userID, roleID)
	}
	if err != nil {
		return h.toolError("set favorite", err), nil
	}

	return jsonResult(map[string]interface{}{
		"role_id":  res.RoleID,
		"favorite": favorite,
		"changed":  res.Changed,
		"created":  res.Created,
	})
}

// ListRoles handles the list_roles tool
func (h *Handlers) ListRoles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.roles.List(ctx, true, "published")
	if err != nil {
		return h.toolError("list roles", err), nil
	}

	cards := make([]interface{}, 0, len(list))
	for i := range list {
		cards = append(cards, core.CardFromRole(&list[i]))
	}
	return jsonResult(map[string]interface{}{"roles": cards})
}

// UpdateConversationImage handles the update_conversation_image tool
func (h *Handlers) UpdateConversationImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}

	var update core.ImageUpdate
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		if v, ok := args["image"].(string); ok {
			update.Image = &v
		}
		if v, ok := args["image_storage_path"].(string); ok {
			update.ImageStoragePath = &v
		}
	}

	conv, err := h.conversations.UpdateImage(ctx, h.userID, conversationID, update)
	if err != nil {
		return h.toolError("update image", err), nil
	}
	return jsonResult(map[string]interface{}{"conversation": conv})
}

func optionalTier(request mcp.CallToolRequest) any {
	if tier := request.GetString("tier", ""); tier != "" {
		return tier
	}
	return nil
}

// toolError reports err to the agent with its kind. Internal errors are logged.
func (h *Handlers) toolError(op string, err error) *mcp.CallToolResult {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindUpstream {
		h.log.Error("tool failed", "op", op, "kind", kind.String(), "error", err)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed (%s): %v", op, kind, err))
}

func jsonResult(response map[string]interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
