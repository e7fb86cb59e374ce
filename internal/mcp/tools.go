// ABOUTME: MCP tool definitions and registration for the companion server
// ABOUTME: Defines JSON schemas for the conversation, suggestion, favorite and role tools
package mcp

import (
	"github.com/harper/companion/internal/core"
	"github.com/harper/companion/internal/logger"
	"github.com/harper/companion/internal/roles"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func conversationIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Conversation id (the companion role id or slug)",
	}
}

func tierProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Optional membership tier override (visitor, basic, basic_plus, vip, vip_plus)",
	}
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, conversations *core.ConversationService, favorites *core.FavoriteService, roleService *roles.Service, userID string, log *logger.Logger) *Handlers {
	handlers := NewHandlers(conversations, favorites, roleService, userID, log)

	// 1. list_conversations
	server.AddTool(mcp.Tool{
		Name:        "list_conversations",
		Description: "List the user's most recently updated conversations with their companion metadata.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListConversations)

	// 2. get_conversation
	server.AddTool(mcp.Tool{
		Name:        "get_conversation",
		Description: "Get a conversation, creating it from its companion role on first use.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.GetConversation)

	// 3. send_message
	server.AddTool(mcp.Tool{
		Name:        "send_message",
		Description: "Send a message to a companion and return its reply.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Message text",
				},
				"tier": tierProperty(),
			},
			Required: []string{"conversation_id", "message"},
		},
	}, handlers.SendMessage)

	// 4. get_messages
	server.AddTool(mcp.Tool{
		Name:        "get_messages",
		Description: "Get the most recent messages of a conversation, oldest first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of messages (default: 60)",
					"default":     core.DefaultMessagesLimit,
				},
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.GetMessages)

	// 5. generate_suggestions
	server.AddTool(mcp.Tool{
		Name:        "generate_suggestions",
		Description: "Suggest short replies the user could send next.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
				"count": map[string]interface{}{
					"type":        "number",
					"description": "Number of suggestions (default: 3)",
					"default":     core.DefaultSuggestionCount,
				},
				"tier": tierProperty(),
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.GenerateSuggestions)

	// 6. clear_messages
	server.AddTool(mcp.Tool{
		Name:        "clear_messages",
		Description: "Delete every message in a conversation but keep the conversation.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.ClearMessages)

	// 7. delete_conversation
	server.AddTool(mcp.Tool{
		Name:        "delete_conversation",
		Description: "Delete a conversation and all of its messages.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.DeleteConversation)

	// 8. set_favorite
	server.AddTool(mcp.Tool{
		Name:        "set_favorite",
		Description: "Favorite or unfavorite a companion role. Favoriting creates the conversation if needed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"role_id": map[string]interface{}{
					"type":        "string",
					"description": "Role id or slug",
				},
				"favorite": map[string]interface{}{
					"type":        "boolean",
					"description": "true to favorite, false to unfavorite (default: true)",
					"default":     true,
				},
			},
			Required: []string{"role_id"},
		},
	}, handlers.SetFavorite)

	// 9. list_roles
	server.AddTool(mcp.Tool{
		Name:        "list_roles",
		Description: "List the published companion roles.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListRoles)

	// 10. update_conversation_image
	server.AddTool(mcp.Tool{
		Name:        "update_conversation_image",
		Description: "Set or clear a conversation's display image. An empty string clears the field.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": conversationIDProperty(),
				"image": map[string]interface{}{
					"type":        "string",
					"description": "Image URL",
				},
				"image_storage_path": map[string]interface{}{
					"type":        "string",
					"description": "Storage path of an uploaded image",
				},
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.UpdateConversationImage)

	return handlers
}
