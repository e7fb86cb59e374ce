// ABOUTME: Document path helpers for users, conversations, messages, roles and favorites
// ABOUTME: Paths alternate collection/document segments separated by slashes
package storage

import (
	"fmt"
	"strings"
)

const (
	UsersCollection     = "users"
	RolesCollection     = "ai_roles"
	FavoritesCollection = "match_favorites"
)

// ConversationsPath is the collection holding a user's conversations
func ConversationsPath(userID string) string {
	return UsersCollection + "/" + userID + "/conversations"
}

// ConversationPath is the document path of one conversation
func ConversationPath(userID, conversationID string) string {
	return ConversationsPath(userID) + "/" + conversationID
}

// MessagesPath is the message sub-collection of a conversation
func MessagesPath(userID, conversationID string) string {
	return ConversationPath(userID, conversationID) + "/messages"
}

// MessagePath is the document path of one message
func MessagePath(userID, conversationID, messageID string) string {
	return MessagesPath(userID, conversationID) + "/" + messageID
}

// RolePath is the document path of a role
func RolePath(roleID string) string {
	return RolesCollection + "/" + roleID
}

// FavoritesPath is the collection of a user's favorited roles
func FavoritesPath(userID string) string {
	return FavoritesCollection + "/" + userID + "/roles"
}

// FavoritePath is the ledger entry for one (user, role) pair
func FavoritePath(userID, roleID string) string {
	return FavoritesPath(userID) + "/" + roleID
}

// SplitPath returns the collection and document id of a document path
func SplitPath(path string) (collection, id string, err error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", fmt.Errorf("invalid document path %q", path)
	}
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			return "", "", fmt.Errorf("invalid document path %q: empty segment", path)
		}
	}
	last := len(segments) - 1
	return strings.Join(segments[:last], "/"), segments[last], nil
}

// ValidCollection reports whether path names a collection (odd segment count)
func ValidCollection(path string) bool {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments)%2 != 1 {
		return false
	}
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			return false
		}
	}
	return true
}

// MergeFields overlays patch onto base one level deep and returns a new map
func MergeFields(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
