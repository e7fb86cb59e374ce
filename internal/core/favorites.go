// ABOUTME: FavoriteService keeps the favorites ledger, role counters and conversation flag in step
// ABOUTME: Every toggle is a single store transaction
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harper/companion/internal/apperr"
	"github.com/harper/companion/internal/logger"
	"github.com/harper/companion/internal/models"
	"github.com/harper/companion/internal/roles"
	"github.com/harper/companion/internal/storage"
)

// FavoriteResult reports what a toggle changed
type FavoriteResult struct {
	RoleID string `json:"roleId"`
	// Changed is false when the ledger already matched the request
	Changed bool `json:"changed"`
	// Created is true when favoriting created the conversation
	Created bool `json:"created"`
}

// FavoriteService toggles favorite roles for a user
type FavoriteService struct {
	store storage.Store
	roles RoleSource
	log   *logger.Logger
	now   func() time.Time
}

// NewFavoriteService creates a favorite service
func NewFavoriteService(store storage.Store, roles RoleSource, log *logger.Logger) *FavoriteService {
	if log == nil {
		log = logger.Nop()
	}
	return &FavoriteService{store: store, roles: roles, log: log, now: time.Now}
}

// SetClock replaces the time source
func (f *FavoriteService) SetClock(now func() time.Time) {
	if now != nil {
		f.now = now
	}
}

// Add favorites a role, creating its conversation flagged as favorite when absent
func (f *FavoriteService) Add(ctx context.Context, userID, roleID string) (*FavoriteResult, error) {
	if err := validateIDs(userID, roleID); err != nil {
		return nil, err
	}
	role, err := f.roles.GetByID(ctx, strings.TrimSpace(roleID), true)
	if err != nil {
		return nil, err
	}

	now := models.Millis(f.now())
	defaults := BuildDefaults(role.ID, role, now)
	defaults.IsFavorite = true
	convData, err := defaults.Document()
	if err != nil {
		return nil, err
	}

	result := &FavoriteResult{RoleID: role.ID}
	err = f.store.RunTransaction(ctx, func(tx storage.Tx) error {
		result.Changed, result.Created = false, false

		favPath := storage.FavoritePath(userID, role.ID)
		fav, err := tx.Get(favPath)
		if err != nil {
			return err
		}
		if fav.Exists {
			if err := tx.Set(favPath, map[string]any{"updatedAt": now}, true); err != nil {
				return err
			}
		} else {
			entry := map[string]any{"roleId": role.ID, "userId": userID, "createdAt": now, "updatedAt": now}
			if err := tx.Set(favPath, entry, false); err != nil {
				return err
			}
			if err := adjustFavoriteCount(tx, role.ID, 1, now); err != nil {
				return err
			}
			result.Changed = true
		}

		convPath := storage.ConversationPath(userID, role.ID)
		conv, err := tx.Get(convPath)
		if err != nil {
			return err
		}
		if !conv.Exists {
			result.Created = true
			return tx.Set(convPath, convData, false)
		}
		updatedAt := now
		if prev := models.MillisFrom(conv.Data["updatedAt"]); prev != nil && *prev > updatedAt {
			updatedAt = *prev
		}
		return tx.Set(convPath, map[string]any{
			"isFavorite": true,
			"archivedAt": nil,
			"isArchived": false,
			"updatedAt":  updatedAt,
		}, true)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to favorite role %s: %w", role.ID, err)
	}

	if result.Changed {
		f.invalidate(ctx, role.ID, role.Slug, roleID)
	}
	f.log.Info("favorited role", "user_id", userID, "role_id", role.ID, "changed", result.Changed, "created", result.Created)
	return result, nil
}

// Remove unfavorites a role. Conversation history is left alone.
func (f *FavoriteService) Remove(ctx context.Context, userID, roleID string) (*FavoriteResult, error) {
	if err := validateIDs(userID, roleID); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(roleID)
	keys := []string{id}
	role, err := f.roles.GetByID(ctx, id, false)
	switch {
	case err == nil:
		id = role.ID
		keys = append(keys, role.ID, role.Slug)
	case !apperr.Is(err, apperr.KindNotFound):
		return nil, err
	}

	now := models.Millis(f.now())
	result := &FavoriteResult{RoleID: id}
	err = f.store.RunTransaction(ctx, func(tx storage.Tx) error {
		result.Changed = false

		favPath := storage.FavoritePath(userID, id)
		fav, err := tx.Get(favPath)
		if err != nil {
			return err
		}
		if fav.Exists {
			if err := tx.Delete(favPath); err != nil {
				return err
			}
			if err := adjustFavoriteCount(tx, id, -1, now); err != nil {
				return err
			}
			result.Changed = true
		}

		convPath := storage.ConversationPath(userID, id)
		conv, err := tx.Get(convPath)
		if err != nil {
			return err
		}
		if !conv.Exists {
			return nil
		}
		return tx.Set(convPath, map[string]any{"isFavorite": false}, true)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unfavorite role %s: %w", id, err)
	}

	if result.Changed {
		f.invalidate(ctx, keys...)
	}
	f.log.Info("unfavorited role", "user_id", userID, "role_id", id, "changed", result.Changed)
	return result, nil
}

// List returns the user's favorites, newest first
func (f *FavoriteService) List(ctx context.Context, userID string) ([]models.Favorite, error) {
	if strings.TrimSpace(userID) == "" || strings.Contains(userID, "/") {
		return nil, apperr.Validation("userId", "user id is required")
	}
	docs, err := f.store.Query(ctx, storage.Query{
		Collection: storage.FavoritesPath(userID),
		OrderBy:    "createdAt",
		Desc:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	out := make([]models.Favorite, 0, len(docs))
	for _, doc := range docs {
		fav := models.Favorite{
			RoleID: textOr(doc.Data["roleId"], doc.ID),
			UserID: textOr(doc.Data["userId"], userID),
		}
		if at := models.MillisFrom(doc.Data["createdAt"]); at != nil {
			fav.CreatedAt = *at
		}
		if at := models.MillisFrom(doc.Data["updatedAt"]); at != nil {
			fav.UpdatedAt = *at
		}
		out = append(out, fav)
	}
	return out, nil
}

// adjustFavoriteCount moves the role's favorites counter by delta, never below zero.
// Missing roles are skipped.
func adjustFavoriteCount(tx storage.Tx, roleID string, delta int, now int64) error {
	path := storage.RolePath(roleID)
	doc, err := tx.Get(path)
	if err != nil {
		return err
	}
	if !doc.Exists {
		return nil
	}

	metrics := map[string]any{}
	if existing, ok := doc.Data["metrics"].(map[string]any); ok {
		for k, v := range existing {
			metrics[k] = v
		}
	}
	count := roles.Counter(metrics["favorites"]) + delta
	if count < 0 {
		count = 0
	}
	metrics["favorites"] = count
	return tx.Set(path, map[string]any{"metrics": metrics, "updatedAt": now}, true)
}

// invalidate drops every cache key the role may have been looked up by
func (f *FavoriteService) invalidate(ctx context.Context, keys ...string) {
	inv, ok := f.roles.(roleInvalidator)
	if !ok {
		return
	}
	seen := make(map[string]struct{}, len(keys))
	unique := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}
	inv.Invalidate(ctx, unique...)
}

func textOr(v any, fallback string) string {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return fallback
}
