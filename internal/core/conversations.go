// ABOUTME: ConversationService reconciles stored conversations and runs chat turns
// ABOUTME: Reads self-heal incomplete records; writes are merge-only and idempotent
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harper/companion/internal/apperr"
	"github.com/harper/companion/internal/llm"
	"github.com/harper/companion/internal/logger"
	"github.com/harper/companion/internal/membership"
	"github.com/harper/companion/internal/models"
	"github.com/harper/companion/internal/storage"
	"github.com/harper/companion/internal/textnorm"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHistoryLimit  = 40
	DefaultListLimit     = 20
	DefaultMessagesLimit = 60

	deleteChunkSize  = 400
	listConcurrency  = 4
	replyTemperature = 0.8
	replyMaxTokens   = 600
	suggestTemp      = 0.9
)

// RoleSource resolves roles by id or slug
type RoleSource interface {
	GetByID(ctx context.Context, id string, ensureSeed bool) (*models.Role, error)
}

// ModelSelector picks the tier and model for a call
type ModelSelector interface {
	Select(in membership.Input) membership.Selection
}

// roleInvalidator is implemented by role sources that cache
type roleInvalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

// EnsureResult is a reconciled conversation and whether this call created it
type EnsureResult struct {
	Conversation *models.Conversation `json:"conversation"`
	Created      bool                 `json:"created"`
}

// SendRequest is one user turn
type SendRequest struct {
	UserID         string
	ConversationID string
	Message        string
	Claims         map[string]any
	ExplicitTier   any
}

// SendResult holds both persisted messages and the updated conversation
type SendResult struct {
	UserMessage  models.Message       `json:"userMessage"`
	AIMessage    models.Message       `json:"aiMessage"`
	Conversation *models.Conversation `json:"conversation"`
	Selection    membership.Selection `json:"selection"`
}

// SuggestRequest asks for reply suggestions on a conversation
type SuggestRequest struct {
	UserID         string
	ConversationID string
	Claims         map[string]any
	ExplicitTier   any
	Limit          int
}

// ConversationInput creates or updates a conversation explicitly.
// Nil fields are left untouched.
type ConversationInput struct {
	ConversationID   string
	AIName           *string
	AIPersona        *string
	Summary          *string
	Tags             []string
	SampleMessages   []string
	Card             map[string]any
	Image            *string
	ImageStoragePath *string
	IsFavorite       *bool
	IntimacyLevel    any
	IntimacyLabel    *string
}

// ImageUpdate sets or clears the display image. A pointer to "" clears the field.
type ImageUpdate struct {
	Image            *string
	ImageStoragePath *string
}

// ConversationService owns per-user conversations and their messages
type ConversationService struct {
	store    storage.Store
	roles    RoleSource
	provider llm.Provider
	selector ModelSelector
	log      *logger.Logger
	now      func() time.Time

	historyLimit int
	listLimit    int
}

// NewConversationService wires the service to its collaborators
func NewConversationService(store storage.Store, roles RoleSource, provider llm.Provider, selector ModelSelector, log *logger.Logger) *ConversationService {
	if log == nil {
		log = logger.Nop()
	}
	if selector == nil {
		selector = membership.NewResolver(nil)
	}
	return &ConversationService{
		store:        store,
		roles:        roles,
		provider:     provider,
		selector:     selector,
		log:          log,
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
		listLimit:    DefaultListLimit,
	}
}

// SetLimits overrides the prompt history and list sizes. Non-positive values are ignored.
func (s *ConversationService) SetLimits(history, list int) {
	if history > 0 {
		s.historyLimit = history
	}
	if list > 0 {
		s.listLimit = list
	}
}

// SetClock replaces the time source
func (s *ConversationService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *ConversationService) nowMillis() int64 {
	return models.Millis(s.now())
}

func validateIDs(userID, conversationID string) error {
	if strings.TrimSpace(userID) == "" || strings.Contains(userID, "/") {
		return apperr.Validation("userId", "user id is required")
	}
	if strings.TrimSpace(conversationID) == "" || strings.Contains(conversationID, "/") {
		return apperr.Validation("conversationId", "conversation id is required")
	}
	return nil
}

// Ensure returns the reconciled conversation, creating it from its role when absent
func (s *ConversationService) Ensure(ctx context.Context, userID, conversationID string) (*EnsureResult, error) {
	conversationID = strings.TrimSpace(conversationID)
	if err := validateIDs(userID, conversationID); err != nil {
		return nil, err
	}

	path := storage.ConversationPath(userID, conversationID)
	doc, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if doc.Exists {
		return &EnsureResult{Conversation: s.reconcile(ctx, doc)}, nil
	}

	role, err := s.roles.GetByID(ctx, conversationID, true)
	if err != nil {
		return nil, err
	}
	// A slug resolves to the conversation keyed by the role id.
	if role.ID != "" && role.ID != conversationID {
		conversationID = role.ID
		path = storage.ConversationPath(userID, conversationID)
		doc, err = s.store.Get(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		if doc.Exists {
			return &EnsureResult{Conversation: s.reconcile(ctx, doc)}, nil
		}
	}
	conv := BuildDefaults(conversationID, role, s.nowMillis())
	data, err := conv.Document()
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, path, data, false); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.log.Info("created conversation", "user_id", userID, "conversation_id", conversationID)
	return &EnsureResult{Conversation: conv, Created: true}, nil
}

// reconcile normalizes doc and repairs it in place. Repair failures are logged, never returned.
func (s *ConversationService) reconcile(ctx context.Context, doc *storage.Document) *models.Conversation {
	conv := NormalizeConversation(doc.ID, doc.Data)

	if !MetadataComplete(conv) {
		refreshed, err := s.refreshMetadata(ctx, doc, conv)
		conv = refreshed
		if err != nil {
			s.log.Warn("conversation metadata refresh failed",
				"conversation_id", conv.ConversationID,
				"error", apperr.Enrichment("refresh metadata", err))
		}
	}

	if patch := membershipPatch(doc.Data); len(patch) > 0 {
		applyMembershipPatch(conv, patch)
		if err := s.store.Set(ctx, doc.Path, patch, true); err != nil {
			s.log.Warn("conversation membership repair failed",
				"conversation_id", conv.ConversationID,
				"error", apperr.Enrichment("repair membership", err))
		}
	}
	return conv
}

// refreshMetadata backfills empty fields from the role. The returned record reflects
// the patch even when persisting it failed.
func (s *ConversationService) refreshMetadata(ctx context.Context, doc *storage.Document, conv *models.Conversation) (*models.Conversation, error) {
	role, err := s.roles.GetByID(ctx, conv.ConversationID, true)
	if err != nil {
		return conv, err
	}

	defaults := BuildDefaults(conv.ConversationID, role, s.nowMillis())
	patch := metadataPatch(doc.Data, conv, defaults)
	if len(patch) == 0 {
		return conv, nil
	}

	merged := NormalizeConversation(doc.ID, storage.MergeFields(doc.Data, patch))
	if err := s.store.Set(ctx, doc.Path, patch, true); err != nil {
		return merged, err
	}
	return merged, nil
}

// List returns the most recently updated conversations, each reconciled
func (s *ConversationService) List(ctx context.Context, userID string) ([]models.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("userId", "user id is required")
	}

	docs, err := s.store.Query(ctx, storage.Query{
		Collection: storage.ConversationsPath(userID),
		OrderBy:    "updatedAt",
		Desc:       true,
		Limit:      s.listLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	out := make([]models.Conversation, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i := range docs {
		g.Go(func() error {
			out[i] = *s.reconcile(gctx, &docs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages returns up to limit of the most recent messages, oldest first
func (s *ConversationService) Messages(ctx context.Context, userID, conversationID string, limit int) ([]models.Message, error) {
	if err := validateIDs(userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessagesLimit
	}
	conversationID, err := s.storedID(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	return s.recentMessages(ctx, userID, conversationID, limit)
}

// storedID maps a role slug to the role id unless a conversation is stored under conversationID itself
func (s *ConversationService) storedID(ctx context.Context, userID, conversationID string) (string, error) {
	conversationID = strings.TrimSpace(conversationID)
	doc, err := s.store.Get(ctx, storage.ConversationPath(userID, conversationID))
	if err != nil {
		return "", fmt.Errorf("failed to load conversation: %w", err)
	}
	if doc.Exists {
		return conversationID, nil
	}
	role, err := s.roles.GetByID(ctx, conversationID, false)
	if err != nil || role.ID == "" {
		return conversationID, nil
	}
	return role.ID, nil
}

func (s *ConversationService) recentMessages(ctx context.Context, userID, conversationID string, limit int) ([]models.Message, error) {
	docs, err := s.store.Query(ctx, storage.Query{
		Collection: storage.MessagesPath(userID, conversationID),
		OrderBy:    "createdAt",
		Desc:       true,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	out := make([]models.Message, len(docs))
	for i, doc := range docs {
		out[len(docs)-1-i] = models.MessageFromDocument(doc.ID, doc.Data)
	}
	return out, nil
}

// SendMessage stores the user's message, asks the provider for a reply and
// records both on the conversation in one merge write
func (s *ConversationService) SendMessage(ctx context.Context, req SendRequest) (*SendResult, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, apperr.Validation("message", "message is required")
	}

	ensured, err := s.Ensure(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	conv := ensured.Conversation
	convID := conv.ConversationID
	path := storage.ConversationPath(req.UserID, convID)

	selection := s.selector.Select(membership.Input{
		ExplicitTier: req.ExplicitTier,
		Claims:       req.Claims,
		Conversation: conv,
	})

	userAt := s.nowMillis()
	if conv.LastMessageAt != nil && *conv.LastMessageAt >= userAt {
		userAt = *conv.LastMessageAt + 1
	}
	userMsg, err := models.NewUserMessage(text, time.UnixMilli(userAt))
	if err != nil {
		return nil, apperr.Validation("message", "%v", err)
	}
	if err := s.store.Set(ctx, storage.MessagePath(req.UserID, convID, userMsg.ID), userMsg.Document(), false); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	history, err := s.recentMessages(ctx, req.UserID, convID, s.historyLimit)
	if err != nil {
		return nil, err
	}
	prompt := BuildPrompt(conv, history, s.introFor(ctx, conv, history))

	completion, err := s.provider.Complete(ctx, prompt, llm.Options{
		Model:           selection.Model,
		Temperature:     replyTemperature,
		MaxOutputTokens: replyMaxTokens,
		Metadata:        map[string]string{"operation": "reply", "tier": string(selection.Tier)},
	})
	if err != nil {
		return nil, apperr.Upstream("send message", err)
	}

	aiAt := s.nowMillis()
	if aiAt <= userAt {
		aiAt = userAt + 1
	}
	aiMsg := models.NewAIMessage(completion.Text, time.UnixMilli(aiAt))
	if err := s.store.Set(ctx, storage.MessagePath(req.UserID, convID, aiMsg.ID), aiMsg.Document(), false); err != nil {
		return nil, fmt.Errorf("failed to store reply: %w", err)
	}

	lastMessage, sender := aiMsg.Message, models.SenderAI
	if lastMessage == "" {
		lastMessage, sender = userMsg.Message, models.SenderUser
	}
	updatedAt := aiAt
	if conv.UpdatedAt != nil && *conv.UpdatedAt > updatedAt {
		updatedAt = *conv.UpdatedAt
	}
	patch := map[string]any{
		"updatedAt":         updatedAt,
		"lastMessage":       lastMessage,
		"lastMessageAt":     aiAt,
		"lastMessageSender": sender,
		"unreadCount":       0,
		"archivedAt":        nil,
		"isArchived":        false,
		"membershipTier":    string(selection.Tier),
		"lastModel":         selection.Model,
		"lastModelSource":   selection.Source,
		"lastModelAt":       aiAt,
	}
	if err := s.store.Set(ctx, path, patch, true); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}

	conv.UpdatedAt = models.Int64Ptr(updatedAt)
	conv.LastMessage = lastMessage
	conv.LastMessageAt = models.Int64Ptr(aiAt)
	conv.LastMessageSender = sender
	conv.UnreadCount = 0
	conv.ArchivedAt = nil
	conv.IsArchived = false
	conv.MembershipTier = string(selection.Tier)
	conv.LastModel = models.StringPtr(selection.Model)
	conv.LastModelSource = models.StringPtr(selection.Source)
	conv.LastModelAt = models.Int64Ptr(aiAt)

	s.log.Debug("sent message",
		"user_id", req.UserID,
		"conversation_id", convID,
		"model", selection.Model,
		"tier", selection.Tier,
		"history", len(history))

	return &SendResult{UserMessage: *userMsg, AIMessage: *aiMsg, Conversation: conv, Selection: selection}, nil
}

// introFor synthesizes the assistant's opening line when history has no AI turn
func (s *ConversationService) introFor(ctx context.Context, conv *models.Conversation, history []models.Message) string {
	if hasAssistantTurn(history) {
		return ""
	}
	if len(conv.SampleMessages) > 0 {
		return conv.SampleMessages[0]
	}

	role, err := s.roles.GetByID(ctx, conv.ConversationID, false)
	if err != nil {
		s.log.Warn("intro lookup failed",
			"conversation_id", conv.ConversationID,
			"error", apperr.Enrichment("intro", err))
		return ""
	}
	if samples := CardFromRole(role).SampleMessages; len(samples) > 0 {
		return samples[0]
	}
	return ""
}

// GenerateSuggestions asks the provider for reply ideas and recovers a full set from whatever comes back
func (s *ConversationService) GenerateSuggestions(ctx context.Context, req SuggestRequest) ([]string, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSuggestionCount
	}

	ensured, err := s.Ensure(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	conv := ensured.Conversation

	selection := s.selector.Select(membership.Input{
		ExplicitTier: req.ExplicitTier,
		Claims:       req.Claims,
		Conversation: conv,
	})

	history, err := s.recentMessages(ctx, req.UserID, conv.ConversationID, s.historyLimit)
	if err != nil {
		return nil, err
	}
	prompt := BuildPrompt(conv, history, s.introFor(ctx, conv, history))
	prompt = append(prompt, llm.Message{Role: llm.RoleUser, Content: SuggestionPrompt})

	completion, err := s.provider.Complete(ctx, prompt, llm.Options{
		Model:       selection.Model,
		Temperature: suggestTemp,
		Metadata:    map[string]string{"operation": "suggestions", "tier": string(selection.Tier)},
	})
	if err != nil {
		return nil, apperr.Upstream("generate suggestions", err)
	}

	return RecoverSuggestions(completion.Text, PersonaHintsFrom(conv), limit), nil
}

// ClearMessages deletes every message and resets the preview fields.
// Clearing a conversation that was never stored is NotFound.
func (s *ConversationService) ClearMessages(ctx context.Context, userID, conversationID string) error {
	if err := validateIDs(userID, conversationID); err != nil {
		return err
	}
	conversationID, err := s.storedID(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	doc, err := s.store.Get(ctx, storage.ConversationPath(userID, conversationID))
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	if !doc.Exists {
		return apperr.NotFound("conversation", conversationID)
	}
	conv := NormalizeConversation(doc.ID, doc.Data)

	if _, err := s.deleteMessages(ctx, userID, conv.ConversationID, nil); err != nil {
		return err
	}

	now := s.nowMillis()
	updatedAt := now
	if conv.UpdatedAt != nil && *conv.UpdatedAt > updatedAt {
		updatedAt = *conv.UpdatedAt
	}
	patch := map[string]any{
		"updatedAt":     updatedAt,
		"lastClearedAt": now,
		"lastMessage":   "",
		"lastMessageAt": nil,
	}
	if err := s.store.Set(ctx, storage.ConversationPath(userID, conv.ConversationID), patch, true); err != nil {
		return fmt.Errorf("failed to reset conversation: %w", err)
	}
	return nil
}

// deleteMessages removes messages in chunks. With a non-nil batch, deletes are
// queued on it instead of committed, and the whole collection is read at once.
func (s *ConversationService) deleteMessages(ctx context.Context, userID, conversationID string, batch storage.Batch) (int, error) {
	collection := storage.MessagesPath(userID, conversationID)
	if batch != nil {
		docs, err := s.store.Query(ctx, storage.Query{Collection: collection})
		if err != nil {
			return 0, fmt.Errorf("failed to load messages: %w", err)
		}
		for _, doc := range docs {
			batch.Delete(doc.Path)
		}
		return len(docs), nil
	}

	total := 0
	for {
		docs, err := s.store.Query(ctx, storage.Query{Collection: collection, Limit: deleteChunkSize})
		if err != nil {
			return total, fmt.Errorf("failed to load messages: %w", err)
		}
		if len(docs) == 0 {
			return total, nil
		}
		chunk := s.store.Batch()
		for _, doc := range docs {
			chunk.Delete(doc.Path)
		}
		if err := chunk.Commit(ctx); err != nil {
			return total, fmt.Errorf("failed to delete messages: %w", err)
		}
		total += len(docs)
	}
}

// Delete removes the conversation and all of its messages atomically.
// Deleting a missing conversation is a no-op.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	if err := validateIDs(userID, conversationID); err != nil {
		return err
	}
	conversationID, err := s.storedID(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	path := storage.ConversationPath(userID, conversationID)
	doc, err := s.store.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	batch := s.store.Batch()
	count, err := s.deleteMessages(ctx, userID, conversationID, batch)
	if err != nil {
		return err
	}
	if !doc.Exists && count == 0 {
		return nil
	}
	batch.Delete(path)
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	s.log.Info("deleted conversation", "user_id", userID, "conversation_id", conversationID, "messages", count)
	return nil
}

// Upsert creates the conversation if needed and applies the supplied fields
func (s *ConversationService) Upsert(ctx context.Context, userID string, in ConversationInput) (*EnsureResult, error) {
	ensured, err := s.Ensure(ctx, userID, in.ConversationID)
	if err != nil {
		return nil, err
	}
	conv := ensured.Conversation

	patch := map[string]any{}
	card := NormalizeCard(in.Card)
	if card != nil {
		if textnorm.String(in.Card["name"]) == "" {
			card.Name = firstSet(in.AIName, conv.AIName)
		}
		doc, err := models.ToDocument(card)
		if err != nil {
			return nil, err
		}
		patch["card"] = doc
	}

	switch {
	case in.Tags != nil:
		patch["tags"] = textnorm.StringList(in.Tags)
	case card != nil && len(card.Tags) > 0:
		patch["tags"] = card.Tags
	}

	var cardSamples []string
	if card != nil {
		cardSamples = card.SampleMessages
	}
	if samples := MergeSampleMessages(in.SampleMessages, cardSamples); len(samples) > 0 {
		patch["sampleMessages"] = samples
	}

	var cardName, cardPersona, cardSummary string
	if card != nil {
		cardName, cardPersona, cardSummary = textnorm.String(in.Card["name"]), card.Persona, card.Summary
	}
	if name := firstSet(in.AIName, cardName); name != "" {
		patch["aiName"] = name
	}
	persona := firstSet(in.AIPersona, cardPersona)
	if persona != "" {
		patch["aiPersona"] = persona
	}
	if summary := firstSet(in.Summary, cardSummary, persona); summary != "" {
		patch["summary"] = summary
		patch["bio"] = summary
	}

	if in.Image != nil {
		patch["image"] = nullable(*in.Image)
	}
	if in.ImageStoragePath != nil {
		patch["imageStoragePath"] = nullable(*in.ImageStoragePath)
	}
	if in.IsFavorite != nil {
		patch["isFavorite"] = *in.IsFavorite
	}

	if in.IntimacyLevel != nil || in.IntimacyLabel != nil {
		level := in.IntimacyLevel
		if level == nil {
			level = conv.Intimacy.Level
		}
		var label any
		if in.IntimacyLabel != nil {
			label = *in.IntimacyLabel
		}
		intimacy := ResolveIntimacy(level, label)
		patch["intimacy"] = map[string]any{"level": intimacy.Level, "label": intimacy.Label}
		patch["intimacyLabel"] = intimacy.Label
	}

	if len(patch) == 0 {
		return ensured, nil
	}
	return s.applyPatch(ctx, userID, conv, patch, ensured.Created)
}

// UpdateImage sets or clears the display image fields
func (s *ConversationService) UpdateImage(ctx context.Context, userID, conversationID string, update ImageUpdate) (*models.Conversation, error) {
	if update.Image == nil && update.ImageStoragePath == nil {
		return nil, apperr.Validation("image", "no image fields provided")
	}
	ensured, err := s.Ensure(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	patch := map[string]any{}
	if update.Image != nil {
		patch["image"] = nullable(*update.Image)
	}
	if update.ImageStoragePath != nil {
		patch["imageStoragePath"] = nullable(*update.ImageStoragePath)
	}
	result, err := s.applyPatch(ctx, userID, ensured.Conversation, patch, false)
	if err != nil {
		return nil, err
	}
	return result.Conversation, nil
}

func (s *ConversationService) applyPatch(ctx context.Context, userID string, conv *models.Conversation, patch map[string]any, created bool) (*EnsureResult, error) {
	updatedAt := s.nowMillis()
	if conv.UpdatedAt != nil && *conv.UpdatedAt > updatedAt {
		updatedAt = *conv.UpdatedAt
	}
	patch["updatedAt"] = updatedAt

	path := storage.ConversationPath(userID, conv.ConversationID)
	if err := s.store.Set(ctx, path, patch, true); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	doc, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload conversation: %w", err)
	}
	return &EnsureResult{Conversation: NormalizeConversation(doc.ID, doc.Data), Created: created}, nil
}

func firstSet(ptr *string, fallbacks ...string) string {
	if ptr != nil {
		if s := strings.TrimSpace(*ptr); s != "" {
			return s
		}
	}
	for _, f := range fallbacks {
		if s := strings.TrimSpace(f); s != "" {
			return s
		}
	}
	return ""
}

func nullable(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}
