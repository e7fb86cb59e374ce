// ABOUTME: Tests for ConversationService reconciliation, chat turns and housekeeping
// ABOUTME: Runs against in-memory SQLite with seeded roles and a scripted provider
package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/harper/companion/internal/apperr"
	"github.com/harper/companion/internal/llm"
	"github.com/harper/companion/internal/membership"
	"github.com/harper/companion/internal/models"
	"github.com/harper/companion/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (fx *fixture) stored(t *testing.T, conversationID string) *storage.Document {
	t.Helper()
	doc, err := fx.store.Get(context.Background(), storage.ConversationPath(testUser, conversationID))
	require.NoError(t, err)
	return doc
}

func (fx *fixture) put(t *testing.T, conversationID string, data map[string]any) {
	t.Helper()
	err := fx.store.Store.Set(context.Background(), storage.ConversationPath(testUser, conversationID), data, false)
	require.NoError(t, err)
}

func TestEnsure_CreatesFromRole(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res, err := fx.convs.Ensure(ctx, testUser, lunaID)
	require.NoError(t, err)

	assert.True(t, res.Created)
	conv := res.Conversation
	assert.Equal(t, lunaID, conv.ConversationID)
	assert.Equal(t, "月光 DJ 露娜", conv.AIName)
	assert.NotEmpty(t, conv.SampleMessages)
	assert.Equal(t, "visitor", conv.MembershipTier)
	assert.True(t, MetadataComplete(conv))
	assert.Equal(t, int64(1), fx.store.writes.Load())

	doc := fx.stored(t, lunaID)
	require.True(t, doc.Exists)
	assert.Equal(t, "月光 DJ 露娜", doc.Data["aiName"])
	assert.NotContains(t, doc.Data, "id")
}

func TestEnsure_ByRoleSlug(t *testing.T) {
	fx := newFixture(t)

	ctx := context.Background()

	res, err := fx.convs.Ensure(ctx, testUser, "luna-dj")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, lunaID, res.Conversation.AIRoleID)
	assert.Equal(t, lunaID, res.Conversation.ConversationID)
	assert.False(t, fx.stored(t, "luna-dj").Exists)

	again, err := fx.convs.Ensure(ctx, testUser, lunaID)
	require.NoError(t, err)
	assert.False(t, again.Created)
}

func TestEnsure_CompleteRecordWritesNothing(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.convs.Ensure(ctx, testUser, lunaID)
	require.NoError(t, err)
	before := fx.stored(t, lunaID).Data
	fx.store.writes.Store(0)

	for i := 0; i < 3; i++ {
		res, err := fx.convs.Ensure(ctx, testUser, lunaID)
		require.NoError(t, err)
		assert.False(t, res.Created)
	}

	assert.Equal(t, int64(0), fx.store.writes.Load())
	assert.Equal(t, before, fx.stored(t, lunaID).Data)
}

func TestEnsure_BackfillsIncompleteRecord(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.put(t, lunaID, map[string]any{
		"aiName":         "My Luna",
		"membershipTier": "gold",
		"lastModel":      float64(4),
		"intimacy":       map[string]any{"level": float64(3), "label": "親密等級 5"},
	})

	res, err := fx.convs.Ensure(ctx, testUser, lunaID)
	require.NoError(t, err)

	conv := res.Conversation
	assert.False(t, res.Created)
	assert.True(t, MetadataComplete(conv))
	assert.Equal(t, "My Luna", conv.AIName)
	assert.Equal(t, "vip_plus", conv.MembershipTier)
	assert.Equal(t, "4", models.Deref(conv.LastModel))
	assert.Equal(t, models.Intimacy{Level: 3, Label: "親密度等級 3"}, conv.Intimacy)

	doc := fx.stored(t, lunaID)
	assert.Equal(t, "My Luna", doc.Data["aiName"])
	assert.NotEmpty(t, doc.Data["summary"])
	assert.NotEmpty(t, doc.Data["sampleMessages"])
	assert.Equal(t, "vip_plus", doc.Data["membershipTier"])
	assert.Equal(t, "4", doc.Data["lastModel"])

	fx.store.writes.Store(0)
	_, err = fx.convs.Ensure(ctx, testUser, lunaID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fx.store.writes.Load())
}

func TestEnsure_EnrichmentFailuresAreSwallowed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	t.Run("role gone", func(t *testing.T) {
		fx.put(t, "ghost", map[string]any{"aiName": "Ghost"})

		res, err := fx.convs.Ensure(ctx, testUser, "ghost")
		require.NoError(t, err)
		assert.Equal(t, "Ghost", res.Conversation.AIName)
		assert.False(t, MetadataComplete(res.Conversation))
	})

	t.Run("writes refused", func(t *testing.T) {
		fx.put(t, emiliaID, map[string]any{"membershipTier": "nonsense"})
		fx.store.failSet.Store(true)
		defer fx.store.failSet.Store(false)

		res, err := fx.convs.Ensure(ctx, testUser, emiliaID)
		require.NoError(t, err)
		assert.True(t, MetadataComplete(res.Conversation))
		assert.Equal(t, "visitor", res.Conversation.MembershipTier)
		assert.Nil(t, fx.stored(t, emiliaID).Data["summary"])
	})
}

func TestEnsure_Errors(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.convs.Ensure(ctx, testUser, "no-such-role")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = fx.convs.Ensure(ctx, "", lunaID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = fx.convs.Ensure(ctx, testUser, "a/b")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSendMessage(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.provider.reply = "  今晚一起跳舞吧  "

	res, err := fx.convs.SendMessage(ctx, SendRequest{UserID: testUser, ConversationID: lunaID, Message: " 嗨 "})
	require.NoError(t, err)

	assert.Equal(t, "嗨", res.UserMessage.Message)
	assert.Equal(t, "今晚一起跳舞吧", res.AIMessage.Message)
	assert.Greater(t, res.AIMessage.CreatedAt, res.UserMessage.CreatedAt)
	assert.Equal(t, membership.TierVisitor, res.Selection.Tier)
	assert.Equal(t, membership.SourceConversation, res.Selection.Source)

	conv := res.Conversation
	assert.Equal(t, "今晚一起跳舞吧", conv.LastMessage)
	assert.Equal(t, models.SenderAI, conv.LastMessageSender)
	assert.Equal(t, "gpt-4o-mini", models.Deref(conv.LastModel))

	opts := fx.provider.opts[0]
	assert.Equal(t, "gpt-4o-mini", opts.Model)
	assert.InDelta(t, 0.8, opts.Temperature, 0.001)
	assert.Equal(t, 600, opts.MaxOutputTokens)

	doc := fx.stored(t, lunaID)
	assert.Equal(t, "今晚一起跳舞吧", doc.Data["lastMessage"])
	assert.Equal(t, "gpt-4o-mini", doc.Data["lastModel"])
	assert.Equal(t, false, doc.Data["isArchived"])

	msgs, err := fx.convs.Messages(ctx, testUser, lunaID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.SenderUser, msgs[0].Sender)
	assert.Equal(t, models.SenderAI, msgs[1].Sender)
}

func TestSendMessage_InjectsIntroWithoutAssistantTurn(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.put(t, lunaID, map[string]any{
		"aiName":  "Luna",
		"summary": "dj",
		"card":    map[string]any{"name": "Luna", "summary": "dj"},
	})

	_, err := fx.convs.SendMessage(ctx, SendRequest{UserID: testUser, ConversationID: lunaID, Message: "hello"})
	require.NoError(t, err)

	prompt := fx.provider.lastPrompt()
	require.Len(t, prompt, 3)
	assert.Equal(t, llm.RoleSystem, prompt[0].Role)
	assert.Equal(t, llm.RoleAssistant, prompt[1].Role)
	assert.Contains(t, prompt[1].Content, "下個 set 想聽什麼")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hello"}, prompt[2])

	_, err = fx.convs.SendMessage(ctx, SendRequest{UserID: testUser, ConversationID: lunaID, Message: "again"})
	require.NoError(t, err)

	prompt = fx.provider.lastPrompt()
	require.Len(t, prompt, 4)
	assert.Equal(t, llm.RoleUser, prompt[1].Role)
	assert.Equal(t, llm.RoleAssistant, prompt[2].Role)
	assert.Equal(t, "again", prompt[3].Content)
}

func TestSendMessage_EmptyReplyKeepsUserText(t *testing.T) {
	fx := newFixture(t)
	fx.provider.reply = "   "

	res, err := fx.convs.SendMessage(context.Background(), SendRequest{UserID: testUser, ConversationID: lunaID, Message: "are you there"})
	require.NoError(t, err)

	assert.Equal(t, "", res.AIMessage.Message)
	assert.Equal(t, "are you there", res.Conversation.LastMessage)
	assert.Equal(t, models.SenderUser, res.Conversation.LastMessageSender)
}

func TestSendMessage_ExplicitTierPicksModel(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.convs.SendMessage(context.Background(), SendRequest{
		UserID:         testUser,
		ConversationID: lunaID,
		Message:        "hi",
		ExplicitTier:   "vip",
	})
	require.NoError(t, err)

	assert.Equal(t, membership.TierVIP, res.Selection.Tier)
	assert.Equal(t, "gpt-4.1", fx.provider.opts[0].Model)
	assert.Equal(t, "vip", fx.stored(t, lunaID).Data["membershipTier"])
}

func TestSendMessage_UpstreamFailure(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.provider.err = errors.New("provider down")

	_, err := fx.convs.SendMessage(ctx, SendRequest{UserID: testUser, ConversationID: lunaID, Message: "hi"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))

	msgs, err := fx.convs.Messages(ctx, testUser, lunaID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SenderUser, msgs[0].Sender)
}

func TestSendMessage_BlankMessage(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.convs.SendMessage(context.Background(), SendRequest{UserID: testUser, ConversationID: lunaID, Message: "  "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, fx.provider.prompts)
}

func TestGenerateSuggestions(t *testing.T) {
	fx := newFixture(t)
	fx.provider.reply = "```json\n[\"a\",\"b\"]\n```"

	got, err := fx.convs.GenerateSuggestions(context.Background(), SuggestRequest{UserID: testUser, ConversationID: lunaID})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0])
	assert.Equal(t, "b", got[1])
	assert.Contains(t, got[2], "露娜")

	prompt := fx.provider.lastPrompt()
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: SuggestionPrompt}, prompt[len(prompt)-1])
	assert.InDelta(t, 0.9, fx.provider.opts[0].Temperature, 0.001)
}

func TestGenerateSuggestions_UpstreamFailure(t *testing.T) {
	fx := newFixture(t)
	fx.provider.err = errors.New("boom")

	_, err := fx.convs.GenerateSuggestions(context.Background(), SuggestRequest{UserID: testUser, ConversationID: lunaID})
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestClearMessages(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.convs.Ensure(ctx, testUser, lunaID)
	require.NoError(t, err)

	batch := fx.store.Store.Batch()
	for i := 0; i < 450; i++ {
		batch.Set(storage.MessagePath(testUser, lunaID, fmt.Sprintf("m%03d", i)), map[string]any{
			"sender": "user", "message": "x", "createdAt": float64(i),
		}, false)
	}
	require.NoError(t, batch.Commit(ctx))

	require.NoError(t, fx.convs.ClearMessages(ctx, testUser, lunaID))

	msgs, err := fx.convs.Messages(ctx, testUser, lunaID, 1000)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	doc := fx.stored(t, lunaID)
	assert.Equal(t, "", doc.Data["lastMessage"])
	assert.Nil(t, doc.Data["lastMessageAt"])
	assert.NotNil(t, doc.Data["lastClearedAt"])
}

func TestClearMessages_MissingConversation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	err := fx.convs.ClearMessages(ctx, testUser, lunaID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.False(t, fx.stored(t, lunaID).Exists)
	assert.Equal(t, int64(0), fx.store.writes.Load())

	err = fx.convs.ClearMessages(ctx, testUser, "luna-dj")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDelete(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.convs.SendMessage(ctx, SendRequest{UserID: testUser, ConversationID: lunaID, Message: "hi"})
	require.NoError(t, err)
	fx.store.writes.Store(0)

	require.NoError(t, fx.convs.Delete(ctx, testUser, lunaID))
	assert.Equal(t, int64(1), fx.store.writes.Load())
	assert.False(t, fx.stored(t, lunaID).Exists)

	msgs, err := fx.convs.Messages(ctx, testUser, lunaID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, fx.convs.Delete(ctx, testUser, lunaID))
}

func TestList(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.convs.Ensure(ctx, testUser, emiliaID)
	require.NoError(t, err)
	_, err = fx.convs.Ensure(ctx, testUser, lunaID)
	require.NoError(t, err)
	fx.put(t, "ghost", map[string]any{"aiName": "Ghost", "updatedAt": float64(1)})

	_, err = fx.convs.SendMessage(ctx, SendRequest{UserID: testUser, ConversationID: emiliaID, Message: "hi"})
	require.NoError(t, err)

	list, err := fx.convs.List(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, emiliaID, list[0].ConversationID)
	assert.Equal(t, lunaID, list[1].ConversationID)
	assert.Equal(t, "Ghost", list[2].AIName)

	fx.convs.SetLimits(0, 1)
	list, err = fx.convs.List(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpsert(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	name := "Night Luna"

	res, err := fx.convs.Upsert(ctx, testUser, ConversationInput{
		ConversationID: lunaID,
		AIName:         &name,
		Tags:           []string{"late", "late", "music"},
		Card:           map[string]any{"summary": "custom summary", "samples": []any{"yo"}},
		IntimacyLevel:  float64(3),
	})
	require.NoError(t, err)

	conv := res.Conversation
	assert.True(t, res.Created)
	assert.Equal(t, "Night Luna", conv.AIName)
	assert.Equal(t, []string{"late", "music"}, conv.Tags)
	assert.Equal(t, "custom summary", conv.Summary)
	assert.Equal(t, "yo", conv.SampleMessages[0])
	assert.Equal(t, models.Intimacy{Level: 3, Label: "親密度等級 3"}, conv.Intimacy)

	label := "摯友"
	res, err = fx.convs.Upsert(ctx, testUser, ConversationInput{ConversationID: lunaID, IntimacyLabel: &label})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, models.Intimacy{Level: 3, Label: "摯友"}, res.Conversation.Intimacy)
	assert.Equal(t, "Night Luna", res.Conversation.AIName)
}

func TestUpdateImage(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	image := "https://example.com/custom.png"
	path := "uploads/u/custom.png"

	conv, err := fx.convs.UpdateImage(ctx, testUser, lunaID, ImageUpdate{Image: &image, ImageStoragePath: &path})
	require.NoError(t, err)
	assert.Equal(t, image, models.Deref(conv.Image))
	assert.Equal(t, path, models.Deref(conv.ImageStoragePath))

	empty := ""
	conv, err = fx.convs.UpdateImage(ctx, testUser, lunaID, ImageUpdate{Image: &empty, ImageStoragePath: &empty})
	require.NoError(t, err)
	assert.Nil(t, conv.ImageStoragePath)
	assert.Equal(t, models.Deref(conv.Card.PortraitImageURL), models.Deref(conv.Image))

	_, err = fx.convs.UpdateImage(ctx, testUser, lunaID, ImageUpdate{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
