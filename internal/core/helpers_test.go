// ABOUTME: Shared doubles for core tests: a write-counting store and a scripted provider
// ABOUTME: Services run against an in-memory SQLite document store with seeded roles
package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harper/companion/internal/llm"
	"github.com/harper/companion/internal/membership"
	"github.com/harper/companion/internal/roles"
	"github.com/harper/companion/internal/storage"
	"github.com/harper/companion/internal/storage/sqlite"
	"github.com/stretchr/testify/require"
)

const (
	lunaID   = "LunA7Dj4X3"
	emiliaID = "EmiL1a9Q2Z"
	testUser = "user-1"
)

// countingStore records every write that reaches the wrapped store
type countingStore struct {
	storage.Store
	writes  atomic.Int64
	failSet atomic.Bool
}

func (c *countingStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	if c.failSet.Load() {
		return errors.New("write refused")
	}
	c.writes.Add(1)
	return c.Store.Set(ctx, path, data, merge)
}

func (c *countingStore) Delete(ctx context.Context, path string) error {
	c.writes.Add(1)
	return c.Store.Delete(ctx, path)
}

func (c *countingStore) Batch() storage.Batch {
	return &countingBatch{Batch: c.Store.Batch(), owner: c}
}

func (c *countingStore) RunTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	c.writes.Add(1)
	return c.Store.RunTransaction(ctx, fn)
}

type countingBatch struct {
	storage.Batch
	owner *countingStore
}

func (b *countingBatch) Commit(ctx context.Context) error {
	b.owner.writes.Add(1)
	return b.Batch.Commit(ctx)
}

// scriptedProvider returns canned replies and records every prompt it saw
type scriptedProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts [][]llm.Message
	opts    []llm.Options
}

func (p *scriptedProvider) Complete(_ context.Context, messages []llm.Message, opts llm.Options) (*llm.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, append([]llm.Message(nil), messages...))
	p.opts = append(p.opts, opts)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Completion{Text: p.reply, Model: opts.Model}, nil
}

func (p *scriptedProvider) lastPrompt() []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return nil
	}
	return p.prompts[len(p.prompts)-1]
}

type fixture struct {
	store    *countingStore
	roles    *roles.Service
	provider *scriptedProvider
	convs    *ConversationService
	favs     *FavoriteService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	base, err := sqlite.NewStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = base.Close() })

	store := &countingStore{Store: base}
	roleService := roles.NewService(store, nil)
	require.NoError(t, roleService.Seed(context.Background()))

	provider := &scriptedProvider{reply: "你好呀"}
	convs := NewConversationService(store, roleService, provider, membership.NewResolver(nil), nil)

	var tick atomic.Int64
	tick.Store(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli())
	clock := func() time.Time { return time.UnixMilli(tick.Add(1000)) }
	convs.SetClock(clock)

	favs := NewFavoriteService(store, roleService, nil)
	favs.SetClock(clock)

	store.writes.Store(0)
	return &fixture{store: store, roles: roleService, provider: provider, convs: convs, favs: favs}
}
