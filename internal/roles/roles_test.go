// ABOUTME: Tests for role slugs, sanitisation, document reading and the role service
// ABOUTME: Uses an in-memory SQLite document store
package roles

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/harper/companion/internal/apperr"
	"github.com/harper/companion/internal/models"
	"github.com/harper/companion/internal/storage"
	"github.com/harper/companion/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Luna DJ", "luna-dj"},
		{"  Émilia   Saint!! ", "emilia-saint"},
		{"--already-slugged--", "already-slugged"},
		{"ＦＵＬＬ　ｗｉｄｔｈ", "full-width"},
		{"月光 DJ 露娜", "dj"},
		{"月光", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func validInput() RoleInput {
	return RoleInput{
		Name:          "Test Role",
		Gender:        "female",
		Persona:       "guide",
		Summary:       "a helpful guide",
		Tags:          []string{"calm", " calm ", "kind"},
		CoverImageURL: "https://example.com/cover.jpg",
		Prompt:        PromptInput{System: "be nice"},
	}
}

func TestSanitize(t *testing.T) {
	role, err := Sanitize(validInput())
	require.NoError(t, err)

	assert.Equal(t, "test-role", role.Slug)
	assert.Equal(t, "女", role.Gender)
	assert.Equal(t, []string{"calm", "kind"}, role.Tags)
	assert.Equal(t, []string{}, role.SampleMessages)
	assert.Equal(t, models.RoleVisibility{Status: "draft", Scope: "private"}, role.Visibility)
	assert.Equal(t, "女", role.Profile["gender"])
}

func TestSanitize_Errors(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*RoleInput)
		field string
	}{
		{"no tags", func(in *RoleInput) { in.Tags = []string{" ", ""} }, "tags"},
		{"bad gender", func(in *RoleInput) { in.Gender = "robot" }, "gender"},
		{"missing summary", func(in *RoleInput) { in.Summary = "  " }, "summary"},
		{"missing cover", func(in *RoleInput) { in.CoverImageURL = "" }, "coverImageUrl"},
		{"missing prompt", func(in *RoleInput) { in.Prompt.System = "" }, "prompt.system"},
		{"bad status", func(in *RoleInput) { in.Visibility.Status = "hidden" }, "visibility.status"},
		{"no slug source", func(in *RoleInput) { in.Name = "月光" }, "slug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mut(&in)
			_, err := Sanitize(in)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestFromDocument(t *testing.T) {
	role := FromDocument("abc", map[string]any{
		"name":    " Luna ",
		"slug":    "Luna DJ",
		"tags":    []any{"a", "a", 3, "b"},
		"metrics": map[string]any{"favorites": float64(4), "likes": float64(-2)},
		"profile": map[string]any{"age": "20"},
	})
	require.NotNil(t, role)
	assert.Equal(t, "abc", role.ID)
	assert.Equal(t, "Luna", role.Name)
	assert.Equal(t, "luna-dj", role.Slug)
	assert.Equal(t, []string{"a", "b"}, role.Tags)
	assert.Equal(t, 4, role.Metrics.Favorites)
	assert.Equal(t, 0, role.Metrics.Likes)
	assert.Equal(t, DefaultGender, role.Profile["gender"])
	assert.Equal(t, "draft", role.Visibility.Status)

	assert.Nil(t, FromDocument("x", nil))
}

type countingCache struct {
	mu      sync.Mutex
	entries map[string]*models.Role
	sets    int
}

func (c *countingCache) Get(_ context.Context, key string) (*models.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok
}

func (c *countingCache) Set(_ context.Context, key string, role *models.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]*models.Role{}
	}
	c.entries[key] = role
	c.sets++
}

func (c *countingCache) Invalidate(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}

func newTestService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	store, err := sqlite.NewStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	svc := NewService(store, nil)
	svc.now = func() time.Time { return time.UnixMilli(1_000) }
	return svc, store
}

func TestService_SeedAndLookup(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.GetByID(ctx, "LunA7Dj4X3", false)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	role, err := svc.GetByID(ctx, "LunA7Dj4X3", true)
	require.NoError(t, err)
	assert.Equal(t, "月光 DJ 露娜", role.Name)
	assert.Equal(t, "luna-dj", role.Slug)
	assert.Equal(t, 2140, role.Metrics.Favorites)

	bySlug, err := svc.GetByID(ctx, "luna-dj", false)
	require.NoError(t, err)
	assert.Equal(t, "LunA7Dj4X3", bySlug.ID)

	roles, err := svc.List(ctx, false, "published")
	require.NoError(t, err)
	assert.Len(t, roles, len(SeedRoles))
}

func TestService_SeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	require.NoError(t, svc.Seed(ctx))
	svc.SetSeeds(SeedRoles)
	require.NoError(t, svc.Seed(ctx))

	docs, err := store.Query(ctx, storage.Query{Collection: storage.RolesCollection})
	require.NoError(t, err)
	assert.Len(t, docs, len(SeedRoles))
}

func TestService_GetByIDInvalid(t *testing.T) {
	svc, _ := newTestService(t)
	for _, id := range []string{"", "  ", "a/b"} {
		_, err := svc.GetByID(context.Background(), id, false)
		assert.True(t, apperr.Is(err, apperr.KindValidation), id)
	}
}

func TestService_CacheAndInvalidate(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	cache := &countingCache{}
	svc.SetCache(cache)
	require.NoError(t, svc.Seed(ctx))

	_, err := svc.GetByID(ctx, "EmiL1a9Q2Z", false)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	require.NoError(t, store.Set(ctx, storage.RolePath("EmiL1a9Q2Z"), map[string]any{"name": "Renamed"}, true))

	cached, err := svc.GetByID(ctx, "EmiL1a9Q2Z", false)
	require.NoError(t, err)
	assert.Equal(t, "神聖的艾米莉雅", cached.Name)

	svc.Invalidate(ctx, "EmiL1a9Q2Z")
	fresh, err := svc.GetByID(ctx, "EmiL1a9Q2Z", false)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fresh.Name)
}

func TestService_ConcurrentLookups(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			role, err := svc.GetByID(ctx, "S0R4a8V5N1", true)
			if assert.NoError(t, err) {
				assert.Equal(t, "sora-officer", role.Slug)
			}
		}()
	}
	wg.Wait()
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	role, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	assert.Len(t, role.ID, idLength)

	got, err := svc.GetByID(ctx, role.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Test Role", got.Name)

	_, err = svc.Create(ctx, validInput())
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	cache, err := NewRedisCache(ctx, RedisConfig{Addr: addr, TTL: time.Minute, Prefix: "companion-test:" + t.Name() + ":"})
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	cache.Set(ctx, "r1", &models.Role{ID: "r1", Name: "Luna"})
	got, ok := cache.Get(ctx, "r1")
	require.True(t, ok)
	assert.Equal(t, "Luna", got.Name)

	cache.Invalidate(ctx, "r1")
	_, ok = cache.Get(ctx, "r1")
	assert.False(t, ok)
}

func TestNewRedisCache_RequiresAddr(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{})
	assert.Error(t, err)
}
