// ABOUTME: Builds the service graph shared by every command from configuration
// ABOUTME: Opens the SQLite store, optional Redis role cache, OpenAI client and core services
package commands

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/harper/companion/internal/config"
	"github.com/harper/companion/internal/core"
	"github.com/harper/companion/internal/llm"
	"github.com/harper/companion/internal/logger"
	"github.com/harper/companion/internal/membership"
	"github.com/harper/companion/internal/roles"
	"github.com/harper/companion/internal/storage/sqlite"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// errNoAPIKey is returned by the placeholder provider when OPENAI_API_KEY is unset
var errNoAPIKey = errors.New("OPENAI_API_KEY not set")

// app holds everything a command needs
type app struct {
	cfg           *config.Config
	log           *logger.Logger
	store         *sqlite.DocumentStore
	cache         *roles.RedisCache
	roles         *roles.Service
	conversations *core.ConversationService
	favorites     *core.FavoriteService
}

// unavailableProvider fails every completion so non-chat commands still work without a key
type unavailableProvider struct{}

func (unavailableProvider) Complete(context.Context, []llm.Message, llm.Options) (*llm.Completion, error) {
	return nil, errNoAPIKey
}

// loadConfig reads .env (if any) and the environment
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && verbose {
		log.Printf("No .env file found (this is okay for production): %v", err)
	}
	return config.Load()
}

// openApp wires the services from the environment
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return newApp(ctx, cfg)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logMode := cfg.LogMode
	if verbose {
		logMode = "development"
	}
	lg, err := logger.New(logMode, cfg.LogSalt)
	if err != nil {
		return nil, err
	}
	if quiet {
		lg = logger.Nop()
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = sqlite.DefaultDBPath()
	}
	store, err := sqlite.NewStoreWithPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := &app{cfg: cfg, log: lg, store: store}

	a.roles = roles.NewService(store, lg)
	if cfg.RedisAddr != "" {
		cache, err := roles.NewRedisCache(ctx, roles.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RoleCacheTTL,
		})
		if err != nil {
			lg.Warn("role cache disabled", "error", err)
		} else {
			a.cache = cache
			a.roles.SetCache(cache)
		}
	}

	provider, err := newProvider(cfg, lg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.conversations = core.NewConversationService(store, a.roles, provider, newResolver(cfg), lg)
	a.conversations.SetLimits(cfg.HistoryLimit, cfg.ListLimit)
	a.favorites = core.NewFavoriteService(store, a.roles, lg)

	return a, nil
}

// newProvider returns the OpenAI client, or a provider that always fails when no key is set
func newProvider(cfg *config.Config, lg *logger.Logger) (llm.Provider, error) {
	if cfg.OpenAIKey == "" {
		lg.Warn("OPENAI_API_KEY not set - replies and suggestions will fail")
		return unavailableProvider{}, nil
	}
	client, err := llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
		APIKey:     cfg.OpenAIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		ChatModel:  cfg.ChatModel,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	client.SetLogger(lg)
	return client, nil
}

// newResolver builds the tier table. OPENAI_MODEL is the default tier's model
// unless OPENAI_MODEL_VISITOR overrides it.
func newResolver(cfg *config.Config) *membership.Resolver {
	overrides := make(map[membership.Tier]string, len(cfg.TierModels)+1)
	if cfg.ChatModel != "" {
		overrides[membership.DefaultTier] = cfg.ChatModel
	}
	for tier, model := range cfg.TierModels {
		overrides[tier] = model
	}
	return membership.NewResolver(overrides)
}

// Close releases the store and cache
func (a *app) Close() error {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	a.log.Sync()
	return a.store.Close()
}

// withApp opens the app for the duration of fn
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
