// ABOUTME: Centralized configuration for the companion CLI and MCP server
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/harper/companion/internal/membership"
)

// Config holds all configuration for the companion service
type Config struct {
	// Storage settings
	DBPath string

	// OpenAI settings
	OpenAIKey     string
	OpenAIBaseURL string
	ChatModel     string
	TierModels    map[membership.Tier]string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration

	// Role cache settings. An empty RedisAddr disables the cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RoleCacheTTL  time.Duration

	// Logging settings
	LogMode string
	LogSalt string

	// Conversation settings
	UserID       string
	HistoryLimit int
	ListLimit    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        os.Getenv("COMPANION_DB_PATH"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		ChatModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		TierModels:    loadTierModels(),
		Timeout:       getEnvDuration("OPENAI_TIMEOUT", 60*time.Second),
		MaxRetries:    getEnvInt("OPENAI_MAX_RETRIES", 3),
		RetryDelay:    getEnvDuration("OPENAI_RETRY_DELAY", 2*time.Second),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RoleCacheTTL:  getEnvDuration("ROLE_CACHE_TTL", 5*time.Minute),
		LogMode:       getEnv("COMPANION_LOG_MODE", "production"),
		LogSalt:       os.Getenv("COMPANION_LOG_SALT"),
		UserID:        getEnv("COMPANION_USER_ID", "local"),
		HistoryLimit:  getEnvInt("COMPANION_HISTORY_LIMIT", 40),
		ListLimit:     getEnvInt("COMPANION_LIST_LIMIT", 20),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.HistoryLimit < 1 || c.HistoryLimit > 200 {
		return fmt.Errorf("COMPANION_HISTORY_LIMIT must be 1-200, got %d", c.HistoryLimit)
	}
	if c.ListLimit < 1 || c.ListLimit > 100 {
		return fmt.Errorf("COMPANION_LIST_LIMIT must be 1-100, got %d", c.ListLimit)
	}
	if c.LogMode != "production" && c.LogMode != "development" {
		return fmt.Errorf("COMPANION_LOG_MODE must be production or development, got %q", c.LogMode)
	}
	if strings.Contains(c.UserID, "/") || strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("COMPANION_USER_ID must be a non-empty id without '/', got %q", c.UserID)
	}
	return nil
}

// loadTierModels reads OPENAI_MODEL_<TIER> overrides, e.g. OPENAI_MODEL_VIP_PLUS
func loadTierModels() map[membership.Tier]string {
	models := make(map[membership.Tier]string)
	for _, tier := range membership.Tiers {
		key := "OPENAI_MODEL_" + strings.ToUpper(string(tier))
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			models[tier] = v
		}
	}
	return models
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
