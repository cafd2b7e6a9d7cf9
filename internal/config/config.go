package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	LogLevel         string
	HTTPListenAddr   string
	AssistantName    string
	DatabaseURL      string
	GeminiAPIKeys    []string
	GeminiModel      string
	GeminiTimeout    time.Duration
	GeminiCooldown   time.Duration
	SearchTimeout    time.Duration
	SearchCacheTTL   time.Duration
	MetricsNamespace string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisTLS         bool
	SessionIdleTTL   time.Duration
	GreetingCooldown time.Duration
	RemoteRateLimit  int64
	RemoteRateWindow time.Duration

	WhatsAppEnabled   bool
	WhatsAppStorePath string
	WhatsAppLogLevel  string
}

// Load returns configuration populated from environment variables with fallbacks.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:            getenvDefault("APP_ENV", "development"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		HTTPListenAddr:    getenvDefault("HTTP_LISTEN_ADDR", ":8080"),
		AssistantName:     getenvDefault("ASSISTANT_NAME", "FIN"),
		DatabaseURL:       trimmedEnv("DATABASE_URL"),
		GeminiAPIKeys:     splitAndTrim(trimmedEnv("GEMINI_KEYS")),
		GeminiModel:       getenvDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		MetricsNamespace:  getenvDefault("METRICS_NAMESPACE", "smartbudget"),
		RedisAddr:         trimmedEnv("REDIS_ADDR"),
		RedisPassword:     trimmedEnv("REDIS_PASSWORD"),
		WhatsAppStorePath: getenvDefault("WHATSAPP_STORE_PATH", "data/wa-store.db"),
		WhatsAppLogLevel:  getenvDefault("WHATSAPP_LOG_LEVEL", "INFO"),
	}

	var err error
	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"GEMINI_TIMEOUT", "20s", &cfg.GeminiTimeout},
		{"GEMINI_COOLDOWN", "24h", &cfg.GeminiCooldown},
		{"SEARCH_TIMEOUT", "15s", &cfg.SearchTimeout},
		{"SEARCH_CACHE_TTL", "6h", &cfg.SearchCacheTTL},
		{"SESSION_IDLE_TTL", "30m", &cfg.SessionIdleTTL},
		{"GREETING_COOLDOWN", "300s", &cfg.GreetingCooldown},
		{"REMOTE_RATE_WINDOW", "1m", &cfg.RemoteRateWindow},
	}
	for _, d := range durations {
		if *d.dst, err = time.ParseDuration(getenvDefault(d.key, d.fallback)); err != nil {
			return nil, fmt.Errorf("invalid %s duration: %w", d.key, err)
		}
		if *d.dst <= 0 {
			return nil, fmt.Errorf("invalid %s duration: must be positive", d.key)
		}
	}

	if redisDBStr := getenvDefault("REDIS_DB", "0"); redisDBStr != "" {
		db, convErr := strconv.Atoi(redisDBStr)
		if convErr != nil {
			return nil, fmt.Errorf("invalid REDIS_DB value: %w", convErr)
		}
		cfg.RedisDB = db
	}

	if limitStr := getenvDefault("REMOTE_RATE_LIMIT", "30"); limitStr != "" {
		limit, convErr := strconv.ParseInt(limitStr, 10, 64)
		if convErr != nil {
			return nil, fmt.Errorf("invalid REMOTE_RATE_LIMIT value: %w", convErr)
		}
		if limit < 0 {
			limit = 0
		}
		cfg.RemoteRateLimit = limit
	}

	cfg.RedisTLS = strings.EqualFold(getenvDefault("REDIS_TLS", "false"), "true")
	cfg.WhatsAppEnabled = strings.EqualFold(getenvDefault("WHATSAPP_ENABLED", "false"), "true")

	if cfg.DatabaseURL != "" && !isSupportedDatabaseURL(cfg.DatabaseURL) {
		return nil, fmt.Errorf("DATABASE_URL must start with postgres://, postgresql:// or sqlite:")
	}
	return cfg, nil
}

// RemoteEnabled reports whether any Gemini key is configured.
func (c *Config) RemoteEnabled() bool {
	return len(c.GeminiAPIKeys) > 0
}

// IsProduction reports whether APP_ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func isSupportedDatabaseURL(url string) bool {
	for _, prefix := range []string{"postgres://", "postgresql://", "sqlite:"} {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

func getenvDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func splitAndTrim(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}

func trimmedEnv(key string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return ""
}
