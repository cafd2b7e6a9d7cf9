package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"smartbudget/internal/bankinfo"
	"smartbudget/internal/cache"
	"smartbudget/internal/config"
	"smartbudget/internal/convo"
	"smartbudget/internal/metrics"
	"smartbudget/internal/nlu"
	"smartbudget/internal/repo"
	"smartbudget/internal/session"
)

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	repo     repo.Repository
	redis    *cache.Redis
	sessions *session.Store
	engine   *convo.Engine
}

type wireOptions struct {
	// offline keeps every reply local even when Gemini keys are configured.
	offline bool
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func wireApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts wireOptions) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(cfg.MetricsNamespace, registry)

	repository, err := repo.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	if err := repository.SeedGeminiKeys(ctx, cfg.GeminiAPIKeys); err != nil {
		_ = repository.Close()
		return nil, fmt.Errorf("seed gemini keys: %w", err)
	}

	var redis *cache.Redis
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		redis, err = cache.New(pingCtx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TLS:      cfg.RedisTLS,
		})
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, continuing without cache and rate limits", "error", err)
			redis = nil
		}
	}

	sessions := session.NewStore(cfg.SessionIdleTTL, m, logger)

	deps := convo.Deps{
		Sessions:         sessions,
		Metrics:          m,
		Logger:           logger,
		AssistantName:    cfg.AssistantName,
		GreetingCooldown: cfg.GreetingCooldown,
		Messages:         repository,
		Limiter:          redis,
		RateLimit:        cfg.RemoteRateLimit,
		RateWindow:       cfg.RemoteRateWindow,
		RemoteTimeout:    cfg.GeminiTimeout,
	}

	keys, err := repository.ListActiveGeminiKeys(ctx)
	if err != nil {
		logger.Warn("list gemini keys failed, using local replies only", "error", err)
	}
	if !opts.offline && len(keys) > 0 {
		client := nlu.New(repository, logger, m, nlu.Config{
			Model:    cfg.GeminiModel,
			Timeout:  cfg.GeminiTimeout,
			Cooldown: cfg.GeminiCooldown,
		})
		deps.Remote = client
		deps.Advisor = bankinfo.New(client, redis, m, logger, bankinfo.Config{
			Timeout:  cfg.SearchTimeout,
			CacheTTL: cfg.SearchCacheTTL,
		})
		deps.DetectTopic = bankinfo.DetectTopic
		logger.Info("remote replies enabled", "model", cfg.GeminiModel, "keys", len(keys))
	} else {
		logger.Info("remote replies disabled, using local templates")
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
		repo:     repository,
		redis:    redis,
		sessions: sessions,
		engine:   convo.New(deps),
	}, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis failed", "error", err)
		}
	}
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("close repository failed", "error", err)
	}
}
