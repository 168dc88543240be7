package main

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/background"
	"github.com/dukerupert/hearth/internal/caching"
	"github.com/dukerupert/hearth/internal/config"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/middleware"
	"github.com/dukerupert/hearth/internal/penalty"
	"github.com/dukerupert/hearth/internal/scheduler"
	"github.com/dukerupert/hearth/internal/server"
	"github.com/dukerupert/hearth/internal/store"
	ws "github.com/dukerupert/hearth/internal/websocket"
)

const (
	settingsLocalCacheSize = 1000
	settingsLocalCacheTTL  = time.Minute
	limiterIdleTTL         = 10 * time.Minute
)

func NewContainer(cfg config.Config, logger *slog.Logger) *do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)

	do.Provide(injector, func(i *do.Injector) (*sql.DB, error) {
		return database.Open(cfg.DBPath)
	})

	// Only invoked when a Redis URL is configured.
	do.Provide(injector, func(i *do.Injector) (redis.UniversalClient, error) {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	})

	do.Provide(injector, func(i *do.Injector) (caching.Cache, error) {
		if cfg.RedisURL == "" {
			return caching.NewLocal(settingsLocalCacheSize, settingsLocalCacheTTL), nil
		}
		client, err := do.Invoke[redis.UniversalClient](i)
		if err != nil {
			return nil, err
		}
		return caching.NewCacheRedis(client, false), nil
	})

	do.Provide(injector, func(i *do.Injector) (*middleware.MemoryLimiter, error) {
		return middleware.NewMemoryLimiter(limiterIdleTTL), nil
	})

	do.Provide(injector, func(i *do.Injector) (middleware.Limiter, error) {
		if cfg.RedisURL == "" {
			return do.MustInvoke[*middleware.MemoryLimiter](i), nil
		}
		client, err := do.Invoke[redis.UniversalClient](i)
		if err != nil {
			return nil, err
		}
		return middleware.NewRedisLimiter(client), nil
	})

	do.Provide(injector, func(i *do.Injector) (*auth.Verifier, error) {
		return auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience, cfg.JWTIssuer), nil
	})

	do.Provide(injector, func(i *do.Injector) (*ws.Hub, error) {
		hub := ws.NewHub(logger.With("component", "websocket"))
		hub.OriginPatterns = cfg.AllowedOrigins
		return hub, nil
	})

	do.Provide(injector, func(i *do.Injector) (*background.Runner, error) {
		return background.NewRunner(cfg.BackgroundWorkers, cfg.BackgroundTimeout, logger.With("component", "background")), nil
	})

	do.Provide(injector, func(i *do.Injector) (*penalty.Resolver, error) {
		db := do.MustInvoke[*sql.DB](i)
		c := do.MustInvoke[caching.Cache](i)
		return penalty.NewResolver(store.NewSettingsStore(db), c, cfg.SettingsCacheTTL, logger.With("component", "penalty_settings")), nil
	})

	do.Provide(injector, func(i *do.Injector) (*server.Server, error) {
		return server.New(
			do.MustInvoke[*sql.DB](i),
			do.MustInvoke[*ws.Hub](i),
			do.MustInvoke[*background.Runner](i),
			do.MustInvoke[*penalty.Resolver](i),
			do.MustInvoke[*auth.Verifier](i),
			do.MustInvoke[middleware.Limiter](i),
			server.PerMinute(cfg.CompleteRateLimit, cfg.ForgiveRateLimit),
			logger,
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*scheduler.Scheduler, error) {
		db := do.MustInvoke[*sql.DB](i)
		var cleaners []scheduler.Cleaner
		if cfg.RedisURL == "" {
			cleaners = append(cleaners, do.MustInvoke[*middleware.MemoryLimiter](i))
		}
		return scheduler.New(
			store.NewChoreStore(db),
			store.NewActivityStore(db),
			do.MustInvoke[*ws.Hub](i),
			logger.With("component", "scheduler"),
			cleaners...,
		), nil
	})

	return injector
}
