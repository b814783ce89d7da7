package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"certquiz-service/internal/app"
	"certquiz-service/internal/config"
	"certquiz-service/internal/infra/memory"
	"certquiz-service/internal/infra/postgres"
	redisstore "certquiz-service/internal/infra/redis"
	"certquiz-service/internal/infra/sqlite"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// openCertificateStore builds the store selected by store.driver. The returned
// func releases its connections.
func openCertificateStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (app.CertificateStore, func(), error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "", "memory":
		log.Warn().Msg("certificates are kept in memory and will not survive a restart")
		return memory.NewCertificateStore(), func() {}, nil
	case "postgres":
		if cfg.Postgres.URL == "" {
			return nil, nil, fmt.Errorf("postgres url not configured")
		}
		applied, err := postgres.Migrate(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			log.Info().Strs("migrations", applied).Msg("migrations applied")
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return postgres.NewCertificateStore(pool), pool.Close, nil
	case "sqlite":
		store, err := sqlite.Open(ctx, sqliteDSN(cfg.SQLite.Path))
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func sqliteDSN(path string) string {
	if path == "" || strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)"
}

func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func newSessionRepository(cfg config.Config, client *redis.Client) app.SessionRepository {
	ttl := config.TTLDuration(cfg.Quiz.SessionTTL, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour))
	if client == nil {
		return memory.NewSessionStore(ttl)
	}
	return redisstore.NewSessionStore(client, ttl)
}

func newCachedGenerator(cfg config.Config, client *redis.Client, next app.QuizGenerator, log zerolog.Logger) app.QuizGenerator {
	ttl := config.TTLDuration(cfg.Quiz.CacheTTL, time.Hour)
	if client == nil {
		return memory.NewGenerationCache(next, ttl)
	}
	return redisstore.NewGenerationCache(client, next, ttl, log)
}
