// Package bootstrap wires configuration into concrete collaborators. Every
// builder degrades gracefully: a missing backend yields the in-process
// fallback (memory store, memory queue, fake upstreams) so the service runs
// end to end on a laptop with no infrastructure at all.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/Adithyanmurthy/Loan-Chatbot/internal/config"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/conversation"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/loan"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, falling back to in-memory sessions", "error", err)
		return nil
	}
	return client
}

// BuildSessionStore picks Redis-backed sessions when a client is available
// and in-memory sessions otherwise. ttl is the idle expiry for Redis-backed
// sessions (SESSION_TTL).
func BuildSessionStore(redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) conversation.SessionStore {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient != nil {
		logger.Info("using redis session store", "session_ttl", ttl)
		return conversation.NewRedisStore(redisClient, ttl, nil)
	}
	logger.Info("using in-memory session store")
	return conversation.NewMemoryStore()
}

// BuildPostgres opens the application database, or returns nil when no
// DATABASE_URL is configured. Failures to reach the database are reported
// but non-fatal: the in-memory loan repository takes over.
func BuildPostgres(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *sql.DB {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Warn("failed to open postgres, falling back to in-memory applications", "error", err)
		return nil
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Warn("postgres not available, falling back to in-memory applications", "error", err)
		_ = db.Close()
		return nil
	}
	return db
}

// BuildLoanRepository returns the Postgres repository when a database is
// connected and the in-memory one otherwise.
func BuildLoanRepository(db *sql.DB, logger *logging.Logger) loan.Repository {
	if logger == nil {
		logger = logging.Default()
	}
	if db != nil {
		logger.Info("using postgres loan repository")
		return loan.NewPostgresRepository(db)
	}
	logger.Info("using in-memory loan repository")
	return loan.NewInMemoryRepository()
}
