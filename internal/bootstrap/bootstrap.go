// Package bootstrap wires configuration to concrete infrastructure for the
// binaries under cmd/.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/command"
	"github.com/example/stock-ledger/internal/config"
	"github.com/example/stock-ledger/internal/domain/item"
	"github.com/example/stock-ledger/internal/domain/movement"
	"github.com/example/stock-ledger/internal/domain/order"
	"github.com/example/stock-ledger/internal/infrastructure/cache"
	"github.com/example/stock-ledger/internal/infrastructure/kafka"
	"github.com/example/stock-ledger/internal/infrastructure/store"
)

// Backend is an opened store with its health probe and close hook.
type Backend struct {
	Store  store.Store
	Health func(ctx context.Context) error
	Close  func() error
}

// OpenStore connects the configured database, applies the schema and wraps it
// in a store.Store. DB_DRIVER=memory keeps everything in process.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	if cfg.DBDriver == "memory" {
		logger.Warn("using in-memory store, data is lost on exit")
		return &Backend{
			Store:  store.NewMemoryStore(store.WithLockTimeout(cfg.DBLockTimeout)),
			Health: func(context.Context) error { return nil },
			Close:  func() error { return nil },
		}, nil
	}

	dialect, err := store.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	db, err := store.Connect(ctx, dialect, cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dialect, err)
	}
	if err := store.Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dialect, err)
	}
	logger.Info("connected to database", zap.String("dialect", string(dialect)))

	return &Backend{
		Store:  store.NewSQLStore(db, dialect, cfg.DBLockTimeout),
		Health: db.PingContext,
		Close:  db.Close,
	}, nil
}

// NewPublisher returns a Kafka producer, or a no-op publisher when no
// brokers are configured.
func NewPublisher(cfg *config.Config, logger *zap.Logger) (store.EventPublisher, func() error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, events are only written to ledger_events")
		return store.NopPublisher{}, func() error { return nil }
	}
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	return producer, producer.Close
}

// NewIdempotency returns Redis-backed keys, or the in-process fallback when
// REDIS_ADDR is empty.
func NewIdempotency(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.IdempotencyKeys, func() error, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, idempotency keys are per process")
		return cache.NewMemoryIdempotency(cfg.IdempotencyTTL), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return cache.NewRedisIdempotency(client, cfg.IdempotencyTTL), client.Close, nil
}

// NewCommandHandler builds the three orchestrators over one store.
func NewCommandHandler(st store.Store, pub store.EventPublisher, logger *zap.Logger) *command.Handler {
	return command.NewHandler(
		item.NewService(st, pub, logger),
		movement.NewService(st, pub, logger),
		order.NewService(st, pub, logger),
	)
}
