package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"bizdash/internal/amqp"
	"bizdash/internal/cache"
	"bizdash/internal/core"
	"bizdash/internal/ports"
	"bizdash/internal/services"
	"bizdash/internal/storage"
	"bizdash/internal/storage/memory"
)

const cacheCleanupInterval = time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var closers []func() error
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	repo, err := f.createRepository(config)
	if err != nil {
		return nil, err
	}
	closers = append(closers, repo.Close)

	if config.Type == SQLiteBackend && config.SeedOrgID != "" {
		if err := f.seedTenant(ctx, repo, config.SeedOrgID); err != nil {
			cleanup()
			return nil, err
		}
	}

	result := &BackendResult{Repository: repo}

	if client := f.createPublisher(config); client != nil {
		result.Publisher = client
		closers = append(closers, client.Close)
	}

	if config.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, client.Close)
		f.useRedis(result, client, config)
	} else {
		closers = append(closers, f.useLocal(result, config))
	}

	result.Cleanup = cleanup
	return result, nil
}

func (f *DefaultFactory) createRepository(config Config) (ports.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		store := memory.NewFromFiles(config.SeedDir, config.SeedOrgID)
		f.logger.Info("Initialized memory backend",
			"seed_dir", config.SeedDir,
			"org_id", config.SeedOrgID)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// seedTenant registers orgID on an empty database so its owners can add
// businesses. An existing tenant is left untouched.
func (f *DefaultFactory) seedTenant(ctx context.Context, repo ports.Repository, orgID string) error {
	_, err := repo.GetTenant(ctx, orgID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("failed to load seed tenant: %w", err)
	}
	t := core.Tenant{ID: orgID, Name: orgID, Tier: core.Enterprise, Active: true}
	if err := repo.UpsertTenant(ctx, t); err != nil {
		return fmt.Errorf("failed to seed tenant: %w", err)
	}
	f.logger.Info("Seeded tenant", "org_id", orgID, "tier", t.Tier)
	return nil
}

// createPublisher connects to AMQP when configured. Failures degrade to no
// publishing.
func (f *DefaultFactory) createPublisher(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without rollup events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func (f *DefaultFactory) useRedis(result *BackendResult, client *redis.Client, config Config) {
	result.Snapshots = cache.NewRedisCache[services.Snapshot](client, "bizdash:", config.CacheTTL)
	result.Locker = cache.NewRedisLocker(client, "bizdash:lock:")
	f.logger.Info("Initialized Redis cache", "addr", config.RedisAddr, "ttl", config.CacheTTL)
}

// useLocal wires the in-process LRU and returns its cleanup stopper.
func (f *DefaultFactory) useLocal(result *BackendResult, config Config) func() error {
	lru := cache.NewLRUCache[services.Snapshot](config.CacheSize, config.CacheTTL)
	manager := cache.NewManager()
	manager.Register(lru)
	manager.StartCleanup(cacheCleanupInterval)

	result.Snapshots = lru
	result.Locker = cache.NoopLocker{}
	f.logger.Info("Initialized in-process cache", "size", config.CacheSize, "ttl", config.CacheTTL)

	return func() error {
		manager.Stop()
		return nil
	}
}
