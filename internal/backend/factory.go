package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cassa/internal/amqp"
	"cassa/internal/cache"
	"cassa/internal/ledger"
	"cassa/internal/log"
	"cassa/internal/report"
	"cassa/internal/storage"
	"cassa/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend. A failed AMQP or Redis connection
// degrades to no events or in-process caching; only the store is mandatory.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var cleanups []func() error
	result := &BackendResult{}
	result.Cleanup = func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	store, closeStore, err := f.createStore(config)
	if err != nil {
		return nil, err
	}
	result.Backend.Store = store
	if closeStore != nil {
		cleanups = append(cleanups, closeStore)
	}

	memo, closeCache := f.createReportCache(ctx, config)
	result.Backend.Memo = memo
	cleanups = append(cleanups, closeCache)

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without ledger events", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Backend.Events = client
			cleanups = append(cleanups, client.Close)
		}
	}

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"amqp_enabled", result.Backend.Events != nil)
	return result, nil
}

func (f *DefaultFactory) createStore(config Config) (ledger.Store, func() error, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger.WithComponent(log.ComponentStorage))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store",
			"db_path", config.SQLiteDBPath,
			"schema_version", repo.SchemaVersion())
		return repo, repo.Close, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory store; the ledger is lost on restart")
		return memory.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// createReportCache uses Redis when reachable so every API instance shares reports,
// and an LRU per process otherwise.
func (f *DefaultFactory) createReportCache(ctx context.Context, config Config) (*report.Memo, func() error) {
	if config.RedisAddr != "" {
		client, err := cache.ConnectRedis(ctx, config.RedisAddr)
		if err == nil {
			cacheLogger := f.logger.WithComponent(log.ComponentCache)
			f.logger.Info("Using Redis report cache", "addr", config.RedisAddr)
			memo := report.NewMemo(
				cache.NewRedisCache[report.PnLReport](client, "cassa:pnl", config.cacheTTL(), cacheLogger),
				cache.NewRedisCache[report.Dashboard](client, "cassa:dash", config.cacheTTL(), cacheLogger),
			)
			return memo, closeRedis(client)
		}
		f.logger.Warn("Redis unavailable, falling back to in-process report cache", log.FieldError, err)
	}

	pnl := cache.NewLRUCache[report.PnLReport](config.cacheMax(), config.cacheTTL())
	dash := cache.NewLRUCache[report.Dashboard](config.cacheMax(), config.cacheTTL())
	manager := cache.NewManager(f.logger)
	manager.Register(pnl)
	manager.Register(dash)
	manager.StartCleanup(config.cacheTTL())
	return report.NewMemo(pnl, dash), func() error {
		manager.Stop()
		return nil
	}
}

func closeRedis(client *redis.Client) func() error {
	return func() error {
		return client.Close()
	}
}
