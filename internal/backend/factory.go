package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/currency"
	"fintrack/internal/ports"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	normalizer := currency.NewNormalizer(f.rateProvider(config))
	events := f.connectAMQP(config)

	var publisher services.EventPublisher
	if events != nil {
		publisher = events
	}

	b := &Backend{
		Store:      store,
		Normalizer: normalizer,
		Events:     events,
		Ledger:     services.NewLedgerService(store, normalizer, publisher),
		Categories: services.NewCategoryService(store),
		Reconciler: services.NewReconciler(store, publisher, services.ReconcilerConfig{Interval: config.ReconcileInterval}),
	}

	manager := cache.NewManager()
	var stats cache.Cache[[]core.MonthlyStat]
	if config.StatsCacheSize > 0 {
		ttl := config.StatsCacheTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		b.StatsCache = cache.NewLRUCache[[]core.MonthlyStat](config.StatsCacheSize, ttl)
		stats = b.StatsCache
		manager.Register(b.StatsCache)
		manager.StartCleanup(ttl)
	}
	b.Transactions = services.NewTransactionService(store, store, normalizer, stats)

	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type,
		"amqp_enabled", events != nil,
		"rate_cache_ttl", config.RateCacheTTL,
		"stats_cache_size", config.StatsCacheSize)

	return &BackendResult{
		Backend: b,
		Cleanup: func() error {
			manager.Stop()
			return closeAll(events, store)
		},
	}, nil
}

func (f *DefaultFactory) createStore(config Config) (ports.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// rateProvider builds the HTTP client, wrapped in a TTL cache when one is
// configured.
func (f *DefaultFactory) rateProvider(config Config) currency.RateProvider {
	var provider currency.RateProvider = config.RateProvider
	if provider == nil {
		opts := []currency.ClientOption{currency.WithTimeout(config.RateTimeout)}
		if config.RateAPIKey != "" {
			opts = append(opts, currency.WithAPIKey(config.RateAPIKey))
		}
		provider = currency.NewHTTPRateProvider(config.RateAPIURL, opts...)
	}
	if config.RateCacheTTL > 0 {
		provider = currency.NewCachedProvider(provider, config.RateCacheTTL)
	}
	return provider
}

// connectAMQP returns nil when AMQP is not configured or unreachable.
func (f *DefaultFactory) connectAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func closeAll(events *amqp.Client, store ports.Store) error {
	var errs []error
	if events != nil {
		if err := events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close AMQP client: %w", err))
		}
	}
	if err := store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close backend: %v", errs)
	}
	return nil
}
