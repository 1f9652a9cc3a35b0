package backend

import (
	"context"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/currency"
	"fintrack/internal/ports"
	"fintrack/internal/services"
)

// Backend bundles the store and the services built on top of it.
type Backend struct {
	Store        ports.Store
	Normalizer   *currency.Normalizer
	Events       *amqp.Client // nil when AMQP is not configured
	Ledger       *services.LedgerService
	Transactions *services.TransactionService
	Categories   *services.CategoryService
	Reconciler   *services.Reconciler
	StatsCache   *cache.LRUCache[[]core.MonthlyStat]
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend *Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Exchange rates. RateProvider, when set, replaces the HTTP client.
	RateAPIURL   string
	RateAPIKey   string
	RateTimeout  time.Duration
	RateCacheTTL time.Duration
	RateProvider currency.RateProvider

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Statistics cache; a size of zero disables it
	StatsCacheSize int
	StatsCacheTTL  time.Duration

	ReconcileInterval time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
