package backend

import (
	"context"
	"time"

	"cassa/internal/amqp"
	"cassa/internal/ledger"
	"cassa/internal/report"
)

// Backend bundles the collaborators every binary builds the ledger service from.
type Backend struct {
	Store ledger.Store
	Memo  *report.Memo
	// Events is nil when AMQP is not configured.
	Events *amqp.Client
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// LedgerService builds the ledger service over the backend: report caches are
// invalidated on every commit and events are published when AMQP is configured.
func (r *BackendResult) LedgerService(opts ...ledger.Option) *ledger.Service {
	all := []ledger.Option{ledger.WithInvalidator(r.Backend.Memo)}
	if r.Backend.Events != nil {
		all = append(all, ledger.WithPublisher(r.Backend.Events))
	}
	return ledger.NewService(r.Backend.Store, append(all, opts...)...)
}

// Close runs the cleanup function if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// AMQP is optional for every store type
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Report cache; an empty RedisAddr keeps reports in process
	RedisAddr      string
	ReportCacheTTL time.Duration
	ReportCacheMax int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
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
