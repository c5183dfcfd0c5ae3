package cache

import (
	"context"
	"time"

	"cassa/internal/log"
)

// Cache defines a generic cache interface. Misses and backend failures look the same
// to callers: the value is recomputed.
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) (T, bool)

	// Set stores a value in the cache
	Set(ctx context.Context, key string, data T)

	// Delete removes a key from the cache
	Delete(ctx context.Context, key string)

	// DeletePrefix removes every key starting with prefix and returns how many went
	DeletePrefix(ctx context.Context, prefix string) int
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	caches      []Cleaner
	logger      *log.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// NewManager creates a new cache manager
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default(log.ComponentCache)
	}
	return &Manager{
		caches:      make([]Cleaner, 0),
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup. Caches without local expiry,
// such as Redis, are skipped.
func (m *Manager) Register(c any) {
	if cleaner, ok := c.(Cleaner); ok {
		m.caches = append(m.caches, cleaner)
	}
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCleanup:
			return
		}
	}
}

// sweep cleans every registered cache once and returns how many entries expired.
func (m *Manager) sweep() int {
	cleaned := 0
	var totals LRUStats
	for _, c := range m.caches {
		cleaned += c.CleanExpired()
		if sr, ok := c.(interface{ Stats() LRUStats }); ok {
			st := sr.Stats()
			totals.Entries += st.Entries
			totals.Evictions += st.Evictions
			totals.Expirations += st.Expirations
		}
	}
	if cleaned > 0 {
		m.logger.Debug("Expired cache entries removed",
			"count", cleaned,
			"entries", totals.Entries,
			"evictions_total", totals.Evictions,
			"expirations_total", totals.Expirations)
	}
	return cleaned
}

// Stop gracefully stops the cleanup routine. It must only be called after StartCleanup.
func (m *Manager) Stop() {
	if m.stopCleanup != nil {
		close(m.stopCleanup)
		<-m.cleanupDone
		m.stopCleanup = nil
	}
}
