package report

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"cassa/internal/cache"
)

// Memo caches assembled reports per business and coalesces identical concurrent
// requests. A business's entries are dropped whenever its ledger changes.
type Memo struct {
	pnl   cache.Cache[PnLReport]
	dash  cache.Cache[Dashboard]
	group singleflight.Group

	mu   sync.Mutex
	gens map[string]uint64

	hits   atomic.Int64
	misses atomic.Int64
}

func NewMemo(pnl cache.Cache[PnLReport], dash cache.Cache[Dashboard]) *Memo {
	return &Memo{pnl: pnl, dash: dash, gens: make(map[string]uint64)}
}

func businessPrefix(businessID string) string {
	return "biz:" + businessID + ":"
}

// InvalidateBusiness drops every cached report of the business.
func (m *Memo) InvalidateBusiness(ctx context.Context, businessID string) {
	m.mu.Lock()
	m.gens[businessID]++
	m.mu.Unlock()

	prefix := businessPrefix(businessID)
	m.pnl.DeletePrefix(ctx, prefix)
	m.dash.DeletePrefix(ctx, prefix)
}

func (m *Memo) generation(businessID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[businessID]
}

// Stats returns cache hits and misses since start.
func (m *Memo) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}

// remember serves key from c or computes it once for all concurrent callers. A result
// computed across an invalidation is returned but not stored.
func remember[T any](ctx context.Context, m *Memo, c cache.Cache[T], businessID, key string, compute func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(ctx, key); ok {
		m.hits.Add(1)
		return v, nil
	}
	m.misses.Add(1)

	gen := m.generation(businessID)
	v, err, _ := m.group.Do(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		out, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if m.generation(businessID) == gen {
			c.Set(ctx, key, out)
		}
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
