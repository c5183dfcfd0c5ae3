package report

import (
	"context"
	"errors"
	"sync"
	"time"

	"cassa/internal/cache"
	"cassa/internal/core"
)

// ErrStale is returned for a report request that a newer request of the same session
// superseded while it was being computed.
var ErrStale = errors.New("report request superseded by a newer one")

// Ticket tags a report request with the range it was issued for.
type Ticket struct {
	Session string
	Range   core.DateRange
	Gen     uint64
}

// Feed tracks the latest report request of each client session so a slow response
// for an old range never overwrites a newer one.
type Feed struct {
	mu     sync.Mutex
	latest *cache.LRUCache[uint64]
}

// NewFeed remembers up to maxSessions sessions, each for ttl after its last request.
func NewFeed(maxSessions int, ttl time.Duration) *Feed {
	return &Feed{latest: cache.NewLRUCache[uint64](maxSessions, ttl)}
}

// Issue registers a new request and makes every older ticket of the session stale.
func (f *Feed) Issue(ctx context.Context, session string, r core.DateRange) Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	gen, _ := f.latest.Get(ctx, session)
	gen++
	f.latest.Set(ctx, session, gen)
	return Ticket{Session: session, Range: r, Gen: gen}
}

// Current reports whether t is still the latest request of its session.
func (f *Feed) Current(ctx context.Context, t Ticket) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	gen, ok := f.latest.Get(ctx, t.Session)
	return ok && gen == t.Gen
}

// Deliver runs compute for t and discards the result when t went stale meanwhile.
func Deliver[T any](ctx context.Context, f *Feed, t Ticket, compute func(context.Context) (T, error)) (T, error) {
	out, err := compute(ctx)
	if err != nil {
		return out, err
	}
	if !f.Current(ctx, t) {
		var zero T
		return zero, ErrStale
	}
	return out, nil
}

// CleanExpired drops sessions idle past the TTL.
func (f *Feed) CleanExpired() int {
	return f.latest.CleanExpired()
}
