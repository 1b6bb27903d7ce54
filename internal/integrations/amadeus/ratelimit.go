package amadeus

import (
	"context"
	"sync"
	"time"

	"flyshark/internal/domain"
)

// Searcher is anything that can answer a flight query.
type Searcher interface {
	Search(ctx context.Context, q domain.FlightQuery) ([]domain.RawOffer, error)
}

type rateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

// Wait blocks until at least interval has passed since the previous call.
func (r *rateLimiter) Wait(ctx context.Context) error {
	if r.interval <= 0 {
		return nil
	}
	for {
		now := time.Now()
		r.mu.Lock()
		if r.last.IsZero() || now.Sub(r.last) >= r.interval {
			r.last = now
			r.mu.Unlock()
			return nil
		}
		wait := r.interval - now.Sub(r.last)
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

type rateLimitedSearcher struct {
	next    Searcher
	limiter *rateLimiter
}

// NewRateLimited spaces calls to next by at least interval. A zero interval
// returns next unchanged.
func NewRateLimited(next Searcher, interval time.Duration) Searcher {
	if interval <= 0 {
		return next
	}
	return &rateLimitedSearcher{next: next, limiter: newRateLimiter(interval)}
}

func (r *rateLimitedSearcher) Search(ctx context.Context, q domain.FlightQuery) ([]domain.RawOffer, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &domain.SearchError{Provider: providerName, Message: "rate limit wait cancelled", Err: err}
	}
	return r.next.Search(ctx, q)
}
