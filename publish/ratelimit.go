package publish

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Publisher with a token-bucket limiter. Publish
// blocks until a token is available or the context is cancelled, which
// keeps a burst of workflow runs from flooding the broker.
//
// Example:
//
//	// At most 100 events/second, bursts of 10
//	pub := publish.NewRateLimited(inner, 100, 10)
type RateLimited struct {
	next    Publisher
	limiter *rate.Limiter
}

// NewRateLimited creates a rate-limited publisher.
//
// Parameters:
//   - next: the publisher to delegate to
//   - rps: events per second
//   - burst: maximum burst size
func NewRateLimited(next Publisher, rps float64, burst int) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Publish waits for a token, then delegates.
func (p *RateLimited) Publish(ctx context.Context, name string, tenantID string, payload any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return p.next.Publish(ctx, name, tenantID, payload)
}

// SetLimit updates the rate dynamically.
func (p *RateLimited) SetLimit(rps float64) {
	p.limiter.SetLimit(rate.Limit(rps))
}

// Compile-time check
var _ Publisher = (*RateLimited)(nil)
