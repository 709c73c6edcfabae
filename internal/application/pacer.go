package application

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces outbound provider calls to stay within third-party rate
// limits.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NopPacer performs no pacing. Used in tests and for providers without
// meaningful quotas.
type NopPacer struct{}

func (NopPacer) Wait(context.Context) error { return nil }

// TokenBucket is a token-bucket pacer: calls drain tokens that refill at a
// fixed rate up to a burst ceiling. The clock and sleep hooks are injectable
// so tests stay deterministic and do not sleep.
type TokenBucket struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTokenBucket creates a pacer refilling at rate tokens per second with
// the given burst capacity.
func NewTokenBucket(rate float64, burst int) *TokenBucket {
	if rate <= 0 {
		rate = 1
	}
	if burst < 1 {
		burst = 1
	}
	bucket := &TokenBucket{
		rate:  rate,
		burst: float64(burst),
		now:   time.Now,
		sleep: sleepContext,
	}
	bucket.tokens = bucket.burst
	bucket.last = bucket.now()
	return bucket
}

// Wait takes one token, blocking until one is available or ctx is done.
func (b *TokenBucket) Wait(ctx context.Context) error {
	b.mu.Lock()
	now := b.now()
	b.tokens += now.Sub(b.last).Seconds() * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		b.mu.Unlock()
		return nil
	}

	wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
	b.tokens--
	b.mu.Unlock()
	return b.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
