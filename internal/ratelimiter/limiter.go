package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/notifyhub/tipcast/internal/domain"
)

// TypeLimiters holds one token bucket per notification type so a large
// new-tip broadcast cannot starve comment replies or the daily run.
// Burst equals the rate: no saved-up capacity above the per-second maximum.
type TypeLimiters struct {
	limiters map[domain.NotificationType]*rate.Limiter
	fallback *rate.Limiter
}

// New creates a TypeLimiters with ratePerSec gateway sends per second per type.
func New(ratePerSec int) *TypeLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec

	tl := &TypeLimiters{
		limiters: make(map[domain.NotificationType]*rate.Limiter, len(domain.AllTypes)),
		fallback: rate.NewLimiter(r, burst),
	}
	for _, t := range domain.AllTypes {
		tl.limiters[t] = rate.NewLimiter(r, burst)
	}
	return tl
}

// Unlimited never blocks. Used by tests and the CLI dry run.
func Unlimited() *TypeLimiters {
	tl := &TypeLimiters{
		limiters: make(map[domain.NotificationType]*rate.Limiter, len(domain.AllTypes)),
		fallback: rate.NewLimiter(rate.Inf, 0),
	}
	for _, t := range domain.AllTypes {
		tl.limiters[t] = tl.fallback
	}
	return tl
}

// Wait blocks until the type's limiter grants n tokens. A multicast waits for
// one token per target. Returns a non-nil error only if ctx is cancelled while
// waiting or n exceeds the burst.
func (tl *TypeLimiters) Wait(ctx context.Context, t domain.NotificationType, n int) error {
	l, ok := tl.limiters[t]
	if !ok {
		l = tl.fallback
	}
	if n <= 1 {
		return l.Wait(ctx)
	}
	// WaitN rejects n above the burst, so large multicasts take tokens in
	// burst-sized slices.
	for n > 0 {
		step := n
		if b := l.Burst(); b > 0 && step > b {
			step = b
		}
		if err := l.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
