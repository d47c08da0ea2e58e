package model

import (
	"context"
	"log/slog"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	defaultRatePerSecond = 2
	defaultBurst         = 2
	defaultMaxConcurrent = 4
)

type LimitOptions struct {
	// RatePerSecond is the sustained request rate across all callers of the limited client.
	RatePerSecond float64
	Burst         int
	// MaxConcurrent caps in-flight requests.
	MaxConcurrent int64
}

// Limited throttles a Client with a token bucket and a concurrency cap shared
// by every pipeline run that uses it.
type Limited struct {
	next    Client
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

func Limit(next Client, opts LimitOptions) *Limited {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = defaultRatePerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
	}
}

func (l *Limited) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", Classify("limiter", err)
	}
	defer l.sem.Release(1)

	if err := l.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", Classify("limiter", ctxErr)
		}
		// The wait would outlive the context deadline.
		slog.Warn("MODEL: Rate limiter wait exceeds deadline", "error", err)
		return "", NewProviderError("limiter", CategoryTimeout, 0, err)
	}

	return l.next.Generate(ctx, prompt, structured)
}
