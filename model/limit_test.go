package model

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingClient struct {
	inFlight atomic.Int64
	peak     atomic.Int64
	release  chan struct{}
}

func (c *blockingClient) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-c.release:
		return "{}", nil
	case <-ctx.Done():
		return "", Classify("blocking", ctx.Err())
	}
}

func TestLimit_Defaults(t *testing.T) {
	l := Limit(&blockingClient{}, LimitOptions{})
	assert.Equal(t, 2, l.limiter.Burst())
	assert.InDelta(t, 2.0, float64(l.limiter.Limit()), 0.001)
}

func TestLimited_CapsConcurrency(t *testing.T) {
	inner := &blockingClient{release: make(chan struct{})}
	l := Limit(inner, LimitOptions{RatePerSecond: 1000, Burst: 10, MaxConcurrent: 2})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Generate(context.Background(), "p", true)
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return inner.inFlight.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(t, int64(2), inner.peak.Load())
}

func TestLimited_CanceledWhileWaiting(t *testing.T) {
	inner := &blockingClient{release: make(chan struct{})}
	l := Limit(inner, LimitOptions{RatePerSecond: 1000, Burst: 10, MaxConcurrent: 1})

	go func() {
		_, _ = l.Generate(context.Background(), "holder", true)
	}()
	require.Eventually(t, func() bool { return inner.inFlight.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Generate(ctx, "waiter", true)
	require.Error(t, err)
	assert.True(t, IsCategory(err, CategoryCanceled))

	close(inner.release)
}

func TestLimited_DeadlineShorterThanTokenWait(t *testing.T) {
	inner := &blockingClient{release: make(chan struct{})}
	close(inner.release)
	l := Limit(inner, LimitOptions{RatePerSecond: 0.01, Burst: 1, MaxConcurrent: 1})

	_, err := l.Generate(context.Background(), "first", true)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = l.Generate(ctx, "second", true)
	require.Error(t, err)
	assert.True(t, IsCategory(err, CategoryTimeout))
}

func TestWithTimeout(t *testing.T) {
	inner := &blockingClient{release: make(chan struct{})}
	defer close(inner.release)

	assert.Same(t, Client(inner), WithTimeout(inner, 0))

	_, err := WithTimeout(inner, 20*time.Millisecond).Generate(context.Background(), "p", true)
	require.Error(t, err)
	assert.True(t, IsCategory(err, CategoryTimeout))
}
