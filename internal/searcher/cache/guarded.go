package cache

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/resilience"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/redis"
)

// Guarded wraps a Backend with a circuit breaker so a dead Redis costs one
// failed call per reset window instead of one per search. A key-not-found
// reply counts as success.
type Guarded struct {
	next    Backend
	breaker *resilience.CircuitBreaker
}

func NewGuarded(next Backend, cb *resilience.CircuitBreaker) *Guarded {
	return &Guarded{next: next, breaker: cb}
}

func (g *Guarded) Get(ctx context.Context, key string) (string, error) {
	var (
		val    string
		getErr error
	)
	err := g.breaker.Execute(func() error {
		val, getErr = g.next.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			return nil
		}
		return getErr
	})
	if err != nil {
		return "", err
	}
	return val, getErr
}

func (g *Guarded) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		return g.next.Set(ctx, key, value, ttl)
	})
}

func (g *Guarded) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := g.breaker.Execute(func() error {
		var err error
		n, err = g.next.FlushByPattern(ctx, pattern)
		return err
	})
	return n, err
}
