package redis

import (
	"context"
	"time"

	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/pkg/circuitbreaker"
)

// GuardedLeaderboardCache puts a circuit breaker in front of a board cache.
// While the breaker is open reads are misses and writes are dropped, so
// leaderboard requests go straight to the store instead of waiting on
// Redis timeouts.
type GuardedLeaderboardCache struct {
	inner   leaderboard.Cache
	breaker *circuitbreaker.CircuitBreaker
}

var _ leaderboard.Cache = (*GuardedLeaderboardCache)(nil)

// NewGuardedLeaderboardCache wraps inner.
func NewGuardedLeaderboardCache(inner leaderboard.Cache, breaker *circuitbreaker.CircuitBreaker) *GuardedLeaderboardCache {
	return &GuardedLeaderboardCache{inner: inner, breaker: breaker}
}

// Breaker exposes the breaker for health checks.
func (g *GuardedLeaderboardCache) Breaker() *circuitbreaker.CircuitBreaker {
	return g.breaker
}

// Get implements leaderboard.Cache.
func (g *GuardedLeaderboardCache) Get(ctx context.Context, period leaderboard.Period, limit int) (*leaderboard.Board, bool, error) {
	var (
		board *leaderboard.Board
		found bool
	)
	err := g.breaker.ExecuteWithFallback(ctx, func(ctx context.Context) error {
		var err error
		board, found, err = g.inner.Get(ctx, period, limit)
		return err
	}, func(error) error {
		board, found = nil, false
		return nil
	})
	return board, found, err
}

// Set implements leaderboard.Cache.
func (g *GuardedLeaderboardCache) Set(ctx context.Context, board leaderboard.Board, limit int, ttl time.Duration) error {
	return g.breaker.ExecuteWithFallback(ctx, func(ctx context.Context) error {
		return g.inner.Set(ctx, board, limit, ttl)
	}, func(error) error { return nil })
}

// Invalidate always reaches the inner cache. Skipping it would leave stale
// boards behind once Redis recovers.
func (g *GuardedLeaderboardCache) Invalidate(ctx context.Context) error {
	return g.inner.Invalidate(ctx)
}
