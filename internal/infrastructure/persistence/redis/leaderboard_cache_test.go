package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
)

func newTestCache(t *testing.T) *LeaderboardCache {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	c, err := NewCache(context.Background(), Config{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	lc := NewLeaderboardCache(c)
	require.NoError(t, lc.Invalidate(context.Background()))
	return lc
}

func TestLeaderboardCache_RoundTrip(t *testing.T) {
	lc := newTestCache(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	_, found, err := lc.Get(ctx, leaderboard.PeriodWeekly, 10)
	require.NoError(t, err)
	assert.False(t, found)

	board := leaderboard.Board{
		Period:      leaderboard.PeriodWeekly,
		GeneratedAt: at,
		Eligible:    2,
		Entries: []leaderboard.Entry{
			{Rank: 1, DisplayName: "Jane D.", CurrentStreak: 6, LongestStreak: 9, Level: 2},
			{Rank: 2, DisplayName: "Cher", CurrentStreak: 3, LongestStreak: 3, Level: 1},
		},
	}
	require.NoError(t, lc.Set(ctx, board, 10, time.Minute))

	got, found, err := lc.Get(ctx, leaderboard.PeriodWeekly, 10)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, board, *got)

	// Another limit is a separate key.
	_, found, err = lc.Get(ctx, leaderboard.PeriodWeekly, 5)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, lc.Invalidate(ctx))
	_, found, err = lc.Get(ctx, leaderboard.PeriodWeekly, 10)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConfig_Options(t *testing.T) {
	opts, err := Config{Host: "cache", Port: 6380, DB: 2, PoolSize: 7}.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = Config{URL: "redis://:secret@example:6379/3"}.Options()
	require.NoError(t, err)
	assert.Equal(t, "example:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = Config{URL: "http://nope"}.Options()
	assert.ErrorIs(t, err, ErrCacheConnection)
}
