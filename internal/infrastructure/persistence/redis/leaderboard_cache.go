package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Whole ranked boards are stored as JSON under
// leaderboard:board:{generation}:{period}:{limit}. Invalidate bumps the
// generation, so every board written before it becomes unreachable at once
// and expires on its own TTL.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache implements leaderboard.Cache.
type LeaderboardCache struct {
	cache *Cache
}

var _ leaderboard.Cache = (*LeaderboardCache)(nil)

// NewLeaderboardCache creates a leaderboard cache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// boardRecord is the stored form of a board.
type boardRecord struct {
	Period      string        `json:"period"`
	Entries     []entryRecord `json:"entries"`
	GeneratedAt time.Time     `json:"generated_at"`
	Eligible    int           `json:"eligible"`
}

type entryRecord struct {
	Rank          int    `json:"rank"`
	DisplayName   string `json:"display_name"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	Level         int    `json:"level"`
}

const generationKey = PrefixLeaderboard + "generation"

func boardKey(gen int64, period leaderboard.Period, limit int) string {
	return fmt.Sprintf("%sboard:%d:%s:%d", PrefixLeaderboard, gen, period, limit)
}

// Get returns a cached board. A miss is (nil, false, nil).
func (l *LeaderboardCache) Get(ctx context.Context, period leaderboard.Period, limit int) (*leaderboard.Board, bool, error) {
	gen, err := l.cache.Counter(ctx, generationKey)
	if err != nil {
		return nil, false, err
	}

	var rec boardRecord
	if err := l.cache.GetJSON(ctx, boardKey(gen, period, limit), &rec); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}

	board := &leaderboard.Board{
		Period:      leaderboard.Period(rec.Period),
		Entries:     make([]leaderboard.Entry, 0, len(rec.Entries)),
		GeneratedAt: rec.GeneratedAt.UTC(),
		Eligible:    rec.Eligible,
	}
	for _, e := range rec.Entries {
		board.Entries = append(board.Entries, leaderboard.Entry{
			Rank:          e.Rank,
			DisplayName:   e.DisplayName,
			CurrentStreak: e.CurrentStreak,
			LongestStreak: e.LongestStreak,
			Level:         e.Level,
		})
	}
	return board, true, nil
}

// Set stores a board for ttl under the current generation.
func (l *LeaderboardCache) Set(ctx context.Context, board leaderboard.Board, limit int, ttl time.Duration) error {
	gen, err := l.cache.Counter(ctx, generationKey)
	if err != nil {
		return err
	}

	rec := boardRecord{
		Period:      string(board.Period),
		Entries:     make([]entryRecord, 0, len(board.Entries)),
		GeneratedAt: board.GeneratedAt,
		Eligible:    board.Eligible,
	}
	for _, e := range board.Entries {
		rec.Entries = append(rec.Entries, entryRecord{
			Rank:          e.Rank,
			DisplayName:   e.DisplayName,
			CurrentStreak: e.CurrentStreak,
			LongestStreak: e.LongestStreak,
			Level:         e.Level,
		})
	}
	return l.cache.SetJSON(ctx, boardKey(gen, board.Period, limit), rec, ttl)
}

// Invalidate makes every cached board unreachable.
func (l *LeaderboardCache) Invalidate(ctx context.Context) error {
	_, err := l.cache.Bump(ctx, generationKey)
	return err
}
