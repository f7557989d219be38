// Package projections holds in-process read models. They are rebuilt from
// the record store on demand and never hold the only copy of any state.
package projections

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD VIEW - ranked boards kept in process memory
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardView implements leaderboard.Cache for a single instance. It is
// used when Redis is disabled; with several instances each holds its own
// copy and the TTL bounds how stale a peer can be.
type LeaderboardView struct {
	mu     sync.RWMutex
	boards map[string]viewEntry
	now    func() time.Time

	// version is incremented on each invalidation.
	version int64
}

type viewEntry struct {
	board     leaderboard.Board
	expiresAt time.Time
}

var _ leaderboard.Cache = (*LeaderboardView)(nil)

// NewLeaderboardView creates an empty view. now == nil means time.Now.
func NewLeaderboardView(now func() time.Time) *LeaderboardView {
	if now == nil {
		now = time.Now
	}
	return &LeaderboardView{
		boards:  make(map[string]viewEntry),
		now:     now,
		version: 1,
	}
}

func viewKey(period leaderboard.Period, limit int) string {
	return fmt.Sprintf("%s:%d", period, limit)
}

// Get returns a live board. Expired boards are dropped lazily.
func (lv *LeaderboardView) Get(_ context.Context, period leaderboard.Period, limit int) (*leaderboard.Board, bool, error) {
	key := viewKey(period, limit)

	lv.mu.RLock()
	e, ok := lv.boards[key]
	lv.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !lv.now().Before(e.expiresAt) {
		lv.mu.Lock()
		if cur, ok := lv.boards[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(lv.boards, key)
		}
		lv.mu.Unlock()
		return nil, false, nil
	}

	board := e.board
	board.Entries = append([]leaderboard.Entry(nil), e.board.Entries...)
	return &board, true, nil
}

// Set stores a copy of board for ttl.
func (lv *LeaderboardView) Set(_ context.Context, board leaderboard.Board, limit int, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	board.Entries = append([]leaderboard.Entry(nil), board.Entries...)

	lv.mu.Lock()
	defer lv.mu.Unlock()
	lv.boards[viewKey(board.Period, limit)] = viewEntry{board: board, expiresAt: lv.now().Add(ttl)}
	return nil
}

// Invalidate drops all boards.
func (lv *LeaderboardView) Invalidate(context.Context) error {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	lv.boards = make(map[string]viewEntry)
	lv.version++
	return nil
}

// Version returns the invalidation counter.
func (lv *LeaderboardView) Version() int64 {
	lv.mu.RLock()
	defer lv.mu.RUnlock()
	return lv.version
}

// Len returns the number of stored boards, expired ones included.
func (lv *LeaderboardView) Len() int {
	lv.mu.RLock()
	defer lv.mu.RUnlock()
	return len(lv.boards)
}
