package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/wellbeing"
	"github.com/recoverly/progress-hub/internal/domain/xp"
)

var now = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, s *Store, id string) {
	t.Helper()
	u, err := user.NewUser(id, "Test "+id, true, now)
	require.NoError(t, err)
	require.NoError(t, s.Repositories().Users.Create(context.Background(), u))
}

func TestInUserTx_CommitsAllWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "u1")

	err := s.InUserTx(ctx, "u1", func(ctx context.Context, r store.Repositories) error {
		u, err := r.Users.GetByID(ctx, "u1")
		require.NoError(t, err)
		u.ApplyXP(10, now)
		e, _ := xp.NewEvent("e1", "u1", shared.ActivityDailyCheckin, 10, now)
		require.NoError(t, r.XP.Append(ctx, e))

		// Staged writes are visible inside the transaction only.
		totals, _ := r.XP.Totals(ctx, "u1")
		assert.Equal(t, 10, totals.Total)
		outside, _ := s.Repositories().XP.Totals(ctx, "u1")
		assert.Equal(t, 0, outside.Total)

		return r.Users.Update(ctx, u)
	})
	require.NoError(t, err)

	u, err := s.Repositories().Users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, u.TotalXP)
	totals, _ := s.Repositories().XP.Totals(ctx, "u1")
	assert.Equal(t, 10, totals.Total)
}

func TestInUserTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "u1")
	boom := errors.New("boom")

	err := s.InUserTx(ctx, "u1", func(ctx context.Context, r store.Repositories) error {
		e, _ := xp.NewEvent("e1", "u1", shared.ActivityDailyCheckin, 10, now)
		require.NoError(t, r.XP.Append(ctx, e))
		_, err := r.Achievements.Unlock(ctx, &achievement.UserAchievement{UserID: "u1", AchievementID: "a", UnlockedAt: now})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	totals, _ := s.Repositories().XP.Totals(ctx, "u1")
	assert.Equal(t, 0, totals.Total)
	unlocked, _ := s.Repositories().Achievements.ListUnlocked(ctx, "u1")
	assert.Empty(t, unlocked)
}

func TestInUserTx_MissingUser(t *testing.T) {
	err := New().InUserTx(context.Background(), "ghost", func(context.Context, store.Repositories) error { return nil })
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestInUserTx_CancelledContextWaitingForLock(t *testing.T) {
	s := New()
	seedUser(t, s, "u1")

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.InUserTx(context.Background(), "u1", func(context.Context, store.Repositories) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.InUserTx(ctx, "u1", func(context.Context, store.Repositories) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestUnlock_IsConditional(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "u1")
	repo := s.Repositories().Achievements

	ua := &achievement.UserAchievement{UserID: "u1", AchievementID: "phoenix", UnlockedAt: now}
	created, err := repo.Unlock(ctx, ua)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Unlock(ctx, ua)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestConcurrentUserTx_Serialised(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "u1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.InUserTx(ctx, "u1", func(ctx context.Context, r store.Repositories) error {
				u, err := r.Users.GetByID(ctx, "u1")
				if err != nil {
					return err
				}
				u.ApplyXP(1, now)
				return r.Users.Update(ctx, u)
			})
		}()
	}
	wg.Wait()

	u, err := s.Repositories().Users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, u.TotalXP)
}

func TestLogs_UpsertAndQueries(t *testing.T) {
	s := New()
	ctx := context.Background()
	repo := s.Repositories().Logs

	for i := 0; i < 3; i++ {
		l, _ := wellbeing.NewDailyLog("l", "u1", time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC), now)
		created, err := repo.Upsert(ctx, l)
		require.NoError(t, err)
		assert.True(t, created)
	}
	again, _ := wellbeing.NewDailyLog("l", "u1", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), now)
	created, err := repo.Upsert(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)

	recent, _ := repo.ListRecent(ctx, "u1", 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "2024-03-03", recent[0].DateString())

	ranged, _ := repo.ListRange(ctx, "u1", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	require.Len(t, ranged, 1)

	_, err = repo.GetByDate(ctx, "u1", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLeaderboard_CandidatesInFetchOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		seedUser(t, s, id)
	}
	hidden, _ := user.NewUser("h", "Hidden", false, now)
	require.NoError(t, s.Repositories().Users.Create(ctx, hidden))

	got, err := s.Leaderboard().ListCandidates(ctx, leaderboard.CandidateQuery{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].UserID)

	since := now.Add(-time.Hour)
	got, err = s.Leaderboard().ListCandidates(ctx, leaderboard.CandidateQuery{Since: &since, Basis: leaderboard.BasisStreakStart})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreate_Duplicate(t *testing.T) {
	s := New()
	seedUser(t, s, "u1")
	u, _ := user.NewUser("u1", "Again", true, now)
	err := s.Repositories().Users.Create(context.Background(), u)
	assert.ErrorIs(t, err, shared.ErrConflict)
}
