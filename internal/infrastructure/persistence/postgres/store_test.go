package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
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

// newTestStore connects to TEST_POSTGRES_DSN, migrates and truncates.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	conn, err := NewConnection(ctx, Config{URL: dsn, MaxConns: 8}, nil)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	_, err = conn.Pool().Exec(ctx, `TRUNCATE user_achievements, achievements, daily_logs, xp_events, users`)
	require.NoError(t, err)

	return NewStore(conn)
}

func seedUser(t *testing.T, s *Store, id string, created time.Time) *user.User {
	t.Helper()
	u, err := user.NewUser(id, "Test "+id, true, created)
	require.NoError(t, err)
	require.NoError(t, s.Repositories().Users.Create(context.Background(), u))
	return u
}

func TestUserRepository_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "u1", now)

	assert.ErrorIs(t, s.Repositories().Users.Create(ctx, u), shared.ErrUserAlreadyExists)

	start := now.Add(-72 * time.Hour)
	u.StreakStart = &start
	u.OnboardedAt = &now
	u.CurrentStreak = 4
	u.LongestStreak = 4
	u.ApplyXP(520, now)
	require.NoError(t, s.Repositories().Users.Update(ctx, u))

	got, err := s.Repositories().Users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, start.Equal(*got.StreakStart))
	assert.Equal(t, 4, got.CurrentStreak)
	assert.Equal(t, 520, got.TotalXP)
	assert.Equal(t, 2, got.CurrentLevel)
	assert.Equal(t, u.CurrentTier, got.CurrentTier)

	_, err = s.Repositories().Users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrUserNotFound)

	ghost, _ := user.NewUser("ghost", "Ghost", true, now)
	assert.ErrorIs(t, s.Repositories().Users.Update(ctx, ghost), shared.ErrUserNotFound)
}

func TestInUserTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", now)
	boom := errors.New("boom")

	err := s.InUserTx(ctx, "u1", func(ctx context.Context, r store.Repositories) error {
		e, err := xp.NewEvent(uuid.NewString(), "u1", shared.ActivityDailyCheckin, 10, now)
		require.NoError(t, err)
		require.NoError(t, r.XP.Append(ctx, e))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	totals, err := s.Repositories().XP.Totals(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, totals.Total)

	err = s.InUserTx(ctx, "nobody", func(context.Context, store.Repositories) error { return nil })
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

func TestInUserTx_SerialisesSameUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", now)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InUserTx(ctx, "u1", func(ctx context.Context, r store.Repositories) error {
				u, err := r.Users.GetByID(ctx, "u1")
				if err != nil {
					return err
				}
				u.ApplyXP(10, now)
				return r.Users.Update(ctx, u)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := s.Repositories().Users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 100, u.TotalXP)
}

func TestXPRepository_TotalsAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", now)
	repo := s.Repositories().XP

	for i, pts := range []int{10, 50, 25} {
		activity := shared.ActivityDailyCheckin
		if i == 1 {
			activity = shared.ActivityOnboarding
		}
		e, err := xp.NewEvent(uuid.NewString(), "u1", activity, pts, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, e))
	}

	totals, err := repo.Totals(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 85, totals.Total)
	assert.Equal(t, 35, totals.Breakdown[shared.ActivityDailyCheckin])
	assert.Equal(t, 50, totals.Breakdown[shared.ActivityOnboarding])

	recent, err := repo.Recent(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 25, recent[0].Points)
	assert.Equal(t, 50, recent[1].Points)
}

func TestDailyLogRepository_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", now)
	repo := s.Repositories().Logs
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	l, err := wellbeing.NewDailyLog(uuid.NewString(), "u1", day, now)
	require.NoError(t, err)
	mood := 7
	l.MoodRating = &mood
	l.ActivitiesCompleted = []string{"meditation", "walk"}

	created, err := repo.Upsert(ctx, l)
	require.NoError(t, err)
	assert.True(t, created)

	energy := 4
	l.EnergyLevel = &energy
	created, err = repo.Upsert(ctx, l)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.GetByDate(ctx, "u1", day)
	require.NoError(t, err)
	assert.Equal(t, 7, *got.MoodRating)
	assert.Equal(t, 4, *got.EnergyLevel)
	assert.Nil(t, got.UrgeIntensity)
	assert.Equal(t, []string{"meditation", "walk"}, got.ActivitiesCompleted)
	assert.True(t, day.Equal(got.Date))

	_, err = repo.GetByDate(ctx, "u1", day.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, shared.ErrDailyLogNotFound)

	inRange, err := repo.ListRange(ctx, "u1", day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, inRange, 1)
	outOfRange, err := repo.ListRange(ctx, "u1", day.AddDate(0, 0, 1), day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, outOfRange)
}

func TestAchievementRepository_UpsertAndUnlock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", now)
	repo := s.Repositories().Achievements

	a := &achievement.Achievement{
		ID:        "first-day",
		Name:      "First Day",
		Category:  achievement.CategoryStreak,
		Criteria:  achievement.Criteria{Type: "streak_days", Value: 1},
		XPReward:  25,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := repo.Upsert(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)

	a.Name = "Day One"
	a.CreatedAt = now.Add(time.Hour)
	created, err = repo.Upsert(ctx, a)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.GetByID(ctx, "first-day")
	require.NoError(t, err)
	assert.Equal(t, "Day One", got.Name)
	assert.True(t, now.Equal(got.CreatedAt))

	ua := &achievement.UserAchievement{UserID: "u1", AchievementID: "first-day", UnlockedAt: now}
	ok, err := repo.Unlock(ctx, ua)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Unlock(ctx, ua)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := repo.ListUnlocked(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first-day", list[0].AchievementID)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, shared.ErrAchievementNotFound)
}

func TestLeaderboardRepository_Candidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedUser(t, s, "a", now)
	b := seedUser(t, s, "b", now.Add(time.Minute))
	hidden := seedUser(t, s, "hidden", now.Add(2*time.Minute))

	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-2 * 24 * time.Hour)
	a.StreakStart = &old
	b.StreakStart = &recent
	hidden.ShowOnLeaderboard = false
	for _, u := range []*user.User{a, b, hidden} {
		require.NoError(t, s.Repositories().Users.Update(ctx, u))
	}

	all, err := s.Leaderboard().ListCandidates(ctx, leaderboard.CandidateQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].UserID)
	assert.Equal(t, "b", all[1].UserID)

	since := now.Add(-7 * 24 * time.Hour)
	weekly, err := s.Leaderboard().ListCandidates(ctx, leaderboard.CandidateQuery{Since: &since, Basis: leaderboard.BasisStreakStart})
	require.NoError(t, err)
	require.Len(t, weekly, 1)
	assert.Equal(t, "b", weekly[0].UserID)
}
