package user

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

func newTestUser(t *testing.T, now time.Time) *User {
	t.Helper()
	u, err := NewUser("user-1", "Jane Doe", true, now)
	require.NoError(t, err)
	return u
}

func ptr(t time.Time) *time.Time { return &t }

func TestComputeCurrentStreak(t *testing.T) {
	tracker := NewStreakTracker(timeutil.UTC())
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, tracker.ComputeCurrentStreak(nil, now))
	assert.Equal(t, 1, tracker.ComputeCurrentStreak(ptr(now.Add(-time.Hour)), now))
	assert.Equal(t, 2, tracker.ComputeCurrentStreak(ptr(time.Date(2024, 4, 9, 23, 59, 0, 0, time.UTC)), now))
	assert.Equal(t, 31, tracker.ComputeCurrentStreak(ptr(now.AddDate(0, 0, -30)), now))
}

func TestComputeCurrentStreak_FutureStartIsZero(t *testing.T) {
	tracker := NewStreakTracker(timeutil.UTC())
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, tracker.ComputeCurrentStreak(ptr(now.AddDate(0, 0, 2)), now))
	// Later the same day still counts as today.
	assert.Equal(t, 1, tracker.ComputeCurrentStreak(ptr(now.Add(3*time.Hour)), now))
}

func TestReconcile_PersistsOnlyOnChange(t *testing.T) {
	tracker := NewStreakTracker(timeutil.UTC())
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	u := newTestUser(t, now)
	u.StreakStart = ptr(now.AddDate(0, 0, -4))
	u.CurrentStreak = 3

	assert.True(t, tracker.Reconcile(u, now))
	assert.Equal(t, 5, u.CurrentStreak)
	assert.False(t, tracker.Reconcile(u, now))
}

func TestReset_Basic(t *testing.T) {
	tracker := NewStreakTracker(timeutil.UTC())
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	u := newTestUser(t, now)
	u.StreakStart = ptr(now.AddDate(0, 0, -9))
	u.CurrentStreak = 10
	u.LongestStreak = 4

	out := tracker.Reset(u, now)

	assert.Equal(t, 10, out.PreviousStreak)
	assert.Equal(t, 0, u.CurrentStreak)
	assert.Equal(t, 10, u.LongestStreak)
	assert.Equal(t, 1, u.TotalResets)
	require.NotNil(t, u.StreakStart)
	assert.Equal(t, now, *u.StreakStart)
}

func TestReset_FromZeroStillCounts(t *testing.T) {
	tracker := NewStreakTracker(timeutil.UTC())
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	u := newTestUser(t, now)
	u.LongestStreak = 7

	tracker.Reset(u, now)

	assert.Equal(t, 0, u.CurrentStreak)
	assert.Equal(t, 1, u.TotalResets)
	assert.Equal(t, 7, u.LongestStreak)
}

func TestReset_LongestIsMaxObservedBeforeAnyReset(t *testing.T) {
	tracker := NewStreakTracker(timeutil.UTC())
	rng := rand.New(rand.NewSource(7))
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for run := 0; run < 50; run++ {
		u := newTestUser(t, now)
		clock := now
		maxObserved := 0
		resets := 0
		u.StreakStart = ptr(clock)

		for step := 0; step < 30; step++ {
			clock = clock.Add(time.Duration(rng.Intn(96)) * time.Hour)
			tracker.Reconcile(u, clock)

			if rng.Intn(3) == 0 {
				before := u.LongestStreak
				observed := u.CurrentStreak
				if observed > maxObserved {
					maxObserved = observed
				}

				tracker.Reset(u, clock)
				resets++

				assert.Equal(t, 0, u.CurrentStreak)
				assert.Equal(t, resets, u.TotalResets)
				assert.GreaterOrEqual(t, u.LongestStreak, before)
				assert.Equal(t, maxObserved, u.LongestStreak)
			}
		}
	}
}

func TestStart_RejectsFutureDay(t *testing.T) {
	tracker := NewStreakTracker(timeutil.UTC())
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	u := newTestUser(t, now)

	err := tracker.Start(u, now.AddDate(0, 0, 1), now)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Nil(t, u.StreakStart)

	require.NoError(t, tracker.Start(u, now.AddDate(0, 0, -2), now))
	assert.Equal(t, 3, u.CurrentStreak)
	assert.True(t, u.IsOnboarded())
}

func TestSnapshot_LongestNeverBelowCurrent(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	u := newTestUser(t, now)
	u.CurrentStreak = 12
	u.LongestStreak = 5

	s := u.Streak()
	assert.Equal(t, 12, s.LongestStreak)
	assert.Equal(t, 5, u.LongestStreak)
}

func TestApplyXP_LevelsUp(t *testing.T) {
	now := time.Now()
	u := newTestUser(t, now)

	oldLevel, newLevel := u.ApplyXP(499, now)
	assert.Equal(t, 1, oldLevel)
	assert.Equal(t, 1, newLevel)

	oldLevel, newLevel = u.ApplyXP(1, now)
	assert.Equal(t, 1, oldLevel)
	assert.Equal(t, 2, newLevel)
	assert.Equal(t, 500, u.TotalXP)
}

func TestNewUser_Validation(t *testing.T) {
	now := time.Now()

	_, err := NewUser("", "Jane", true, now)
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)

	_, err = NewUser("u1", "   ", true, now)
	assert.ErrorIs(t, err, shared.ErrInvalidDisplayName)
}

func TestClone_IsDeep(t *testing.T) {
	now := time.Now()
	u := newTestUser(t, now)
	u.StreakStart = ptr(now)

	c := u.Clone()
	*c.StreakStart = now.Add(time.Hour)

	assert.Equal(t, now, *u.StreakStart)
}
