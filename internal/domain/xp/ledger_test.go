package xp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverly/progress-hub/internal/domain/shared"
)

func TestLevelFor_Table(t *testing.T) {
	cases := []struct {
		total int
		level int
		next  int
	}{
		{0, 1, 500},
		{499, 1, 1},
		{500, 2, 500},
		{999, 2, 1},
		{1000, 3, 500},
	}
	for _, c := range cases {
		assert.Equal(t, c.level, LevelFor(c.total), "level for %d", c.total)
		assert.Equal(t, c.next, ForNextLevel(c.total), "next for %d", c.total)
	}
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierSeedling, TierFor(1))
	assert.Equal(t, TierSeedling, TierFor(5))
	assert.Equal(t, TierSprout, TierFor(6))
	assert.Equal(t, TierGrove, TierFor(20))
	assert.Equal(t, TierSummit, TierFor(21))
	assert.Equal(t, TierSummit, TierFor(400))
	assert.Equal(t, TierSeedling, TierFor(0))
}

func TestNewEvent_Validation(t *testing.T) {
	now := time.Now()

	_, err := NewEvent("e1", "u1", "daily_checkin", 0, now)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewEvent("e1", "u1", "daily_checkin", -5, now)
	assert.ErrorIs(t, err, shared.ErrInvalidPoints)

	_, err = NewEvent("e1", "u1", "Not Valid!", 5, now)
	assert.ErrorIs(t, err, shared.ErrInvalidActivityType)

	_, err = NewEvent("e1", "", "daily_checkin", 5, now)
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)

	e, err := NewEvent("e1", "u1", "daily_checkin", 5, now)
	require.NoError(t, err)
	assert.Equal(t, 5, e.Points)
}

func TestSum_EqualsArithmeticSum(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []int{10, 50, 7, 433, 1, 499}
	types := []shared.ActivityType{"daily_checkin", "onboarding", "daily_checkin", "achievement", "journal", "achievement"}

	var events []*Event
	want := 0
	for i, p := range points {
		e, err := NewEvent("e", "u1", types[i], p, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		events = append(events, e)
		want += p
	}

	totals := Sum(events)
	assert.Equal(t, want, totals.Total)
	assert.Equal(t, 17, totals.Breakdown["daily_checkin"])
	assert.Equal(t, 932, totals.Breakdown["achievement"])

	s := Summarize(totals, events)
	assert.Equal(t, LevelFor(want), s.Level)
	assert.Equal(t, 1000, want)
	assert.Equal(t, 3, s.Level)
	assert.Equal(t, 500, s.XPForNextLevel)
	require.Len(t, s.RecentEvents, len(events))
	assert.Equal(t, 499, s.RecentEvents[0].Points)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(Totals{}, nil)
	assert.Equal(t, 0, s.TotalXP)
	assert.Equal(t, 1, s.Level)
	assert.Equal(t, LevelWidth, s.XPForNextLevel)
	assert.Equal(t, TierSeedling, s.Tier)
	assert.NotNil(t, s.Breakdown)
	assert.Empty(t, s.RecentEvents)
}
