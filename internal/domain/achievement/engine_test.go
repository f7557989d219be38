package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/wellbeing"
)

var base = time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

func logs(moods ...bool) []*wellbeing.DailyLog {
	out := make([]*wellbeing.DailyLog, 0, len(moods))
	for i, has := range moods {
		l := &wellbeing.DailyLog{UserID: "u1", Date: base.AddDate(0, 0, -i)}
		if has {
			m := 6
			l.MoodRating = &m
		}
		out = append(out, l)
	}
	return out
}

func testUser(t *testing.T) *user.User {
	t.Helper()
	u, err := user.NewUser("u1", "Jane Doe", true, base)
	require.NoError(t, err)
	return u
}

func moodTracker() *Achievement {
	return &Achievement{ID: "mood-tracker", Name: "Mood Tracker", Category: CategoryHealth, Criteria: Criteria{Type: "mood_logs", Value: 7}, IsActive: true}
}

func TestMoodTracker_SixLogsDoNotUnlock(t *testing.T) {
	e := NewEngine(nil)
	got := e.Evaluate(testUser(t), NewHistory(logs(true, true, true, true, true, true), 0), []*Achievement{moodTracker()}, nil)
	assert.Empty(t, got)
}

func TestMoodTracker_SevenLogsUnlock(t *testing.T) {
	e := NewEngine(nil)
	got := e.Evaluate(testUser(t), NewHistory(logs(true, true, true, true, true, true, true), 0), []*Achievement{moodTracker()}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "mood-tracker", got[0].ID)
}

func TestMoodTracker_OneMissingMoodDoesNotUnlock(t *testing.T) {
	e := NewEngine(nil)
	got := e.Evaluate(testUser(t), NewHistory(logs(true, true, true, false, true, true, true), 0), []*Achievement{moodTracker()}, nil)
	assert.Empty(t, got)
}

func TestMoodTracker_OnlyMostRecentWindowCounts(t *testing.T) {
	// Eighth (oldest) log has no mood; the newest seven do.
	history := NewHistory(logs(true, true, true, true, true, true, true, false), 0)
	assert.True(t, MoodTrackerRule{}.Qualifies(nil, history, Criteria{Value: 7}))

	// History given out of order is sorted by date first.
	shuffled := logs(false, true, true, true, true, true, true, true)
	shuffled[0], shuffled[7] = shuffled[7], shuffled[0]
	assert.False(t, MoodTrackerRule{}.Qualifies(nil, NewHistory(shuffled, 0), Criteria{Value: 7}))
}

func TestMoodTracker_ExplicitMinCount(t *testing.T) {
	rule := MoodTrackerRule{Window: 3, MinCount: 5}
	assert.False(t, rule.Qualifies(nil, NewHistory(logs(true, true, true, true), 0), Criteria{}))
	assert.True(t, rule.Qualifies(nil, NewHistory(logs(true, true, true, false, false), 0), Criteria{}))
	assert.False(t, MoodTrackerRule{}.Qualifies(nil, nil, Criteria{}))
}

func TestStreakAndPhoenixRules(t *testing.T) {
	u := testUser(t)
	u.CurrentStreak = 30
	u.TotalResets = 1

	catalog := []*Achievement{
		{ID: "streak-30", Name: "30 days", Category: CategoryStreak, Criteria: Criteria{Value: 30}, IsActive: true},
		{ID: "streak-90", Name: "90 days", Category: CategoryStreak, Criteria: Criteria{Value: 90}, IsActive: true},
		{ID: "phoenix", Name: "Phoenix Rising", Category: CategorySpecial, Criteria: Criteria{Value: 1}, IsActive: true},
	}

	got := NewEngine(nil).Evaluate(u, nil, catalog, nil)
	require.Len(t, got, 2)
	assert.Equal(t, "phoenix", got[0].ID)
	assert.Equal(t, "streak-30", got[1].ID)
}

func TestEvaluate_SkipsInactiveUnlockedAndUnknown(t *testing.T) {
	u := testUser(t)
	u.CurrentStreak = 100

	catalog := []*Achievement{
		{ID: "streak-1", Category: CategoryStreak, Criteria: Criteria{Value: 1}, IsActive: true},
		{ID: "streak-2", Category: CategoryStreak, Criteria: Criteria{Value: 2}, IsActive: false},
		{ID: "social", Category: CategorySocial, IsActive: true},
		{ID: "milestone", Category: CategoryMilestone, IsActive: true},
		{ID: "mystery", Category: Category("MYSTERY"), IsActive: true},
	}

	got := NewEngine(nil).Evaluate(u, nil, catalog, map[string]bool{"streak-1": true})
	assert.Empty(t, got)
}

func TestNewHistory_Caps(t *testing.T) {
	moods := make([]bool, 400)
	h := NewHistory(logs(moods...), 0)
	assert.Len(t, h, MaxHistory)
	assert.Equal(t, base, h[0].Date)

	assert.Len(t, NewHistory(logs(moods...), 10), 10)
}

func TestAchievement_Validate(t *testing.T) {
	ok := &Achievement{ID: "streak-7", Name: "One week", Category: CategoryStreak, Criteria: Criteria{Value: 7}}
	assert.NoError(t, ok.Validate())

	bad := ok.Clone()
	bad.ID = "Has Spaces"
	assert.ErrorIs(t, bad.Validate(), shared.ErrValidation)

	bad = ok.Clone()
	bad.Category = "NOPE"
	assert.ErrorIs(t, bad.Validate(), shared.ErrInvalidAchievement)

	bad = ok.Clone()
	bad.XPReward = -1
	assert.ErrorIs(t, bad.Validate(), shared.ErrValidation)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" health ")
	require.NoError(t, err)
	assert.Equal(t, CategoryHealth, c)

	_, err = ParseCategory("fun")
	assert.ErrorIs(t, err, shared.ErrValidation)
}
