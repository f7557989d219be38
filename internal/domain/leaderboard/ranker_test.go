package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

const day = 24 * time.Hour

func TestRank_WeeklyWindowUsesStreakStart(t *testing.T) {
	candidates := []Candidate{
		{UserID: "a", DisplayName: "Amy Adams", ShowOnLeaderboard: true, CurrentStreak: 4, StreakStart: at(3 * day)},
		{UserID: "b", DisplayName: "Bob Brown", ShowOnLeaderboard: true, CurrentStreak: 11, StreakStart: at(10 * day)},
		{UserID: "c", DisplayName: "Cid Cole", ShowOnLeaderboard: true, CurrentStreak: 41, StreakStart: at(40 * day)},
	}

	board := NewRanker(DefaultPolicy(), timeutil.UTC()).Rank(candidates, PeriodWeekly, 10, now)

	require.Len(t, board.Entries, 1)
	assert.Equal(t, "Amy A.", board.Entries[0].DisplayName)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, now, board.GeneratedAt)
}

func TestRank_MonthlyAndAllTime(t *testing.T) {
	candidates := []Candidate{
		{DisplayName: "Amy", ShowOnLeaderboard: true, CurrentStreak: 4, StreakStart: at(3 * day)},
		{DisplayName: "Bob", ShowOnLeaderboard: true, CurrentStreak: 11, StreakStart: at(10 * day)},
		{DisplayName: "Cid", ShowOnLeaderboard: true, CurrentStreak: 41, StreakStart: at(40 * day)},
		{DisplayName: "Dee", ShowOnLeaderboard: true, CurrentStreak: 0},
	}
	r := NewRanker(DefaultPolicy(), timeutil.UTC())

	monthly := r.Rank(candidates, PeriodMonthly, 10, now)
	require.Len(t, monthly.Entries, 2)
	assert.Equal(t, "Bob", monthly.Entries[0].DisplayName)
	assert.Equal(t, "Amy", monthly.Entries[1].DisplayName)

	all := r.Rank(candidates, PeriodAllTime, 10, now)
	require.Len(t, all.Entries, 4)
	assert.Equal(t, "Cid", all.Entries[0].DisplayName)
	assert.Equal(t, "Dee", all.Entries[3].DisplayName)
}

func TestRank_HiddenUsersExcluded(t *testing.T) {
	candidates := []Candidate{
		{DisplayName: "Shy Sam", ShowOnLeaderboard: false, CurrentStreak: 100},
		{DisplayName: "Open Olga", ShowOnLeaderboard: true, CurrentStreak: 1},
	}
	board := NewRanker(DefaultPolicy(), timeutil.UTC()).Rank(candidates, PeriodAllTime, 10, now)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "Open O.", board.Entries[0].DisplayName)
}

func TestRank_StableTiesTruncateAndRanks(t *testing.T) {
	candidates := []Candidate{
		{DisplayName: "First", ShowOnLeaderboard: true, CurrentStreak: 5, LongestStreak: 1},
		{DisplayName: "Second", ShowOnLeaderboard: true, CurrentStreak: 9},
		{DisplayName: "Third", ShowOnLeaderboard: true, CurrentStreak: 5, LongestStreak: 20},
		{DisplayName: "Fourth", ShowOnLeaderboard: true, CurrentStreak: 1},
	}

	board := NewRanker(DefaultPolicy(), timeutil.UTC()).Rank(candidates, PeriodAllTime, 3, now)

	require.Len(t, board.Entries, 3)
	assert.Equal(t, 4, board.Eligible)
	assert.Equal(t, []string{"Second", "First", "Third"}, names(board))
	for i, e := range board.Entries {
		assert.Equal(t, i+1, e.Rank)
	}

	tb := NewRanker(Policy{TieBreak: TieBreakLongestStreak}, timeutil.UTC()).Rank(candidates, PeriodAllTime, 3, now)
	assert.Equal(t, []string{"Second", "Third", "First"}, names(tb))
}

func TestRank_LastActivityBasisAndDerivedStreak(t *testing.T) {
	candidates := []Candidate{
		{DisplayName: "Old Start", ShowOnLeaderboard: true, CurrentStreak: 1, StreakStart: at(40 * day), LastActivityAt: at(time.Hour)},
		{DisplayName: "Stale", ShowOnLeaderboard: true, CurrentStreak: 50, StreakStart: at(2 * day), LastActivityAt: at(20 * day)},
	}
	r := NewRanker(Policy{WindowBasis: BasisLastActivity, DeriveStreakOnRead: true}, timeutil.UTC())

	board := r.Rank(candidates, PeriodWeekly, 10, now)

	require.Len(t, board.Entries, 1)
	assert.Equal(t, "Old S.", board.Entries[0].DisplayName)
	assert.Equal(t, 41, board.Entries[0].CurrentStreak)
}

func TestAnonymize(t *testing.T) {
	assert.Equal(t, "Jane D.", Anonymize("Jane Doe"))
	assert.Equal(t, "Jane D.", Anonymize("  Jane   Doe  Smith "))
	assert.Equal(t, "Cher", Anonymize("Cher"))
	assert.Equal(t, "Zoë É.", Anonymize("Zoë Éclair"))
	assert.Equal(t, AnonymousName, Anonymize("   "))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("Weekly")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeekly, p)

	p, err = ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodAllTime, p)

	_, err = ParsePeriod("daily")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func names(b Board) []string {
	out := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		out[i] = e.DisplayName
	}
	return out
}
