package config

import (
	"fmt"
	"strings"
	"time"
)

// Leaderboard window bases.
const (
	WindowBasisStreakStart  = "streak_start"
	WindowBasisLastActivity = "last_activity"
)

// Leaderboard tie-break keys.
const (
	TieBreakNone          = "none"
	TieBreakLongestStreak = "longest_streak"
	TieBreakTotalXP       = "total_xp"
)

// Policy holds product rules that are tuned without code changes.
type Policy struct {
	// Leaderboard
	LeaderboardWindowBasis  string        // streak_start | last_activity
	LeaderboardTieBreak     string        // none | longest_streak | total_xp
	LeaderboardDeriveStreak bool          // recompute currentStreak from streakStart when ranking
	LeaderboardDefaultLimit int           // used when the caller passes no limit
	LeaderboardMaxLimit     int           // hard cap on limit
	LeaderboardCacheTTL     time.Duration // 0 disables the read cache

	// Achievements
	MoodWindowDefault int // window and minimum count when criteria.value is unset
	HistoryDays       int // how many daily logs the engine sees

	// XP summary
	RecentEventsLimit int

	// XP rewards for built-in activities
	XPDailyCheckin int
	XPOnboarding   int
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		LeaderboardWindowBasis:  WindowBasisStreakStart,
		LeaderboardTieBreak:     TieBreakNone,
		LeaderboardDeriveStreak: true,
		LeaderboardDefaultLimit: 10,
		LeaderboardMaxLimit:     100,
		LeaderboardCacheTTL:     30 * time.Second,
		MoodWindowDefault:       7,
		HistoryDays:             365,
		RecentEventsLimit:       10,
		XPDailyCheckin:          10,
		XPOnboarding:            50,
	}
}

// LoadPolicy reads policy overrides from environment variables.
func LoadPolicy() (Policy, error) {
	def := DefaultPolicy()
	p := Policy{
		LeaderboardWindowBasis:  strings.ToLower(getEnv("POLICY_LEADERBOARD_WINDOW_BASIS", def.LeaderboardWindowBasis)),
		LeaderboardTieBreak:     strings.ToLower(getEnv("POLICY_LEADERBOARD_TIE_BREAK", def.LeaderboardTieBreak)),
		LeaderboardDeriveStreak: getEnvBool("POLICY_LEADERBOARD_DERIVE_STREAK", def.LeaderboardDeriveStreak),
		LeaderboardDefaultLimit: getEnvInt("POLICY_LEADERBOARD_DEFAULT_LIMIT", def.LeaderboardDefaultLimit),
		LeaderboardMaxLimit:     getEnvInt("POLICY_LEADERBOARD_MAX_LIMIT", def.LeaderboardMaxLimit),
		LeaderboardCacheTTL:     getEnvDuration("POLICY_LEADERBOARD_CACHE_TTL", def.LeaderboardCacheTTL),
		MoodWindowDefault:       getEnvInt("POLICY_MOOD_WINDOW", def.MoodWindowDefault),
		HistoryDays:             getEnvInt("POLICY_HISTORY_DAYS", def.HistoryDays),
		RecentEventsLimit:       getEnvInt("POLICY_RECENT_EVENTS", def.RecentEventsLimit),
		XPDailyCheckin:          getEnvInt("POLICY_XP_DAILY_CHECKIN", def.XPDailyCheckin),
		XPOnboarding:            getEnvInt("POLICY_XP_ONBOARDING", def.XPOnboarding),
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	switch p.LeaderboardWindowBasis {
	case WindowBasisStreakStart, WindowBasisLastActivity:
	default:
		return fmt.Errorf("unknown leaderboard window basis %q", p.LeaderboardWindowBasis)
	}

	switch p.LeaderboardTieBreak {
	case TieBreakNone, TieBreakLongestStreak, TieBreakTotalXP:
	default:
		return fmt.Errorf("unknown leaderboard tie-break %q", p.LeaderboardTieBreak)
	}

	if p.LeaderboardDefaultLimit < 1 || p.LeaderboardMaxLimit < p.LeaderboardDefaultLimit {
		return fmt.Errorf("leaderboard limits must satisfy 1 <= default (%d) <= max (%d)",
			p.LeaderboardDefaultLimit, p.LeaderboardMaxLimit)
	}

	if p.MoodWindowDefault < 1 {
		return fmt.Errorf("mood window must be positive, got %d", p.MoodWindowDefault)
	}

	if p.HistoryDays < 1 || p.HistoryDays > 365 {
		return fmt.Errorf("history days must be 1-365, got %d", p.HistoryDays)
	}

	// The mood rule looks at the last MoodWindowDefault logs; fewer days of
	// history would make it unreachable.
	if p.HistoryDays < p.MoodWindowDefault {
		return fmt.Errorf("history days (%d) must cover the mood window (%d)", p.HistoryDays, p.MoodWindowDefault)
	}

	if p.RecentEventsLimit < 1 {
		return fmt.Errorf("recent events limit must be positive, got %d", p.RecentEventsLimit)
	}

	if p.XPDailyCheckin < 0 || p.XPOnboarding < 0 {
		return fmt.Errorf("xp rewards cannot be negative")
	}

	return nil
}
