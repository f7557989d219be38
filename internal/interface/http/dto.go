package http

import (
	"time"

	"github.com/recoverly/progress-hub/internal/application/query"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/wellbeing"
	"github.com/recoverly/progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

type awardXPRequest struct {
	ActivityType string `json:"activity_type"`
	Points       int    `json:"points"`
}

type onboardingRequest struct {
	StartDate string `json:"start_date"`
}

type preferencesRequest struct {
	ShowOnLeaderboard *bool `json:"show_on_leaderboard"`
}

type dailyLogRequest struct {
	MoodRating      *int     `json:"mood_rating"`
	EnergyLevel     *int     `json:"energy_level"`
	ConfidenceLevel *int     `json:"confidence_level"`
	UrgeIntensity   *int     `json:"urge_intensity"`
	Notes           *string  `json:"notes"`
	Activities      []string `json:"activities_completed"`
}

func (r dailyLogRequest) entry() wellbeing.Entry {
	return wellbeing.Entry{
		MoodRating:      r.MoodRating,
		EnergyLevel:     r.EnergyLevel,
		ConfidenceLevel: r.ConfidenceLevel,
		UrgeIntensity:   r.UrgeIntensity,
		Notes:           r.Notes,
		Activities:      r.Activities,
	}
}

type registerUserRequest struct {
	UserID            string `json:"user_id"`
	DisplayName       string `json:"display_name"`
	ShowOnLeaderboard *bool  `json:"show_on_leaderboard"`
}

type upsertAchievementRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Tier        string `json:"tier"`
	Criteria    struct {
		Type  string `json:"type"`
		Value int    `json:"value"`
	} `json:"criteria"`
	XPReward int   `json:"xp_reward"`
	IsActive *bool `json:"is_active"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

type streakResponse struct {
	CurrentStreak int        `json:"current_streak"`
	LongestStreak int        `json:"longest_streak"`
	StreakStart   *time.Time `json:"streak_start"`
	TotalResets   int        `json:"total_resets"`
}

func toStreak(s user.StreakSnapshot) streakResponse {
	return streakResponse{
		CurrentStreak: s.CurrentStreak,
		LongestStreak: s.LongestStreak,
		StreakStart:   s.StreakStart,
		TotalResets:   s.TotalResets,
	}
}

type userResponse struct {
	ID                string         `json:"id"`
	DisplayName       string         `json:"display_name"`
	Streak            streakResponse `json:"streak"`
	TotalXP           int            `json:"total_xp"`
	CurrentLevel      int            `json:"current_level"`
	CurrentTier       string         `json:"current_tier"`
	ShowOnLeaderboard bool           `json:"show_on_leaderboard"`
	OnboardedAt       *time.Time     `json:"onboarded_at"`
	LastActivityAt    *time.Time     `json:"last_activity_at"`
	CreatedAt         time.Time      `json:"created_at"`
}

func toUser(u *user.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:                u.ID,
		DisplayName:       u.DisplayName,
		Streak:            toStreak(u.Streak()),
		TotalXP:           u.TotalXP,
		CurrentLevel:      u.CurrentLevel,
		CurrentTier:       string(u.CurrentTier),
		ShowOnLeaderboard: u.ShowOnLeaderboard,
		OnboardedAt:       u.OnboardedAt,
		LastActivityAt:    u.LastActivityAt,
		CreatedAt:         u.CreatedAt,
	}
}

type xpEventResponse struct {
	ID           string    `json:"id"`
	ActivityType string    `json:"activity_type"`
	Points       int       `json:"points"`
	CreatedAt    time.Time `json:"created_at"`
}

type xpSummaryResponse struct {
	TotalXP        int               `json:"total_xp"`
	Level          int               `json:"level"`
	Tier           string            `json:"tier"`
	XPForNextLevel int               `json:"xp_for_next_level"`
	Breakdown      map[string]int    `json:"breakdown"`
	RecentEvents   []xpEventResponse `json:"recent_events"`
}

func toXPSummary(s xp.Summary) xpSummaryResponse {
	out := xpSummaryResponse{
		TotalXP:        s.TotalXP,
		Level:          s.Level,
		Tier:           string(s.Tier),
		XPForNextLevel: s.XPForNextLevel,
		Breakdown:      make(map[string]int, len(s.Breakdown)),
		RecentEvents:   make([]xpEventResponse, 0, len(s.RecentEvents)),
	}
	for k, v := range s.Breakdown {
		out.Breakdown[string(k)] = v
	}
	for _, e := range s.RecentEvents {
		out.RecentEvents = append(out.RecentEvents, xpEventResponse{
			ID:           e.ID,
			ActivityType: string(e.ActivityType),
			Points:       e.Points,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}

type achievementResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Tier          string     `json:"tier,omitempty"`
	CriteriaType  string     `json:"criteria_type"`
	CriteriaValue int        `json:"criteria_value"`
	XPReward      int        `json:"xp_reward"`
	IsActive      bool       `json:"is_active"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
}

func toAchievement(a *achievement.Achievement) achievementResponse {
	return achievementResponse{
		ID:            a.ID,
		Name:          a.Name,
		Description:   a.Description,
		Category:      string(a.Category),
		Tier:          a.Tier,
		CriteriaType:  a.Criteria.Type,
		CriteriaValue: a.Criteria.Value,
		XPReward:      a.XPReward,
		IsActive:      a.IsActive,
	}
}

func toAchievements(list []*achievement.Achievement) []achievementResponse {
	out := make([]achievementResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAchievement(a))
	}
	return out
}

func toUnlocked(list []achievement.Unlocked) []achievementResponse {
	out := make([]achievementResponse, 0, len(list))
	for _, u := range list {
		r := toAchievement(u.Achievement)
		at := u.UnlockedAt
		r.UnlockedAt = &at
		out = append(out, r)
	}
	return out
}

type leaderboardEntryResponse struct {
	Rank          int    `json:"rank"`
	DisplayName   string `json:"display_name"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	Level         int    `json:"level"`
}

type leaderboardResponse struct {
	Period      string                     `json:"period"`
	Entries     []leaderboardEntryResponse `json:"entries"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

func toLeaderboard(b *leaderboard.Board) leaderboardResponse {
	out := leaderboardResponse{
		Period:      string(b.Period),
		Entries:     make([]leaderboardEntryResponse, 0, len(b.Entries)),
		GeneratedAt: b.GeneratedAt,
	}
	for _, e := range b.Entries {
		out.Entries = append(out.Entries, leaderboardEntryResponse{
			Rank:          e.Rank,
			DisplayName:   e.DisplayName,
			CurrentStreak: e.CurrentStreak,
			LongestStreak: e.LongestStreak,
			Level:         e.Level,
		})
	}
	return out
}

type heatmapDayResponse struct {
	Date      string `json:"date"`
	Intensity int    `json:"intensity"`
	HasLog    bool   `json:"has_log"`
	IsReset   bool   `json:"is_reset"`
}

type heatmapResponse struct {
	YearStart  string               `json:"year_start"`
	LoggedDays int                  `json:"logged_days"`
	Days       []heatmapDayResponse `json:"days"`
}

func toHeatmap(h *wellbeing.Heatmap) heatmapResponse {
	out := heatmapResponse{
		YearStart:  h.YearStart.Format(time.DateOnly),
		LoggedDays: h.LoggedDays,
		Days:       make([]heatmapDayResponse, 0, len(h.Days)),
	}
	for _, d := range h.Days {
		out.Days = append(out.Days, heatmapDayResponse(d))
	}
	return out
}

type dailyLogResponse struct {
	Date            string    `json:"date"`
	MoodRating      *int      `json:"mood_rating"`
	EnergyLevel     *int      `json:"energy_level"`
	ConfidenceLevel *int      `json:"confidence_level"`
	UrgeIntensity   *int      `json:"urge_intensity"`
	Notes           *string   `json:"notes"`
	Activities      []string  `json:"activities_completed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toDailyLog(l *wellbeing.DailyLog) dailyLogResponse {
	activities := l.ActivitiesCompleted
	if activities == nil {
		activities = []string{}
	}
	return dailyLogResponse{
		Date:            l.DateString(),
		MoodRating:      l.MoodRating,
		EnergyLevel:     l.EnergyLevel,
		ConfidenceLevel: l.ConfidenceLevel,
		UrgeIntensity:   l.UrgeIntensity,
		Notes:           l.Notes,
		Activities:      activities,
		UpdatedAt:       l.UpdatedAt,
	}
}

type profileResponse struct {
	User *userResponse     `json:"user"`
	XP   xpSummaryResponse `json:"xp"`
}

func toProfile(p *query.Profile) profileResponse {
	u := toUser(p.User)
	u.Streak = toStreak(p.Streak)
	return profileResponse{User: u, XP: toXPSummary(p.XP)}
}
