package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/recoverly/progress-hub/internal/application/command"
	"github.com/recoverly/progress-hub/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROOT
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"name":    s.config.Name,
		"version": s.config.Version,
		"endpoints": gin.H{
			"health":      "/health",
			"leaderboard": "/api/v1/leaderboard",
			"me":          "/api/v1/me",
		},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetProfile(c *gin.Context) {
	p, err := s.deps.GetProfile.Handle(c.Request.Context(), query.GetProfileQuery{UserID: currentUser(c)})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toProfile(p))
}

func (s *Server) handleGetStreak(c *gin.Context) {
	snap, err := s.deps.GetStreak.Handle(c.Request.Context(), query.GetStreakQuery{UserID: currentUser(c)})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toStreak(*snap))
}

func (s *Server) handleResetStreak(c *gin.Context) {
	res, err := s.deps.ResetStreak.Handle(c.Request.Context(), command.ResetStreakCommand{UserID: currentUser(c)})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"streak":          toStreak(res.Streak),
		"previous_streak": res.PreviousStreak,
		"reset_at":        res.ResetAt,
		"message":         "Streak reset. Every day is a fresh start.",
		"unlocked":        toAchievements(res.Unlocked),
	})
}

func (s *Server) handleCompleteOnboarding(c *gin.Context) {
	var req onboardingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON body")
			return
		}
	}

	res, err := s.deps.CompleteOnboarding.Handle(c.Request.Context(), command.CompleteOnboardingCommand{
		UserID:    currentUser(c),
		StartDate: req.StartDate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"streak":            toStreak(res.Streak),
		"already_onboarded": res.AlreadyOnboarded,
		"xp_awarded":        res.XPAwarded,
		"unlocked":          toAchievements(res.Unlocked),
		"user":              toUser(res.User),
	})
}

func (s *Server) handleUpdatePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ShowOnLeaderboard == nil {
		badRequest(c, "show_on_leaderboard is required")
		return
	}

	u, err := s.deps.UpdatePreferences.Handle(c.Request.Context(), command.UpdatePreferencesCommand{
		UserID:            currentUser(c),
		ShowOnLeaderboard: *req.ShowOnLeaderboard,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toUser(u))
}

// ══════════════════════════════════════════════════════════════════════════════
// XP
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetXP(c *gin.Context) {
	sum, err := s.deps.GetXPSummary.Handle(c.Request.Context(), query.GetXPSummaryQuery{UserID: currentUser(c)})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toXPSummary(*sum))
}

func (s *Server) handleAwardXP(c *gin.Context) {
	var req awardXPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	res, err := s.deps.AwardXP.Handle(c.Request.Context(), command.AwardXPCommand{
		UserID:       currentUser(c),
		ActivityType: req.ActivityType,
		Points:       req.Points,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"summary":  toXPSummary(res.Summary),
		"unlocked": toAchievements(res.Unlocked),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListUnlocked(c *gin.Context) {
	list, err := s.deps.ListUnlocked.Handle(c.Request.Context(), query.ListUnlockedQuery{UserID: currentUser(c)})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toUnlocked(list))
}

func (s *Server) handleEvaluateAchievements(c *gin.Context) {
	res, err := s.deps.EvaluateAchievements.Handle(c.Request.Context(), command.EvaluateAchievementsCommand{UserID: currentUser(c)})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"unlocked":   toAchievements(res.Unlocked),
		"xp_granted": res.XPGranted,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// WELLBEING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleLogWellbeing(c *gin.Context) {
	var req dailyLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	res, err := s.deps.LogWellbeing.Handle(c.Request.Context(), command.LogWellbeingCommand{
		UserID: currentUser(c),
		Date:   c.Param("date"),
		Entry:  req.entry(),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(c, status, gin.H{
		"log":        toDailyLog(res.Log),
		"created":    res.Created,
		"xp_awarded": res.XPAwarded,
		"unlocked":   toAchievements(res.Unlocked),
	})
}

func (s *Server) handleGetHeatmap(c *gin.Context) {
	h, err := s.deps.GetHeatmap.Handle(c.Request.Context(), query.GetHeatmapQuery{
		UserID:    currentUser(c),
		YearStart: c.Query("year_start"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toHeatmap(h))
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	board, err := s.deps.GetLeaderboard.Handle(c.Request.Context(), query.GetLeaderboardQuery{
		Period: c.Query("period"),
		Limit:  limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toLeaderboard(board))
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRegisterUser(c *gin.Context) {
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	show := true
	if req.ShowOnLeaderboard != nil {
		show = *req.ShowOnLeaderboard
	}

	u, err := s.deps.RegisterUser.Handle(c.Request.Context(), command.RegisterUserCommand{
		UserID:            req.UserID,
		DisplayName:       req.DisplayName,
		ShowOnLeaderboard: show,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toUser(u))
}

func (s *Server) handleListCatalog(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))
	list, err := s.deps.ListCatalog.Handle(c.Request.Context(), query.ListCatalogQuery{IncludeInactive: includeInactive})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAchievements(list))
}

func (s *Server) handleUpsertAchievement(c *gin.Context) {
	var req upsertAchievementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	res, err := s.deps.UpsertAchievement.Handle(c.Request.Context(), command.UpsertAchievementCommand{
		ID:            c.Param("id"),
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Tier:          req.Tier,
		CriteriaType:  req.Criteria.Type,
		CriteriaValue: req.Criteria.Value,
		XPReward:      req.XPReward,
		IsActive:      active,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(c, status, toAchievement(res.Achievement))
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func currentUser(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// intQuery parses an optional integer query parameter. On a malformed value
// it writes a 400 and returns false.
func intQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, key+" must be an integer")
		return 0, false
	}
	return v, true
}
