package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/recoverly/progress-hub/config"
	"github.com/recoverly/progress-hub/config/catalog"
	"github.com/recoverly/progress-hub/internal/application/command"
	"github.com/recoverly/progress-hub/internal/application/query"
	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/recoverly/progress-hub/internal/infrastructure/persistence/projections"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testAdminKey = "admin-key"
)

var testNow = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	srv    *Server
	tokens *TokenVerifier
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := memory.New()
	clock := timeutil.FixedClock(testNow)
	cal := timeutil.UTC()
	policy := config.DefaultPolicy()

	deps := command.Deps{Store: mem, Calendar: cal, Clock: clock, Policy: policy}

	entries, err := catalog.Default(testNow)
	require.NoError(t, err)
	_, err = command.NewSeedCatalogHandler(deps).Handle(context.Background(), entries)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminKey), bcrypt.MinCost)
	require.NoError(t, err)

	tokens := NewTokenVerifier(testSecret, "recoverly")

	cfg := DefaultConfig()
	cfg.Debug = true
	cfg.RateLimitPerSec = 1000
	cfg.RateLimitBurst = 1000
	if mutate != nil {
		mutate(&cfg)
	}

	srv := NewServer(cfg, Dependencies{
		ResetStreak:          command.NewResetStreakHandler(deps),
		AwardXP:              command.NewAwardXPHandler(deps),
		EvaluateAchievements: command.NewEvaluateAchievementsHandler(deps),
		LogWellbeing:         command.NewLogWellbeingHandler(deps),
		CompleteOnboarding:   command.NewCompleteOnboardingHandler(deps),
		UpdatePreferences:    command.NewUpdatePreferencesHandler(deps),
		RegisterUser:         command.NewRegisterUserHandler(deps),
		UpsertAchievement:    command.NewUpsertAchievementHandler(deps),

		GetProfile:   query.NewGetProfileHandler(mem, cal, clock, policy.RecentEventsLimit),
		GetStreak:    query.NewGetStreakHandler(mem, cal, clock),
		GetXPSummary: query.NewGetXPSummaryHandler(mem, policy.RecentEventsLimit),
		GetLeaderboard: query.NewGetLeaderboardHandler(
			mem,
			leaderboard.NewRanker(query.LeaderboardPolicy(policy), cal),
			projections.NewLeaderboardView(clock),
			clock,
			query.LeaderboardOptions{DefaultLimit: 10, MaxLimit: 100},
		),
		GetHeatmap:   query.NewGetHeatmapHandler(mem, cal, clock),
		ListUnlocked: query.NewListUnlockedHandler(mem),
		ListCatalog:  query.NewListCatalogHandler(mem),

		Tokens:    tokens,
		AdminKeys: NewAdminKeys([]string{string(hash)}),
	})
	return &testServer{t: t, srv: srv, tokens: tokens}
}

func (ts *testServer) token(userID string) string {
	ts.t.Helper()
	tok, err := ts.tokens.Issue(userID, time.Hour, time.Now())
	require.NoError(ts.t, err)
	return tok
}

type call struct {
	method string
	path   string
	body   any
	user   string
	admin  bool
}

func (ts *testServer) do(c call) (*httptest.ResponseRecorder, JSONResponse) {
	ts.t.Helper()

	var body bytes.Buffer
	if c.body != nil {
		require.NoError(ts.t, json.NewEncoder(&body).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token(c.user))
	}
	if c.admin {
		req.Header.Set(AdminKeyHeader, testAdminKey)
	}

	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	var resp JSONResponse
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

// data re-decodes the envelope payload into dest.
func data(t *testing.T, resp JSONResponse, dest any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dest))
}

func (ts *testServer) registerUser(id, name string) {
	ts.t.Helper()
	rec, _ := ts.do(call{
		method: http.MethodPost,
		path:   "/api/v1/admin/users",
		body:   map[string]any{"user_id": id, "display_name": name},
		admin:  true,
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Routing & auth
// ─────────────────────────────────────────────────────────────────────────────

func TestServer_RootAndHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(call{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec, _ = ts.do(call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = ts.do(call{method: http.MethodGet, path: "/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestServer_MeRequiresToken(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(call{method: http.MethodGet, path: "/api/v1/me/streak"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", resp.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/streak", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := NewTokenVerifier("ffffffffffffffffffffffffffffffff", "recoverly")
	forged, err := other.Issue("u1", time.Hour, time.Now())
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/me/streak", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_AdminRequiresKey(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, _ := ts.do(call{
		method: http.MethodPost,
		path:   "/api/v1/admin/users",
		body:   map[string]any{"user_id": "u1", "display_name": "Jane Doe"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ts.registerUser("u1", "Jane Doe")

	rec, resp := ts.do(call{
		method: http.MethodPost,
		path:   "/api/v1/admin/users",
		body:   map[string]any{"user_id": "u1", "display_name": "Jane Doe"},
		admin:  true,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", resp.Error.Code)
}

func TestServer_UnknownUserIsNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, resp := ts.do(call{method: http.MethodGet, path: "/api/v1/me/streak", user: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress flow
// ─────────────────────────────────────────────────────────────────────────────

func TestServer_OnboardingAndStreak(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.registerUser("u1", "Jane Doe")

	rec, resp := ts.do(call{
		method: http.MethodPost,
		path:   "/api/v1/me/onboarding",
		body:   map[string]any{"start_date": "2024-03-01"},
		user:   "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var onboarded struct {
		Streak           streakResponse        `json:"streak"`
		AlreadyOnboarded bool                  `json:"already_onboarded"`
		Unlocked         []achievementResponse `json:"unlocked"`
	}
	data(t, resp, &onboarded)
	assert.Equal(t, 10, onboarded.Streak.CurrentStreak)
	assert.False(t, onboarded.AlreadyOnboarded)
	assert.Len(t, onboarded.Unlocked, 2)

	rec, resp = ts.do(call{method: http.MethodGet, path: "/api/v1/me/streak", user: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var streak streakResponse
	data(t, resp, &streak)
	assert.Equal(t, 10, streak.CurrentStreak)
	assert.Equal(t, 10, streak.LongestStreak)

	rec, resp = ts.do(call{method: http.MethodPost, path: "/api/v1/me/streak/reset", user: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var reset struct {
		Streak         streakResponse `json:"streak"`
		PreviousStreak int            `json:"previous_streak"`
		Message        string         `json:"message"`
	}
	data(t, resp, &reset)
	assert.Equal(t, 10, reset.PreviousStreak)
	assert.Zero(t, reset.Streak.CurrentStreak)
	assert.Equal(t, 10, reset.Streak.LongestStreak)
	assert.Equal(t, 1, reset.Streak.TotalResets)
	assert.NotEmpty(t, reset.Message)
}

func TestServer_OnboardingWithoutBody(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.registerUser("u1", "Jane Doe")

	rec, _ := ts.do(call{method: http.MethodPost, path: "/api/v1/me/onboarding", user: "u1"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, resp := ts.do(call{
		method: http.MethodPost,
		path:   "/api/v1/me/onboarding",
		body:   map[string]any{"start_date": "2099-01-01"},
		user:   "u1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", resp.Error.Code)
}

func TestServer_AwardXP(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.registerUser("u1", "Jane Doe")

	rec, resp := ts.do(call{
		method: http.MethodPost,
		path:   "/api/v1/me/xp",
		body:   map[string]any{"activity_type": "meditation", "points": 500},
		user:   "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var award struct {
		Summary xpSummaryResponse `json:"summary"`
	}
	data(t, resp, &award)
	assert.Equal(t, 500, award.Summary.TotalXP)
	assert.Equal(t, 2, award.Summary.Level)
	assert.Equal(t, 500, award.Summary.Breakdown["meditation"])

	rec, resp = ts.do(call{
		method: http.MethodPost,
		path:   "/api/v1/me/xp",
		body:   map[string]any{"activity_type": "meditation", "points": -1},
		user:   "u1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", resp.Error.Code)

	rec, resp = ts.do(call{method: http.MethodGet, path: "/api/v1/me/xp", user: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var summary xpSummaryResponse
	data(t, resp, &summary)
	assert.Equal(t, 500, summary.TotalXP)
	assert.Len(t, summary.RecentEvents, 1)
}

func TestServer_LogWellbeingAndHeatmap(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.registerUser("u1", "Jane Doe")

	body := map[string]any{"mood_rating": 8, "notes": "<script>x</script>good day"}
	rec, resp := ts.do(call{method: http.MethodPut, path: "/api/v1/me/logs/2024-03-09", body: body, user: "u1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var logged struct {
		Log       dailyLogResponse `json:"log"`
		Created   bool             `json:"created"`
		XPAwarded int              `json:"xp_awarded"`
	}
	data(t, resp, &logged)
	assert.True(t, logged.Created)
	assert.Equal(t, "2024-03-09", logged.Log.Date)
	require.NotNil(t, logged.Log.Notes)
	assert.NotContains(t, *logged.Log.Notes, "<script>")

	rec, _ = ts.do(call{
		method: http.MethodPut,
		path:   "/api/v1/me/logs/2024-03-09",
		body:   map[string]any{"energy_level": 4},
		user:   "u1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(call{
		method: http.MethodPut,
		path:   "/api/v1/me/logs/2024-03-09",
		body:   map[string]any{"mood_rating": 11},
		user:   "u1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = ts.do(call{method: http.MethodGet, path: "/api/v1/me/heatmap?year_start=2024-01-01", user: "u1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var heat heatmapResponse
	data(t, resp, &heat)
	assert.Equal(t, "2024-01-01", heat.YearStart)
	assert.Equal(t, 1, heat.LoggedDays)

	rec, _ = ts.do(call{method: http.MethodGet, path: "/api/v1/me/heatmap?year_start=yesterday", user: "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Achievements(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.registerUser("u1", "Jane Doe")
	ts.do(call{method: http.MethodPost, path: "/api/v1/me/onboarding", user: "u1"})

	rec, resp := ts.do(call{method: http.MethodGet, path: "/api/v1/me/achievements", user: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var unlocked []achievementResponse
	data(t, resp, &unlocked)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "first-day", unlocked[0].ID)
	assert.NotNil(t, unlocked[0].UnlockedAt)

	rec, resp = ts.do(call{method: http.MethodPost, path: "/api/v1/me/achievements/evaluate", user: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var eval struct {
		Unlocked  []achievementResponse `json:"unlocked"`
		XPGranted int                   `json:"xp_granted"`
	}
	data(t, resp, &eval)
	assert.Empty(t, eval.Unlocked)
	assert.Zero(t, eval.XPGranted)
}

func TestServer_ProfileAndPreferences(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.registerUser("u1", "Jane Doe")

	rec, resp := ts.do(call{
		method: http.MethodPatch,
		path:   "/api/v1/me/preferences",
		body:   map[string]any{"show_on_leaderboard": false},
		user:   "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var u userResponse
	data(t, resp, &u)
	assert.False(t, u.ShowOnLeaderboard)

	rec, _ = ts.do(call{method: http.MethodPatch, path: "/api/v1/me/preferences", body: map[string]any{}, user: "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = ts.do(call{method: http.MethodGet, path: "/api/v1/me", user: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var profile profileResponse
	data(t, resp, &profile)
	require.NotNil(t, profile.User)
	assert.Equal(t, "u1", profile.User.ID)
	assert.Equal(t, 1, profile.XP.Level)
}

// ─────────────────────────────────────────────────────────────────────────────
// Leaderboard
// ─────────────────────────────────────────────────────────────────────────────

func TestServer_Leaderboard(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.registerUser("u1", "Jane Doe")
	ts.registerUser("u2", "John Smith")
	ts.registerUser("u3", "Hidden Person")

	ts.do(call{method: http.MethodPost, path: "/api/v1/me/onboarding", body: map[string]any{"start_date": "2024-03-01"}, user: "u1"})
	ts.do(call{method: http.MethodPost, path: "/api/v1/me/onboarding", body: map[string]any{"start_date": "2024-03-05"}, user: "u2"})
	ts.do(call{method: http.MethodPost, path: "/api/v1/me/onboarding", body: map[string]any{"start_date": "2024-02-01"}, user: "u3"})
	ts.do(call{method: http.MethodPatch, path: "/api/v1/me/preferences", body: map[string]any{"show_on_leaderboard": false}, user: "u3"})

	rec, resp := ts.do(call{method: http.MethodGet, path: "/api/v1/leaderboard?period=alltime&limit=10"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var board leaderboardResponse
	data(t, resp, &board)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, "Jane D.", board.Entries[0].DisplayName)
	assert.Equal(t, "John S.", board.Entries[1].DisplayName)

	rec, _ = ts.do(call{method: http.MethodGet, path: "/api/v1/leaderboard?period=daily"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(call{method: http.MethodGet, path: "/api/v1/leaderboard?limit=ten"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Admin catalog
// ─────────────────────────────────────────────────────────────────────────────

func TestServer_AdminCatalog(t *testing.T) {
	ts := newTestServer(t, nil)

	body := map[string]any{
		"name":        "Night Owl",
		"description": "Log five evenings",
		"category":    "health",
		"criteria":    map[string]any{"type": "daily_logs_count", "value": 5},
		"xp_reward":   40,
	}
	rec, resp := ts.do(call{method: http.MethodPut, path: "/api/v1/admin/achievements/night-owl", body: body, admin: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a achievementResponse
	data(t, resp, &a)
	assert.Equal(t, "night-owl", a.ID)
	assert.True(t, a.IsActive)

	body["is_active"] = false
	rec, _ = ts.do(call{method: http.MethodPut, path: "/api/v1/admin/achievements/night-owl", body: body, admin: true})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = ts.do(call{method: http.MethodGet, path: "/api/v1/admin/achievements", admin: true})
	require.Equal(t, http.StatusOK, rec.Code)
	var active []achievementResponse
	data(t, resp, &active)

	rec, resp = ts.do(call{method: http.MethodGet, path: "/api/v1/admin/achievements?include_inactive=true", admin: true})
	require.Equal(t, http.StatusOK, rec.Code)
	var all []achievementResponse
	data(t, resp, &all)
	assert.Len(t, all, len(active)+1)

	body["category"] = "bogus"
	rec, _ = ts.do(call{method: http.MethodPut, path: "/api/v1/admin/achievements/night-owl", body: body, admin: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Rate limiting
// ─────────────────────────────────────────────────────────────────────────────

func TestServer_RateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.RateLimitPerSec = 0.001
		c.RateLimitBurst = 2
	})

	for i := 0; i < 2; i++ {
		rec, _ := ts.do(call{method: http.MethodGet, path: "/api/v1/leaderboard"})
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec, resp := ts.do(call{method: http.MethodGet, path: "/api/v1/leaderboard"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", resp.Error.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
