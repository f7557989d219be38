// Package http serves the progress API over gin.
// Every route under /api/v1/me acts on the user named by the bearer token;
// /api/v1/admin requires an admin key.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recoverly/progress-hub/config"
	"github.com/recoverly/progress-hub/internal/application/command"
	"github.com/recoverly/progress-hub/internal/application/query"
	"github.com/recoverly/progress-hub/internal/interface/http/handlers"
	"github.com/recoverly/progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Addr string

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxHeaderBytes int

	AllowedOrigins []string

	// RateLimitPerSec <= 0 disables rate limiting.
	RateLimitPerSec float64
	RateLimitBurst  int

	Name    string
	Version string
	Debug   bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		RequestTimeout:  10 * time.Second,
		MaxHeaderBytes:  1 << 20,
		AllowedOrigins:  []string{"*"},
		RateLimitPerSec: 10,
		RateLimitBurst:  20,
		Name:            "progress-hub",
		Version:         "v1",
	}
}

// ConfigFrom maps the application settings.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	c.Addr = cfg.HTTP.Addr
	c.ReadTimeout = cfg.HTTP.ReadTimeout
	c.WriteTimeout = cfg.HTTP.WriteTimeout
	c.IdleTimeout = cfg.HTTP.IdleTimeout
	c.RequestTimeout = cfg.HTTP.RequestTimeout
	c.AllowedOrigins = cfg.HTTP.AllowedOrigins
	c.RateLimitPerSec = cfg.HTTP.RateLimitPerSec
	c.RateLimitBurst = cfg.HTTP.RateLimitBurst
	c.Name = cfg.App.Name
	c.Version = cfg.App.Version
	c.Debug = cfg.App.Debug
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains everything the routes call.
type Dependencies struct {
	// Commands
	ResetStreak          *command.ResetStreakHandler
	AwardXP              *command.AwardXPHandler
	EvaluateAchievements *command.EvaluateAchievementsHandler
	LogWellbeing         *command.LogWellbeingHandler
	CompleteOnboarding   *command.CompleteOnboardingHandler
	UpdatePreferences    *command.UpdatePreferencesHandler
	RegisterUser         *command.RegisterUserHandler
	UpsertAchievement    *command.UpsertAchievementHandler

	// Queries
	GetProfile     *query.GetProfileHandler
	GetStreak      *query.GetStreakHandler
	GetXPSummary   *query.GetXPSummaryHandler
	GetLeaderboard *query.GetLeaderboardHandler
	GetHeatmap     *query.GetHeatmapHandler
	ListUnlocked   *query.ListUnlockedHandler
	ListCatalog    *query.ListCatalogHandler

	// Auth
	Tokens    *TokenVerifier
	AdminKeys *AdminKeys

	Health *handlers.CompositeHealthChecker
	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates the server and registers all routes.
func NewServer(cfg Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Health == nil {
		deps.Health = handlers.NewCompositeHealthChecker(cfg.Version)
	}
	if deps.AdminKeys == nil {
		deps.AdminKeys = NewAdminKeys(nil)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger.With(logger.Component("http")),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := s.engine
	r.HandleMethodNotAllowed = true
	r.Use(
		requestIDMiddleware(),
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		corsMiddleware(s.config.AllowedOrigins),
	)
	r.NoRoute(func(c *gin.Context) {
		writeJSONError(c, http.StatusNotFound, "not_found", "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		writeJSONError(c, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.GET("/", s.handleRoot)
	r.GET("/health", handlers.Health(s.deps.Health))
	r.GET("/health/live", handlers.Live)

	limiter := newRateLimiter(s.config.RateLimitPerSec, s.config.RateLimitBurst)

	v1 := r.Group("/api/v1", tracingMiddleware(), timeoutMiddleware(s.config.RequestTimeout))

	v1.GET("/leaderboard", rateLimitMiddleware(limiter), s.handleGetLeaderboard)

	me := v1.Group("/me", RequireUser(s.deps.Tokens), rateLimitMiddleware(limiter))
	{
		me.GET("", s.handleGetProfile)
		me.POST("/onboarding", s.handleCompleteOnboarding)
		me.PATCH("/preferences", s.handleUpdatePreferences)

		me.GET("/streak", s.handleGetStreak)
		me.POST("/streak/reset", s.handleResetStreak)

		me.GET("/xp", s.handleGetXP)
		me.POST("/xp", s.handleAwardXP)

		me.GET("/achievements", s.handleListUnlocked)
		me.POST("/achievements/evaluate", s.handleEvaluateAchievements)

		me.PUT("/logs/:date", s.handleLogWellbeing)
		me.GET("/heatmap", s.handleGetHeatmap)
	}

	admin := v1.Group("/admin", RequireAdmin(s.deps.AdminKeys))
	{
		admin.POST("/users", s.handleRegisterUser)
		admin.GET("/achievements", s.handleListCatalog)
		admin.PUT("/achievements/:id", s.handleUpsertAchievement)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("http server starting", logger.String("addr", s.config.Addr))
	err := s.httpServer.ListenAndServe()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve is Start on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	err := s.httpServer.Serve(l)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
