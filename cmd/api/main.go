// Package main - точка входа HTTP API сервиса прогресса.
//
// Сервис ведёт серии трезвости, журнал XP, достижения, рейтинг и карту
// самочувствия. Все изменения пользователя выполняются в одной транзакции,
// побочные эффекты (уведомления, сброс кэша) идут через шину событий
// после коммита.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recoverly/progress-hub/config"
	"github.com/recoverly/progress-hub/config/catalog"
	"github.com/recoverly/progress-hub/internal/application/command"
	"github.com/recoverly/progress-hub/internal/application/eventhandler"
	"github.com/recoverly/progress-hub/internal/application/query"
	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/infrastructure/external/webhook"
	"github.com/recoverly/progress-hub/internal/infrastructure/messaging"
	"github.com/recoverly/progress-hub/internal/infrastructure/observability"
	"github.com/recoverly/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/recoverly/progress-hub/internal/infrastructure/persistence/postgres"
	"github.com/recoverly/progress-hub/internal/infrastructure/persistence/projections"
	"github.com/recoverly/progress-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/recoverly/progress-hub/internal/interface/http"
	"github.com/recoverly/progress-hub/internal/interface/http/handlers"
	"github.com/recoverly/progress-hub/pkg/circuitbreaker"
	"github.com/recoverly/progress-hub/pkg/logger"
	"github.com/recoverly/progress-hub/pkg/retry"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg)
	defer log.Sync()

	log.Info("starting progress hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFrom(cfg), log)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	health.AddCheck("store", handlers.NewPingCheck(st))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. КЭШ РЕЙТИНГА
	// ─────────────────────────────────────────────────────────────────────────
	cache, closeCache := openLeaderboardCache(ctx, cfg, log, health)
	defer closeCache()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ШИНА СОБЫТИЙ И УВЕДОМЛЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultBusConfig()
	busCfg.Workers = cfg.Notifications.Workers
	busCfg.Logger = log
	bus := messaging.NewBus(busCfg)

	sink, err := webhook.NewSink(cfg.Notifications, log)
	if err != nil {
		return fmt.Errorf("failed to create notification sink: %w", err)
	}
	if client, ok := sink.(*webhook.Client); ok {
		health.AddOptionalCheck("notify_webhook", handlers.NewBreakerCheck(client.Breaker()))
	}

	if err := eventhandler.NewNotifyHandler(sink, cfg.Features, log).Register(bus); err != nil {
		return fmt.Errorf("failed to register notify handler: %w", err)
	}
	if err := eventhandler.NewInvalidateLeaderboardHandler(cache, log).Register(bus); err != nil {
		return fmt.Errorf("failed to register leaderboard invalidation: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. КОМАНДЫ И ЗАПРОСЫ
	// ─────────────────────────────────────────────────────────────────────────
	cal := timeutil.NewCalendar(cfg.App.Location)
	clock := timeutil.SystemClock()

	deps := command.Deps{
		Store:     st,
		Publisher: bus,
		Calendar:  cal,
		Clock:     clock,
		Policy:    cfg.Policy,
		Logger:    log,
	}

	if cfg.Features.IsEnabled(config.FeatureCatalogSeed, nil) {
		if err := seedCatalog(ctx, deps, clock, log); err != nil {
			return err
		}
	}

	recent := cfg.Policy.RecentEventsLimit
	server := httpserver.NewServer(httpserver.ConfigFrom(cfg), httpserver.Dependencies{
		ResetStreak:          command.NewResetStreakHandler(deps),
		AwardXP:              command.NewAwardXPHandler(deps),
		EvaluateAchievements: command.NewEvaluateAchievementsHandler(deps),
		LogWellbeing:         command.NewLogWellbeingHandler(deps),
		CompleteOnboarding:   command.NewCompleteOnboardingHandler(deps),
		UpdatePreferences:    command.NewUpdatePreferencesHandler(deps),
		RegisterUser:         command.NewRegisterUserHandler(deps),
		UpsertAchievement:    command.NewUpsertAchievementHandler(deps),

		GetProfile:   query.NewGetProfileHandler(st, cal, clock, recent).WithPublisher(bus),
		GetStreak:    query.NewGetStreakHandler(st, cal, clock).WithPublisher(bus),
		GetXPSummary: query.NewGetXPSummaryHandler(st, recent),
		GetLeaderboard: query.NewGetLeaderboardHandler(
			st,
			leaderboard.NewRanker(query.LeaderboardPolicy(cfg.Policy), cal),
			cache,
			clock,
			query.LeaderboardOptions{
				DefaultLimit: cfg.Policy.LeaderboardDefaultLimit,
				MaxLimit:     cfg.Policy.LeaderboardMaxLimit,
				CacheTTL:     cfg.Policy.LeaderboardCacheTTL,
				Flags:        cfg.Features,
				Logger:       log,
			},
		),
		GetHeatmap:   query.NewGetHeatmapHandler(st, cal, clock),
		ListUnlocked: query.NewListUnlockedHandler(st),
		ListCatalog:  query.NewListCatalogHandler(st),

		Tokens:    httpserver.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		AdminKeys: httpserver.NewAdminKeys(cfg.Auth.AdminKeyHashes),
		Health:    health,
		Logger:    log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		var errs []error
		// Сначала HTTP: после него новых событий не будет.
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
		if err := bus.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown completed with errors", logger.Err(err))
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func newLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = cfg.Observability.LogFormat
	opts.FilePath = cfg.Observability.LogFile
	return logger.New(opts).With(logger.String("service", cfg.App.Name))
}

// openStore подключает PostgreSQL. Без DATABASE_URL используется память,
// что допустимо только вне production (проверяется в config.Validate).
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return memory.New(), func() {}, nil
	}

	log.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, postgres.ConfigFrom(cfg.Database), log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeFn := func() {
		log.Info("closing database connection...")
		conn.Close()
	}

	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed", logger.Int("applied", applied))
	}

	return postgres.NewStore(conn), closeFn, nil
}

// openLeaderboardCache подключает Redis за предохранителем. Если Redis
// выключен или недоступен, рейтинг кэшируется в памяти процесса.
func openLeaderboardCache(ctx context.Context, cfg *config.Config, log *logger.Logger, health *handlers.CompositeHealthChecker) (leaderboard.Cache, func()) {
	local := projections.NewLeaderboardView(time.Now)
	if cfg.Redis.Disabled {
		log.Info("redis disabled, using in-process leaderboard cache")
		return local, func() {}
	}

	c, err := redis.NewCache(ctx, redis.ConfigFrom(cfg.Redis))
	if err != nil {
		log.Warn("failed to connect to Redis, using in-process leaderboard cache", logger.Err(err))
		return local, func() {}
	}

	breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	health.AddOptionalCheck("redis", handlers.NewPingCheck(c))
	health.AddOptionalCheck("leaderboard_cache", handlers.NewBreakerCheck(breaker))

	log.Info("Redis connection established")
	return redis.NewGuardedLeaderboardCache(redis.NewLeaderboardCache(c), breaker), func() { _ = c.Close() }
}

// seedCatalog добавляет встроенные достижения, не трогая правки админа.
func seedCatalog(ctx context.Context, deps command.Deps, clock timeutil.Clock, log *logger.Logger) error {
	entries, err := catalog.Load(clock.Now())
	if err != nil {
		return fmt.Errorf("failed to load achievement catalog: %w", err)
	}

	var inserted int
	seed := command.NewSeedCatalogHandler(deps)
	r := retry.StartupRetrier().With(retry.WithRetryIf(func(err error) bool {
		return shared.KindOf(err) == shared.KindInternal
	}))
	err = r.Do(ctx, func(ctx context.Context) error {
		n, err := seed.Handle(ctx, entries)
		inserted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to seed achievement catalog: %w", err)
	}
	log.Info("achievement catalog seeded",
		logger.Int("inserted", inserted),
		logger.Int("total", len(entries)),
	)
	return nil
}
