// Package main - управление схемой базы данных.
//
// Использование:
//
//	migrate up      применить все новые миграции
//	migrate down    откатить последнюю миграцию
//	migrate status  показать состояние миграций
//	migrate seed    добавить встроенные достижения в каталог
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recoverly/progress-hub/config"
	"github.com/recoverly/progress-hub/config/catalog"
	"github.com/recoverly/progress-hub/internal/application/command"
	"github.com/recoverly/progress-hub/internal/infrastructure/persistence/postgres"
	"github.com/recoverly/progress-hub/pkg/logger"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

const usage = "usage: migrate up|down|status|seed"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string) error {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = "console"
	log := logger.New(opts).With(logger.Component("migrate"))
	defer log.Sync()

	conn, err := postgres.NewConnection(ctx, postgres.ConfigFrom(cfg.Database), log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	m := postgres.NewMigrator(conn)

	switch cmd {
	case "up":
		n, err := m.Migrate(ctx)
		if err != nil {
			return err
		}
		log.Info("migrations applied", logger.Int("count", n))

	case "down":
		v, err := m.Rollback(ctx)
		if err != nil {
			return err
		}
		if v == 0 {
			log.Info("nothing to roll back")
			return nil
		}
		log.Info("migration rolled back", logger.Int("version", v))

	case "status":
		list, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, mig := range list {
			state := "pending"
			if mig.IsApplied {
				state = "applied " + mig.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%04d  %-32s %s\n", mig.Version, mig.Name, state)
		}

	case "seed":
		now := time.Now()
		entries, err := catalog.Load(now)
		if err != nil {
			return err
		}
		inserted, err := command.NewSeedCatalogHandler(command.Deps{
			Store:    postgres.NewStore(conn),
			Calendar: timeutil.NewCalendar(cfg.App.Location),
			Clock:    timeutil.FixedClock(now),
			Policy:   cfg.Policy,
			Logger:   log,
		}).Handle(ctx, entries)
		if err != nil {
			return err
		}
		log.Info("achievement catalog seeded",
			logger.Int("inserted", inserted),
			logger.Int("total", len(entries)),
		)

	default:
		return fmt.Errorf("unknown command %q; %s", cmd, usage)
	}
	return nil
}
