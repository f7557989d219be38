// Package command contains write operations (CQRS - Commands).
// Every command that touches a user runs in one per-user transaction and
// publishes its domain events only after that transaction commits.
package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/recoverly/progress-hub/config"
	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/xp"
	"github.com/recoverly/progress-hub/pkg/logger"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

var tracer = otel.Tracer("github.com/recoverly/progress-hub/internal/application/command")

// Deps are the collaborators shared by all command handlers.
type Deps struct {
	Store     store.Store
	Publisher shared.EventPublisher
	Calendar  timeutil.Calendar
	Clock     timeutil.Clock
	Policy    config.Policy
	Logger    *logger.Logger

	// NewID generates identifiers for new rows. Defaults to uuid.NewString.
	NewID func() string
}

func (d Deps) withDefaults() Deps {
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Policy == (config.Policy{}) {
		d.Policy = config.DefaultPolicy()
	}
	return d
}

func (d Deps) now() time.Time {
	return d.Clock.Now().UTC()
}

func (d Deps) tracker() user.StreakTracker {
	return user.NewStreakTracker(d.Calendar)
}

// grantXP appends one ledger entry and folds it into the user's cached totals.
func (d Deps) grantXP(ctx context.Context, repos store.Repositories, u *user.User, activity shared.ActivityType, points int, now time.Time) ([]shared.Event, error) {
	e, err := xp.NewEvent(d.NewID(), u.ID, activity, points, now)
	if err != nil {
		return nil, err
	}
	if err := repos.XP.Append(ctx, e); err != nil {
		return nil, shared.Internal("xp", "Append", err)
	}

	oldLevel, newLevel := u.ApplyXP(points, now)
	events := []shared.Event{shared.NewXPAwardedEvent(u.ID, activity.String(), points, u.TotalXP, now)}
	if newLevel > oldLevel {
		events = append(events, shared.NewLevelUpEvent(u.ID, oldLevel, newLevel, string(u.CurrentTier), now))
	}
	return events, nil
}

// span starts a command span tagged with the user.
func span(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	ctx, sp := tracer.Start(ctx, "command."+name)
	if userID != "" {
		sp.SetAttributes(attribute.String("user.id", userID))
	}
	return ctx, sp
}

// finish records the outcome on the span and writes the command's log line.
func (d Deps) finish(ctx context.Context, sp trace.Span, op, userID string, started time.Time, err error) {
	defer sp.End()

	log := logger.FromContextOr(ctx, d.Logger).With(
		logger.Component("command"),
		logger.Operation(op),
		logger.UserID(userID),
		logger.Latency(time.Since(started)),
	)
	if err == nil {
		log.Debug("command completed")
		return
	}

	kind := shared.KindOf(err)
	sp.SetAttributes(attribute.String("error.kind", string(kind)))
	if kind == shared.KindInternal {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, err.Error())
		log.Error("command failed", logger.Err(err))
		return
	}
	log.Debug("command rejected", logger.String("kind", string(kind)), logger.Err(err))
}
