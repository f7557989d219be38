package command

import (
	"context"
	"errors"
	"time"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/wellbeing"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET STREAK COMMAND
// Ends the current streak and starts a new one today. The day's log gets
// the reset marker, and achievements (Phoenix Rising) are evaluated in the
// same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// ResetStreakCommand contains the data to reset a streak.
type ResetStreakCommand struct {
	UserID string
}

// Validate validates the command.
func (c ResetStreakCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// ResetStreakResult is the fresh state after the reset.
type ResetStreakResult struct {
	Streak         user.StreakSnapshot
	PreviousStreak int
	ResetAt        time.Time
	Unlocked       []*achievement.Achievement
	User           *user.User
}

// ResetStreakHandler handles ResetStreakCommand.
type ResetStreakHandler struct {
	deps Deps
	flow *AchievementFlow
}

// NewResetStreakHandler creates a new ResetStreakHandler.
func NewResetStreakHandler(deps Deps) *ResetStreakHandler {
	deps = deps.withDefaults()
	return &ResetStreakHandler{deps: deps, flow: NewAchievementFlow(deps)}
}

// Handle executes the reset.
func (h *ResetStreakHandler) Handle(ctx context.Context, cmd ResetStreakCommand) (result *ResetStreakResult, err error) {
	ctx, sp := span(ctx, "reset_streak", cmd.UserID)
	started := time.Now()
	defer func() { h.deps.finish(ctx, sp, "reset_streak", cmd.UserID, started, err) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.deps.now()
	var events []shared.Event

	err = h.deps.Store.InUserTx(ctx, cmd.UserID, func(ctx context.Context, repos store.Repositories) error {
		events = nil

		u, err := repos.Users.GetByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		outcome := h.deps.tracker().Reset(u, now)
		u.Touch(now)

		if err := h.markResetDay(ctx, repos, u.ID, now); err != nil {
			return err
		}

		flow, err := h.flow.Run(ctx, repos, u, now)
		if err != nil {
			return err
		}

		if err := repos.Users.Update(ctx, u); err != nil {
			return shared.Internal("user", "Update", err)
		}

		events = append(events, shared.NewStreakResetEvent(u.ID, outcome.PreviousStreak, u.LongestStreak, u.TotalResets, now))
		events = append(events, flow.Events...)

		result = &ResetStreakResult{
			Streak:         u.Streak(),
			PreviousStreak: outcome.PreviousStreak,
			ResetAt:        now,
			Unlocked:       flow.Unlocked,
			User:           u,
		}
		return nil
	})
	if err != nil {
		return nil, shared.Internal("command", "ResetStreak", err)
	}

	h.deps.Publisher.Publish(ctx, events...)
	return result, nil
}

// markResetDay upserts today's log with the reset marker.
func (h *ResetStreakHandler) markResetDay(ctx context.Context, repos store.Repositories, userID string, now time.Time) error {
	today := h.deps.Calendar.Today(now)

	log, err := repos.Logs.GetByDate(ctx, userID, today)
	if errors.Is(err, shared.ErrDailyLogNotFound) {
		log, err = wellbeing.NewDailyLog(h.deps.NewID(), userID, today, now)
	}
	if err != nil {
		return shared.Internal("wellbeing", "GetByDate", err)
	}

	log.MarkReset(now)
	if _, err := repos.Logs.Upsert(ctx, log); err != nil {
		return shared.Internal("wellbeing", "Upsert", err)
	}
	return nil
}
