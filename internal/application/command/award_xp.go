package command

import (
	"context"
	"time"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// Appends one ledger entry. There is no idempotency key: calling it twice
// for the same action awards twice.
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPCommand contains the data to award XP.
type AwardXPCommand struct {
	UserID       string
	ActivityType string
	Points       int
}

// Validate validates the command.
func (c AwardXPCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if _, err := shared.NewActivityType(c.ActivityType); err != nil {
		return err
	}
	if c.Points <= 0 {
		return shared.ErrInvalidPoints
	}
	return nil
}

// AwardXPResult contains the updated summary.
type AwardXPResult struct {
	Summary  xp.Summary
	Unlocked []*achievement.Achievement
	User     *user.User
}

// AwardXPHandler handles AwardXPCommand.
type AwardXPHandler struct {
	deps Deps
	flow *AchievementFlow
}

// NewAwardXPHandler creates a new AwardXPHandler.
func NewAwardXPHandler(deps Deps) *AwardXPHandler {
	deps = deps.withDefaults()
	return &AwardXPHandler{deps: deps, flow: NewAchievementFlow(deps)}
}

// Handle executes the award. The award and the achievement check that
// follows it commit together or not at all.
func (h *AwardXPHandler) Handle(ctx context.Context, cmd AwardXPCommand) (result *AwardXPResult, err error) {
	ctx, sp := span(ctx, "award_xp", cmd.UserID)
	started := time.Now()
	defer func() { h.deps.finish(ctx, sp, "award_xp", cmd.UserID, started, err) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	activity, _ := shared.NewActivityType(cmd.ActivityType)

	now := h.deps.now()
	var events []shared.Event

	err = h.deps.Store.InUserTx(ctx, cmd.UserID, func(ctx context.Context, repos store.Repositories) error {
		events = nil

		u, err := repos.Users.GetByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		h.deps.tracker().Reconcile(u, now)

		granted, err := h.deps.grantXP(ctx, repos, u, activity, cmd.Points, now)
		if err != nil {
			return err
		}
		events = append(events, granted...)
		u.Touch(now)

		flow, err := h.flow.Run(ctx, repos, u, now)
		if err != nil {
			return err
		}
		events = append(events, flow.Events...)

		if err := repos.Users.Update(ctx, u); err != nil {
			return shared.Internal("user", "Update", err)
		}

		summary, err := summarize(ctx, repos, u.ID, h.deps.Policy.RecentEventsLimit)
		if err != nil {
			return err
		}

		result = &AwardXPResult{Summary: summary, Unlocked: flow.Unlocked, User: u}
		return nil
	})
	if err != nil {
		return nil, shared.Internal("command", "AwardXP", err)
	}

	h.deps.Publisher.Publish(ctx, events...)
	return result, nil
}

// summarize reads the ledger through the given repositories.
func summarize(ctx context.Context, repos store.Repositories, userID string, recent int) (xp.Summary, error) {
	totals, err := repos.XP.Totals(ctx, userID)
	if err != nil {
		return xp.Summary{}, shared.Internal("xp", "Totals", err)
	}
	events, err := repos.XP.Recent(ctx, userID, recent)
	if err != nil {
		return xp.Summary{}, shared.Internal("xp", "Recent", err)
	}
	return xp.Summarize(totals, events), nil
}
