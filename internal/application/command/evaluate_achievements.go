package command

import (
	"context"
	"time"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
)

// EvaluateAchievementsCommand asks for an explicit achievement check.
type EvaluateAchievementsCommand struct {
	UserID string
}

// Validate validates the command.
func (c EvaluateAchievementsCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// EvaluateAchievementsResult lists what this call unlocked. A repeated call
// with no state change returns an empty list.
type EvaluateAchievementsResult struct {
	Unlocked  []*achievement.Achievement
	XPGranted int
	User      *user.User
}

// EvaluateAchievementsHandler handles EvaluateAchievementsCommand.
type EvaluateAchievementsHandler struct {
	deps Deps
	flow *AchievementFlow
}

// NewEvaluateAchievementsHandler creates a new EvaluateAchievementsHandler.
func NewEvaluateAchievementsHandler(deps Deps) *EvaluateAchievementsHandler {
	deps = deps.withDefaults()
	return &EvaluateAchievementsHandler{deps: deps, flow: NewAchievementFlow(deps)}
}

// Handle runs the evaluation in the user's transaction.
func (h *EvaluateAchievementsHandler) Handle(ctx context.Context, cmd EvaluateAchievementsCommand) (result *EvaluateAchievementsResult, err error) {
	ctx, sp := span(ctx, "evaluate_achievements", cmd.UserID)
	started := time.Now()
	defer func() { h.deps.finish(ctx, sp, "evaluate_achievements", cmd.UserID, started, err) }()

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
		changed := h.deps.tracker().Reconcile(u, now)

		flow, err := h.flow.Run(ctx, repos, u, now)
		if err != nil {
			return err
		}

		if changed || len(flow.Unlocked) > 0 {
			if err := repos.Users.Update(ctx, u); err != nil {
				return shared.Internal("user", "Update", err)
			}
		}

		events = flow.Events
		result = &EvaluateAchievementsResult{
			Unlocked:  flow.Unlocked,
			XPGranted: flow.XPGranted,
			User:      u,
		}
		return nil
	})
	if err != nil {
		return nil, shared.Internal("command", "EvaluateAchievements", err)
	}

	h.deps.Publisher.Publish(ctx, events...)
	return result, nil
}
