package command

import (
	"context"
	"time"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE ONBOARDING COMMAND
// Starts tracking: sets the streak start and grants the onboarding XP once.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteOnboardingCommand contains the onboarding data.
type CompleteOnboardingCommand struct {
	UserID string

	// StartDate is YYYY-MM-DD. Empty means now. A past date backdates the
	// streak, a future one is rejected.
	StartDate string
}

// Validate validates the command.
func (c CompleteOnboardingCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if c.StartDate != "" {
		if _, err := timeutil.ParseCivilDate(c.StartDate); err != nil {
			return shared.WrapError("user", "Onboard", shared.ErrValidation, "start date must be YYYY-MM-DD", shared.ErrInvalidDate)
		}
	}
	return nil
}

// CompleteOnboardingResult contains the state after onboarding.
type CompleteOnboardingResult struct {
	Streak user.StreakSnapshot

	// AlreadyOnboarded - the user had onboarded before; nothing changed.
	AlreadyOnboarded bool

	XPAwarded int
	Unlocked  []*achievement.Achievement
	User      *user.User
}

// CompleteOnboardingHandler handles CompleteOnboardingCommand.
type CompleteOnboardingHandler struct {
	deps Deps
	flow *AchievementFlow
}

// NewCompleteOnboardingHandler creates a new CompleteOnboardingHandler.
func NewCompleteOnboardingHandler(deps Deps) *CompleteOnboardingHandler {
	deps = deps.withDefaults()
	return &CompleteOnboardingHandler{deps: deps, flow: NewAchievementFlow(deps)}
}

// Handle executes onboarding.
func (h *CompleteOnboardingHandler) Handle(ctx context.Context, cmd CompleteOnboardingCommand) (result *CompleteOnboardingResult, err error) {
	ctx, sp := span(ctx, "complete_onboarding", cmd.UserID)
	started := time.Now()
	defer func() { h.deps.finish(ctx, sp, "complete_onboarding", cmd.UserID, started, err) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.deps.now()
	start := now
	if cmd.StartDate != "" {
		start, _ = h.deps.Calendar.ParseDate(cmd.StartDate)
	}

	var events []shared.Event

	err = h.deps.Store.InUserTx(ctx, cmd.UserID, func(ctx context.Context, repos store.Repositories) error {
		events = nil

		u, err := repos.Users.GetByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		if u.IsOnboarded() {
			h.deps.tracker().Reconcile(u, now)
			result = &CompleteOnboardingResult{Streak: u.Streak(), AlreadyOnboarded: true, User: u}
			return nil
		}

		if err := h.deps.tracker().Start(u, start, now); err != nil {
			return err
		}
		u.Touch(now)

		awarded := 0
		if h.deps.Policy.XPOnboarding > 0 {
			granted, err := h.deps.grantXP(ctx, repos, u, shared.ActivityOnboarding, h.deps.Policy.XPOnboarding, now)
			if err != nil {
				return err
			}
			awarded = h.deps.Policy.XPOnboarding
			events = append(events, granted...)
		}

		flow, err := h.flow.Run(ctx, repos, u, now)
		if err != nil {
			return err
		}

		if err := repos.Users.Update(ctx, u); err != nil {
			return shared.Internal("user", "Update", err)
		}

		events = append([]shared.Event{shared.NewOnboardingCompletedEvent(u.ID, *u.StreakStart, now)}, events...)
		events = append(events, flow.Events...)

		result = &CompleteOnboardingResult{
			Streak:    u.Streak(),
			XPAwarded: awarded + flow.XPGranted,
			Unlocked:  flow.Unlocked,
			User:      u,
		}
		return nil
	})
	if err != nil {
		return nil, shared.Internal("command", "CompleteOnboarding", err)
	}

	h.deps.Publisher.Publish(ctx, events...)
	return result, nil
}
