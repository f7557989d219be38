package command

import (
	"context"
	"time"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW
// Runs inside the caller's user transaction:
// Load Catalog → Load Unlocked → Load History → Evaluate →
//
//	Unlock (conditional insert) → Award XP Reward → Collect Events
//
// Nothing is sent from here. Notifications go out from event handlers once
// the transaction has committed.
// ══════════════════════════════════════════════════════════════════════════════

// FlowResult contains what one evaluation changed.
type FlowResult struct {
	// Unlocked - achievements unlocked by this run only.
	Unlocked []*achievement.Achievement

	// XPGranted - XP added from achievement rewards.
	XPGranted int

	// Events - domain events to publish after commit.
	Events []shared.Event
}

// AchievementFlow evaluates and grants achievements for one user.
type AchievementFlow struct {
	deps   Deps
	engine *achievement.Engine
}

// NewAchievementFlow creates the flow with the rule set from policy.
func NewAchievementFlow(deps Deps) *AchievementFlow {
	deps = deps.withDefaults()
	return &AchievementFlow{
		deps:   deps,
		engine: achievement.NewEngine(achievement.DefaultRuleSet(deps.Policy.MoodWindowDefault)),
	}
}

// Run evaluates the catalog against u and unlocks what qualifies. u must be
// loaded inside the same transaction; the caller persists it afterwards.
func (f *AchievementFlow) Run(ctx context.Context, repos store.Repositories, u *user.User, now time.Time) (*FlowResult, error) {
	catalog, err := repos.Achievements.ListActive(ctx)
	if err != nil {
		return nil, shared.Internal("achievement", "ListActive", err)
	}
	if len(catalog) == 0 {
		return &FlowResult{}, nil
	}

	unlocked, err := repos.Achievements.ListUnlocked(ctx, u.ID)
	if err != nil {
		return nil, shared.Internal("achievement", "ListUnlocked", err)
	}

	logs, err := repos.Logs.ListRecent(ctx, u.ID, f.deps.Policy.HistoryDays)
	if err != nil {
		return nil, shared.Internal("wellbeing", "ListRecent", err)
	}
	history := achievement.NewHistory(logs, f.deps.Policy.HistoryDays)

	qualifying := f.engine.Evaluate(u, history, catalog, achievement.UnlockedSet(unlocked))

	result := &FlowResult{}
	for _, a := range qualifying {
		created, err := repos.Achievements.Unlock(ctx, &achievement.UserAchievement{
			UserID:        u.ID,
			AchievementID: a.ID,
			UnlockedAt:    now,
		})
		if err != nil {
			return nil, shared.Internal("achievement", "Unlock", err)
		}
		// Someone else already holds the row: no second unlock, no second reward.
		if !created {
			continue
		}

		result.Unlocked = append(result.Unlocked, a)
		result.Events = append(result.Events, shared.NewAchievementUnlockedEvent(u.ID, a.ID, a.Name, a.XPReward, now))

		if a.XPReward > 0 {
			events, err := f.deps.grantXP(ctx, repos, u, shared.ActivityAchievement, a.XPReward, now)
			if err != nil {
				return nil, err
			}
			result.XPGranted += a.XPReward
			result.Events = append(result.Events, events...)
		}
	}

	return result, nil
}
