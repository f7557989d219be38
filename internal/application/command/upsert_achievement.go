package command

import (
	"context"
	"errors"
	"time"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/logger"
)

// UpsertAchievementCommand creates or replaces one catalog entry.
type UpsertAchievementCommand struct {
	ID            string
	Name          string
	Description   string
	Category      string
	Tier          string
	CriteriaType  string
	CriteriaValue int
	XPReward      int
	IsActive      bool
}

// UpsertAchievementResult contains the stored entry.
type UpsertAchievementResult struct {
	Achievement *achievement.Achievement
	Created     bool
}

// UpsertAchievementHandler handles UpsertAchievementCommand.
type UpsertAchievementHandler struct {
	deps Deps
}

// NewUpsertAchievementHandler creates a new UpsertAchievementHandler.
func NewUpsertAchievementHandler(deps Deps) *UpsertAchievementHandler {
	return &UpsertAchievementHandler{deps: deps.withDefaults()}
}

// Handle validates and stores the entry. Existing unlocks are untouched:
// deactivating an achievement only stops new unlocks.
func (h *UpsertAchievementHandler) Handle(ctx context.Context, cmd UpsertAchievementCommand) (result *UpsertAchievementResult, err error) {
	ctx, sp := span(ctx, "upsert_achievement", "")
	started := time.Now()
	defer func() { h.deps.finish(ctx, sp, "upsert_achievement", "", started, err) }()

	category, err := achievement.ParseCategory(cmd.Category)
	if err != nil {
		return nil, err
	}

	now := h.deps.now()
	a := &achievement.Achievement{
		ID:          cmd.ID,
		Name:        cmd.Name,
		Description: cmd.Description,
		Category:    category,
		Tier:        cmd.Tier,
		Criteria:    achievement.Criteria{Type: cmd.CriteriaType, Value: cmd.CriteriaValue},
		XPReward:    cmd.XPReward,
		IsActive:    cmd.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	var created bool
	err = h.deps.Store.InTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		created, err = repos.Achievements.Upsert(ctx, a)
		return err
	})
	if err != nil {
		return nil, shared.Internal("command", "UpsertAchievement", err)
	}

	h.deps.Publisher.Publish(ctx, shared.NewCatalogChangedEvent(a.ID, now))
	return &UpsertAchievementResult{Achievement: a, Created: created}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog seed
// ─────────────────────────────────────────────────────────────────────────────

// SeedCatalogHandler inserts built-in achievements that are missing from the
// store. Entries that already exist keep whatever an admin changed.
type SeedCatalogHandler struct {
	deps Deps
}

// NewSeedCatalogHandler creates a new SeedCatalogHandler.
func NewSeedCatalogHandler(deps Deps) *SeedCatalogHandler {
	return &SeedCatalogHandler{deps: deps.withDefaults()}
}

// Handle seeds the given entries and returns how many were inserted.
func (h *SeedCatalogHandler) Handle(ctx context.Context, entries []*achievement.Achievement) (inserted int, err error) {
	ctx, sp := span(ctx, "seed_catalog", "")
	started := time.Now()
	defer func() { h.deps.finish(ctx, sp, "seed_catalog", "", started, err) }()

	for _, a := range entries {
		if err := a.Validate(); err != nil {
			return 0, err
		}
	}

	err = h.deps.Store.InTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		inserted = 0
		for _, a := range entries {
			_, err := repos.Achievements.GetByID(ctx, a.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, shared.ErrAchievementNotFound) {
				return shared.Internal("achievement", "GetByID", err)
			}
			if _, err := repos.Achievements.Upsert(ctx, a.Clone()); err != nil {
				return shared.Internal("achievement", "Upsert", err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, shared.Internal("command", "SeedCatalog", err)
	}

	if inserted > 0 {
		h.deps.Logger.Info("achievement catalog seeded",
			logger.Int("inserted", inserted),
			logger.Int("total", len(entries)),
		)
		h.deps.Publisher.Publish(ctx, shared.NewCatalogChangedEvent("", h.deps.now()))
	}
	return inserted, nil
}
