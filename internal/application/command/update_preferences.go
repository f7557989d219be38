package command

import (
	"context"
	"time"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
)

// UpdatePreferencesCommand changes the user's visibility settings.
type UpdatePreferencesCommand struct {
	UserID            string
	ShowOnLeaderboard bool
}

// Validate validates the command.
func (c UpdatePreferencesCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// UpdatePreferencesHandler handles UpdatePreferencesCommand.
type UpdatePreferencesHandler struct {
	deps Deps
}

// NewUpdatePreferencesHandler creates a new UpdatePreferencesHandler.
func NewUpdatePreferencesHandler(deps Deps) *UpdatePreferencesHandler {
	return &UpdatePreferencesHandler{deps: deps.withDefaults()}
}

// Handle applies the preferences. An unchanged value writes nothing and
// publishes nothing.
func (h *UpdatePreferencesHandler) Handle(ctx context.Context, cmd UpdatePreferencesCommand) (result *user.User, err error) {
	ctx, sp := span(ctx, "update_preferences", cmd.UserID)
	started := time.Now()
	defer func() { h.deps.finish(ctx, sp, "update_preferences", cmd.UserID, started, err) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.deps.now()
	changed := false

	err = h.deps.Store.InUserTx(ctx, cmd.UserID, func(ctx context.Context, repos store.Repositories) error {
		u, err := repos.Users.GetByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		result = u

		changed = u.SetLeaderboardVisibility(cmd.ShowOnLeaderboard, now)
		if !changed {
			return nil
		}
		if err := repos.Users.Update(ctx, u); err != nil {
			return shared.Internal("user", "Update", err)
		}
		return nil
	})
	if err != nil {
		return nil, shared.Internal("command", "UpdatePreferences", err)
	}

	if changed {
		h.deps.Publisher.Publish(ctx, shared.NewPreferencesChangedEvent(cmd.UserID, cmd.ShowOnLeaderboard, now))
	}
	return result, nil
}
