package command

import (
	"context"
	"time"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
)

// RegisterUserCommand creates the progress row for an identity that was
// registered elsewhere.
type RegisterUserCommand struct {
	UserID            string
	DisplayName       string
	ShowOnLeaderboard bool
}

// Validate validates the command.
func (c RegisterUserCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if c.DisplayName == "" {
		return shared.ErrInvalidDisplayName
	}
	return nil
}

// RegisterUserHandler handles RegisterUserCommand.
type RegisterUserHandler struct {
	deps Deps
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(deps Deps) *RegisterUserHandler {
	return &RegisterUserHandler{deps: deps.withDefaults()}
}

// Handle creates the user. A second registration of the same ID is a conflict.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (result *user.User, err error) {
	ctx, sp := span(ctx, "register_user", cmd.UserID)
	started := time.Now()
	defer func() { h.deps.finish(ctx, sp, "register_user", cmd.UserID, started, err) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.deps.now()
	u, err := user.NewUser(cmd.UserID, cmd.DisplayName, cmd.ShowOnLeaderboard, now)
	if err != nil {
		return nil, err
	}

	err = h.deps.Store.InTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		return repos.Users.Create(ctx, u)
	})
	if err != nil {
		return nil, shared.Internal("command", "RegisterUser", err)
	}

	h.deps.Publisher.Publish(ctx, shared.NewUserRegisteredEvent(u.ID, u.DisplayName, now))
	return u, nil
}
