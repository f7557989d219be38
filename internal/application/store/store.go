// Package store defines the record store the application layer runs against:
// the repositories plus the per-user transaction boundary.
package store

import (
	"context"

	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/wellbeing"
	"github.com/recoverly/progress-hub/internal/domain/xp"
)

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Users        user.Repository
	XP           xp.Repository
	Logs         wellbeing.Repository
	Achievements achievement.Repository
}

// TxFunc runs inside a transaction. Returning an error rolls everything back.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store is the record store.
//
// Every invariant is per user, so writes go through InUserTx, which
// serialises all transactions of the same user and nothing else.
type Store interface {
	// Repositories returns repositories for reads outside a transaction.
	Repositories() Repositories

	// Leaderboard returns the candidate reader.
	Leaderboard() leaderboard.Repository

	// InUserTx locks the user and runs fn in one transaction. Returns
	// shared.ErrUserNotFound when the user does not exist.
	InUserTx(ctx context.Context, userID string, fn TxFunc) error

	// InTx runs fn in one transaction without a user lock. Used for
	// registration and catalog writes.
	InTx(ctx context.Context, fn TxFunc) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}
