package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store implements store.Store.
type Store struct {
	conn *Connection
}

var _ store.Store = (*Store)(nil)

// NewStore creates a store over an open connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// Connection returns the underlying connection.
func (s *Store) Connection() *Connection {
	return s.conn
}

// Repositories returns repositories bound to the pool.
func (s *Store) Repositories() store.Repositories {
	return repositories(s.conn.Pool())
}

// Leaderboard returns the candidate reader.
func (s *Store) Leaderboard() leaderboard.Repository {
	return &LeaderboardRepository{q: s.conn.Pool()}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// InUserTx takes a row lock on the user and runs fn in the same
// transaction. Concurrent transactions for that user queue on the lock.
func (s *Store) InUserTx(ctx context.Context, userID string, fn store.TxFunc) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		return fn(ctx, repositories(tx))
	})
}

// InTx runs fn in one transaction without a user lock.
func (s *Store) InTx(ctx context.Context, fn store.TxFunc) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, repositories(tx))
	})
}

func repositories(q Querier) store.Repositories {
	return store.Repositories{
		Users:        &UserRepository{q: q},
		XP:           &XPRepository{q: q},
		Logs:         &DailyLogRepository{q: q},
		Achievements: &AchievementRepository{q: q},
	}
}
