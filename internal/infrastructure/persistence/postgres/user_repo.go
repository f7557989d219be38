package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository.
type UserRepository struct {
	q Querier
}

var _ user.Repository = (*UserRepository)(nil)

const userColumns = `
	id, display_name, streak_start, current_streak, longest_streak, total_resets,
	total_xp, current_level, current_tier, show_on_leaderboard,
	last_activity_at, onboarded_at, created_at, updated_at`

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.q.Exec(ctx, query,
		u.ID,
		u.DisplayName,
		u.StreakStart,
		u.CurrentStreak,
		u.LongestStreak,
		u.TotalResets,
		u.TotalXP,
		u.CurrentLevel,
		string(u.CurrentTier),
		u.ShowOnLeaderboard,
		u.LastActivityAt,
		u.OnboardedAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID returns a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Update writes the whole snapshot.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users SET
			display_name = $1,
			streak_start = $2,
			current_streak = $3,
			longest_streak = $4,
			total_resets = $5,
			total_xp = $6,
			current_level = $7,
			current_tier = $8,
			show_on_leaderboard = $9,
			last_activity_at = $10,
			onboarded_at = $11,
			updated_at = $12
		WHERE id = $13
	`

	tag, err := r.q.Exec(ctx, query,
		u.DisplayName,
		u.StreakStart,
		u.CurrentStreak,
		u.LongestStreak,
		u.TotalResets,
		u.TotalXP,
		u.CurrentLevel,
		string(u.CurrentTier),
		u.ShowOnLeaderboard,
		u.LastActivityAt,
		u.OnboardedAt,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	var tier string

	err := row.Scan(
		&u.ID,
		&u.DisplayName,
		&u.StreakStart,
		&u.CurrentStreak,
		&u.LongestStreak,
		&u.TotalResets,
		&u.TotalXP,
		&u.CurrentLevel,
		&tier,
		&u.ShowOnLeaderboard,
		&u.LastActivityAt,
		&u.OnboardedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.CurrentTier = xp.Tier(tier)
	normalizeUserTimes(&u)
	return &u, nil
}

// normalizeUserTimes keeps timestamps in UTC like the rest of the domain.
func normalizeUserTimes(u *user.User) {
	for _, p := range []**time.Time{&u.StreakStart, &u.LastActivityAt, &u.OnboardedAt} {
		if *p != nil {
			t := (*p).UTC()
			*p = &t
		}
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
}
