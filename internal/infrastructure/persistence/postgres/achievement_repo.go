package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository.
type AchievementRepository struct {
	q Querier
}

var _ achievement.Repository = (*AchievementRepository)(nil)

const achievementColumns = `
	id, name, description, category, tier, criteria_type, criteria_value,
	xp_reward, is_active, created_at, updated_at`

// ListActive returns active catalog entries ordered by ID.
func (r *AchievementRepository) ListActive(ctx context.Context) ([]*achievement.Achievement, error) {
	return r.list(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE is_active ORDER BY id`)
}

// ListAll returns the whole catalog ordered by ID.
func (r *AchievementRepository) ListAll(ctx context.Context) ([]*achievement.Achievement, error) {
	return r.list(ctx, `SELECT `+achievementColumns+` FROM achievements ORDER BY id`)
}

// GetByID returns one catalog entry.
func (r *AchievementRepository) GetByID(ctx context.Context, id string) (*achievement.Achievement, error) {
	a, err := scanAchievement(r.q.QueryRow(ctx, `SELECT `+achievementColumns+` FROM achievements WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAchievementNotFound
		}
		return nil, err
	}
	return a, nil
}

// Upsert creates or updates a catalog entry. created_at survives updates.
func (r *AchievementRepository) Upsert(ctx context.Context, a *achievement.Achievement) (bool, error) {
	var created bool
	err := r.q.QueryRow(ctx, `
		INSERT INTO achievements (`+achievementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			tier = EXCLUDED.tier,
			criteria_type = EXCLUDED.criteria_type,
			criteria_value = EXCLUDED.criteria_value,
			xp_reward = EXCLUDED.xp_reward,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)
	`,
		a.ID,
		a.Name,
		a.Description,
		string(a.Category),
		a.Tier,
		a.Criteria.Type,
		a.Criteria.Value,
		a.XPReward,
		a.IsActive,
		a.CreatedAt,
		a.UpdatedAt,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert achievement: %w", err)
	}
	return created, nil
}

// Unlock inserts the (user, achievement) pair. A duplicate is not an error.
func (r *AchievementRepository) Unlock(ctx context.Context, ua *achievement.UserAchievement) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, ua.UserID, ua.AchievementID, ua.UnlockedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, shared.ErrAchievementNotFound
		}
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListUnlocked returns the user's unlocks, newest first.
func (r *AchievementRepository) ListUnlocked(ctx context.Context, userID string) ([]*achievement.UserAchievement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT user_id, achievement_id, unlocked_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY unlocked_at DESC, achievement_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlocked achievements: %w", err)
	}
	defer rows.Close()

	var out []*achievement.UserAchievement
	for rows.Next() {
		var ua achievement.UserAchievement
		if err := rows.Scan(&ua.UserID, &ua.AchievementID, &ua.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unlocked achievement: %w", err)
		}
		ua.UnlockedAt = ua.UnlockedAt.UTC()
		out = append(out, &ua)
	}
	return out, rows.Err()
}

func (r *AchievementRepository) list(ctx context.Context, query string) ([]*achievement.Achievement, error) {
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var out []*achievement.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAchievement(row pgx.Row) (*achievement.Achievement, error) {
	var a achievement.Achievement
	var category string

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Description,
		&category,
		&a.Tier,
		&a.Criteria.Type,
		&a.Criteria.Value,
		&a.XPReward,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan achievement: %w", err)
	}
	a.Category = achievement.Category(category)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CANDIDATES
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository.
type LeaderboardRepository struct {
	q Querier
}

var _ leaderboard.Repository = (*LeaderboardRepository)(nil)

// ListCandidates returns opted-in users in (created_at, id) order, filtered
// by the window column when q.Since is set.
func (r *LeaderboardRepository) ListCandidates(ctx context.Context, q leaderboard.CandidateQuery) ([]leaderboard.Candidate, error) {
	query := `
		SELECT id, display_name, show_on_leaderboard, current_streak, longest_streak,
			   total_xp, current_level, streak_start, last_activity_at
		FROM users
		WHERE show_on_leaderboard`
	var args []any
	if q.Since != nil {
		column := "streak_start"
		if q.Basis == leaderboard.BasisLastActivity {
			column = "last_activity_at"
		}
		query += ` AND ` + column + ` >= $1`
		args = append(args, *q.Since)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard candidates: %w", err)
	}
	defer rows.Close()

	var out []leaderboard.Candidate
	for rows.Next() {
		var c leaderboard.Candidate
		if err := rows.Scan(
			&c.UserID,
			&c.DisplayName,
			&c.ShowOnLeaderboard,
			&c.CurrentStreak,
			&c.LongestStreak,
			&c.TotalXP,
			&c.Level,
			&c.StreakStart,
			&c.LastActivityAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
