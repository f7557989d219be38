package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/wellbeing"
	"github.com/recoverly/progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// XPRepository implements xp.Repository. The ledger is append-only.
type XPRepository struct {
	q Querier
}

var _ xp.Repository = (*XPRepository)(nil)

// Append stores one event.
func (r *XPRepository) Append(ctx context.Context, e *xp.Event) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO xp_events (id, user_id, activity_type, points, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.UserID, string(e.ActivityType), e.Points, e.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("xp", "Append", shared.ErrAlreadyExists, "duplicate xp event", err)
		}
		return fmt.Errorf("failed to append xp event: %w", err)
	}
	return nil
}

// Totals sums all events of a user grouped by activity type.
func (r *XPRepository) Totals(ctx context.Context, userID string) (xp.Totals, error) {
	rows, err := r.q.Query(ctx, `
		SELECT activity_type, SUM(points)
		FROM xp_events
		WHERE user_id = $1
		GROUP BY activity_type
	`, userID)
	if err != nil {
		return xp.Totals{}, fmt.Errorf("failed to sum xp: %w", err)
	}
	defer rows.Close()

	t := xp.Totals{Breakdown: make(map[shared.ActivityType]int)}
	for rows.Next() {
		var activity string
		var points int64
		if err := rows.Scan(&activity, &points); err != nil {
			return xp.Totals{}, fmt.Errorf("failed to scan xp totals: %w", err)
		}
		t.Breakdown[shared.ActivityType(activity)] = int(points)
		t.Total += int(points)
	}
	return t, rows.Err()
}

// Recent returns the newest events, newest first. Events with the same
// timestamp come back in reverse insertion order.
func (r *XPRepository) Recent(ctx context.Context, userID string, limit int) ([]*xp.Event, error) {
	query := `
		SELECT id, user_id, activity_type, points, created_at
		FROM xp_events
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query xp events: %w", err)
	}
	defer rows.Close()

	var out []*xp.Event
	for rows.Next() {
		var e xp.Event
		var activity string
		if err := rows.Scan(&e.ID, &e.UserID, &activity, &e.Points, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan xp event: %w", err)
		}
		e.ActivityType = shared.ActivityType(activity)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY LOGS
// ══════════════════════════════════════════════════════════════════════════════

// DailyLogRepository implements wellbeing.Repository.
type DailyLogRepository struct {
	q Querier
}

var _ wellbeing.Repository = (*DailyLogRepository)(nil)

const logColumns = `
	id, user_id, log_date, mood_rating, energy_level, confidence_level,
	urge_intensity, notes, activities_completed, created_at, updated_at`

// Upsert inserts or replaces the row of the same (user, day). xmax is 0
// only for a freshly inserted row.
func (r *DailyLogRepository) Upsert(ctx context.Context, l *wellbeing.DailyLog) (bool, error) {
	activities := l.ActivitiesCompleted
	if activities == nil {
		activities = []string{}
	}

	var created bool
	err := r.q.QueryRow(ctx, `
		INSERT INTO daily_logs (`+logColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, log_date) DO UPDATE SET
			mood_rating = EXCLUDED.mood_rating,
			energy_level = EXCLUDED.energy_level,
			confidence_level = EXCLUDED.confidence_level,
			urge_intensity = EXCLUDED.urge_intensity,
			notes = EXCLUDED.notes,
			activities_completed = EXCLUDED.activities_completed,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)
	`,
		l.ID,
		l.UserID,
		l.DateString(),
		l.MoodRating,
		l.EnergyLevel,
		l.ConfidenceLevel,
		l.UrgeIntensity,
		l.Notes,
		activities,
		l.CreatedAt,
		l.UpdatedAt,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert daily log: %w", err)
	}
	return created, nil
}

// GetByDate returns the log of one day.
func (r *DailyLogRepository) GetByDate(ctx context.Context, userID string, date time.Time) (*wellbeing.DailyLog, error) {
	row := r.q.QueryRow(ctx, `SELECT `+logColumns+` FROM daily_logs WHERE user_id = $1 AND log_date = $2`,
		userID, date.UTC().Format(time.DateOnly))
	l, err := scanLog(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrDailyLogNotFound
		}
		return nil, err
	}
	return l, nil
}

// ListRecent returns the newest logs, newest first.
func (r *DailyLogRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*wellbeing.DailyLog, error) {
	query := `SELECT ` + logColumns + ` FROM daily_logs WHERE user_id = $1 ORDER BY log_date DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

// ListRange returns logs with from <= date < to, oldest first.
func (r *DailyLogRepository) ListRange(ctx context.Context, userID string, from, to time.Time) ([]*wellbeing.DailyLog, error) {
	return r.list(ctx, `
		SELECT `+logColumns+`
		FROM daily_logs
		WHERE user_id = $1 AND log_date >= $2 AND log_date < $3
		ORDER BY log_date
	`, userID, from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly))
}

func (r *DailyLogRepository) list(ctx context.Context, query string, args ...any) ([]*wellbeing.DailyLog, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily logs: %w", err)
	}
	defer rows.Close()

	var out []*wellbeing.DailyLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLog(row pgx.Row) (*wellbeing.DailyLog, error) {
	var l wellbeing.DailyLog
	var mood, energy, confidence, urge *int16

	err := row.Scan(
		&l.ID,
		&l.UserID,
		&l.Date,
		&mood,
		&energy,
		&confidence,
		&urge,
		&l.Notes,
		&l.ActivitiesCompleted,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan daily log: %w", err)
	}

	l.MoodRating = intPtr(mood)
	l.EnergyLevel = intPtr(energy)
	l.ConfidenceLevel = intPtr(confidence)
	l.UrgeIntensity = intPtr(urge)
	if len(l.ActivitiesCompleted) == 0 {
		l.ActivitiesCompleted = nil
	}
	l.Date = time.Date(l.Date.Year(), l.Date.Month(), l.Date.Day(), 0, 0, 0, 0, time.UTC)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

func intPtr(v *int16) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}
