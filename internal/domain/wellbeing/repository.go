package wellbeing

import (
	"context"
	"time"
)

// Repository stores daily logs. (UserID, Date) is unique.
type Repository interface {
	// Upsert writes the full log, inserting or replacing the row of the
	// same (user, day). Returns true when a new row was created.
	Upsert(ctx context.Context, log *DailyLog) (created bool, err error)

	// GetByDate returns the log of one day.
	// Returns ErrDailyLogNotFound when there is none.
	GetByDate(ctx context.Context, userID string, date time.Time) (*DailyLog, error)

	// ListRecent returns the newest logs by date, newest first.
	ListRecent(ctx context.Context, userID string, limit int) ([]*DailyLog, error)

	// ListRange returns logs with from <= date < to, oldest first.
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]*DailyLog, error)
}
