// Package query contains read operations following CQRS pattern.
// Queries return data without changing it. The one exception is the streak
// reconcile: a stale stored streak is written back on read.
package query

import (
	"context"
	"time"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STREAK QUERY
// Серия выводится из StreakStart при каждом чтении. Если сохранённое
// значение отстало, оно обновляется в транзакции пользователя.
// ══════════════════════════════════════════════════════════════════════════════

// GetStreakQuery содержит параметры запроса серии.
type GetStreakQuery struct {
	UserID string
}

// Validate проверяет корректность параметров запроса.
func (q GetStreakQuery) Validate() error {
	if !shared.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// GetStreakHandler обрабатывает запросы серии.
type GetStreakHandler struct {
	store     store.Store
	tracker   user.StreakTracker
	clock     timeutil.Clock
	publisher shared.EventPublisher
}

// NewGetStreakHandler создаёт обработчик.
func NewGetStreakHandler(s store.Store, cal timeutil.Calendar, clock timeutil.Clock) *GetStreakHandler {
	return &GetStreakHandler{store: s, tracker: user.NewStreakTracker(cal), clock: clock, publisher: shared.NopPublisher{}}
}

// WithPublisher задаёт шину для события сверки серии.
func (h *GetStreakHandler) WithPublisher(p shared.EventPublisher) *GetStreakHandler {
	if p != nil {
		h.publisher = p
	}
	return h
}

// Handle возвращает снимок серии.
func (h *GetStreakHandler) Handle(ctx context.Context, q GetStreakQuery) (*user.StreakSnapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	u, err := loadReconciled(ctx, h.store, h.publisher, h.tracker, q.UserID, h.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	snapshot := u.Streak()
	return &snapshot, nil
}

// loadReconciled читает пользователя и при расхождении сохраняет
// пересчитанную серию. Быстрый путь идёт без блокировки. После записи
// публикуется событие, чтобы кэш рейтинга не показывал старую серию.
func loadReconciled(ctx context.Context, s store.Store, pub shared.EventPublisher, tracker user.StreakTracker, userID string, now time.Time) (*user.User, error) {
	u, err := s.Repositories().Users.GetByID(ctx, userID)
	if err != nil {
		return nil, shared.Internal("query", "GetUser", err)
	}
	if !tracker.Reconcile(u, now) {
		return u, nil
	}

	// Значение отстало: перечитываем под блокировкой, чтобы не затереть
	// параллельный сброс.
	written := false
	err = s.InUserTx(ctx, userID, func(ctx context.Context, repos store.Repositories) error {
		locked, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if tracker.Reconcile(locked, now) {
			if err := repos.Users.Update(ctx, locked); err != nil {
				return err
			}
			written = true
		}
		u = locked
		return nil
	})
	if err != nil {
		return nil, shared.Internal("query", "ReconcileStreak", err)
	}
	if written {
		pub.Publish(ctx, shared.NewStreakReconciledEvent(userID, u.CurrentStreak, now))
	}
	return u, nil
}
