package query

import (
	"context"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/xp"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// DefaultRecentEvents - сколько последних XP-событий показывается по умолчанию.
const DefaultRecentEvents = 10

// GetXPSummaryQuery содержит параметры запроса XP.
type GetXPSummaryQuery struct {
	UserID string
}

// GetXPSummaryHandler строит сводку по леджеру.
type GetXPSummaryHandler struct {
	store  store.Store
	recent int
}

// NewGetXPSummaryHandler создаёт обработчик. recent <= 0 - DefaultRecentEvents.
func NewGetXPSummaryHandler(s store.Store, recent int) *GetXPSummaryHandler {
	if recent <= 0 {
		recent = DefaultRecentEvents
	}
	return &GetXPSummaryHandler{store: s, recent: recent}
}

// Handle возвращает сводку. Итог всегда считается из леджера, а не из
// кэша в записи пользователя.
func (h *GetXPSummaryHandler) Handle(ctx context.Context, q GetXPSummaryQuery) (*xp.Summary, error) {
	if !shared.UserID(q.UserID).IsValid() {
		return nil, shared.ErrInvalidUserID
	}

	repos := h.store.Repositories()
	if _, err := repos.Users.GetByID(ctx, q.UserID); err != nil {
		return nil, shared.Internal("query", "GetUser", err)
	}

	totals, err := repos.XP.Totals(ctx, q.UserID)
	if err != nil {
		return nil, shared.Internal("query", "XPTotals", err)
	}
	recent, err := repos.XP.Recent(ctx, q.UserID, h.recent)
	if err != nil {
		return nil, shared.Internal("query", "XPRecent", err)
	}

	summary := xp.Summarize(totals, recent)
	return &summary, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// Всё, что экран профиля показывает одним запросом.
// ══════════════════════════════════════════════════════════════════════════════

// Profile - снимок прогресса пользователя.
type Profile struct {
	User   *user.User
	Streak user.StreakSnapshot
	XP     xp.Summary
}

// GetProfileQuery содержит параметры запроса профиля.
type GetProfileQuery struct {
	UserID string
}

// GetProfileHandler обрабатывает запросы профиля.
type GetProfileHandler struct {
	store     store.Store
	tracker   user.StreakTracker
	clock     timeutil.Clock
	summary   *GetXPSummaryHandler
	publisher shared.EventPublisher
}

// NewGetProfileHandler создаёт обработчик.
func NewGetProfileHandler(s store.Store, cal timeutil.Calendar, clock timeutil.Clock, recent int) *GetProfileHandler {
	return &GetProfileHandler{
		store:     s,
		tracker:   user.NewStreakTracker(cal),
		clock:     clock,
		summary:   NewGetXPSummaryHandler(s, recent),
		publisher: shared.NopPublisher{},
	}
}

// WithPublisher задаёт шину для события сверки серии.
func (h *GetProfileHandler) WithPublisher(p shared.EventPublisher) *GetProfileHandler {
	if p != nil {
		h.publisher = p
	}
	return h
}

// Handle возвращает профиль.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*Profile, error) {
	if !shared.UserID(q.UserID).IsValid() {
		return nil, shared.ErrInvalidUserID
	}

	u, err := loadReconciled(ctx, h.store, h.publisher, h.tracker, q.UserID, h.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	summary, err := h.summary.Handle(ctx, GetXPSummaryQuery{UserID: q.UserID})
	if err != nil {
		return nil, err
	}

	return &Profile{User: u, Streak: u.Streak(), XP: *summary}, nil
}
