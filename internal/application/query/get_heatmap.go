package query

import (
	"context"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/wellbeing"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET HEATMAP QUERY
// Годовая тепловая карта самочувствия: одна клетка на каждый день года.
// ══════════════════════════════════════════════════════════════════════════════

// GetHeatmapQuery содержит параметры запроса.
type GetHeatmapQuery struct {
	UserID string

	// YearStart - первый день карты, YYYY-MM-DD. Пусто - 1 января текущего года.
	YearStart string
}

// Validate проверяет корректность параметров запроса.
func (q GetHeatmapQuery) Validate() error {
	if !shared.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if q.YearStart != "" {
		if _, err := timeutil.ParseCivilDate(q.YearStart); err != nil {
			return shared.ErrInvalidDate
		}
	}
	return nil
}

// GetHeatmapHandler обрабатывает запросы тепловой карты.
type GetHeatmapHandler struct {
	store store.Store
	cal   timeutil.Calendar
	clock timeutil.Clock
}

// NewGetHeatmapHandler создаёт обработчик.
func NewGetHeatmapHandler(s store.Store, cal timeutil.Calendar, clock timeutil.Clock) *GetHeatmapHandler {
	return &GetHeatmapHandler{store: s, cal: cal, clock: clock}
}

// Handle строит карту.
func (h *GetHeatmapHandler) Handle(ctx context.Context, q GetHeatmapQuery) (*wellbeing.Heatmap, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	start := h.cal.CivilDate(h.cal.StartOfYear(h.clock.Now()))
	if q.YearStart != "" {
		start, _ = timeutil.ParseCivilDate(q.YearStart)
	}

	repos := h.store.Repositories()
	if _, err := repos.Users.GetByID(ctx, q.UserID); err != nil {
		return nil, shared.Internal("query", "GetUser", err)
	}

	from, to := wellbeing.YearRange(start)
	logs, err := repos.Logs.ListRange(ctx, q.UserID, from, to)
	if err != nil {
		return nil, shared.Internal("query", "ListLogs", err)
	}

	heatmap := wellbeing.BuildHeatmap(start, logs)
	return &heatmap, nil
}
