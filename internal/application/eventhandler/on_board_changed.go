package eventhandler

import (
	"context"

	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE INVALIDATION
// Любое событие, которое может сдвинуть рейтинг, сбрасывает кэш целиком.
// Рейтингов мало, а пересчёт дешёвый, поэтому точечная инвалидация не нужна.
// ═══════════════════════════════════════════════════════════════════════════

// boardEvents - события, после которых рейтинг может измениться.
var boardEvents = []shared.EventType{
	shared.EventOnboardingCompleted,
	shared.EventPreferencesChanged,
	shared.EventStreakReset,
	shared.EventStreakReconciled,
	shared.EventLevelUp,
}

// InvalidateLeaderboardHandler сбрасывает кэш рейтинга.
type InvalidateLeaderboardHandler struct {
	cache  leaderboard.Cache
	logger *logger.Logger
}

// NewInvalidateLeaderboardHandler создаёт обработчик.
func NewInvalidateLeaderboardHandler(cache leaderboard.Cache, log *logger.Logger) *InvalidateLeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &InvalidateLeaderboardHandler{
		cache:  cache,
		logger: log.With(logger.Component("leaderboard_invalidator")),
	}
}

// Register подписывает обработчик на события рейтинга.
func (h *InvalidateLeaderboardHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range boardEvents {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle сбрасывает кэш. Ошибка только логируется: кэш живёт не дольше TTL.
func (h *InvalidateLeaderboardHandler) Handle(ctx context.Context, event shared.Event) error {
	if h.cache == nil {
		return nil
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		h.logger.Warn("leaderboard cache invalidation failed",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
	return nil
}
