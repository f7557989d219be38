// Package eventhandler содержит обработчики доменных событий.
// Они запускаются только после коммита транзакции и отвечают за побочные
// эффекты: уведомления и сброс кэшей. Ошибка обработчика не откатывает
// изменения пользователя.
package eventhandler

import (
	"context"

	"github.com/recoverly/progress-hub/config"
	"github.com/recoverly/progress-hub/internal/domain/notification"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// PROGRESS NOTIFICATIONS
// Поздравления с полученным достижением и новым уровнем.
// Каждое уведомление можно выключить флагом, в том числе для части
// пользователей.
// ═══════════════════════════════════════════════════════════════════════════

// NotifyHandler отправляет уведомления о прогрессе.
type NotifyHandler struct {
	sink   notification.Sink
	flags  *config.FeatureFlags
	logger *logger.Logger
}

// NewNotifyHandler создаёт обработчик. flags == nil - всё включено.
func NewNotifyHandler(sink notification.Sink, flags *config.FeatureFlags, log *logger.Logger) *NotifyHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &NotifyHandler{
		sink:   sink,
		flags:  flags,
		logger: log.With(logger.Component("notify_handler")),
	}
}

// Register подписывает обработчик на события.
func (h *NotifyHandler) Register(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventAchievementUnlocked, h.OnAchievementUnlocked); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventLevelUp, h.OnLevelUp)
}

// OnAchievementUnlocked - "You unlocked X".
func (h *NotifyHandler) OnAchievementUnlocked(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.AchievementUnlockedEvent)
	if !ok {
		h.logger.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}
	if !h.flags.EnabledFor(config.FeatureNotifyAchievement, e.AggregateID()) {
		return nil
	}

	n := notification.AchievementUnlocked(e.AggregateID(), e.AchievementName, e.XPReward, e.OccurredAt())
	return h.send(ctx, n)
}

// OnLevelUp - "You reached level N".
func (h *NotifyHandler) OnLevelUp(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}
	if !h.flags.EnabledFor(config.FeatureNotifyLevelUp, e.AggregateID()) {
		return nil
	}

	n := notification.LevelUp(e.AggregateID(), e.NewLevel, e.Tier, e.OccurredAt())
	return h.send(ctx, n)
}

func (h *NotifyHandler) send(ctx context.Context, n notification.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if err := h.sink.Send(ctx, n); err != nil {
		h.logger.Error("notification failed",
			logger.UserID(n.UserID),
			logger.String("type", string(n.Type)),
			logger.Err(err),
		)
		return err
	}
	h.logger.Debug("notification sent",
		logger.UserID(n.UserID),
		logger.String("type", string(n.Type)),
	)
	return nil
}
