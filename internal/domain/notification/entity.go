// Package notification содержит модель уведомления и порт для его отправки.
// Доставка - ответственность внешнего получателя (Sink); ядро только
// формирует уведомление после коммита.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет тип уведомления.
type Type string

const (
	// TypeAchievementUnlocked - "Получено достижение X".
	TypeAchievementUnlocked Type = "achievement_unlocked"
	// TypeLevelUp - "Достигнут уровень N".
	TypeLevelUp Type = "level_up"
)

// IsValid проверяет тип.
func (t Type) IsValid() bool {
	return t == TypeAchievementUnlocked || t == TypeLevelUp
}

// Ссылки на экраны клиента.
const (
	LinkAchievements = "/achievements"
	LinkProgress     = "/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification - то, что получает Sink.
type Notification struct {
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate проверяет обязательные поля.
func (n Notification) Validate() error {
	if strings.TrimSpace(n.UserID) == "" {
		return fmt.Errorf("notification: user ID is required")
	}
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("notification: title is required")
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("notification: unknown type %q", n.Type)
	}
	return nil
}

// AchievementUnlocked строит уведомление о полученном достижении.
func AchievementUnlocked(userID, achievementName string, xpReward int, at time.Time) Notification {
	msg := fmt.Sprintf("You unlocked %q.", achievementName)
	if xpReward > 0 {
		msg = fmt.Sprintf("You unlocked %q and earned %d XP.", achievementName, xpReward)
	}
	return Notification{
		UserID:    userID,
		Title:     "Achievement unlocked",
		Message:   msg,
		Type:      TypeAchievementUnlocked,
		Link:      LinkAchievements,
		CreatedAt: at,
	}
}

// LevelUp строит уведомление о новом уровне.
func LevelUp(userID string, newLevel int, tier string, at time.Time) Notification {
	return Notification{
		UserID:    userID,
		Title:     fmt.Sprintf("Level %d reached", newLevel),
		Message:   fmt.Sprintf("You reached level %d (%s). Keep going.", newLevel, tier),
		Type:      TypeLevelUp,
		Link:      LinkProgress,
		CreatedAt: at,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SINK
// ══════════════════════════════════════════════════════════════════════════════

// Sink принимает уведомления. Вызывается только после коммита транзакции,
// ошибки Sink не откатывают состояние пользователя.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// SinkFunc адаптирует функцию к Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
