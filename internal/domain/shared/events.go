// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Events are collected inside a user transaction and
// published only after it commits.
const (
	// User events
	EventUserRegistered      EventType = "user.registered"
	EventOnboardingCompleted EventType = "user.onboarding_completed"
	EventPreferencesChanged  EventType = "user.preferences_changed"

	// Progress events
	EventStreakReset         EventType = "progress.streak_reset"
	EventStreakReconciled    EventType = "progress.streak_reconciled"
	EventXPAwarded           EventType = "progress.xp_awarded"
	EventLevelUp             EventType = "progress.level_up"
	EventAchievementUnlocked EventType = "progress.achievement_unlocked"

	// Wellbeing events
	EventDailyLogRecorded EventType = "wellbeing.daily_log_recorded"

	// Catalog events
	EventCatalogChanged EventType = "catalog.changed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// User Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted when a user row is created.
type UserRegisteredEvent struct {
	BaseEvent
	DisplayName string `json:"display_name"`
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.AggregateId,
		"display_name": e.DisplayName,
	}
}

// NewUserRegisteredEvent creates a new UserRegisteredEvent.
func NewUserRegisteredEvent(userID, displayName string, at time.Time) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventUserRegistered, userID, at),
		DisplayName: displayName,
	}
}

// OnboardingCompletedEvent is emitted once, when a user starts tracking.
type OnboardingCompletedEvent struct {
	BaseEvent
	StreakStart time.Time `json:"streak_start"`
}

// Payload implements Event interface.
func (e OnboardingCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.AggregateId,
		"streak_start": e.StreakStart,
	}
}

// NewOnboardingCompletedEvent creates a new OnboardingCompletedEvent.
func NewOnboardingCompletedEvent(userID string, streakStart, at time.Time) OnboardingCompletedEvent {
	return OnboardingCompletedEvent{
		BaseEvent:   NewBaseEvent(EventOnboardingCompleted, userID, at),
		StreakStart: streakStart,
	}
}

// PreferencesChangedEvent is emitted when leaderboard visibility changes.
type PreferencesChangedEvent struct {
	BaseEvent
	ShowOnLeaderboard bool `json:"show_on_leaderboard"`
}

// Payload implements Event interface.
func (e PreferencesChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":             e.AggregateId,
		"show_on_leaderboard": e.ShowOnLeaderboard,
	}
}

// NewPreferencesChangedEvent creates a new PreferencesChangedEvent.
func NewPreferencesChangedEvent(userID string, show bool, at time.Time) PreferencesChangedEvent {
	return PreferencesChangedEvent{
		BaseEvent:         NewBaseEvent(EventPreferencesChanged, userID, at),
		ShowOnLeaderboard: show,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakResetEvent is emitted when a user resets their streak.
type StreakResetEvent struct {
	BaseEvent
	PreviousStreak int `json:"previous_streak"`
	LongestStreak  int `json:"longest_streak"`
	TotalResets    int `json:"total_resets"`
}

// Payload implements Event interface.
func (e StreakResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.AggregateId,
		"previous_streak": e.PreviousStreak,
		"longest_streak":  e.LongestStreak,
		"total_resets":    e.TotalResets,
	}
}

// NewStreakResetEvent creates a new StreakResetEvent.
func NewStreakResetEvent(userID string, previous, longest, resets int, at time.Time) StreakResetEvent {
	return StreakResetEvent{
		BaseEvent:      NewBaseEvent(EventStreakReset, userID, at),
		PreviousStreak: previous,
		LongestStreak:  longest,
		TotalResets:    resets,
	}
}

// StreakReconciledEvent is emitted when a read finds the stored streak
// behind the calendar and writes the derived value back.
type StreakReconciledEvent struct {
	BaseEvent
	CurrentStreak int `json:"current_streak"`
}

// Payload implements Event interface.
func (e StreakReconciledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.AggregateId,
		"current_streak": e.CurrentStreak,
	}
}

// NewStreakReconciledEvent creates a new StreakReconciledEvent.
func NewStreakReconciledEvent(userID string, current int, at time.Time) StreakReconciledEvent {
	return StreakReconciledEvent{
		BaseEvent:     NewBaseEvent(EventStreakReconciled, userID, at),
		CurrentStreak: current,
	}
}

// XPAwardedEvent is emitted for every appended XP event.
type XPAwardedEvent struct {
	BaseEvent
	ActivityType string `json:"activity_type"`
	Points       int    `json:"points"`
	NewTotal     int    `json:"new_total"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.AggregateId,
		"activity_type": e.ActivityType,
		"points":        e.Points,
		"new_total":     e.NewTotal,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(userID, activityType string, points, newTotal int, at time.Time) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent:    NewBaseEvent(EventXPAwarded, userID, at),
		ActivityType: activityType,
		Points:       points,
		NewTotal:     newTotal,
	}
}

// LevelUpEvent is emitted when an operation moves the level up.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Tier     string `json:"tier"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.AggregateId,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"tier":      e.Tier,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int, tier string, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		Tier:      tier,
	}
}

// AchievementUnlockedEvent is emitted once per (user, achievement).
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID   string `json:"achievement_id"`
	AchievementName string `json:"achievement_name"`
	XPReward        int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.AggregateId,
		"achievement_id":   e.AchievementID,
		"achievement_name": e.AchievementName,
		"xp_reward":        e.XPReward,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, name string, xpReward int, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementUnlocked, userID, at),
		AchievementID:   achievementID,
		AchievementName: name,
		XPReward:        xpReward,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Wellbeing & Catalog Events
// ═══════════════════════════════════════════════════════════════════════════

// DailyLogRecordedEvent is emitted on every daily log upsert.
type DailyLogRecordedEvent struct {
	BaseEvent
	Date    string `json:"date"`
	Created bool   `json:"created"`
}

// Payload implements Event interface.
func (e DailyLogRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.AggregateId,
		"date":    e.Date,
		"created": e.Created,
	}
}

// NewDailyLogRecordedEvent creates a new DailyLogRecordedEvent.
func NewDailyLogRecordedEvent(userID, date string, created bool, at time.Time) DailyLogRecordedEvent {
	return DailyLogRecordedEvent{
		BaseEvent: NewBaseEvent(EventDailyLogRecorded, userID, at),
		Date:      date,
		Created:   created,
	}
}

// CatalogChangedEvent is emitted when an achievement definition is upserted.
type CatalogChangedEvent struct {
	BaseEvent
}

// Payload implements Event interface.
func (e CatalogChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"achievement_id": e.AggregateId}
}

// NewCatalogChangedEvent creates a new CatalogChangedEvent.
func NewCatalogChangedEvent(achievementID string, at time.Time) CatalogChangedEvent {
	return CatalogChangedEvent{BaseEvent: NewBaseEvent(EventCatalogChanged, achievementID, at)}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher publishes events after the producing transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event)
}

// EventSubscriber registers handlers.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, ...Event) {}
