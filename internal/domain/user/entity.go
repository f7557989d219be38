// Package user содержит доменную модель пользователя и его прогресса:
// серию (streak), XP-итоги и настройки видимости в рейтинге.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package user

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/xp"
)

// MaxDisplayNameLength - максимальная длина отображаемого имени в рунах.
const MaxDisplayNameLength = 100

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER
// ══════════════════════════════════════════════════════════════════════════════

// User - снимок прогресса пользователя.
// Создаётся при регистрации, поля серии инициализируются при онбординге,
// изменяется только через StreakTracker и начисление XP. Никогда не удаляется.
type User struct {
	// ID - идентификатор, выданный провайдером идентичности.
	ID string

	// DisplayName - имя как его ввёл пользователь. В рейтинге не показывается целиком.
	DisplayName string

	// StreakStart - момент начала текущей серии. nil до онбординга.
	StreakStart *time.Time

	// CurrentStreak - сохранённое значение серии в днях.
	// Пересчитывается при чтении из StreakStart.
	CurrentStreak int

	// LongestStreak - лучшая серия. Растёт только при сбросе.
	LongestStreak int

	// TotalResets - количество сбросов серии.
	TotalResets int

	// TotalXP - кэш суммы всех XP-событий.
	TotalXP int

	// CurrentLevel - floor(TotalXP / 500) + 1.
	CurrentLevel int

	// CurrentTier - полоса уровня.
	CurrentTier xp.Tier

	// ShowOnLeaderboard - согласие на показ в рейтинге.
	ShowOnLeaderboard bool

	// LastActivityAt - время последней записи от пользователя.
	LastActivityAt *time.Time

	// OnboardedAt - когда пользователь начал отслеживание.
	OnboardedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser создаёт пользователя с нулевым прогрессом.
func NewUser(id, displayName string, showOnLeaderboard bool, now time.Time) (*User, error) {
	u := &User{
		ID:                strings.TrimSpace(id),
		DisplayName:       strings.TrimSpace(displayName),
		CurrentLevel:      1,
		CurrentTier:       xp.TierFor(1),
		ShowOnLeaderboard: showOnLeaderboard,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate проверяет инварианты сущности.
func (u *User) Validate() error {
	if !shared.UserID(u.ID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if u.DisplayName == "" || utf8.RuneCountInString(u.DisplayName) > MaxDisplayNameLength {
		return shared.ErrInvalidDisplayName
	}
	if u.CurrentStreak < 0 || u.LongestStreak < 0 || u.TotalResets < 0 || u.TotalXP < 0 {
		return shared.Validationf("user", "Validate", "progress counters cannot be negative")
	}
	return nil
}

// Clone возвращает глубокую копию.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.StreakStart = cloneTime(u.StreakStart)
	c.LastActivityAt = cloneTime(u.LastActivityAt)
	c.OnboardedAt = cloneTime(u.OnboardedAt)
	return &c
}

// IsOnboarded возвращает true, если пользователь начал отслеживание.
func (u *User) IsOnboarded() bool {
	return u.OnboardedAt != nil
}

// ─────────────────────────────────────────────────────────────────────────────
// XP
// ─────────────────────────────────────────────────────────────────────────────

// ApplyXP учитывает новое XP-событие в кэшированных итогах.
// Возвращает уровни до и после.
func (u *User) ApplyXP(points int, now time.Time) (oldLevel, newLevel int) {
	oldLevel = u.CurrentLevel
	u.TotalXP += points
	u.CurrentLevel = xp.LevelFor(u.TotalXP)
	u.CurrentTier = xp.TierFor(u.CurrentLevel)
	u.UpdatedAt = now
	return oldLevel, u.CurrentLevel
}

// SyncXP выставляет итог из суммы леджера. Уровень и полоса пересчитываются.
func (u *User) SyncXP(total int) {
	u.TotalXP = total
	u.CurrentLevel = xp.LevelFor(total)
	u.CurrentTier = xp.TierFor(u.CurrentLevel)
}

// ─────────────────────────────────────────────────────────────────────────────
// Activity & Preferences
// ─────────────────────────────────────────────────────────────────────────────

// Touch отмечает активность пользователя.
func (u *User) Touch(now time.Time) {
	t := now
	u.LastActivityAt = &t
	u.UpdatedAt = now
}

// SetLeaderboardVisibility меняет согласие на показ в рейтинге.
// Возвращает true, если значение изменилось.
func (u *User) SetLeaderboardVisibility(show bool, now time.Time) bool {
	if u.ShowOnLeaderboard == show {
		return false
	}
	u.ShowOnLeaderboard = show
	u.UpdatedAt = now
	return true
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
