// Package achievement содержит каталог достижений, правила их получения
// и движок, который проверяет правила для пользователя.
package achievement

import (
	"regexp"
	"strings"
	"time"

	"github.com/recoverly/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Category определяет, каким правилом проверяется достижение.
type Category string

const (
	// CategoryStreak - серия не короче criteria.value дней.
	CategoryStreak Category = "STREAK"
	// CategoryHealth - "Mood Tracker": настроение в каждом из последних логов.
	CategoryHealth Category = "HEALTH"
	// CategorySocial - пока без правила.
	CategorySocial Category = "SOCIAL"
	// CategoryMilestone - пока без правила.
	CategoryMilestone Category = "MILESTONE"
	// CategorySpecial - "Phoenix Rising": не меньше criteria.value сбросов.
	CategorySpecial Category = "SPECIAL"
)

// Categories - все известные категории.
var Categories = []Category{CategoryStreak, CategoryHealth, CategorySocial, CategoryMilestone, CategorySpecial}

// IsValid проверяет, что категория известна.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory нормализует категорию.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", shared.Validationf("achievement", "ParseCategory", "unknown category %q", s)
	}
	return c, nil
}

// Criteria - условие получения.
type Criteria struct {
	// Type - описательная метка, например "streak_days".
	Type string
	// Value - порог. Смысл зависит от категории.
	Value int
}

// Achievement - запись каталога.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Category    Category
	Tier        string
	Criteria    Criteria

	// XPReward - сколько XP начисляется при получении. 0 - без XP.
	XPReward int

	// IsActive - неактивные достижения не проверяются.
	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

var idRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

// Validate проверяет запись каталога.
func (a *Achievement) Validate() error {
	if !idRegex.MatchString(a.ID) {
		return shared.WrapError("achievement", "Validate", shared.ErrValidation, "id must be a lowercase slug", shared.ErrInvalidAchievement)
	}
	if strings.TrimSpace(a.Name) == "" {
		return shared.WrapError("achievement", "Validate", shared.ErrValidation, "name is required", shared.ErrInvalidAchievement)
	}
	if !a.Category.IsValid() {
		return shared.WrapError("achievement", "Validate", shared.ErrValidation, "unknown category", shared.ErrInvalidAchievement)
	}
	if a.XPReward < 0 || a.Criteria.Value < 0 {
		return shared.WrapError("achievement", "Validate", shared.ErrValidation, "reward and criteria value cannot be negative", shared.ErrInvalidAchievement)
	}
	return nil
}

// Clone возвращает копию.
func (a *Achievement) Clone() *Achievement {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// USER ACHIEVEMENT
// ══════════════════════════════════════════════════════════════════════════════

// UserAchievement - факт получения. Один на пару (UserID, AchievementID),
// никогда не удаляется.
type UserAchievement struct {
	UserID        string
	AchievementID string
	UnlockedAt    time.Time
}

// Unlocked - полученное достижение вместе с записью каталога.
type Unlocked struct {
	Achievement *Achievement
	UnlockedAt  time.Time
}
