package achievement

import (
	"sort"

	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/wellbeing"
)

// DefaultMoodWindow - окно "Mood Tracker", когда оно не задано.
const DefaultMoodWindow = 7

// MaxHistory - сколько последних логов видит движок.
const MaxHistory = 365

// History - последние дневные логи пользователя, от новых к старым.
type History []*wellbeing.DailyLog

// NewHistory сортирует логи по дате (новые первыми) и обрезает до limit.
func NewHistory(logs []*wellbeing.DailyLog, limit int) History {
	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}
	h := make(History, len(logs))
	copy(h, logs)
	sort.SliceStable(h, func(i, j int) bool {
		return h[i].Date.After(h[j].Date)
	})
	if len(h) > limit {
		h = h[:limit]
	}
	return h
}

// ══════════════════════════════════════════════════════════════════════════════
// RULES
// Каждая категория проверяется своим типом. Новая категория - новый тип
// и запись в RuleSet.
// ══════════════════════════════════════════════════════════════════════════════

// Rule решает, выполнено ли условие.
type Rule interface {
	Qualifies(u *user.User, history History, c Criteria) bool
}

// StreakRule: CurrentStreak >= c.Value.
type StreakRule struct{}

// Qualifies implements Rule.
func (StreakRule) Qualifies(u *user.User, _ History, c Criteria) bool {
	return u.CurrentStreak >= c.Value
}

// MoodTrackerRule: Window последних логов все с настроением, и логов не
// меньше MinCount. Короткая история никогда не засчитывается.
type MoodTrackerRule struct {
	// Window - сколько последних логов проверяется.
	// 0 - берётся c.Value, а если и он 0 - Default.
	Window int

	// MinCount - сколько логов должно существовать. 0 - равно окну.
	MinCount int

	// Default - окно по умолчанию. 0 - DefaultMoodWindow.
	Default int
}

// Qualifies implements Rule.
func (r MoodTrackerRule) Qualifies(_ *user.User, history History, c Criteria) bool {
	window := r.window(c)
	minCount := r.MinCount
	if minCount <= 0 {
		minCount = window
	}

	if len(history) < minCount || len(history) == 0 {
		return false
	}

	n := window
	if len(history) < n {
		n = len(history)
	}
	for _, l := range history[:n] {
		if !l.HasMood() {
			return false
		}
	}
	return true
}

func (r MoodTrackerRule) window(c Criteria) int {
	switch {
	case r.Window > 0:
		return r.Window
	case c.Value > 0:
		return c.Value
	case r.Default > 0:
		return r.Default
	default:
		return DefaultMoodWindow
	}
}

// PhoenixRule: TotalResets >= c.Value.
type PhoenixRule struct{}

// Qualifies implements Rule.
func (PhoenixRule) Qualifies(u *user.User, _ History, c Criteria) bool {
	return u.TotalResets >= c.Value
}

// NeverRule никогда не выполняется. Используется для категорий без правила.
type NeverRule struct{}

// Qualifies implements Rule.
func (NeverRule) Qualifies(*user.User, History, Criteria) bool {
	return false
}

// RuleSet сопоставляет категории правилам.
type RuleSet map[Category]Rule

// DefaultRuleSet возвращает правила для всех категорий.
func DefaultRuleSet(moodWindow int) RuleSet {
	return RuleSet{
		CategoryStreak:    StreakRule{},
		CategoryHealth:    MoodTrackerRule{Default: moodWindow},
		CategorySocial:    NeverRule{},
		CategoryMilestone: NeverRule{},
		CategorySpecial:   PhoenixRule{},
	}
}

// For возвращает правило категории. Неизвестная категория - NeverRule.
func (s RuleSet) For(c Category) Rule {
	if r, ok := s[c]; ok && r != nil {
		return r
	}
	return NeverRule{}
}
