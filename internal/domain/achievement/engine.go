package achievement

import (
	"context"
	"sort"

	"github.com/recoverly/progress-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// Состояния пары (пользователь, достижение): LOCKED -> UNLOCKED.
// UNLOCKED конечное, обратного перехода нет.
// ══════════════════════════════════════════════════════════════════════════════

// Engine проверяет каталог для пользователя.
type Engine struct {
	rules RuleSet
}

// NewEngine создаёт движок. nil - правила по умолчанию.
func NewEngine(rules RuleSet) *Engine {
	if rules == nil {
		rules = DefaultRuleSet(DefaultMoodWindow)
	}
	return &Engine{rules: rules}
}

// Evaluate возвращает активные достижения, которые пользователь ещё не
// получил и условие которых выполнено. Порядок - по ID, чтобы результат
// был детерминированным.
func (e *Engine) Evaluate(u *user.User, history History, catalog []*Achievement, unlocked map[string]bool) []*Achievement {
	var out []*Achievement
	for _, a := range catalog {
		if a == nil || !a.IsActive || unlocked[a.ID] {
			continue
		}
		if e.rules.For(a.Category).Qualifies(u, history, a.Criteria) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UnlockedSet строит множество ID из полученных достижений.
func UnlockedSet(list []*UserAchievement) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, ua := range list {
		set[ua.AchievementID] = true
	}
	return set
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository - каталог и факты получения.
type Repository interface {
	// ListActive возвращает активные достижения каталога.
	ListActive(ctx context.Context) ([]*Achievement, error)

	// ListAll возвращает весь каталог.
	ListAll(ctx context.Context) ([]*Achievement, error)

	// GetByID возвращает ErrAchievementNotFound, если записи нет.
	GetByID(ctx context.Context, id string) (*Achievement, error)

	// Upsert создаёт или обновляет запись каталога.
	Upsert(ctx context.Context, a *Achievement) (created bool, err error)

	// Unlock вставляет факт получения при условии уникальности пары.
	// Дубликат - не ошибка: возвращается created=false.
	Unlock(ctx context.Context, ua *UserAchievement) (created bool, err error)

	// ListUnlocked возвращает полученные достижения пользователя,
	// от новых к старым.
	ListUnlocked(ctx context.Context, userID string) ([]*UserAchievement, error)
}
