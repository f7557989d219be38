package query

import (
	"context"
	"sort"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/shared"
)

// ListUnlockedQuery - полученные достижения пользователя.
type ListUnlockedQuery struct {
	UserID string
}

// ListUnlockedHandler соединяет факты получения с каталогом.
type ListUnlockedHandler struct {
	store store.Store
}

// NewListUnlockedHandler создаёт обработчик.
func NewListUnlockedHandler(s store.Store) *ListUnlockedHandler {
	return &ListUnlockedHandler{store: s}
}

// Handle возвращает достижения от новых к старым. Выключенные записи
// каталога остаются в списке: полученное не отзывается.
func (h *ListUnlockedHandler) Handle(ctx context.Context, q ListUnlockedQuery) ([]achievement.Unlocked, error) {
	if !shared.UserID(q.UserID).IsValid() {
		return nil, shared.ErrInvalidUserID
	}

	repos := h.store.Repositories()
	if _, err := repos.Users.GetByID(ctx, q.UserID); err != nil {
		return nil, shared.Internal("query", "GetUser", err)
	}

	rows, err := repos.Achievements.ListUnlocked(ctx, q.UserID)
	if err != nil {
		return nil, shared.Internal("query", "ListUnlocked", err)
	}
	catalog, err := repos.Achievements.ListAll(ctx)
	if err != nil {
		return nil, shared.Internal("query", "ListCatalog", err)
	}

	byID := make(map[string]*achievement.Achievement, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}

	out := make([]achievement.Unlocked, 0, len(rows))
	for _, ua := range rows {
		a, ok := byID[ua.AchievementID]
		if !ok {
			continue
		}
		out = append(out, achievement.Unlocked{Achievement: a, UnlockedAt: ua.UnlockedAt})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UnlockedAt.After(out[j].UnlockedAt)
	})
	return out, nil
}

// ListCatalogQuery - каталог достижений.
type ListCatalogQuery struct {
	IncludeInactive bool
}

// ListCatalogHandler читает каталог.
type ListCatalogHandler struct {
	store store.Store
}

// NewListCatalogHandler создаёт обработчик.
func NewListCatalogHandler(s store.Store) *ListCatalogHandler {
	return &ListCatalogHandler{store: s}
}

// Handle возвращает каталог, отсортированный по ID.
func (h *ListCatalogHandler) Handle(ctx context.Context, q ListCatalogQuery) ([]*achievement.Achievement, error) {
	repos := h.store.Repositories()

	var (
		list []*achievement.Achievement
		err  error
	)
	if q.IncludeInactive {
		list, err = repos.Achievements.ListAll(ctx)
	} else {
		list, err = repos.Achievements.ListActive(ctx)
	}
	if err != nil {
		return nil, shared.Internal("query", "ListCatalog", err)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}
