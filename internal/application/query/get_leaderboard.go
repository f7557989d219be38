package query

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/recoverly/progress-hub/config"
	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/logger"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Топ-N пользователей по текущей серии за период. Имена анонимизируются,
// ID наружу не отдаются. Кэш необязателен: промах или ошибка кэша
// ведут в хранилище, одновременные промахи схлопываются в один запрос.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса рейтинга.
type GetLeaderboardQuery struct {
	// Period - weekly, monthly или alltime. Пусто - alltime.
	Period string

	// Limit - количество записей. 0 - значение по умолчанию.
	Limit int
}

// LeaderboardOptions - настройки обработчика.
type LeaderboardOptions struct {
	DefaultLimit int
	MaxLimit     int

	// CacheTTL - 0 выключает кэш.
	CacheTTL time.Duration

	// ComputeTimeout ограничивает общий запрос к хранилищу. Он не зависит
	// от контекста первого вызывающего. 0 - 10 секунд.
	ComputeTimeout time.Duration

	Flags  *config.FeatureFlags
	Logger *logger.Logger
}

// LeaderboardPolicy переводит политику сервиса в политику ранкера.
func LeaderboardPolicy(p config.Policy) leaderboard.Policy {
	return leaderboard.Policy{
		WindowBasis:        leaderboard.WindowBasis(p.LeaderboardWindowBasis),
		TieBreak:           leaderboard.TieBreak(p.LeaderboardTieBreak),
		DeriveStreakOnRead: p.LeaderboardDeriveStreak,
	}
}

// GetLeaderboardHandler обрабатывает запросы рейтинга.
type GetLeaderboardHandler struct {
	store  store.Store
	ranker *leaderboard.Ranker
	cache  leaderboard.Cache
	clock  timeutil.Clock
	opts   LeaderboardOptions

	group singleflight.Group
}

// NewGetLeaderboardHandler создаёт обработчик. cache может быть nil.
func NewGetLeaderboardHandler(
	s store.Store,
	ranker *leaderboard.Ranker,
	cache leaderboard.Cache,
	clock timeutil.Clock,
	opts LeaderboardOptions,
) *GetLeaderboardHandler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = 100
	}
	if opts.ComputeTimeout <= 0 {
		opts.ComputeTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &GetLeaderboardHandler{
		store:  s,
		ranker: ranker,
		cache:  cache,
		clock:  clock,
		opts:   opts,
	}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*leaderboard.Board, error) {
	period, err := leaderboard.ParsePeriod(q.Period)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	switch {
	case limit < 0 || limit > h.opts.MaxLimit:
		return nil, shared.ErrInvalidLimit
	case limit == 0:
		limit = h.opts.DefaultLimit
	}

	log := logger.FromContextOr(ctx, h.opts.Logger).With(logger.Component("leaderboard"), logger.Period(period.String()))

	useCache := h.cacheEnabled()
	if useCache {
		board, found, err := h.cache.Get(ctx, period, limit)
		if err != nil {
			log.Warn("leaderboard cache read failed", logger.Err(err))
		}
		if found {
			return board, nil
		}
	}

	// Общий запрос живёт в своём контексте: отмена одного клиента не должна
	// ронять ответ остальным, ждущим тот же ключ.
	key := period.String() + ":" + strconv.Itoa(limit)
	ch := h.group.DoChan(key, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.ComputeTimeout)
		defer cancel()

		board, err := h.compute(sctx, period, limit)
		if err != nil {
			return nil, err
		}
		if useCache {
			if err := h.cache.Set(sctx, *board, limit, h.opts.CacheTTL); err != nil {
				log.Warn("leaderboard cache write failed", logger.Err(err))
			}
		}
		return board, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		board := *res.Val.(*leaderboard.Board)
		return &board, nil
	}
}

func (h *GetLeaderboardHandler) compute(ctx context.Context, period leaderboard.Period, limit int) (*leaderboard.Board, error) {
	now := h.clock.Now().UTC()

	candidates, err := h.store.Leaderboard().ListCandidates(ctx, h.ranker.Query(period, now))
	if err != nil {
		return nil, shared.Internal("query", "ListCandidates", err)
	}

	board := h.ranker.Rank(candidates, period, limit, now)
	return &board, nil
}

func (h *GetLeaderboardHandler) cacheEnabled() bool {
	return h.cache != nil &&
		h.opts.CacheTTL > 0 &&
		h.opts.Flags.IsEnabled(config.FeatureLeaderboardCache, nil)
}
