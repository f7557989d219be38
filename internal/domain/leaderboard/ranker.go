package leaderboard

import (
	"sort"
	"time"

	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKER
// Отбор -> стабильная сортировка по серии -> обрезка -> анонимизация -> ранг.
// ══════════════════════════════════════════════════════════════════════════════

// Ranker строит рейтинг по политике.
type Ranker struct {
	policy  Policy
	tracker user.StreakTracker
}

// NewRanker создаёт ранкер.
func NewRanker(policy Policy, cal timeutil.Calendar) *Ranker {
	if policy.WindowBasis == "" {
		policy.WindowBasis = BasisStreakStart
	}
	if policy.TieBreak == "" {
		policy.TieBreak = TieBreakNone
	}
	return &Ranker{policy: policy, tracker: user.NewStreakTracker(cal)}
}

// Policy возвращает политику ранкера.
func (r *Ranker) Policy() Policy {
	return r.policy
}

// Query возвращает запрос к хранилищу для периода.
func (r *Ranker) Query(period Period, now time.Time) CandidateQuery {
	return CandidateQuery{Since: period.Since(now), Basis: r.policy.WindowBasis}
}

// Rank ранжирует кандидатов. limit <= 0 - без обрезки.
// Кандидаты с равной серией сохраняют порядок выборки, если тай-брейк не задан.
func (r *Ranker) Rank(candidates []Candidate, period Period, limit int, now time.Time) Board {
	since := period.Since(now)

	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.ShowOnLeaderboard || !r.inWindow(c, since) {
			continue
		}
		if r.policy.DeriveStreakOnRead {
			c.CurrentStreak = r.tracker.ComputeCurrentStreak(c.StreakStart, now)
		}
		eligible = append(eligible, c)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.CurrentStreak != b.CurrentStreak {
			return a.CurrentStreak > b.CurrentStreak
		}
		switch r.policy.TieBreak {
		case TieBreakLongestStreak:
			return a.LongestStreak > b.LongestStreak
		case TieBreakTotalXP:
			return a.TotalXP > b.TotalXP
		}
		return false
	})

	total := len(eligible)
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}

	entries := make([]Entry, len(eligible))
	for i, c := range eligible {
		longest := c.LongestStreak
		if c.CurrentStreak > longest {
			longest = c.CurrentStreak
		}
		entries[i] = Entry{
			Rank:          i + 1,
			DisplayName:   Anonymize(c.DisplayName),
			CurrentStreak: c.CurrentStreak,
			LongestStreak: longest,
			Level:         c.Level,
		}
	}

	return Board{Period: period, Entries: entries, GeneratedAt: now, Eligible: total}
}

// inWindow проверяет окно периода. Без отметки времени кандидат в окно
// не попадает.
func (r *Ranker) inWindow(c Candidate, since *time.Time) bool {
	if since == nil {
		return true
	}
	ts := c.StreakStart
	if r.policy.WindowBasis == BasisLastActivity {
		ts = c.LastActivityAt
	}
	return ts != nil && !ts.Before(*since)
}
