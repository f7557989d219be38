package memory

import (
	"context"
	"sort"
	"time"

	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/wellbeing"
	"github.com/recoverly/progress-hub/internal/domain/xp"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

type userRepo struct{ t *tx }

func (r *userRepo) Create(_ context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if _, err := r.get(u.ID); err == nil {
		return shared.ErrUserAlreadyExists
	}
	r.t.users[u.ID] = u.Clone()
	r.t.newUsers[u.ID] = true
	return r.t.written()
}

func (r *userRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	return r.get(id)
}

func (r *userRepo) Update(_ context.Context, u *user.User) error {
	if _, err := r.get(u.ID); err != nil {
		return err
	}
	r.t.users[u.ID] = u.Clone()
	return r.t.written()
}

func (r *userRepo) get(id string) (*user.User, error) {
	if u, ok := r.t.users[id]; ok {
		return u.Clone(), nil
	}
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	if u, ok := r.t.s.users[id]; ok {
		return u.Clone(), nil
	}
	return nil, shared.ErrUserNotFound
}

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER
// ══════════════════════════════════════════════════════════════════════════════

type xpRepo struct{ t *tx }

func (r *xpRepo) Append(_ context.Context, e *xp.Event) error {
	c := *e
	r.t.xp = append(r.t.xp, &c)
	return r.t.written()
}

func (r *xpRepo) Totals(_ context.Context, userID string) (xp.Totals, error) {
	return xp.Sum(r.events(userID)), nil
}

func (r *xpRepo) Recent(_ context.Context, userID string, limit int) ([]*xp.Event, error) {
	events := r.events(userID)
	// Later appends first, then newest timestamp first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r *xpRepo) events(userID string) []*xp.Event {
	r.t.s.mu.RLock()
	committed := r.t.s.xp[userID]
	out := make([]*xp.Event, 0, len(committed)+len(r.t.xp))
	for _, e := range committed {
		c := *e
		out = append(out, &c)
	}
	r.t.s.mu.RUnlock()

	for _, e := range r.t.xp {
		if e.UserID == userID {
			c := *e
			out = append(out, &c)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY LOGS
// ══════════════════════════════════════════════════════════════════════════════

type logRepo struct{ t *tx }

func (r *logRepo) Upsert(_ context.Context, l *wellbeing.DailyLog) (bool, error) {
	key := logKey{userID: l.UserID, date: l.DateString()}
	_, staged := r.t.logs[key]
	r.t.s.mu.RLock()
	_, committed := r.t.s.logs[key]
	r.t.s.mu.RUnlock()

	r.t.logs[key] = l.Clone()
	return !staged && !committed, r.t.written()
}

func (r *logRepo) GetByDate(_ context.Context, userID string, date time.Time) (*wellbeing.DailyLog, error) {
	key := logKey{userID: userID, date: date.UTC().Format(timeutil.DateLayout)}
	if l, ok := r.t.logs[key]; ok {
		return l.Clone(), nil
	}
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	if l, ok := r.t.s.logs[key]; ok {
		return l.Clone(), nil
	}
	return nil, shared.ErrDailyLogNotFound
}

func (r *logRepo) ListRecent(_ context.Context, userID string, limit int) ([]*wellbeing.DailyLog, error) {
	logs := r.all(userID)
	sort.Slice(logs, func(i, j int) bool { return logs[i].Date.After(logs[j].Date) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (r *logRepo) ListRange(_ context.Context, userID string, from, to time.Time) ([]*wellbeing.DailyLog, error) {
	var out []*wellbeing.DailyLog
	for _, l := range r.all(userID) {
		if !l.Date.Before(from) && l.Date.Before(to) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *logRepo) all(userID string) []*wellbeing.DailyLog {
	merged := make(map[logKey]*wellbeing.DailyLog)
	r.t.s.mu.RLock()
	for k, l := range r.t.s.logs {
		if k.userID == userID {
			merged[k] = l
		}
	}
	r.t.s.mu.RUnlock()
	for k, l := range r.t.logs {
		if k.userID == userID {
			merged[k] = l
		}
	}

	out := make([]*wellbeing.DailyLog, 0, len(merged))
	for _, l := range merged {
		out = append(out, l.Clone())
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

type achievementRepo struct{ t *tx }

func (r *achievementRepo) ListActive(ctx context.Context) ([]*achievement.Achievement, error) {
	all, _ := r.ListAll(ctx)
	out := all[:0]
	for _, a := range all {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *achievementRepo) ListAll(context.Context) ([]*achievement.Achievement, error) {
	merged := make(map[string]*achievement.Achievement)
	r.t.s.mu.RLock()
	for id, a := range r.t.s.catalog {
		merged[id] = a
	}
	r.t.s.mu.RUnlock()
	for id, a := range r.t.catalog {
		merged[id] = a
	}

	out := make([]*achievement.Achievement, 0, len(merged))
	for _, a := range merged {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *achievementRepo) GetByID(_ context.Context, id string) (*achievement.Achievement, error) {
	if a, ok := r.t.catalog[id]; ok {
		return a.Clone(), nil
	}
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	if a, ok := r.t.s.catalog[id]; ok {
		return a.Clone(), nil
	}
	return nil, shared.ErrAchievementNotFound
}

func (r *achievementRepo) Upsert(ctx context.Context, a *achievement.Achievement) (bool, error) {
	existing, err := r.GetByID(ctx, a.ID)
	created := err != nil
	c := a.Clone()
	if existing != nil {
		c.CreatedAt = existing.CreatedAt
	}
	r.t.catalog[a.ID] = c
	return created, r.t.written()
}

func (r *achievementRepo) Unlock(_ context.Context, ua *achievement.UserAchievement) (bool, error) {
	key := unlockKey{userID: ua.UserID, achievementID: ua.AchievementID}
	if _, ok := r.t.unlocked[key]; ok {
		return false, nil
	}
	r.t.s.mu.RLock()
	_, ok := r.t.s.unlocked[key]
	r.t.s.mu.RUnlock()
	if ok {
		return false, nil
	}

	c := *ua
	r.t.unlocked[key] = &c
	return true, r.t.written()
}

func (r *achievementRepo) ListUnlocked(_ context.Context, userID string) ([]*achievement.UserAchievement, error) {
	var out []*achievement.UserAchievement
	r.t.s.mu.RLock()
	for k, ua := range r.t.s.unlocked {
		if k.userID == userID {
			c := *ua
			out = append(out, &c)
		}
	}
	r.t.s.mu.RUnlock()
	for k, ua := range r.t.unlocked {
		if k.userID == userID {
			c := *ua
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].UnlockedAt.After(out[j].UnlockedAt)
		}
		return out[i].AchievementID < out[j].AchievementID
	})
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

type leaderboardRepo struct{ s *Store }

func (r *leaderboardRepo) ListCandidates(_ context.Context, q leaderboard.CandidateQuery) ([]leaderboard.Candidate, error) {
	r.s.mu.RLock()
	users := make([]*user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		if u.ShowOnLeaderboard {
			users = append(users, u.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})

	out := make([]leaderboard.Candidate, 0, len(users))
	for _, u := range users {
		if q.Since != nil {
			ts := u.StreakStart
			if q.Basis == leaderboard.BasisLastActivity {
				ts = u.LastActivityAt
			}
			if ts == nil || ts.Before(*q.Since) {
				continue
			}
		}
		out = append(out, leaderboard.Candidate{
			UserID:            u.ID,
			DisplayName:       u.DisplayName,
			ShowOnLeaderboard: u.ShowOnLeaderboard,
			CurrentStreak:     u.CurrentStreak,
			LongestStreak:     u.LongestStreak,
			TotalXP:           u.TotalXP,
			Level:             u.CurrentLevel,
			StreakStart:       u.StreakStart,
			LastActivityAt:    u.LastActivityAt,
		})
	}
	return out, nil
}
