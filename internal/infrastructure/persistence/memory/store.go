// Package memory implements store.Store in process memory. It is used by
// tests and when no DATABASE_URL is configured. Transactions stage their
// writes and apply them under one lock on commit, so readers never observe
// a half-applied transaction.
package memory

import (
	"context"
	"sync"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/wellbeing"
	"github.com/recoverly/progress-hub/internal/domain/xp"
)

type logKey struct {
	userID string
	date   string
}

type unlockKey struct {
	userID        string
	achievementID string
}

// Store is an in-memory record store.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*user.User
	xp       map[string][]*xp.Event
	logs     map[logKey]*wellbeing.DailyLog
	catalog  map[string]*achievement.Achievement
	unlocked map[unlockKey]*achievement.UserAchievement

	locksMu   sync.Mutex
	userLocks map[string]chan struct{}
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:     make(map[string]*user.User),
		xp:        make(map[string][]*xp.Event),
		logs:      make(map[logKey]*wellbeing.DailyLog),
		catalog:   make(map[string]*achievement.Achievement),
		unlocked:  make(map[unlockKey]*achievement.UserAchievement),
		userLocks: make(map[string]chan struct{}),
	}
}

// Repositories returns repositories whose writes commit immediately.
func (s *Store) Repositories() store.Repositories {
	return newTx(s, true).repositories()
}

// Leaderboard returns the candidate reader.
func (s *Store) Leaderboard() leaderboard.Repository {
	return &leaderboardRepo{s: s}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// InUserTx serialises transactions of one user.
func (s *Store) InUserTx(ctx context.Context, userID string, fn store.TxFunc) error {
	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.RLock()
	_, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return shared.ErrUserNotFound
	}

	return s.run(ctx, fn)
}

// InTx runs fn without a user lock.
func (s *Store) InTx(ctx context.Context, fn store.TxFunc) error {
	return s.run(ctx, fn)
}

func (s *Store) run(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := newTx(s, false)
	if err := fn(ctx, t.repositories()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) lockUser(ctx context.Context, userID string) (func(), error) {
	s.locksMu.Lock()
	ch, ok := s.userLocks[userID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.userLocks[userID] = ch
	}
	s.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION
// ══════════════════════════════════════════════════════════════════════════════

type tx struct {
	s    *Store
	auto bool

	users    map[string]*user.User
	newUsers map[string]bool
	xp       []*xp.Event
	logs     map[logKey]*wellbeing.DailyLog
	catalog  map[string]*achievement.Achievement
	unlocked map[unlockKey]*achievement.UserAchievement
}

func newTx(s *Store, auto bool) *tx {
	t := &tx{s: s, auto: auto}
	t.reset()
	return t
}

func (t *tx) reset() {
	t.users = make(map[string]*user.User)
	t.newUsers = make(map[string]bool)
	t.xp = nil
	t.logs = make(map[logKey]*wellbeing.DailyLog)
	t.catalog = make(map[string]*achievement.Achievement)
	t.unlocked = make(map[unlockKey]*achievement.UserAchievement)
}

func (t *tx) repositories() store.Repositories {
	return store.Repositories{
		Users:        &userRepo{t: t},
		XP:           &xpRepo{t: t},
		Logs:         &logRepo{t: t},
		Achievements: &achievementRepo{t: t},
	}
}

// written is called after every staged write.
func (t *tx) written() error {
	if !t.auto {
		return nil
	}
	defer t.reset()
	return t.commit()
}

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range t.newUsers {
		if _, exists := s.users[id]; exists {
			return shared.ErrUserAlreadyExists
		}
	}
	for k := range t.unlocked {
		if _, exists := s.unlocked[k]; exists {
			delete(t.unlocked, k)
		}
	}

	for id, u := range t.users {
		s.users[id] = u
	}
	for _, e := range t.xp {
		s.xp[e.UserID] = append(s.xp[e.UserID], e)
	}
	for k, l := range t.logs {
		s.logs[k] = l
	}
	for id, a := range t.catalog {
		s.catalog[id] = a
	}
	for k, ua := range t.unlocked {
		s.unlocked[k] = ua
	}
	return nil
}
