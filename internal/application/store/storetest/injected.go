// Package storetest provides failure injection around a store.Store for
// atomicity tests.
package storetest

import (
	"context"
	"sync"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/leaderboard"
	"github.com/recoverly/progress-hub/internal/domain/xp"
)

// InjectedStore wraps a store and fails selected steps. A failure after the
// body returns the error from inside the transaction, so the wrapped store
// rolls back exactly as it would for a real commit failure.
type InjectedStore struct {
	Inner store.Store

	mu sync.Mutex

	FailBegin  error
	FailCommit error
	FailUnlock error
	FailAppend error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ store.Store = (*InjectedStore)(nil)

// New wraps inner.
func New(inner store.Store) *InjectedStore {
	return &InjectedStore{Inner: inner}
}

func (s *InjectedStore) Repositories() store.Repositories { return s.Inner.Repositories() }

func (s *InjectedStore) Leaderboard() leaderboard.Repository { return s.Inner.Leaderboard() }

func (s *InjectedStore) Ping(ctx context.Context) error { return s.Inner.Ping(ctx) }

func (s *InjectedStore) InUserTx(ctx context.Context, userID string, fn store.TxFunc) error {
	if err := s.begin(); err != nil {
		return err
	}
	return s.finish(s.Inner.InUserTx(ctx, userID, s.wrap(fn)))
}

func (s *InjectedStore) InTx(ctx context.Context, fn store.TxFunc) error {
	if err := s.begin(); err != nil {
		return err
	}
	return s.finish(s.Inner.InTx(ctx, s.wrap(fn)))
}

func (s *InjectedStore) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BeginCalls++
	return s.FailBegin
}

func (s *InjectedStore) finish(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.RollbackCalls++
		return err
	}
	s.CommitCalls++
	return nil
}

func (s *InjectedStore) wrap(fn store.TxFunc) store.TxFunc {
	s.mu.Lock()
	failCommit, failUnlock, failAppend := s.FailCommit, s.FailUnlock, s.FailAppend
	s.mu.Unlock()

	return func(ctx context.Context, repos store.Repositories) error {
		if failUnlock != nil {
			repos.Achievements = failingAchievements{Repository: repos.Achievements, err: failUnlock}
		}
		if failAppend != nil {
			repos.XP = failingLedger{Repository: repos.XP, err: failAppend}
		}
		if err := fn(ctx, repos); err != nil {
			return err
		}
		return failCommit
	}
}

type failingAchievements struct {
	achievement.Repository
	err error
}

func (f failingAchievements) Unlock(context.Context, *achievement.UserAchievement) (bool, error) {
	return false, f.err
}

type failingLedger struct {
	xp.Repository
	err error
}

func (f failingLedger) Append(context.Context, *xp.Event) error {
	return f.err
}
