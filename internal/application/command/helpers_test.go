package command_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recoverly/progress-hub/config/catalog"
	"github.com/recoverly/progress-hub/internal/application/command"
	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

var day0 = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

// testClock is a movable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(_ context.Context, events ...shared.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) OfType(t shared.EventType) []shared.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.Event
	for _, e := range r.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	mem   *memory.Store
	clock *testClock
	pub   *recorder
	deps  command.Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mem:   memory.New(),
		clock: &testClock{now: day0},
		pub:   &recorder{},
	}
	f.deps = f.depsFor(f.mem)

	entries, err := catalog.Default(day0)
	require.NoError(t, err)
	_, err = command.NewSeedCatalogHandler(f.deps).Handle(context.Background(), entries)
	require.NoError(t, err)
	f.pub.Reset()
	return f
}

func (f *fixture) depsFor(s store.Store) command.Deps {
	return command.Deps{
		Store:     s,
		Publisher: f.pub,
		Calendar:  timeutil.UTC(),
		Clock:     f.clock.Now,
	}
}

func (f *fixture) register(t *testing.T, id string) {
	t.Helper()
	_, err := command.NewRegisterUserHandler(f.deps).Handle(context.Background(), command.RegisterUserCommand{
		UserID:            id,
		DisplayName:       "Jane Doe",
		ShowOnLeaderboard: true,
	})
	require.NoError(t, err)
}

func (f *fixture) onboard(t *testing.T, id, startDate string) *command.CompleteOnboardingResult {
	t.Helper()
	res, err := command.NewCompleteOnboardingHandler(f.deps).Handle(context.Background(), command.CompleteOnboardingCommand{
		UserID:    id,
		StartDate: startDate,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) user(t *testing.T, id string) *user.User {
	t.Helper()
	u, err := f.mem.Repositories().Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) totalXP(t *testing.T, id string) int {
	t.Helper()
	totals, err := f.mem.Repositories().XP.Totals(context.Background(), id)
	require.NoError(t, err)
	return totals.Total
}

func (f *fixture) unlockedIDs(t *testing.T, id string) []string {
	t.Helper()
	list, err := f.mem.Repositories().Achievements.ListUnlocked(context.Background(), id)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, ua := range list {
		ids = append(ids, ua.AchievementID)
	}
	return ids
}

func intp(v int) *int { return &v }

func strp(s string) *string { return &s }
