// Package xp holds the XP ledger: append-only point events and the level
// and tier bands derived from their sum.
package xp

import (
	"context"
	"sort"
	"time"

	"github.com/recoverly/progress-hub/internal/domain/shared"
)

// LevelWidth is the number of XP points per level.
const LevelWidth = 500

// TierWidthLevels is the number of levels per tier.
const TierWidthLevels = 5

// Tier is a coarse progression band derived from the level.
type Tier string

const (
	TierSeedling Tier = "seedling"
	TierSprout   Tier = "sprout"
	TierSapling  Tier = "sapling"
	TierGrove    Tier = "grove"
	TierSummit   Tier = "summit"
)

var tiers = []Tier{TierSeedling, TierSprout, TierSapling, TierGrove, TierSummit}

// LevelFor returns floor(totalXP / LevelWidth) + 1.
func LevelFor(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP/LevelWidth + 1
}

// ForNextLevel returns how many points are missing to the next level.
func ForNextLevel(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return LevelWidth - totalXP%LevelWidth
}

// TierFor maps a level to its tier. Everything past the last band is summit.
func TierFor(level int) Tier {
	if level < 1 {
		level = 1
	}
	idx := (level - 1) / TierWidthLevels
	if idx >= len(tiers) {
		idx = len(tiers) - 1
	}
	return tiers[idx]
}

// Event is one immutable ledger entry.
type Event struct {
	ID           string
	UserID       string
	ActivityType shared.ActivityType
	Points       int
	CreatedAt    time.Time
}

// NewEvent validates and builds a ledger entry.
func NewEvent(id, userID string, activityType shared.ActivityType, points int, at time.Time) (*Event, error) {
	if !shared.UserID(userID).IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if !activityType.IsValid() {
		return nil, shared.ErrInvalidActivityType
	}
	if points <= 0 {
		return nil, shared.ErrInvalidPoints
	}
	return &Event{
		ID:           id,
		UserID:       userID,
		ActivityType: activityType,
		Points:       points,
		CreatedAt:    at,
	}, nil
}

// Totals is the summed ledger of one user.
type Totals struct {
	Total     int
	Breakdown map[shared.ActivityType]int
}

// Add folds one event into the totals.
func (t *Totals) Add(e *Event) {
	if t.Breakdown == nil {
		t.Breakdown = make(map[shared.ActivityType]int)
	}
	t.Total += e.Points
	t.Breakdown[e.ActivityType] += e.Points
}

// Sum builds totals from a full event list.
func Sum(events []*Event) Totals {
	t := Totals{Breakdown: make(map[shared.ActivityType]int)}
	for _, e := range events {
		t.Add(e)
	}
	return t
}

// Summary is what callers see of a user's ledger.
type Summary struct {
	TotalXP        int
	Level          int
	XPForNextLevel int
	Tier           Tier
	Breakdown      map[shared.ActivityType]int
	RecentEvents   []*Event
}

// Summarize derives level fields from totals. Recent events are re-sorted
// newest first; equal timestamps keep their given order.
func Summarize(t Totals, recent []*Event) Summary {
	level := LevelFor(t.Total)
	sorted := make([]*Event, len(recent))
	copy(sorted, recent)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	breakdown := t.Breakdown
	if breakdown == nil {
		breakdown = map[shared.ActivityType]int{}
	}
	return Summary{
		TotalXP:        t.Total,
		Level:          level,
		XPForNextLevel: ForNextLevel(t.Total),
		Tier:           TierFor(level),
		Breakdown:      breakdown,
		RecentEvents:   sorted,
	}
}

// Repository stores ledger entries. Entries are never updated or deleted.
type Repository interface {
	// Append stores one event.
	Append(ctx context.Context, e *Event) error

	// Totals sums all events of a user, grouped by activity type.
	Totals(ctx context.Context, userID string) (Totals, error)

	// Recent returns the newest events of a user, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]*Event, error)
}
