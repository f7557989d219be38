// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID is the stable identifier issued by the identity provider.
type UserID string

// IsValid checks that the ID is non-empty, bounded and has no whitespace.
func (u UserID) IsValid() bool {
	s := string(u)
	return len(s) > 0 && len(s) <= 64 && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	u := UserID(strings.TrimSpace(id))
	if !u.IsValid() {
		return "", ErrInvalidUserID
	}
	return u, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// ActivityType names what earned XP, e.g. "daily_checkin" or "achievement".
type ActivityType string

// Built-in activity types.
const (
	ActivityDailyCheckin ActivityType = "daily_checkin"
	ActivityOnboarding   ActivityType = "onboarding"
	ActivityAchievement  ActivityType = "achievement"
)

var activityTypeRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{1,49}$`)

// IsValid checks the snake_case format.
func (a ActivityType) IsValid() bool {
	return activityTypeRegex.MatchString(string(a))
}

// String returns the string representation.
func (a ActivityType) String() string {
	return string(a)
}

// NewActivityType normalizes and validates an activity type.
func NewActivityType(s string) (ActivityType, error) {
	a := ActivityType(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", ErrInvalidActivityType
	}
	return a, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rating Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Rating bounds for daily wellbeing ratings.
const (
	MinRating = 1
	MaxRating = 10
)

// Rating is a 1..10 self-reported score.
type Rating int

// IsValid checks the range.
func (r Rating) IsValid() bool {
	return r >= MinRating && r <= MaxRating
}

// Int returns the underlying value.
func (r Rating) Int() int {
	return int(r)
}

// NewRating validates a rating.
func NewRating(v int) (Rating, error) {
	r := Rating(v)
	if !r.IsValid() {
		return 0, ErrInvalidRating
	}
	return r, nil
}
