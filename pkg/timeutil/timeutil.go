// Package timeutil provides calendar-day arithmetic in a configured time zone.
// Streaks, daily logs and the heatmap all count whole calendar days, so every
// "what day is it" question in the service goes through a Calendar.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// DateLayout is the wire format of a calendar day.
const DateLayout = "2006-01-02"

// Clock returns the current instant. Commands and queries receive one so that
// tests can pin "now".
type Clock func() time.Time

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return time.Now
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Now calls the clock, defaulting to time.Now for a nil clock.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Calendar converts instants into calendar days of a single time zone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar creates a calendar for loc. A nil location means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// LoadCalendar creates a calendar for an IANA zone name such as "Europe/Berlin".
func LoadCalendar(name string) (Calendar, error) {
	if name == "" {
		return NewCalendar(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("failed to load time zone %q: %w", name, err)
	}
	return NewCalendar(loc), nil
}

// UTC is the calendar used when nothing is configured.
func UTC() Calendar {
	return NewCalendar(time.UTC)
}

// Location returns the calendar's zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// In converts t to the calendar's zone.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.Location())
}

// Date creates midnight of the given day in the calendar's zone.
func (c Calendar) Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, c.Location())
}

// StartOfDay returns 00:00:00 of t's day in the calendar's zone.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	local := c.In(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location())
}

// EndOfDay returns the last nanosecond of t's day in the calendar's zone.
func (c Calendar) EndOfDay(t time.Time) time.Time {
	return c.StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DaysBetween counts calendar-day boundaries crossed going from "from" to "to".
// Same day gives 0, yesterday-to-today gives 1, and a "from" after "to" gives a
// negative number. DST transitions do not shift the count.
func (c Calendar) DaysBetween(from, to time.Time) int {
	f := c.In(from)
	t := c.In(to)
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}

// CivilDate returns t's calendar day as midnight UTC. Calendar days are
// stored and compared in this form so that they do not depend on the zone.
func (c Calendar) CivilDate(t time.Time) time.Time {
	local := c.In(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the civil date of now.
func (c Calendar) Today(now time.Time) time.Time {
	return c.CivilDate(now)
}

// ParseCivilDate parses YYYY-MM-DD into a civil date (midnight UTC).
func ParseCivilDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// SameDay reports whether a and b fall on the same calendar day.
func (c Calendar) SameDay(a, b time.Time) bool {
	return c.DaysBetween(a, b) == 0
}

// FormatDate renders t's calendar day as YYYY-MM-DD.
func (c Calendar) FormatDate(t time.Time) string {
	return c.In(t).Format(DateLayout)
}

// ParseDate parses YYYY-MM-DD as midnight in the calendar's zone.
func (c Calendar) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// StartOfYear returns January 1st of t's year.
func (c Calendar) StartOfYear(t time.Time) time.Time {
	return c.Date(c.In(t).Year(), time.January, 1)
}

// DaysInYear returns the number of calendar days in the given year.
func DaysInYear(year int) int {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
