// Package wellbeing contains the daily wellbeing log: per-day ratings,
// free-text notes and completed activities, plus the scoring used for the
// calendar heatmap.
package wellbeing

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// ResetMarker is written into the notes of the day a streak was reset.
const ResetMarker = "[streak-reset]"

// MaxActivities caps the activities set of a single day.
const MaxActivities = 50

// MaxActivityLength caps a single activity label, in runes.
const MaxActivityLength = 64

// DailyLog is one user's record for one calendar day.
// Date is a civil date (midnight UTC of the local day); (UserID, Date) is unique.
type DailyLog struct {
	ID     string
	UserID string
	Date   time.Time

	// Ratings are optional and independently settable, each in [1, 10].
	MoodRating      *int
	EnergyLevel     *int
	ConfidenceLevel *int
	UrgeIntensity   *int

	Notes *string

	// ActivitiesCompleted is kept sorted and free of duplicates.
	ActivitiesCompleted []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDailyLog creates an empty log for a day.
func NewDailyLog(id, userID string, date, now time.Time) (*DailyLog, error) {
	if !shared.UserID(userID).IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	return &DailyLog{
		ID:        id,
		UserID:    userID,
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DateString renders the log's day as YYYY-MM-DD.
func (l *DailyLog) DateString() string {
	return l.Date.UTC().Format(timeutil.DateLayout)
}

// HasMood reports whether a mood rating was recorded.
func (l *DailyLog) HasMood() bool {
	return l.MoodRating != nil
}

// IsReset reports whether the day carries the streak reset marker.
func (l *DailyLog) IsReset() bool {
	return l.Notes != nil && strings.Contains(*l.Notes, ResetMarker)
}

// MarkReset appends the reset marker to the notes, once.
func (l *DailyLog) MarkReset(now time.Time) {
	if l.IsReset() {
		return
	}
	note := ResetMarker
	if l.Notes != nil && *l.Notes != "" {
		note = *l.Notes + "\n" + ResetMarker
	}
	l.Notes = &note
	l.UpdatedAt = now
}

// Clone returns a deep copy.
func (l *DailyLog) Clone() *DailyLog {
	if l == nil {
		return nil
	}
	c := *l
	c.MoodRating = cloneInt(l.MoodRating)
	c.EnergyLevel = cloneInt(l.EnergyLevel)
	c.ConfidenceLevel = cloneInt(l.ConfidenceLevel)
	c.UrgeIntensity = cloneInt(l.UrgeIntensity)
	if l.Notes != nil {
		n := *l.Notes
		c.Notes = &n
	}
	if l.ActivitiesCompleted != nil {
		c.ActivitiesCompleted = append([]string(nil), l.ActivitiesCompleted...)
	}
	return &c
}

// Entry is a partial update of a day. Nil fields leave the stored value as
// is; activities are added to the existing set.
type Entry struct {
	MoodRating      *int
	EnergyLevel     *int
	ConfidenceLevel *int
	UrgeIntensity   *int
	Notes           *string
	Activities      []string
}

// Validate checks ratings, notes length and activity labels.
func (e Entry) Validate() error {
	for _, r := range []*int{e.MoodRating, e.EnergyLevel, e.ConfidenceLevel, e.UrgeIntensity} {
		if r == nil {
			continue
		}
		if _, err := shared.NewRating(*r); err != nil {
			return err
		}
	}
	if e.Notes != nil && utf8.RuneCountInString(*e.Notes) > MaxNotesLength {
		return shared.ErrNotesTooLong
	}
	if len(e.Activities) > MaxActivities {
		return shared.Validationf("wellbeing", "Validate", "at most %d activities per day", MaxActivities)
	}
	for _, a := range e.Activities {
		a = strings.TrimSpace(a)
		if a == "" || utf8.RuneCountInString(a) > MaxActivityLength {
			return shared.Validationf("wellbeing", "Validate", "invalid activity %q", a)
		}
	}
	return nil
}

// IsEmpty reports whether the entry changes nothing.
func (e Entry) IsEmpty() bool {
	return e.MoodRating == nil && e.EnergyLevel == nil && e.ConfidenceLevel == nil &&
		e.UrgeIntensity == nil && e.Notes == nil && len(e.Activities) == 0
}

// Apply merges a validated entry into the log.
func (l *DailyLog) Apply(e Entry, now time.Time) {
	if e.MoodRating != nil {
		l.MoodRating = cloneInt(e.MoodRating)
	}
	if e.EnergyLevel != nil {
		l.EnergyLevel = cloneInt(e.EnergyLevel)
	}
	if e.ConfidenceLevel != nil {
		l.ConfidenceLevel = cloneInt(e.ConfidenceLevel)
	}
	if e.UrgeIntensity != nil {
		l.UrgeIntensity = cloneInt(e.UrgeIntensity)
	}
	if e.Notes != nil {
		// Only MarkReset may set the marker.
		n := strings.TrimSpace(strings.ReplaceAll(*e.Notes, ResetMarker, ""))
		if l.IsReset() {
			n = strings.TrimSpace(n + "\n" + ResetMarker)
		}
		l.Notes = &n
	}
	if len(e.Activities) > 0 {
		l.ActivitiesCompleted = mergeActivities(l.ActivitiesCompleted, e.Activities)
	}
	l.UpdatedAt = now
}

func mergeActivities(existing, added []string) []string {
	set := make(map[string]struct{}, len(existing)+len(added))
	for _, a := range existing {
		set[a] = struct{}{}
	}
	for _, a := range added {
		if a = strings.TrimSpace(a); a != "" {
			set[a] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
