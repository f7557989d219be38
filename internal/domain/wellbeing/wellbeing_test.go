package wellbeing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverly/progress-hub/internal/domain/shared"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestScore_Buckets(t *testing.T) {
	top := &DailyLog{MoodRating: intp(10), EnergyLevel: intp(10), ConfidenceLevel: intp(10), UrgeIntensity: intp(0)}
	avg, b := Score(top)
	assert.Equal(t, 10.0, avg)
	assert.Equal(t, 4, b)

	low := &DailyLog{MoodRating: intp(2), EnergyLevel: intp(2), ConfidenceLevel: intp(2), UrgeIntensity: intp(8)}
	avg, b = Score(low)
	assert.Equal(t, 2.0, avg)
	assert.Equal(t, 0, b)
}

func TestBucket_Thresholds(t *testing.T) {
	cases := map[float64]int{
		8: 4, 7.99: 3, 6.5: 3, 6.49: 2, 5: 2, 4.99: 1, 3: 1, 2.99: 0, 0: 0,
	}
	for avg, want := range cases {
		assert.Equal(t, want, Bucket(avg), "avg %v", avg)
	}
}

// A missing urge rating counts as 0 and contributes 10 - 0 = 10.
func TestScore_MissingUrgeInflatesAverage(t *testing.T) {
	l := &DailyLog{MoodRating: intp(5), EnergyLevel: intp(5), ConfidenceLevel: intp(5)}
	avg, b := Score(l)
	assert.Equal(t, 6.25, avg)
	assert.Equal(t, 2, b)

	empty := &DailyLog{}
	avg, b = Score(empty)
	assert.Equal(t, 2.5, avg)
	assert.Equal(t, 0, b)
}

func TestEntry_Validate(t *testing.T) {
	assert.NoError(t, Entry{MoodRating: intp(1), UrgeIntensity: intp(10)}.Validate())
	assert.ErrorIs(t, Entry{MoodRating: intp(0)}.Validate(), shared.ErrInvalidRating)
	assert.ErrorIs(t, Entry{EnergyLevel: intp(11)}.Validate(), shared.ErrValidation)

	long := make([]rune, MaxNotesLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, Entry{Notes: strp(string(long))}.Validate(), shared.ErrNotesTooLong)
	assert.ErrorIs(t, Entry{Activities: []string{"  "}}.Validate(), shared.ErrValidation)
}

func TestApply_PatchesOnlyGivenFields(t *testing.T) {
	now := time.Now()
	l, err := NewDailyLog("l1", "u1", day(2024, 3, 1), now)
	require.NoError(t, err)

	l.Apply(Entry{MoodRating: intp(7), Activities: []string{"walk", "meditate"}}, now)
	l.Apply(Entry{EnergyLevel: intp(4), Activities: []string{"walk", "call sponsor"}}, now)

	require.NotNil(t, l.MoodRating)
	assert.Equal(t, 7, *l.MoodRating)
	assert.Equal(t, 4, *l.EnergyLevel)
	assert.Nil(t, l.ConfidenceLevel)
	assert.Equal(t, []string{"call sponsor", "meditate", "walk"}, l.ActivitiesCompleted)
}

func TestMarkReset_KeepsNotesAndIsIdempotent(t *testing.T) {
	now := time.Now()
	l, err := NewDailyLog("l1", "u1", day(2024, 3, 1), now)
	require.NoError(t, err)
	l.Apply(Entry{Notes: strp("rough day")}, now)

	l.MarkReset(now)
	l.MarkReset(now)

	assert.True(t, l.IsReset())
	assert.Equal(t, "rough day\n"+ResetMarker, *l.Notes)

	l.Apply(Entry{Notes: strp("better evening")}, now)
	assert.True(t, l.IsReset())
}

func TestApply_UserNotesCannotSetResetMarker(t *testing.T) {
	now := time.Now()
	l, err := NewDailyLog("l1", "u1", day(2024, 3, 1), now)
	require.NoError(t, err)

	l.Apply(Entry{Notes: strp("fine " + ResetMarker)}, now)
	assert.False(t, l.IsReset())
	assert.Equal(t, "fine", *l.Notes)

	e := Entry{Notes: strp(ResetMarker + " hello")}.Sanitize()
	assert.Equal(t, "hello", *e.Notes)

	// A real reset survives a later edit exactly once.
	l.MarkReset(now)
	l.Apply(Entry{Notes: strp("again " + ResetMarker)}, now)
	assert.True(t, l.IsReset())
	assert.Equal(t, "again\n"+ResetMarker, *l.Notes)
}

func TestSanitizeNotes(t *testing.T) {
	assert.Equal(t, "hi & bye", SanitizeNotes("<b>hi</b> & bye"))
	assert.Equal(t, "plain", SanitizeNotes("  plain  "))

	escaped := SanitizeNotes("&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, escaped, "<script")
	assert.NotContains(t, SanitizeNotes("&lt;img src=x onerror=alert(1)&gt;"), "<img")
	assert.NotContains(t, SanitizeActivities([]string{"&lt;b&gt;run&lt;/b&gt;"})[0], "<b>")

	e := Entry{Notes: strp("<i>x</i>"), Activities: []string{"<b>run</b>", "<br/>"}}.Sanitize()
	assert.Equal(t, "x", *e.Notes)
	assert.Equal(t, []string{"run"}, e.Activities)
}

func TestBuildHeatmap(t *testing.T) {
	yearStart := day(2024, 1, 1)
	logs := []*DailyLog{
		{Date: day(2024, 1, 1), MoodRating: intp(10), EnergyLevel: intp(10), ConfidenceLevel: intp(10), UrgeIntensity: intp(0)},
		{Date: day(2024, 2, 29), MoodRating: intp(2), EnergyLevel: intp(2), ConfidenceLevel: intp(2), UrgeIntensity: intp(8)},
		{Date: day(2025, 1, 1), MoodRating: intp(10)},
		{Date: day(2023, 12, 31), MoodRating: intp(10)},
	}

	h := BuildHeatmap(yearStart, logs)

	require.Len(t, h.Days, 366)
	assert.Equal(t, "2024-01-01", h.Days[0].Date)
	assert.Equal(t, 4, h.Days[0].Intensity)
	assert.True(t, h.Days[0].HasLog)
	assert.Equal(t, "2024-02-29", h.Days[59].Date)
	assert.True(t, h.Days[59].HasLog)
	assert.Equal(t, 0, h.Days[59].Intensity)
	assert.False(t, h.Days[1].HasLog)
	assert.Equal(t, "2024-12-31", h.Days[365].Date)
	assert.Equal(t, 2, h.LoggedDays)
}

func TestBuildHeatmap_MidYearStart(t *testing.T) {
	h := BuildHeatmap(day(2023, 7, 1), nil)
	require.Len(t, h.Days, 366)
	assert.Equal(t, "2023-07-01", h.Days[0].Date)
	assert.Equal(t, "2024-06-30", h.Days[len(h.Days)-1].Date)
}
