package wellbeing

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MaxNotesLength caps the notes of a day, in runes, after sanitising.
const MaxNotesLength = 2000

var notesPolicy = bluemonday.StrictPolicy()

// SanitizeNotes strips all markup from user text. Notes are stored as plain
// text, so the entities bluemonday escapes are decoded back, unless decoding
// would bring angle brackets back; then the escaped form is kept.
func SanitizeNotes(s string) string {
	out := notesPolicy.Sanitize(s)
	plain := html.UnescapeString(out)
	if strings.ContainsAny(plain, "<>") {
		return strings.TrimSpace(out)
	}
	return strings.TrimSpace(plain)
}

// SanitizeActivities strips markup from activity labels and drops blanks.
func SanitizeActivities(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = SanitizeNotes(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Sanitize returns a copy of the entry with notes and activities cleaned.
// The reset marker is reserved for MarkReset and is removed from user text.
func (e Entry) Sanitize() Entry {
	if e.Notes != nil {
		n := SanitizeNotes(strings.ReplaceAll(*e.Notes, ResetMarker, ""))
		e.Notes = &n
	}
	if e.Activities != nil {
		e.Activities = SanitizeActivities(e.Activities)
	}
	return e
}
