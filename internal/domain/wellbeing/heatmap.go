package wellbeing

import (
	"time"

	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// HeatmapDay is one cell of the calendar heatmap.
type HeatmapDay struct {
	Date      string
	Intensity int
	HasLog    bool
	IsReset   bool
}

// Heatmap covers one year starting at YearStart.
type Heatmap struct {
	YearStart time.Time
	Days      []HeatmapDay

	// LoggedDays counts days that have a log.
	LoggedDays int
}

// YearRange returns the civil-date range [start, start+1y) of a heatmap.
func YearRange(yearStart time.Time) (from, to time.Time) {
	from = time.Date(yearStart.Year(), yearStart.Month(), yearStart.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(1, 0, 0)
}

// BuildHeatmap lays logs out over every day of the year starting at
// yearStart. Days without a log have intensity 0. Logs outside the range
// are ignored.
func BuildHeatmap(yearStart time.Time, logs []*DailyLog) Heatmap {
	from, to := YearRange(yearStart)

	byDate := make(map[string]*DailyLog, len(logs))
	for _, l := range logs {
		if l.Date.Before(from) || !l.Date.Before(to) {
			continue
		}
		byDate[l.DateString()] = l
	}

	days := make([]HeatmapDay, 0, 366)
	logged := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(timeutil.DateLayout)
		cell := HeatmapDay{Date: key}
		if l, ok := byDate[key]; ok {
			cell.HasLog = true
			cell.Intensity = Intensity(l)
			cell.IsReset = l.IsReset()
			logged++
		}
		days = append(days, cell)
	}

	return Heatmap{YearStart: from, Days: days, LoggedDays: logged}
}
