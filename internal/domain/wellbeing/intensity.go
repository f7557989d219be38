package wellbeing

// Intensity bucket thresholds, checked from the top.
const (
	thresholdVeryHigh = 8.0
	thresholdHigh     = 6.5
	thresholdMedium   = 5.0
	thresholdLow      = 3.0
)

// MaxIntensity is the highest heatmap bucket.
const MaxIntensity = 4

// Score returns the day's average wellbeing and its 0..4 bucket.
//
// avg = (mood + energy + confidence + (10 - urge)) / 4, where a missing
// rating counts as 0. A missing urge therefore adds a full 10 to the sum.
// Known inflation, kept until product decides otherwise.
func Score(l *DailyLog) (avg float64, intensity int) {
	if l == nil {
		return 0, 0
	}
	sum := valueOf(l.MoodRating) + valueOf(l.EnergyLevel) + valueOf(l.ConfidenceLevel) +
		(10 - valueOf(l.UrgeIntensity))
	avg = float64(sum) / 4
	return avg, Bucket(avg)
}

// Intensity returns only the bucket of a day.
func Intensity(l *DailyLog) int {
	_, b := Score(l)
	return b
}

// Bucket maps an average to the heatmap bucket.
func Bucket(avg float64) int {
	switch {
	case avg >= thresholdVeryHigh:
		return 4
	case avg >= thresholdHigh:
		return 3
	case avg >= thresholdMedium:
		return 2
	case avg >= thresholdLow:
		return 1
	default:
		return 0
	}
}

func valueOf(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
