package user

import (
	"time"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK TRACKER
// Серия - это количество календарных дней с последнего сброса, включая день
// начала. Она не хранится как счётчик, а выводится из StreakStart.
// ══════════════════════════════════════════════════════════════════════════════

// StreakSnapshot - то, что видит клиент.
type StreakSnapshot struct {
	CurrentStreak int
	LongestStreak int
	TotalResets   int
	StreakStart   *time.Time
}

// Streak возвращает снимок серии.
// LongestStreak в снимке не меньше текущей серии, даже если сохранённое
// значение ещё не обновлялось сбросом.
func (u *User) Streak() StreakSnapshot {
	longest := u.LongestStreak
	if u.CurrentStreak > longest {
		longest = u.CurrentStreak
	}
	return StreakSnapshot{
		CurrentStreak: u.CurrentStreak,
		LongestStreak: longest,
		TotalResets:   u.TotalResets,
		StreakStart:   cloneTime(u.StreakStart),
	}
}

// ResetOutcome описывает результат сброса.
type ResetOutcome struct {
	// PreviousStreak - серия непосредственно перед сбросом.
	PreviousStreak int
}

// StreakTracker вычисляет и сбрасывает серии в календаре сервиса.
type StreakTracker struct {
	cal timeutil.Calendar
}

// NewStreakTracker создаёт трекер для календаря.
func NewStreakTracker(cal timeutil.Calendar) StreakTracker {
	return StreakTracker{cal: cal}
}

// Calendar возвращает календарь трекера.
func (t StreakTracker) Calendar() timeutil.Calendar {
	return t.cal
}

// ComputeCurrentStreak возвращает число календарных дней от start до now
// включительно. Без start - 0. Start в будущем даёт 0.
func (t StreakTracker) ComputeCurrentStreak(start *time.Time, now time.Time) int {
	if start == nil {
		return 0
	}
	days := t.cal.DaysBetween(*start, now)
	if days < 0 {
		return 0
	}
	return days + 1
}

// Reconcile пересчитывает CurrentStreak. Возвращает true, если значение
// изменилось и его нужно сохранить.
func (t StreakTracker) Reconcile(u *User, now time.Time) bool {
	derived := t.ComputeCurrentStreak(u.StreakStart, now)
	if derived == u.CurrentStreak {
		return false
	}
	u.CurrentStreak = derived
	u.UpdatedAt = now
	return true
}

// Reset сбрасывает серию: LongestStreak = max(LongestStreak, текущая),
// CurrentStreak = 0, TotalResets += 1, StreakStart = now.
// Вызывается только внутри транзакции пользователя.
func (t StreakTracker) Reset(u *User, now time.Time) ResetOutcome {
	previous := u.CurrentStreak
	if u.StreakStart != nil {
		previous = t.ComputeCurrentStreak(u.StreakStart, now)
	}

	if previous > u.LongestStreak {
		u.LongestStreak = previous
	}
	u.CurrentStreak = 0
	u.TotalResets++
	start := now
	u.StreakStart = &start
	u.UpdatedAt = now

	return ResetOutcome{PreviousStreak: previous}
}

// Start начинает отслеживание (онбординг). Start позже сегодняшнего
// календарного дня отклоняется.
func (t StreakTracker) Start(u *User, start, now time.Time) error {
	if t.cal.DaysBetween(start, now) < 0 {
		return shared.ErrFutureStreakStart
	}

	s := start
	u.StreakStart = &s
	u.CurrentStreak = t.ComputeCurrentStreak(u.StreakStart, now)
	onboarded := now
	u.OnboardedAt = &onboarded
	u.UpdatedAt = now
	return nil
}
