// Package leaderboard содержит доменную модель рейтинга: периоды, политику
// окна и тай-брейка, отбор кандидатов, сортировку и анонимизацию имён.
// Рейтинг строится на чтении из сохранённых снимков пользователей.
package leaderboard

import (
	"context"
	"strings"
	"time"

	"github.com/recoverly/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Period - период рейтинга.
type Period string

const (
	// PeriodWeekly - серия началась не раньше now-7d.
	PeriodWeekly Period = "weekly"
	// PeriodMonthly - серия началась не раньше now-30d.
	PeriodMonthly Period = "monthly"
	// PeriodAllTime - без фильтра по дате.
	PeriodAllTime Period = "alltime"
)

// IsValid проверяет период.
func (p Period) IsValid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	}
	return false
}

// String возвращает строковое представление.
func (p Period) String() string {
	return string(p)
}

// Window возвращает длину окна. 0 - без окна.
func (p Period) Window() time.Duration {
	switch p {
	case PeriodWeekly:
		return 7 * 24 * time.Hour
	case PeriodMonthly:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Since возвращает нижнюю границу окна или nil для alltime.
func (p Period) Since(now time.Time) *time.Time {
	w := p.Window()
	if w == 0 {
		return nil
	}
	since := now.Add(-w)
	return &since
}

// ParsePeriod разбирает период. Пустая строка - alltime.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return PeriodAllTime, nil
	case "all", "all_time", "all-time":
		return PeriodAllTime, nil
	}
	p := Period(s)
	if !p.IsValid() {
		return "", shared.ErrInvalidPeriod
	}
	return p, nil
}

// WindowBasis - по какому полю фильтруется окно периода.
type WindowBasis string

const (
	// BasisStreakStart - по началу серии (поведение по умолчанию).
	BasisStreakStart WindowBasis = "streak_start"
	// BasisLastActivity - по последней активности.
	BasisLastActivity WindowBasis = "last_activity"
)

// TieBreak - вторичный ключ сортировки при равной серии.
type TieBreak string

const (
	// TieBreakNone - порядок выборки сохраняется.
	TieBreakNone TieBreak = "none"
	// TieBreakLongestStreak - по лучшей серии.
	TieBreakLongestStreak TieBreak = "longest_streak"
	// TieBreakTotalXP - по сумме XP.
	TieBreakTotalXP TieBreak = "total_xp"
)

// Policy - настраиваемые правила рейтинга.
type Policy struct {
	WindowBasis WindowBasis
	TieBreak    TieBreak

	// DeriveStreakOnRead - пересчитывать серию из StreakStart при ранжировании,
	// а не брать сохранённое значение.
	DeriveStreakOnRead bool
}

// DefaultPolicy - окно по началу серии, без тай-брейка.
func DefaultPolicy() Policy {
	return Policy{WindowBasis: BasisStreakStart, TieBreak: TieBreakNone}
}

// ══════════════════════════════════════════════════════════════════════════════
// CANDIDATES & BOARD
// ══════════════════════════════════════════════════════════════════════════════

// Candidate - снимок пользователя, достаточный для ранжирования.
type Candidate struct {
	UserID            string
	DisplayName       string
	ShowOnLeaderboard bool
	CurrentStreak     int
	LongestStreak     int
	TotalXP           int
	Level             int
	StreakStart       *time.Time
	LastActivityAt    *time.Time
}

// Entry - строка рейтинга. Полное имя и ID пользователя не раскрываются.
type Entry struct {
	Rank          int
	DisplayName   string
	CurrentStreak int
	LongestStreak int
	Level         int
}

// Board - результат ранжирования.
type Board struct {
	Period      Period
	Entries     []Entry
	GeneratedAt time.Time

	// Eligible - сколько пользователей прошли фильтр до обрезки.
	Eligible int
}

// AnonymousName показывается вместо пустого имени.
const AnonymousName = "Anonymous"

// Anonymize оставляет первое слово имени и инициал второго:
// "Jane Doe" -> "Jane D.". Без второго слова остаётся только первое.
func Anonymize(name string) string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return AnonymousName
	case 1:
		return parts[0]
	}
	initial := []rune(parts[1])[0]
	return parts[0] + " " + string(initial) + "."
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CandidateQuery сужает выборку.
type CandidateQuery struct {
	// Since - нижняя граница окна. nil - без окна.
	Since *time.Time
	Basis WindowBasis
}

// Repository читает кандидатов.
type Repository interface {
	// ListCandidates возвращает пользователей с ShowOnLeaderboard в
	// стабильном порядке (created_at, id).
	ListCandidates(ctx context.Context, q CandidateQuery) ([]Candidate, error)
}

// Cache хранит готовые рейтинги. Любая ошибка кэша не должна ломать чтение:
// вызывающий код идёт в хранилище.
type Cache interface {
	// Get возвращает рейтинг. found=false - промах.
	Get(ctx context.Context, period Period, limit int) (board *Board, found bool, err error)

	// Set сохраняет рейтинг на ttl.
	Set(ctx context.Context, board Board, limit int, ttl time.Duration) error

	// Invalidate удаляет все сохранённые рейтинги.
	Invalidate(ctx context.Context) error
}
