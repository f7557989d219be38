package command

import (
	"context"
	"errors"
	"time"

	"github.com/recoverly/progress-hub/internal/application/store"
	"github.com/recoverly/progress-hub/internal/domain/achievement"
	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/internal/domain/user"
	"github.com/recoverly/progress-hub/internal/domain/wellbeing"
	"github.com/recoverly/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG WELLBEING COMMAND
// Creates or patches the log of one day. The first log of a day earns the
// daily check-in XP. Achievements are evaluated in the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// LogWellbeingCommand contains one day's entry.
type LogWellbeingCommand struct {
	UserID string

	// Date is YYYY-MM-DD in the service time zone. Empty means today.
	Date string

	Entry wellbeing.Entry
}

// Validate validates the command. Notes are expected to be sanitised.
func (c LogWellbeingCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if c.Date != "" {
		if _, err := timeutil.ParseCivilDate(c.Date); err != nil {
			return shared.WrapError("wellbeing", "Validate", shared.ErrValidation, "date must be YYYY-MM-DD", shared.ErrInvalidDate)
		}
	}
	return c.Entry.Validate()
}

// LogWellbeingResult contains the stored log.
type LogWellbeingResult struct {
	Log       *wellbeing.DailyLog
	Created   bool
	XPAwarded int
	Unlocked  []*achievement.Achievement
	User      *user.User
}

// LogWellbeingHandler handles LogWellbeingCommand.
type LogWellbeingHandler struct {
	deps Deps
	flow *AchievementFlow
}

// NewLogWellbeingHandler creates a new LogWellbeingHandler.
func NewLogWellbeingHandler(deps Deps) *LogWellbeingHandler {
	deps = deps.withDefaults()
	return &LogWellbeingHandler{deps: deps, flow: NewAchievementFlow(deps)}
}

// Handle executes the upsert.
func (h *LogWellbeingHandler) Handle(ctx context.Context, cmd LogWellbeingCommand) (result *LogWellbeingResult, err error) {
	ctx, sp := span(ctx, "log_wellbeing", cmd.UserID)
	started := time.Now()
	defer func() { h.deps.finish(ctx, sp, "log_wellbeing", cmd.UserID, started, err) }()

	cmd.Entry = cmd.Entry.Sanitize()
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.deps.now()
	date := h.deps.Calendar.Today(now)
	if cmd.Date != "" {
		date, _ = timeutil.ParseCivilDate(cmd.Date)
		if date.After(h.deps.Calendar.Today(now)) {
			return nil, shared.ErrFutureLogDate
		}
	}

	var events []shared.Event

	err = h.deps.Store.InUserTx(ctx, cmd.UserID, func(ctx context.Context, repos store.Repositories) error {
		events = nil

		u, err := repos.Users.GetByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		h.deps.tracker().Reconcile(u, now)

		log, err := repos.Logs.GetByDate(ctx, u.ID, date)
		if errors.Is(err, shared.ErrDailyLogNotFound) {
			log, err = wellbeing.NewDailyLog(h.deps.NewID(), u.ID, date, now)
		}
		if err != nil {
			return shared.Internal("wellbeing", "GetByDate", err)
		}

		log.Apply(cmd.Entry, now)
		created, err := repos.Logs.Upsert(ctx, log)
		if err != nil {
			return shared.Internal("wellbeing", "Upsert", err)
		}
		events = append(events, shared.NewDailyLogRecordedEvent(u.ID, log.DateString(), created, now))

		awarded := 0
		if created && h.deps.Policy.XPDailyCheckin > 0 {
			granted, err := h.deps.grantXP(ctx, repos, u, shared.ActivityDailyCheckin, h.deps.Policy.XPDailyCheckin, now)
			if err != nil {
				return err
			}
			awarded = h.deps.Policy.XPDailyCheckin
			events = append(events, granted...)
		}
		u.Touch(now)

		flow, err := h.flow.Run(ctx, repos, u, now)
		if err != nil {
			return err
		}
		events = append(events, flow.Events...)

		if err := repos.Users.Update(ctx, u); err != nil {
			return shared.Internal("user", "Update", err)
		}

		result = &LogWellbeingResult{
			Log:       log,
			Created:   created,
			XPAwarded: awarded + flow.XPGranted,
			Unlocked:  flow.Unlocked,
			User:      u,
		}
		return nil
	})
	if err != nil {
		return nil, shared.Internal("command", "LogWellbeing", err)
	}

	h.deps.Publisher.Publish(ctx, events...)
	return result, nil
}
