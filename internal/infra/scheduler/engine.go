// Package scheduler implements the reminder engine: one-shot timers for
// schedule-linked reminders and cron entries for standalone recurring ones.
//
// Durability model: schedule-linked rules are persisted and re-registered by
// RestoreAll on startup; standalone recurring reminders live only as timers
// and do not survive a restart.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"schedule_secretary_bot/internal/domain/kdate"
	"schedule_secretary_bot/internal/domain/recurrence"
	"schedule_secretary_bot/internal/domain/reminder"
	"schedule_secretary_bot/internal/domain/schedule"
	domainTelegram "schedule_secretary_bot/internal/domain/telegram"
	idb "schedule_secretary_bot/internal/infra/database"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultEventClock applies when a schedule has no time of day.
var DefaultEventClock = struct{ Hour, Minute int }{9, 0}

type oneShot struct {
	timer      *time.Timer
	ownerID    int64
	scheduleID int64
}

// ReminderEngine owns every live timer. One-shot timers are keyed by their
// reminder rule's ID so deleting the rule (or its schedule) can de-register
// the timer before it fires. Recurring reminders run on the cron engine.
type ReminderEngine struct {
	schedules schedule.Repository
	reminders reminder.Repository
	sender    domainTelegram.Client
	logger    *logrus.Entry
	loc       *time.Location
	cronEng   *cron.Cron
	now       func() time.Time

	mu           sync.Mutex
	timers       map[int64]*oneShot
	customTimers []*time.Timer // pending first occurrences of weekly reminders
}

func NewReminderEngine(
	schedules schedule.Repository,
	reminders reminder.Repository,
	sender domainTelegram.Client,
	logger *logrus.Entry,
	loc *time.Location,
) *ReminderEngine {
	return &ReminderEngine{
		schedules: schedules,
		reminders: reminders,
		sender:    sender,
		logger:    logger,
		loc:       loc,
		cronEng:   cron.New(cron.WithLocation(loc)),
		now:       func() time.Time { return time.Now().In(loc) },
		timers:    make(map[int64]*oneShot),
	}
}

// Start begins running recurring cron entries.
func (e *ReminderEngine) Start() {
	e.cronEng.Start()
	e.logger.Info("Reminder engine started")
}

// Stop cancels every pending one-shot timer and shuts the cron engine down,
// waiting for any in-flight job.
func (e *ReminderEngine) Stop() {
	e.mu.Lock()
	for id, os := range e.timers {
		os.timer.Stop()
		delete(e.timers, id)
	}
	for _, t := range e.customTimers {
		t.Stop()
	}
	e.customTimers = nil
	e.mu.Unlock()

	ctx := e.cronEng.Stop()
	<-ctx.Done()
	e.logger.Info("Reminder engine stopped")
}

// ScheduleForSchedule persists a reminder rule for the schedule and registers
// its timer. A fire instant already in the past is a silent skip: the rule
// row still exists, but no timer is armed.
func (e *ReminderEngine) ScheduleForSchedule(ctx context.Context, ownerID int64, sch *schedule.Schedule, offsetMinutes int) error {
	if offsetMinutes < 0 {
		return fmt.Errorf("offset minutes must be >= 0, got %d", offsetMinutes)
	}
	rule := &reminder.Rule{
		OwnerID:       ownerID,
		ScheduleID:    sch.ID,
		OffsetMinutes: offsetMinutes,
	}
	if err := e.reminders.Add(ctx, rule); err != nil {
		return fmt.Errorf("failed to persist reminder rule: %w", err)
	}
	e.register(rule, sch)
	return nil
}

// register arms the one-shot timer for a rule. Returns false when the fire
// instant is unparseable or already past. Re-registering the same rule ID
// replaces the previous timer, which makes recovery idempotent.
func (e *ReminderEngine) register(rule *reminder.Rule, sch *schedule.Schedule) bool {
	logCtx := e.logger.WithFields(logrus.Fields{
		"rule_id":     rule.ID,
		"owner_id":    rule.OwnerID,
		"schedule_id": sch.ID,
	})

	fireAt, err := e.fireInstant(sch, rule.OffsetMinutes)
	if err != nil {
		logCtx.WithError(err).Warn("Cannot compute fire instant, skipping reminder")
		return false
	}

	now := e.now()
	if !fireAt.After(now) {
		logCtx.WithField("fire_at", fireAt.Format(time.RFC3339)).
			Debug("Fire instant already past, skipping reminder")
		return false
	}

	// Detach copies from the caller before handing them to the timer callback.
	ruleCopy := *rule
	schCopy := cloneSchedule(sch)

	e.mu.Lock()
	if prev, ok := e.timers[ruleCopy.ID]; ok {
		prev.timer.Stop()
	}
	t := time.AfterFunc(fireAt.Sub(now), func() {
		e.fire(&ruleCopy, schCopy)
	})
	e.timers[ruleCopy.ID] = &oneShot{timer: t, ownerID: ruleCopy.OwnerID, scheduleID: schCopy.ID}
	e.mu.Unlock()

	logCtx.WithField("fire_at", fireAt.Format(time.RFC3339)).Info("Reminder registered")
	return true
}

func (e *ReminderEngine) fire(rule *reminder.Rule, sch *schedule.Schedule) {
	e.mu.Lock()
	delete(e.timers, rule.ID)
	e.mu.Unlock()

	body := fmt.Sprintf("🔔 알림: %s %s %s %s",
		sch.Date, sch.TimeLabel(), sch.Title, schedule.DDayLabel(sch.Date, e.now()))
	if err := e.sender.SendMessage(rule.OwnerID, body, nil); err != nil {
		// Best effort: attempted exactly once, never re-armed.
		e.logger.WithError(err).WithFields(logrus.Fields{
			"rule_id":  rule.ID,
			"owner_id": rule.OwnerID,
		}).Error("Failed to deliver reminder")
		return
	}
	e.logger.WithFields(logrus.Fields{
		"rule_id":  rule.ID,
		"owner_id": rule.OwnerID,
	}).Info("Reminder delivered")
}

// fireInstant computes event time minus offset, defaulting the event clock
// to 09:00 when the schedule carries no time.
func (e *ReminderEngine) fireInstant(sch *schedule.Schedule, offsetMinutes int) (time.Time, error) {
	day, err := time.ParseInLocation(schedule.DateLayout, sch.Date, e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule date %q: %w", sch.Date, err)
	}

	hour, minute := DefaultEventClock.Hour, DefaultEventClock.Minute
	if sch.Time.Valid {
		clock, ok := kdate.ParseClock(sch.Time.String)
		if !ok {
			return time.Time{}, fmt.Errorf("invalid schedule time %q", sch.Time.String)
		}
		hour, minute = clock.Hour, clock.Minute
	}

	event := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, e.loc)
	return event.Add(-time.Duration(offsetMinutes) * time.Minute), nil
}

// ScheduleCustom parses a recurring-reminder command and registers it.
// The returned string is a user-facing confirmation of what was scheduled.
func (e *ReminderEngine) ScheduleCustom(ownerID int64, text string) (string, error) {
	desc, err := recurrence.Parse(text)
	if err != nil {
		return "", err
	}

	switch desc.Cadence {
	case recurrence.CadenceDaily:
		if err := e.ScheduleCustomDaily(ownerID, desc); err != nil {
			return "", err
		}
		return fmt.Sprintf("매일 %s - '%s'", desc.TimeLabel(), desc.Message), nil
	case recurrence.CadenceWeekly:
		e.ScheduleCustomWeekly(ownerID, desc)
		return fmt.Sprintf("매주 %s요일 %s - '%s'",
			recurrence.KoreanWeekday(desc.Weekday), desc.TimeLabel(), desc.Message), nil
	default:
		return "", fmt.Errorf("unknown cadence: %s", desc.Cadence)
	}
}

// ScheduleCustomDaily registers a cron entry firing every day at the
// descriptor's time in the engine's location.
func (e *ReminderEngine) ScheduleCustomDaily(ownerID int64, desc recurrence.Descriptor) error {
	spec := fmt.Sprintf("%d %d * * *", desc.Minute, desc.Hour)
	_, err := e.cronEng.AddFunc(spec, func() {
		e.sendCustom(ownerID, desc.Message)
	})
	if err != nil {
		return fmt.Errorf("failed to add daily cron entry: %w", err)
	}
	e.logger.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"time":     desc.TimeLabel(),
	}).Info("Daily reminder registered")
	return nil
}

// ScheduleCustomWeekly registers a weekly reminder. The first occurrence is
// the next matching weekday strictly after today; if today is the target
// weekday, the first fire is seven days out. A one-shot timer covers the
// first occurrence; firing it arms a 7-day repeating cron schedule.
func (e *ReminderEngine) ScheduleCustomWeekly(ownerID int64, desc recurrence.Descriptor) time.Time {
	now := e.now()
	firstDay := NextWeekday(now, desc.Weekday)
	fireAt := time.Date(firstDay.Year(), firstDay.Month(), firstDay.Day(),
		desc.Hour, desc.Minute, 0, 0, e.loc)

	var t *time.Timer
	t = time.AfterFunc(fireAt.Sub(now), func() {
		e.sendCustom(ownerID, desc.Message)
		e.cronEng.Schedule(cron.Every(7*24*time.Hour), cron.FuncJob(func() {
			e.sendCustom(ownerID, desc.Message)
		}))
		e.mu.Lock()
		e.removeCustomTimer(t)
		e.mu.Unlock()
	})

	e.mu.Lock()
	e.customTimers = append(e.customTimers, t)
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"weekday":  desc.Weekday.String(),
		"first_at": fireAt.Format(time.RFC3339),
	}).Info("Weekly reminder registered")
	return fireAt
}

func (e *ReminderEngine) sendCustom(ownerID int64, message string) {
	if err := e.sender.SendMessage(ownerID, message, nil); err != nil {
		e.logger.WithError(err).WithField("owner_id", ownerID).
			Error("Failed to deliver recurring reminder")
	}
}

// RestoreAll re-registers persisted reminder rules after a restart. Rules
// whose schedule no longer exists are purged; past-due rules are skipped.
// Calling it repeatedly is safe: registration replaces timers in place.
func (e *ReminderEngine) RestoreAll(ctx context.Context) error {
	owners, err := e.schedules.ListOwners(ctx)
	if err != nil {
		return fmt.Errorf("failed to list owners for recovery: %w", err)
	}

	var restored, skipped, purged int
	for _, ownerID := range owners {
		rules, err := e.reminders.ListByOwner(ctx, ownerID)
		if err != nil {
			e.logger.WithError(err).WithField("owner_id", ownerID).
				Error("Failed to list reminder rules during recovery")
			continue
		}
		for _, rule := range rules {
			sch, err := e.schedules.GetByID(ctx, ownerID, rule.ScheduleID)
			if err != nil {
				if errors.Is(err, idb.ErrScheduleNotFound) {
					// Orphaned rule: its schedule is gone, purge the row.
					if derr := e.reminders.Delete(ctx, ownerID, rule.ID); derr != nil {
						e.logger.WithError(derr).WithField("rule_id", rule.ID).
							Error("Failed to purge orphaned reminder rule")
					} else {
						purged++
					}
					continue
				}
				e.logger.WithError(err).WithField("rule_id", rule.ID).
					Error("Failed to resolve schedule during recovery")
				continue
			}
			if e.register(rule, sch) {
				restored++
			} else {
				skipped++
			}
		}
	}

	e.logger.WithFields(logrus.Fields{
		"restored": restored,
		"skipped":  skipped,
		"purged":   purged,
	}).Info("Reminder recovery finished")
	return nil
}

// CancelRule stops and forgets the timer of one reminder rule. The owner must
// match the timer's recorded owner: a foreign ruleID is a no-op, same as the
// repository treating foreign rows as missing.
func (e *ReminderEngine) CancelRule(ownerID, ruleID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if os, ok := e.timers[ruleID]; ok && os.ownerID == ownerID {
		os.timer.Stop()
		delete(e.timers, ruleID)
	}
}

// CancelForSchedule stops every timer attached to one schedule of the owner.
func (e *ReminderEngine) CancelForSchedule(ownerID, scheduleID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, os := range e.timers {
		if os.ownerID == ownerID && os.scheduleID == scheduleID {
			os.timer.Stop()
			delete(e.timers, id)
		}
	}
}

// CancelForOwner stops every schedule-linked timer of the owner.
func (e *ReminderEngine) CancelForOwner(ownerID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, os := range e.timers {
		if os.ownerID == ownerID {
			os.timer.Stop()
			delete(e.timers, id)
		}
	}
}

// pendingCount reports the number of armed one-shot timers.
func (e *ReminderEngine) pendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

func (e *ReminderEngine) removeCustomTimer(t *time.Timer) {
	for i, ct := range e.customTimers {
		if ct == t {
			e.customTimers = append(e.customTimers[:i], e.customTimers[i+1:]...)
			return
		}
	}
}

// NextWeekday returns the date of the next wd strictly after from's day.
// When from already falls on wd, the result is seven days later.
func NextWeekday(from time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(from.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	base := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	return base.AddDate(0, 0, delta)
}

func cloneSchedule(sch *schedule.Schedule) *schedule.Schedule {
	c := *sch
	return &c
}
