package app

import (
	"context"
	"fmt"

	"schedule_secretary_bot/internal/domain/reminder"
	"schedule_secretary_bot/internal/domain/schedule"
)

// ReminderCanceller is the slice of the reminder engine the schedule service
// needs: de-registering live timers before their backing rows disappear.
type ReminderCanceller interface {
	CancelRule(ownerID, ruleID int64)
	CancelForSchedule(ownerID, scheduleID int64)
	CancelForOwner(ownerID int64)
}

// ScheduleService handles the add/list/delete lifecycle of schedules and the
// reminder-rule bookkeeping that hangs off it.
type ScheduleService struct {
	schedules schedule.Repository
	reminders reminder.Repository
	extractor *ScheduleExtractor
	canceller ReminderCanceller
}

func NewScheduleService(
	schedules schedule.Repository,
	reminders reminder.Repository,
	extractor *ScheduleExtractor,
	canceller ReminderCanceller,
) *ScheduleService {
	return &ScheduleService{
		schedules: schedules,
		reminders: reminders,
		extractor: extractor,
		canceller: canceller,
	}
}

// AddFromText extracts a schedule from free-form Korean text and persists it.
func (s *ScheduleService) AddFromText(ctx context.Context, ownerID int64, text string) (*schedule.Schedule, error) {
	sch := s.extractor.Extract(ctx, ownerID, text)
	if err := s.schedules.Add(ctx, sch); err != nil {
		return nil, fmt.Errorf("failed to persist extracted schedule: %w", err)
	}
	return sch, nil
}

func (s *ScheduleService) Get(ctx context.Context, ownerID, id int64) (*schedule.Schedule, error) {
	return s.schedules.GetByID(ctx, ownerID, id)
}

func (s *ScheduleService) List(ctx context.Context, ownerID int64) ([]*schedule.Schedule, error) {
	return s.schedules.ListAll(ctx, ownerID)
}

func (s *ScheduleService) ListByDate(ctx context.Context, ownerID int64, date string) ([]*schedule.Schedule, error) {
	return s.schedules.ListByDate(ctx, ownerID, date)
}

// Delete removes one schedule with its reminder rules, cancelling any pending
// timers first so nothing fires for a row that is about to disappear.
func (s *ScheduleService) Delete(ctx context.Context, ownerID, id int64) error {
	s.canceller.CancelForSchedule(ownerID, id)
	if err := s.reminders.DeleteForSchedule(ctx, ownerID, id); err != nil {
		return fmt.Errorf("failed to delete reminders for schedule %d: %w", id, err)
	}
	return s.schedules.Delete(ctx, ownerID, id)
}

// DeleteAll removes every schedule of the owner (reminder rows cascade) and
// returns how many schedules were dropped.
func (s *ScheduleService) DeleteAll(ctx context.Context, ownerID int64) (int64, error) {
	s.canceller.CancelForOwner(ownerID)
	return s.schedules.DeleteAll(ctx, ownerID)
}

// DeleteReminder removes a single reminder rule and its pending timer.
// The row delete runs first: it carries the ownership check, so a missing or
// foreign-owned rule fails before any timer is touched.
func (s *ScheduleService) DeleteReminder(ctx context.Context, ownerID, ruleID int64) error {
	if err := s.reminders.Delete(ctx, ownerID, ruleID); err != nil {
		return err
	}
	s.canceller.CancelRule(ownerID, ruleID)
	return nil
}

// DeleteRemindersForSchedule removes all reminder rules of one schedule.
func (s *ScheduleService) DeleteRemindersForSchedule(ctx context.Context, ownerID, scheduleID int64) error {
	s.canceller.CancelForSchedule(ownerID, scheduleID)
	return s.reminders.DeleteForSchedule(ctx, ownerID, scheduleID)
}

// ListReminders returns the owner's reminder rules joined with their schedules.
func (s *ScheduleService) ListReminders(ctx context.Context, ownerID int64) ([]*reminder.DetailedRule, error) {
	return s.reminders.ListDetailed(ctx, ownerID)
}
