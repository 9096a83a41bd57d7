package scheduler

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"schedule_secretary_bot/internal/domain/recurrence"
	"schedule_secretary_bot/internal/domain/reminder"
	"schedule_secretary_bot/internal/domain/schedule"
	idb "schedule_secretary_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type fakeScheduleRepo struct {
	mu        sync.Mutex
	schedules map[int64]*schedule.Schedule
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: make(map[int64]*schedule.Schedule)}
}

func (r *fakeScheduleRepo) put(s *schedule.Schedule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[s.ID] = s
}

func (r *fakeScheduleRepo) Add(ctx context.Context, s *schedule.Schedule) error {
	r.put(s)
	return nil
}

func (r *fakeScheduleRepo) GetByID(ctx context.Context, ownerID, id int64) (*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.OwnerID != ownerID {
		return nil, idb.ErrScheduleNotFound
	}
	return s, nil
}

func (r *fakeScheduleRepo) ListAll(ctx context.Context, ownerID int64) ([]*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*schedule.Schedule
	for _, s := range r.schedules {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) ListByDate(ctx context.Context, ownerID int64, date string) ([]*schedule.Schedule, error) {
	all, _ := r.ListAll(ctx, ownerID)
	var out []*schedule.Schedule
	for _, s := range all {
		if s.Date == date {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) Delete(ctx context.Context, ownerID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.OwnerID != ownerID {
		return idb.ErrScheduleNotFound
	}
	delete(r.schedules, id)
	return nil
}

func (r *fakeScheduleRepo) DeleteAll(ctx context.Context, ownerID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.schedules {
		if s.OwnerID == ownerID {
			delete(r.schedules, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeScheduleRepo) ListOwners(ctx context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[int64]bool)
	var out []int64
	for _, s := range r.schedules {
		if !seen[s.OwnerID] {
			seen[s.OwnerID] = true
			out = append(out, s.OwnerID)
		}
	}
	return out, nil
}

type fakeReminderRepo struct {
	mu     sync.Mutex
	nextID int64
	rules  map[int64]*reminder.Rule
}

func newFakeReminderRepo() *fakeReminderRepo {
	return &fakeReminderRepo{rules: make(map[int64]*reminder.Rule)}
}

func (r *fakeReminderRepo) Add(ctx context.Context, rule *reminder.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rule.ID = r.nextID
	ruleCopy := *rule
	r.rules[rule.ID] = &ruleCopy
	return nil
}

func (r *fakeReminderRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*reminder.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reminder.Rule
	for _, rule := range r.rules {
		if rule.OwnerID == ownerID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeReminderRepo) ListDetailed(ctx context.Context, ownerID int64) ([]*reminder.DetailedRule, error) {
	return nil, nil
}

func (r *fakeReminderRepo) Delete(ctx context.Context, ownerID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok || rule.OwnerID != ownerID {
		return idb.ErrReminderNotFound
	}
	delete(r.rules, id)
	return nil
}

func (r *fakeReminderRepo) DeleteForSchedule(ctx context.Context, ownerID, scheduleID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rule := range r.rules {
		if rule.OwnerID == ownerID && rule.ScheduleID == scheduleID {
			delete(r.rules, id)
		}
	}
	return nil
}

func (r *fakeReminderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rules)
}

type fakeSender struct {
	mu       sync.Mutex
	messages []string
}

func (s *fakeSender) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
	return nil
}

func (s *fakeSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

type engineFixture struct {
	engine    *ReminderEngine
	schedules *fakeScheduleRepo
	reminders *fakeReminderRepo
	sender    *fakeSender
}

func newEngineFixture(t *testing.T, now time.Time) *engineFixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	f := &engineFixture{
		schedules: newFakeScheduleRepo(),
		reminders: newFakeReminderRepo(),
		sender:    &fakeSender{},
	}
	f.engine = NewReminderEngine(f.schedules, f.reminders, f.sender, logrus.NewEntry(logger), loc)
	f.engine.now = func() time.Time { return now.In(loc) }
	t.Cleanup(f.engine.Stop)
	return f
}

func seoulTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func testSchedule(id, ownerID int64, date, clock string) *schedule.Schedule {
	s := &schedule.Schedule{ID: id, OwnerID: ownerID, Title: "회의", Date: date}
	if clock != "" {
		s.Time = sql.NullString{String: clock, Valid: true}
	}
	return s
}

func TestScheduleForScheduleRegistersFutureReminder(t *testing.T) {
	now := seoulTime(t, "2024-04-10 09:00")
	f := newEngineFixture(t, now)

	sch := testSchedule(1, 42, "2024-04-10", "10:00")
	f.schedules.put(sch)

	err := f.engine.ScheduleForSchedule(context.Background(), 42, sch, 30)
	require.NoError(t, err)
	require.Equal(t, 1, f.reminders.count())
	require.Equal(t, 1, f.engine.pendingCount())
}

func TestScheduleForSchedulePastDueIsSilentSkip(t *testing.T) {
	now := seoulTime(t, "2024-04-10 09:45")
	f := newEngineFixture(t, now)

	// Fire instant 09:30 is already past: the rule row persists, no timer.
	sch := testSchedule(1, 42, "2024-04-10", "10:00")
	f.schedules.put(sch)

	err := f.engine.ScheduleForSchedule(context.Background(), 42, sch, 30)
	require.NoError(t, err)
	require.Equal(t, 1, f.reminders.count())
	require.Equal(t, 0, f.engine.pendingCount())
}

func TestScheduleForScheduleDefaultsEventClock(t *testing.T) {
	now := seoulTime(t, "2024-04-10 08:00")
	f := newEngineFixture(t, now)

	// No time of day: the event is anchored at 09:00, fire at 08:30.
	sch := testSchedule(1, 42, "2024-04-10", "")
	f.schedules.put(sch)

	err := f.engine.ScheduleForSchedule(context.Background(), 42, sch, 30)
	require.NoError(t, err)
	require.Equal(t, 1, f.engine.pendingCount())
}

func TestScheduleForScheduleRejectsNegativeOffset(t *testing.T) {
	now := seoulTime(t, "2024-04-10 09:00")
	f := newEngineFixture(t, now)

	sch := testSchedule(1, 42, "2024-04-10", "10:00")
	err := f.engine.ScheduleForSchedule(context.Background(), 42, sch, -5)
	require.Error(t, err)
	require.Equal(t, 0, f.reminders.count())
}

func TestFireFormatsMessageWithDDaySuffix(t *testing.T) {
	now := seoulTime(t, "2024-04-10 09:00")
	f := newEngineFixture(t, now)

	sch := testSchedule(1, 42, "2024-04-10", "10:00")
	rule := &reminder.Rule{ID: 5, OwnerID: 42, ScheduleID: 1, OffsetMinutes: 30}
	f.engine.fire(rule, sch)

	messages := f.sender.sent()
	require.Len(t, messages, 1)
	require.Equal(t, "🔔 알림: 2024-04-10 10:00 회의 (D-DAY)", messages[0])
}

func TestFireWithoutTimeUsesPlaceholder(t *testing.T) {
	now := seoulTime(t, "2024-04-10 09:00")
	f := newEngineFixture(t, now)

	sch := testSchedule(1, 42, "2024-04-12", "")
	rule := &reminder.Rule{ID: 5, OwnerID: 42, ScheduleID: 1}
	f.engine.fire(rule, sch)

	messages := f.sender.sent()
	require.Len(t, messages, 1)
	require.Equal(t, "🔔 알림: 2024-04-12 시간 미정 회의 (D-2)", messages[0])
}

func TestCancelRuleStopsPendingTimer(t *testing.T) {
	now := seoulTime(t, "2024-04-10 09:00")
	f := newEngineFixture(t, now)

	sch := testSchedule(1, 42, "2024-04-10", "10:00")
	f.schedules.put(sch)
	require.NoError(t, f.engine.ScheduleForSchedule(context.Background(), 42, sch, 0))
	require.Equal(t, 1, f.engine.pendingCount())

	rules, err := f.reminders.ListByOwner(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	f.engine.CancelRule(42, rules[0].ID)
	require.Equal(t, 0, f.engine.pendingCount())
}

func TestCancelRuleIgnoresForeignOwner(t *testing.T) {
	now := seoulTime(t, "2024-04-10 09:00")
	f := newEngineFixture(t, now)

	sch := testSchedule(1, 42, "2024-04-10", "10:00")
	f.schedules.put(sch)
	require.NoError(t, f.engine.ScheduleForSchedule(context.Background(), 42, sch, 0))

	rules, err := f.reminders.ListByOwner(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	// A guessed rule ID from another user must not disarm the timer.
	f.engine.CancelRule(77, rules[0].ID)
	require.Equal(t, 1, f.engine.pendingCount())

	f.engine.CancelRule(42, rules[0].ID)
	require.Equal(t, 0, f.engine.pendingCount())
}

func TestCancelForScheduleStopsAllItsTimers(t *testing.T) {
	now := seoulTime(t, "2024-04-10 08:00")
	f := newEngineFixture(t, now)

	sch := testSchedule(1, 42, "2024-04-10", "10:00")
	other := testSchedule(2, 42, "2024-04-11", "10:00")
	f.schedules.put(sch)
	f.schedules.put(other)

	ctx := context.Background()
	require.NoError(t, f.engine.ScheduleForSchedule(ctx, 42, sch, 0))
	require.NoError(t, f.engine.ScheduleForSchedule(ctx, 42, sch, 30))
	require.NoError(t, f.engine.ScheduleForSchedule(ctx, 42, other, 0))
	require.Equal(t, 3, f.engine.pendingCount())

	f.engine.CancelForSchedule(42, sch.ID)
	require.Equal(t, 1, f.engine.pendingCount())
}

func TestCancelForOwnerLeavesOtherOwnersAlone(t *testing.T) {
	now := seoulTime(t, "2024-04-10 08:00")
	f := newEngineFixture(t, now)

	mine := testSchedule(1, 42, "2024-04-10", "10:00")
	theirs := testSchedule(2, 77, "2024-04-10", "10:00")
	f.schedules.put(mine)
	f.schedules.put(theirs)

	ctx := context.Background()
	require.NoError(t, f.engine.ScheduleForSchedule(ctx, 42, mine, 0))
	require.NoError(t, f.engine.ScheduleForSchedule(ctx, 77, theirs, 0))

	f.engine.CancelForOwner(42)
	require.Equal(t, 1, f.engine.pendingCount())
}

func TestRestoreAllReRegistersAndPurgesOrphans(t *testing.T) {
	now := seoulTime(t, "2024-04-10 09:00")
	f := newEngineFixture(t, now)
	ctx := context.Background()

	future := testSchedule(1, 42, "2024-04-11", "10:00")
	past := testSchedule(2, 42, "2024-04-09", "10:00")
	f.schedules.put(future)
	f.schedules.put(past)

	require.NoError(t, f.reminders.Add(ctx, &reminder.Rule{OwnerID: 42, ScheduleID: 1, OffsetMinutes: 30}))
	require.NoError(t, f.reminders.Add(ctx, &reminder.Rule{OwnerID: 42, ScheduleID: 2, OffsetMinutes: 30}))
	// Rule whose schedule is gone: must be purged during recovery.
	require.NoError(t, f.reminders.Add(ctx, &reminder.Rule{OwnerID: 42, ScheduleID: 999, OffsetMinutes: 0}))

	require.NoError(t, f.engine.RestoreAll(ctx))
	require.Equal(t, 1, f.engine.pendingCount(), "only the future rule gets a timer")
	require.Equal(t, 2, f.reminders.count(), "orphaned rule purged, past-due rule kept")

	// Recovery is idempotent: running it again replaces timers in place.
	require.NoError(t, f.engine.RestoreAll(ctx))
	require.Equal(t, 1, f.engine.pendingCount())
	require.Equal(t, 2, f.reminders.count())
}

func TestScheduleCustomDaily(t *testing.T) {
	now := seoulTime(t, "2024-04-10 09:00")
	f := newEngineFixture(t, now)

	confirmation, err := f.engine.ScheduleCustom(42, "매일 09:00 오늘 일정")
	require.NoError(t, err)
	require.Equal(t, "매일 09:00 - '오늘 일정'", confirmation)
}

func TestScheduleCustomWeekly(t *testing.T) {
	now := seoulTime(t, "2024-04-10 09:00")
	f := newEngineFixture(t, now)

	confirmation, err := f.engine.ScheduleCustom(42, "매주 월요일 08:30 이번주 일정")
	require.NoError(t, err)
	require.Equal(t, "매주 월요일 08:30 - '이번주 일정'", confirmation)
}

func TestScheduleCustomUnsupportedPattern(t *testing.T) {
	now := seoulTime(t, "2024-04-10 09:00")
	f := newEngineFixture(t, now)

	_, err := f.engine.ScheduleCustom(42, "가끔 알려줘")
	require.Error(t, err)
	var patternErr *recurrence.PatternError
	require.ErrorAs(t, err, &patternErr)
}

func TestScheduleCustomWeeklyFirstOccurrenceStrictlyAfterToday(t *testing.T) {
	// 2024-04-10 is a Wednesday; a Wednesday reminder must first fire in 7 days.
	now := seoulTime(t, "2024-04-10 09:00")
	f := newEngineFixture(t, now)

	fireAt := f.engine.ScheduleCustomWeekly(42, recurrence.Descriptor{
		Cadence: recurrence.CadenceWeekly,
		Weekday: time.Wednesday,
		Hour:    8,
		Minute:  0,
		Message: "주간 요약",
	})
	require.Equal(t, seoulTime(t, "2024-04-17 08:00"), fireAt)
}

func TestNextWeekday(t *testing.T) {
	wednesday := seoulTime(t, "2024-04-10 15:00")

	cases := []struct {
		id       string
		target   time.Weekday
		expected string
	}{
		{id: "next day", target: time.Thursday, expected: "2024-04-11"},
		{id: "later this week", target: time.Saturday, expected: "2024-04-13"},
		{id: "earlier weekday wraps", target: time.Monday, expected: "2024-04-15"},
		{id: "same weekday is seven days out", target: time.Wednesday, expected: "2024-04-17"},
	}
	for _, testcase := range cases {
		t.Run(testcase.id, func(t *testing.T) {
			next := NextWeekday(wednesday, testcase.target)
			require.Equal(t, testcase.expected, next.Format("2006-01-02"))
			require.Equal(t, testcase.target, next.Weekday())
		})
	}
}
