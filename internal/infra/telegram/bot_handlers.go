// internal/infra/telegram/bot_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"schedule_secretary_bot/internal/app"
	"schedule_secretary_bot/internal/domain/recurrence"
	"schedule_secretary_bot/internal/domain/schedule"
	idb "schedule_secretary_bot/internal/infra/database"
	"schedule_secretary_bot/internal/infra/scheduler"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const maxListedSchedules = 10
const maxListedReminders = 12

// RegisterBotHandlers wires every user command and callback of the bot.
func RegisterBotHandlers(
	ctx context.Context,
	b *telebot.Bot,
	scheduleService *app.ScheduleService,
	engine *scheduler.ReminderEngine,
	loc *time.Location,
	baseLogger *logrus.Entry,
) {
	h := &botHandlers{
		scheduleService: scheduleService,
		engine:          engine,
		loc:             loc,
		logger:          baseLogger,
	}

	b.Handle("/start", func(c telebot.Context) error { return h.onStart(ctx, c) })
	b.Handle("/menu", func(c telebot.Context) error { return h.sendMenu(c) })
	b.Handle("/add", func(c telebot.Context) error { return h.onAdd(ctx, c) })
	b.Handle("/list", func(c telebot.Context) error { return h.sendScheduleList(ctx, c) })
	b.Handle("/today", func(c telebot.Context) error { return h.sendTodayList(ctx, c) })
	b.Handle("/delete", func(c telebot.Context) error { return h.onDelete(ctx, c) })
	b.Handle("/delete_all", func(c telebot.Context) error { return h.onDeleteAll(ctx, c) })
	b.Handle("/remind", func(c telebot.Context) error { return h.onRemind(c) })
	b.Handle("/reminders", func(c telebot.Context) error { return h.sendReminderList(ctx, c) })
	b.Handle(telebot.OnCallback, func(c telebot.Context) error { return h.onCallback(ctx, c) })
}

type botHandlers struct {
	scheduleService *app.ScheduleService
	engine          *scheduler.ReminderEngine
	loc             *time.Location
	logger          *logrus.Entry
}

func (h *botHandlers) today() time.Time {
	return time.Now().In(h.loc)
}

func (h *botHandlers) onStart(ctx context.Context, c telebot.Context) error {
	logCtx := h.logger.WithFields(logrus.Fields{"handler": "/start", "sender_id": c.Sender().ID})
	logCtx.Info("Command received")

	replyMenu := &telebot.ReplyMarkup{ResizeKeyboard: true}
	replyMenu.Reply(
		replyMenu.Row(replyMenu.Text("/add"), replyMenu.Text("/list")),
		replyMenu.Row(replyMenu.Text("/today"), replyMenu.Text("/remind")),
		replyMenu.Row(replyMenu.Text("/reminders"), replyMenu.Text("/delete_all")),
		replyMenu.Row(replyMenu.Text("/menu")),
	)
	if err := c.Send("원하는 작업을 선택하세요 👇", replyMenu); err != nil {
		return err
	}
	return h.sendMenu(c)
}

func mainMenuMarkup() *telebot.ReplyMarkup {
	m := &telebot.ReplyMarkup{}
	btnAdd := m.Data("➕ 일정 추가", "go:add")
	btnList := m.Data("📋 전체 일정", "go:list")
	btnToday := m.Data("📅 오늘 일정", "go:today")
	btnRemind := m.Data("🔔 알림 프리셋", "go:remind")
	btnReminders := m.Data("⏰ 알림 목록", "go:reminders")
	btnDeleteAll := m.Data("🧹 전체 삭제", "confirm:delete_all")
	m.Inline(
		m.Row(btnAdd),
		m.Row(btnList, btnToday),
		m.Row(btnRemind, btnReminders),
		m.Row(btnDeleteAll),
	)
	return m
}

func (h *botHandlers) sendMenu(c telebot.Context) error {
	return c.Send("메뉴를 선택하세요:", mainMenuMarkup())
}

func (h *botHandlers) onAdd(ctx context.Context, c telebot.Context) error {
	senderID := c.Sender().ID
	logCtx := h.logger.WithFields(logrus.Fields{"handler": "/add", "sender_id": senderID})

	args := c.Args()
	if len(args) == 0 {
		return c.Send("사용법: /add [자연어 일정]\n예) /add 다음주 월 10시 고객 미팅")
	}
	text := strings.Join(args, " ")

	sch, err := h.scheduleService.AddFromText(ctx, senderID, text)
	if err != nil {
		logCtx.WithError(err).Error("Failed to add schedule")
		return c.Send("일정 등록 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요.")
	}
	logCtx.WithFields(logrus.Fields{"schedule_id": sch.ID, "date": sch.Date}).Info("Schedule added")

	m := &telebot.ReplyMarkup{}
	btnRemind := m.Data("🔔 알림 설정", fmt.Sprintf("rmenu:%d", sch.ID))
	btnUndo := m.Data("🗑 되돌리기", fmt.Sprintf("del:%d", sch.ID))
	m.Inline(m.Row(btnRemind, btnUndo))

	body := fmt.Sprintf("등록 완료: %s %s %s %s",
		sch.Date, sch.TimeLabel(), sch.Title, schedule.DDayLabel(sch.Date, h.today()))
	return c.Send(body, m)
}

func (h *botHandlers) sendScheduleList(ctx context.Context, c telebot.Context) error {
	senderID := c.Sender().ID
	schedules, err := h.scheduleService.List(ctx, senderID)
	if err != nil {
		h.logger.WithError(err).WithField("sender_id", senderID).Error("Failed to list schedules")
		return c.Send("일정 조회 중 오류가 발생했습니다.")
	}
	if len(schedules) == 0 {
		return c.Send("등록된 일정이 없습니다.")
	}
	if len(schedules) > maxListedSchedules {
		schedules = schedules[:maxListedSchedules]
	}

	today := h.today()
	var lines []string
	m := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	for _, sch := range schedules {
		timePart := ""
		if sch.Time.Valid {
			timePart = sch.Time.String + " "
		}
		lines = append(lines, fmt.Sprintf("• %s %s%s %s",
			sch.Date, timePart, sch.Title, schedule.DDayLabel(sch.Date, today)))
		rows = append(rows, m.Row(
			m.Data("🔔 알림", fmt.Sprintf("rmenu:%d", sch.ID)),
			m.Data("ℹ️ 상세", fmt.Sprintf("view:%d", sch.ID)),
			m.Data("🗑 삭제", fmt.Sprintf("del:%d", sch.ID)),
		))
	}
	m.Inline(rows...)
	return c.Send(strings.Join(lines, "\n"), m)
}

func (h *botHandlers) sendTodayList(ctx context.Context, c telebot.Context) error {
	senderID := c.Sender().ID
	todayStr := h.today().Format(schedule.DateLayout)
	schedules, err := h.scheduleService.ListByDate(ctx, senderID, todayStr)
	if err != nil {
		h.logger.WithError(err).WithField("sender_id", senderID).Error("Failed to list today's schedules")
		return c.Send("일정 조회 중 오류가 발생했습니다.")
	}
	if len(schedules) == 0 {
		return c.Send("오늘 일정 없음")
	}

	today := h.today()
	var lines []string
	m := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	for _, sch := range schedules {
		timePart := ""
		if sch.Time.Valid {
			timePart = sch.Time.String + " "
		}
		lines = append(lines, fmt.Sprintf("• %s%s %s",
			timePart, sch.Title, schedule.DDayLabel(sch.Date, today)))
		rows = append(rows, m.Row(
			m.Data("🔔 알림", fmt.Sprintf("rmenu:%d", sch.ID)),
			m.Data("🗑 삭제", fmt.Sprintf("del:%d", sch.ID)),
		))
	}
	m.Inline(rows...)
	return c.Send(strings.Join(lines, "\n"), m)
}

func (h *botHandlers) onDelete(ctx context.Context, c telebot.Context) error {
	senderID := c.Sender().ID
	args := c.Args()
	if len(args) != 1 {
		return c.Send("사용법: /delete [id]")
	}
	scheduleID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send("올바른 숫자 ID를 입력하세요.")
	}

	err = h.scheduleService.Delete(ctx, senderID, scheduleID)
	if err != nil {
		if errors.Is(err, idb.ErrScheduleNotFound) {
			return c.Send("삭제 실패/권한 없음")
		}
		h.logger.WithError(err).WithFields(logrus.Fields{
			"sender_id": senderID, "schedule_id": scheduleID,
		}).Error("Failed to delete schedule")
		return c.Send("일정 삭제 중 오류가 발생했습니다.")
	}
	return c.Send("삭제 완료")
}

func (h *botHandlers) onDeleteAll(ctx context.Context, c telebot.Context) error {
	senderID := c.Sender().ID
	count, err := h.scheduleService.DeleteAll(ctx, senderID)
	if err != nil {
		h.logger.WithError(err).WithField("sender_id", senderID).Error("Failed to delete all schedules")
		return c.Send("일정 삭제 중 오류가 발생했습니다.")
	}
	return c.Send(fmt.Sprintf("전체 삭제 완료 (%d건)", count))
}

func remindPresetMarkup() *telebot.ReplyMarkup {
	m := &telebot.ReplyMarkup{}
	btnDaily := m.Data("매일 09:00 오늘 일정", "rem:매일 09:00 오늘 일정")
	btnWeekly := m.Data("매주 월 08:30 이번주 요약", "rem:매주 월 08:30 이번주 일정")
	btnList := m.Data("⏰ 알림 목록 보기", "rlist")
	m.Inline(m.Row(btnDaily), m.Row(btnWeekly), m.Row(btnList))
	return m
}

func (h *botHandlers) onRemind(c telebot.Context) error {
	senderID := c.Sender().ID
	logCtx := h.logger.WithFields(logrus.Fields{"handler": "/remind", "sender_id": senderID})

	args := c.Args()
	if len(args) == 0 {
		return c.Send("자연어로도 등록 가능: 예) /remind 매주 금요일 09:00 오늘 일정", remindPresetMarkup())
	}

	text := strings.Join(args, " ")
	confirmation, err := h.engine.ScheduleCustom(senderID, text)
	if err != nil {
		var patternErr *recurrence.PatternError
		if errors.As(err, &patternErr) {
			logCtx.WithField("input", text).Warn("Unsupported reminder pattern")
			return c.Send(fmt.Sprintf("알림 파싱 실패: %s", patternErr.Reason))
		}
		logCtx.WithError(err).Error("Failed to register recurring reminder")
		return c.Send("알림 등록 중 오류가 발생했습니다.")
	}
	logCtx.Info("Recurring reminder registered")
	return c.Send(fmt.Sprintf("알림 등록 완료: %s", confirmation))
}

func (h *botHandlers) sendReminderList(ctx context.Context, c telebot.Context) error {
	senderID := c.Sender().ID
	rules, err := h.scheduleService.ListReminders(ctx, senderID)
	if err != nil {
		h.logger.WithError(err).WithField("sender_id", senderID).Error("Failed to list reminders")
		return c.Send("알림 조회 중 오류가 발생했습니다.")
	}
	if len(rules) == 0 {
		return c.Send("등록된 알림이 없습니다.")
	}
	if len(rules) > maxListedReminders {
		rules = rules[:maxListedReminders]
	}

	today := h.today()
	var lines []string
	m := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	for _, rule := range rules {
		timePart := "시간 미정"
		if rule.Time.Valid {
			timePart = rule.Time.String
		}
		lines = append(lines, fmt.Sprintf("• %s %s %s %s [%s]",
			rule.Date, timePart, rule.Title,
			schedule.DDayLabel(rule.Date, today), OffsetLabel(rule.OffsetMinutes)))
		rows = append(rows, m.Row(
			m.Data("🗑 알림삭제", fmt.Sprintf("rdel:%d", rule.ID)),
			m.Data("ℹ️ 일정보기", fmt.Sprintf("view:%d", rule.ScheduleID)),
		))
	}
	rows = append(rows, m.Row(m.Data("🔄 새로고침", "rlist"), m.Data("닫기", "go:menu")))
	m.Inline(rows...)
	return c.Send(strings.Join(lines, "\n"), m)
}
