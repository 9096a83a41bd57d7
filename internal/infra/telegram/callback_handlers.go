// internal/infra/telegram/callback_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"schedule_secretary_bot/internal/domain/schedule"
	idb "schedule_secretary_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// onCallback dispatches inline-button presses by data prefix. telebot wraps
// raw button data with a leading \f, which is trimmed before matching.
func (h *botHandlers) onCallback(ctx context.Context, c telebot.Context) error {
	data := strings.TrimPrefix(c.Callback().Data, "\f")
	senderID := c.Sender().ID
	logCtx := h.logger.WithFields(logrus.Fields{"handler": "callback", "sender_id": senderID, "data": data})

	if err := c.Respond(); err != nil {
		logCtx.WithError(err).Debug("Failed to acknowledge callback")
	}

	switch {
	case strings.HasPrefix(data, "rmenu:"):
		scheduleID, err := parseIDSuffix(data, "rmenu:")
		if err != nil {
			logCtx.Warn("Malformed rmenu callback")
			return c.Edit("잘못된 요청입니다.")
		}
		return c.Edit("알림 시점을 선택하세요:", offsetMenuMarkup(scheduleID))

	case strings.HasPrefix(data, "rset:"):
		return h.onSetReminder(ctx, c, data, logCtx)

	case strings.HasPrefix(data, "rdel:"):
		ruleID, err := parseIDSuffix(data, "rdel:")
		if err != nil {
			logCtx.Warn("Malformed rdel callback")
			return c.Edit("잘못된 요청입니다.")
		}
		if err := h.scheduleService.DeleteReminder(ctx, senderID, ruleID); err != nil {
			if errors.Is(err, idb.ErrReminderNotFound) {
				return c.Edit("알림 삭제 실패/권한 없음")
			}
			logCtx.WithError(err).Error("Failed to delete reminder")
			return c.Edit("알림 삭제 중 오류가 발생했습니다.")
		}
		return c.Edit("알림 삭제 완료")

	case strings.HasPrefix(data, "rdelall:"):
		scheduleID, err := parseIDSuffix(data, "rdelall:")
		if err != nil {
			logCtx.Warn("Malformed rdelall callback")
			return c.Edit("잘못된 요청입니다.")
		}
		if err := h.scheduleService.DeleteRemindersForSchedule(ctx, senderID, scheduleID); err != nil {
			logCtx.WithError(err).Error("Failed to delete reminders for schedule")
			return c.Edit("알림 삭제 중 오류가 발생했습니다.")
		}
		return c.Edit("해당 일정의 알림을 모두 삭제했습니다.")

	case strings.HasPrefix(data, "del:"):
		scheduleID, err := parseIDSuffix(data, "del:")
		if err != nil {
			logCtx.Warn("Malformed del callback")
			return c.Edit("잘못된 요청입니다.")
		}
		if err := h.scheduleService.Delete(ctx, senderID, scheduleID); err != nil {
			if errors.Is(err, idb.ErrScheduleNotFound) {
				return c.Edit("삭제 실패/권한 없음")
			}
			logCtx.WithError(err).Error("Failed to delete schedule")
			return c.Edit("일정 삭제 중 오류가 발생했습니다.")
		}
		return c.Edit("삭제 완료")

	case strings.HasPrefix(data, "view:"):
		return h.onViewSchedule(ctx, c, data, logCtx)

	case strings.HasPrefix(data, "rem:"):
		command := strings.TrimPrefix(data, "rem:")
		if _, err := h.engine.ScheduleCustom(senderID, command); err != nil {
			logCtx.WithError(err).Error("Failed to register preset reminder")
			return c.Edit("알림 등록 중 오류가 발생했습니다.")
		}
		return c.Edit("알림 등록 완료")

	case data == "rlist":
		return h.sendReminderList(ctx, c)

	case data == "confirm:delete_all":
		m := &telebot.ReplyMarkup{}
		btnYes := m.Data("✅ 예, 모두 삭제", "do:delete_all")
		btnNo := m.Data("❌ 취소", "go:menu")
		m.Inline(m.Row(btnYes), m.Row(btnNo))
		return c.Edit("정말 모든 일정을 삭제할까요?", m)

	case data == "do:delete_all":
		count, err := h.scheduleService.DeleteAll(ctx, senderID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to delete all schedules")
			return c.Edit("일정 삭제 중 오류가 발생했습니다.")
		}
		return c.Edit(fmt.Sprintf("전체 삭제 완료 (%d건)", count))

	case data == "go:add":
		return c.Edit("일정을 자연어로 입력해주세요.\n예) /add 다음주 월 10시 고객 미팅")

	case data == "go:list":
		return h.sendScheduleList(ctx, c)

	case data == "go:today":
		return h.sendTodayList(ctx, c)

	case data == "go:remind":
		return c.Edit("알림 프리셋:", remindPresetMarkup())

	case data == "go:reminders":
		return h.sendReminderList(ctx, c)

	case data == "go:menu":
		return c.Edit("메뉴를 선택하세요:", mainMenuMarkup())
	}

	logCtx.Warn("Unhandled callback data")
	return nil
}

// offsetMenuMarkup offers the fixed reminder offsets for one schedule.
func offsetMenuMarkup(scheduleID int64) *telebot.ReplyMarkup {
	m := &telebot.ReplyMarkup{}
	btnAtTime := m.Data("⏰ 일정 시간", fmt.Sprintf("rset:%d:0", scheduleID))
	btn30 := m.Data("🕧 30분 전", fmt.Sprintf("rset:%d:30", scheduleID))
	btn60 := m.Data("🕐 1시간 전", fmt.Sprintf("rset:%d:60", scheduleID))
	btnDayBefore := m.Data("🌙 하루 전 09:00", fmt.Sprintf("rset:%d:1440", scheduleID))
	btnClearAll := m.Data("🔕 이 일정 알림 해제", fmt.Sprintf("rdelall:%d", scheduleID))
	btnClose := m.Data("❌ 닫기", "go:menu")
	m.Inline(m.Row(btnAtTime), m.Row(btn30, btn60), m.Row(btnDayBefore), m.Row(btnClearAll), m.Row(btnClose))
	return m
}

func (h *botHandlers) onSetReminder(ctx context.Context, c telebot.Context, data string, logCtx *logrus.Entry) error {
	senderID := c.Sender().ID
	parts := strings.Split(data, ":") // rset:<scheduleID>:<offsetMinutes>
	if len(parts) != 3 {
		logCtx.Warn("Malformed rset callback")
		return c.Edit("잘못된 요청입니다.")
	}
	scheduleID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return c.Edit("잘못된 요청입니다.")
	}
	offsetMinutes, err := strconv.Atoi(parts[2])
	if err != nil || offsetMinutes < 0 {
		return c.Edit("잘못된 요청입니다.")
	}

	sch, err := h.scheduleService.Get(ctx, senderID, scheduleID)
	if err != nil {
		if errors.Is(err, idb.ErrScheduleNotFound) {
			return c.Edit("해당 일정을 찾을 수 없습니다.")
		}
		logCtx.WithError(err).Error("Failed to load schedule for reminder")
		return c.Edit("알림 설정 중 오류가 발생했습니다.")
	}

	if err := h.engine.ScheduleForSchedule(ctx, senderID, sch, offsetMinutes); err != nil {
		logCtx.WithError(err).Error("Failed to register reminder")
		return c.Edit("알림 설정 중 오류가 발생했습니다.")
	}
	logCtx.WithFields(logrus.Fields{"schedule_id": scheduleID, "offset_minutes": offsetMinutes}).
		Info("Reminder registered via offset menu")
	return c.Edit(fmt.Sprintf("알림 설정 완료: %s", OffsetLabel(offsetMinutes)))
}

func (h *botHandlers) onViewSchedule(ctx context.Context, c telebot.Context, data string, logCtx *logrus.Entry) error {
	senderID := c.Sender().ID
	scheduleID, err := parseIDSuffix(data, "view:")
	if err != nil {
		logCtx.Warn("Malformed view callback")
		return c.Edit("잘못된 요청입니다.")
	}

	sch, err := h.scheduleService.Get(ctx, senderID, scheduleID)
	if err != nil {
		if errors.Is(err, idb.ErrScheduleNotFound) {
			return c.Edit("해당 일정을 찾을 수 없습니다.")
		}
		logCtx.WithError(err).Error("Failed to load schedule for view")
		return c.Edit("일정 조회 중 오류가 발생했습니다.")
	}

	m := &telebot.ReplyMarkup{}
	btnRemind := m.Data("🔔 알림", fmt.Sprintf("rmenu:%d", sch.ID))
	btnDelete := m.Data("🗑 삭제", fmt.Sprintf("del:%d", sch.ID))
	m.Inline(m.Row(btnRemind, btnDelete))

	timePart := ""
	if sch.Time.Valid {
		timePart = " " + sch.Time.String
	}
	body := fmt.Sprintf("📅 %s%s\n📝 %s\n%s\n%s",
		sch.Date, timePart, sch.Title, sch.Description, schedule.DDayLabel(sch.Date, h.today()))
	return c.Edit(body, m)
}

func parseIDSuffix(data, prefix string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
}
