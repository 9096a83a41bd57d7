// Package recurrence parses Korean recurring-reminder commands
// ("매일 09:00 오늘 일정", "매주 금요일 09:00 주간 요약") into a normalized
// descriptor for the reminder engine.
package recurrence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Cadence distinguishes daily from weekly reminders.
type Cadence string

const (
	CadenceDaily  Cadence = "DAILY"
	CadenceWeekly Cadence = "WEEKLY"
)

// DefaultHour and DefaultMinute apply when a weekly command omits the time.
const (
	DefaultHour   = 9
	DefaultMinute = 0
)

// Descriptor is the normalized form of a recurring-reminder command.
type Descriptor struct {
	Cadence Cadence
	Weekday time.Weekday // meaningful only for CadenceWeekly
	Hour    int
	Minute  int
	Message string
}

// TimeLabel returns the descriptor's time of day as HH:MM.
func (d Descriptor) TimeLabel() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// PatternError reports input that matches none of the supported reminder
// patterns. Its message is meant to be shown to the user verbatim.
type PatternError struct {
	Reason string
}

func (e *PatternError) Error() string {
	return e.Reason
}

const (
	usageReason       = "지원되는 패턴이 아닙니다. (예: '매일 09:00 오늘 일정', '매주 월요일 08:30 이번주 일정')"
	invalidTimeReason = "시간 형식이 올바르지 않습니다."
)

var koreanWeekdays = map[string]time.Weekday{
	"월": time.Monday,
	"화": time.Tuesday,
	"수": time.Wednesday,
	"목": time.Thursday,
	"금": time.Friday,
	"토": time.Saturday,
	"일": time.Sunday,
}

var koreanWeekdayNames = map[time.Weekday]string{
	time.Monday:    "월",
	time.Tuesday:   "화",
	time.Wednesday: "수",
	time.Thursday:  "목",
	time.Friday:    "금",
	time.Saturday:  "토",
	time.Sunday:    "일",
}

// KoreanWeekday returns the single-character Korean name for a weekday.
func KoreanWeekday(wd time.Weekday) string {
	return koreanWeekdayNames[wd]
}

var (
	reDaily      = regexp.MustCompile(`^매일\s+(\d{1,2}):(\d{2})\s*(.*)$`)
	reWeeklyTime = regexp.MustCompile(`^매주\s+([월화수목금토일])(?:요일)?\s+(\d{1,2}):(\d{2})\s*(.*)$`)
	reWeekly     = regexp.MustCompile(`^매주\s+([월화수목금토일])(?:요일)?\s*(.*)$`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// Parse converts a recurring-reminder command into a Descriptor.
// Anything that matches no supported pattern, names an unknown weekday, or
// carries an out-of-range time fails with a *PatternError.
func Parse(text string) (Descriptor, error) {
	s := strings.TrimSpace(reSpaces.ReplaceAllString(text, " "))

	if m := reDaily.FindStringSubmatch(s); m != nil {
		hour, minute := atoi(m[1]), atoi(m[2])
		if !validClock(hour, minute) {
			return Descriptor{}, &PatternError{Reason: invalidTimeReason}
		}
		return Descriptor{
			Cadence: CadenceDaily,
			Hour:    hour,
			Minute:  minute,
			Message: strings.TrimSpace(m[3]),
		}, nil
	}

	if m := reWeeklyTime.FindStringSubmatch(s); m != nil {
		hour, minute := atoi(m[2]), atoi(m[3])
		if !validClock(hour, minute) {
			return Descriptor{}, &PatternError{Reason: invalidTimeReason}
		}
		return Descriptor{
			Cadence: CadenceWeekly,
			Weekday: koreanWeekdays[m[1]],
			Hour:    hour,
			Minute:  minute,
			Message: strings.TrimSpace(m[4]),
		}, nil
	}

	if m := reWeekly.FindStringSubmatch(s); m != nil {
		return Descriptor{
			Cadence: CadenceWeekly,
			Weekday: koreanWeekdays[m[1]],
			Hour:    DefaultHour,
			Minute:  DefaultMinute,
			Message: strings.TrimSpace(m[2]),
		}, nil
	}

	return Descriptor{}, &PatternError{Reason: usageReason}
}

func validClock(hour, minute int) bool {
	return hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
