// Package kdate resolves relative and absolute Korean date/time expressions
// ("내일", "다음주 월 10시", "3월 5일 오후 2시 30분") against a reference day.
//
// Resolution is an ordered rule cascade: each rule is a (pattern, resolve)
// pair tried in a fixed priority order, and the first rule that both matches
// and yields a valid value wins. The order is load-bearing: several callers
// depend on e.g. 내일모레 taking priority over the bare 모레 token.
package kdate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day without a date.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses an HH:MM string into a Clock.
func ParseClock(s string) (Clock, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, false
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, true
}

type dateRule struct {
	re      *regexp.Regexp
	resolve func(m []string, today time.Time) (time.Time, bool)
}

type timeRule struct {
	re      *regexp.Regexp
	resolve func(m []string) (Clock, bool)
}

func relativeDay(offset int) func([]string, time.Time) (time.Time, bool) {
	return func(_ []string, today time.Time) (time.Time, bool) {
		return today.AddDate(0, 0, offset), true
	}
}

var dateRules = []dateRule{
	// Relative day words. The combined 내일모레 must come before 모레 and 내일.
	{regexp.MustCompile(`내일\s*모레`), relativeDay(2)},
	{regexp.MustCompile(`모레`), relativeDay(2)},
	{regexp.MustCompile(`내일`), relativeDay(1)},
	{regexp.MustCompile(`어제`), relativeDay(-1)},
	{regexp.MustCompile(`오늘`), relativeDay(0)},

	// Absolute numeric date: 2024-03-05, 2024/03/05, 2024.03.05.
	{regexp.MustCompile(`(\d{4})\s*[-/.]\s*(\d{1,2})\s*[-/.]\s*(\d{1,2})`), resolveAbsolute},

	// M월 D일: current year, rolling to next year when the month already passed.
	{regexp.MustCompile(`(\d{1,2})월\s*(\d{1,2})일`), resolveMonthDay},

	// D일 alone: current month, rolling to the next month when passed or invalid.
	{regexp.MustCompile(`(\d{1,2})일`), resolveDayOnly},
}

func resolveAbsolute(m []string, today time.Time) (time.Time, bool) {
	year := atoi(m[1])
	month := atoi(m[2])
	day := atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > daysIn(year, time.Month(month), today.Location()) {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, today.Location()), true
}

func resolveMonthDay(m []string, today time.Time) (time.Time, bool) {
	month := atoi(m[1])
	day := atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	year := today.Year()
	if time.Month(month) < today.Month() {
		year++
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, today.Location()), true
}

func resolveDayOnly(m []string, today time.Time) (time.Time, bool) {
	day := atoi(m[1])
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	year, month := today.Year(), today.Month()
	if day < today.Day() || day > daysIn(year, month, today.Location()) {
		month++ // time.Date normalizes a December overflow into next January
	}
	return time.Date(year, month, day, 0, 0, 0, 0, today.Location()), true
}

var timeRules = []timeRule{
	{regexp.MustCompile(`정오`), fixedClock(12, 0)},
	{regexp.MustCompile(`자정`), fixedClock(0, 0)},

	// (오전|오후) H시 M분
	{regexp.MustCompile(`(오전|오후)\s*(\d{1,2})시\s*(\d{1,2})분`), func(m []string) (Clock, bool) {
		return meridiemClock(m[1], atoi(m[2]), atoi(m[3]))
	}},

	// H시 M분 without meridiem: taken literally, no 12-hour adjustment.
	// A colloquial day-part qualifier (낮 2시, 새벽 3시) is not a supported
	// meridiem, so its presence fails the rule instead of guessing.
	{regexp.MustCompile(`(새벽|아침|낮|저녁|밤)?\s*(\d{1,2})시\s*(\d{1,2})분`), func(m []string) (Clock, bool) {
		if m[1] != "" {
			return Clock{}, false
		}
		return literalClock(atoi(m[2]), atoi(m[3]))
	}},

	// (오전|오후) H시
	{regexp.MustCompile(`(오전|오후)\s*(\d{1,2})시`), func(m []string) (Clock, bool) {
		return meridiemClock(m[1], atoi(m[2]), 0)
	}},

	// H시 alone, same day-part qualifier restriction as above.
	{regexp.MustCompile(`(새벽|아침|낮|저녁|밤)?\s*(\d{1,2})시`), func(m []string) (Clock, bool) {
		if m[1] != "" {
			return Clock{}, false
		}
		return literalClock(atoi(m[2]), 0)
	}},
}

func fixedClock(hour, minute int) func([]string) (Clock, bool) {
	return func(_ []string) (Clock, bool) {
		return Clock{Hour: hour, Minute: minute}, true
	}
}

func meridiemClock(meridiem string, hour, minute int) (Clock, bool) {
	if meridiem == "오후" && hour != 12 {
		hour += 12
	} else if meridiem == "오전" && hour == 12 {
		hour = 0
	}
	return literalClock(hour, minute)
}

func literalClock(hour, minute int) (Clock, bool) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, false
	}
	return Clock{Hour: hour, Minute: minute}, true
}

// ResolveDate extracts a calendar date from text, relative to today.
// When no rule matches, today is returned. The result is a midnight instant
// in today's location.
func ResolveDate(text string, today time.Time) time.Time {
	norm := Normalize(text)
	base := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	for _, r := range dateRules {
		m := r.re.FindStringSubmatch(norm)
		if m == nil {
			continue
		}
		if d, ok := r.resolve(m, base); ok {
			return d
		}
	}
	return base
}

// ResolveTime extracts a clock time from text. The second return value is
// false when the text carries no recognizable time expression.
func ResolveTime(text string) (Clock, bool) {
	norm := Normalize(text)
	for _, r := range timeRules {
		m := r.re.FindStringSubmatch(norm)
		if m == nil {
			continue
		}
		if c, ok := r.resolve(m); ok {
			return c, true
		}
	}
	return Clock{}, false
}

var reDateTimeTokens = regexp.MustCompile(strings.Join([]string{
	`내일\s*모레`,
	`모레`,
	`내일`,
	`오늘`,
	`어제`,
	`이번\s*주`,
	`다음\s*주`,
	`정오`,
	`자정`,
	`오전`,
	`오후`,
	`\d{4}\s*[-/.]\s*\d{1,2}\s*[-/.]\s*\d{1,2}`,
	`\d{1,2}월\s*\d{1,2}일`,
	`\d{1,2}\s*일`,
	`\d{1,2}\s*시(\s*\d{1,2}\s*분)?`,
	`\d{1,2}:\d{2}`,
}, "|"))

// StripTokens removes every date/time token the resolver understands and
// collapses the remaining whitespace. The residue is the candidate
// title/description text.
func StripTokens(text string) string {
	return Normalize(reDateTimeTokens.ReplaceAllString(text, " "))
}

var reSpaces = regexp.MustCompile(`\s+`)

// Normalize collapses runs of whitespace to single spaces and trims the ends.
func Normalize(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
