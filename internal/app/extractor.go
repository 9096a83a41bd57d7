package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"schedule_secretary_bot/internal/domain/ai"
	"schedule_secretary_bot/internal/domain/kdate"
	"schedule_secretary_bot/internal/domain/schedule"

	"github.com/sirupsen/logrus"
)

// ScheduleExtractor turns free-form Korean text into a Schedule.
// The rule-based resolver always produces a usable fallback; when the
// language-model collaborator is configured, one bounded attempt refines it.
// Extraction never fails: any collaborator or validation problem selects the
// fallback path instead of propagating.
type ScheduleExtractor struct {
	aiClient ai.Client
	loc      *time.Location
	logger   *logrus.Entry
	now      func() time.Time
}

func NewScheduleExtractor(aiClient ai.Client, loc *time.Location, logger *logrus.Entry) *ScheduleExtractor {
	return &ScheduleExtractor{
		aiClient: aiClient,
		loc:      loc,
		logger:   logger,
		now:      func() time.Time { return time.Now() },
	}
}

// Extract resolves text into a Schedule owned by ownerID. The returned
// schedule is not persisted; the caller stores it.
func (e *ScheduleExtractor) Extract(ctx context.Context, ownerID int64, text string) *schedule.Schedule {
	today := e.now().In(e.loc)
	fallback := e.ruleBasedExtract(ownerID, text, today)

	if e.aiClient == nil || !e.aiClient.Available() {
		return fallback
	}

	refined, err := e.modelExtract(ctx, ownerID, text, today, fallback)
	if err != nil {
		e.logger.WithError(err).WithField("owner_id", ownerID).
			Warn("Language-model extraction failed, using rule-based fallback")
		return fallback
	}
	return refined
}

// ruleBasedExtract is the deterministic path: resolver for date/time, the
// residual text split into title (first token) and description (rest).
func (e *ScheduleExtractor) ruleBasedExtract(ownerID int64, text string, today time.Time) *schedule.Schedule {
	s := &schedule.Schedule{
		OwnerID: ownerID,
		Title:   schedule.DefaultTitle,
		Date:    kdate.ResolveDate(text, today).Format(schedule.DateLayout),
	}
	if clock, ok := kdate.ResolveTime(text); ok {
		s.Time = sql.NullString{String: clock.String(), Valid: true}
	}

	residual := kdate.StripTokens(text)
	if fields := strings.Fields(residual); len(fields) > 0 {
		s.Title = fields[0]
		s.Description = strings.Join(fields[1:], " ")
	}
	return s
}

// modelSchedule is the JSON shape the model is instructed to emit.
type modelSchedule struct {
	Title       string  `json:"title"`
	Date        string  `json:"date"`
	Time        *string `json:"time"`
	Description string  `json:"description"`
}

var reJSONObject = regexp.MustCompile(`(?s)\{.*\}`)

func (e *ScheduleExtractor) modelExtract(ctx context.Context, ownerID int64, text string, today time.Time, fallback *schedule.Schedule) (*schedule.Schedule, error) {
	systemPrompt := "너는 한국어 자연어 일정을 JSON으로 구조화하는 일정 파서야. " +
		"출력은 오직 하나의 JSON 객체만 반환해. 어떠한 설명/문장도 넣지 마. " +
		"규칙:\n" +
		"1) date는 Asia/Seoul 기준 오늘 날짜를 기준으로 해석한 절대 날짜(YYYY-MM-DD)\n" +
		"2) time은 HH:MM(24h) 또는 null\n" +
		"3) title은 간결한 명사형으로(예: '오픽 결과 발표', '고객 미팅')\n" +
		"4) description은 있으면 짧게, 없으면 빈 문자열\n"
	userPrompt := fmt.Sprintf(
		"오늘(Asia/Seoul) 날짜: %s\n사용자 입력: \"%s\"\n"+
			"반드시 아래 스키마로만 JSON을 출력하라:\n"+
			`{ "title": "string", "date": "YYYY-MM-DD", "time": "HH:MM" | null, "description": "string" }`,
		today.Format(schedule.DateLayout), text,
	)

	content, err := e.aiClient.StructuredExtract(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("structured extraction call failed: %w", err)
	}

	raw := reJSONObject.FindString(content)
	if raw == "" {
		return nil, fmt.Errorf("model reply contains no JSON object")
	}
	var parsed modelSchedule
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("model reply is not valid JSON: %w", err)
	}

	s := &schedule.Schedule{
		OwnerID:     ownerID,
		Description: strings.TrimSpace(parsed.Description),
	}

	// Untrusted date: must be a real ISO calendar date, else the fallback's.
	s.Date = strings.TrimSpace(parsed.Date)
	if !isValidDate(s.Date) {
		s.Date = fallback.Date
	}

	// Untrusted time: invalid values are nulled rather than rejected.
	if parsed.Time != nil && isValidTime(strings.TrimSpace(*parsed.Time)) {
		s.Time = sql.NullString{String: strings.TrimSpace(*parsed.Time), Valid: true}
	} else if parsed.Time == nil {
		s.Time = fallback.Time
	}

	// The model tends to leak date/time tokens into the title; strip them.
	title := kdate.StripTokens(parsed.Title)
	if title == "" {
		title = fallback.Title
	}
	if title == "" {
		title = schedule.DefaultTitle
	}
	s.Title = title

	return s, nil
}

func isValidDate(s string) bool {
	if s == "" {
		return false
	}
	_, err := time.Parse(schedule.DateLayout, s)
	return err == nil
}

func isValidTime(s string) bool {
	_, ok := kdate.ParseClock(s)
	return ok
}
