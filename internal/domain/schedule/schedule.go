package schedule

import (
	"database/sql"
	"time"
)

const (
	// DateLayout is the wire format for Schedule.Date.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format for Schedule.Time.
	TimeLayout = "15:04"
	// DefaultTitle is used when extraction yields no usable title.
	DefaultTitle = "일정"
)

// Schedule represents a single user event.
// Corresponds to the 'schedules' table.
type Schedule struct {
	ID          int64
	OwnerID     int64 // Telegram user ID; every query is scoped to it
	Title       string
	Description string
	Date        string         // YYYY-MM-DD, always present
	Time        sql.NullString // HH:MM, invalid when the time is unspecified
	CreatedAt   time.Time
}

// TimeLabel returns the HH:MM string or the Korean "time undecided" placeholder.
func (s *Schedule) TimeLabel() string {
	if s.Time.Valid {
		return s.Time.String
	}
	return "시간 미정"
}
