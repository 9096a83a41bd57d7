package reminder

import (
	"database/sql"
	"time"
)

// Rule links a schedule to a future one-shot notification.
// Corresponds to the 'reminders' table. OffsetMinutes counts minutes before
// the event's own time; 0 fires at the event time itself.
type Rule struct {
	ID            int64
	OwnerID       int64
	ScheduleID    int64
	OffsetMinutes int
	CreatedAt     time.Time
}

// DetailedRule is a Rule joined with the fields of its schedule, for listings.
type DetailedRule struct {
	Rule
	Title       string
	Description string
	Date        string
	Time        sql.NullString
}
