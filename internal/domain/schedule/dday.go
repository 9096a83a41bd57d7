package schedule

import (
	"fmt"
	"time"
)

// DDayLabel formats the day-count suffix shown next to every displayed date:
// (D-DAY) when the date is today, (D-N) when it is N days ahead, (D+N) when
// it is N days past. An unparseable date yields an empty label.
func DDayLabel(dateStr string, today time.Time) string {
	target, err := time.ParseInLocation(DateLayout, dateStr, today.Location())
	if err != nil {
		return ""
	}
	base := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	delta := int(target.Sub(base).Hours() / 24)
	switch {
	case delta == 0:
		return "(D-DAY)"
	case delta > 0:
		return fmt.Sprintf("(D-%d)", delta)
	default:
		return fmt.Sprintf("(D+%d)", -delta)
	}
}
