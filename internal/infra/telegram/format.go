package telegram

import (
	"fmt"
)

// OffsetLabel renders a reminder offset in the Korean wording used across
// every listing and confirmation message.
func OffsetLabel(offsetMinutes int) string {
	switch {
	case offsetMinutes == 0:
		return "정각"
	case offsetMinutes == 30:
		return "30분 전"
	case offsetMinutes == 60:
		return "1시간 전"
	case offsetMinutes == 1440:
		return "하루 전 09:00"
	case offsetMinutes%1440 == 0:
		return fmt.Sprintf("%d일 전", offsetMinutes/1440)
	case offsetMinutes%60 == 0:
		return fmt.Sprintf("%d시간 전", offsetMinutes/60)
	default:
		return fmt.Sprintf("%d분 전", offsetMinutes)
	}
}
