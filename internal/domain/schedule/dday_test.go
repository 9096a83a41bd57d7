package schedule

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDDayLabel(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	today := time.Date(2024, time.April, 10, 15, 30, 0, 0, loc)

	cases := []struct {
		id       string
		date     string
		expected string
	}{
		{id: "same day", date: "2024-04-10", expected: "(D-DAY)"},
		{id: "tomorrow", date: "2024-04-11", expected: "(D-1)"},
		{id: "one week ahead", date: "2024-04-17", expected: "(D-7)"},
		{id: "yesterday", date: "2024-04-09", expected: "(D+1)"},
		{id: "far past", date: "2024-03-01", expected: "(D+40)"},
		{id: "unparseable date", date: "not-a-date", expected: ""},
	}
	for _, testcase := range cases {
		t.Run(testcase.id, func(t *testing.T) {
			require.Equal(t, testcase.expected, DDayLabel(testcase.date, today))
		})
	}
}

func TestTimeLabel(t *testing.T) {
	withTime := &Schedule{Time: sql.NullString{String: "10:00", Valid: true}}
	require.Equal(t, "10:00", withTime.TimeLabel())

	withoutTime := &Schedule{}
	require.Equal(t, "시간 미정", withoutTime.TimeLabel())
}
