package dashboard

import "time"

// Windows are the reporting periods a summary compares, all in UTC.
type Windows struct {
	WeekStart      time.Time
	LastWeekStart  time.Time
	MonthStart     time.Time
	LastMonthStart time.Time
	NextMonthStart time.Time
}

// WindowsAt returns the ISO week (Monday 00:00) and calendar month
// containing now, plus the periods before them.
func WindowsAt(now time.Time) Windows {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// time.Weekday starts on Sunday.
	sinceMonday := (int(day.Weekday()) + 6) % 7
	weekStart := day.AddDate(0, 0, -sinceMonday)

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Windows{
		WeekStart:      weekStart,
		LastWeekStart:  weekStart.AddDate(0, 0, -7),
		MonthStart:     monthStart,
		LastMonthStart: monthStart.AddDate(0, -1, 0),
		NextMonthStart: monthStart.AddDate(0, 1, 0),
	}
}
