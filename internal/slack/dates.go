package slack

import "time"

// DateWindow returns the default collection window: the previous day,
// except on Mondays where it spans Friday through Sunday so weekend
// requests are not lost.
func DateWindow(now time.Time) (time.Time, time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	start := day.AddDate(0, 0, -1)
	if now.Weekday() == time.Monday {
		start = day.AddDate(0, 0, -3)
	}
	end := day.Add(-time.Second)
	return start, end
}

// ParseDay parses a YYYY-MM-DD day boundary in local time.
func ParseDay(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", value, loc)
}
