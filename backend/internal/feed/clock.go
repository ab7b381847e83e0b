package feed

import "time"

// dayKeyFormat gives day granularity: two instants are the same calendar
// day iff their keys match in the reference timezone.
const dayKeyFormat = "20060102"

// dayKey extracts the calendar day of t in loc
func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayKeyFormat)
}

// dayBounds returns the [start, end) instants of t's calendar day in loc
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
