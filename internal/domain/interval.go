package domain

import "time"

// NextFireTime computes the next prompt instant in UTC.
//
// The interval (weekday or weekend) is chosen by the local weekday of `from`.
// If the candidate lands inside an enabled quiet window it is advanced to the
// window's local end on the same or next calendar day. A single shift is
// enough: the window is strictly shorter than 24h, so the window end is by
// definition outside it.
func NextFireTime(c *ScheduleConfig, from time.Time) time.Time {
	loc := c.Location()
	candidate := from.Add(c.IntervalAt(from))

	if c.QuietEnabled {
		local := candidate.In(loc)
		if InQuietWindow(MinutesOfDay(local), c.QuietStartM, c.QuietEndM) {
			candidate = quietWindowEnd(local, c.QuietStartM, c.QuietEndM)
		}
	}
	return candidate.UTC()
}
