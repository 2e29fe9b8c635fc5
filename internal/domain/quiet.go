package domain

import "time"

// InQuietWindow returns true if local time (minutes since midnight) falls
// inside the [startM, endM) quiet window. Supports wrap-around windows like
// 22:00–07:00 (startM > endM). Equal bounds mean an empty window.
func InQuietWindow(localM, startM, endM int) bool {
	if startM == endM {
		return false
	}
	if startM < endM {
		return localM >= startM && localM < endM
	}
	// wrap: [start..1440) U [0..end)
	return localM >= startM || localM < endM
}

// MinutesOfDay returns t's minutes since local midnight.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// quietWindowEnd returns the first instant at or after local when the quiet
// window ends, assuming local is currently inside the window.
func quietWindowEnd(local time.Time, startM, endM int) time.Time {
	day := local
	m := MinutesOfDay(local)
	if startM > endM && m >= startM {
		// evening segment of a wrap window ends tomorrow morning
		day = day.Add(24 * time.Hour)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), endM/60, endM%60, 0, 0, local.Location())
}
