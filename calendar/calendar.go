// Package calendar holds the midnight-normalised date arithmetic shared by
// day advancement, duplicate windows, streaks and weekly cohorts. All
// functions work in the location carried by the reference time.
package calendar

import "time"

// Midnight returns 00:00 of t's calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayBounds returns [start, end) of the calendar day containing t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := Midnight(t)
	return start, start.AddDate(0, 0, 1)
}

// DaysBetween counts calendar days from a to b, evaluated in b's location.
// It is negative when a falls on a later day than b.
func DaysBetween(a, b time.Time) int {
	from := Midnight(a.In(b.Location()))
	to := Midnight(b)
	// Dates are compared through UTC to stay immune to DST-length days.
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	f := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	g := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(g.Sub(f).Hours() / 24)
}

// WeekStart returns Monday 00:00 of the week containing t.
func WeekStart(t time.Time) time.Time {
	m := Midnight(t)
	offset := (int(m.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return m.AddDate(0, 0, -offset)
}

// WeekBounds returns the Monday-aligned [start, end) window containing t.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	start := WeekStart(t)
	return start, start.AddDate(0, 0, 7)
}

// DateKey formats t's calendar day as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// LoadLocation resolves an IANA zone name, falling back when empty or unknown.
func LoadLocation(name string, fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}
