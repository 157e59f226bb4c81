package utils

import (
	"math"
	"time"
)

// LoadLocation resolves an IANA zone name, falling back to the local zone.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// ElapsedDays returns whole days between from and now, never negative.
func ElapsedDays(from, now time.Time) int {
	if from.IsZero() {
		return 0
	}
	days := math.Floor(now.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return int(days)
}

// PrettyDate renders t for human-facing messages.
func PrettyDate(t time.Time) string {
	return t.Format("Mon, 02 Jan 2006 15:04:05 MST")
}
