package model

import (
	"errors"
	"fmt"
	"time"
)

// dateKeyLayout is the canonical date key format (YYYY-MM-DD).
const dateKeyLayout = "2006-01-02"

// ErrInvalidDateKey is returned when a string is not a YYYY-MM-DD date.
var ErrInvalidDateKey = errors.New("invalid date key")

// DateKey formats t as a date key using t's own location.  Convert t with
// In() first to key it in another zone; the time of day is discarded.
func DateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// ParseDateKey parses a date key into midnight of that date in loc.  The
// round trip DateKey(ParseDateKey(k)) returns k unchanged.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(dateKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateKey, key)
	}
	return t, nil
}

// WeekAhead returns the seven dates that follow today, nearest first.  These
// are the choices offered when picking a date other than today.
func WeekAhead(today time.Time) []time.Time {
	out := make([]time.Time, 0, 7)
	for i := 1; i <= 7; i++ {
		out = append(out, today.AddDate(0, 0, i))
	}
	return out
}
