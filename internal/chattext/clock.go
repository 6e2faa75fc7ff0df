package chattext

import (
	"log/slog"
	"time"
)

// TimestampLayout is the Brazilian dd/MM/yyyy HH:mm layout.
const TimestampLayout = "02/01/2006 15:04"

// FormatTimestamp renders t in loc using TimestampLayout. A nil loc uses t's own location.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(TimestampLayout)
}

// LoadLocation resolves an IANA zone name, falling back to UTC when the zone
// database does not know it.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}
