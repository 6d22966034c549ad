package config

import (
	"fmt"
	"strings"
	"time"

	naturaldate "github.com/tj/go-naturaldate"
)

// Window is the time range a sync run asks the WHOOP API for.
// Start is inclusive, End exclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// SyncWindow resolves the fetch window. A non-empty since ("last monday",
// "2 weeks ago", "2024-06-03") takes precedence over daysAgo. Start is
// truncated to local midnight; End is now.
func SyncWindow(now time.Time, daysAgo int, since string) (Window, error) {
	var start time.Time
	if s := strings.TrimSpace(since); s != "" {
		if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
			start = t
		} else {
			t, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Past))
			if err != nil {
				return Window{}, fmt.Errorf("parsing --since %q: %w", since, err)
			}
			start = t
		}
	} else {
		if daysAgo < 0 {
			return Window{}, fmt.Errorf("days-ago must not be negative, got %d", daysAgo)
		}
		start = now.AddDate(0, 0, -daysAgo)
	}

	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, now.Location())
	if !start.Before(now) {
		return Window{}, fmt.Errorf("sync window start %s is not before now", start.Format("2006-01-02"))
	}
	return Window{Start: start, End: now}, nil
}
