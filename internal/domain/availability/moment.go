package availability

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate reads a YYYY-MM-DD calendar date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseMoment resolves optional date and time strings. Empty values fall
// back to now's calendar date and wall clock.
func ParseMoment(date, tod string, now time.Time) (time.Time, TimeOfDay, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	at := FromTime(now)
	if strings.TrimSpace(date) != "" {
		d, err := ParseDate(date, now.Location())
		if err != nil {
			return time.Time{}, 0, err
		}
		day = d
	}
	if strings.TrimSpace(tod) != "" {
		t, err := ParseTimeOfDay(tod)
		if err != nil {
			return time.Time{}, 0, err
		}
		at = t
	}
	return day, at, nil
}
