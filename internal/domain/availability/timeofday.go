package availability

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time as seconds after midnight. Comparison is
// numeric, so "9:05" and "09:05" are the same instant and "12:00:30" is
// after "12:00".
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

// ParseTimeOfDay accepts "H:MM", "HH:MM" and "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 || len(parts[0]) > 2 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	if len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 || len(parts[2]) != 2 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	return TimeOfDay(h*3600 + m*60 + sec), nil
}

// MustParse is ParseTimeOfDay for literals known to be valid.
func MustParse(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FromTime takes the wall clock of t in its own location, to the second.
func FromTime(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// FromDuration converts an offset from midnight, as pgtype.Time carries.
// Fractions of a second are dropped.
func FromDuration(d time.Duration) TimeOfDay {
	return TimeOfDay(int(d/time.Second) % secondsPerDay)
}

// FromSeconds wraps a seconds-after-midnight count read from the database.
func FromSeconds(n int) TimeOfDay {
	return TimeOfDay(n % secondsPerDay)
}

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Second
}

// String renders HH:MM, adding :SS only when seconds are set.
func (t TimeOfDay) String() string {
	h, m, sec := int(t)/3600, int(t)%3600/60, int(t)%60
	if sec != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}
