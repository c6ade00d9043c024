// Package availability decides whether a professional can be booked at a
// given date and time from their weekly windows.
//
// A professional with no windows at all is treated as not available. Check
// reports Configured=false in that case so callers can explain why.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Window is one weekly interval. Day uses Monday=1 .. Sunday=7. Both
// bounds are inclusive.
type Window struct {
	Day   int       `json:"day_of_week"`
	Start TimeOfDay `json:"start_time"`
	End   TimeOfDay `json:"end_time"`
}

func (w Window) Validate() error {
	if w.Day < 1 || w.Day > 7 {
		return fmt.Errorf("day_of_week must be between 1 and 7, got %d", w.Day)
	}
	if w.Start > w.End {
		return errors.New("start_time must not be after end_time")
	}
	return nil
}

// Contains reports whether tod on day falls inside w.
func (w Window) Contains(day int, tod TimeOfDay) bool {
	return w.Day == day && w.Start <= tod && tod <= w.End
}

// DayNumber maps a date to Monday=1 .. Sunday=7.
func DayNumber(date time.Time) int {
	wd := int(date.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Available reports whether any window covers date at tod.
func Available(windows []Window, date time.Time, tod TimeOfDay) bool {
	day := DayNumber(date)
	for _, w := range windows {
		if w.Contains(day, tod) {
			return true
		}
	}
	return false
}

// Result explains an availability decision.
type Result struct {
	Available  bool     `json:"available"`
	Configured bool     `json:"has_schedule"`
	Day        int      `json:"day_of_week"`
	Matching   []Window `json:"matching_windows"`
}

// Check is Available plus the windows that matched.
func Check(windows []Window, date time.Time, tod TimeOfDay) Result {
	day := DayNumber(date)
	r := Result{Configured: len(windows) > 0, Day: day, Matching: []Window{}}
	for _, w := range windows {
		if w.Contains(day, tod) {
			r.Matching = append(r.Matching, w)
		}
	}
	r.Available = len(r.Matching) > 0
	return r
}

var dayNames = [...]string{"", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo"}

// DayName returns the Spanish weekday name for a 1..7 day number.
func DayName(day int) string {
	if day < 1 || day > 7 {
		return ""
	}
	return dayNames[day]
}

// DaySchedule is one line of a weekly summary.
type DaySchedule struct {
	Day    int      `json:"day_of_week"`
	Name   string   `json:"day_name"`
	Ranges []string `json:"ranges"`
}

// Summary groups windows by day in week order with ranges sorted by start.
func Summary(windows []Window) []DaySchedule {
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Day != sorted[j].Day {
			return sorted[i].Day < sorted[j].Day
		}
		return sorted[i].Start < sorted[j].Start
	})

	out := []DaySchedule{}
	for _, w := range sorted {
		r := w.Start.String() + "-" + w.End.String()
		if n := len(out); n > 0 && out[n-1].Day == w.Day {
			out[n-1].Ranges = append(out[n-1].Ranges, r)
			continue
		}
		out = append(out, DaySchedule{Day: w.Day, Name: DayName(w.Day), Ranges: []string{r}})
	}
	return out
}

// SummaryText renders Summary as "Lunes 09:00-12:00, 14:00-18:00; Martes ...".
func SummaryText(windows []Window) string {
	days := Summary(windows)
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, d.Name+" "+strings.Join(d.Ranges, ", "))
	}
	return strings.Join(parts, "; ")
}
