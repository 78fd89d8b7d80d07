package models

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay bounds clock values; 24:00 is accepted as an end of day.
const MinutesPerDay = 24 * 60

// ParseClock converts an "HH:MM" time-of-day into minutes after midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 || hours < 0 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	total := hours*60 + minutes
	if total > MinutesPerDay {
		return 0, fmt.Errorf("time of day %q is past the end of the day", raw)
	}
	return total, nil
}

// DayWindow is a parsed working window in minutes after midnight.
type DayWindow struct {
	Start      int
	End        int
	BreakStart int
	BreakEnd   int
	HasBreak   bool
}

// ParseDayWindow validates start < end and start <= breakStart < breakEnd <= end.
func ParseDayWindow(start, end string, breakStart, breakEnd *string) (DayWindow, error) {
	var w DayWindow
	var err error
	if w.Start, err = ParseClock(start); err != nil {
		return w, err
	}
	if w.End, err = ParseClock(end); err != nil {
		return w, err
	}
	if w.Start >= w.End {
		return w, fmt.Errorf("start %s must be before end %s", start, end)
	}
	if (breakStart == nil) != (breakEnd == nil) {
		return w, fmt.Errorf("break requires both start and end")
	}
	if breakStart == nil {
		return w, nil
	}
	if w.BreakStart, err = ParseClock(*breakStart); err != nil {
		return w, err
	}
	if w.BreakEnd, err = ParseClock(*breakEnd); err != nil {
		return w, err
	}
	if w.BreakStart < w.Start || w.BreakStart >= w.BreakEnd || w.BreakEnd > w.End {
		return w, fmt.Errorf("break %s-%s must sit inside %s-%s", *breakStart, *breakEnd, start, end)
	}
	w.HasBreak = true
	return w, nil
}

// Window parses the template's working hours.
func (t AvailabilityTemplate) Window() (DayWindow, error) {
	if t.DayOfWeek < 0 || t.DayOfWeek > 6 {
		return DayWindow{}, fmt.Errorf("day_of_week %d out of range", t.DayOfWeek)
	}
	return ParseDayWindow(t.StartTime, t.EndTime, t.BreakStart, t.BreakEnd)
}

// Window parses the exception's replacement hours. Closed dates return ok=false.
func (e AvailabilityException) Window() (DayWindow, bool, error) {
	if !e.IsAvailable {
		return DayWindow{}, false, nil
	}
	if e.StartTime == nil || e.EndTime == nil {
		return DayWindow{}, false, fmt.Errorf("open exception on %s requires start and end", e.DateKey())
	}
	w, err := ParseDayWindow(*e.StartTime, *e.EndTime, e.BreakStart, e.BreakEnd)
	return w, err == nil, err
}
