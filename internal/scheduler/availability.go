package scheduler

import (
	"iter"
	"time"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// DefaultMaxRangeDays bounds a requested date range when no limit is configured.
const DefaultMaxRangeDays = 366

const secondsPerDay = 24 * 60 * 60

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Days returns the number of calendar days covered. Both ends are UTC midnights,
// so whole days divide the Unix distance exactly at any span.
func (d DateRange) Days() int {
	return int((civil(d.To).Unix()-civil(d.From).Unix())/secondsPerDay) + 1
}

// Limit rejects ranges covering more than maxDays calendar days.
func (d DateRange) Limit(maxDays int) error {
	if maxDays <= 0 {
		maxDays = DefaultMaxRangeDays
	}
	if days := d.Days(); days > maxDays {
		return appErrors.Clonef(appErrors.ErrValidation, "date range covers %d days, at most %d allowed", days, maxDays)
	}
	return nil
}

// Validate requires From <= To.
func (d DateRange) Validate() error {
	if d.From.IsZero() || d.To.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "date range requires from and to")
	}
	if civil(d.From).After(civil(d.To)) {
		return appErrors.Clonef(appErrors.ErrValidation, "date range from %s is after to %s",
			d.From.Format(dateLayout), d.To.Format(dateLayout))
	}
	return nil
}

// civil drops the time of day and pins the date to UTC so day arithmetic ignores DST.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeeklyTemplate indexes a provider's template rows by weekday.
type WeeklyTemplate map[time.Weekday]models.AvailabilityTemplate

// NewWeeklyTemplate indexes rows; a later row for the same weekday wins.
func NewWeeklyTemplate(rows []models.AvailabilityTemplate) WeeklyTemplate {
	week := make(WeeklyTemplate, len(rows))
	for _, row := range rows {
		week[time.Weekday(row.DayOfWeek)] = row
	}
	return week
}

// dayPlan is the resolved configuration of one calendar date.
type dayPlan struct {
	date   time.Time
	open   bool
	window models.DayWindow
	cap    int
}

// Resolver turns a weekly template plus exceptions into open intervals.
type Resolver struct {
	week       WeeklyTemplate
	windows    map[time.Weekday]models.DayWindow
	exceptions map[string]models.AvailabilityException
	loc        *time.Location
}

// NewResolver validates every template row and exception up front.
func NewResolver(week WeeklyTemplate, exceptions []models.AvailabilityException, loc *time.Location) (*Resolver, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &Resolver{
		week:       week,
		windows:    make(map[time.Weekday]models.DayWindow, len(week)),
		exceptions: make(map[string]models.AvailabilityException, len(exceptions)),
		loc:        loc,
	}
	for day, row := range week {
		if !row.IsAvailable {
			continue
		}
		w, err := row.Window()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability template")
		}
		r.windows[day] = w
	}
	for _, ex := range exceptions {
		if _, _, err := ex.Window(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability exception")
		}
		r.exceptions[ex.DateKey()] = ex
	}
	return r, nil
}

// Location returns the timezone the resolver clips dates in.
func (r *Resolver) Location() *time.Location { return r.loc }

func (r *Resolver) plan(date time.Time) dayPlan {
	p := dayPlan{date: date}
	if ex, ok := r.exceptions[date.Format(dateLayout)]; ok {
		w, open, _ := ex.Window()
		p.open = open
		p.window = w
		if ex.MaxBookingsPerDay != nil {
			p.cap = *ex.MaxBookingsPerDay
		} else if row, ok := r.week[date.Weekday()]; ok && row.MaxBookingsPerDay != nil {
			p.cap = *row.MaxBookingsPerDay
		}
		return p
	}
	row, ok := r.week[date.Weekday()]
	if !ok || !row.IsAvailable {
		return p
	}
	p.open = true
	p.window = r.windows[date.Weekday()]
	if row.MaxBookingsPerDay != nil {
		p.cap = *row.MaxBookingsPerDay
	}
	return p
}

func (r *Resolver) at(date time.Time, minutes int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, r.loc)
}

func (r *Resolver) intervals(p dayPlan) []TimeRange {
	if !p.open {
		return nil
	}
	w := p.window
	if !w.HasBreak {
		return []TimeRange{{Start: r.at(p.date, w.Start), End: r.at(p.date, w.End)}}
	}
	out := make([]TimeRange, 0, 2)
	if w.BreakStart > w.Start {
		out = append(out, TimeRange{Start: r.at(p.date, w.Start), End: r.at(p.date, w.BreakStart)})
	}
	if w.End > w.BreakEnd {
		out = append(out, TimeRange{Start: r.at(p.date, w.BreakEnd), End: r.at(p.date, w.End)})
	}
	return out
}

// OpenIntervals yields chronological, disjoint open intervals for every date in dr.
// The sequence is lazy and can be ranged over any number of times.
func (r *Resolver) OpenIntervals(dr DateRange) (iter.Seq[TimeRange], error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	from := civil(dr.From)
	days := dr.Days()
	return func(yield func(TimeRange) bool) {
		for i := 0; i < days; i++ {
			for _, interval := range r.intervals(r.plan(from.AddDate(0, 0, i))) {
				if !yield(interval) {
					return
				}
			}
		}
	}, nil
}

// DayBounds returns the local calendar-day range containing t.
func (r *Resolver) DayBounds(t time.Time) TimeRange {
	local := t.In(r.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
	return TimeRange{Start: start, End: start.AddDate(0, 0, 1)}
}

// DailyCap returns the MaxBookingsPerDay in force on the local date of t, 0 when uncapped.
func (r *Resolver) DailyCap(t time.Time) int {
	return r.plan(civil(t.In(r.loc))).cap
}

// IsOpen reports whether candidate lies fully inside one open interval of its date.
func (r *Resolver) IsOpen(candidate TimeRange) bool {
	day := r.DayBounds(candidate.Start)
	for _, interval := range r.intervals(r.plan(civil(day.Start))) {
		if interval.Contains(candidate) {
			return true
		}
	}
	return false
}

// ResolveOpenIntervals is the one-shot form of NewResolver + OpenIntervals.
func ResolveOpenIntervals(week WeeklyTemplate, exceptions []models.AvailabilityException, dr DateRange, loc *time.Location) (iter.Seq[TimeRange], error) {
	r, err := NewResolver(week, exceptions, loc)
	if err != nil {
		return nil, err
	}
	return r.OpenIntervals(dr)
}
