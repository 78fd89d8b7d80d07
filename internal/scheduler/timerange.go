// Package scheduler holds the provider scheduling engine: availability
// resolution, overlap indexing, candidate generation, scoring, serialized
// commits and the batch optimizer. It has no storage or transport dependency.
package scheduler

import (
	"fmt"
	"time"

	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

// DefaultStep is the candidate enumeration granularity.
const DefaultStep = 15 * time.Minute

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewRange builds a range from a start and a duration.
func NewRange(start time.Time, d time.Duration) TimeRange {
	return TimeRange{Start: start, End: start.Add(d)}
}

// Overlaps reports whether both ranges share any instant.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Contains reports whether o lies fully inside r.
func (r TimeRange) Contains(o TimeRange) bool {
	return !o.Start.Before(r.Start) && !o.End.After(r.End)
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Equal compares instants, ignoring location.
func (r TimeRange) Equal(o TimeRange) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

// Validate rejects zero and inverted ranges.
func (r TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "time range requires start and end")
	}
	if !r.Start.Before(r.End) {
		return appErrors.Clonef(appErrors.ErrValidation, "time range start %s must be before end %s",
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}
