package scheduler

import (
	"iter"
	"sort"
	"time"

	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

// busySet answers overlap queries against arbitrary, possibly overlapping ranges.
type busySet struct {
	ranges  []TimeRange
	maxEnds []time.Time
}

func newBusySet(conflicts []TimeRange) busySet {
	ranges := make([]TimeRange, len(conflicts))
	copy(ranges, conflicts)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start.Before(ranges[j].Start) })
	maxEnds := make([]time.Time, len(ranges))
	for i, r := range ranges {
		maxEnds[i] = r.End
		if i > 0 && maxEnds[i-1].After(r.End) {
			maxEnds[i] = maxEnds[i-1]
		}
	}
	return busySet{ranges: ranges, maxEnds: maxEnds}
}

// overlaps checks the ranges starting before c.End; the running max end decides.
func (b busySet) overlaps(c TimeRange) bool {
	i := sort.Search(len(b.ranges), func(i int) bool {
		return !b.ranges[i].Start.Before(c.End)
	})
	return i > 0 && b.maxEnds[i-1].After(c.Start)
}

// GenerateCandidates enumerates ranges of the requested duration that fit inside
// an open interval and do not intersect any conflict. Starts advance by step from
// each interval start; a non-positive step falls back to DefaultStep.
func GenerateCandidates(open iter.Seq[TimeRange], conflicts []TimeRange, duration, step time.Duration) (iter.Seq[TimeRange], error) {
	if duration <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "duration must be positive")
	}
	if step <= 0 {
		step = DefaultStep
	}
	busy := newBusySet(conflicts)
	return func(yield func(TimeRange) bool) {
		for interval := range open {
			for start := interval.Start; !start.Add(duration).After(interval.End); start = start.Add(step) {
				candidate := NewRange(start, duration)
				if busy.overlaps(candidate) {
					continue
				}
				if !yield(candidate) {
					return
				}
			}
		}
	}, nil
}
