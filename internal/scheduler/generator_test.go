package scheduler

import (
	"errors"
	"iter"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

func seqOf(ranges ...TimeRange) iter.Seq[TimeRange] {
	return slices.Values(ranges)
}

func TestGenerateCandidatesEveryStepThroughClosing(t *testing.T) {
	seq, err := GenerateCandidates(seqOf(span(monday, "09:00", "17:00")), nil, 30*time.Minute, 0)
	require.NoError(t, err)

	got := slices.Collect(seq)
	require.Len(t, got, 31)
	assert.Equal(t, span(monday, "09:00", "09:30"), got[0])
	assert.Equal(t, span(monday, "09:15", "09:45"), got[1])
	assert.Equal(t, span(monday, "16:30", "17:00"), got[30])
}

func TestGenerateCandidatesSkipsConflicts(t *testing.T) {
	conflicts := []TimeRange{span(monday, "10:00", "10:30"), span(monday, "09:10", "09:20")}
	seq, err := GenerateCandidates(seqOf(span(monday, "09:00", "11:00")), conflicts, 30*time.Minute, 15*time.Minute)
	require.NoError(t, err)

	got := slices.Collect(seq)
	assert.Equal(t, []TimeRange{
		span(monday, "09:30", "10:00"),
		span(monday, "10:30", "11:00"),
	}, got)
}

func TestGenerateCandidatesHandlesNestedConflicts(t *testing.T) {
	conflicts := []TimeRange{span(monday, "09:00", "12:00"), span(monday, "09:30", "09:45")}
	seq, err := GenerateCandidates(seqOf(span(monday, "09:00", "13:00")), conflicts, time.Hour, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []TimeRange{span(monday, "12:00", "13:00")}, slices.Collect(seq))
}

func TestGenerateCandidatesRejectsNonPositiveDuration(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Minute} {
		_, err := GenerateCandidates(seqOf(span(monday, "09:00", "10:00")), nil, d, 0)
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
	}
}

// Every open interval is shorter than the requested duration.
func TestGenerateCandidatesShortIntervalsYieldNothing(t *testing.T) {
	open := seqOf(span(monday, "09:00", "09:30"), span(monday, "10:00", "10:30"), span(monday, "14:00", "14:30"))
	seq, err := GenerateCandidates(open, nil, 45*time.Minute, 0)
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))
}

func TestGeneratedCandidatesStayInsideOpenIntervals(t *testing.T) {
	week := NewWeeklyTemplate([]models.AvailabilityTemplate{
		{DayOfWeek: 1, StartTime: "08:00", EndTime: "18:00", BreakStart: ptr("12:30"), BreakEnd: ptr("13:15"), IsAvailable: true},
		{DayOfWeek: 2, StartTime: "07:45", EndTime: "11:10", IsAvailable: true},
	})
	r := mustResolver(t, week)
	open, err := r.OpenIntervals(DateRange{From: monday, To: monday.AddDate(0, 0, 2)})
	require.NoError(t, err)
	intervals := slices.Collect(open)

	conflicts := []TimeRange{
		span(monday, "08:20", "09:05"),
		span(monday, "13:00", "14:00"),
		span(monday.AddDate(0, 0, 1), "09:00", "09:40"),
	}
	for _, duration := range []time.Duration{10 * time.Minute, 25 * time.Minute, 50 * time.Minute, 3 * time.Hour} {
		seq, err := GenerateCandidates(open, conflicts, duration, 5*time.Minute)
		require.NoError(t, err)
		for candidate := range seq {
			assert.Equal(t, duration, candidate.Duration())
			contained := slices.ContainsFunc(intervals, func(i TimeRange) bool { return i.Contains(candidate) })
			assert.True(t, contained, "candidate %s escapes open hours", candidate)
			for _, c := range conflicts {
				assert.False(t, c.Overlaps(candidate), "candidate %s overlaps %s", candidate, c)
			}
		}
	}
}
