package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

func TestScoreByPriority(t *testing.T) {
	candidate := span(monday, "09:00", "09:30")
	window := []TimeRange{span(monday, "08:00", "12:00")}
	cases := []struct {
		priority models.Priority
		plain    int
		windowed int
	}{
		{models.PriorityLow, 25, 30},
		{models.PriorityMedium, 50, 60},
		{models.PriorityHigh, 75, 90},
		{models.PriorityUrgent, 100, 100},
	}
	for _, tc := range cases {
		t.Run(string(tc.priority), func(t *testing.T) {
			score, ok := Score(candidate, ScoreInput{Priority: tc.priority})
			require.True(t, ok)
			assert.Equal(t, tc.plain, score)

			score, ok = Score(candidate, ScoreInput{Priority: tc.priority, PreferredWindows: window})
			require.True(t, ok)
			assert.Equal(t, tc.windowed, score)
		})
	}
}

func TestScoreBonusAppliesOnceAndNeedsFullContainment(t *testing.T) {
	candidate := span(monday, "09:00", "09:30")
	in := ScoreInput{Priority: models.PriorityMedium, PreferredWindows: []TimeRange{
		span(monday, "08:00", "10:00"),
		span(monday, "09:00", "09:30"),
	}}
	score, _ := Score(candidate, in)
	assert.Equal(t, 60, score)

	partial := ScoreInput{Priority: models.PriorityMedium, PreferredWindows: []TimeRange{span(monday, "09:15", "10:00")}}
	score, _ = Score(candidate, partial)
	assert.Equal(t, 50, score)
}

func TestScoreEquipmentMismatchDisqualifies(t *testing.T) {
	in := ScoreInput{
		Priority:          models.PriorityUrgent,
		RequiredEquipment: []string{"ECG", " x-ray "},
		ProviderEquipment: []string{"ecg"},
	}
	_, ok := Score(span(monday, "09:00", "09:30"), in)
	assert.False(t, ok)

	in.ProviderEquipment = append(in.ProviderEquipment, "X-Ray")
	score, ok := Score(span(monday, "09:00", "09:30"), in)
	assert.True(t, ok)
	assert.Equal(t, 100, score)
}

func TestScoreInputValidate(t *testing.T) {
	assert.NoError(t, ScoreInput{Priority: models.PriorityLow}.Validate())
	assert.True(t, errors.Is(ScoreInput{Priority: "soon"}.Validate(), appErrors.ErrValidation))
	assert.True(t, errors.Is(ScoreInput{Priority: models.PriorityLow, RequiredEquipment: []string{" "}}.Validate(), appErrors.ErrValidation))
	bad := ScoreInput{Priority: models.PriorityLow, PreferredWindows: []TimeRange{span(monday, "10:00", "09:00")}}
	assert.True(t, errors.Is(bad.Validate(), appErrors.ErrValidation))
}

// Open 09:00-17:00, 30 minute visits, a preferred window mid-morning.
func TestTopKPrefersEarliestPreferredSlot(t *testing.T) {
	r := mustResolver(t, weekdays("09:00", "17:00"))
	open, err := r.OpenIntervals(DateRange{From: monday, To: monday})
	require.NoError(t, err)
	seq, err := GenerateCandidates(open, nil, 30*time.Minute, DefaultStep)
	require.NoError(t, err)

	in := ScoreInput{Priority: models.PriorityMedium, PreferredWindows: []TimeRange{span(monday, "10:00", "11:00")}}
	all := ScoreAll(seq, in)
	require.Len(t, all, 31)

	top := TopK(seq, in, 5)
	require.Len(t, top, 5)
	assert.Equal(t, clock(monday, "10:00"), top[0].Start)
	assert.Equal(t, 60, top[0].Score)
	assert.Equal(t, clock(monday, "10:15"), top[1].Start)
	assert.Equal(t, clock(monday, "10:30"), top[2].Start)
	assert.Equal(t, clock(monday, "09:00"), top[3].Start)
	assert.Equal(t, 50, top[3].Score)
}

func TestRankIsDeterministic(t *testing.T) {
	build := func() []SlotCandidate {
		return []SlotCandidate{
			{Start: clock(monday, "11:00"), Score: 50},
			{Start: clock(monday, "09:00"), Score: 50},
			{Start: clock(monday, "10:00"), Score: 75},
			{Start: clock(monday, "08:00"), Score: 25},
		}
	}
	first, second := build(), build()
	second[0], second[3] = second[3], second[0]
	Rank(first)
	Rank(second)
	assert.Equal(t, first, second)
	assert.Equal(t, clock(monday, "10:00"), first[0].Start)
	assert.Equal(t, clock(monday, "09:00"), first[1].Start)
}
