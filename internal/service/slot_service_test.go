package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

func newSlotService(f *schedulingFixture) *SlotService {
	svc := NewSlotService(f.availability, f.committer.Index(), schedulerConfig(), nil, NewMetricsService(), zap.NewNop())
	svc.now = fixedNow(f.now)
	return svc
}

func slotStarts(resp *dto.OptimalSlotsResponse) []time.Time {
	out := make([]time.Time, 0, len(resp.Slots))
	for _, s := range resp.Slots {
		out = append(out, s.Start)
	}
	return out
}

func TestSlotServicePrefersWindowThenEarliest(t *testing.T) {
	f := newSchedulingFixture(t, nil, scheduledBooking("bk-1", at(clinicMonday, 14, 0), 30, models.PriorityLow))
	svc := newSlotService(f)

	resp, err := svc.FindOptimalSlots(context.Background(), dto.OptimalSlotsRequest{
		ProviderID:       "dr-1",
		DurationMinutes:  30,
		Priority:         models.PriorityMedium,
		PreferredWindows: []models.Window{{Start: at(clinicMonday, 14, 0), End: at(clinicMonday, 15, 0)}},
	})
	require.NoError(t, err)

	require.Len(t, resp.Slots, 5)
	assert.Equal(t, []time.Time{
		at(clinicMonday, 14, 30),
		at(clinicMonday, 9, 0),
		at(clinicMonday, 9, 15),
		at(clinicMonday, 9, 30),
		at(clinicMonday, 9, 45),
	}, slotStarts(resp))
	assert.Equal(t, 60, resp.Slots[0].Score)
	assert.Equal(t, 50, resp.Slots[1].Score)
	for _, s := range resp.Slots {
		assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start))
	}
}

func TestSlotServiceSkipsDaysAtCap(t *testing.T) {
	limit := 1
	f := newSchedulingFixture(t, &limit, scheduledBooking("bk-1", at(clinicMonday, 14, 0), 30, models.PriorityLow))
	svc := newSlotService(f)

	resp, err := svc.FindOptimalSlots(context.Background(), dto.OptimalSlotsRequest{
		ProviderID:      "dr-1",
		DurationMinutes: 60,
		Priority:        models.PriorityUrgent,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Slots)
	tuesday := clinicMonday.AddDate(0, 0, 1)
	assert.Equal(t, at(tuesday, 9, 0), resp.Slots[0].Start)
	assert.Equal(t, 100, resp.Slots[0].Score)
}

func TestSlotServiceHonoursFrom(t *testing.T) {
	f := newSchedulingFixture(t, nil)
	svc := newSlotService(f)
	from := at(clinicMonday, 16, 10)

	resp, err := svc.FindOptimalSlots(context.Background(), dto.OptimalSlotsRequest{
		ProviderID:      "dr-1",
		DurationMinutes: 30,
		Priority:        models.PriorityLow,
		From:            &from,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Slots)
	assert.Equal(t, at(clinicMonday, 16, 15), resp.Slots[0].Start)
	assert.Equal(t, 25, resp.Slots[0].Score)
}

func TestSlotServiceNoAvailability(t *testing.T) {
	f := newSchedulingFixture(t, nil)
	f.store.templates["dr-1"] = nil
	svc := newSlotService(f)

	resp, err := svc.FindOptimalSlots(context.Background(), dto.OptimalSlotsRequest{ProviderID: "dr-1", DurationMinutes: 30, Priority: models.PriorityHigh})
	require.NoError(t, err)
	assert.Empty(t, resp.Slots)
}

func TestSlotServiceErrors(t *testing.T) {
	f := newSchedulingFixture(t, nil)
	svc := newSlotService(f)

	cases := []struct {
		name string
		req  dto.OptimalSlotsRequest
		want *appErrors.Error
	}{
		{"unknown provider", dto.OptimalSlotsRequest{ProviderID: "dr-404", DurationMinutes: 30, Priority: models.PriorityLow}, appErrors.ErrNotFound},
		{"zero duration", dto.OptimalSlotsRequest{ProviderID: "dr-1", Priority: models.PriorityLow}, appErrors.ErrValidation},
		{"too long", dto.OptimalSlotsRequest{ProviderID: "dr-1", DurationMinutes: 240, Priority: models.PriorityLow}, appErrors.ErrValidation},
		{"bad priority", dto.OptimalSlotsRequest{ProviderID: "dr-1", DurationMinutes: 30, Priority: "asap"}, appErrors.ErrValidation},
		{"blank equipment", dto.OptimalSlotsRequest{ProviderID: "dr-1", DurationMinutes: 30, Priority: models.PriorityLow, RequiredEquipment: []string{" "}}, appErrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.FindOptimalSlots(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestSlotServiceMissingEquipmentReturnsNothing(t *testing.T) {
	f := newSchedulingFixture(t, nil)
	svc := newSlotService(f)

	resp, err := svc.FindOptimalSlots(context.Background(), dto.OptimalSlotsRequest{
		ProviderID:        "dr-1",
		DurationMinutes:   30,
		Priority:          models.PriorityLow,
		RequiredEquipment: []string{"mri"},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Slots)
}
