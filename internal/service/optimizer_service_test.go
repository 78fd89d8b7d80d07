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
	"github.com/noah-isme/clinic-scheduler-api/internal/scheduler"
	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

func newOptimizerFixture(t *testing.T, seed ...models.Booking) (*schedulingFixture, *OptimizerService) {
	t.Helper()
	f := newSchedulingFixture(t, nil, seed...)
	svc := NewOptimizerService(f.availability, f.booking, config.OptimizerConfig{
		HorizonDays:     3,
		IterationFactor: 3,
		ProposalTTL:     time.Hour,
		Parallelism:     2,
	}, 15*time.Minute, NewMetricsService(), zap.NewNop())
	svc.now = fixedNow(f.now)
	return f, svc
}

// lateMorningPreference is a medium booking parked at 16:00 that prefers 09:00-10:00.
func lateMorningPreference() models.Booking {
	b := scheduledBooking("bk-1", at(clinicMonday, 16, 0), 30, models.PriorityMedium)
	b.PreferredWindows = models.Windows{{Start: at(clinicMonday, 9, 0), End: at(clinicMonday, 10, 0)}}
	b.SchedulingScore = 50
	return b
}

func TestOptimizerServiceProposesAndApplies(t *testing.T) {
	f, svc := newOptimizerFixture(t, lateMorningPreference())

	resp, err := svc.Optimize(context.Background(), "dr-1", TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, f.now.UTC().Add(time.Hour), resp.ExpiresAt)

	proposal, ok := resp.Proposal.(scheduler.Proposal)
	require.True(t, ok)
	require.Len(t, proposal.Moves, 1)
	move := proposal.Moves[0]
	assert.Equal(t, "bk-1", move.BookingID)
	assert.Equal(t, 60, move.ToScore)
	assert.True(t, scheduleRange(at(clinicMonday, 9, 0), 60).Contains(move.To))
	assert.Greater(t, proposal.After.Score, proposal.Before.Score)

	// Generating a proposal changes nothing.
	assert.Equal(t, models.BookingStatusScheduled, f.bookings.get("bk-1").Status)

	applied, err := svc.Apply(context.Background(), "dr-1", resp.ProposalID)
	require.NoError(t, err)
	require.Len(t, applied.Applied, 1)
	assert.Empty(t, applied.Skipped)
	assert.Equal(t, move.To.Start, applied.Applied[0].Start)
	assert.Equal(t, 60, applied.Applied[0].Score)

	assert.Equal(t, models.BookingStatusRescheduled, f.bookings.get("bk-1").Status)
	successor := f.bookings.get(applied.Applied[0].NewBookingID)
	assert.Equal(t, models.BookingStatusScheduled, successor.Status)
	require.Len(t, f.audit.events, 1)
	assert.Equal(t, models.BookingEventRescheduled, f.audit.events[0].Type)

	_, err = svc.Apply(context.Background(), "dr-1", resp.ProposalID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestOptimizerServiceSkipsStaleMoves(t *testing.T) {
	f, svc := newOptimizerFixture(t, lateMorningPreference())

	resp, err := svc.Optimize(context.Background(), "dr-1", TriggerAPI)
	require.NoError(t, err)

	_, err = f.booking.Cancel(context.Background(), "bk-1", dto.CancelRequest{Reason: "no show"})
	require.NoError(t, err)

	applied, err := svc.Apply(context.Background(), "dr-1", resp.ProposalID)
	require.NoError(t, err)
	assert.Empty(t, applied.Applied)
	require.Len(t, applied.Skipped, 1)
	assert.Equal(t, "bk-1", applied.Skipped[0].BookingID)
	assert.Contains(t, applied.Skipped[0].Reason, "cancelled")
}

func TestOptimizerServiceSkipsMoveIntoNewConflict(t *testing.T) {
	f, svc := newOptimizerFixture(t, lateMorningPreference())

	resp, err := svc.Optimize(context.Background(), "dr-1", TriggerAPI)
	require.NoError(t, err)
	proposal := resp.Proposal.(scheduler.Proposal)
	require.Len(t, proposal.Moves, 1)

	// Someone books the proposed slot in the meantime.
	req := scheduleRequest(proposal.Moves[0].To.Start)
	_, err = f.booking.Schedule(context.Background(), req)
	require.NoError(t, err)

	applied, err := svc.Apply(context.Background(), "dr-1", resp.ProposalID)
	require.NoError(t, err)
	assert.Empty(t, applied.Applied)
	require.Len(t, applied.Skipped, 1)
	assert.Equal(t, models.BookingStatusScheduled, f.bookings.get("bk-1").Status)
}

func TestOptimizerServiceProposalExpires(t *testing.T) {
	f, svc := newOptimizerFixture(t, lateMorningPreference())

	resp, err := svc.Optimize(context.Background(), "dr-1", TriggerAPI)
	require.NoError(t, err)

	svc.now = fixedNow(f.now.Add(2 * time.Hour))
	_, err = svc.Get("dr-1", resp.ProposalID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestOptimizerServiceRejectsForeignProvider(t *testing.T) {
	f, svc := newOptimizerFixture(t, lateMorningPreference())
	f.providers.providers["dr-2"] = &models.Provider{ID: "dr-2"}

	resp, err := svc.Optimize(context.Background(), "dr-1", TriggerAPI)
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), "dr-2", resp.ProposalID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestOptimizerServiceUnknownProvider(t *testing.T) {
	_, svc := newOptimizerFixture(t)
	_, err := svc.Optimize(context.Background(), "dr-404", TriggerAPI)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestOptimizerServiceOptimizeAll(t *testing.T) {
	f, svc := newOptimizerFixture(t, lateMorningPreference())
	f.providers.providers["dr-2"] = &models.Provider{ID: "dr-2"}

	require.NoError(t, svc.OptimizeAll(context.Background(), TriggerCron))

	svc.store.mu.RLock()
	defer svc.store.mu.RUnlock()
	assert.Len(t, svc.store.items, 2)
}
