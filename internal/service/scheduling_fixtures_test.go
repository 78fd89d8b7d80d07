package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/internal/repository"
	"github.com/noah-isme/clinic-scheduler-api/internal/scheduler"
	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
)

// 2030-01-07 is a Monday.
var clinicMonday = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }

type stubProviders struct {
	providers map[string]*models.Provider
	calls     atomic.Int32
}

func (s *stubProviders) FindByID(_ context.Context, id string) (*models.Provider, error) {
	s.calls.Add(1)
	p, ok := s.providers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (s *stubProviders) ListIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.providers))
	for id := range s.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type stubAvailabilityStore struct {
	templates  map[string][]models.AvailabilityTemplate
	exceptions map[string][]models.AvailabilityException
	replaced   []models.AvailabilityTemplate
	upserted   *models.AvailabilityException
}

func (s *stubAvailabilityStore) ListTemplates(_ context.Context, providerID string) ([]models.AvailabilityTemplate, error) {
	return s.templates[providerID], nil
}

func (s *stubAvailabilityStore) ReplaceTemplates(_ context.Context, providerID string, rows []models.AvailabilityTemplate) error {
	s.replaced = rows
	if s.templates == nil {
		s.templates = map[string][]models.AvailabilityTemplate{}
	}
	s.templates[providerID] = rows
	return nil
}

func (s *stubAvailabilityStore) ListExceptions(_ context.Context, providerID string, from, to time.Time) ([]models.AvailabilityException, error) {
	var out []models.AvailabilityException
	for _, ex := range s.exceptions[providerID] {
		key := ex.DateKey()
		if key >= from.Format(dateLayout) && key <= to.Format(dateLayout) {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (s *stubAvailabilityStore) UpsertException(_ context.Context, exception *models.AvailabilityException) error {
	s.upserted = exception
	return nil
}

// weekdayTemplate opens Monday to Friday between start and end.
func weekdayTemplate(providerID, start, end string, dailyCap *int) []models.AvailabilityTemplate {
	rows := make([]models.AvailabilityTemplate, 0, 5)
	for day := 1; day <= 5; day++ {
		rows = append(rows, models.AvailabilityTemplate{
			ProviderID:        providerID,
			DayOfWeek:         day,
			StartTime:         start,
			EndTime:           end,
			IsAvailable:       true,
			MaxBookingsPerDay: dailyCap,
		})
	}
	return rows
}

type memoryBookingStore struct {
	mu        sync.Mutex
	items     map[string]*models.Booking
	createErr error
	lastNote  string
	filter    models.BookingFilter
}

func newMemoryBookingStore(seed ...models.Booking) *memoryBookingStore {
	s := &memoryBookingStore{items: map[string]*models.Booking{}}
	for i := range seed {
		b := seed[i]
		s.items[b.ID] = &b
	}
	return s
}

func (s *memoryBookingStore) Create(_ context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	clone := *b
	s.items[b.ID] = &clone
	return nil
}

func (s *memoryBookingStore) FindByID(_ context.Context, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *b
	return &clone, nil
}

func (s *memoryBookingStore) List(_ context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	var out []models.Booking
	for _, b := range s.items {
		if b.ProviderID == filter.ProviderID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, len(out), nil
}

func (s *memoryBookingStore) ListScheduledByProvider(_ context.Context, providerID string, from *time.Time) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.items {
		if b.ProviderID != providerID || b.Status != models.BookingStatusScheduled {
			continue
		}
		if from != nil && !b.EndTime.After(*from) {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *memoryBookingStore) UpdateStatus(_ context.Context, id string, from, to models.BookingStatus, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.items[id]
	if !ok || b.Status != from {
		return repository.ErrStaleBooking
	}
	b.Status = to
	b.CancellationReason = reason
	return nil
}

func (s *memoryBookingStore) Reschedule(_ context.Context, previousID string, next *models.Booking, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.items[previousID]
	if !ok || prev.Status != models.BookingStatusScheduled {
		return repository.ErrStaleBooking
	}
	prev.Status = models.BookingStatusRescheduled
	next.RescheduledFromID = &previousID
	clone := *next
	s.items[next.ID] = &clone
	s.lastNote = note
	return nil
}

func (s *memoryBookingStore) get(id string) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.items[id]
}

type eventRecorder struct {
	mu     sync.Mutex
	events []models.BookingEvent
}

func (r *eventRecorder) Notify(event models.BookingEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

type schedulingFixture struct {
	providers    *stubProviders
	store        *stubAvailabilityStore
	bookings     *memoryBookingStore
	audit        *eventRecorder
	availability *AvailabilityService
	committer    *scheduler.Committer
	booking      *BookingService
	now          time.Time
}

func schedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		SlotStep:      15 * time.Minute,
		SlotLimit:     5,
		SearchDays:    3,
		CommitTimeout: time.Second,
		MaxDuration:   120 * time.Minute,
	}
}

// newSchedulingFixture builds dr-1 open 09:00-17:00 on weekdays, with "now" on the Sunday before clinicMonday.
func newSchedulingFixture(t *testing.T, dailyCap *int, seed ...models.Booking) *schedulingFixture {
	t.Helper()
	f := &schedulingFixture{
		providers: &stubProviders{providers: map[string]*models.Provider{
			"dr-1": {ID: "dr-1", DisplayName: "Dr. One", Equipment: []string{"ECG", "ultrasound"}},
		}},
		store: &stubAvailabilityStore{templates: map[string][]models.AvailabilityTemplate{
			"dr-1": weekdayTemplate("dr-1", "09:00", "17:00", dailyCap),
		}},
		bookings: newMemoryBookingStore(seed...),
		audit:    &eventRecorder{},
		now:      at(clinicMonday.AddDate(0, 0, -1), 12, 0),
	}
	var err error
	f.availability, err = NewAvailabilityService(f.providers, f.store, nil, nil, zap.NewNop(), "UTC")
	require.NoError(t, err)

	f.committer = scheduler.NewCommitter(scheduler.NewConflictIndex(), nil, time.Second, nil)
	f.booking = NewBookingService(BookingServiceDeps{
		Bookings:     f.bookings,
		Availability: f.availability,
		Committer:    f.committer,
		Audit:        f.audit,
		Config:       schedulerConfig(),
		Logger:       zap.NewNop(),
	})
	f.booking.now = fixedNow(f.now)
	require.NoError(t, f.booking.WarmIndex(context.Background()))
	return f
}

func scheduleRange(start time.Time, minutes int) scheduler.TimeRange {
	return scheduler.NewRange(start, time.Duration(minutes)*time.Minute)
}

func scheduledBooking(id string, start time.Time, minutes int, priority models.Priority) models.Booking {
	return models.Booking{
		ID:              id,
		ProviderID:      "dr-1",
		RequesterID:     "pt-" + id,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		Priority:        priority,
		Status:          models.BookingStatusScheduled,
	}
}
