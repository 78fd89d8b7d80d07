package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/internal/repository"
	"github.com/noah-isme/clinic-scheduler-api/internal/scheduler"
	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
	"github.com/noah-isme/clinic-scheduler-api/pkg/database"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
	"github.com/noah-isme/clinic-scheduler-api/pkg/middleware/requestid"
)

type bookingStore interface {
	Create(ctx context.Context, b *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	ListScheduledByProvider(ctx context.Context, providerID string, from *time.Time) ([]models.Booking, error)
	UpdateStatus(ctx context.Context, id string, from, to models.BookingStatus, reason *string) error
	Reschedule(ctx context.Context, previousID string, next *models.Booking, note string) error
}

type auditNotifier interface {
	Notify(event models.BookingEvent)
}

// BookingService commits, lists and transitions bookings.
type BookingService struct {
	bookings     bookingStore
	availability *AvailabilityService
	committer    *scheduler.Committer
	audit        auditNotifier
	cfg          config.SchedulerConfig
	parallelism  int
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
	now          func() time.Time
}

// BookingServiceDeps groups the collaborators of BookingService.
type BookingServiceDeps struct {
	Bookings     bookingStore
	Availability *AvailabilityService
	Committer    *scheduler.Committer
	Audit        auditNotifier
	Config       config.SchedulerConfig
	Parallelism  int
	Validator    *validator.Validate
	Metrics      *MetricsService
	Logger       *zap.Logger
}

// NewBookingService wires the booking path.
func NewBookingService(deps BookingServiceDeps) *BookingService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Parallelism <= 0 {
		deps.Parallelism = 4
	}
	return &BookingService{
		bookings:     deps.Bookings,
		availability: deps.Availability,
		committer:    deps.Committer,
		audit:        deps.Audit,
		cfg:          deps.Config,
		parallelism:  deps.Parallelism,
		validator:    deps.Validator,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		now:          time.Now,
	}
}

func (s *BookingService) notify(event models.BookingEvent) {
	if s.audit != nil {
		s.audit.Notify(event)
	}
}

// persistError maps storage failures; a constraint hit means another writer won the range.
func persistError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case database.IsOverlapViolation(err):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "range was claimed concurrently")
	case errors.Is(err, repository.ErrStaleBooking):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "booking changed concurrently")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

// capacityCheck runs under the provider lock: the range must be open and the day under its cap.
// replaces names a booking that leaves the calendar in the same commit.
func capacityCheck(cal *ProviderCalendar, r scheduler.TimeRange, replaces string) func(context.Context, *scheduler.Timeline) error {
	return func(_ context.Context, tl *scheduler.Timeline) error {
		if !cal.Resolver.IsOpen(r) {
			return appErrors.Clonef(appErrors.ErrConflict, "range %s is outside provider availability", r)
		}
		limit := cal.Resolver.DailyCap(r.Start)
		if limit <= 0 {
			return nil
		}
		day := cal.Resolver.DayBounds(r.Start)
		count := tl.CountWithin(day)
		if replaces != "" {
			if held, ok := tl.Lookup(replaces); ok && !held.Start.Before(day.Start) && held.Start.Before(day.End) {
				count--
			}
		}
		if count >= limit {
			return appErrors.Clonef(appErrors.ErrConflict, "daily limit of %d bookings reached", limit)
		}
		return nil
	}
}

// Schedule commits a booking at the requested start.
func (s *BookingService) Schedule(ctx context.Context, req dto.ScheduleRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	duration, err := checkDuration(req.DurationMinutes, s.cfg.MaxDuration)
	if err != nil {
		return nil, err
	}
	r := scheduler.NewRange(req.StartTime, duration)
	if !r.Start.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be in the future")
	}

	cal, err := s.availability.CalendarSpan(ctx, req.ProviderID, r.Start, 1)
	if err != nil {
		return nil, err
	}
	in := scheduler.ScoreInput{
		Priority:          req.Priority,
		PreferredWindows:  scheduler.RangesFromWindows(req.PreferredWindows),
		RequiredEquipment: req.RequiredEquipment,
		ProviderEquipment: cal.Provider.Equipment,
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	score, ok := scheduler.Score(r, in)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provider lacks required equipment")
	}

	booking := &models.Booking{
		ID:                uuid.NewString(),
		ProviderID:        req.ProviderID,
		RequesterID:       req.RequesterID,
		StartTime:         r.Start,
		EndTime:           r.End,
		DurationMinutes:   req.DurationMinutes,
		Priority:          req.Priority,
		RequiredEquipment: pq.StringArray(req.RequiredEquipment),
		PreferredWindows:  models.Windows(req.PreferredWindows),
		Status:            models.BookingStatusScheduled,
		SchedulingScore:   score,
		AppointmentType:   strings.TrimSpace(req.AppointmentType),
		Notes:             req.Notes,
	}

	err = s.committer.Commit(ctx, scheduler.CommitRequest{
		ProviderID: booking.ProviderID,
		BookingID:  booking.ID,
		Range:      r,
		Check:      capacityCheck(cal, r, ""),
		Persist: func(ctx context.Context) error {
			return persistError(s.bookings.Create(ctx, booking), "failed to store booking")
		},
	})
	if err != nil {
		s.logCommitFailure(ctx, "schedule", booking.ProviderID, booking.ID, err)
		return nil, err
	}
	s.metrics.SetIndexSize(booking.ProviderID, s.committer.Index().Snapshot(booking.ProviderID).Len())
	s.logger.Info("booking scheduled",
		zap.String("provider_id", booking.ProviderID),
		zap.String("booking_id", booking.ID),
		zap.Time("start", booking.StartTime),
		zap.Int("score", booking.SchedulingScore),
	)
	return booking, nil
}

func (s *BookingService) logCommitFailure(ctx context.Context, op, providerID, bookingID string, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("provider_id", providerID),
		zap.String("booking_id", bookingID),
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, appErrors.ErrInvariantViolation):
		s.logger.Error("conflict index invariant violated", fields...)
	case appErrors.IsRejection(err):
		s.logger.Info("booking commit rejected", fields...)
	default:
		s.logger.Error("booking commit failed", fields...)
	}
}

// Get returns one booking.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return b, nil
}

// List pages through a provider's bookings. Dates are provider-local calendar days.
func (s *BookingService) List(ctx context.Context, providerID string, q dto.BookingListQuery) ([]models.Booking, *models.Pagination, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking filter")
	}
	_, loc, err := s.availability.Provider(ctx, providerID)
	if err != nil {
		return nil, nil, err
	}

	filter := models.BookingFilter{ProviderID: providerID, Page: q.Page, PageSize: q.PageSize, SortOrder: q.SortOrder}
	for _, st := range q.Status {
		filter.Status = append(filter.Status, models.BookingStatus(st))
	}
	if q.From != "" {
		from, err := time.ParseInLocation(dateLayout, q.From, loc)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid from date")
		}
		filter.From = &from
	}
	if q.To != "" {
		to, err := time.ParseInLocation(dateLayout, q.To, loc)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid to date")
		}
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}

	items, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	if items == nil {
		items = []models.Booking{}
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Cancel cancels a requested or scheduled booking and frees its range.
func (s *BookingService) Cancel(ctx context.Context, id string, req dto.CancelRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation payload")
	}
	b, err := s.transition(ctx, id, models.BookingStatusCancelled, optionalString(req.Reason))
	if err != nil {
		return nil, err
	}
	s.notify(models.BookingEvent{
		Type:        models.BookingEventCancelled,
		BookingID:   b.ID,
		ProviderID:  b.ProviderID,
		RequesterID: b.RequesterID,
		OldStart:    b.StartTime,
		OldEnd:      b.EndTime,
		Reason:      req.Reason,
	})
	return b, nil
}

// Complete marks a scheduled booking as completed.
func (s *BookingService) Complete(ctx context.Context, id string) (*models.Booking, error) {
	return s.transition(ctx, id, models.BookingStatusCompleted, nil)
}

func (s *BookingService) transition(ctx context.Context, id string, to models.BookingStatus, reason *string) (*models.Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := b.Status
	if !from.CanTransition(to) {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "booking is %s and cannot become %s", from, to)
	}
	err = s.committer.Release(ctx, b.ProviderID, b.ID, func(ctx context.Context) error {
		return persistError(s.bookings.UpdateStatus(ctx, b.ID, from, to, reason), "failed to update booking")
	})
	if err != nil {
		s.logCommitFailure(ctx, string(to), b.ProviderID, b.ID, err)
		return nil, err
	}
	b.Status = to
	if reason != nil {
		b.CancellationReason = reason
	}
	b.UpdatedAt = s.now().UTC()
	s.logger.Info("booking transitioned",
		zap.String("provider_id", b.ProviderID),
		zap.String("booking_id", b.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return b, nil
}

// Reschedule moves a scheduled booking to a new start. The old record is closed
// as rescheduled and a new scheduled record takes its place.
func (s *BookingService) Reschedule(ctx context.Context, id string, req dto.RescheduleRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanTransition(models.BookingStatusRescheduled) {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "booking is %s and cannot be rescheduled", b.Status)
	}
	r := scheduler.NewRange(req.StartTime, b.Duration())
	if !r.Start.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be in the future")
	}
	cal, err := s.availability.CalendarSpan(ctx, b.ProviderID, r.Start, 1)
	if err != nil {
		return nil, err
	}
	score, ok := scheduler.Score(r, scoreInputOf(b, cal.Provider))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provider lacks required equipment")
	}
	note := req.Reason
	if note == "" {
		note = "rescheduled on request"
	}
	return s.move(ctx, b, cal, r, score, note)
}

func scoreInputOf(b *models.Booking, provider *models.Provider) scheduler.ScoreInput {
	return scheduler.ScoreInput{
		Priority:          b.Priority,
		PreferredWindows:  scheduler.RangesFromWindows(b.PreferredWindows),
		RequiredEquipment: b.RequiredEquipment,
		ProviderEquipment: provider.Equipment,
	}
}

// move commits b's successor at r through the provider lock and notifies audit.
func (s *BookingService) move(ctx context.Context, b *models.Booking, cal *ProviderCalendar, r scheduler.TimeRange, score int, note string) (*models.Booking, error) {
	next := *b
	next.ID = uuid.NewString()
	next.StartTime = r.Start
	next.EndTime = r.End
	next.Status = models.BookingStatusScheduled
	next.SchedulingScore = score
	next.CancellationReason = nil
	next.LastRescheduledAt = nil
	next.CreatedAt = time.Time{}

	err := s.committer.Commit(ctx, scheduler.CommitRequest{
		ProviderID: b.ProviderID,
		BookingID:  next.ID,
		Range:      r,
		Replaces:   b.ID,
		Check:      capacityCheck(cal, r, b.ID),
		Persist: func(ctx context.Context) error {
			return persistError(s.bookings.Reschedule(ctx, b.ID, &next, note), "failed to reschedule booking")
		},
	})
	if err != nil {
		s.logCommitFailure(ctx, "reschedule", b.ProviderID, b.ID, err)
		return nil, err
	}

	newStart, newEnd := next.StartTime, next.EndTime
	s.notify(models.BookingEvent{
		Type:        models.BookingEventRescheduled,
		BookingID:   b.ID,
		ProviderID:  b.ProviderID,
		RequesterID: b.RequesterID,
		OldStart:    b.StartTime,
		OldEnd:      b.EndTime,
		NewStart:    &newStart,
		NewEnd:      &newEnd,
		NewBooking:  next.ID,
		Reason:      note,
	})
	s.logger.Info("booking rescheduled",
		zap.String("provider_id", b.ProviderID),
		zap.String("booking_id", b.ID),
		zap.String("new_booking_id", next.ID),
		zap.Time("start", next.StartTime),
	)
	return &next, nil
}

// WarmIndex rebuilds the conflict index from persisted scheduled bookings.
// Overlapping persisted bookings are an invariant violation and abort the warm-up.
func (s *BookingService) WarmIndex(ctx context.Context) error {
	ids, err := s.availability.ProviderIDs(ctx)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, providerID := range ids {
		providerID := providerID
		g.Go(func() error {
			bookings, err := s.bookings.ListScheduledByProvider(gctx, providerID, nil)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings of "+providerID)
			}
			entries := make([]scheduler.Entry, 0, len(bookings))
			for _, b := range bookings {
				entries = append(entries, scheduler.Entry{BookingID: b.ID, Range: scheduler.TimeRange{Start: b.StartTime, End: b.EndTime}})
			}
			if err := s.committer.Index().Reset(providerID, entries); err != nil {
				return err
			}
			s.metrics.SetIndexSize(providerID, len(entries))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("conflict index warmed", zap.Int("providers", len(ids)))
	return nil
}

// ScheduledBookings returns a provider's scheduled bookings ending after from.
func (s *BookingService) ScheduledBookings(ctx context.Context, providerID string, from time.Time) ([]models.Booking, error) {
	items, err := s.bookings.ListScheduledByProvider(ctx, providerID, &from)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduled bookings")
	}
	return items, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
