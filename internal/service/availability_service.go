package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/internal/scheduler"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type providerReader interface {
	FindByID(ctx context.Context, id string) (*models.Provider, error)
	ListIDs(ctx context.Context) ([]string, error)
}

type availabilityStore interface {
	ListTemplates(ctx context.Context, providerID string) ([]models.AvailabilityTemplate, error)
	ReplaceTemplates(ctx context.Context, providerID string, rows []models.AvailabilityTemplate) error
	ListExceptions(ctx context.Context, providerID string, from, to time.Time) ([]models.AvailabilityException, error)
	UpsertException(ctx context.Context, exception *models.AvailabilityException) error
}

// ProviderCalendar is a provider profile with its availability resolved over a date range.
type ProviderCalendar struct {
	Provider *models.Provider
	Location *time.Location
	Range    scheduler.DateRange
	Resolver *scheduler.Resolver
}

// AvailabilityService owns provider profiles, weekly templates and exceptions.
type AvailabilityService struct {
	providers providerReader
	store     availabilityStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	fallback  *time.Location
	maxDays   int
}

// NewAvailabilityService wires the service. defaultTZ applies to providers without a timezone.
func NewAvailabilityService(providers providerReader, store availabilityStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger, defaultTZ string) (*AvailabilityService, error) {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := time.UTC
	if defaultTZ != "" {
		loc, err := time.LoadLocation(defaultTZ)
		if err != nil {
			return nil, err
		}
		fallback = loc
	}
	return &AvailabilityService{
		providers: providers,
		store:     store,
		cache:     cache,
		validator: validate,
		logger:    logger,
		fallback:  fallback,
		maxDays:   scheduler.DefaultMaxRangeDays,
	}, nil
}

// SetMaxRangeDays caps the number of calendar days a caller may request.
func (s *AvailabilityService) SetMaxRangeDays(days int) {
	if days > 0 {
		s.maxDays = days
	}
}

// Provider returns the provider profile and its timezone.
func (s *AvailabilityService) Provider(ctx context.Context, providerID string) (*models.Provider, *time.Location, error) {
	var provider models.Provider
	err := s.cache.Remember(ctx, providerKey(providerID), &provider, func(ctx context.Context) error {
		found, err := s.providers.FindByID(ctx, providerID)
		if err != nil {
			return err
		}
		provider = *found
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "provider not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load provider")
	}
	loc, err := provider.Location(s.fallback)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "provider timezone is invalid")
	}
	return &provider, loc, nil
}

// ProviderIDs lists every known provider.
func (s *AvailabilityService) ProviderIDs(ctx context.Context) ([]string, error) {
	ids, err := s.providers.ListIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list providers")
	}
	return ids, nil
}

func (s *AvailabilityService) templates(ctx context.Context, providerID string) ([]models.AvailabilityTemplate, error) {
	var rows []models.AvailabilityTemplate
	err := s.cache.Remember(ctx, templateKey(providerID), &rows, func(ctx context.Context) error {
		loaded, err := s.store.ListTemplates(ctx, providerID)
		if err != nil {
			return err
		}
		rows = loaded
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability templates")
	}
	return rows, nil
}

// Calendar loads the provider and resolves its availability for dr.
func (s *AvailabilityService) Calendar(ctx context.Context, providerID string, dr scheduler.DateRange) (*ProviderCalendar, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	if err := dr.Limit(s.maxDays); err != nil {
		return nil, err
	}
	provider, loc, err := s.Provider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, provider, loc, dr)
}

// CalendarSpan resolves days calendar dates starting at the provider-local date of from.
func (s *AvailabilityService) CalendarSpan(ctx context.Context, providerID string, from time.Time, days int) (*ProviderCalendar, error) {
	if days <= 0 {
		days = 1
	}
	provider, loc, err := s.Provider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	local := from.In(loc)
	return s.resolve(ctx, provider, loc, scheduler.DateRange{From: local, To: local.AddDate(0, 0, days-1)})
}

func (s *AvailabilityService) resolve(ctx context.Context, provider *models.Provider, loc *time.Location, dr scheduler.DateRange) (*ProviderCalendar, error) {
	rows, err := s.templates(ctx, provider.ID)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.store.ListExceptions(ctx, provider.ID, dr.From, dr.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability exceptions")
	}
	resolver, err := scheduler.NewResolver(scheduler.NewWeeklyTemplate(rows), exceptions, loc)
	if err != nil {
		return nil, err
	}
	return &ProviderCalendar{Provider: provider, Location: loc, Range: dr, Resolver: resolver}, nil
}

// ParseDateRange parses a from/to query into calendar dates within the configured span.
func (s *AvailabilityService) ParseDateRange(q dto.DateRangeQuery) (scheduler.DateRange, error) {
	from, err := time.Parse(dateLayout, q.From)
	if err != nil {
		return scheduler.DateRange{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid from date")
	}
	to, err := time.Parse(dateLayout, q.To)
	if err != nil {
		return scheduler.DateRange{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid to date")
	}
	dr := scheduler.DateRange{From: from, To: to}
	if err := dr.Validate(); err != nil {
		return scheduler.DateRange{}, err
	}
	if err := dr.Limit(s.maxDays); err != nil {
		return scheduler.DateRange{}, err
	}
	return dr, nil
}

// OpenIntervals previews the open intervals of a provider.
func (s *AvailabilityService) OpenIntervals(ctx context.Context, providerID string, q dto.DateRangeQuery) ([]dto.IntervalResponse, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date range")
	}
	dr, err := s.ParseDateRange(q)
	if err != nil {
		return nil, err
	}
	cal, err := s.Calendar(ctx, providerID, dr)
	if err != nil {
		return nil, err
	}
	open, err := cal.Resolver.OpenIntervals(dr)
	if err != nil {
		return nil, err
	}
	out := make([]dto.IntervalResponse, 0)
	for interval := range open {
		out = append(out, dto.IntervalResponse{Start: interval.Start, End: interval.End})
	}
	return out, nil
}

// ReplaceTemplates validates and stores a provider's weekly template.
func (s *AvailabilityService) ReplaceTemplates(ctx context.Context, providerID string, req dto.ReplaceTemplatesRequest) ([]models.AvailabilityTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability template")
	}
	if _, _, err := s.Provider(ctx, providerID); err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(req.Days))
	rows := make([]models.AvailabilityTemplate, 0, len(req.Days))
	for _, day := range req.Days {
		if _, dup := seen[day.DayOfWeek]; dup {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "day_of_week %d appears twice", day.DayOfWeek)
		}
		seen[day.DayOfWeek] = struct{}{}
		row := models.AvailabilityTemplate{
			ProviderID:        providerID,
			DayOfWeek:         day.DayOfWeek,
			StartTime:         day.StartTime,
			EndTime:           day.EndTime,
			BreakStart:        day.BreakStart,
			BreakEnd:          day.BreakEnd,
			IsAvailable:       day.IsAvailable,
			MaxBookingsPerDay: day.MaxBookingsPerDay,
		}
		if row.IsAvailable {
			if _, err := row.Window(); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
			}
		}
		rows = append(rows, row)
	}

	if err := s.store.ReplaceTemplates(ctx, providerID, rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store availability template")
	}
	s.cache.InvalidateProvider(ctx, providerID)
	s.logger.Info("availability template replaced", zap.String("provider_id", providerID), zap.Int("days", len(rows)))
	return rows, nil
}

// UpsertException stores the exception of one date.
func (s *AvailabilityService) UpsertException(ctx context.Context, providerID, date string, req dto.UpsertExceptionRequest) (*models.AvailabilityException, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability exception")
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	if _, _, err := s.Provider(ctx, providerID); err != nil {
		return nil, err
	}

	exception := &models.AvailabilityException{
		ProviderID:        providerID,
		Date:              day,
		IsAvailable:       req.IsAvailable,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		BreakStart:        req.BreakStart,
		BreakEnd:          req.BreakEnd,
		MaxBookingsPerDay: req.MaxBookingsPerDay,
		Reason:            req.Reason,
	}
	if _, _, err := exception.Window(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if err := s.store.UpsertException(ctx, exception); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store availability exception")
	}
	s.logger.Info("availability exception stored", zap.String("provider_id", providerID), zap.String("date", date))
	return exception, nil
}
