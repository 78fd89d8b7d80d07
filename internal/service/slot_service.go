package service

import (
	"context"
	"iter"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/scheduler"
	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

// SlotService answers "when could this appointment happen" queries.
type SlotService struct {
	availability *AvailabilityService
	index        *scheduler.ConflictIndex
	cfg          config.SchedulerConfig
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
	now          func() time.Time
}

// NewSlotService wires the slot search.
func NewSlotService(availability *AvailabilityService, index *scheduler.ConflictIndex, cfg config.SchedulerConfig, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *SlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{
		availability: availability,
		index:        index,
		cfg:          cfg,
		validator:    validate,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

func checkDuration(minutes int, max time.Duration) (time.Duration, error) {
	d := time.Duration(minutes) * time.Minute
	if d <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "duration must be positive")
	}
	if max > 0 && d > max {
		return 0, appErrors.Clonef(appErrors.ErrValidation, "duration exceeds %d minutes", int(max.Minutes()))
	}
	return d, nil
}

// FindOptimalSlots returns the best free slots over the search horizon, best first.
func (s *SlotService) FindOptimalSlots(ctx context.Context, req dto.OptimalSlotsRequest) (*dto.OptimalSlotsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot search payload")
	}
	duration, err := checkDuration(req.DurationMinutes, s.cfg.MaxDuration)
	if err != nil {
		return nil, err
	}

	now := s.now()
	from := now
	if req.From != nil && req.From.After(now) {
		from = *req.From
	}
	cal, err := s.availability.CalendarSpan(ctx, req.ProviderID, from, s.cfg.SearchDays)
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

	open, err := cal.Resolver.OpenIntervals(cal.Range)
	if err != nil {
		return nil, err
	}
	booked := s.index.Snapshot(req.ProviderID)
	candidates, err := scheduler.GenerateCandidates(open, booked.Ranges(), duration, s.cfg.SlotStep)
	if err != nil {
		return nil, err
	}

	scored := 0
	eligible := func(yield func(scheduler.TimeRange) bool) {
		for c := range candidates {
			if c.Start.Before(from) {
				continue
			}
			if limit := cal.Resolver.DailyCap(c.Start); limit > 0 && booked.CountWithin(cal.Resolver.DayBounds(c.Start)) >= limit {
				continue
			}
			scored++
			if !yield(c) {
				return
			}
		}
	}
	top := scheduler.TopK(iter.Seq[scheduler.TimeRange](eligible), in, s.cfg.SlotLimit)
	s.metrics.ObserveCandidates(scored)

	resp := &dto.OptimalSlotsResponse{ProviderID: req.ProviderID, Slots: make([]dto.SlotResponse, 0, len(top))}
	for _, c := range top {
		resp.Slots = append(resp.Slots, dto.SlotResponse{Start: c.Start, End: c.End, Score: c.Score})
	}
	s.logger.Debug("slot search",
		zap.String("provider_id", req.ProviderID),
		zap.Int("candidates", scored),
		zap.Int("returned", len(resp.Slots)),
	)
	return resp, nil
}
