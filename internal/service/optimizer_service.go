package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/internal/scheduler"
	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

// Optimizer run triggers, used as metric labels.
const (
	TriggerAPI  = "api"
	TriggerCron = "cron"
	TriggerCLI  = "cli"
)

// OptimizerService produces and applies reschedule proposals.
type OptimizerService struct {
	availability *AvailabilityService
	bookings     *BookingService
	cfg          config.OptimizerConfig
	step         time.Duration
	store        *proposalStore
	metrics      *MetricsService
	logger       *zap.Logger
	now          func() time.Time
}

// NewOptimizerService wires the optimizer. step is the slot step of the scheduler.
func NewOptimizerService(availability *AvailabilityService, bookings *BookingService, cfg config.OptimizerConfig, step time.Duration, metrics *MetricsService, logger *zap.Logger) *OptimizerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 14
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	s := &OptimizerService{
		availability: availability,
		bookings:     bookings,
		cfg:          cfg,
		step:         step,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
	s.store = newProposalStore(cfg.ProposalTTL, func() time.Time { return s.now() })
	return s
}

// Optimize snapshots the provider calendar over the horizon and stores the resulting proposal.
func (s *OptimizerService) Optimize(ctx context.Context, providerID, trigger string) (*dto.ProposalResponse, error) {
	now := s.now()
	cal, err := s.availability.CalendarSpan(ctx, providerID, now, s.cfg.HorizonDays)
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ScheduledBookings(ctx, providerID, now)
	if err != nil {
		return nil, err
	}

	proposal, err := scheduler.Optimize(scheduler.OptimizeInput{
		ProviderID:        providerID,
		Bookings:          bookings,
		Resolver:          cal.Resolver,
		Horizon:           cal.Range,
		ProviderEquipment: cal.Provider.Equipment,
		Step:              s.step,
		Now:               now,
		IterationFactor:   s.cfg.IterationFactor,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordOptimizerRun(trigger)

	stored := storedProposal{
		ID:          uuid.NewString(),
		ProviderID:  providerID,
		GeneratedAt: now.UTC(),
		Proposal:    proposal,
	}
	s.store.Save(stored)
	s.logger.Info("optimization proposal generated",
		zap.String("provider_id", providerID),
		zap.String("proposal_id", stored.ID),
		zap.String("trigger", trigger),
		zap.Int("moves", len(proposal.Moves)),
		zap.Int("unresolved", len(proposal.Unresolved)),
		zap.Int("score_before", proposal.Before.Score),
		zap.Int("score_after", proposal.After.Score),
	)
	return s.response(stored), nil
}

func (s *OptimizerService) response(p storedProposal) *dto.ProposalResponse {
	return &dto.ProposalResponse{
		ProposalID:  p.ID,
		GeneratedAt: p.GeneratedAt,
		ExpiresAt:   p.GeneratedAt.Add(s.cfg.ProposalTTL),
		Proposal:    p.Proposal,
	}
}

// Get returns a stored proposal that has not expired.
func (s *OptimizerService) Get(providerID, proposalID string) (*dto.ProposalResponse, error) {
	p, ok := s.store.Get(proposalID)
	if !ok || p.ProviderID != providerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return s.response(p), nil
}

// Apply replays a proposal move by move through the booking commit path. Moves
// whose booking changed since the proposal was generated are skipped.
func (s *OptimizerService) Apply(ctx context.Context, providerID, proposalID string) (*dto.ApplyProposalResponse, error) {
	p, ok := s.store.Get(proposalID)
	if !ok || p.ProviderID != providerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if !s.store.Claim(proposalID) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal is already being applied")
	}

	resp := &dto.ApplyProposalResponse{
		ProposalID: proposalID,
		Applied:    []dto.AppliedMove{},
		Skipped:    []dto.SkippedMove{},
	}
	for _, move := range p.Proposal.Moves {
		next, err := s.applyMove(ctx, providerID, move)
		if err != nil {
			if appErrors.IsFatal(err) {
				s.store.Unclaim(proposalID)
				return nil, err
			}
			resp.Skipped = append(resp.Skipped, dto.SkippedMove{BookingID: move.BookingID, Reason: appErrors.FromError(err).Message})
			continue
		}
		resp.Applied = append(resp.Applied, dto.AppliedMove{
			BookingID:    move.BookingID,
			NewBookingID: next.ID,
			Start:        next.StartTime,
			End:          next.EndTime,
			Score:        next.SchedulingScore,
		})
	}
	s.store.Delete(proposalID)
	s.metrics.RecordMovesApplied(len(resp.Applied))
	s.logger.Info("optimization proposal applied",
		zap.String("provider_id", providerID),
		zap.String("proposal_id", proposalID),
		zap.Int("applied", len(resp.Applied)),
		zap.Int("skipped", len(resp.Skipped)),
	)
	return resp, nil
}

func (s *OptimizerService) applyMove(ctx context.Context, providerID string, move scheduler.Move) (*models.Booking, error) {
	b, err := s.bookings.Get(ctx, move.BookingID)
	if err != nil {
		return nil, err
	}
	if b.ProviderID != providerID || b.Status != models.BookingStatusScheduled {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "booking is %s", b.Status)
	}
	if !b.StartTime.Equal(move.From.Start) || !b.EndTime.Equal(move.From.End) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "booking moved since the proposal was generated")
	}
	if !move.To.Start.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposed start has passed")
	}
	cal, err := s.availability.CalendarSpan(ctx, providerID, move.To.Start, 1)
	if err != nil {
		return nil, err
	}
	score, ok := scheduler.Score(move.To, scoreInputOf(b, cal.Provider))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "provider no longer offers the required equipment")
	}
	return s.bookings.move(ctx, b, cal, move.To, score, "optimizer: "+move.Reason)
}

// OptimizeAll generates a proposal for every provider, bounded by the configured parallelism.
// Failures are logged per provider and do not stop the others.
func (s *OptimizerService) OptimizeAll(ctx context.Context, trigger string) error {
	ids, err := s.availability.ProviderIDs(ctx)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for _, providerID := range ids {
		providerID := providerID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := s.Optimize(gctx, providerID, trigger); err != nil {
				s.logger.Warn("optimizer run failed", zap.String("provider_id", providerID), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

type storedProposal struct {
	ID          string
	ProviderID  string
	GeneratedAt time.Time
	Proposal    scheduler.Proposal
	applying    bool
}

type proposalStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]storedProposal
}

func newProposalStore(ttl time.Duration, now func() time.Time) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		now:   now,
		items: make(map[string]storedProposal),
	}
}

func (s *proposalStore) Save(proposal storedProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.items[proposal.ID] = proposal
}

func (s *proposalStore) Get(id string) (storedProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return storedProposal{}, false
	}
	if s.now().Sub(proposal.GeneratedAt) > s.ttl {
		s.Delete(id)
		return storedProposal{}, false
	}
	return proposal, true
}

// Claim marks a proposal as being applied; it fails when another caller holds it.
func (s *proposalStore) Claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.items[id]
	if !ok || proposal.applying {
		return false
	}
	proposal.applying = true
	s.items[id] = proposal
	return true
}

func (s *proposalStore) Unclaim(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if proposal, ok := s.items[id]; ok {
		proposal.applying = false
		s.items[id] = proposal
	}
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// sweep drops expired proposals; callers hold the write lock.
func (s *proposalStore) sweep() {
	now := s.now()
	for id, p := range s.items {
		if now.Sub(p.GeneratedAt) > s.ttl {
			delete(s.items, id)
		}
	}
}
