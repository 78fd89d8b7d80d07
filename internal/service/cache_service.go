package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

func providerKey(providerID string) string { return fmt.Sprintf("provider:%s:profile", providerID) }
func templateKey(providerID string) string { return fmt.Sprintf("provider:%s:templates", providerID) }
func providerPattern(providerID string) string { return fmt.Sprintf("provider:%s:*", providerID) }

// CacheService is a read-through cache for provider profiles and weekly templates.
// Cache failures are logged and fall back to the loader; they never fail a request.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewCacheService constructs a cache service. A nil repo disables caching.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Remember fills dest from the cache or, on a miss, from load and stores the result.
func (s *CacheService) Remember(ctx context.Context, key string, dest interface{}, load func(ctx context.Context) error) error {
	if !s.Enabled() {
		return load(ctx)
	}
	err := s.repo.Get(ctx, key, dest)
	if err == nil {
		s.metrics.RecordCacheLookup(true)
		return nil
	}
	s.metrics.RecordCacheLookup(false)
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}

	if err := load(ctx); err != nil {
		return err
	}
	if err := s.repo.Set(ctx, key, dest, s.defaultTTL); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// InvalidateProvider drops every cached entry of a provider.
func (s *CacheService) InvalidateProvider(ctx context.Context, providerID string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, providerPattern(providerID)); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("provider_id", providerID), zap.Error(err))
	}
}
