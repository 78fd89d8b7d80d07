package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/repository"
	"github.com/noah-isme/clinic-scheduler-api/internal/scheduler"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
	"github.com/noah-isme/clinic-scheduler-api/pkg/cache"
	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
	"github.com/noah-isme/clinic-scheduler-api/pkg/database"
	"github.com/noah-isme/clinic-scheduler-api/pkg/logger"
)

const cachePrefix = "clinic-scheduler:"

// app holds every long-lived dependency of a process.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client

	metrics      *service.MetricsService
	audit        *service.AuditService
	availability *service.AvailabilityService
	slots        *service.SlotService
	bookings     *service.BookingService
	optimizer    *service.OptimizerService
	exports      *service.ExportService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logr, db: db, redis: redisClient, metrics: service.NewMetricsService()}
	if err := a.wire(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	validate := validator.New()

	var cacheRepo service.CacheRepository
	if a.redis != nil {
		cacheRepo = repository.NewCacheRepository(a.redis, cachePrefix)
	} else {
		a.logger.Info("redis disabled, provider cache off")
	}
	cacheSvc := service.NewCacheService(cacheRepo, a.metrics, a.cfg.Cache.TTL, a.logger)

	providers := repository.NewProviderRepository(a.db)
	availabilityRepo := repository.NewAvailabilityRepository(a.db)
	bookingRepo := repository.NewBookingRepository(a.db)

	availability, err := service.NewAvailabilityService(providers, availabilityRepo, cacheSvc, validate, a.logger, a.cfg.Scheduler.DefaultTimezone)
	if err != nil {
		return fmt.Errorf("init availability: %w", err)
	}
	availability.SetMaxRangeDays(a.cfg.Scheduler.MaxRangeDays)

	var sink service.AuditSink
	if a.cfg.Audit.WebhookURL != "" {
		sink = service.NewWebhookSink(a.cfg.Audit.WebhookURL, a.cfg.Audit.Timeout)
	}
	a.audit = service.NewAuditService(a.cfg.Audit, sink, a.metrics, a.logger)

	index := scheduler.NewConflictIndex()
	committer := scheduler.NewCommitter(index, scheduler.NewProviderLocks(), a.cfg.Scheduler.CommitTimeout, a.metrics)

	a.availability = availability
	a.slots = service.NewSlotService(availability, index, a.cfg.Scheduler, validate, a.metrics, a.logger)
	a.bookings = service.NewBookingService(service.BookingServiceDeps{
		Bookings:     bookingRepo,
		Availability: availability,
		Committer:    committer,
		Audit:        a.audit,
		Config:       a.cfg.Scheduler,
		Parallelism:  a.cfg.Optimizer.Parallelism,
		Validator:    validate,
		Metrics:      a.metrics,
		Logger:       a.logger,
	})
	a.optimizer = service.NewOptimizerService(availability, a.bookings, a.cfg.Optimizer, a.cfg.Scheduler.SlotStep, a.metrics, a.logger)
	a.exports = service.NewExportService(availability, bookingRepo, validate, a.logger)
	return nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
