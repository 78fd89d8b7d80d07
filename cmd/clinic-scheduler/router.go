package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/clinic-scheduler-api/api/swagger"
	"github.com/noah-isme/clinic-scheduler-api/internal/handler"
	"github.com/noah-isme/clinic-scheduler-api/internal/middleware"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
	"github.com/noah-isme/clinic-scheduler-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/clinic-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/clinic-scheduler-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	slots        *handler.SlotHandler
	bookings     *handler.BookingHandler
	optimizer    *handler.OptimizerHandler
	availability *handler.AvailabilityHandler
	exports      *handler.ExportHandler
	metrics      *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h routeHandlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(reqidmiddleware.Middleware())
	router.Use(logger.GinMiddleware(logr))
	router.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	router.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))

	router.GET("/health", h.metrics.Health)
	router.GET("/ready", h.metrics.Ready)
	router.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	verifier := middleware.NewTokenVerifier(cfg.JWT)
	restricted := func(roles ...string) gin.HandlerFunc {
		if !cfg.JWT.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RBAC(roles...)
	}
	operators := restricted(string(models.RoleAdmin), string(models.RoleOperator))
	providerOwners := restricted(string(models.RoleAdmin), string(models.RoleOperator), middleware.SelfProvider)

	api := router.Group(cfg.APIPrefix)
	if cfg.JWT.Enabled {
		api.Use(middleware.OptionalJWT(verifier))
	}

	throttled := api.Group("")
	if cfg.RateLimit.Enabled {
		throttled.Use(middleware.NewRateLimiter(cfg.RateLimit, logr).Middleware())
	}
	throttled.POST("/optimal-slots", h.slots.OptimalSlots)
	throttled.POST("/schedule", h.bookings.Schedule)

	optimize := api.Group("/optimize/:providerId")
	if cfg.JWT.Enabled {
		optimize.Use(middleware.JWT(verifier))
	}
	optimize.Use(operators)
	optimize.POST("", h.optimizer.Optimize)
	optimize.GET("/proposals/:proposalId", h.optimizer.Proposal)
	optimize.POST("/proposals/:proposalId/apply", h.optimizer.Apply)

	bookings := api.Group("/bookings/:id")
	bookings.GET("", h.bookings.Get)
	bookings.POST("/cancel", h.bookings.Cancel)
	bookings.POST("/complete", h.bookings.Complete)
	bookings.POST("/reschedule", h.bookings.Reschedule)

	providers := api.Group("/providers/:providerId")
	providers.GET("/bookings", h.bookings.List)
	providers.GET("/bookings/export", h.exports.Agenda)
	providers.GET("/availability", h.availability.Intervals)
	providers.PUT("/availability/templates", providerOwners, h.availability.ReplaceTemplates)
	providers.PUT("/availability/exceptions/:date", providerOwners, h.availability.UpsertException)

	return router
}

func handlersFor(a *app) routeHandlers {
	checks := map[string]handler.ReadinessCheck{"database": a.db.PingContext}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return routeHandlers{
		slots:        handler.NewSlotHandler(a.slots),
		bookings:     handler.NewBookingHandler(a.bookings),
		optimizer:    handler.NewOptimizerHandler(a.optimizer),
		availability: handler.NewAvailabilityHandler(a.availability),
		exports:      handler.NewExportHandler(a.exports),
		metrics:      handler.NewMetricsHandler(a.metrics, checks),
	}
}
