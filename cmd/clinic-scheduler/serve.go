package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/service"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduling HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.bookings.WarmIndex(ctx); err != nil {
		return fmt.Errorf("warm conflict index: %w", err)
	}

	// Audit delivery outlives the signal so requests drained by Shutdown still report.
	a.audit.Start(context.WithoutCancel(ctx))

	scheduled, err := startOptimizerCron(ctx, a)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           newRouter(a.cfg, a.logger, a.metrics, handlersFor(a)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Sugar().Infow("server starting", "addr", server.Addr, "env", a.cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			a.logger.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if scheduled != nil {
		<-scheduled.Stop().Done()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("server forced to shutdown", zap.Error(err))
	}
	a.audit.Stop(shutdownCtx)

	a.logger.Info("server exited gracefully")
	return nil
}

// startOptimizerCron schedules a fleet-wide optimizer run. It returns nil when no schedule is configured.
func startOptimizerCron(ctx context.Context, a *app) (*cron.Cron, error) {
	if a.cfg.Optimizer.Cron == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(a.cfg.Optimizer.Cron, func() {
		started := time.Now()
		if err := a.optimizer.OptimizeAll(ctx, service.TriggerCron); err != nil {
			a.logger.Warn("scheduled optimizer run aborted", zap.Error(err))
			return
		}
		a.logger.Info("scheduled optimizer run finished", zap.Duration("took", time.Since(started)))
	})
	if err != nil {
		return nil, fmt.Errorf("parse OPTIMIZER_CRON %q: %w", a.cfg.Optimizer.Cron, err)
	}
	c.Start()
	a.logger.Info("optimizer cron enabled", zap.String("schedule", a.cfg.Optimizer.Cron))
	return c, nil
}
