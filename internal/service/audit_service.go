package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/pkg/config"
	"github.com/noah-isme/clinic-scheduler-api/pkg/jobs"
)

const auditJobType = "booking.audit"

// AuditSink delivers one booking event to the audit collaborator.
type AuditSink interface {
	Deliver(ctx context.Context, event models.BookingEvent) error
}

// WebhookSink posts events as JSON.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink builds a sink posting to url.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{url: url, client: &http.Client{Timeout: timeout}}
}

// Deliver implements AuditSink. Any non-2xx answer is an error so the queue retries.
func (s *WebhookSink) Deliver(ctx context.Context, event models.BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post audit event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("audit webhook answered %d", resp.StatusCode)
	}
	return nil
}

type logSink struct {
	logger *zap.Logger
}

func (s logSink) Deliver(_ context.Context, event models.BookingEvent) error {
	s.logger.Info("booking event",
		zap.String("type", string(event.Type)),
		zap.String("booking_id", event.BookingID),
		zap.String("provider_id", event.ProviderID),
		zap.Time("old_start", event.OldStart),
	)
	return nil
}

// AuditService dispatches booking transitions in the background.
type AuditService struct {
	queue   *jobs.Queue
	sink    AuditSink
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuditService builds the dispatcher. A nil sink logs events instead of posting them.
func NewAuditService(cfg config.AuditConfig, sink AuditSink, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = logSink{logger: logger}
	}
	s := &AuditService{sink: sink, metrics: metrics, logger: logger, now: time.Now}
	s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending events until ctx ends.
func (s *AuditService) Stop(ctx context.Context) {
	s.queue.Stop(ctx)
}

// Notify enqueues an event without blocking. Events that cannot be queued are
// logged and dropped; the booking path never fails because of audit delivery.
func (s *AuditService) Notify(event models.BookingEvent) {
	if s == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	err := s.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: auditJobType, Payload: event})
	if err != nil {
		s.metrics.RecordAudit("dropped")
		s.logger.Error("audit event dropped",
			zap.String("type", string(event.Type)),
			zap.String("booking_id", event.BookingID),
			zap.Error(err),
		)
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.BookingEvent)
	if !ok {
		s.logger.Error("unexpected audit payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.sink.Deliver(ctx, event); err != nil {
		s.metrics.RecordAudit("failed")
		return err
	}
	s.metrics.RecordAudit("delivered")
	return nil
}
