package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	"github.com/noah-isme/clinic-scheduler-api/pkg/export"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

const exportPageSize = 100

// AgendaFile is a rendered agenda document.
type AgendaFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders provider agendas.
type ExportService struct {
	availability *AvailabilityService
	bookings     bookingStore
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewExportService constructs the agenda exporter.
func NewExportService(availability *AvailabilityService, bookings bookingStore, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{availability: availability, bookings: bookings, validator: validate, logger: logger}
}

var agendaHeaders = []string{"Date", "Start", "End", "Minutes", "Priority", "Status", "Type", "Requester", "Score", "Booking ID"}

// Agenda renders every booking of the provider within the provider-local dates of q.
func (s *ExportService) Agenda(ctx context.Context, providerID string, q dto.ExportQuery) (*AgendaFile, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	format, err := export.ParseFormat(q.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	dr, err := s.availability.ParseDateRange(q.DateRangeQuery)
	if err != nil {
		return nil, err
	}
	provider, loc, err := s.availability.Provider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	from := time.Date(dr.From.Year(), dr.From.Month(), dr.From.Day(), 0, 0, 0, 0, loc)
	to := time.Date(dr.To.Year(), dr.To.Month(), dr.To.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	items, err := s.collect(ctx, providerID, from, to)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title:    fmt.Sprintf("Agenda: %s", displayName(provider)),
		Subtitle: fmt.Sprintf("%s to %s (%s)", q.From, q.To, loc.String()),
		Headers:  agendaHeaders,
		Rows:     make([][]string, 0, len(items)),
	}
	for _, b := range items {
		start, end := b.StartTime.In(loc), b.EndTime.In(loc)
		data.Rows = append(data.Rows, []string{
			start.Format(dateLayout),
			start.Format("15:04"),
			end.Format("15:04"),
			strconv.Itoa(b.DurationMinutes),
			string(b.Priority),
			string(b.Status),
			b.AppointmentType,
			b.RequesterID,
			strconv.Itoa(b.SchedulingScore),
			b.ID,
		})
	}

	body, err := export.For(format).Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render agenda")
	}
	s.logger.Info("agenda exported",
		zap.String("provider_id", providerID),
		zap.String("format", string(format)),
		zap.Int("rows", len(data.Rows)),
	)
	return &AgendaFile{
		Filename:    fmt.Sprintf("agenda-%s-%s-%s.%s", sanitizeFilename(providerID), q.From, q.To, format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func (s *ExportService) collect(ctx context.Context, providerID string, from, to time.Time) ([]models.Booking, error) {
	filter := models.BookingFilter{
		ProviderID: providerID,
		From:       &from,
		To:         &to,
		PageSize:   exportPageSize,
		SortOrder:  "asc",
	}
	var out []models.Booking
	for page := 1; ; page++ {
		filter.Page = page
		items, total, err := s.bookings.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agenda")
		}
		out = append(out, items...)
		if len(items) < exportPageSize || len(out) >= total {
			return out, nil
		}
	}
}

func displayName(p *models.Provider) string {
	if strings.TrimSpace(p.DisplayName) != "" {
		return p.DisplayName
	}
	return p.ID
}

func sanitizeFilename(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, raw)
}
