package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

func exportQuery(format string) dto.ExportQuery {
	return dto.ExportQuery{DateRangeQuery: dto.DateRangeQuery{From: "2030-01-07", To: "2030-01-08"}, Format: format}
}

func TestExportServiceAgendaCSV(t *testing.T) {
	f := newSchedulingFixture(t, nil,
		scheduledBooking("bk-2", at(clinicMonday, 11, 0), 30, models.PriorityHigh),
		scheduledBooking("bk-1", at(clinicMonday, 9, 0), 45, models.PriorityLow),
	)
	svc := NewExportService(f.availability, f.bookings, nil, zap.NewNop())

	file, err := svc.Agenda(context.Background(), "dr-1", exportQuery("csv"))
	require.NoError(t, err)
	assert.Equal(t, "agenda-dr-1-2030-01-07-2030-01-08.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	records, err := csv.NewReader(bytes.NewReader(file.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, agendaHeaders, records[0])
	assert.Equal(t, []string{"2030-01-07", "09:00", "09:45", "45", "low", "scheduled", "", "pt-bk-1", "0", "bk-1"}, records[1])
	assert.Equal(t, "bk-2", records[2][9])

	to := f.bookings.filter.To
	require.NotNil(t, to)
	assert.Equal(t, clinicMonday.AddDate(0, 0, 2), *to)
}

func TestExportServiceAgendaPDF(t *testing.T) {
	f := newSchedulingFixture(t, nil, scheduledBooking("bk-1", at(clinicMonday, 9, 0), 30, models.PriorityMedium))
	svc := NewExportService(f.availability, f.bookings, nil, zap.NewNop())

	file, err := svc.Agenda(context.Background(), "dr-1", exportQuery("pdf"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestExportServiceAgendaRejectsBadInput(t *testing.T) {
	f := newSchedulingFixture(t, nil)
	svc := NewExportService(f.availability, f.bookings, nil, zap.NewNop())

	_, err := svc.Agenda(context.Background(), "dr-1", exportQuery("xlsx"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	q := exportQuery("csv")
	q.From, q.To = "2030-01-09", "2030-01-07"
	_, err = svc.Agenda(context.Background(), "dr-1", q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Agenda(context.Background(), "dr-404", exportQuery("csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
