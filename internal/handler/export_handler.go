package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
	"github.com/noah-isme/clinic-scheduler-api/pkg/response"
)

type agendaExporter interface {
	Agenda(ctx context.Context, providerID string, q dto.ExportQuery) (*service.AgendaFile, error)
}

// ExportHandler streams agenda documents.
type ExportHandler struct {
	service agendaExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc agendaExporter) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Agenda godoc
// @Summary Download a provider agenda
// @Tags Bookings
// @Produce text/csv
// @Produce application/pdf
// @Param providerId path string true "Provider ID"
// @Param from query string true "First date (YYYY-MM-DD)"
// @Param to query string true "Last date (YYYY-MM-DD)"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /providers/{providerId}/bookings/export [get]
func (h *ExportHandler) Agenda(c *gin.Context) {
	var q dto.ExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.service.Agenda(c.Request.Context(), c.Param("providerId"), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
