package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
	"github.com/noah-isme/clinic-scheduler-api/pkg/response"
)

type availabilityManager interface {
	OpenIntervals(ctx context.Context, providerID string, q dto.DateRangeQuery) ([]dto.IntervalResponse, error)
	ReplaceTemplates(ctx context.Context, providerID string, req dto.ReplaceTemplatesRequest) ([]models.AvailabilityTemplate, error)
	UpsertException(ctx context.Context, providerID, date string, req dto.UpsertExceptionRequest) (*models.AvailabilityException, error)
}

// AvailabilityHandler manages provider working hours.
type AvailabilityHandler struct {
	service availabilityManager
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(svc availabilityManager) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Intervals godoc
// @Summary Preview open intervals
// @Tags Availability
// @Produce json
// @Param providerId path string true "Provider ID"
// @Param from query string true "First date (YYYY-MM-DD)"
// @Param to query string true "Last date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /providers/{providerId}/availability [get]
func (h *AvailabilityHandler) Intervals(c *gin.Context) {
	var q dto.DateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid date range"))
		return
	}
	result, err := h.service.OpenIntervals(c.Request.Context(), c.Param("providerId"), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ReplaceTemplates godoc
// @Summary Replace the weekly template
// @Tags Availability
// @Accept json
// @Produce json
// @Param providerId path string true "Provider ID"
// @Param payload body dto.ReplaceTemplatesRequest true "Weekly template"
// @Success 200 {object} response.Envelope
// @Router /providers/{providerId}/availability/templates [put]
func (h *AvailabilityHandler) ReplaceTemplates(c *gin.Context) {
	var req dto.ReplaceTemplatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability template"))
		return
	}
	result, err := h.service.ReplaceTemplates(c.Request.Context(), c.Param("providerId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UpsertException godoc
// @Summary Override availability for one date
// @Tags Availability
// @Accept json
// @Produce json
// @Param providerId path string true "Provider ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param payload body dto.UpsertExceptionRequest true "Exception"
// @Success 200 {object} response.Envelope
// @Router /providers/{providerId}/availability/exceptions/{date} [put]
func (h *AvailabilityHandler) UpsertException(c *gin.Context) {
	var req dto.UpsertExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability exception"))
		return
	}
	result, err := h.service.UpsertException(c.Request.Context(), c.Param("providerId"), c.Param("date"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
