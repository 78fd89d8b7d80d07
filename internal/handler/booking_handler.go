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

type bookingManager interface {
	Schedule(ctx context.Context, req dto.ScheduleRequest) (*models.Booking, error)
	Get(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, providerID string, q dto.BookingListQuery) ([]models.Booking, *models.Pagination, error)
	Cancel(ctx context.Context, id string, req dto.CancelRequest) (*models.Booking, error)
	Complete(ctx context.Context, id string) (*models.Booking, error)
	Reschedule(ctx context.Context, id string, req dto.RescheduleRequest) (*models.Booking, error)
}

// BookingHandler exposes booking endpoints.
type BookingHandler struct {
	service bookingManager
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(svc bookingManager) *BookingHandler {
	return &BookingHandler{service: svc}
}

// Schedule godoc
// @Summary Book a slot
// @Description Commits the booking under the provider lock. 409 when the range is taken, 503 when the lock wait expires.
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /schedule [post]
func (h *BookingHandler) Schedule(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	req.RequesterID = requesterFor(c, req.RequesterID)
	booking, err := h.service.Schedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// List godoc
// @Summary List a provider's bookings
// @Tags Bookings
// @Produce json
// @Param providerId path string true "Provider ID"
// @Param status query []string false "Statuses" collectionFormat(multi)
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /providers/{providerId}/bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	var q dto.BookingListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking filter"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), c.Param("providerId"), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Cancel godoc
// @Summary Cancel a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.CancelRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	var req dto.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancellation payload"))
			return
		}
	}
	booking, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Complete godoc
// @Summary Mark a booking as completed
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/complete [post]
func (h *BookingHandler) Complete(c *gin.Context) {
	booking, err := h.service.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Reschedule godoc
// @Summary Move a booking to a new start
// @Description The old booking is closed as rescheduled and the new scheduled booking is returned.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.RescheduleRequest true "New start"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings/{id}/reschedule [post]
func (h *BookingHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	booking, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}
