package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
	"github.com/noah-isme/clinic-scheduler-api/pkg/response"
)

type slotFinder interface {
	FindOptimalSlots(ctx context.Context, req dto.OptimalSlotsRequest) (*dto.OptimalSlotsResponse, error)
}

// SlotHandler serves slot search.
type SlotHandler struct {
	service slotFinder
}

// NewSlotHandler constructs the handler.
func NewSlotHandler(svc slotFinder) *SlotHandler {
	return &SlotHandler{service: svc}
}

// OptimalSlots godoc
// @Summary Rank the best free slots of a provider
// @Description Returns at most five candidates, best score first and earliest start on ties.
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.OptimalSlotsRequest true "Slot search"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /optimal-slots [post]
func (h *SlotHandler) OptimalSlots(c *gin.Context) {
	var req dto.OptimalSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot search payload"))
		return
	}
	result, err := h.service.FindOptimalSlots(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
