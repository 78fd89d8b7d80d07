package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-scheduler-api/internal/dto"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
	"github.com/noah-isme/clinic-scheduler-api/pkg/response"
)

type scheduleOptimizer interface {
	Optimize(ctx context.Context, providerID, trigger string) (*dto.ProposalResponse, error)
	Get(providerID, proposalID string) (*dto.ProposalResponse, error)
	Apply(ctx context.Context, providerID, proposalID string) (*dto.ApplyProposalResponse, error)
}

// OptimizerHandler exposes proposal generation and application.
type OptimizerHandler struct {
	service scheduleOptimizer
}

// NewOptimizerHandler constructs the handler.
func NewOptimizerHandler(svc scheduleOptimizer) *OptimizerHandler {
	return &OptimizerHandler{service: svc}
}

// Optimize godoc
// @Summary Propose reschedules for a provider
// @Description Runs the greedy optimizer on a snapshot. Nothing is changed until the proposal is applied.
// @Tags Optimizer
// @Produce json
// @Param providerId path string true "Provider ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /optimize/{providerId} [post]
func (h *OptimizerHandler) Optimize(c *gin.Context) {
	result, err := h.service.Optimize(c.Request.Context(), c.Param("providerId"), service.TriggerAPI)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Proposal godoc
// @Summary Fetch a stored proposal
// @Tags Optimizer
// @Produce json
// @Param providerId path string true "Provider ID"
// @Param proposalId path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /optimize/{providerId}/proposals/{proposalId} [get]
func (h *OptimizerHandler) Proposal(c *gin.Context) {
	result, err := h.service.Get(c.Param("providerId"), c.Param("proposalId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Apply godoc
// @Summary Apply a stored proposal
// @Description Each move is re-validated under the provider lock; stale moves are skipped.
// @Tags Optimizer
// @Produce json
// @Param providerId path string true "Provider ID"
// @Param proposalId path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /optimize/{providerId}/proposals/{proposalId}/apply [post]
func (h *OptimizerHandler) Apply(c *gin.Context) {
	result, err := h.service.Apply(c.Request.Context(), c.Param("providerId"), c.Param("proposalId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
