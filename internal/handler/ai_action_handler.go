package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/models"
	"github.com/campos-hq/campos-api/internal/service"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
	"github.com/campos-hq/campos-api/pkg/response"
)

type aiActionService interface {
	Propose(ctx context.Context, requesterID string, proposal models.AIFormGeneration) (*models.AIAction, error)
	Review(ctx context.Context, actionID, reviewerID string, decision models.AIActionStatus) (*models.AIAction, error)
	Execute(ctx context.Context, actionID, actorID string) (*models.FormDefinition, error)
	Get(ctx context.Context, id string) (*models.AIAction, error)
	List(ctx context.Context, filter models.AIActionFilter) ([]models.AIAction, error)
}

// AIActionHandler exposes REST endpoints for the AI proposal workflow.
type AIActionHandler struct {
	service aiActionService
	metrics *service.MetricsService
}

// NewAIActionHandler constructs the handler.
func NewAIActionHandler(service aiActionService, metrics *service.MetricsService) *AIActionHandler {
	return &AIActionHandler{service: service, metrics: metrics}
}

// Propose godoc
// @Summary Record a generated form structure as a pending action
// @Tags AI Actions
// @Accept json
// @Produce json
// @Param payload body dto.ProposeFormRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Router /ai/actions [post]
func (h *AIActionHandler) Propose(c *gin.Context) {
	var req dto.ProposeFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid proposal payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	action, err := h.service.Propose(c.Request.Context(), claims.UserID, req.Proposal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, action)
}

// List godoc
// @Summary List AI actions
// @Tags AI Actions
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /ai/actions [get]
func (h *AIActionHandler) List(c *gin.Context) {
	filter := models.AIActionFilter{}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part != "" {
				filter.Status = append(filter.Status, models.AIActionStatus(part))
			}
		}
	}
	actions, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actions, nil)
}

// Get godoc
// @Summary Get one AI action
// @Tags AI Actions
// @Produce json
// @Param id path string true "Action ID"
// @Success 200 {object} response.Envelope
// @Router /ai/actions/{id} [get]
func (h *AIActionHandler) Get(c *gin.Context) {
	action, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, action, nil)
}

// Review godoc
// @Summary Approve or reject a pending AI action
// @Tags AI Actions
// @Accept json
// @Produce json
// @Param id path string true "Action ID"
// @Param payload body dto.ReviewAIActionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /ai/actions/{id}/review [post]
func (h *AIActionHandler) Review(c *gin.Context) {
	var req dto.ReviewAIActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	action, err := h.service.Review(c.Request.Context(), c.Param("id"), claims.UserID, req.Decision)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, action, nil)
}

// Execute godoc
// @Summary Materialize an approved AI action into a draft form
// @Tags AI Actions
// @Produce json
// @Param id path string true "Action ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /ai/actions/{id}/execute [post]
func (h *AIActionHandler) Execute(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	form, err := h.service.Execute(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.AIActionExecuted()
	response.Created(c, form)
}
