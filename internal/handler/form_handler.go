package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/models"
	"github.com/campos-hq/campos-api/internal/service"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
	"github.com/campos-hq/campos-api/pkg/response"
)

type formService interface {
	Create(ctx context.Context, actorID string, req dto.CreateFormRequest) (*models.FormDefinition, error)
	Get(ctx context.Context, formID string) (*dto.FormDetail, error)
	List(ctx context.Context, filter models.FormFilter) ([]models.FormDefinition, error)
	Update(ctx context.Context, formID, actorID string, req dto.UpdateFormRequest) (*dto.FormDetail, error)
	Publish(ctx context.Context, formID, actorID string) (*models.FormDefinition, error)
	Archive(ctx context.Context, formID, actorID string) error
	ListSnapshots(ctx context.Context, formID string) ([]models.FormSnapshot, error)
}

// FormHandler exposes REST endpoints for form definitions.
type FormHandler struct {
	service formService
	metrics *service.MetricsService
}

// NewFormHandler constructs the handler.
func NewFormHandler(service formService, metrics *service.MetricsService) *FormHandler {
	return &FormHandler{service: service, metrics: metrics}
}

// Create godoc
// @Summary Create a draft form definition
// @Tags Forms
// @Accept json
// @Produce json
// @Param payload body dto.CreateFormRequest true "Form payload"
// @Success 201 {object} response.Envelope
// @Router /forms [post]
func (h *FormHandler) Create(c *gin.Context) {
	var req dto.CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid form payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	form, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, form)
}

// List godoc
// @Summary List form definitions
// @Tags Forms
// @Produce json
// @Param campId query string false "Camp ID"
// @Param sessionId query string false "Session ID"
// @Param type query string false "Form type"
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /forms [get]
func (h *FormHandler) List(c *gin.Context) {
	filter := models.FormFilter{
		CampID:    strings.TrimSpace(c.Query("campId")),
		SessionID: strings.TrimSpace(c.Query("sessionId")),
	}
	if rawType := c.Query("type"); rawType != "" {
		filter.FormType = models.FormType(strings.ToUpper(rawType))
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part != "" {
				filter.Status = append(filter.Status, models.FormStatus(part))
			}
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			filter.Offset = offset
		}
	}

	forms, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, forms, nil)
}

// Get godoc
// @Summary Get a form definition with its fields
// @Tags Forms
// @Produce json
// @Param id path string true "Form ID"
// @Success 200 {object} response.Envelope
// @Router /forms/{id} [get]
func (h *FormHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Update a form definition
// @Description Reconciles the stored field list against the submitted one and bumps the version.
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path string true "Form ID"
// @Param payload body dto.UpdateFormRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /forms/{id} [put]
func (h *FormHandler) Update(c *gin.Context) {
	var req dto.UpdateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid update payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.Update(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Publish godoc
// @Summary Publish a form definition
// @Tags Forms
// @Produce json
// @Param id path string true "Form ID"
// @Success 200 {object} response.Envelope
// @Router /forms/{id}/publish [post]
func (h *FormHandler) Publish(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	form, err := h.service.Publish(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.FormPublished()
	response.JSON(c, http.StatusOK, form, nil)
}

// Archive godoc
// @Summary Archive a form definition
// @Tags Forms
// @Produce json
// @Param id path string true "Form ID"
// @Success 204 {object} nil
// @Router /forms/{id} [delete]
func (h *FormHandler) Archive(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Archive(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Snapshots godoc
// @Summary List a form's frozen snapshots
// @Tags Forms
// @Produce json
// @Param id path string true "Form ID"
// @Success 200 {object} response.Envelope
// @Router /forms/{id}/snapshots [get]
func (h *FormHandler) Snapshots(c *gin.Context) {
	snapshots, err := h.service.ListSnapshots(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots, nil)
}
