package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
	"github.com/campos-hq/campos-api/pkg/response"
)

type registrationService interface {
	CreateCamper(ctx context.Context, parentID string, req dto.CreateCamperRequest) (*models.Camper, error)
	ListCampers(ctx context.Context, parentID string) ([]models.Camper, error)
	UpdateCamper(ctx context.Context, actor *models.JWTClaims, camperID string, req dto.UpdateCamperRequest) (*models.Camper, error)
	Register(ctx context.Context, actor *models.JWTClaims, req dto.CreateRegistrationRequest) (*models.Registration, error)
	Cancel(ctx context.Context, actor *models.JWTClaims, registrationID string) error
	List(ctx context.Context, actor *models.JWTClaims, filter models.RegistrationFilter) ([]models.Registration, error)
}

// RegistrationHandler exposes camper and registration endpoints.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(service registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: service}
}

// CreateCamper godoc
// @Summary Add a camper to the calling parent's account
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.CreateCamperRequest true "Camper payload"
// @Success 201 {object} response.Envelope
// @Router /campers [post]
func (h *RegistrationHandler) CreateCamper(c *gin.Context) {
	var req dto.CreateCamperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid camper payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	camper, err := h.service.CreateCamper(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, camper)
}

// UpdateCamper godoc
// @Summary Update a camper's details
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Camper ID"
// @Param payload body dto.UpdateCamperRequest true "Camper payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /campers/{id} [put]
func (h *RegistrationHandler) UpdateCamper(c *gin.Context) {
	var req dto.UpdateCamperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid camper payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	camper, err := h.service.UpdateCamper(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, camper, nil)
}

// ListCampers godoc
// @Summary List the calling parent's campers
// @Tags Registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /campers [get]
func (h *RegistrationHandler) ListCampers(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	campers, err := h.service.ListCampers(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campers, nil)
}

// Register godoc
// @Summary Enroll a camper into a session
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.CreateRegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req dto.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid registration payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reg, err := h.service.Register(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// Cancel godoc
// @Summary Cancel a registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 204 {object} nil
// @Router /registrations/{id} [delete]
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Cancel(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List registrations
// @Tags Registrations
// @Produce json
// @Param sessionId query string false "Session ID"
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.RegistrationFilter{SessionID: strings.TrimSpace(c.Query("sessionId"))}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part != "" {
				filter.Status = append(filter.Status, models.RegistrationStatus(part))
			}
		}
	}
	regs, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}
