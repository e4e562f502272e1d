package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/models"
	"github.com/campos-hq/campos-api/internal/service"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
	"github.com/campos-hq/campos-api/pkg/response"
)

type rosterService interface {
	CreateGroup(ctx context.Context, req dto.CreateGroupRequest) (*models.Group, error)
	ListGroups(ctx context.Context, sessionID string) ([]models.Group, error)
	AssignCamper(ctx context.Context, groupID, camperID string) error
	RemoveCamper(ctx context.Context, groupID, camperID string) error
	Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error)
	Export(ctx context.Context, sessionID, format string) (*service.ExportResult, error)
	ResolveDownload(token string) (string, error)
}

// RosterHandler exposes group and roster-export endpoints.
type RosterHandler struct {
	service rosterService
}

// NewRosterHandler constructs the handler.
func NewRosterHandler(service rosterService) *RosterHandler {
	return &RosterHandler{service: service}
}

// CreateGroup godoc
// @Summary Create a staff group within a session
// @Tags Rosters
// @Accept json
// @Produce json
// @Param payload body dto.CreateGroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Router /groups [post]
func (h *RosterHandler) CreateGroup(c *gin.Context) {
	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group payload"))
		return
	}
	group, err := h.service.CreateGroup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// ListGroups godoc
// @Summary List a session's groups
// @Tags Rosters
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/groups [get]
func (h *RosterHandler) ListGroups(c *gin.Context) {
	groups, err := h.service.ListGroups(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// AssignCamper godoc
// @Summary Place a camper into a group
// @Tags Rosters
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body dto.AssignCamperRequest true "Assignment payload"
// @Success 204 {object} nil
// @Router /groups/{id}/campers [post]
func (h *RosterHandler) AssignCamper(c *gin.Context) {
	var req dto.AssignCamperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
		return
	}
	if err := h.service.AssignCamper(c.Request.Context(), c.Param("id"), req.CamperID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveCamper godoc
// @Summary Remove a camper from a group
// @Tags Rosters
// @Produce json
// @Param id path string true "Group ID"
// @Param camperId path string true "Camper ID"
// @Success 204 {object} nil
// @Router /groups/{id}/campers/{camperId} [delete]
func (h *RosterHandler) RemoveCamper(c *gin.Context) {
	if err := h.service.RemoveCamper(c.Request.Context(), c.Param("id"), c.Param("camperId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Roster godoc
// @Summary List the denormalized roster for a session
// @Tags Rosters
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/roster [get]
func (h *RosterHandler) Roster(c *gin.Context) {
	roster, err := h.service.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Export godoc
// @Summary Export a session roster as CSV or PDF
// @Tags Rosters
// @Produce json
// @Param id path string true "Session ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Router /sessions/{id}/roster/export [post]
func (h *RosterHandler) Export(c *gin.Context) {
	result, err := h.service.Export(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download an exported roster via a signed token
// @Tags Rosters
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /exports/download [get]
func (h *RosterHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	path, err := h.service.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.File(path)
}
