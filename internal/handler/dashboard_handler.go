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

type dashboardService interface {
	Summary(ctx context.Context, campID string) (*dto.DashboardSummary, error)
}

// DashboardHandler exposes the per-camp counter endpoint.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Get the camp dashboard counters
// @Tags Dashboard
// @Produce json
// @Param campId query string false "Camp ID, defaults to the caller's camp"
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	campID := strings.TrimSpace(c.Query("campId"))
	if campID == "" {
		campID = claims.CampID
	}
	if campID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "campId is required"))
		return
	}
	if claims.Role != models.RoleSuperAdmin && claims.CampID != "" && claims.CampID != campID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), campID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
