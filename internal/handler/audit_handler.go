package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campos-hq/campos-api/internal/models"
	"github.com/campos-hq/campos-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
}

// AuditHandler exposes the audit event trail.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service auditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List godoc
// @Summary List audit events
// @Tags Audit
// @Produce json
// @Param streamId query string false "Stream ID (form, session or action ID)"
// @Param eventType query string false "Event type"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.EventFilter{
		StreamID:  strings.TrimSpace(c.Query("streamId")),
		EventType: strings.TrimSpace(c.Query("eventType")),
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

	events, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}
