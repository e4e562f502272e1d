package handler

import (
	"context"
	"errors"
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

type submissionService interface {
	Submit(ctx context.Context, formID string, submitterID *string, req dto.SubmitFormRequest) (*models.FormSubmission, error)
	Get(ctx context.Context, id string) (*models.FormSubmission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.FormSubmission, error)
}

// SubmissionHandler exposes REST endpoints for form submissions.
type SubmissionHandler struct {
	service submissionService
	metrics *service.MetricsService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service submissionService, metrics *service.MetricsService) *SubmissionHandler {
	return &SubmissionHandler{service: service, metrics: metrics}
}

// Submit godoc
// @Summary Submit answers for a published form
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Form ID"
// @Param payload body dto.SubmitFormRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /forms/{id}/submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req dto.SubmitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submitterID := &claims.UserID

	submission, err := h.service.Submit(c.Request.Context(), c.Param("id"), submitterID, req)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrValidation.Code {
			h.metrics.SubmissionRejected()
		}
		response.Error(c, err)
		return
	}
	h.metrics.SubmissionAccepted()
	response.Created(c, submission)
}

// Get godoc
// @Summary Get a stored submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	submission, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// List godoc
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Param formId query string false "Form definition ID"
// @Param sessionId query string false "Session ID"
// @Param submittedBy query string false "Submitter user ID"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	filter := models.SubmissionFilter{
		FormDefinitionID: strings.TrimSpace(c.Query("formId")),
		SessionID:        strings.TrimSpace(c.Query("sessionId")),
		SubmittedBy:      strings.TrimSpace(c.Query("submittedBy")),
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

	submissions, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}
