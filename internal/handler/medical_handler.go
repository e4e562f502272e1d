package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
	"github.com/campos-hq/campos-api/pkg/response"
)

type medicalService interface {
	LogMedication(ctx context.Context, nurseID string, req dto.CreateMedicationLogRequest) (*models.MedicationLog, error)
	MedicationHistory(ctx context.Context, camperID string) ([]models.MedicationLog, error)
	ReportIncident(ctx context.Context, reporterID string, req dto.CreateIncidentRequest) (*models.IncidentReport, error)
	Incidents(ctx context.Context, sessionID string) ([]models.IncidentReport, error)
}

// MedicalHandler exposes medication and incident endpoints.
type MedicalHandler struct {
	service medicalService
}

// NewMedicalHandler constructs the handler.
func NewMedicalHandler(service medicalService) *MedicalHandler {
	return &MedicalHandler{service: service}
}

// LogMedication godoc
// @Summary Record a medication administration
// @Tags Medical
// @Accept json
// @Produce json
// @Param payload body dto.CreateMedicationLogRequest true "Medication payload"
// @Success 201 {object} response.Envelope
// @Router /medical/medications [post]
func (h *MedicalHandler) LogMedication(c *gin.Context) {
	var req dto.CreateMedicationLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid medication payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	log, err := h.service.LogMedication(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, log)
}

// MedicationHistory godoc
// @Summary List a camper's medication history
// @Tags Medical
// @Produce json
// @Param camperId path string true "Camper ID"
// @Success 200 {object} response.Envelope
// @Router /medical/campers/{camperId}/medications [get]
func (h *MedicalHandler) MedicationHistory(c *gin.Context) {
	logs, err := h.service.MedicationHistory(c.Request.Context(), c.Param("camperId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// ReportIncident godoc
// @Summary Record an incident report
// @Tags Medical
// @Accept json
// @Produce json
// @Param payload body dto.CreateIncidentRequest true "Incident payload"
// @Success 201 {object} response.Envelope
// @Router /medical/incidents [post]
func (h *MedicalHandler) ReportIncident(c *gin.Context) {
	var req dto.CreateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid incident payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.service.ReportIncident(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// Incidents godoc
// @Summary List a session's incident reports
// @Tags Medical
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /medical/sessions/{sessionId}/incidents [get]
func (h *MedicalHandler) Incidents(c *gin.Context) {
	reports, err := h.service.Incidents(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, nil)
}
