package dto

import "github.com/campos-hq/campos-api/internal/models"

// CreateMedicationLogRequest records one medication administration.
type CreateMedicationLogRequest struct {
	CamperID       string  `json:"camperId" binding:"required"`
	SessionID      string  `json:"sessionId" binding:"required"`
	Medication     string  `json:"medication" binding:"required"`
	Dosage         string  `json:"dosage" binding:"required"`
	Notes          *string `json:"notes,omitempty"`
	AdministeredAt string  `json:"administeredAt,omitempty"`
}

// CreateIncidentRequest records an injury or health incident.
type CreateIncidentRequest struct {
	CamperID    string                  `json:"camperId" binding:"required"`
	SessionID   string                  `json:"sessionId" binding:"required"`
	Severity    models.IncidentSeverity `json:"severity" binding:"required"`
	Description string                  `json:"description" binding:"required"`
	ActionTaken *string                 `json:"actionTaken,omitempty"`
	OccurredAt  string                  `json:"occurredAt,omitempty"`
}
