package models

import "time"

// MedicationLog records one administration of medication to a camper.
type MedicationLog struct {
	ID             string    `db:"id" json:"id"`
	CamperID       string    `db:"camper_id" json:"camper_id"`
	SessionID      string    `db:"session_id" json:"session_id"`
	NurseID        string    `db:"nurse_id" json:"nurse_id"`
	Medication     string    `db:"medication" json:"medication"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	AdministeredAt time.Time `db:"administered_at" json:"administered_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// IncidentSeverity grades incident reports.
type IncidentSeverity string

const (
	IncidentSeverityMinor    IncidentSeverity = "MINOR"
	IncidentSeverityModerate IncidentSeverity = "MODERATE"
	IncidentSeveritySevere   IncidentSeverity = "SEVERE"
)

// IncidentReport records an injury or health incident involving a camper.
type IncidentReport struct {
	ID          string           `db:"id" json:"id"`
	CamperID    string           `db:"camper_id" json:"camper_id"`
	SessionID   string           `db:"session_id" json:"session_id"`
	ReportedBy  string           `db:"reported_by" json:"reported_by"`
	Severity    IncidentSeverity `db:"severity" json:"severity"`
	Description string           `db:"description" json:"description"`
	ActionTaken *string          `db:"action_taken" json:"action_taken,omitempty"`
	OccurredAt  time.Time        `db:"occurred_at" json:"occurred_at"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
