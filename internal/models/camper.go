package models

import "time"

// Camper is a child managed by a parent account.
type Camper struct {
	ID            string    `db:"id" json:"id"`
	ParentID      string    `db:"parent_id" json:"parent_id"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	DateOfBirth   time.Time `db:"date_of_birth" json:"date_of_birth"`
	Allergies     *string   `db:"allergies" json:"allergies,omitempty"`
	MedicalNotes  *string   `db:"medical_notes" json:"medical_notes,omitempty"`
	EmergencyName *string   `db:"emergency_name" json:"emergency_name,omitempty"`
	EmergencyTel  *string   `db:"emergency_tel" json:"emergency_tel,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// RegistrationStatus tracks a camper's enrollment into a session.
type RegistrationStatus string

const (
	RegistrationStatusPending    RegistrationStatus = "PENDING"
	RegistrationStatusConfirmed  RegistrationStatus = "CONFIRMED"
	RegistrationStatusWaitlisted RegistrationStatus = "WAITLISTED"
	RegistrationStatusCancelled  RegistrationStatus = "CANCELLED"
)

// Registration enrolls one camper into one session. It may reference the
// registration-form submission the parent completed.
type Registration struct {
	ID           string             `db:"id" json:"id"`
	CamperID     string             `db:"camper_id" json:"camper_id"`
	SessionID    string             `db:"session_id" json:"session_id"`
	ParentID     string             `db:"parent_id" json:"parent_id"`
	SubmissionID *string            `db:"submission_id" json:"submission_id,omitempty"`
	Status       RegistrationStatus `db:"status" json:"status"`
	RegisteredAt time.Time          `db:"registered_at" json:"registered_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// RegistrationFilter constrains registration listing queries.
type RegistrationFilter struct {
	SessionID string
	CamperID  string
	ParentID  string
	Status    []RegistrationStatus
	Limit     int
	Offset    int
}
