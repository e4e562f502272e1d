package models

import "time"

// Event types recorded for each meaningful state transition.
const (
	EventFormCreated      = "FORM_CREATED"
	EventFormUpdated      = "FORM_UPDATED"
	EventFormPublished    = "FORM_PUBLISHED"
	EventFormArchived     = "FORM_ARCHIVED"
	EventFormSubmitted    = "FORM_SUBMITTED"
	EventAIActionCreated  = "AI_ACTION_CREATED"
	EventAIActionReviewed = "AI_ACTION_REVIEWED"
	EventAIActionExecuted = "AI_ACTION_EXECUTED"
	EventRegistrationMade = "REGISTRATION_CREATED"
	EventMedicationLogged = "MEDICATION_LOGGED"
	EventIncidentReported = "INCIDENT_REPORTED"
)

// Event is one append-only audit record. Rows are never updated or deleted;
// one row is written per meaningful state transition, inside the same
// transaction as the transition itself.
type Event struct {
	ID        string    `db:"id" json:"id"`
	StreamID  string    `db:"stream_id" json:"stream_id"`
	EventType string    `db:"event_type" json:"event_type"`
	Payload   []byte    `db:"payload" json:"payload,omitempty"`
	Version   int       `db:"version" json:"version"`
	ActorID   *string   `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EventFilter constrains audit listings.
type EventFilter struct {
	StreamID  string
	EventType string
	Limit     int
	Offset    int
}
