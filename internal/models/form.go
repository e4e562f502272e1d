package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campos-hq/campos-api/internal/formschema"
)

// FormType categorizes what a form collects.
type FormType string

const (
	FormTypeRegistration FormType = "REGISTRATION"
	FormTypeWaiver       FormType = "WAIVER"
	FormTypeMedical      FormType = "MEDICAL"
	FormTypeCustom       FormType = "CUSTOM"
)

// FormStatus captures a form definition's lifecycle.
type FormStatus string

const (
	FormStatusDraft    FormStatus = "DRAFT"
	FormStatusActive   FormStatus = "ACTIVE"
	FormStatusArchived FormStatus = "ARCHIVED"
)

// FormDefinition is the editable, named description of a form. Version only
// ever increases; every successful edit bumps it by exactly one.
type FormDefinition struct {
	ID          string     `db:"id" json:"id"`
	CampID      string     `db:"camp_id" json:"camp_id"`
	SessionID   *string    `db:"session_id" json:"session_id,omitempty"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	FormType    FormType   `db:"form_type" json:"form_type"`
	Status      FormStatus `db:"status" json:"status"`
	Published   bool       `db:"published" json:"published"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
	Version     int        `db:"version" json:"version"`
	AIActionID  *string    `db:"ai_action_id" json:"ai_action_id,omitempty"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// FormFilter constrains form definition listings.
type FormFilter struct {
	CampID    string
	SessionID string
	FormType  FormType
	Status    []FormStatus
	Published *bool
	Limit     int
	Offset    int
}

// ValidationRules mirrors formschema.Rules as a JSONB column.
type ValidationRules formschema.Rules

// Value implements driver.Valuer.
func (r ValidationRules) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *ValidationRules) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// DisplayCondition gates a field's visibility on another field's value.
type DisplayCondition struct {
	FieldKey string      `json:"fieldKey"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// ConditionList is a JSONB-backed list of display conditions.
type ConditionList []DisplayCondition

// Value implements driver.Valuer.
func (l ConditionList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]DisplayCondition{})
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *ConditionList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// StringList is a JSONB-backed string slice.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// FormField belongs to exactly one FormDefinition. The field key is stable:
// it is unique within the form and never changes across edits. A new key
// always means a new field.
type FormField struct {
	ID               string               `db:"id" json:"id"`
	FormDefinitionID string               `db:"form_definition_id" json:"form_definition_id"`
	FieldKey         string               `db:"field_key" json:"field_key"`
	Label            string               `db:"label" json:"label"`
	HelpText         *string              `db:"help_text" json:"help_text,omitempty"`
	FieldType        formschema.FieldType `db:"field_type" json:"field_type"`
	Required         bool                 `db:"required" json:"required"`
	Validation       ValidationRules      `db:"validation" json:"validation"`
	Conditions       ConditionList        `db:"conditions" json:"conditions,omitempty"`
	DisplayOrder     int                  `db:"display_order" json:"display_order"`
	Section          *string              `db:"section" json:"section,omitempty"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at" json:"updated_at"`
}

// FormOption is one enumerated choice of an option-bearing field. Options are
// fully replaced on every field edit, never patched in place.
type FormOption struct {
	ID             string     `db:"id" json:"id"`
	FieldID        string     `db:"field_id" json:"field_id"`
	Label          string     `db:"label" json:"label"`
	Value          string     `db:"value" json:"value"`
	DisplayOrder   int        `db:"display_order" json:"display_order"`
	ParentOptionID *string    `db:"parent_option_id" json:"parent_option_id,omitempty"`
	TriggersFields StringList `db:"triggers_fields" json:"triggers_fields,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// SnapshotOption is the denormalized option inside a snapshot document.
type SnapshotOption struct {
	Label          string           `json:"label"`
	Value          string           `json:"value"`
	DisplayOrder   int              `json:"displayOrder"`
	ParentValue    *string          `json:"parentValue,omitempty"`
	TriggersFields []string         `json:"triggersFields,omitempty"`
	Children       []SnapshotOption `json:"children,omitempty"`
}

// SnapshotField is the denormalized field inside a snapshot document.
type SnapshotField struct {
	FieldKey     string               `json:"fieldKey"`
	Label        string               `json:"label"`
	HelpText     *string              `json:"helpText,omitempty"`
	FieldType    formschema.FieldType `json:"fieldType"`
	Required     bool                 `json:"required"`
	Validation   ValidationRules      `json:"validation"`
	Conditions   ConditionList        `json:"conditions,omitempty"`
	DisplayOrder int                  `json:"displayOrder"`
	Section      *string              `json:"section,omitempty"`
	Options      []SnapshotOption     `json:"options,omitempty"`
}

// SnapshotDocument is the fully-expanded form structure frozen at a version.
type SnapshotDocument struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	FormType    FormType        `json:"formType"`
	Fields      []SnapshotField `json:"fields"`
}

// Value implements driver.Valuer.
func (d SnapshotDocument) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *SnapshotDocument) Scan(src interface{}) error {
	return scanJSON(src, d)
}

// FormSnapshot is the immutable copy of a form structure at one version. It
// is the sole source of truth when validating submissions for that version.
type FormSnapshot struct {
	ID               string           `db:"id" json:"id"`
	FormDefinitionID string           `db:"form_definition_id" json:"form_definition_id"`
	Version          int              `db:"version" json:"version"`
	Structure        SnapshotDocument `db:"structure" json:"structure"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// SubmissionPayload is the flat key→value answer set keyed by field key.
type SubmissionPayload map[string]interface{}

// Value implements driver.Valuer.
func (p SubmissionPayload) Value() (driver.Value, error) {
	if p == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *SubmissionPayload) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// SubmissionStatus tracks post-acceptance processing of a submission.
type SubmissionStatus string

const (
	SubmissionStatusReceived SubmissionStatus = "RECEIVED"
	SubmissionStatusReviewed SubmissionStatus = "REVIEWED"
)

// FormSubmission is one user's answer set, validated against the snapshot
// whose version it carries, never against the live definition.
type FormSubmission struct {
	ID               string            `db:"id" json:"id"`
	FormDefinitionID string            `db:"form_definition_id" json:"form_definition_id"`
	FormVersion      int               `db:"form_version" json:"form_version"`
	SubmittedBy      *string           `db:"submitted_by" json:"submitted_by,omitempty"`
	CamperID         *string           `db:"camper_id" json:"camper_id,omitempty"`
	RegistrationID   *string           `db:"registration_id" json:"registration_id,omitempty"`
	SessionID        *string           `db:"session_id" json:"session_id,omitempty"`
	Payload          SubmissionPayload `db:"payload" json:"payload"`
	Status           SubmissionStatus  `db:"status" json:"status"`
	SubmittedAt      time.Time         `db:"submitted_at" json:"submitted_at"`
}

// SubmissionFilter constrains submission listings.
type SubmissionFilter struct {
	FormDefinitionID string
	SessionID        string
	SubmittedBy      string
	Limit            int
	Offset           int
}

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	}
	return fmt.Errorf("unsupported json column type %T", src)
}
