package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/campos-hq/campos-api/internal/formschema"
)

// AIActionKind enumerates supported proposal categories.
type AIActionKind string

const (
	AIActionKindFormGeneration AIActionKind = "FORM_GENERATION"
)

// AIActionStatus captures the approval workflow states.
// pending → approved → executed, or pending → rejected (terminal).
type AIActionStatus string

const (
	AIActionStatusPending  AIActionStatus = "PENDING"
	AIActionStatusApproved AIActionStatus = "APPROVED"
	AIActionStatusExecuted AIActionStatus = "EXECUTED"
	AIActionStatusRejected AIActionStatus = "REJECTED"
)

// AIFormOption is one proposed option of a proposed field.
type AIFormOption struct {
	Label          string   `json:"label"`
	Value          string   `json:"value"`
	ParentValue    *string  `json:"parentValue,omitempty"`
	TriggersFields []string `json:"triggersFields,omitempty"`
}

// AIFormField is one proposed field of a generated form.
type AIFormField struct {
	FieldKey   string               `json:"fieldKey"`
	Label      string               `json:"label"`
	HelpText   *string              `json:"helpText,omitempty"`
	FieldType  formschema.FieldType `json:"fieldType"`
	Required   bool                 `json:"required"`
	Validation ValidationRules      `json:"validation"`
	Conditions ConditionList        `json:"conditions,omitempty"`
	Section    *string              `json:"section,omitempty"`
	Options    []AIFormOption       `json:"options,omitempty"`
}

// AIFormGeneration is the full proposed form structure produced out-of-band
// by the AI generator; this service only consumes it.
type AIFormGeneration struct {
	CampID      string        `json:"campId"`
	SessionID   *string       `json:"sessionId,omitempty"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	FormType    FormType      `json:"formType"`
	Fields      []AIFormField `json:"fields"`
}

// Value implements driver.Valuer.
func (g AIFormGeneration) Value() (driver.Value, error) {
	return json.Marshal(g)
}

// Scan implements sql.Scanner.
func (g *AIFormGeneration) Scan(src interface{}) error {
	return scanJSON(src, g)
}

// AIAction is a proposed mutation awaiting human approval before execution.
type AIAction struct {
	ID          string           `db:"id" json:"id"`
	Kind        AIActionKind     `db:"kind" json:"kind"`
	Status      AIActionStatus   `db:"status" json:"status"`
	Parameters  AIFormGeneration `db:"parameters" json:"parameters"`
	RequestedBy string           `db:"requested_by" json:"requested_by"`
	ReviewedBy  *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ExecutedAt  *time.Time       `db:"executed_at" json:"executed_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// AIActionFilter constrains AI action listings.
type AIActionFilter struct {
	Status      []AIActionStatus
	Kind        AIActionKind
	RequestedBy string
	Limit       int
	Offset      int
}
