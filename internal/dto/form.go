package dto

import (
	"github.com/campos-hq/campos-api/internal/formschema"
	"github.com/campos-hq/campos-api/internal/models"
)

// FormOptionInput is one proposed option for an option-bearing field.
type FormOptionInput struct {
	Label          string   `json:"label" binding:"required"`
	Value          string   `json:"value" binding:"required"`
	ParentValue    *string  `json:"parentValue,omitempty"`
	TriggersFields []string `json:"triggersFields,omitempty"`
}

// FormFieldInput describes one field in a create/update payload. Fields are
// matched to stored fields by fieldKey.
type FormFieldInput struct {
	FieldKey   string                 `json:"fieldKey" binding:"required"`
	Label      string                 `json:"label" binding:"required"`
	HelpText   *string                `json:"helpText,omitempty"`
	FieldType  formschema.FieldType   `json:"fieldType" binding:"required"`
	Required   bool                   `json:"required"`
	Validation models.ValidationRules `json:"validation"`
	Conditions models.ConditionList   `json:"conditions,omitempty"`
	Section    *string                `json:"section,omitempty"`
	Options    []FormOptionInput      `json:"options,omitempty"`
}

// CreateFormRequest creates a new draft definition with no fields.
type CreateFormRequest struct {
	CampID      string          `json:"campId" binding:"required"`
	SessionID   *string         `json:"sessionId,omitempty"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	FormType    models.FormType `json:"formType" binding:"required"`
}

// UpdateFormRequest reconciles the stored field list against the given one.
// ExpectedVersion is the version the editor read; a mismatch on commit means
// another edit landed first and the update is rejected.
type UpdateFormRequest struct {
	Name            string           `json:"name" binding:"required"`
	Description     string           `json:"description"`
	ExpectedVersion int              `json:"expectedVersion" binding:"required"`
	Fields          []FormFieldInput `json:"fields"`
}

// FormFieldDetail pairs a stored field with its options.
type FormFieldDetail struct {
	models.FormField
	Options []models.FormOption `json:"options,omitempty"`
}

// FormDetail is a definition with its full field list in display order.
type FormDetail struct {
	models.FormDefinition
	Fields []FormFieldDetail `json:"fields"`
}

// SubmitFormRequest posts one answer set for a published form.
type SubmitFormRequest struct {
	CamperID       *string                  `json:"camperId,omitempty"`
	RegistrationID *string                  `json:"registrationId,omitempty"`
	SessionID      *string                  `json:"sessionId,omitempty"`
	Payload        models.SubmissionPayload `json:"payload" binding:"required"`
}

// ProposeFormRequest records an AI-generated form structure as a pending action.
type ProposeFormRequest struct {
	Proposal models.AIFormGeneration `json:"proposal" binding:"required"`
}

// ReviewAIActionRequest carries the approver's decision.
type ReviewAIActionRequest struct {
	Decision models.AIActionStatus `json:"decision" binding:"required"`
	Note     string                `json:"note,omitempty"`
}
