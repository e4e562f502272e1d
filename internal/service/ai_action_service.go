package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campos-hq/campos-api/internal/formschema"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

type aiActionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, action *models.AIAction) error
	FindByID(ctx context.Context, id string) (*models.AIAction, error)
	List(ctx context.Context, filter models.AIActionFilter) ([]models.AIAction, error)
	TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.AIActionStatus, reviewedBy *string, executedAt *time.Time) error
}

// AIActionService runs the propose/review/execute workflow for AI-generated
// form structures. A proposal never touches form tables until a human
// approves it and execution is requested.
type AIActionService struct {
	actions aiActionStore
	forms   formStore
	events  eventStore
	tx      txProvider
	logger  *zap.Logger
}

// NewAIActionService constructs the service.
func NewAIActionService(actions aiActionStore, forms formStore, events eventStore, tx txProvider, logger *zap.Logger) *AIActionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIActionService{actions: actions, forms: forms, events: events, tx: tx, logger: logger}
}

// Propose records a generated form structure as a pending action. The
// structure is checked for the same structural rules a manual edit must
// satisfy, so a broken proposal is rejected before it ever reaches a reviewer.
func (s *AIActionService) Propose(ctx context.Context, requesterID string, proposal models.AIFormGeneration) (*models.AIAction, error) {
	if err := validateProposal(proposal); err != nil {
		return nil, err
	}

	action := &models.AIAction{
		Kind:        models.AIActionKindFormGeneration,
		Status:      models.AIActionStatusPending,
		Parameters:  proposal,
		RequestedBy: requesterID,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin propose: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.actions.Create(ctx, tx, action); err != nil {
		return nil, err
	}
	if err = s.appendActionEvent(ctx, tx, action.ID, models.EventAIActionCreated, requesterID, map[string]interface{}{
		"kind": action.Kind,
		"name": proposal.Name,
	}); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit propose: %w", err)
	}

	s.logger.Info("ai action proposed",
		zap.String("action_id", action.ID),
		zap.String("requested_by", requesterID),
		zap.Int("fields", len(proposal.Fields)))
	return action, nil
}

// Review settles a pending action. APPROVED keeps it eligible for execution;
// REJECTED is terminal. Any other decision, or reviewing an action that is no
// longer pending, is rejected.
func (s *AIActionService) Review(ctx context.Context, actionID, reviewerID string, decision models.AIActionStatus) (*models.AIAction, error) {
	if decision != models.AIActionStatusApproved && decision != models.AIActionStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}
	if _, err := s.actions.FindByID(ctx, actionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load ai action: %w", err)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin review: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.actions.TransitionStatus(ctx, tx, actionID, models.AIActionStatusPending, decision, &reviewerID, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrInvalidState, "only pending actions can be reviewed")
		}
		return nil, err
	}
	if err = s.appendActionEvent(ctx, tx, actionID, models.EventAIActionReviewed, reviewerID, map[string]interface{}{
		"decision": decision,
	}); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review: %w", err)
	}

	s.logger.Info("ai action reviewed",
		zap.String("action_id", actionID),
		zap.String("decision", string(decision)),
		zap.String("reviewed_by", reviewerID))
	return s.actions.FindByID(ctx, actionID)
}

// Execute materializes an approved proposal into a draft form definition.
// The definition, its fields and options, the EXECUTED transition, and both
// audit events commit in one transaction; a failure anywhere leaves the
// action approved and no form behind. Executing twice fails on the status
// guard, so a proposal can only ever yield one form.
func (s *AIActionService) Execute(ctx context.Context, actionID, actorID string) (*models.FormDefinition, error) {
	action, err := s.actions.FindByID(ctx, actionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load ai action: %w", err)
	}
	if action.Status != models.AIActionStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("only approved actions can be executed, current status is %s", action.Status))
	}

	proposal := action.Parameters
	form := &models.FormDefinition{
		CampID:      proposal.CampID,
		SessionID:   proposal.SessionID,
		Name:        proposal.Name,
		Description: proposal.Description,
		FormType:    proposal.FormType,
		AIActionID:  &action.ID,
		CreatedBy:   actorID,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if err = s.actions.TransitionStatus(ctx, tx, actionID, models.AIActionStatusApproved, models.AIActionStatusExecuted, action.ReviewedBy, &now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrInvalidState, "the action was executed or reverted concurrently")
		}
		return nil, err
	}
	if err = s.forms.Create(ctx, tx, form); err != nil {
		return nil, err
	}
	for order, input := range proposal.Fields {
		field := models.FormField{
			ID:               uuid.NewString(),
			FormDefinitionID: form.ID,
			FieldKey:         input.FieldKey,
			Label:            input.Label,
			HelpText:         input.HelpText,
			FieldType:        input.FieldType,
			Required:         input.Required,
			Validation:       input.Validation,
			Conditions:       input.Conditions,
			DisplayOrder:     order,
			Section:          input.Section,
		}
		if err = s.forms.InsertField(ctx, tx, &field); err != nil {
			return nil, err
		}
		if formschema.SupportsOptions(input.FieldType) {
			var rows []models.FormOption
			if rows, err = proposalOptionRows(field.ID, input.Options); err != nil {
				return nil, err
			}
			if err = s.forms.ReplaceOptions(ctx, tx, field.ID, rows); err != nil {
				return nil, err
			}
		}
	}
	if err = s.appendActionEvent(ctx, tx, actionID, models.EventAIActionExecuted, actorID, map[string]interface{}{
		"formId": form.ID,
	}); err != nil {
		return nil, err
	}
	formEvent := &models.Event{
		StreamID:  form.ID,
		EventType: models.EventFormCreated,
		Version:   form.Version,
		ActorID:   &actorID,
	}
	if formEvent.Payload, err = json.Marshal(map[string]interface{}{"aiActionId": actionID}); err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	if err = s.events.Append(ctx, tx, formEvent); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute: %w", err)
	}

	s.logger.Info("ai action executed",
		zap.String("action_id", actionID),
		zap.String("form_id", form.ID),
		zap.Int("fields", len(proposal.Fields)))
	return form, nil
}

// Get returns one action.
func (s *AIActionService) Get(ctx context.Context, id string) (*models.AIAction, error) {
	action, err := s.actions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load ai action: %w", err)
	}
	return action, nil
}

// List returns actions matching the filter.
func (s *AIActionService) List(ctx context.Context, filter models.AIActionFilter) ([]models.AIAction, error) {
	return s.actions.List(ctx, filter)
}

func (s *AIActionService) appendActionEvent(ctx context.Context, exec sqlx.ExtContext, actionID, eventType, actorID string, payload map[string]interface{}) error {
	event := &models.Event{
		StreamID:  actionID,
		EventType: eventType,
		ActorID:   &actorID,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	event.Payload = raw
	return s.events.Append(ctx, exec, event)
}

// validateProposal applies the same structural rules manual edits face.
func validateProposal(proposal models.AIFormGeneration) error {
	if proposal.CampID == "" || proposal.Name == "" || proposal.FormType == "" {
		return appErrors.Clone(appErrors.ErrValidation, "proposal requires campId, name, and formType")
	}
	violations := make([]appErrors.FieldViolation, 0)
	seen := make(map[string]struct{}, len(proposal.Fields))
	for _, field := range proposal.Fields {
		if field.FieldKey == "" {
			violations = append(violations, appErrors.FieldViolation{FieldKey: field.FieldKey, Message: "field key is required"})
			continue
		}
		if _, dup := seen[field.FieldKey]; dup {
			violations = append(violations, appErrors.FieldViolation{FieldKey: field.FieldKey, Message: "duplicate field key"})
			continue
		}
		seen[field.FieldKey] = struct{}{}

		if formschema.SupportsOptions(field.FieldType) {
			if len(field.Options) == 0 {
				violations = append(violations, appErrors.FieldViolation{FieldKey: field.FieldKey, Message: "option-bearing field requires at least one option"})
			}
		} else if len(field.Options) > 0 {
			violations = append(violations, appErrors.FieldViolation{FieldKey: field.FieldKey, Message: fmt.Sprintf("field type %s does not accept options", field.FieldType)})
		}
	}
	if len(violations) > 0 {
		return appErrors.WithViolations(violations)
	}
	return nil
}

func proposalOptionRows(fieldID string, inputs []models.AIFormOption) ([]models.FormOption, error) {
	rows := make([]models.FormOption, 0, len(inputs))
	byValue := make(map[string]int, len(inputs))
	for order, input := range inputs {
		if _, dup := byValue[input.Value]; dup {
			return nil, appErrors.WithViolations([]appErrors.FieldViolation{{
				FieldKey: input.Value, Message: "duplicate option value",
			}})
		}
		byValue[input.Value] = order
		rows = append(rows, models.FormOption{
			ID:             uuid.NewString(),
			FieldID:        fieldID,
			Label:          input.Label,
			Value:          input.Value,
			DisplayOrder:   order,
			TriggersFields: input.TriggersFields,
		})
	}
	parents := make([]*string, len(inputs))
	for i, input := range inputs {
		parents[i] = input.ParentValue
	}
	for i, input := range inputs {
		if input.ParentValue == nil {
			continue
		}
		idx, ok := byValue[*input.ParentValue]
		if !ok {
			return nil, appErrors.WithViolations([]appErrors.FieldViolation{{
				FieldKey: input.Value, Message: fmt.Sprintf("parent option %q does not exist", *input.ParentValue),
			}})
		}
		if optionParentCycles(parents, byValue, i, idx) {
			return nil, appErrors.WithViolations([]appErrors.FieldViolation{{
				FieldKey: input.Value, Message: "option cannot name itself or a descendant as parent",
			}})
		}
		parentID := rows[idx].ID
		rows[i].ParentOptionID = &parentID
	}
	return rows, nil
}
