package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campos-hq/campos-api/internal/formschema"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

type aiActionStoreStub struct {
	actions map[string]*models.AIAction
	nextID  int
}

func newAIActionStoreStub() *aiActionStoreStub {
	return &aiActionStoreStub{actions: make(map[string]*models.AIAction)}
}

func (s *aiActionStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, action *models.AIAction) error {
	s.nextID++
	if action.ID == "" {
		action.ID = fmt.Sprintf("action-%d", s.nextID)
	}
	copy := *action
	s.actions[action.ID] = &copy
	return nil
}

func (s *aiActionStoreStub) FindByID(ctx context.Context, id string) (*models.AIAction, error) {
	action, ok := s.actions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *action
	return &copy, nil
}

func (s *aiActionStoreStub) List(ctx context.Context, filter models.AIActionFilter) ([]models.AIAction, error) {
	out := make([]models.AIAction, 0, len(s.actions))
	for _, action := range s.actions {
		out = append(out, *action)
	}
	return out, nil
}

func (s *aiActionStoreStub) TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.AIActionStatus, reviewedBy *string, executedAt *time.Time) error {
	action, ok := s.actions[id]
	if !ok || action.Status != from {
		return sql.ErrNoRows
	}
	action.Status = to
	if reviewedBy != nil {
		action.ReviewedBy = reviewedBy
	}
	if executedAt != nil {
		action.ExecutedAt = executedAt
	}
	return nil
}

func newAIActionFixture(t *testing.T) (*AIActionService, *aiActionStoreStub, *formStoreStub, *eventStoreStub, func(commit bool)) {
	actions := newAIActionStoreStub()
	forms := newFormStoreStub()
	events := &eventStoreStub{}
	tx, mock := newTxProviderMock(t)
	svc := NewAIActionService(actions, forms, events, tx, nil)
	expectTx := func(commit bool) {
		mock.ExpectBegin()
		if commit {
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}
	}
	return svc, actions, forms, events, expectTx
}

func sampleProposal() models.AIFormGeneration {
	return models.AIFormGeneration{
		CampID:   "camp-1",
		Name:     "Generated intake",
		FormType: models.FormTypeCustom,
		Fields: []models.AIFormField{
			{FieldKey: "name", Label: "Name", FieldType: formschema.FieldTypeText, Required: true},
			{FieldKey: "shirt", Label: "Shirt", FieldType: formschema.FieldTypeSelect, Options: []models.AIFormOption{
				{Label: "Small", Value: "S"},
				{Label: "Medium", Value: "M"},
			}},
		},
	}
}

func TestAIActionServiceProposeStartsPending(t *testing.T) {
	svc, actions, _, events, expectTx := newAIActionFixture(t)

	expectTx(true)
	action, err := svc.Propose(context.Background(), "admin-1", sampleProposal())
	require.NoError(t, err)
	assert.Equal(t, models.AIActionStatusPending, action.Status)
	assert.Equal(t, models.AIActionKindFormGeneration, action.Kind)
	assert.Len(t, actions.actions, 1)
	assert.Equal(t, []string{models.EventAIActionCreated}, events.types())
}

func TestAIActionServiceProposeRejectsBrokenStructure(t *testing.T) {
	svc, actions, _, _, _ := newAIActionFixture(t)

	proposal := sampleProposal()
	proposal.Fields = append(proposal.Fields, models.AIFormField{
		FieldKey: "name", Label: "Duplicate", FieldType: formschema.FieldTypeText,
	})
	_, err := svc.Propose(context.Background(), "admin-1", proposal)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, actions.actions)
}

func TestAIActionServiceProposeRejectsOptionlessSelect(t *testing.T) {
	svc, _, _, _, _ := newAIActionFixture(t)

	proposal := sampleProposal()
	proposal.Fields[1].Options = nil
	_, err := svc.Propose(context.Background(), "admin-1", proposal)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Len(t, appErr.Violations, 1)
	assert.Equal(t, "shirt", appErr.Violations[0].FieldKey)
}

func TestAIActionServiceReviewApprove(t *testing.T) {
	svc, _, _, events, expectTx := newAIActionFixture(t)
	expectTx(true)
	action, err := svc.Propose(context.Background(), "admin-1", sampleProposal())
	require.NoError(t, err)

	expectTx(true)
	reviewed, err := svc.Review(context.Background(), action.ID, "admin-2", models.AIActionStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.AIActionStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, "admin-2", *reviewed.ReviewedBy)
	assert.Equal(t, []string{models.EventAIActionCreated, models.EventAIActionReviewed}, events.types())
}

func TestAIActionServiceReviewRejectIsTerminal(t *testing.T) {
	svc, _, _, _, expectTx := newAIActionFixture(t)
	expectTx(true)
	action, err := svc.Propose(context.Background(), "admin-1", sampleProposal())
	require.NoError(t, err)

	expectTx(true)
	_, err = svc.Review(context.Background(), action.ID, "admin-2", models.AIActionStatusRejected)
	require.NoError(t, err)

	expectTx(false)
	_, err = svc.Review(context.Background(), action.ID, "admin-3", models.AIActionStatusApproved)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	_, err = svc.Execute(context.Background(), action.ID, "admin-3")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestAIActionServiceReviewRequiresDecision(t *testing.T) {
	svc, _, _, _, _ := newAIActionFixture(t)
	_, err := svc.Review(context.Background(), "any", "admin-1", models.AIActionStatusExecuted)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAIActionServiceExecuteMaterializesDraft(t *testing.T) {
	svc, actions, forms, events, expectTx := newAIActionFixture(t)
	expectTx(true)
	action, err := svc.Propose(context.Background(), "admin-1", sampleProposal())
	require.NoError(t, err)
	expectTx(true)
	_, err = svc.Review(context.Background(), action.ID, "admin-2", models.AIActionStatusApproved)
	require.NoError(t, err)

	expectTx(true)
	form, err := svc.Execute(context.Background(), action.ID, "admin-2")
	require.NoError(t, err)
	assert.Equal(t, models.FormStatusDraft, form.Status)
	assert.False(t, form.Published)
	require.NotNil(t, form.AIActionID)
	assert.Equal(t, action.ID, *form.AIActionID)

	fields := forms.fields[form.ID]
	require.Len(t, fields, 2)
	shirt := forms.fieldByKey(form.ID, "shirt")
	require.NotNil(t, shirt)
	assert.Len(t, forms.options[shirt.ID], 2)

	stored := actions.actions[action.ID]
	assert.Equal(t, models.AIActionStatusExecuted, stored.Status)
	require.NotNil(t, stored.ExecutedAt)
	assert.Equal(t, []string{
		models.EventAIActionCreated,
		models.EventAIActionReviewed,
		models.EventAIActionExecuted,
		models.EventFormCreated,
	}, events.types())
}

func TestAIActionServiceExecuteOnlyOnce(t *testing.T) {
	svc, _, forms, _, expectTx := newAIActionFixture(t)
	expectTx(true)
	action, err := svc.Propose(context.Background(), "admin-1", sampleProposal())
	require.NoError(t, err)
	expectTx(true)
	_, err = svc.Review(context.Background(), action.ID, "admin-2", models.AIActionStatusApproved)
	require.NoError(t, err)
	expectTx(true)
	_, err = svc.Execute(context.Background(), action.ID, "admin-2")
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), action.ID, "admin-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Len(t, forms.forms, 1)
}

func TestAIActionServiceExecuteRejectsCyclicOptionParents(t *testing.T) {
	svc, _, _, _, expectTx := newAIActionFixture(t)

	self := "S"
	proposal := sampleProposal()
	proposal.Fields[1].Options = []models.AIFormOption{
		{Label: "Small", Value: "S", ParentValue: &self},
	}
	expectTx(true)
	action, err := svc.Propose(context.Background(), "admin-1", proposal)
	require.NoError(t, err)
	expectTx(true)
	_, err = svc.Review(context.Background(), action.ID, "admin-2", models.AIActionStatusApproved)
	require.NoError(t, err)

	expectTx(false)
	_, err = svc.Execute(context.Background(), action.ID, "admin-2")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Len(t, appErr.Violations, 1)
	assert.Equal(t, "S", appErr.Violations[0].FieldKey)
}

func TestAIActionServiceExecutePendingRejected(t *testing.T) {
	svc, _, _, _, expectTx := newAIActionFixture(t)
	expectTx(true)
	action, err := svc.Propose(context.Background(), "admin-1", sampleProposal())
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), action.ID, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}
