package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/formschema"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

type submissionStoreStub struct {
	submissions map[string]*models.FormSubmission
	nextID      int
}

func newSubmissionStoreStub() *submissionStoreStub {
	return &submissionStoreStub{submissions: make(map[string]*models.FormSubmission)}
}

func (s *submissionStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, submission *models.FormSubmission) error {
	s.nextID++
	if submission.ID == "" {
		submission.ID = fmt.Sprintf("sub-%d", s.nextID)
	}
	submission.Status = models.SubmissionStatusReceived
	copy := *submission
	s.submissions[submission.ID] = &copy
	return nil
}

func (s *submissionStoreStub) FindByID(ctx context.Context, id string) (*models.FormSubmission, error) {
	submission, ok := s.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *submission
	return &copy, nil
}

func (s *submissionStoreStub) List(ctx context.Context, filter models.SubmissionFilter) ([]models.FormSubmission, error) {
	out := make([]models.FormSubmission, 0, len(s.submissions))
	for _, submission := range s.submissions {
		out = append(out, *submission)
	}
	return out, nil
}

type snapshotCacheStub struct {
	entries map[string][]byte
	hits    int
	misses  int
}

func newSnapshotCacheStub() *snapshotCacheStub {
	return &snapshotCacheStub{entries: make(map[string][]byte)}
}

func (c *snapshotCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		c.misses++
		return appErrors.ErrCacheMiss
	}
	c.hits++
	return json.Unmarshal(raw, dest)
}

func (c *snapshotCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func newSubmissionFixture(t *testing.T, opts ...SubmissionServiceOption) (*SubmissionService, *submissionStoreStub, *formStoreStub, *snapshotStoreStub, *eventStoreStub, func(commit bool)) {
	submissions := newSubmissionStoreStub()
	forms := newFormStoreStub()
	snapshots := newSnapshotStoreStub()
	events := &eventStoreStub{}
	tx, mock := newTxProviderMock(t)
	svc := NewSubmissionService(submissions, forms, snapshots, events, tx, nil, opts...)
	expectTx := func(commit bool) {
		mock.ExpectBegin()
		if commit {
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}
	}
	return svc, submissions, forms, snapshots, events, expectTx
}

// publishedForm seeds a published form at version 1 with a frozen snapshot.
func publishedForm(t *testing.T, forms *formStoreStub, snapshots *snapshotStoreStub, fields ...models.SnapshotField) *models.FormDefinition {
	form := &models.FormDefinition{CampID: "camp-1", Name: "Health", FormType: models.FormTypeMedical, CreatedBy: "admin-1"}
	require.NoError(t, forms.Create(context.Background(), nil, form))
	stored := forms.forms[form.ID]
	stored.Published = true
	stored.Status = models.FormStatusActive

	require.NoError(t, snapshots.Upsert(context.Background(), nil, &models.FormSnapshot{
		FormDefinitionID: form.ID,
		Version:          stored.Version,
		Structure: models.SnapshotDocument{
			Name:     stored.Name,
			FormType: stored.FormType,
			Fields:   fields,
		},
	}))
	return stored
}

func requiredTextField(key string) models.SnapshotField {
	return models.SnapshotField{FieldKey: key, Label: key, FieldType: formschema.FieldTypeText, Required: true}
}

func TestSubmissionServiceSubmitStoresSnapshotVersion(t *testing.T) {
	svc, submissions, forms, snapshots, events, expectTx := newSubmissionFixture(t)
	form := publishedForm(t, forms, snapshots, requiredTextField("allergies"))

	expectTx(true)
	submission, err := svc.Submit(context.Background(), form.ID, strPtr("parent-1"), dto.SubmitFormRequest{
		Payload: models.SubmissionPayload{"allergies": "peanuts"},
	})
	require.NoError(t, err)
	assert.Equal(t, form.Version, submission.FormVersion)
	assert.Equal(t, models.SubmissionStatusReceived, submission.Status)
	assert.Len(t, submissions.submissions, 1)
	assert.Equal(t, []string{models.EventFormSubmitted}, events.types())
}

func TestSubmissionServiceSubmitCollectsAllViolations(t *testing.T) {
	svc, submissions, forms, snapshots, _, _ := newSubmissionFixture(t)
	form := publishedForm(t, forms, snapshots,
		requiredTextField("allergies"),
		models.SnapshotField{FieldKey: "age", FieldType: formschema.FieldTypeNumber, Required: true},
	)

	_, err := svc.Submit(context.Background(), form.ID, strPtr("parent-1"), dto.SubmitFormRequest{
		Payload: models.SubmissionPayload{},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Len(t, appErr.Violations, 2)
	assert.Empty(t, submissions.submissions)
}

func TestSubmissionServiceSubmitMissingSnapshotConflicts(t *testing.T) {
	svc, _, forms, _, _, _ := newSubmissionFixture(t)
	form := &models.FormDefinition{CampID: "camp-1", Name: "Health", FormType: models.FormTypeMedical}
	require.NoError(t, forms.Create(context.Background(), nil, form))
	forms.forms[form.ID].Published = true
	forms.forms[form.ID].Status = models.FormStatusActive

	_, err := svc.Submit(context.Background(), form.ID, nil, dto.SubmitFormRequest{Payload: models.SubmissionPayload{}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSnapshotMissing.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
}

func TestSubmissionServiceSubmitUnpublishedRejected(t *testing.T) {
	svc, _, forms, _, _, _ := newSubmissionFixture(t)
	form := &models.FormDefinition{CampID: "camp-1", Name: "Draft", FormType: models.FormTypeCustom}
	require.NoError(t, forms.Create(context.Background(), nil, form))

	_, err := svc.Submit(context.Background(), form.ID, nil, dto.SubmitFormRequest{Payload: models.SubmissionPayload{}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceSubmitArchivedRejected(t *testing.T) {
	svc, _, forms, snapshots, _, _ := newSubmissionFixture(t)
	form := publishedForm(t, forms, snapshots)
	forms.forms[form.ID].Status = models.FormStatusArchived

	_, err := svc.Submit(context.Background(), form.ID, nil, dto.SubmitFormRequest{Payload: models.SubmissionPayload{}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceValidatesAgainstFrozenSnapshotNotLiveForm(t *testing.T) {
	svc, _, forms, snapshots, _, expectTx := newSubmissionFixture(t)
	form := publishedForm(t, forms, snapshots, requiredTextField("allergies"))

	// An edit lands after publish but before its own snapshot is frozen:
	// the live field list changes while the version-1 snapshot stays put.
	forms.fields[form.ID] = []models.FormField{{
		ID: "f-new", FormDefinitionID: form.ID, FieldKey: "medications",
		FieldType: formschema.FieldTypeText, Required: true,
	}}

	expectTx(true)
	submission, err := svc.Submit(context.Background(), form.ID, nil, dto.SubmitFormRequest{
		Payload: models.SubmissionPayload{"allergies": "none"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, submission.FormVersion)
}

func TestSubmissionServiceSnapshotCacheReadThrough(t *testing.T) {
	cache := newSnapshotCacheStub()
	svc, _, forms, snapshots, _, expectTx := newSubmissionFixture(t, WithSnapshotCache(cache, time.Minute))
	form := publishedForm(t, forms, snapshots, requiredTextField("allergies"))

	payload := dto.SubmitFormRequest{Payload: models.SubmissionPayload{"allergies": "none"}}
	expectTx(true)
	_, err := svc.Submit(context.Background(), form.ID, nil, payload)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.misses)
	assert.Contains(t, cache.entries, fmt.Sprintf("form:snapshot:%s:%d", form.ID, form.Version))

	expectTx(true)
	_, err = svc.Submit(context.Background(), form.ID, nil, payload)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
}

func TestSubmissionServiceGetNotFound(t *testing.T) {
	svc, _, _, _, _, _ := newSubmissionFixture(t)
	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func strPtr(s string) *string { return &s }
