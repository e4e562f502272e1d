package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/formschema"
	"github.com/campos-hq/campos-api/internal/models"
	"github.com/campos-hq/campos-api/internal/repository"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

// --- Shared fixtures ---

type txProviderMock struct {
	db *sqlx.DB
}

func (m *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

type formStoreStub struct {
	forms   map[string]*models.FormDefinition
	fields  map[string][]models.FormField
	options map[string][]models.FormOption
	nextID  int
}

func newFormStoreStub() *formStoreStub {
	return &formStoreStub{
		forms:   make(map[string]*models.FormDefinition),
		fields:  make(map[string][]models.FormField),
		options: make(map[string][]models.FormOption),
	}
}

func (s *formStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, form *models.FormDefinition) error {
	s.nextID++
	if form.ID == "" {
		form.ID = fmt.Sprintf("form-%d", s.nextID)
	}
	form.Version = 1
	form.Status = models.FormStatusDraft
	copy := *form
	s.forms[form.ID] = &copy
	return nil
}

func (s *formStoreStub) FindByID(ctx context.Context, id string) (*models.FormDefinition, error) {
	form, ok := s.forms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *form
	return &copy, nil
}

func (s *formStoreStub) List(ctx context.Context, filter models.FormFilter) ([]models.FormDefinition, error) {
	out := make([]models.FormDefinition, 0, len(s.forms))
	for _, form := range s.forms {
		out = append(out, *form)
	}
	return out, nil
}

func (s *formStoreStub) BumpVersion(ctx context.Context, exec sqlx.ExtContext, params repository.UpdateMetadataParams) (int, error) {
	form, ok := s.forms[params.FormID]
	if !ok || form.Version != params.ExpectedVersion {
		return 0, sql.ErrNoRows
	}
	form.Version++
	form.Name = params.Name
	form.Description = params.Description
	return form.Version, nil
}

func (s *formStoreStub) MarkPublished(ctx context.Context, exec sqlx.ExtContext, formID string, at time.Time) error {
	form, ok := s.forms[formID]
	if !ok {
		return sql.ErrNoRows
	}
	form.Published = true
	form.Status = models.FormStatusActive
	form.PublishedAt = &at
	return nil
}

func (s *formStoreStub) Archive(ctx context.Context, exec sqlx.ExtContext, formID string) error {
	form, ok := s.forms[formID]
	if !ok {
		return sql.ErrNoRows
	}
	form.Status = models.FormStatusArchived
	return nil
}

func (s *formStoreStub) ListFields(ctx context.Context, formID string) ([]models.FormField, error) {
	return s.fields[formID], nil
}

func (s *formStoreStub) InsertField(ctx context.Context, exec sqlx.ExtContext, field *models.FormField) error {
	s.fields[field.FormDefinitionID] = append(s.fields[field.FormDefinitionID], *field)
	return nil
}

func (s *formStoreStub) UpdateField(ctx context.Context, exec sqlx.ExtContext, field *models.FormField) error {
	list := s.fields[field.FormDefinitionID]
	for i := range list {
		if list[i].ID == field.ID {
			list[i] = *field
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *formStoreStub) DeleteField(ctx context.Context, exec sqlx.ExtContext, fieldID string) error {
	for formID, list := range s.fields {
		for i := range list {
			if list[i].ID == fieldID {
				s.fields[formID] = append(list[:i], list[i+1:]...)
				delete(s.options, fieldID)
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func (s *formStoreStub) ListOptionsByForm(ctx context.Context, formID string) ([]models.FormOption, error) {
	var out []models.FormOption
	for _, field := range s.fields[formID] {
		out = append(out, s.options[field.ID]...)
	}
	return out, nil
}

func (s *formStoreStub) ReplaceOptions(ctx context.Context, exec sqlx.ExtContext, fieldID string, options []models.FormOption) error {
	s.options[fieldID] = options
	return nil
}

func (s *formStoreStub) fieldByKey(formID, key string) *models.FormField {
	for i, field := range s.fields[formID] {
		if field.FieldKey == key {
			return &s.fields[formID][i]
		}
	}
	return nil
}

type snapshotStoreStub struct {
	snapshots map[string]*models.FormSnapshot
}

func newSnapshotStoreStub() *snapshotStoreStub {
	return &snapshotStoreStub{snapshots: make(map[string]*models.FormSnapshot)}
}

func snapshotKey(formID string, version int) string {
	return fmt.Sprintf("%s:%d", formID, version)
}

func (s *snapshotStoreStub) Upsert(ctx context.Context, exec sqlx.ExtContext, snapshot *models.FormSnapshot) error {
	key := snapshotKey(snapshot.FormDefinitionID, snapshot.Version)
	// Mirrors ON CONFLICT DO NOTHING: an existing row is never replaced.
	if _, ok := s.snapshots[key]; ok {
		return nil
	}
	copy := *snapshot
	s.snapshots[key] = &copy
	return nil
}

func (s *snapshotStoreStub) FindByFormVersion(ctx context.Context, formID string, version int) (*models.FormSnapshot, error) {
	snapshot, ok := s.snapshots[snapshotKey(formID, version)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *snapshot
	return &copy, nil
}

func (s *snapshotStoreStub) ListByForm(ctx context.Context, formID string) ([]models.FormSnapshot, error) {
	var out []models.FormSnapshot
	for _, snapshot := range s.snapshots {
		if snapshot.FormDefinitionID == formID {
			out = append(out, *snapshot)
		}
	}
	return out, nil
}

type eventStoreStub struct {
	events []models.Event
}

func (s *eventStoreStub) Append(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error {
	s.events = append(s.events, *event)
	return nil
}

func (s *eventStoreStub) types() []string {
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type formServiceFixture struct {
	svc       *FormService
	forms     *formStoreStub
	snapshots *snapshotStoreStub
	events    *eventStoreStub
	mock      sqlmock.Sqlmock
}

func newFormServiceFixture(t *testing.T, opts ...FormServiceOption) *formServiceFixture {
	forms := newFormStoreStub()
	snapshots := newSnapshotStoreStub()
	events := &eventStoreStub{}
	tx, mock := newTxProviderMock(t)
	return &formServiceFixture{
		svc:       NewFormService(forms, snapshots, events, tx, nil, opts...),
		forms:     forms,
		snapshots: snapshots,
		events:    events,
		mock:      mock,
	}
}

func (f *formServiceFixture) createDraft(t *testing.T, fields ...dto.FormFieldInput) *models.FormDefinition {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	form, err := f.svc.Create(context.Background(), "admin-1", dto.CreateFormRequest{
		CampID:   "camp-1",
		Name:     "Registration",
		FormType: models.FormTypeRegistration,
	})
	require.NoError(t, err)

	if len(fields) > 0 {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
		_, err = f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
			Name:            form.Name,
			ExpectedVersion: form.Version,
			Fields:          fields,
		})
		require.NoError(t, err)
		return f.forms.forms[form.ID]
	}
	return form
}

func textField(key string) dto.FormFieldInput {
	return dto.FormFieldInput{FieldKey: key, Label: key, FieldType: formschema.FieldTypeText}
}

// --- Tests ---

func TestFormServiceCreateStartsAtVersionOne(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t)

	assert.Equal(t, 1, form.Version)
	assert.Equal(t, models.FormStatusDraft, form.Status)
	assert.False(t, form.Published)
	assert.Equal(t, []string{models.EventFormCreated}, f.events.types())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFormServiceUpdateBumpsVersionByExactlyOne(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t, textField("name"))
	require.Equal(t, 2, form.Version)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	detail, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            "Registration v2",
		ExpectedVersion: 2,
		Fields:          []dto.FormFieldInput{textField("name"), textField("nickname")},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, detail.Version)
	assert.Len(t, detail.Fields, 2)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFormServiceUpdateStaleVersionConflicts(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t, textField("name"))

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            "Stale",
		ExpectedVersion: form.Version - 1,
		Fields:          []dto.FormFieldInput{textField("name")},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 2, f.forms.forms[form.ID].Version)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFormServiceUpdateRejectsFieldTypeChange(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t, textField("age"))

	_, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            form.Name,
		ExpectedVersion: form.Version,
		Fields: []dto.FormFieldInput{{
			FieldKey: "age", Label: "Age", FieldType: formschema.FieldTypeNumber,
		}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "cannot change type")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFormServiceUpdateRejectsDuplicateKeys(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t)

	_, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            form.Name,
		ExpectedVersion: form.Version,
		Fields:          []dto.FormFieldInput{textField("name"), textField("name")},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Len(t, appErr.Violations, 1)
	assert.Equal(t, "name", appErr.Violations[0].FieldKey)
}

func TestFormServiceUpdateRejectsOptionlessSelect(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t)

	_, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            form.Name,
		ExpectedVersion: form.Version,
		Fields: []dto.FormFieldInput{{
			FieldKey: "shirt", Label: "Shirt", FieldType: formschema.FieldTypeSelect,
		}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestFormServiceUpdateRemovesAbsentFields(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t, textField("name"), textField("nickname"))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	detail, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            form.Name,
		ExpectedVersion: form.Version,
		Fields:          []dto.FormFieldInput{textField("name")},
	})
	require.NoError(t, err)
	assert.Len(t, detail.Fields, 1)
	assert.Nil(t, f.forms.fieldByKey(form.ID, "nickname"))
}

func TestFormServiceUpdateKeepsStableKeysStable(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t, textField("name"))
	original := f.forms.fieldByKey(form.ID, "name")
	require.NotNil(t, original)
	originalID := original.ID

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            form.Name,
		ExpectedVersion: form.Version,
		Fields: []dto.FormFieldInput{{
			FieldKey: "name", Label: "Full name", FieldType: formschema.FieldTypeText,
		}},
	})
	require.NoError(t, err)

	updated := f.forms.fieldByKey(form.ID, "name")
	require.NotNil(t, updated)
	assert.Equal(t, originalID, updated.ID)
	assert.Equal(t, "Full name", updated.Label)
}

func TestFormServicePublishFreezesSnapshot(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t, textField("name"))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	published, err := f.svc.Publish(context.Background(), form.ID, "admin-1")
	require.NoError(t, err)
	assert.True(t, published.Published)
	assert.Equal(t, models.FormStatusActive, published.Status)

	snapshot, err := f.snapshots.FindByFormVersion(context.Background(), form.ID, published.Version)
	require.NoError(t, err)
	require.Len(t, snapshot.Structure.Fields, 1)
	assert.Equal(t, "name", snapshot.Structure.Fields[0].FieldKey)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFormServiceRepublishDoesNotOverwriteSnapshot(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t, textField("name"))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err := f.svc.Publish(context.Background(), form.ID, "admin-1")
	require.NoError(t, err)
	frozen := f.snapshots.snapshots[snapshotKey(form.ID, 2)]

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.svc.Publish(context.Background(), form.ID, "admin-1")
	require.NoError(t, err)
	assert.Same(t, frozen, f.snapshots.snapshots[snapshotKey(form.ID, 2)])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFormServiceUpdatePublishedFormFreezesNewSnapshot(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t, textField("name"))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	published, err := f.svc.Publish(context.Background(), form.ID, "admin-1")
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	detail, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            "Registration v3",
		ExpectedVersion: published.Version,
		Fields:          []dto.FormFieldInput{textField("name"), textField("email")},
	})
	require.NoError(t, err)

	snapshot, err := f.snapshots.FindByFormVersion(context.Background(), form.ID, detail.Version)
	require.NoError(t, err)
	assert.Len(t, snapshot.Structure.Fields, 2)
	assert.Equal(t, "Registration v3", snapshot.Structure.Name)
}

func TestFormServicePublishArchivedRejected(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t)
	f.forms.forms[form.ID].Status = models.FormStatusArchived

	_, err := f.svc.Publish(context.Background(), form.ID, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestFormServiceArchiveIsIdempotent(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.Archive(context.Background(), form.ID, "admin-1"))
	assert.Equal(t, models.FormStatusArchived, f.forms.forms[form.ID].Status)

	// No transaction is opened for the no-op second call.
	require.NoError(t, f.svc.Archive(context.Background(), form.ID, "admin-1"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFormServiceUpdateArchivedRejected(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t)
	f.forms.forms[form.ID].Status = models.FormStatusArchived

	_, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            form.Name,
		ExpectedVersion: form.Version,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestFormServiceUpdateEnforcesFieldCap(t *testing.T) {
	f := newFormServiceFixture(t, WithMaxFieldsPerForm(2))
	form := f.createDraft(t)

	_, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            form.Name,
		ExpectedVersion: form.Version,
		Fields:          []dto.FormFieldInput{textField("a"), textField("b"), textField("c")},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFormServiceCascadingOptionsResolveParents(t *testing.T) {
	f := newFormServiceFixture(t)
	parent := "day"
	form := f.createDraft(t, dto.FormFieldInput{
		FieldKey:  "slot",
		Label:     "Time slot",
		FieldType: formschema.FieldTypeSelect,
		Options: []dto.FormOptionInput{
			{Label: "Day", Value: "day"},
			{Label: "Morning", Value: "morning", ParentValue: &parent},
		},
	})

	field := f.forms.fieldByKey(form.ID, "slot")
	require.NotNil(t, field)
	options := f.forms.options[field.ID]
	require.Len(t, options, 2)
	require.NotNil(t, options[1].ParentOptionID)
	assert.Equal(t, options[0].ID, *options[1].ParentOptionID)
}

func TestFormServiceSnapshotKeepsDeepCascades(t *testing.T) {
	f := newFormServiceFixture(t)
	day := "day"
	morning := "morning"
	cascade := dto.FormFieldInput{
		FieldKey:  "slot",
		Label:     "Time slot",
		FieldType: formschema.FieldTypeSelect,
		Options: []dto.FormOptionInput{
			{Label: "Day", Value: "day"},
			{Label: "Morning", Value: "morning", ParentValue: &day},
			{Label: "Early", Value: "early", ParentValue: &morning},
		},
	}
	form := f.createDraft(t, cascade)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	published, err := f.svc.Publish(context.Background(), form.ID, "admin-1")
	require.NoError(t, err)

	snapshot, err := f.snapshots.FindByFormVersion(context.Background(), form.ID, published.Version)
	require.NoError(t, err)
	opts := snapshot.Structure.Fields[0].Options
	require.Len(t, opts, 1)
	require.Len(t, opts[0].Children, 1)
	require.Len(t, opts[0].Children[0].Children, 1)
	assert.Equal(t, "early", opts[0].Children[0].Children[0].Value)

	// Editing the published form rebuilds the snapshot from the request;
	// the third cascade level must survive that path too.
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	detail, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            form.Name,
		ExpectedVersion: published.Version,
		Fields:          []dto.FormFieldInput{cascade},
	})
	require.NoError(t, err)

	snapshot, err = f.snapshots.FindByFormVersion(context.Background(), form.ID, detail.Version)
	require.NoError(t, err)
	opts = snapshot.Structure.Fields[0].Options
	require.Len(t, opts, 1)
	require.Len(t, opts[0].Children, 1)
	require.Len(t, opts[0].Children[0].Children, 1)
	assert.Equal(t, "early", opts[0].Children[0].Children[0].Value)
}

func TestFormServiceRejectsCyclicOptionParents(t *testing.T) {
	f := newFormServiceFixture(t)
	form := f.createDraft(t)

	self := "pickup"
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            form.Name,
		ExpectedVersion: form.Version,
		Fields: []dto.FormFieldInput{{
			FieldKey: "pickup", Label: "Pickup", FieldType: formschema.FieldTypeSelect,
			Options: []dto.FormOptionInput{{Label: "Pickup", Value: "pickup", ParentValue: &self}},
		}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Len(t, appErr.Violations, 1)
	assert.Equal(t, "pickup", appErr.Violations[0].FieldKey)

	a := "a"
	b := "b"
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.Update(context.Background(), form.ID, "admin-1", dto.UpdateFormRequest{
		Name:            form.Name,
		ExpectedVersion: form.Version,
		Fields: []dto.FormFieldInput{{
			FieldKey: "loop", Label: "Loop", FieldType: formschema.FieldTypeSelect,
			Options: []dto.FormOptionInput{
				{Label: "A", Value: "a", ParentValue: &b},
				{Label: "B", Value: "b", ParentValue: &a},
			},
		}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFormServiceGetUnknownFormNotFound(t *testing.T) {
	f := newFormServiceFixture(t)
	_, err := f.svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
