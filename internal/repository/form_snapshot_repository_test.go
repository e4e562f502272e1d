package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campos-hq/campos-api/internal/models"
)

func TestFormSnapshotRepositoryUpsertIgnoresExistingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFormSnapshotRepository(db)

	// The conflict target swallows the duplicate; zero rows affected is fine.
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (form_definition_id, version) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	snapshot := &models.FormSnapshot{
		FormDefinitionID: "form-1",
		Version:          2,
		Structure:        models.SnapshotDocument{Name: "Intake", FormType: models.FormTypeCustom},
	}
	require.NoError(t, repo.Upsert(context.Background(), nil, snapshot))
	assert.NotEmpty(t, snapshot.ID)
	assert.False(t, snapshot.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormSnapshotRepositoryFindByFormVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFormSnapshotRepository(db)

	structure := []byte(`{"name":"Intake","formType":"CUSTOM","fields":[{"fieldKey":"name","label":"Name","fieldType":"text","required":true,"validation":{},"displayOrder":0}]}`)
	rows := sqlmock.NewRows([]string{"id", "form_definition_id", "version", "structure", "created_at"}).
		AddRow("snap-1", "form-1", 2, structure, time.Now())
	mock.ExpectQuery("SELECT id, form_definition_id, version, structure, created_at").
		WithArgs("form-1", 2).
		WillReturnRows(rows)

	snapshot, err := repo.FindByFormVersion(context.Background(), "form-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.Version)
	require.Len(t, snapshot.Structure.Fields, 1)
	assert.Equal(t, "name", snapshot.Structure.Fields[0].FieldKey)
	assert.True(t, snapshot.Structure.Fields[0].Required)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormSnapshotRepositoryListByFormNewestFirst(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFormSnapshotRepository(db)

	rows := sqlmock.NewRows([]string{"id", "form_definition_id", "version", "structure", "created_at"}).
		AddRow("snap-2", "form-1", 2, []byte(`{}`), time.Now()).
		AddRow("snap-1", "form-1", 1, []byte(`{}`), time.Now())
	mock.ExpectQuery("ORDER BY version DESC").
		WithArgs("form-1").
		WillReturnRows(rows)

	snapshots, err := repo.ListByForm(context.Background(), "form-1")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 2, snapshots[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
