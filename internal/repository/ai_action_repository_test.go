package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campos-hq/campos-api/internal/models"
)

func TestAIActionRepositoryCreateDefaultsToPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAIActionRepository(db)

	mock.ExpectExec("INSERT INTO ai_actions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	action := &models.AIAction{
		Kind:        models.AIActionKindFormGeneration,
		Parameters:  models.AIFormGeneration{CampID: "camp-1", Name: "Generated", FormType: models.FormTypeCustom},
		RequestedBy: "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), nil, action))
	assert.NotEmpty(t, action.ID)
	assert.Equal(t, models.AIActionStatusPending, action.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAIActionRepositoryTransitionStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAIActionRepository(db)

	reviewer := "admin-2"
	mock.ExpectExec("UPDATE ai_actions").
		WithArgs(models.AIActionStatusApproved, "admin-2", nil, sqlmock.AnyArg(), "action-1", models.AIActionStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.TransitionStatus(context.Background(), nil, "action-1",
		models.AIActionStatusPending, models.AIActionStatusApproved, &reviewer, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAIActionRepositoryTransitionStatusGuardMiss(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAIActionRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE ai_actions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.TransitionStatus(context.Background(), nil, "action-1",
		models.AIActionStatusApproved, models.AIActionStatusExecuted, nil, &now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAIActionRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAIActionRepository(db)

	params := []byte(`{"campId":"camp-1","name":"Generated","formType":"CUSTOM"}`)
	rows := sqlmock.NewRows([]string{"id", "kind", "status", "parameters", "requested_by", "reviewed_by", "executed_at", "created_at", "updated_at"}).
		AddRow("action-1", models.AIActionKindFormGeneration, models.AIActionStatusPending, params, "admin-1", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT .+ FROM ai_actions WHERE status IN").
		WithArgs(models.AIActionStatusPending).
		WillReturnRows(rows)

	actions, err := repo.List(context.Background(), models.AIActionFilter{
		Status: []models.AIActionStatus{models.AIActionStatusPending},
	})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "camp-1", actions[0].Parameters.CampID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
