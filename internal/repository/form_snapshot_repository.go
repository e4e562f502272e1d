package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campos-hq/campos-api/internal/models"
)

// FormSnapshotRepository persists immutable form snapshots. The table has a
// unique constraint on (form_definition_id, version); writes are
// insert-or-ignore so concurrent publish/update races stay idempotent.
type FormSnapshotRepository struct {
	db *sqlx.DB
}

// NewFormSnapshotRepository constructs the repository.
func NewFormSnapshotRepository(db *sqlx.DB) *FormSnapshotRepository {
	return &FormSnapshotRepository{db: db}
}

func (r *FormSnapshotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert inserts the snapshot unless one already exists for the same
// (form, version) pair. Existing rows are never touched.
func (r *FormSnapshotRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, snapshot *models.FormSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO form_snapshots (id, form_definition_id, version, structure, created_at)
VALUES (:id, :form_definition_id, :version, :structure, :created_at)
ON CONFLICT (form_definition_id, version) DO NOTHING`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, snapshot); err != nil {
		return fmt.Errorf("upsert form snapshot: %w", err)
	}
	return nil
}

// FindByFormVersion loads the snapshot for an exact (form, version) pair.
func (r *FormSnapshotRepository) FindByFormVersion(ctx context.Context, formID string, version int) (*models.FormSnapshot, error) {
	const query = `SELECT id, form_definition_id, version, structure, created_at
FROM form_snapshots WHERE form_definition_id = $1 AND version = $2`
	var snapshot models.FormSnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, formID, version); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListByForm returns all snapshot versions of a form, newest first.
func (r *FormSnapshotRepository) ListByForm(ctx context.Context, formID string) ([]models.FormSnapshot, error) {
	const query = `SELECT id, form_definition_id, version, structure, created_at
FROM form_snapshots WHERE form_definition_id = $1 ORDER BY version DESC`
	var snapshots []models.FormSnapshot
	if err := r.db.SelectContext(ctx, &snapshots, query, formID); err != nil {
		return nil, fmt.Errorf("list form snapshots: %w", err)
	}
	return snapshots, nil
}
