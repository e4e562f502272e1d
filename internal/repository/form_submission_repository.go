package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campos-hq/campos-api/internal/models"
)

// FormSubmissionRepository persists accepted submissions.
type FormSubmissionRepository struct {
	db *sqlx.DB
}

// NewFormSubmissionRepository constructs the repository.
func NewFormSubmissionRepository(db *sqlx.DB) *FormSubmissionRepository {
	return &FormSubmissionRepository{db: db}
}

func (r *FormSubmissionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const submissionColumns = `id, form_definition_id, form_version, submitted_by, camper_id, registration_id, session_id, payload, status, submitted_at`

// Create inserts one submission. Runs inside the caller's transaction so the
// row and its audit event commit together.
func (r *FormSubmissionRepository) Create(ctx context.Context, exec sqlx.ExtContext, submission *models.FormSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusReceived
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO form_submissions
	(id, form_definition_id, form_version, submitted_by, camper_id, registration_id, session_id, payload, status, submitted_at)
	VALUES (:id, :form_definition_id, :form_version, :submitted_by, :camper_id, :registration_id, :session_id, :payload, :status, :submitted_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, submission); err != nil {
		return fmt.Errorf("create form submission: %w", err)
	}
	return nil
}

// FindByID loads a submission by identifier.
func (r *FormSubmissionRepository) FindByID(ctx context.Context, id string) (*models.FormSubmission, error) {
	query := fmt.Sprintf(`SELECT %s FROM form_submissions WHERE id = $1`, submissionColumns)
	var submission models.FormSubmission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// List returns submissions matching the filter, newest first.
func (r *FormSubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.FormSubmission, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM form_submissions`, submissionColumns))

	conditions := make([]string, 0, 3)
	if filter.FormDefinitionID != "" {
		args = append(args, filter.FormDefinitionID)
		conditions = append(conditions, fmt.Sprintf("form_definition_id = $%d", len(args)))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if filter.SubmittedBy != "" {
		args = append(args, filter.SubmittedBy)
		conditions = append(conditions, fmt.Sprintf("submitted_by = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY submitted_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var submissions []models.FormSubmission
	if err := r.db.SelectContext(ctx, &submissions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list form submissions: %w", err)
	}
	return submissions, nil
}
