package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campos-hq/campos-api/internal/models"
)

// FormRepository persists form definitions, their fields, and field options.
type FormRepository struct {
	db *sqlx.DB
}

// NewFormRepository constructs the repository.
func NewFormRepository(db *sqlx.DB) *FormRepository {
	return &FormRepository{db: db}
}

func (r *FormRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const formColumns = `id, camp_id, session_id, name, description, form_type, status, published, published_at, version, ai_action_id, created_by, created_at, updated_at`

// Create inserts a new draft definition at version 1 with no fields.
func (r *FormRepository) Create(ctx context.Context, exec sqlx.ExtContext, form *models.FormDefinition) error {
	if form.ID == "" {
		form.ID = uuid.NewString()
	}
	if form.Status == "" {
		form.Status = models.FormStatusDraft
	}
	if form.Version == 0 {
		form.Version = 1
	}
	now := time.Now().UTC()
	if form.CreatedAt.IsZero() {
		form.CreatedAt = now
	}
	form.UpdatedAt = now

	const query = `INSERT INTO form_definitions
	(id, camp_id, session_id, name, description, form_type, status, published, published_at, version, ai_action_id, created_by, created_at, updated_at)
	VALUES (:id, :camp_id, :session_id, :name, :description, :form_type, :status, :published, :published_at, :version, :ai_action_id, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, form); err != nil {
		return fmt.Errorf("create form definition: %w", err)
	}
	return nil
}

// FindByID loads a definition by identifier.
func (r *FormRepository) FindByID(ctx context.Context, id string) (*models.FormDefinition, error) {
	query := fmt.Sprintf(`SELECT %s FROM form_definitions WHERE id = $1`, formColumns)
	var form models.FormDefinition
	if err := r.db.GetContext(ctx, &form, query, id); err != nil {
		return nil, err
	}
	return &form, nil
}

// List returns definitions matching the filter, newest first.
func (r *FormRepository) List(ctx context.Context, filter models.FormFilter) ([]models.FormDefinition, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 5)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM form_definitions`, formColumns))

	conditions := make([]string, 0, 4)
	if filter.CampID != "" {
		args = append(args, filter.CampID)
		conditions = append(conditions, fmt.Sprintf("camp_id = $%d", len(args)))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if filter.FormType != "" {
		args = append(args, filter.FormType)
		conditions = append(conditions, fmt.Sprintf("form_type = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Published != nil {
		args = append(args, *filter.Published)
		conditions = append(conditions, fmt.Sprintf("published = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var forms []models.FormDefinition
	if err := r.db.SelectContext(ctx, &forms, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list form definitions: %w", err)
	}
	return forms, nil
}

// UpdateMetadataParams groups the CAS version bump inputs.
type UpdateMetadataParams struct {
	FormID          string
	Name            string
	Description     string
	ExpectedVersion int
}

// BumpVersion updates metadata and increments the version by exactly one,
// compare-and-swap on the version the editor read. Returns the new version.
// A zero-row update means another edit committed first.
func (r *FormRepository) BumpVersion(ctx context.Context, exec sqlx.ExtContext, params UpdateMetadataParams) (int, error) {
	const query = `UPDATE form_definitions
SET name = $1, description = $2, version = version + 1, updated_at = $3
WHERE id = $4 AND version = $5
RETURNING version`
	var newVersion int
	err := sqlx.GetContext(ctx, r.exec(exec), &newVersion, query,
		params.Name, params.Description, time.Now().UTC(), params.FormID, params.ExpectedVersion)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("bump form version: %w", err)
	}
	return newVersion, nil
}

// MarkPublished flips the published flag and activates the definition.
func (r *FormRepository) MarkPublished(ctx context.Context, exec sqlx.ExtContext, formID string, at time.Time) error {
	const query = `UPDATE form_definitions
SET published = TRUE, published_at = $1, status = $2, updated_at = $1
WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, at, models.FormStatusActive, formID)
	if err != nil {
		return fmt.Errorf("publish form definition: %w", err)
	}
	return requireRow(result, "publish form definition")
}

// Archive soft-retires the definition; fields, options, and snapshots are
// retained for historical submission validation.
func (r *FormRepository) Archive(ctx context.Context, exec sqlx.ExtContext, formID string) error {
	const query = `UPDATE form_definitions SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, models.FormStatusArchived, time.Now().UTC(), formID)
	if err != nil {
		return fmt.Errorf("archive form definition: %w", err)
	}
	return requireRow(result, "archive form definition")
}

const fieldColumns = `id, form_definition_id, field_key, label, help_text, field_type, required, validation, conditions, display_order, section, created_at, updated_at`

// ListFields returns a form's fields in deterministic render order.
func (r *FormRepository) ListFields(ctx context.Context, formID string) ([]models.FormField, error) {
	query := fmt.Sprintf(`SELECT %s FROM form_fields WHERE form_definition_id = $1 ORDER BY display_order ASC, field_key ASC`, fieldColumns)
	var fields []models.FormField
	if err := r.db.SelectContext(ctx, &fields, query, formID); err != nil {
		return nil, fmt.Errorf("list form fields: %w", err)
	}
	return fields, nil
}

// InsertField adds a new field row.
func (r *FormRepository) InsertField(ctx context.Context, exec sqlx.ExtContext, field *models.FormField) error {
	if field.ID == "" {
		field.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if field.CreatedAt.IsZero() {
		field.CreatedAt = now
	}
	field.UpdatedAt = now
	const query = `INSERT INTO form_fields
	(id, form_definition_id, field_key, label, help_text, field_type, required, validation, conditions, display_order, section, created_at, updated_at)
	VALUES (:id, :form_definition_id, :field_key, :label, :help_text, :field_type, :required, :validation, :conditions, :display_order, :section, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, field); err != nil {
		return fmt.Errorf("insert form field: %w", err)
	}
	return nil
}

// UpdateField rewrites a field's mutable attributes. The field key and type
// are identity and are never updated here.
func (r *FormRepository) UpdateField(ctx context.Context, exec sqlx.ExtContext, field *models.FormField) error {
	field.UpdatedAt = time.Now().UTC()
	const query = `UPDATE form_fields
SET label = :label, help_text = :help_text, required = :required, validation = :validation,
    conditions = :conditions, display_order = :display_order, section = :section, updated_at = :updated_at
WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, field)
	if err != nil {
		return fmt.Errorf("update form field: %w", err)
	}
	return requireRow(result, "update form field")
}

// DeleteField removes a field and, by cascade, its options.
func (r *FormRepository) DeleteField(ctx context.Context, exec sqlx.ExtContext, fieldID string) error {
	const query = `DELETE FROM form_fields WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, fieldID); err != nil {
		return fmt.Errorf("delete form field: %w", err)
	}
	return nil
}

const optionColumns = `id, field_id, label, value, display_order, parent_option_id, triggers_fields, created_at`

// ListOptionsByForm loads every option of every field of a form.
func (r *FormRepository) ListOptionsByForm(ctx context.Context, formID string) ([]models.FormOption, error) {
	query := fmt.Sprintf(`SELECT o.%s FROM form_options o
JOIN form_fields f ON f.id = o.field_id
WHERE f.form_definition_id = $1
ORDER BY o.display_order ASC, o.value ASC`, strings.ReplaceAll(optionColumns, ", ", ", o."))
	var options []models.FormOption
	if err := r.db.SelectContext(ctx, &options, query, formID); err != nil {
		return nil, fmt.Errorf("list form options: %w", err)
	}
	return options, nil
}

// ReplaceOptions deletes and reinserts a field's option list. Full
// replacement keeps ordering and trigger wiring consistent.
func (r *FormRepository) ReplaceOptions(ctx context.Context, exec sqlx.ExtContext, fieldID string, options []models.FormOption) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM form_options WHERE field_id = $1`, fieldID); err != nil {
		return fmt.Errorf("clear form options: %w", err)
	}
	now := time.Now().UTC()
	const query = `INSERT INTO form_options
	(id, field_id, label, value, display_order, parent_option_id, triggers_fields, created_at)
	VALUES (:id, :field_id, :label, :value, :display_order, :parent_option_id, :triggers_fields, :created_at)`
	for i := range options {
		opt := &options[i]
		if opt.ID == "" {
			opt.ID = uuid.NewString()
		}
		opt.FieldID = fieldID
		if opt.CreatedAt.IsZero() {
			opt.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, opt); err != nil {
			return fmt.Errorf("insert form option: %w", err)
		}
	}
	return nil
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
