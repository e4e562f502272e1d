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

// AIActionRepository persists proposed actions and their approval state.
type AIActionRepository struct {
	db *sqlx.DB
}

// NewAIActionRepository constructs the repository.
func NewAIActionRepository(db *sqlx.DB) *AIActionRepository {
	return &AIActionRepository{db: db}
}

func (r *AIActionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const aiActionColumns = `id, kind, status, parameters, requested_by, reviewed_by, executed_at, created_at, updated_at`

// Create inserts a new pending action.
func (r *AIActionRepository) Create(ctx context.Context, exec sqlx.ExtContext, action *models.AIAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.Status == "" {
		action.Status = models.AIActionStatusPending
	}
	now := time.Now().UTC()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = now
	}
	action.UpdatedAt = now
	const query = `INSERT INTO ai_actions (id, kind, status, parameters, requested_by, reviewed_by, executed_at, created_at, updated_at)
VALUES (:id, :kind, :status, :parameters, :requested_by, :reviewed_by, :executed_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, action); err != nil {
		return fmt.Errorf("create ai action: %w", err)
	}
	return nil
}

// FindByID fetches an action by identifier.
func (r *AIActionRepository) FindByID(ctx context.Context, id string) (*models.AIAction, error) {
	query := fmt.Sprintf(`SELECT %s FROM ai_actions WHERE id = $1`, aiActionColumns)
	var action models.AIAction
	if err := r.db.GetContext(ctx, &action, query, id); err != nil {
		return nil, err
	}
	return &action, nil
}

// List returns actions matching the filter, newest first.
func (r *AIActionRepository) List(ctx context.Context, filter models.AIActionFilter) ([]models.AIAction, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM ai_actions`, aiActionColumns))

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
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

	var actions []models.AIAction
	if err := r.db.SelectContext(ctx, &actions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list ai actions: %w", err)
	}
	return actions, nil
}

// TransitionStatus moves an action from one status to another. The guard on
// the current status makes lifecycle transitions race-safe: a second caller
// observes zero affected rows.
func (r *AIActionRepository) TransitionStatus(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.AIActionStatus, reviewedBy *string, executedAt *time.Time) error {
	const query = `UPDATE ai_actions
SET status = $1, reviewed_by = COALESCE($2, reviewed_by), executed_at = COALESCE($3, executed_at), updated_at = $4
WHERE id = $5 AND status = $6`
	result, err := r.exec(exec).ExecContext(ctx, query, to, reviewedBy, executedAt, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("transition ai action: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition ai action rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
