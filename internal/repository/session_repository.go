package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campos-hq/campos-api/internal/models"
)

// SessionRepository persists camps and their dated sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, camp_id, name, start_date, end_date, capacity, status, created_at, updated_at`

// FindOrganizationByID loads the tenant owning one or more camps.
func (r *SessionRepository) FindOrganizationByID(ctx context.Context, id string) (*models.Organization, error) {
	const query = `SELECT id, name, slug, active, created_at, updated_at FROM organizations WHERE id = $1`
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, err
	}
	return &org, nil
}

// CreateCamp inserts a camp under an organization.
func (r *SessionRepository) CreateCamp(ctx context.Context, camp *models.Camp) error {
	if camp.ID == "" {
		camp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	camp.CreatedAt = now
	camp.UpdatedAt = now
	const query = `INSERT INTO camps (id, organization_id, name, location, active, created_at, updated_at)
VALUES (:id, :organization_id, :name, :location, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, camp); err != nil {
		return fmt.Errorf("create camp: %w", err)
	}
	return nil
}

// FindCampByID loads a camp by identifier.
func (r *SessionRepository) FindCampByID(ctx context.Context, id string) (*models.Camp, error) {
	const query = `SELECT id, organization_id, name, location, active, created_at, updated_at FROM camps WHERE id = $1`
	var camp models.Camp
	if err := r.db.GetContext(ctx, &camp, query, id); err != nil {
		return nil, err
	}
	return &camp, nil
}

// CreateSession inserts a new session in PLANNED status unless set otherwise.
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusPlanned
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO sessions (%s)
VALUES (:id, :camp_id, :name, :start_date, :end_date, :capacity, :status, :created_at, :updated_at)`, sessionColumns)
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindSessionByID loads a session by identifier.
func (r *SessionRepository) FindSessionByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// LockSessionByID loads a session with a row lock inside the given transaction.
// Registration capacity checks rely on the lock to serialize concurrent signups.
func (r *SessionRepository) LockSessionByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1 FOR UPDATE`, sessionColumns)
	var session models.Session
	if err := tx.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateSession rewrites a session's mutable fields.
func (r *SessionRepository) UpdateSession(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions
SET name = :name, start_date = :start_date, end_date = :end_date,
    capacity = :capacity, status = :status, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, session)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(result, "update session")
}

// UpdateSessionStatus moves a session through its lifecycle.
func (r *SessionRepository) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	const query = `UPDATE sessions SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return requireRow(result, "update session status")
}

// ListSessions returns sessions matching the filter, soonest start first.
func (r *SessionRepository) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 2)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM sessions`, sessionColumns))

	conditions := make([]string, 0, 2)
	if filter.CampID != "" {
		args = append(args, filter.CampID)
		conditions = append(conditions, fmt.Sprintf("camp_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY start_date ASC")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, (page-1)*limit))

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
