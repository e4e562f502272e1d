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

// CamperRepository persists campers and their session registrations.
type CamperRepository struct {
	db *sqlx.DB
}

// NewCamperRepository constructs the repository.
func NewCamperRepository(db *sqlx.DB) *CamperRepository {
	return &CamperRepository{db: db}
}

func (r *CamperRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

const camperColumns = `id, parent_id, first_name, last_name, date_of_birth, allergies, medical_notes, emergency_name, emergency_tel, created_at, updated_at`

const registrationColumns = `id, camper_id, session_id, parent_id, submission_id, status, registered_at, updated_at`

// CreateCamper inserts a camper under a parent account.
func (r *CamperRepository) CreateCamper(ctx context.Context, camper *models.Camper) error {
	if camper.ID == "" {
		camper.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	camper.CreatedAt = now
	camper.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO campers (%s)
VALUES (:id, :parent_id, :first_name, :last_name, :date_of_birth, :allergies, :medical_notes, :emergency_name, :emergency_tel, :created_at, :updated_at)`, camperColumns)
	if _, err := r.db.NamedExecContext(ctx, query, camper); err != nil {
		return fmt.Errorf("create camper: %w", err)
	}
	return nil
}

// FindCamperByID loads a camper by identifier.
func (r *CamperRepository) FindCamperByID(ctx context.Context, id string) (*models.Camper, error) {
	query := fmt.Sprintf(`SELECT %s FROM campers WHERE id = $1`, camperColumns)
	var camper models.Camper
	if err := r.db.GetContext(ctx, &camper, query, id); err != nil {
		return nil, err
	}
	return &camper, nil
}

// ListCampersByParent returns all campers belonging to a parent.
func (r *CamperRepository) ListCampersByParent(ctx context.Context, parentID string) ([]models.Camper, error) {
	query := fmt.Sprintf(`SELECT %s FROM campers WHERE parent_id = $1 ORDER BY last_name ASC, first_name ASC`, camperColumns)
	var campers []models.Camper
	if err := r.db.SelectContext(ctx, &campers, query, parentID); err != nil {
		return nil, fmt.Errorf("list campers: %w", err)
	}
	return campers, nil
}

// UpdateCamper rewrites the mutable camper fields.
func (r *CamperRepository) UpdateCamper(ctx context.Context, camper *models.Camper) error {
	camper.UpdatedAt = time.Now().UTC()
	const query = `UPDATE campers
SET first_name = :first_name, last_name = :last_name, date_of_birth = :date_of_birth,
    allergies = :allergies, medical_notes = :medical_notes,
    emergency_name = :emergency_name, emergency_tel = :emergency_tel, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, camper)
	if err != nil {
		return fmt.Errorf("update camper: %w", err)
	}
	return requireRow(result, "update camper")
}

// CreateRegistration inserts a registration row. Callers run it inside a
// transaction holding the session row lock so capacity checks stay accurate.
func (r *CamperRepository) CreateRegistration(ctx context.Context, exec sqlx.ExtContext, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.Status == "" {
		reg.Status = models.RegistrationStatusPending
	}
	now := time.Now().UTC()
	reg.RegisteredAt = now
	reg.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO registrations (%s)
VALUES (:id, :camper_id, :session_id, :parent_id, :submission_id, :status, :registered_at, :updated_at)`, registrationColumns)
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, reg); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// FindRegistrationByID loads a registration by identifier.
func (r *CamperRepository) FindRegistrationByID(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE id = $1`, registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// UpdateRegistrationStatus moves a registration through its lifecycle.
func (r *CamperRepository) UpdateRegistrationStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RegistrationStatus) error {
	const query = `UPDATE registrations SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	return requireRow(result, "update registration status")
}

// CountActiveBySession counts registrations holding a spot in the session.
func (r *CamperRepository) CountActiveBySession(ctx context.Context, exec sqlx.ExtContext, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE session_id = $1 AND status IN ('PENDING', 'CONFIRMED')`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

// ListRegistrations returns registrations matching the filter.
func (r *CamperRepository) ListRegistrations(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM registrations`, registrationColumns))

	conditions := make([]string, 0, 4)
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if filter.CamperID != "" {
		args = append(args, filter.CamperID)
		conditions = append(conditions, fmt.Sprintf("camper_id = $%d", len(args)))
	}
	if filter.ParentID != "" {
		args = append(args, filter.ParentID)
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", len(args)))
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
	builder.WriteString(" ORDER BY registered_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}
