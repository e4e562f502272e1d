package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campos-hq/campos-api/internal/models"
)

// GroupRepository persists staff-led groups and camper assignments.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// CreateGroup inserts a group within a session.
func (r *GroupRepository) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now
	const query = `INSERT INTO groups (id, session_id, name, staff_id, created_at, updated_at)
VALUES (:id, :session_id, :name, :staff_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// FindGroupByID loads a group by identifier.
func (r *GroupRepository) FindGroupByID(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, session_id, name, staff_id, created_at, updated_at FROM groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// ListGroupsBySession returns all groups in a session.
func (r *GroupRepository) ListGroupsBySession(ctx context.Context, sessionID string) ([]models.Group, error) {
	const query = `SELECT id, session_id, name, staff_id, created_at, updated_at FROM groups WHERE session_id = $1 ORDER BY name ASC`
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query, sessionID); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// AssignCamper places a camper into a group, replacing any prior assignment
// within the same session.
func (r *GroupRepository) AssignCamper(ctx context.Context, exec sqlx.ExtContext, assignment *models.GroupAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	assignment.AssignedAt = time.Now().UTC()

	const cleanup = `DELETE FROM group_assignments ga
USING groups g, groups target
WHERE ga.group_id = g.id AND target.id = $1 AND g.session_id = target.session_id AND ga.camper_id = $2`
	if _, err := r.exec(exec).ExecContext(ctx, cleanup, assignment.GroupID, assignment.CamperID); err != nil {
		return fmt.Errorf("clear prior assignment: %w", err)
	}

	const insert = `INSERT INTO group_assignments (id, group_id, camper_id, assigned_at)
VALUES (:id, :group_id, :camper_id, :assigned_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), insert, assignment); err != nil {
		return fmt.Errorf("assign camper: %w", err)
	}
	return nil
}

// RemoveCamper drops a camper from a group.
func (r *GroupRepository) RemoveCamper(ctx context.Context, groupID, camperID string) error {
	const query = `DELETE FROM group_assignments WHERE group_id = $1 AND camper_id = $2`
	result, err := r.db.ExecContext(ctx, query, groupID, camperID)
	if err != nil {
		return fmt.Errorf("remove camper: %w", err)
	}
	return requireRow(result, "remove camper")
}

// ListRoster returns the denormalized roster for a session, used by listing
// endpoints and CSV/PDF exports.
func (r *GroupRepository) ListRoster(ctx context.Context, sessionID string) ([]models.RosterEntry, error) {
	const query = `SELECT g.id AS group_id, g.name AS group_name,
       c.id AS camper_id, c.first_name || ' ' || c.last_name AS camper_name,
       u.email AS parent_email, c.allergies
FROM groups g
JOIN group_assignments ga ON ga.group_id = g.id
JOIN campers c ON c.id = ga.camper_id
JOIN users u ON u.id = c.parent_id
WHERE g.session_id = $1
ORDER BY g.name ASC, camper_name ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, sessionID); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return roster, nil
}
