package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// DashboardRepository runs the aggregate queries behind the role dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// CountActiveSessions counts open or running sessions in a camp.
func (r *DashboardRepository) CountActiveSessions(ctx context.Context, campID string) (int, error) {
	const query = `SELECT COUNT(*) FROM sessions WHERE camp_id = $1 AND status IN ('OPEN', 'RUNNING')`
	return r.count(ctx, query, campID)
}

// CountRegistrations counts non-cancelled registrations across a camp's sessions.
func (r *DashboardRepository) CountRegistrations(ctx context.Context, campID string) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations reg
JOIN sessions s ON s.id = reg.session_id
WHERE s.camp_id = $1 AND reg.status <> 'CANCELLED'`
	return r.count(ctx, query, campID)
}

// CountPublishedForms counts published, non-archived forms in a camp.
func (r *DashboardRepository) CountPublishedForms(ctx context.Context, campID string) (int, error) {
	const query = `SELECT COUNT(*) FROM form_definitions WHERE camp_id = $1 AND published = TRUE AND status <> 'ARCHIVED'`
	return r.count(ctx, query, campID)
}

// CountSubmissionsSince counts submissions to a camp's forms since the cutoff.
func (r *DashboardRepository) CountSubmissionsSince(ctx context.Context, campID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM form_submissions fs
JOIN form_definitions fd ON fd.id = fs.form_definition_id
WHERE fd.camp_id = $1 AND fs.submitted_at >= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, campID, since); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

// CountPendingAIActions counts pending proposals targeting a camp.
func (r *DashboardRepository) CountPendingAIActions(ctx context.Context, campID string) (int, error) {
	const query = `SELECT COUNT(*) FROM ai_actions WHERE status = 'PENDING' AND parameters->>'campId' = $1`
	return r.count(ctx, query, campID)
}

// CountIncidentsSince counts incidents in a camp since the cutoff.
func (r *DashboardRepository) CountIncidentsSince(ctx context.Context, campID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM incident_reports ir
JOIN sessions s ON s.id = ir.session_id
WHERE s.camp_id = $1 AND ir.occurred_at >= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, campID, since); err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return count, nil
}

func (r *DashboardRepository) count(ctx context.Context, query, campID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, query, campID); err != nil {
		return 0, fmt.Errorf("dashboard count: %w", err)
	}
	return count, nil
}
