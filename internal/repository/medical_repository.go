package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campos-hq/campos-api/internal/models"
)

// MedicalRepository persists medication logs and incident reports.
type MedicalRepository struct {
	db *sqlx.DB
}

// NewMedicalRepository constructs the repository.
func NewMedicalRepository(db *sqlx.DB) *MedicalRepository {
	return &MedicalRepository{db: db}
}

func (r *MedicalRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return r.db
	}
	return exec
}

// CreateMedicationLog appends a medication administration record.
func (r *MedicalRepository) CreateMedicationLog(ctx context.Context, exec sqlx.ExtContext, log *models.MedicationLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.CreatedAt = time.Now().UTC()
	if log.AdministeredAt.IsZero() {
		log.AdministeredAt = log.CreatedAt
	}
	const query = `INSERT INTO medication_logs (id, camper_id, session_id, nurse_id, medication, dosage, notes, administered_at, created_at)
VALUES (:id, :camper_id, :session_id, :nurse_id, :medication, :dosage, :notes, :administered_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, log); err != nil {
		return fmt.Errorf("create medication log: %w", err)
	}
	return nil
}

// ListMedicationLogs returns a camper's medication history, newest first.
func (r *MedicalRepository) ListMedicationLogs(ctx context.Context, camperID string) ([]models.MedicationLog, error) {
	const query = `SELECT id, camper_id, session_id, nurse_id, medication, dosage, notes, administered_at, created_at
FROM medication_logs WHERE camper_id = $1 ORDER BY administered_at DESC`
	var logs []models.MedicationLog
	if err := r.db.SelectContext(ctx, &logs, query, camperID); err != nil {
		return nil, fmt.Errorf("list medication logs: %w", err)
	}
	return logs, nil
}

// CreateIncidentReport appends an incident report.
func (r *MedicalRepository) CreateIncidentReport(ctx context.Context, exec sqlx.ExtContext, report *models.IncidentReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	report.CreatedAt = time.Now().UTC()
	if report.OccurredAt.IsZero() {
		report.OccurredAt = report.CreatedAt
	}
	const query = `INSERT INTO incident_reports (id, camper_id, session_id, reported_by, severity, description, action_taken, occurred_at, created_at)
VALUES (:id, :camper_id, :session_id, :reported_by, :severity, :description, :action_taken, :occurred_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, report); err != nil {
		return fmt.Errorf("create incident report: %w", err)
	}
	return nil
}

// ListIncidentReports returns reports for a session, newest first.
func (r *MedicalRepository) ListIncidentReports(ctx context.Context, sessionID string) ([]models.IncidentReport, error) {
	const query = `SELECT id, camper_id, session_id, reported_by, severity, description, action_taken, occurred_at, created_at
FROM incident_reports WHERE session_id = $1 ORDER BY occurred_at DESC`
	var reports []models.IncidentReport
	if err := r.db.SelectContext(ctx, &reports, query, sessionID); err != nil {
		return nil, fmt.Errorf("list incident reports: %w", err)
	}
	return reports, nil
}

// CountIncidentsSince counts incidents for a camp since a cutoff, for the
// dashboard counters.
func (r *MedicalRepository) CountIncidentsSince(ctx context.Context, campID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM incident_reports ir
JOIN sessions s ON s.id = ir.session_id
WHERE s.camp_id = $1 AND ir.occurred_at >= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, campID, since); err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return count, nil
}
