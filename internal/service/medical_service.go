package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

type medicalStore interface {
	CreateMedicationLog(ctx context.Context, exec sqlx.ExtContext, log *models.MedicationLog) error
	ListMedicationLogs(ctx context.Context, camperID string) ([]models.MedicationLog, error)
	CreateIncidentReport(ctx context.Context, exec sqlx.ExtContext, report *models.IncidentReport) error
	ListIncidentReports(ctx context.Context, sessionID string) ([]models.IncidentReport, error)
}

type incidentNotifier interface {
	IncidentReported(report *models.IncidentReport)
}

// MedicalService records medication administrations and incident reports.
// Both are append-only; corrections land as new entries.
type MedicalService struct {
	medical  medicalStore
	events   eventStore
	notifier incidentNotifier
	tx       txProvider
	logger   *zap.Logger
}

// MedicalServiceOption configures the service.
type MedicalServiceOption func(*MedicalService)

// WithIncidentNotifier wires severe-incident notifications.
func WithIncidentNotifier(n incidentNotifier) MedicalServiceOption {
	return func(s *MedicalService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewMedicalService constructs the service.
func NewMedicalService(medical medicalStore, events eventStore, tx txProvider, logger *zap.Logger, opts ...MedicalServiceOption) *MedicalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &MedicalService{medical: medical, events: events, tx: tx, logger: logger}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// LogMedication records a medication administration by the calling nurse.
func (s *MedicalService) LogMedication(ctx context.Context, nurseID string, req dto.CreateMedicationLogRequest) (*models.MedicationLog, error) {
	log := &models.MedicationLog{
		CamperID:   req.CamperID,
		SessionID:  req.SessionID,
		NurseID:    nurseID,
		Medication: req.Medication,
		Dosage:     req.Dosage,
		Notes:      req.Notes,
	}
	if req.AdministeredAt != "" {
		at, err := time.Parse(time.RFC3339, req.AdministeredAt)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "administeredAt must be an RFC 3339 timestamp")
		}
		log.AdministeredAt = at
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin log medication: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.medical.CreateMedicationLog(ctx, tx, log); err != nil {
		return nil, err
	}
	if err = s.appendMedicalEvent(ctx, tx, log.SessionID, models.EventMedicationLogged, nurseID, map[string]interface{}{
		"medicationLogId": log.ID,
		"camperId":        log.CamperID,
	}); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit log medication: %w", err)
	}

	s.logger.Info("medication logged",
		zap.String("log_id", log.ID),
		zap.String("camper_id", log.CamperID),
		zap.String("nurse_id", nurseID))
	return log, nil
}

// MedicationHistory returns a camper's medication log, newest first.
func (s *MedicalService) MedicationHistory(ctx context.Context, camperID string) ([]models.MedicationLog, error) {
	logs, err := s.medical.ListMedicationLogs(ctx, camperID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	return logs, nil
}

// ReportIncident records an incident and notifies on severe ones.
func (s *MedicalService) ReportIncident(ctx context.Context, reporterID string, req dto.CreateIncidentRequest) (*models.IncidentReport, error) {
	report := &models.IncidentReport{
		CamperID:    req.CamperID,
		SessionID:   req.SessionID,
		ReportedBy:  reporterID,
		Severity:    req.Severity,
		Description: req.Description,
		ActionTaken: req.ActionTaken,
	}
	if req.OccurredAt != "" {
		at, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "occurredAt must be an RFC 3339 timestamp")
		}
		report.OccurredAt = at
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin report incident: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.medical.CreateIncidentReport(ctx, tx, report); err != nil {
		return nil, err
	}
	if err = s.appendMedicalEvent(ctx, tx, report.SessionID, models.EventIncidentReported, reporterID, map[string]interface{}{
		"incidentId": report.ID,
		"camperId":   report.CamperID,
		"severity":   report.Severity,
	}); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit report incident: %w", err)
	}

	if s.notifier != nil && report.Severity == models.IncidentSeveritySevere {
		s.notifier.IncidentReported(report)
	}
	s.logger.Info("incident reported",
		zap.String("incident_id", report.ID),
		zap.String("severity", string(report.Severity)))
	return report, nil
}

// Incidents returns a session's incident reports, newest first.
func (s *MedicalService) Incidents(ctx context.Context, sessionID string) ([]models.IncidentReport, error) {
	return s.medical.ListIncidentReports(ctx, sessionID)
}

func (s *MedicalService) appendMedicalEvent(ctx context.Context, exec sqlx.ExtContext, streamID, eventType, actorID string, payload map[string]interface{}) error {
	event := &models.Event{
		StreamID:  streamID,
		EventType: eventType,
		ActorID:   &actorID,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	event.Payload = raw
	return s.events.Append(ctx, exec, event)
}
