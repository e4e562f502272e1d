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

type camperStore interface {
	CreateCamper(ctx context.Context, camper *models.Camper) error
	FindCamperByID(ctx context.Context, id string) (*models.Camper, error)
	ListCampersByParent(ctx context.Context, parentID string) ([]models.Camper, error)
	UpdateCamper(ctx context.Context, camper *models.Camper) error
	CreateRegistration(ctx context.Context, exec sqlx.ExtContext, reg *models.Registration) error
	FindRegistrationByID(ctx context.Context, id string) (*models.Registration, error)
	UpdateRegistrationStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.RegistrationStatus) error
	CountActiveBySession(ctx context.Context, exec sqlx.ExtContext, sessionID string) (int, error)
	ListRegistrations(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error)
}

type sessionLocker interface {
	FindSessionByID(ctx context.Context, id string) (*models.Session, error)
	LockSessionByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Session, error)
}

type registrationNotifier interface {
	RegistrationCreated(reg *models.Registration, status models.RegistrationStatus)
}

// RegistrationService manages campers and their enrollment into sessions.
// Capacity is enforced under a session row lock so concurrent signups for the
// last spot cannot both confirm.
type RegistrationService struct {
	campers  camperStore
	sessions sessionLocker
	events   eventStore
	notifier registrationNotifier
	tx       txProvider
	logger   *zap.Logger
}

// RegistrationServiceOption configures the service.
type RegistrationServiceOption func(*RegistrationService)

// WithRegistrationNotifier wires post-commit notifications.
func WithRegistrationNotifier(n registrationNotifier) RegistrationServiceOption {
	return func(s *RegistrationService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewRegistrationService constructs the service.
func NewRegistrationService(campers camperStore, sessions sessionLocker, events eventStore, tx txProvider, logger *zap.Logger, opts ...RegistrationServiceOption) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RegistrationService{campers: campers, sessions: sessions, events: events, tx: tx, logger: logger}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateCamper adds a child to the calling parent's account.
func (s *RegistrationService) CreateCamper(ctx context.Context, parentID string, req dto.CreateCamperRequest) (*models.Camper, error) {
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dateOfBirth must use the YYYY-MM-DD format")
	}
	camper := &models.Camper{
		ParentID:      parentID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		DateOfBirth:   dob,
		Allergies:     req.Allergies,
		MedicalNotes:  req.MedicalNotes,
		EmergencyName: req.EmergencyName,
		EmergencyTel:  req.EmergencyTel,
	}
	if err := s.campers.CreateCamper(ctx, camper); err != nil {
		return nil, err
	}
	return camper, nil
}

// ListCampers returns the calling parent's campers.
func (s *RegistrationService) ListCampers(ctx context.Context, parentID string) ([]models.Camper, error) {
	return s.campers.ListCampersByParent(ctx, parentID)
}

// UpdateCamper rewrites a camper's details. Parents may only edit their own.
func (s *RegistrationService) UpdateCamper(ctx context.Context, actor *models.JWTClaims, camperID string, req dto.UpdateCamperRequest) (*models.Camper, error) {
	camper, err := s.campers.FindCamperByID(ctx, camperID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "camper not found")
		}
		return nil, fmt.Errorf("load camper: %w", err)
	}
	if actor.Role == models.RoleParent && camper.ParentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "camper belongs to another account")
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dateOfBirth must use the YYYY-MM-DD format")
	}

	camper.FirstName = req.FirstName
	camper.LastName = req.LastName
	camper.DateOfBirth = dob
	camper.Allergies = req.Allergies
	camper.MedicalNotes = req.MedicalNotes
	camper.EmergencyName = req.EmergencyName
	camper.EmergencyTel = req.EmergencyTel
	if err := s.campers.UpdateCamper(ctx, camper); err != nil {
		return nil, err
	}
	return camper, nil
}

// Register enrolls a camper into a session. The session row is locked for
// the duration of the transaction; if the active registration count already
// meets capacity the camper is waitlisted instead of confirmed.
func (s *RegistrationService) Register(ctx context.Context, actor *models.JWTClaims, req dto.CreateRegistrationRequest) (*models.Registration, error) {
	camper, err := s.campers.FindCamperByID(ctx, req.CamperID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "camper not found")
		}
		return nil, fmt.Errorf("load camper: %w", err)
	}
	if actor.Role == models.RoleParent && camper.ParentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "camper belongs to another account")
	}
	if _, err := s.sessions.FindSessionByID(ctx, req.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	reg := &models.Registration{
		CamperID:     req.CamperID,
		SessionID:    req.SessionID,
		ParentID:     camper.ParentID,
		SubmissionID: req.SubmissionID,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin register: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	session, err := s.sessions.LockSessionByID(ctx, tx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	if session.Status != models.SessionStatusOpen {
		err = appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("session is %s, not open for registration", session.Status))
		return nil, err
	}

	active, err := s.campers.CountActiveBySession(ctx, tx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if active >= session.Capacity {
		reg.Status = models.RegistrationStatusWaitlisted
	} else {
		reg.Status = models.RegistrationStatusConfirmed
	}

	if err = s.campers.CreateRegistration(ctx, tx, reg); err != nil {
		return nil, err
	}
	event := &models.Event{
		StreamID:  req.SessionID,
		EventType: models.EventRegistrationMade,
		ActorID:   &actor.UserID,
	}
	if event.Payload, err = json.Marshal(map[string]interface{}{
		"registrationId": reg.ID,
		"camperId":       reg.CamperID,
		"status":         reg.Status,
	}); err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	if err = s.events.Append(ctx, tx, event); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit register: %w", err)
	}

	if s.notifier != nil {
		s.notifier.RegistrationCreated(reg, reg.Status)
	}
	s.logger.Info("registration created",
		zap.String("registration_id", reg.ID),
		zap.String("session_id", reg.SessionID),
		zap.String("status", string(reg.Status)))
	return reg, nil
}

// Cancel releases a registration. Parents may only cancel their own.
func (s *RegistrationService) Cancel(ctx context.Context, actor *models.JWTClaims, registrationID string) error {
	reg, err := s.campers.FindRegistrationByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return fmt.Errorf("load registration: %w", err)
	}
	if actor.Role == models.RoleParent && reg.ParentID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another account")
	}
	if reg.Status == models.RegistrationStatusCancelled {
		return nil
	}
	return s.campers.UpdateRegistrationStatus(ctx, nil, registrationID, models.RegistrationStatusCancelled)
}

// List returns registrations matching the filter. Parents are pinned to
// their own registrations regardless of the requested filter.
func (s *RegistrationService) List(ctx context.Context, actor *models.JWTClaims, filter models.RegistrationFilter) ([]models.Registration, error) {
	if actor.Role == models.RoleParent {
		filter.ParentID = actor.UserID
	}
	return s.campers.ListRegistrations(ctx, filter)
}
