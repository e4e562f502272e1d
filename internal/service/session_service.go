package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

type sessionStore interface {
	FindOrganizationByID(ctx context.Context, id string) (*models.Organization, error)
	CreateCamp(ctx context.Context, camp *models.Camp) error
	FindCampByID(ctx context.Context, id string) (*models.Camp, error)
	CreateSession(ctx context.Context, session *models.Session) error
	FindSessionByID(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
}

// SessionService manages camps and the sessions campers register into.
type SessionService struct {
	sessions sessionStore
	logger   *zap.Logger
}

// NewSessionService constructs the service.
func NewSessionService(sessions sessionStore, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{sessions: sessions, logger: logger}
}

// CreateCamp registers a camp under an organization.
func (s *SessionService) CreateCamp(ctx context.Context, req dto.CreateCampRequest) (*models.Camp, error) {
	org, err := s.sessions.FindOrganizationByID(ctx, req.OrganizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, fmt.Errorf("load organization: %w", err)
	}
	if !org.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "organization is inactive")
	}

	camp := &models.Camp{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Location:       req.Location,
		Active:         true,
	}
	if err := s.sessions.CreateCamp(ctx, camp); err != nil {
		return nil, fmt.Errorf("create camp: %w", err)
	}
	s.logger.Info("camp created", zap.String("camp_id", camp.ID), zap.String("organization_id", camp.OrganizationID))
	return camp, nil
}

// GetCamp loads a single camp.
func (s *SessionService) GetCamp(ctx context.Context, id string) (*models.Camp, error) {
	camp, err := s.sessions.FindCampByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "camp not found")
		}
		return nil, fmt.Errorf("find camp: %w", err)
	}
	return camp, nil
}

// Create opens a new planned session inside a camp.
func (s *SessionService) Create(ctx context.Context, req dto.CreateSessionRequest) (*models.Session, error) {
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startDate must use the YYYY-MM-DD format")
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must use the YYYY-MM-DD format")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not precede startDate")
	}
	if _, err := s.sessions.FindCampByID(ctx, req.CampID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "camp not found")
		}
		return nil, fmt.Errorf("load camp: %w", err)
	}

	session := &models.Session{
		CampID:    req.CampID,
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
		Capacity:  req.Capacity,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("session created", zap.String("session_id", session.ID), zap.String("camp_id", session.CampID))
	return session, nil
}

// Get returns one session.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// List returns sessions matching the filter.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	return s.sessions.ListSessions(ctx, filter)
}

// Update rewrites a session's name and capacity. A status change
// rides along only when the lifecycle allows it.
func (s *SessionService) Update(ctx context.Context, id string, req dto.UpdateSessionRequest) (*models.Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != session.Status && !sessionTransitionAllowed(session.Status, req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot move session from %s to %s", session.Status, req.Status))
	}

	session.Name = req.Name
	session.Capacity = req.Capacity
	session.Status = req.Status
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Transition moves a session through its lifecycle. Only forward moves are
// allowed; a completed or cancelled session is terminal.
func (s *SessionService) Transition(ctx context.Context, id string, target models.SessionStatus) (*models.Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sessionTransitionAllowed(session.Status, target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot move session from %s to %s", session.Status, target))
	}
	if err := s.sessions.UpdateSessionStatus(ctx, id, target); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func sessionTransitionAllowed(from, to models.SessionStatus) bool {
	switch from {
	case models.SessionStatusPlanned:
		return to == models.SessionStatusOpen || to == models.SessionStatusCancelled
	case models.SessionStatusOpen:
		return to == models.SessionStatusRunning || to == models.SessionStatusCancelled
	case models.SessionStatusRunning:
		return to == models.SessionStatusCompleted || to == models.SessionStatusCancelled
	default:
		return false
	}
}
