package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

type sessionStoreStub struct {
	orgs     map[string]*models.Organization
	camps    map[string]*models.Camp
	sessions map[string]*models.Session
	nextID   int
}

func newSessionStoreStub() *sessionStoreStub {
	return &sessionStoreStub{
		orgs:     make(map[string]*models.Organization),
		camps:    make(map[string]*models.Camp),
		sessions: make(map[string]*models.Session),
	}
}

func (s *sessionStoreStub) FindOrganizationByID(_ context.Context, id string) (*models.Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return org, nil
}

func (s *sessionStoreStub) CreateCamp(_ context.Context, camp *models.Camp) error {
	s.nextID++
	camp.ID = fmt.Sprintf("camp-%d", s.nextID)
	s.camps[camp.ID] = camp
	return nil
}

func (s *sessionStoreStub) FindCampByID(_ context.Context, id string) (*models.Camp, error) {
	camp, ok := s.camps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return camp, nil
}

func (s *sessionStoreStub) CreateSession(_ context.Context, session *models.Session) error {
	s.nextID++
	session.ID = fmt.Sprintf("sess-%d", s.nextID)
	if session.Status == "" {
		session.Status = models.SessionStatusPlanned
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *sessionStoreStub) FindSessionByID(_ context.Context, id string) (*models.Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *session
	return &clone, nil
}

func (s *sessionStoreStub) UpdateSession(_ context.Context, session *models.Session) error {
	if _, ok := s.sessions[session.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *session
	s.sessions[session.ID] = &clone
	return nil
}

func (s *sessionStoreStub) UpdateSessionStatus(_ context.Context, id string, status models.SessionStatus) error {
	session, ok := s.sessions[id]
	if !ok {
		return sql.ErrNoRows
	}
	session.Status = status
	return nil
}

func (s *sessionStoreStub) ListSessions(_ context.Context, filter models.SessionFilter) ([]models.Session, error) {
	out := []models.Session{}
	for _, session := range s.sessions {
		if filter.CampID != "" && session.CampID != filter.CampID {
			continue
		}
		out = append(out, *session)
	}
	return out, nil
}

func newSessionFixture() (*SessionService, *sessionStoreStub) {
	store := newSessionStoreStub()
	store.orgs["org-1"] = &models.Organization{ID: "org-1", Name: "Pinewood", Active: true}
	return NewSessionService(store, nil), store
}

func seedSession(store *sessionStoreStub, status models.SessionStatus) *models.Session {
	session := &models.Session{CampID: "camp-1", Name: "Week 1", Capacity: 20, Status: status}
	_ = store.CreateSession(context.Background(), session)
	return session
}

func TestSessionServiceCreateCampChecksOrganization(t *testing.T) {
	svc, store := newSessionFixture()

	camp, err := svc.CreateCamp(context.Background(), dto.CreateCampRequest{OrganizationID: "org-1", Name: "Pinewood North"})
	require.NoError(t, err)
	assert.True(t, camp.Active)

	_, err = svc.CreateCamp(context.Background(), dto.CreateCampRequest{OrganizationID: "org-9", Name: "Orphan"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	store.orgs["org-2"] = &models.Organization{ID: "org-2", Active: false}
	_, err = svc.CreateCamp(context.Background(), dto.CreateCampRequest{OrganizationID: "org-2", Name: "Dormant"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceCreateValidatesDates(t *testing.T) {
	svc, store := newSessionFixture()
	store.camps["camp-1"] = &models.Camp{ID: "camp-1", OrganizationID: "org-1"}

	session, err := svc.Create(context.Background(), dto.CreateSessionRequest{
		CampID:    "camp-1",
		Name:      "Week 1",
		StartDate: "2026-07-06",
		EndDate:   "2026-07-10",
		Capacity:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPlanned, session.Status)

	_, err = svc.Create(context.Background(), dto.CreateSessionRequest{
		CampID:    "camp-1",
		Name:      "Backwards",
		StartDate: "2026-07-10",
		EndDate:   "2026-07-06",
		Capacity:  20,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceTransitionLifecycle(t *testing.T) {
	svc, store := newSessionFixture()
	session := seedSession(store, models.SessionStatusPlanned)

	updated, err := svc.Transition(context.Background(), session.ID, models.SessionStatusOpen)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusOpen, updated.Status)

	_, err = svc.Transition(context.Background(), session.ID, models.SessionStatusCompleted)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceCompletedSessionIsTerminal(t *testing.T) {
	svc, store := newSessionFixture()
	session := seedSession(store, models.SessionStatusCompleted)

	_, err := svc.Transition(context.Background(), session.ID, models.SessionStatusOpen)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceUpdateRespectsLifecycle(t *testing.T) {
	svc, store := newSessionFixture()
	session := seedSession(store, models.SessionStatusOpen)

	updated, err := svc.Update(context.Background(), session.ID, dto.UpdateSessionRequest{
		Name:     "Week 1 extended",
		Capacity: 30,
		Status:   models.SessionStatusOpen,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.Capacity)
	assert.Equal(t, "Week 1 extended", updated.Name)

	_, err = svc.Update(context.Background(), session.ID, dto.UpdateSessionRequest{
		Name:     "Week 1",
		Capacity: 30,
		Status:   models.SessionStatusCompleted,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}
