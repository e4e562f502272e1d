package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

type groupStoreStub struct {
	groups      map[string]*models.Group
	roster      []models.RosterEntry
	assignments []models.GroupAssignment
	nextID      int
}

func newGroupStoreStub() *groupStoreStub {
	return &groupStoreStub{groups: make(map[string]*models.Group)}
}

func (s *groupStoreStub) CreateGroup(_ context.Context, group *models.Group) error {
	s.nextID++
	group.ID = fmt.Sprintf("group-%d", s.nextID)
	s.groups[group.ID] = group
	return nil
}

func (s *groupStoreStub) FindGroupByID(_ context.Context, id string) (*models.Group, error) {
	group, ok := s.groups[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return group, nil
}

func (s *groupStoreStub) ListGroupsBySession(_ context.Context, sessionID string) ([]models.Group, error) {
	out := []models.Group{}
	for _, group := range s.groups {
		if group.SessionID == sessionID {
			out = append(out, *group)
		}
	}
	return out, nil
}

func (s *groupStoreStub) AssignCamper(_ context.Context, _ sqlx.ExtContext, assignment *models.GroupAssignment) error {
	s.assignments = append(s.assignments, *assignment)
	return nil
}

func (s *groupStoreStub) RemoveCamper(context.Context, string, string) error {
	return nil
}

func (s *groupStoreStub) ListRoster(context.Context, string) ([]models.RosterEntry, error) {
	return s.roster, nil
}

type exportStorageStub struct {
	files   map[string][]byte
	cleaned atomic.Bool
}

func newExportStorageStub() *exportStorageStub {
	return &exportStorageStub{files: make(map[string][]byte)}
}

func (s *exportStorageStub) Save(filename string, data []byte) (string, error) {
	s.files[filename] = data
	return filename, nil
}

func (s *exportStorageStub) Path(filename string) string {
	return "/exports/" + filename
}

func (s *exportStorageStub) CleanupOlderThan(time.Duration) ([]string, error) {
	s.cleaned.Store(true)
	return nil, nil
}

type urlSignerStub struct{}

func (urlSignerStub) Generate(exportID, relPath string) (string, time.Time, error) {
	return exportID + "|" + relPath, time.Now().Add(30 * time.Minute), nil
}

func (urlSignerStub) Parse(token string, _ bool) (string, string, time.Time, error) {
	parts := strings.SplitN(token, "|", 2)
	if len(parts) != 2 {
		return "", "", time.Time{}, appErrors.ErrUnauthorized
	}
	return parts[0], parts[1], time.Now().Add(30 * time.Minute), nil
}

func newRosterFixture() (*RosterService, *groupStoreStub, *exportStorageStub) {
	groups := newGroupStoreStub()
	store := newExportStorageStub()
	svc := NewRosterService(groups, store, urlSignerStub{}, nil)
	return svc, groups, store
}

func TestRosterServiceExportCSV(t *testing.T) {
	svc, groups, store := newRosterFixture()
	groups.roster = []models.RosterEntry{
		{GroupName: "Otters", CamperName: "Sam Doe", ParentEmail: "parent@example.com", Allergies: strPtr("peanuts")},
		{GroupName: "Otters", CamperName: "Kai Roe", ParentEmail: "kai@example.com"},
	}

	result, err := svc.Export(context.Background(), "sess-1", "csv")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.True(t, strings.HasPrefix(result.Filename, "rosters/sess-1-"))

	content := string(store.files[result.Filename])
	assert.Contains(t, content, "Group,Camper,Parent Email,Allergies")
	assert.Contains(t, content, "Otters,Sam Doe,parent@example.com,peanuts")
}

func TestRosterServiceExportRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newRosterFixture()

	_, err := svc.Export(context.Background(), "sess-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceExportUnconfigured(t *testing.T) {
	svc := NewRosterService(newGroupStoreStub(), nil, nil, nil)

	_, err := svc.Export(context.Background(), "sess-1", "csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceResolveDownload(t *testing.T) {
	svc, groups, _ := newRosterFixture()
	groups.roster = []models.RosterEntry{{GroupName: "Otters", CamperName: "Sam Doe"}}

	result, err := svc.Export(context.Background(), "sess-1", "csv")
	require.NoError(t, err)

	path, err := svc.ResolveDownload(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "/exports/"+result.Filename, path)

	_, err = svc.ResolveDownload("garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceAssignCamperUnknownGroup(t *testing.T) {
	svc, _, _ := newRosterFixture()

	err := svc.AssignCamper(context.Background(), "group-9", "camper-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceCreateGroupAndAssign(t *testing.T) {
	svc, groups, _ := newRosterFixture()

	group, err := svc.CreateGroup(context.Background(), dto.CreateGroupRequest{SessionID: "sess-1", Name: "Otters"})
	require.NoError(t, err)
	require.NotEmpty(t, group.ID)

	require.NoError(t, svc.AssignCamper(context.Background(), group.ID, "camper-1"))
	require.Len(t, groups.assignments, 1)
	assert.Equal(t, "camper-1", groups.assignments[0].CamperID)
}

func TestRosterServiceRetentionSweep(t *testing.T) {
	svc, _, store := newRosterFixture()

	svc.StartRetentionSweep(time.Hour, 10*time.Millisecond)
	defer svc.StopRetentionSweep()

	assert.Eventually(t, func() bool { return store.cleaned.Load() }, time.Second, 10*time.Millisecond)
}
