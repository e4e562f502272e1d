package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
	"github.com/campos-hq/campos-api/pkg/export"
)

type groupStore interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	FindGroupByID(ctx context.Context, id string) (*models.Group, error)
	ListGroupsBySession(ctx context.Context, sessionID string) ([]models.Group, error)
	AssignCamper(ctx context.Context, exec sqlx.ExtContext, assignment *models.GroupAssignment) error
	RemoveCamper(ctx context.Context, groupID, camperID string) error
	ListRoster(ctx context.Context, sessionID string) ([]models.RosterEntry, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type urlSigner interface {
	Generate(exportID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (exportID, relPath string, expiresAt time.Time, err error)
}

// ExportResult describes a rendered roster file and its signed download URL.
type ExportResult struct {
	ExportID  string    `json:"export_id"`
	Filename  string    `json:"filename"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RosterService manages groups, camper assignments, and roster exports.
type RosterService struct {
	groups    groupStore
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	storage   exportStorage
	signer    urlSigner
	logger    *zap.Logger
	sweepStop chan struct{}
}

// NewRosterService constructs the service.
func NewRosterService(groups groupStore, storage exportStorage, signer urlSigner, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		groups:  groups,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		storage: storage,
		signer:  signer,
		logger:  logger,
	}
}

// StartRetentionSweep periodically removes export files older than ttl.
// Download tokens outlive their files only briefly, so the sweep interval
// stays well above the signed URL lifetime.
func (s *RosterService) StartRetentionSweep(ttl, interval time.Duration) {
	if s.storage == nil || ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	s.sweepStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deleted, err := s.storage.CleanupOlderThan(ttl)
				if err != nil {
					s.logger.Warn("export retention sweep failed", zap.Error(err))
					continue
				}
				if len(deleted) > 0 {
					s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
				}
			case <-s.sweepStop:
				return
			}
		}
	}()
}

// StopRetentionSweep halts the background sweep if one is running.
func (s *RosterService) StopRetentionSweep() {
	if s.sweepStop != nil {
		close(s.sweepStop)
		s.sweepStop = nil
	}
}

// CreateGroup creates a staff group within a session.
func (s *RosterService) CreateGroup(ctx context.Context, req dto.CreateGroupRequest) (*models.Group, error) {
	group := &models.Group{
		SessionID: req.SessionID,
		Name:      req.Name,
		StaffID:   req.StaffID,
	}
	if err := s.groups.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// ListGroups returns a session's groups.
func (s *RosterService) ListGroups(ctx context.Context, sessionID string) ([]models.Group, error) {
	return s.groups.ListGroupsBySession(ctx, sessionID)
}

// AssignCamper places a camper into a group, displacing any earlier
// assignment within the same session.
func (s *RosterService) AssignCamper(ctx context.Context, groupID, camperID string) error {
	if _, err := s.groups.FindGroupByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return fmt.Errorf("load group: %w", err)
	}
	return s.groups.AssignCamper(ctx, nil, &models.GroupAssignment{GroupID: groupID, CamperID: camperID})
}

// RemoveCamper drops a camper from a group.
func (s *RosterService) RemoveCamper(ctx context.Context, groupID, camperID string) error {
	err := s.groups.RemoveCamper(ctx, groupID, camperID)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrNotFound
	}
	return err
}

// Roster returns the denormalized roster for a session.
func (s *RosterService) Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error) {
	return s.groups.ListRoster(ctx, sessionID)
}

// Export renders the session roster as CSV or PDF, stores the file, and
// returns a signed, expiring download token.
func (s *RosterService) Export(ctx context.Context, sessionID, format string) (*ExportResult, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "exports are not configured")
	}

	roster, err := s.groups.ListRoster(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	dataset := rosterDataset(roster)

	var payload []byte
	var ext string
	switch format {
	case "csv", "":
		ext = "csv"
		payload, err = s.csv.Render(dataset)
	case "pdf":
		ext = "pdf"
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Session roster %s", sessionID))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		return nil, fmt.Errorf("render roster export: %w", err)
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("rosters/%s-%s.%s", sessionID, exportID, ext)
	if _, err := s.storage.Save(filename, payload); err != nil {
		return nil, fmt.Errorf("store roster export: %w", err)
	}

	token, expiresAt, err := s.signer.Generate(exportID, filename)
	if err != nil {
		return nil, fmt.Errorf("sign export url: %w", err)
	}

	s.logger.Info("roster exported",
		zap.String("session_id", sessionID),
		zap.String("export_id", exportID),
		zap.String("format", ext))
	return &ExportResult{ExportID: exportID, Filename: filename, Token: token, ExpiresAt: expiresAt}, nil
}

// ResolveDownload validates a signed token and returns the stored file path.
func (s *RosterService) ResolveDownload(token string) (string, error) {
	if s.storage == nil || s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrInvalidState, "exports are not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	return s.storage.Path(relPath), nil
}

func rosterDataset(roster []models.RosterEntry) export.Dataset {
	headers := []string{"Group", "Camper", "Parent Email", "Allergies"}
	rows := make([]map[string]string, 0, len(roster))
	for _, entry := range roster {
		allergies := ""
		if entry.Allergies != nil {
			allergies = *entry.Allergies
		}
		rows = append(rows, map[string]string{
			"Group":        entry.GroupName,
			"Camper":       entry.CamperName,
			"Parent Email": entry.ParentEmail,
			"Allergies":    allergies,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
