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
	"github.com/campos-hq/campos-api/internal/formschema"
	"github.com/campos-hq/campos-api/internal/models"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, submission *models.FormSubmission) error
	FindByID(ctx context.Context, id string) (*models.FormSubmission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.FormSubmission, error)
}

type snapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SubmissionService accepts and validates form submissions. Validation always
// runs against the snapshot matching the definition's current version, never
// against the live definition, so an edit committed mid-flight cannot change
// what a submitter is held to.
type SubmissionService struct {
	submissions submissionStore
	forms       formStore
	snapshots   snapshotStore
	events      eventStore
	cache       snapshotCache
	cacheTTL    time.Duration
	metrics     *MetricsService
	tx          txProvider
	logger      *zap.Logger
}

// SubmissionServiceOption configures the service.
type SubmissionServiceOption func(*SubmissionService)

// WithSnapshotCache wires a read-through cache for frozen snapshots.
// Snapshots are immutable, so cached copies never need invalidation.
func WithSnapshotCache(cache snapshotCache, ttl time.Duration) SubmissionServiceOption {
	return func(s *SubmissionService) {
		if cache != nil {
			s.cache = cache
			if ttl > 0 {
				s.cacheTTL = ttl
			}
		}
	}
}

// WithSubmissionMetrics wires snapshot cache hit and miss counters.
func WithSubmissionMetrics(metrics *MetricsService) SubmissionServiceOption {
	return func(s *SubmissionService) {
		s.metrics = metrics
	}
}

// NewSubmissionService constructs the service with defaults.
func NewSubmissionService(submissions submissionStore, forms formStore, snapshots snapshotStore, events eventStore, tx txProvider, logger *zap.Logger, opts ...SubmissionServiceOption) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SubmissionService{
		submissions: submissions,
		forms:       forms,
		snapshots:   snapshots,
		events:      events,
		tx:          tx,
		logger:      logger,
		cacheTTL:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Submit validates the payload against the snapshot for the form's current
// version and stores it together with that version number. The stored row
// and its audit event commit in one transaction.
func (s *SubmissionService) Submit(ctx context.Context, formID string, submitterID *string, req dto.SubmitFormRequest) (*models.FormSubmission, error) {
	form, err := s.forms.FindByID(ctx, formID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load form: %w", err)
	}
	if form.Status == models.FormStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "archived forms do not accept submissions")
	}
	if !form.Published {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "the form is not published")
	}

	snapshot, err := s.loadSnapshot(ctx, formID, form.Version)
	if err != nil {
		return nil, err
	}

	schema, err := buildSchema(snapshot.Structure)
	if err != nil {
		return nil, fmt.Errorf("compile snapshot v%d of form %s: %w", snapshot.Version, formID, err)
	}
	if violations := schema.Validate(req.Payload); len(violations) > 0 {
		return nil, appErrors.WithViolations(toFieldViolations(violations))
	}

	submission := &models.FormSubmission{
		FormDefinitionID: formID,
		FormVersion:      snapshot.Version,
		SubmittedBy:      submitterID,
		CamperID:         req.CamperID,
		RegistrationID:   req.RegistrationID,
		SessionID:        req.SessionID,
		Payload:          req.Payload,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin submit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.submissions.Create(ctx, tx, submission); err != nil {
		return nil, err
	}
	event := &models.Event{
		StreamID:  formID,
		EventType: models.EventFormSubmitted,
		Version:   snapshot.Version,
		ActorID:   submitterID,
	}
	if event.Payload, err = json.Marshal(map[string]interface{}{"submissionId": submission.ID}); err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	if err = s.events.Append(ctx, tx, event); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit submit: %w", err)
	}

	s.logger.Info("submission accepted",
		zap.String("form_id", formID),
		zap.String("submission_id", submission.ID),
		zap.Int("form_version", snapshot.Version))
	return submission, nil
}

// Get returns a stored submission.
func (s *SubmissionService) Get(ctx context.Context, id string) (*models.FormSubmission, error) {
	submission, err := s.submissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load submission: %w", err)
	}
	return submission, nil
}

// List returns submissions matching the filter.
func (s *SubmissionService) List(ctx context.Context, filter models.SubmissionFilter) ([]models.FormSubmission, error) {
	return s.submissions.List(ctx, filter)
}

// loadSnapshot resolves the frozen structure for a form version, through the
// cache when one is wired. A published form whose snapshot row is absent is
// reported as a distinct conflict rather than a plain not-found, because it
// signals a broken publish rather than a bad request.
func (s *SubmissionService) loadSnapshot(ctx context.Context, formID string, version int) (*models.FormSnapshot, error) {
	key := fmt.Sprintf("form:snapshot:%s:%d", formID, version)
	if s.cache != nil {
		var cached models.FormSnapshot
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.SnapshotCacheLookup(true)
			return &cached, nil
		}
		s.metrics.SnapshotCacheLookup(false)
	}

	snapshot, err := s.snapshots.FindByFormVersion(ctx, formID, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSnapshotMissing
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, snapshot, s.cacheTTL); err != nil {
			s.logger.Warn("snapshot cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return snapshot, nil
}

// buildSchema compiles a frozen snapshot document into a validator.
func buildSchema(doc models.SnapshotDocument) (*formschema.Schema, error) {
	specs := make([]formschema.FieldSpec, 0, len(doc.Fields))
	for _, field := range doc.Fields {
		specs = append(specs, formschema.FieldSpec{
			Key:      field.FieldKey,
			Type:     field.FieldType,
			Label:    field.Label,
			Required: field.Required,
			Rules:    formschema.Rules(field.Validation),
			Options:  flattenOptionValues(field.Options),
		})
	}
	return formschema.Build(specs)
}

// flattenOptionValues collects every selectable value, cascading children
// included. Whether a child is visible depends on the parent selection, which
// is a rendering concern; any declared value is acceptable on submit.
func flattenOptionValues(options []models.SnapshotOption) []string {
	if len(options) == 0 {
		return nil
	}
	values := make([]string, 0, len(options))
	for _, opt := range options {
		values = append(values, opt.Value)
		values = append(values, flattenOptionValues(opt.Children)...)
	}
	return values
}

func toFieldViolations(violations []formschema.Violation) []appErrors.FieldViolation {
	out := make([]appErrors.FieldViolation, 0, len(violations))
	for _, v := range violations {
		out = append(out, appErrors.FieldViolation{FieldKey: v.FieldKey, Message: v.Message})
	}
	return out
}
