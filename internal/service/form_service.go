package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campos-hq/campos-api/internal/dto"
	"github.com/campos-hq/campos-api/internal/formschema"
	"github.com/campos-hq/campos-api/internal/models"
	"github.com/campos-hq/campos-api/internal/repository"
	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type formStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, form *models.FormDefinition) error
	FindByID(ctx context.Context, id string) (*models.FormDefinition, error)
	List(ctx context.Context, filter models.FormFilter) ([]models.FormDefinition, error)
	BumpVersion(ctx context.Context, exec sqlx.ExtContext, params repository.UpdateMetadataParams) (int, error)
	MarkPublished(ctx context.Context, exec sqlx.ExtContext, formID string, at time.Time) error
	Archive(ctx context.Context, exec sqlx.ExtContext, formID string) error
	ListFields(ctx context.Context, formID string) ([]models.FormField, error)
	InsertField(ctx context.Context, exec sqlx.ExtContext, field *models.FormField) error
	UpdateField(ctx context.Context, exec sqlx.ExtContext, field *models.FormField) error
	DeleteField(ctx context.Context, exec sqlx.ExtContext, fieldID string) error
	ListOptionsByForm(ctx context.Context, formID string) ([]models.FormOption, error)
	ReplaceOptions(ctx context.Context, exec sqlx.ExtContext, fieldID string, options []models.FormOption) error
}

type snapshotStore interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, snapshot *models.FormSnapshot) error
	FindByFormVersion(ctx context.Context, formID string, version int) (*models.FormSnapshot, error)
	ListByForm(ctx context.Context, formID string) ([]models.FormSnapshot, error)
}

type eventStore interface {
	Append(ctx context.Context, exec sqlx.ExtContext, event *models.Event) error
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// FormService owns the form definition lifecycle: drafting, versioned edits,
// publishing with snapshots, and archival.
type FormService struct {
	forms     formStore
	snapshots snapshotStore
	events    eventStore
	cache     cacheInvalidator
	tx        txProvider
	logger    *zap.Logger
	maxFields int
}

// FormServiceOption configures the service.
type FormServiceOption func(*FormService)

// WithFormCache wires a cache invalidated on lifecycle transitions.
func WithFormCache(cache cacheInvalidator) FormServiceOption {
	return func(s *FormService) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithMaxFieldsPerForm bounds the number of fields accepted per definition.
func WithMaxFieldsPerForm(limit int) FormServiceOption {
	return func(s *FormService) {
		if limit > 0 {
			s.maxFields = limit
		}
	}
}

// NewFormService constructs the service with defaults.
func NewFormService(forms formStore, snapshots snapshotStore, events eventStore, tx txProvider, logger *zap.Logger, opts ...FormServiceOption) *FormService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &FormService{
		forms:     forms,
		snapshots: snapshots,
		events:    events,
		tx:        tx,
		logger:    logger,
		maxFields: 200,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create opens a new draft definition at version 1 with no fields.
func (s *FormService) Create(ctx context.Context, actorID string, req dto.CreateFormRequest) (*models.FormDefinition, error) {
	form := &models.FormDefinition{
		CampID:      req.CampID,
		SessionID:   req.SessionID,
		Name:        req.Name,
		Description: req.Description,
		FormType:    req.FormType,
		CreatedBy:   actorID,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create form: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.forms.Create(ctx, tx, form); err != nil {
		return nil, err
	}
	if err = s.appendEvent(ctx, tx, form.ID, models.EventFormCreated, form.Version, actorID, map[string]interface{}{
		"name":     form.Name,
		"formType": form.FormType,
	}); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create form: %w", err)
	}

	s.logger.Info("form created",
		zap.String("form_id", form.ID),
		zap.String("camp_id", form.CampID),
		zap.String("form_type", string(form.FormType)))
	return form, nil
}

// Get returns a definition with its full field list in display order.
func (s *FormService) Get(ctx context.Context, formID string) (*dto.FormDetail, error) {
	form, err := s.forms.FindByID(ctx, formID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load form: %w", err)
	}
	fields, options, err := s.loadStructure(ctx, formID)
	if err != nil {
		return nil, err
	}

	detail := &dto.FormDetail{FormDefinition: *form, Fields: make([]dto.FormFieldDetail, 0, len(fields))}
	for _, field := range fields {
		detail.Fields = append(detail.Fields, dto.FormFieldDetail{FormField: field, Options: options[field.ID]})
	}
	return detail, nil
}

// List returns definitions matching the filter.
func (s *FormService) List(ctx context.Context, filter models.FormFilter) ([]models.FormDefinition, error) {
	return s.forms.List(ctx, filter)
}

// Update reconciles the stored structure against the submitted one and bumps
// the version by exactly one. Fields are matched by key: an existing key is
// updated in place, a new key is inserted, and a key absent from the request
// is removed. Changing an existing field's type is rejected; a type change
// must arrive as a remove plus an add under a fresh key. The version bump is
// a compare-and-swap on the version the editor read, so concurrent edits
// cannot both land. If the form is published, the committed structure is also
// frozen as the snapshot for the new version, in the same transaction.
func (s *FormService) Update(ctx context.Context, formID, actorID string, req dto.UpdateFormRequest) (*dto.FormDetail, error) {
	form, err := s.forms.FindByID(ctx, formID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load form: %w", err)
	}
	if form.Status == models.FormStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "archived forms cannot be edited")
	}
	if len(req.Fields) > s.maxFields {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("a form may hold at most %d fields", s.maxFields))
	}
	if err := validateFieldInputs(req.Fields); err != nil {
		return nil, err
	}

	existing, err := s.forms.ListFields(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	existingByKey := make(map[string]models.FormField, len(existing))
	for _, field := range existing {
		existingByKey[field.FieldKey] = field
	}
	for _, input := range req.Fields {
		current, ok := existingByKey[input.FieldKey]
		if ok && current.FieldType != input.FieldType {
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("field %q cannot change type from %s to %s; remove it and add a new key instead", input.FieldKey, current.FieldType, input.FieldType))
		}
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update form: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	seen := make(map[string]struct{}, len(req.Fields))
	for order, input := range req.Fields {
		seen[input.FieldKey] = struct{}{}
		if current, ok := existingByKey[input.FieldKey]; ok {
			updated := current
			updated.Label = input.Label
			updated.HelpText = input.HelpText
			updated.Required = input.Required
			updated.Validation = input.Validation
			updated.Conditions = input.Conditions
			updated.DisplayOrder = order
			updated.Section = input.Section
			if err = s.forms.UpdateField(ctx, tx, &updated); err != nil {
				return nil, err
			}
			if err = s.replaceFieldOptions(ctx, tx, updated.ID, input); err != nil {
				return nil, err
			}
			continue
		}

		field := models.FormField{
			ID:               uuid.NewString(),
			FormDefinitionID: formID,
			FieldKey:         input.FieldKey,
			Label:            input.Label,
			HelpText:         input.HelpText,
			FieldType:        input.FieldType,
			Required:         input.Required,
			Validation:       input.Validation,
			Conditions:       input.Conditions,
			DisplayOrder:     order,
			Section:          input.Section,
		}
		if err = s.forms.InsertField(ctx, tx, &field); err != nil {
			return nil, err
		}
		if err = s.replaceFieldOptions(ctx, tx, field.ID, input); err != nil {
			return nil, err
		}
	}
	for _, field := range existing {
		if _, ok := seen[field.FieldKey]; !ok {
			if err = s.forms.DeleteField(ctx, tx, field.ID); err != nil {
				return nil, err
			}
		}
	}

	newVersion, err := s.forms.BumpVersion(ctx, tx, repository.UpdateMetadataParams{
		FormID:          formID,
		Name:            req.Name,
		Description:     req.Description,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrConflict, "the form changed since you loaded it; reload and retry")
		}
		return nil, err
	}

	if form.Published {
		if err = s.freezeSnapshot(ctx, tx, form, req, newVersion); err != nil {
			return nil, err
		}
	}
	if err = s.appendEvent(ctx, tx, formID, models.EventFormUpdated, newVersion, actorID, map[string]interface{}{
		"version":    newVersion,
		"fieldCount": len(req.Fields),
	}); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update form: %w", err)
	}

	s.logger.Info("form updated",
		zap.String("form_id", formID),
		zap.Int("version", newVersion),
		zap.Int("fields", len(req.Fields)))
	return s.Get(ctx, formID)
}

// Publish marks the form active and freezes its current structure as the
// snapshot for the current version. Publishing an already-published form at
// the same version is a no-op; the stored snapshot is never overwritten.
func (s *FormService) Publish(ctx context.Context, formID, actorID string) (*models.FormDefinition, error) {
	form, err := s.forms.FindByID(ctx, formID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load form: %w", err)
	}
	if form.Status == models.FormStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "archived forms cannot be published")
	}

	fields, options, err := s.loadStructure(ctx, formID)
	if err != nil {
		return nil, err
	}
	doc := buildSnapshotDocument(form, fields, options)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin publish form: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if err = s.forms.MarkPublished(ctx, tx, formID, now); err != nil {
		return nil, err
	}
	if err = s.snapshots.Upsert(ctx, tx, &models.FormSnapshot{
		FormDefinitionID: formID,
		Version:          form.Version,
		Structure:        doc,
	}); err != nil {
		return nil, err
	}
	if err = s.appendEvent(ctx, tx, formID, models.EventFormPublished, form.Version, actorID, map[string]interface{}{
		"version": form.Version,
	}); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit publish form: %w", err)
	}

	s.invalidateDashboards(ctx, form.CampID)
	s.logger.Info("form published", zap.String("form_id", formID), zap.Int("version", form.Version))
	return s.forms.FindByID(ctx, formID)
}

// Archive retires the definition. Archived forms reject edits and new
// submissions, but their snapshots and stored submissions stay readable.
func (s *FormService) Archive(ctx context.Context, formID, actorID string) error {
	form, err := s.forms.FindByID(ctx, formID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return fmt.Errorf("load form: %w", err)
	}
	if form.Status == models.FormStatusArchived {
		return nil
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive form: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.forms.Archive(ctx, tx, formID); err != nil {
		return err
	}
	if err = s.appendEvent(ctx, tx, formID, models.EventFormArchived, form.Version, actorID, nil); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit archive form: %w", err)
	}

	s.invalidateDashboards(ctx, form.CampID)
	s.logger.Info("form archived", zap.String("form_id", formID))
	return nil
}

// ListSnapshots returns every frozen version of a form, newest first.
func (s *FormService) ListSnapshots(ctx context.Context, formID string) ([]models.FormSnapshot, error) {
	if _, err := s.forms.FindByID(ctx, formID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("load form: %w", err)
	}
	return s.snapshots.ListByForm(ctx, formID)
}

func (s *FormService) loadStructure(ctx context.Context, formID string) ([]models.FormField, map[string][]models.FormOption, error) {
	fields, err := s.forms.ListFields(ctx, formID)
	if err != nil {
		return nil, nil, fmt.Errorf("load fields: %w", err)
	}
	options, err := s.forms.ListOptionsByForm(ctx, formID)
	if err != nil {
		return nil, nil, fmt.Errorf("load options: %w", err)
	}
	byField := make(map[string][]models.FormOption, len(fields))
	for _, opt := range options {
		byField[opt.FieldID] = append(byField[opt.FieldID], opt)
	}
	return fields, byField, nil
}

func (s *FormService) replaceFieldOptions(ctx context.Context, exec sqlx.ExtContext, fieldID string, input dto.FormFieldInput) error {
	if !formschema.SupportsOptions(input.FieldType) {
		return nil
	}
	options, err := buildOptionRows(fieldID, input.Options)
	if err != nil {
		return err
	}
	return s.forms.ReplaceOptions(ctx, exec, fieldID, options)
}

// freezeSnapshot stores the committed structure for a new version of an
// already-published form. The request is the authoritative structure here
// because the transaction has not committed yet.
func (s *FormService) freezeSnapshot(ctx context.Context, exec sqlx.ExtContext, form *models.FormDefinition, req dto.UpdateFormRequest, version int) error {
	doc := models.SnapshotDocument{
		Name:        req.Name,
		Description: req.Description,
		FormType:    form.FormType,
		Fields:      make([]models.SnapshotField, 0, len(req.Fields)),
	}
	for order, input := range req.Fields {
		doc.Fields = append(doc.Fields, models.SnapshotField{
			FieldKey:     input.FieldKey,
			Label:        input.Label,
			HelpText:     input.HelpText,
			FieldType:    input.FieldType,
			Required:     input.Required,
			Validation:   input.Validation,
			Conditions:   input.Conditions,
			DisplayOrder: order,
			Section:      input.Section,
			Options:      snapshotOptionsFromInputs(input.Options),
		})
	}
	return s.snapshots.Upsert(ctx, exec, &models.FormSnapshot{
		FormDefinitionID: form.ID,
		Version:          version,
		Structure:        doc,
	})
}

func (s *FormService) appendEvent(ctx context.Context, exec sqlx.ExtContext, streamID, eventType string, version int, actorID string, payload map[string]interface{}) error {
	event := &models.Event{
		StreamID:  streamID,
		EventType: eventType,
		Version:   version,
	}
	if actorID != "" {
		event.ActorID = &actorID
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		event.Payload = raw
	}
	return s.events.Append(ctx, exec, event)
}

func (s *FormService) invalidateDashboards(ctx context.Context, campID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("dashboard:%s:*", campID)); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.String("camp_id", campID), zap.Error(err))
	}
}

// validateFieldInputs checks structural rules the database cannot express:
// duplicate keys, option-bearing fields with no options, and options on
// fields whose type has none.
func validateFieldInputs(inputs []dto.FormFieldInput) error {
	violations := make([]appErrors.FieldViolation, 0)
	seen := make(map[string]struct{}, len(inputs))
	for _, input := range inputs {
		if _, dup := seen[input.FieldKey]; dup {
			violations = append(violations, appErrors.FieldViolation{FieldKey: input.FieldKey, Message: "duplicate field key"})
			continue
		}
		seen[input.FieldKey] = struct{}{}

		if formschema.SupportsOptions(input.FieldType) {
			if len(input.Options) == 0 {
				violations = append(violations, appErrors.FieldViolation{FieldKey: input.FieldKey, Message: "option-bearing field requires at least one option"})
			}
		} else if len(input.Options) > 0 {
			violations = append(violations, appErrors.FieldViolation{FieldKey: input.FieldKey, Message: fmt.Sprintf("field type %s does not accept options", input.FieldType)})
		}
	}
	if len(violations) > 0 {
		return appErrors.WithViolations(violations)
	}
	return nil
}

// buildOptionRows converts option inputs into rows, resolving parentValue
// references into parent option IDs. A parent must appear earlier in or
// anywhere within the same list.
func buildOptionRows(fieldID string, inputs []dto.FormOptionInput) ([]models.FormOption, error) {
	rows := make([]models.FormOption, 0, len(inputs))
	byValue := make(map[string]int, len(inputs))
	for order, input := range inputs {
		if _, dup := byValue[input.Value]; dup {
			return nil, appErrors.WithViolations([]appErrors.FieldViolation{{
				FieldKey: input.Value, Message: "duplicate option value",
			}})
		}
		byValue[input.Value] = order
		rows = append(rows, models.FormOption{
			ID:             uuid.NewString(),
			FieldID:        fieldID,
			Label:          input.Label,
			Value:          input.Value,
			DisplayOrder:   order,
			TriggersFields: input.TriggersFields,
		})
	}
	for i, input := range inputs {
		if input.ParentValue == nil {
			continue
		}
		idx, ok := byValue[*input.ParentValue]
		if !ok {
			return nil, appErrors.WithViolations([]appErrors.FieldViolation{{
				FieldKey: input.Value, Message: fmt.Sprintf("parent option %q does not exist", *input.ParentValue),
			}})
		}
		if optionParentCycles(optionParents(inputs), byValue, i, idx) {
			return nil, appErrors.WithViolations([]appErrors.FieldViolation{{
				FieldKey: input.Value, Message: "option cannot name itself or a descendant as parent",
			}})
		}
		parentID := rows[idx].ID
		rows[i].ParentOptionID = &parentID
	}
	return rows, nil
}

func optionParents(inputs []dto.FormOptionInput) []*string {
	parents := make([]*string, len(inputs))
	for i, input := range inputs {
		parents[i] = input.ParentValue
	}
	return parents
}

// optionParentCycles walks the parent chain starting at parentIdx and reports
// whether it leads back to the option at selfIdx. The hop cap keeps the walk
// finite when the chain contains a cycle among other options; that cycle is
// rejected when its own members are checked.
func optionParentCycles(parents []*string, byValue map[string]int, selfIdx, parentIdx int) bool {
	cursor := parentIdx
	for hops := 0; hops < len(parents); hops++ {
		if cursor == selfIdx {
			return true
		}
		parent := parents[cursor]
		if parent == nil {
			return false
		}
		next, ok := byValue[*parent]
		if !ok {
			return false
		}
		cursor = next
	}
	return false
}

// buildSnapshotDocument denormalizes the live structure into the frozen
// document. Cascading options are nested under their parents.
func buildSnapshotDocument(form *models.FormDefinition, fields []models.FormField, optionsByField map[string][]models.FormOption) models.SnapshotDocument {
	doc := models.SnapshotDocument{
		Name:        form.Name,
		Description: form.Description,
		FormType:    form.FormType,
		Fields:      make([]models.SnapshotField, 0, len(fields)),
	}
	for _, field := range fields {
		doc.Fields = append(doc.Fields, models.SnapshotField{
			FieldKey:     field.FieldKey,
			Label:        field.Label,
			HelpText:     field.HelpText,
			FieldType:    field.FieldType,
			Required:     field.Required,
			Validation:   field.Validation,
			Conditions:   field.Conditions,
			DisplayOrder: field.DisplayOrder,
			Section:      field.Section,
			Options:      nestSnapshotOptions(optionsByField[field.ID]),
		})
	}
	return doc
}

func nestSnapshotOptions(options []models.FormOption) []models.SnapshotOption {
	if len(options) == 0 {
		return nil
	}
	valueByID := make(map[string]string, len(options))
	for _, opt := range options {
		valueByID[opt.ID] = opt.Value
	}
	childrenOf := make(map[string][]models.SnapshotOption)
	roots := make([]models.SnapshotOption, 0, len(options))
	for _, opt := range options {
		snap := models.SnapshotOption{
			Label:          opt.Label,
			Value:          opt.Value,
			DisplayOrder:   opt.DisplayOrder,
			TriggersFields: opt.TriggersFields,
		}
		if opt.ParentOptionID != nil {
			if parentValue, ok := valueByID[*opt.ParentOptionID]; ok {
				snap.ParentValue = &parentValue
				childrenOf[parentValue] = append(childrenOf[parentValue], snap)
				continue
			}
		}
		roots = append(roots, snap)
	}
	return attachOptionChildren(roots, childrenOf)
}

// attachOptionChildren hangs each option's subtree off it, to arbitrary
// cascade depth. Parent references are acyclic by construction.
func attachOptionChildren(nodes []models.SnapshotOption, childrenOf map[string][]models.SnapshotOption) []models.SnapshotOption {
	for i := range nodes {
		nodes[i].Children = attachOptionChildren(childrenOf[nodes[i].Value], childrenOf)
	}
	return nodes
}

func snapshotOptionsFromInputs(inputs []dto.FormOptionInput) []models.SnapshotOption {
	if len(inputs) == 0 {
		return nil
	}
	childrenOf := make(map[string][]models.SnapshotOption)
	roots := make([]models.SnapshotOption, 0, len(inputs))
	for order, input := range inputs {
		snap := models.SnapshotOption{
			Label:          input.Label,
			Value:          input.Value,
			DisplayOrder:   order,
			ParentValue:    input.ParentValue,
			TriggersFields: input.TriggersFields,
		}
		if input.ParentValue != nil {
			childrenOf[*input.ParentValue] = append(childrenOf[*input.ParentValue], snap)
			continue
		}
		roots = append(roots, snap)
	}
	return attachOptionChildren(roots, childrenOf)
}
