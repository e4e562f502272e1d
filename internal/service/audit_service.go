package service

import (
	"context"

	"github.com/campos-hq/campos-api/internal/models"
)

type eventReader interface {
	ListByStream(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
}

// AuditService reads the append-only event trail.
type AuditService struct {
	events eventReader
}

// NewAuditService constructs the service.
func NewAuditService(events eventReader) *AuditService {
	return &AuditService{events: events}
}

// List returns audit events matching the filter, newest first.
func (s *AuditService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	return s.events.ListByStream(ctx, filter)
}
