package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campos-hq/campos-api/internal/dto"
)

type dashboardStore interface {
	CountActiveSessions(ctx context.Context, campID string) (int, error)
	CountRegistrations(ctx context.Context, campID string) (int, error)
	CountPublishedForms(ctx context.Context, campID string) (int, error)
	CountSubmissionsSince(ctx context.Context, campID string, since time.Time) (int, error)
	CountPendingAIActions(ctx context.Context, campID string) (int, error)
	CountIncidentsSince(ctx context.Context, campID string, since time.Time) (int, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DashboardService aggregates per-camp counters, cached under a short TTL
// because the numbers back landing pages hit on every login.
type DashboardService struct {
	store    dashboardStore
	cache    dashboardCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// DashboardServiceOption configures the service.
type DashboardServiceOption func(*DashboardService)

// WithDashboardCache wires the counter cache.
func WithDashboardCache(cache dashboardCache, ttl time.Duration) DashboardServiceOption {
	return func(s *DashboardService) {
		if cache != nil {
			s.cache = cache
			if ttl > 0 {
				s.cacheTTL = ttl
			}
		}
	}
}

// NewDashboardService constructs the service.
func NewDashboardService(store dashboardStore, logger *zap.Logger, opts ...DashboardServiceOption) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DashboardService{store: store, logger: logger, cacheTTL: time.Minute}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Summary returns the camp's counters, served from cache when fresh.
func (s *DashboardService) Summary(ctx context.Context, campID string) (*dto.DashboardSummary, error) {
	key := fmt.Sprintf("dashboard:%s:summary", campID)
	if s.cache != nil {
		var cached dto.DashboardSummary
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.AddDate(0, 0, -7)

	summary := &dto.DashboardSummary{CampID: campID}
	var err error
	if summary.ActiveSessions, err = s.store.CountActiveSessions(ctx, campID); err != nil {
		return nil, err
	}
	if summary.TotalRegistrations, err = s.store.CountRegistrations(ctx, campID); err != nil {
		return nil, err
	}
	if summary.PublishedForms, err = s.store.CountPublishedForms(ctx, campID); err != nil {
		return nil, err
	}
	if summary.SubmissionsToday, err = s.store.CountSubmissionsSince(ctx, campID, startOfDay); err != nil {
		return nil, err
	}
	if summary.PendingAIActions, err = s.store.CountPendingAIActions(ctx, campID); err != nil {
		return nil, err
	}
	if summary.OpenIncidentsWeekly, err = s.store.CountIncidentsSince(ctx, campID, weekAgo); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("camp_id", campID), zap.Error(err))
		}
	}
	return summary, nil
}
