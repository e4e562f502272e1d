package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/campos-hq/campos-api/pkg/errors"
)

type dashboardStoreStub struct {
	sessions      int
	registrations int
	forms         int
	submissions   int
	aiActions     int
	incidents     int
	calls         int
}

func (s *dashboardStoreStub) CountActiveSessions(context.Context, string) (int, error) {
	s.calls++
	return s.sessions, nil
}

func (s *dashboardStoreStub) CountRegistrations(context.Context, string) (int, error) {
	return s.registrations, nil
}

func (s *dashboardStoreStub) CountPublishedForms(context.Context, string) (int, error) {
	return s.forms, nil
}

func (s *dashboardStoreStub) CountSubmissionsSince(context.Context, string, time.Time) (int, error) {
	return s.submissions, nil
}

func (s *dashboardStoreStub) CountPendingAIActions(context.Context, string) (int, error) {
	return s.aiActions, nil
}

func (s *dashboardStoreStub) CountIncidentsSince(context.Context, string, time.Time) (int, error) {
	return s.incidents, nil
}

type dashboardCacheStub struct {
	entries map[string][]byte
}

func (c *dashboardCacheStub) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *dashboardCacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func TestDashboardServiceSummaryAggregates(t *testing.T) {
	store := &dashboardStoreStub{sessions: 2, registrations: 40, forms: 5, submissions: 7, aiActions: 1, incidents: 3}
	svc := NewDashboardService(store, nil)

	summary, err := svc.Summary(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, "camp-1", summary.CampID)
	assert.Equal(t, 2, summary.ActiveSessions)
	assert.Equal(t, 40, summary.TotalRegistrations)
	assert.Equal(t, 5, summary.PublishedForms)
	assert.Equal(t, 7, summary.SubmissionsToday)
	assert.Equal(t, 1, summary.PendingAIActions)
	assert.Equal(t, 3, summary.OpenIncidentsWeekly)
}

func TestDashboardServiceSummaryServedFromCache(t *testing.T) {
	store := &dashboardStoreStub{sessions: 2}
	cache := &dashboardCacheStub{entries: make(map[string][]byte)}
	svc := NewDashboardService(store, nil, WithDashboardCache(cache, time.Minute))

	_, err := svc.Summary(context.Background(), "camp-1")
	require.NoError(t, err)
	require.Equal(t, 1, store.calls)

	summary, err := svc.Summary(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, 2, summary.ActiveSessions)
}
