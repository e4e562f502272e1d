package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campos-hq/campos-api/internal/models"
	"github.com/campos-hq/campos-api/pkg/jobs"
)

// Notification job types.
const (
	notifyRegistration = "registration.created"
	notifyWaitlist     = "registration.waitlisted"
	notifyIncident     = "incident.severe"
)

type notificationPayload struct {
	Kind      string
	TargetID  string
	SessionID string
	Detail    string
}

// NotificationService fans state changes out to interested parties through
// an in-process queue. Enqueueing happens after the owning transaction
// commits; a dropped notification never rolls back domain state. Delivery is
// a log line for now, with the queue as the seam a real sender plugs into.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service and its worker queue.
func NewNotificationService(logger *zap.Logger, workers, retries int) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{logger: logger}
	svc.queue = jobs.NewQueue("notifications", svc.deliver, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
	})
	return svc
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains and stops the queue.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// RegistrationCreated notifies the parent that a registration landed,
// distinguishing a confirmed spot from a waitlist placement.
func (s *NotificationService) RegistrationCreated(reg *models.Registration, status models.RegistrationStatus) {
	kind := notifyRegistration
	if status == models.RegistrationStatusWaitlisted {
		kind = notifyWaitlist
	}
	s.enqueue(notificationPayload{
		Kind:      kind,
		TargetID:  reg.ParentID,
		SessionID: reg.SessionID,
		Detail:    reg.ID,
	})
}

// IncidentReported notifies camp staff about a severe incident.
func (s *NotificationService) IncidentReported(report *models.IncidentReport) {
	s.enqueue(notificationPayload{
		Kind:      notifyIncident,
		TargetID:  report.CamperID,
		SessionID: report.SessionID,
		Detail:    report.ID,
	})
}

func (s *NotificationService) enqueue(payload notificationPayload) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    payload.Kind,
		Payload: payload,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("notification dropped",
			zap.String("kind", payload.Kind),
			zap.String("target_id", payload.TargetID),
			zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		s.logger.Warn("notification with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	s.logger.Info("notification delivered",
		zap.String("kind", payload.Kind),
		zap.String("target_id", payload.TargetID),
		zap.String("session_id", payload.SessionID),
		zap.String("detail", payload.Detail))
	return nil
}
