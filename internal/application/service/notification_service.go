package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ErrNoRecipient is returned when a notification names neither a user nor a role.
var ErrNoRecipient = errors.New("notification has no recipient")

// NotificationService turns committed workflow events into notifications
// and delivers them through the configured notifier
type NotificationService interface {
	// Register subscribes the service to every workflow event.
	Register(d dispatcher.Dispatcher)
	HandleEvent(ctx context.Context, evt *event.Event) error
	// Deliver sends a queued notification and records the outcome.
	Deliver(ctx context.Context, n *entity.Notification) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Notification, error)
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	queue            port.NotificationQueue
	notifier         port.Notifier
	requests         port.RequestTracker
	logger           Logger
	now              func() time.Time
}

// NewNotificationService creates a new NotificationService. requests may be
// nil, in which case requester-facing notifications rely on the event payload.
func NewNotificationService(
	notificationRepo port.NotificationRepository,
	queue port.NotificationQueue,
	notifier port.Notifier,
	requests port.RequestTracker,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		queue:            queue,
		notifier:         notifier,
		requests:         requests,
		logger:           logger,
		now:              time.Now,
	}
}

const handlerName = "notification-service"

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.Subscribe(dispatcher.AllEvents, handlerName, s.HandleEvent)
}

// HandleEvent builds, stores and enqueues the notification for evt. Events
// without a notification, such as workflow.completed for a non-final
// status, are ignored.
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	n := s.build(ctx, evt)
	if n == nil {
		return nil
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		s.logger.Error("Failed to save notification", "error", err, "workflow_id", evt.WorkflowID, "type", n.NotificationType)
		return fmt.Errorf("failed to save notification: %w", err)
	}

	if err := s.queue.Enqueue(ctx, n); err != nil {
		s.logger.Error("Failed to enqueue notification", "error", err, "notification_id", n.ID)
		if markErr := s.notificationRepo.MarkFailed(ctx, n.ID, n.Attempts, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark notification failed", "error", markErr, "notification_id", n.ID)
		}
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	s.logger.Info("Notification queued",
		"notification_id", n.ID,
		"workflow_id", n.WorkflowID,
		"type", n.NotificationType,
		"recipient_id", n.RecipientID,
		"recipient_role", n.RecipientRole,
	)
	return nil
}

func (s *notificationServiceImpl) Deliver(ctx context.Context, n *entity.Notification) error {
	n.Attempts++
	err := s.send(ctx, n)
	if err != nil {
		n.Status = entity.NotificationStatusFailed
		n.ErrorMessage = err.Error()
		s.logger.Warn("Failed to deliver notification",
			"error", err,
			"notification_id", n.ID,
			"workflow_id", n.WorkflowID,
			"attempts", n.Attempts,
		)
		if markErr := s.notificationRepo.MarkFailed(ctx, n.ID, n.Attempts, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark notification failed", "error", markErr, "notification_id", n.ID)
		}
		return err
	}

	sentAt := s.now()
	n.Status = entity.NotificationStatusSent
	n.SentAt = &sentAt
	if err := s.notificationRepo.MarkSent(ctx, n.ID, n.Attempts); err != nil {
		s.logger.Error("Failed to mark notification sent", "error", err, "notification_id", n.ID)
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}

	s.logger.Info("Notification delivered", "notification_id", n.ID, "workflow_id", n.WorkflowID)
	return nil
}

func (s *notificationServiceImpl) send(ctx context.Context, n *entity.Notification) error {
	if n.RecipientID == "" && n.RecipientRole == "" {
		return ErrNoRecipient
	}
	return s.notifier.Send(ctx, n)
}

func (s *notificationServiceImpl) ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Notification, error) {
	notifications, err := s.notificationRepo.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (s *notificationServiceImpl) build(ctx context.Context, evt *event.Event) *entity.Notification {
	n := &entity.Notification{
		ID:            uuid.NewString(),
		WorkflowID:    evt.WorkflowID,
		ReferenceID:   evt.TravelRequestID,
		ReferenceType: entity.ReferenceTypeTravelRequest,
		Status:        entity.NotificationStatusPending,
		CreatedAt:     s.now(),
	}

	switch evt.Type {
	case event.TypeWorkflowInitiated:
		name := evt.GetPayloadString(event.KeyEmployeeName)
		if name == "" {
			name = evt.GetPayloadString(event.KeyEmployeeID)
		}
		n.NotificationType = entity.NotificationApprovalRequest
		n.Subject = "Approval Required: Travel Request"
		n.Message = fmt.Sprintf("Travel request from %s requires your approval", name)
		toApprover(n, evt)

	case event.TypeWorkflowAdvanced, event.TypeWorkflowReassigned:
		n.NotificationType = entity.NotificationApprovalNext
		n.Subject = "Action Required: Next Approval Step"
		n.Message = fmt.Sprintf("Workflow requires your action at step: %s", evt.GetPayloadString(event.KeyStep))
		toApprover(n, evt)

	case event.TypeWorkflowRejected:
		n.NotificationType = entity.NotificationWorkflowRejected
		n.Subject = "Workflow Rejected"
		n.Message = fmt.Sprintf("Workflow %s was rejected. Comments: %s", evt.WorkflowID, evt.GetPayloadString(event.KeyComments))
		n.RecipientID = s.requester(ctx, evt)

	case event.TypeWorkflowReturned:
		n.NotificationType = entity.NotificationWorkflowReturned
		n.Subject = "Workflow Returned"
		n.Message = fmt.Sprintf("Workflow %s returned for correction. Comments: %s", evt.WorkflowID, evt.GetPayloadString(event.KeyComments))
		n.RecipientID = s.requester(ctx, evt)

	case event.TypeWorkflowEscalated:
		n.NotificationType = entity.NotificationWorkflowEscalated
		n.Subject = "Workflow Escalated"
		n.Message = fmt.Sprintf("Workflow %s escalated. Reason: %s", evt.WorkflowID, evt.GetPayloadString(event.KeyReason))
		n.RecipientID = s.requester(ctx, evt)

	case event.TypeWorkflowCompleted:
		n.NotificationType = entity.NotificationWorkflowCompleted
		n.Subject = "Workflow Completed"
		n.Message = fmt.Sprintf("Workflow %s has been completed", evt.WorkflowID)
		n.RecipientID = s.requester(ctx, evt)

	default:
		return nil
	}
	return n
}

// toApprover addresses the assigned identity, or the whole role when the
// step has no individual approver.
func toApprover(n *entity.Notification, evt *event.Event) {
	if id := evt.GetPayloadString(event.KeyApproverID); id != "" {
		n.RecipientID = id
		return
	}
	n.RecipientRole = strings.ToUpper(evt.GetPayloadString(event.KeyApproverRole))
}

// requester resolves the employee behind the travel request. A failed
// lookup leaves the recipient empty and the notification is marked failed
// on delivery.
func (s *notificationServiceImpl) requester(ctx context.Context, evt *event.Event) string {
	if id := evt.GetPayloadString(event.KeyEmployeeID); id != "" {
		return id
	}
	if s.requests == nil {
		return ""
	}
	req, err := s.requests.FetchRequest(ctx, evt.TravelRequestID)
	if err != nil || req == nil {
		s.logger.Warn("Failed to resolve requester for notification",
			"error", err,
			"workflow_id", evt.WorkflowID,
			"travel_request_id", evt.TravelRequestID,
		)
		return ""
	}
	return req.EmployeeID
}
