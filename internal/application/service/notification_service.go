package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/event"
	"github.com/garyjia/credit-approvals/internal/domain/workflow"
)

// NotificationService pushes workflow transitions to a chat
type NotificationService interface {
	// HandleEvent is subscribed to status change events
	HandleEvent(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	messenger        port.Messenger
	chatID           string
	logger           Logger
}

// NewNotificationService creates a new NotificationService posting to chatID
func NewNotificationService(
	notificationRepo port.NotificationRepository,
	messenger port.Messenger,
	chatID string,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		messenger:        messenger,
		chatID:           chatID,
		logger:           logger,
	}
}

func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	var message string
	switch evt.Type {
	case event.TypeStatusChanged:
		message = buildStatusMessage(evt)
	case event.TypeStatusReverted:
		message = buildRevertMessage(evt)
	default:
		return nil
	}

	notification := &entity.Notification{
		RequestID: evt.RequestID,
		EventID:   evt.ID,
		Channel:   s.chatID,
		Message:   message,
		Status:    entity.NotificationStatusPending,
	}
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		s.logger.Error("Failed to record notification", "error", err, "request_id", evt.RequestID, "event_id", evt.ID)
		return fmt.Errorf("create notification: %w", err)
	}

	if err := s.messenger.SendText(ctx, s.chatID, message); err != nil {
		s.logger.Error("Failed to send notification", "error", err, "request_id", evt.RequestID)
		if markErr := s.notificationRepo.MarkFailed(ctx, notification.ID, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark notification failed", "error", markErr, "notification_id", notification.ID)
		}
		return fmt.Errorf("send message: %w", err)
	}

	if err := s.notificationRepo.MarkSent(ctx, notification.ID); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}

	s.logger.Info("Notification sent",
		"request_id", evt.RequestID,
		"notification_id", notification.ID,
		"event_type", evt.Type,
	)
	return nil
}

func statusLabel(raw string) string {
	if raw == "" {
		return "Unknown"
	}
	return workflow.ParseStatus(raw).Label()
}

func buildStatusMessage(evt *event.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Credit memo request %s moved from %s to %s.",
		evt.RequestID,
		statusLabel(evt.GetPayloadString(event.KeyPreviousStatus)),
		statusLabel(evt.GetPayloadString(event.KeyNewStatus)),
	)

	actor := evt.GetPayloadString(event.KeyActorName)
	if actor == "" {
		actor = evt.GetPayloadString(event.KeyActorID)
	}
	if action := evt.GetPayloadString(event.KeyAction); action != "" {
		fmt.Fprintf(&b, "\nAction: %s", action)
		if actor != "" {
			fmt.Fprintf(&b, " by %s", actor)
		}
	}
	if group := evt.GetPayloadString(event.KeyGroupName); group != "" {
		fmt.Fprintf(&b, "\nApprover group: %s (Level %d)", group, evt.GetPayloadInt(event.KeyLevel))
	}
	if comment := evt.GetPayloadString(event.KeyComment); comment != "" {
		fmt.Fprintf(&b, "\n\n%s", comment)
	}
	return b.String()
}

func buildRevertMessage(evt *event.Event) string {
	return fmt.Sprintf("Credit memo request %s: a direct change to %s was reverted to %s.\n\n%s",
		evt.RequestID,
		statusLabel(evt.GetPayloadString(event.KeyPreviousStatus)),
		statusLabel(evt.GetPayloadString(event.KeyNewStatus)),
		evt.GetPayloadString(event.KeyComment),
	)
}
