package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new notification record
func (r *NotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			request_id, event_id, channel, message, status,
			sent_at, error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = now
	}
	notification.UpdatedAt = now
	if notification.Status == "" {
		notification.Status = entity.NotificationStatusPending
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		notification.RequestID,
		notification.EventID,
		notification.Channel,
		notification.Message,
		notification.Status,
		notification.SentAt,
		nullString(notification.ErrorMessage),
		notification.CreatedAt,
		notification.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("request_id", notification.RequestID),
			zap.String("event_id", notification.EventID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	notification.ID = id
	return nil
}

// MarkSent marks notification as sent
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE notifications
		SET status = ?, sent_at = ?, error_message = NULL, updated_at = ?
		WHERE id = ?
	`

	now := time.Now().UTC()
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, entity.NotificationStatusSent, now, now, id)
	if err != nil {
		r.logger.Error("Failed to mark notification as sent", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark sent: %w", err)
	}
	return requireAffected(result, "notification", fmt.Sprint(id))
}

// MarkFailed records a delivery failure
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	query := `
		UPDATE notifications
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, entity.NotificationStatusFailed, errMsg, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark notification as failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark failed: %w", err)
	}
	return requireAffected(result, "notification", fmt.Sprint(id))
}

// GetByRequestID lists the notifications sent for a request
func (r *NotificationRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.Notification, error) {
	query := `
		SELECT id, request_id, event_id, channel, message, status,
			sent_at, error_message, created_at, updated_at
		FROM notifications
		WHERE request_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get notifications", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		var (
			n        entity.Notification
			sentAt   sql.NullTime
			errorMsg sql.NullString
		)
		err := rows.Scan(
			&n.ID,
			&n.RequestID,
			&n.EventID,
			&n.Channel,
			&n.Message,
			&n.Status,
			&sentAt,
			&errorMsg,
			&n.CreatedAt,
			&n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if sentAt.Valid {
			n.SentAt = &sentAt.Time
		}
		if errorMsg.Valid {
			n.ErrorMessage = errorMsg.String
		}
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
