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

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.TransitionHistory) error {
	if history.Timestamp.IsZero() {
		history.Timestamp = time.Now()
	}

	query := `
		INSERT INTO workflow_history (
			request_id, actor_id, actor_name, previous_status, new_status,
			previous_group, new_group, action_type, comment, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		history.RequestID,
		history.ActorID,
		history.ActorName,
		history.PreviousStatus,
		history.NewStatus,
		history.PreviousGroup,
		history.NewGroup,
		history.ActionType,
		history.Comment,
		history.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.String("request_id", history.RequestID),
			zap.String("action", history.ActionType),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByRequestID retrieves all history records for a request, oldest first
func (r *HistoryRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.TransitionHistory, error) {
	query := `
		SELECT id, request_id, actor_id, actor_name, previous_status, new_status,
			previous_group, new_group, action_type, comment, timestamp
		FROM workflow_history
		WHERE request_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get history by request ID", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := make([]*entity.TransitionHistory, 0)
	for rows.Next() {
		var record entity.TransitionHistory
		err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.ActorID,
			&record.ActorName,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.PreviousGroup,
			&record.NewGroup,
			&record.ActionType,
			&record.Comment,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
