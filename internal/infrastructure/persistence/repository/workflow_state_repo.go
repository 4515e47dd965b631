package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/domain/workflow"
	"github.com/garyjia/credit-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// WorkflowStateRepository implements port.WorkflowStateRepository.
// IsProcessingAction is in-memory only and never stored.
type WorkflowStateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowStateRepository creates a new workflow state repository
func NewWorkflowStateRepository(db *sql.DB, logger *zap.Logger) port.WorkflowStateRepository {
	return &WorkflowStateRepository{
		db:     db,
		logger: logger,
	}
}

// Get returns the stored state, or nil when the request was never seen
func (r *WorkflowStateRepository) Get(ctx context.Context, requestID string) (*workflow.State, error) {
	query := `
		SELECT request_id, current_group_id, current_status,
			auto_assign_processed, has_been_submitted, updated_at
		FROM workflow_states
		WHERE request_id = ?
	`

	st, err := scanState(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow state", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow state: %w", err)
	}
	return st, nil
}

// Save upserts the durable fields of state
func (r *WorkflowStateRepository) Save(ctx context.Context, state *workflow.State) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	query := `
		INSERT INTO workflow_states (
			request_id, current_group_id, current_status,
			auto_assign_processed, has_been_submitted, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			current_group_id = excluded.current_group_id,
			current_status = excluded.current_status,
			auto_assign_processed = excluded.auto_assign_processed,
			has_been_submitted = MAX(workflow_states.has_been_submitted, excluded.has_been_submitted),
			updated_at = excluded.updated_at
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		state.RequestID,
		state.CurrentGroupID,
		string(state.CurrentStatus),
		state.AutoAssignProcessed,
		state.HasBeenSubmitted,
		state.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to save workflow state",
			zap.String("request_id", state.RequestID),
			zap.String("status", string(state.CurrentStatus)),
			zap.Error(err))
		return fmt.Errorf("failed to save workflow state: %w", err)
	}
	return nil
}

// ListUnprocessed returns requests in status whose auto assignment has not run
func (r *WorkflowStateRepository) ListUnprocessed(ctx context.Context, status workflow.Status, limit int) ([]*workflow.State, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT request_id, current_group_id, current_status,
			auto_assign_processed, has_been_submitted, updated_at
		FROM workflow_states
		WHERE current_status = ? AND auto_assign_processed = 0
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, string(status), limit)
	if err != nil {
		r.logger.Error("Failed to list unprocessed states", zap.String("status", string(status)), zap.Error(err))
		return nil, fmt.Errorf("failed to list unprocessed states: %w", err)
	}
	defer rows.Close()

	var states []*workflow.State
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow state: %w", err)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func scanState(s scanner) (*workflow.State, error) {
	var (
		st     workflow.State
		status string
	)
	err := s.Scan(
		&st.RequestID,
		&st.CurrentGroupID,
		&status,
		&st.AutoAssignProcessed,
		&st.HasBeenSubmitted,
		&st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.CurrentStatus = workflow.ParseStatus(status)
	return &st, nil
}

// Verify interface compliance
var _ port.WorkflowStateRepository = (*WorkflowStateRepository)(nil)
