package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	"github.com/garyjia/credit-approvals/internal/domain/workflow"
	"github.com/garyjia/credit-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// TicketRepository is a local ticket store standing in for the host platform.
// It serves tickets to the workflow and applies the mutations it decides.
type TicketRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTicketRepository creates a new local ticket repository
func NewTicketRepository(db *sql.DB, logger *zap.Logger) *TicketRepository {
	return &TicketRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert creates or replaces a ticket
func (r *TicketRepository) Upsert(ctx context.Context, t *entity.Ticket) error {
	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode ticket fields: %w", err)
	}
	if t.Status == "" {
		t.Status = workflow.StatusPreSubmission
	}

	query := `
		INSERT INTO tickets (
			id, subject, status, group_id, requester_id, creator_id,
			form_name, scope_field, fields, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject = excluded.subject,
			status = excluded.status,
			group_id = excluded.group_id,
			requester_id = excluded.requester_id,
			creator_id = excluded.creator_id,
			form_name = excluded.form_name,
			scope_field = excluded.scope_field,
			fields = excluded.fields,
			updated_at = excluded.updated_at
	`

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		t.ID,
		t.Subject,
		string(t.Status),
		t.GroupID,
		t.RequesterID,
		t.CreatorID,
		t.FormName,
		t.ScopeField,
		string(fields),
		time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to upsert ticket", zap.String("ticket_id", t.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert ticket: %w", err)
	}
	return nil
}

// FetchTicket implements port.RecordProvider
func (r *TicketRepository) FetchTicket(ctx context.Context, requestID string) (*entity.Ticket, error) {
	query := `
		SELECT id, subject, status, group_id, requester_id, creator_id,
			assignee_id, form_name, scope_field, fields
		FROM tickets
		WHERE id = ?
	`

	var (
		t        entity.Ticket
		status   string
		assignee string
		fields   string
	)
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, requestID).Scan(
		&t.ID,
		&t.Subject,
		&status,
		&t.GroupID,
		&t.RequesterID,
		&t.CreatorID,
		&assignee,
		&t.FormName,
		&t.ScopeField,
		&fields,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", requestID, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to fetch ticket", zap.String("ticket_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch ticket: %w", err)
	}

	t.Status = workflow.ParseStatus(status)
	t.Fields = rule.Record{}
	if fields != "" {
		if err := json.Unmarshal([]byte(fields), &t.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode ticket fields: %w", err)
		}
	}
	t.Fields["status"] = string(t.Status)
	t.Fields["group_id"] = t.GroupID
	t.Fields["assignee_id"] = assignee

	return &t, nil
}

// UpdateStatus implements port.MutationSink. The update and its comment are written together.
func (r *TicketRepository) UpdateStatus(ctx context.Context, requestID string, m entity.Mutation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	set := "updated_at = ?"
	args := []interface{}{time.Now().UTC()}
	if m.Status != nil {
		set += ", status = ?"
		args = append(args, string(*m.Status))
	}
	if m.GroupID != nil {
		set += ", group_id = ?"
		args = append(args, *m.GroupID)
	}
	if m.AssigneeID != nil {
		set += ", assignee_id = ?"
		args = append(args, *m.AssigneeID)
	}
	args = append(args, requestID)

	result, err := tx.ExecContext(ctx, "UPDATE tickets SET "+set+" WHERE id = ?", args...)
	if err != nil {
		r.logger.Error("Failed to update ticket", zap.String("ticket_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if err := requireAffected(result, "ticket", requestID); err != nil {
		return err
	}

	if m.Comment != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ticket_comments (ticket_id, body, created_at) VALUES (?, ?, ?)`,
			requestID, m.Comment, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("failed to add ticket comment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ticket update: %w", err)
	}
	return nil
}

// Comments returns the comments posted on a ticket, oldest first
func (r *TicketRepository) Comments(ctx context.Context, requestID string) ([]string, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx,
		`SELECT body FROM ticket_comments WHERE ticket_id = ? ORDER BY id ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket comments: %w", err)
	}
	defer rows.Close()

	var comments []string
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan ticket comment: %w", err)
		}
		comments = append(comments, body)
	}
	return comments, rows.Err()
}

// Verify interface compliance
var (
	_ port.RecordProvider = (*TicketRepository)(nil)
	_ port.MutationSink   = (*TicketRepository)(nil)
)
