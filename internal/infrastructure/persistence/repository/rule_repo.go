package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	"github.com/garyjia/credit-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ruleColumns = `
	id, name, scope_value,
	criterion1_field, criterion1_operator, criterion1_value,
	criterion2_field, criterion2_operator, criterion2_value,
	auto_approve, approval_level, group_id, created_at, updated_at`

// RuleRepository implements port.RuleStore
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) port.RuleStore {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// List returns all rules in creation order
func (r *RuleRepository) List(ctx context.Context) ([]rule.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM approval_rules ORDER BY created_at ASC, id ASC`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list rules", zap.Error(err))
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]rule.Rule, 0)
	for rows.Next() {
		rl, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rl)
	}

	return rules, rows.Err()
}

// Get retrieves a rule by ID
func (r *RuleRepository) Get(ctx context.Context, id string) (*rule.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM approval_rules WHERE id = ?`

	rl, err := scanRule(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get rule", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rl, nil
}

// Create inserts a rule, assigning an ID when it has none
func (r *RuleRepository) Create(ctx context.Context, rl *rule.Rule) error {
	if rl.ID == "" {
		rl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rl.CreatedAt = now
	rl.UpdatedAt = now

	query := `
		INSERT INTO approval_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		rl.ID,
		rl.Name,
		rl.ScopeValue,
		rl.Criterion1.Field,
		string(rl.Criterion1.Operator),
		rl.Criterion1.Value,
		rl.Criterion2.Field,
		string(rl.Criterion2.Operator),
		rl.Criterion2.Value,
		rl.AutoApprove,
		rl.ApprovalLevel,
		rl.GroupID,
		rl.CreatedAt,
		rl.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create rule", zap.String("name", rl.Name), zap.Error(err))
		return fmt.Errorf("failed to create rule: %w", err)
	}

	r.logger.Info("Rule created", zap.String("id", rl.ID), zap.String("name", rl.Name))
	return nil
}

// Update replaces the stored fields of rule id
func (r *RuleRepository) Update(ctx context.Context, id string, rl *rule.Rule) error {
	rl.ID = id
	rl.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE approval_rules SET
			name = ?, scope_value = ?,
			criterion1_field = ?, criterion1_operator = ?, criterion1_value = ?,
			criterion2_field = ?, criterion2_operator = ?, criterion2_value = ?,
			auto_approve = ?, approval_level = ?, group_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		rl.Name,
		rl.ScopeValue,
		rl.Criterion1.Field,
		string(rl.Criterion1.Operator),
		rl.Criterion1.Value,
		rl.Criterion2.Field,
		string(rl.Criterion2.Operator),
		rl.Criterion2.Value,
		rl.AutoApprove,
		rl.ApprovalLevel,
		rl.GroupID,
		rl.UpdatedAt,
		id,
	)
	if err != nil {
		r.logger.Error("Failed to update rule", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update rule: %w", err)
	}

	return requireAffected(result, "rule", id)
}

// Delete removes rule id
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `DELETE FROM approval_rules WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete rule", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireAffected(result, "rule", id)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(s scanner) (*rule.Rule, error) {
	var (
		rl       rule.Rule
		op1, op2 string
	)
	err := s.Scan(
		&rl.ID,
		&rl.Name,
		&rl.ScopeValue,
		&rl.Criterion1.Field,
		&op1,
		&rl.Criterion1.Value,
		&rl.Criterion2.Field,
		&op2,
		&rl.Criterion2.Value,
		&rl.AutoApprove,
		&rl.ApprovalLevel,
		&rl.GroupID,
		&rl.CreatedAt,
		&rl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rl.Criterion1.Operator = rule.Operator(op1)
	rl.Criterion2.Operator = rule.Operator(op2)
	return &rl, nil
}

func requireAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, port.ErrNotFound)
	}
	return nil
}

// Verify interface compliance
var _ port.RuleStore = (*RuleRepository)(nil)
