package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	"github.com/garyjia/credit-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// GroupRepository is the local directory of approving groups
type GroupRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *sql.DB, logger *zap.Logger) *GroupRepository {
	return &GroupRepository{
		db:     db,
		logger: logger,
	}
}

// ListGroups implements port.GroupDirectory
func (r *GroupRepository) ListGroups(ctx context.Context) ([]rule.Group, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, `SELECT id, name FROM approval_groups ORDER BY name ASC`)
	if err != nil {
		r.logger.Error("Failed to list groups", zap.Error(err))
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]rule.Group, 0)
	for rows.Next() {
		var g rule.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Upsert creates or renames a group
func (r *GroupRepository) Upsert(ctx context.Context, g rule.Group) error {
	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO approval_groups (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, g.ID, g.Name)
	if err != nil {
		r.logger.Error("Failed to upsert group", zap.String("group_id", g.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert group: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.GroupDirectory = (*GroupRepository)(nil)
