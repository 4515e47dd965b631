package port

import (
	"context"
	"errors"

	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	"github.com/garyjia/credit-approvals/internal/domain/workflow"
)

// ErrNotFound is returned by stores when a record does not exist
var ErrNotFound = errors.New("not found")

// RuleStore persists approval rules. The workflow core only calls List.
type RuleStore interface {
	List(ctx context.Context) ([]rule.Rule, error)
	Get(ctx context.Context, id string) (*rule.Rule, error)
	Create(ctx context.Context, r *rule.Rule) error
	Update(ctx context.Context, id string, r *rule.Rule) error
	Delete(ctx context.Context, id string) error
}

// WorkflowStateRepository persists the durable part of a request's workflow state
type WorkflowStateRepository interface {
	// Get returns nil, nil when the request has never been seen
	Get(ctx context.Context, requestID string) (*workflow.State, error)
	Save(ctx context.Context, state *workflow.State) error
	// ListUnprocessed returns requests in status that have not been auto-assigned yet
	ListUnprocessed(ctx context.Context, status workflow.Status, limit int) ([]*workflow.State, error)
}

// HistoryRepository records applied transitions
type HistoryRepository interface {
	Create(ctx context.Context, h *entity.TransitionHistory) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.TransitionHistory, error)
}

// NotificationRepository records chat notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.Notification, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
