package workflow

import (
	"context"

	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/event"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	domainwf "github.com/garyjia/credit-approvals/internal/domain/workflow"
)

// Preview is what an agent sees when opening a request
type Preview struct {
	State      domainwf.State        `json:"state"`
	Evaluation rule.EvaluationResult `json:"evaluation"`
	CanApprove bool                  `json:"can_approve"`
	Notice     string                `json:"notice,omitempty"`
}

// WorkflowEngine keeps one Controller per request and routes actions to it
type WorkflowEngine interface {
	// Attach returns the controller for a request, loading it on first use
	Attach(ctx context.Context, requestID string) (*Controller, error)

	// HandleEvent processes a host platform event
	HandleEvent(ctx context.Context, evt *event.Event) error

	Submit(ctx context.Context, requestID string) error
	Approve(ctx context.Context, requestID string, actor entity.Actor) error
	Decline(ctx context.Context, requestID string, actor entity.Actor, reason string) error
	AssignNextLevel(ctx context.Context, requestID string, actor entity.Actor) error

	// Preview re-evaluates the request for actor without acting on it
	Preview(ctx context.Context, requestID string, actor entity.Actor) (*Preview, error)

	// History returns the applied transitions of a request
	History(ctx context.Context, requestID string) ([]*entity.TransitionHistory, error)

	// Reconcile routes requests left in Submit for Approval without auto assignment
	Reconcile(ctx context.Context, limit int) (int, error)

	// Detach closes and forgets the controller of a request
	Detach(requestID string)

	Close() error
}
