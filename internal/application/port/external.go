package port

import (
	"context"

	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
)

// RecordProvider reads the current state and field values of a ticket
type RecordProvider interface {
	FetchTicket(ctx context.Context, requestID string) (*entity.Ticket, error)
}

// GroupDirectory lists the approving groups
type GroupDirectory interface {
	ListGroups(ctx context.Context) ([]rule.Group, error)
}

// MutationSink applies side effects decided by the workflow to a ticket.
// Failures are returned, never retried.
type MutationSink interface {
	UpdateStatus(ctx context.Context, requestID string, m entity.Mutation) error
}

// Messenger posts a plain text message to a chat
type Messenger interface {
	SendText(ctx context.Context, chatID, text string) error
}
