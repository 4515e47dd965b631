package port

import (
	"context"

	"github.com/garyjia/credit-approvals/internal/application/dispatcher"
	"github.com/garyjia/credit-approvals/internal/domain/event"
)

// EventSource delivers host platform notifications such as "record saved"
type EventSource interface {
	SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler)
	Unsubscribe(eventType event.Type, name string)
}

// EventPublisher publishes workflow events without waiting for subscribers
type EventPublisher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}
