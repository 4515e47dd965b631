package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/event"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	"github.com/garyjia/credit-approvals/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "approvals.db")
	cfg.Workflow.SaveSettleDelay = 5 * time.Millisecond
	cfg.Workflow.InitialCheckDelay = 5 * time.Millisecond
	cfg.Reconcile.Enabled = false
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Lark.Enabled = true
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	_, err = c.NewHTTPServer()
	assert.Error(t, err, "server needs a started container")

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()))

	health := c.Health(context.Background())
	assert.True(t, health.Components["database"].Healthy)
	assert.Equal(t, "local", health.Components["platform"].Message)

	srv, err := c.NewHTTPServer()
	require.NoError(t, err)
	assert.NotNil(t, srv.Router())

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
}

func TestContainer_SubmittedTicketIsRoutedAndApproved(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	repos := c.Repositories()

	require.NoError(t, repos.Groups.Upsert(ctx, rule.Group{ID: "G1", Name: "Finance"}))
	require.NoError(t, c.Services().Rules.Create(ctx, &rule.Rule{
		Name:          "Memo over 1000",
		ScopeValue:    "Memo",
		Criterion1:    rule.Criterion{Field: "custom_field_amount", Operator: rule.OperatorGreaterThan, Value: "1000"},
		Criterion2:    rule.Criterion{Field: "custom_field_type", Operator: rule.OperatorIsNotEmpty},
		ApprovalLevel: "1",
		GroupID:       "G1",
	}))
	require.NoError(t, repos.Tickets.Upsert(ctx, &entity.Ticket{
		ID:          "1001",
		Subject:     "Credit for order 77",
		Status:      workflow.StatusSubmitForApproval,
		RequesterID: "req-1",
		ScopeField:  "custom_field_type",
		Fields:      rule.Record{"custom_field_type": "Memo", "custom_field_amount": "$1,500.00"},
	}))

	c.Dispatcher().DispatchAsync(ctx, event.NewEvent(event.TypeRecordSaved, "1001", nil))

	require.Eventually(t, func() bool {
		ticket, err := repos.Tickets.FetchTicket(ctx, "1001")
		return err == nil && ticket.Status == workflow.StatusPendingApproval && ticket.GroupID == "G1"
	}, 2*time.Second, 10*time.Millisecond)

	engine := c.WorkflowEngine()
	require.Eventually(t, func() bool {
		ctrl, err := engine.Attach(ctx, "1001")
		return err == nil && !ctrl.State().IsProcessingAction
	}, time.Second, 10*time.Millisecond)

	actor := entity.Actor{ID: "u-1", Name: "Alice", GroupIDs: []string{"G1"}}
	require.NoError(t, engine.Approve(ctx, "1001", actor))

	ticket, err := repos.Tickets.FetchTicket(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, ticket.Status)

	history, err := engine.History(ctx, "1001")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(history), 2)
}
