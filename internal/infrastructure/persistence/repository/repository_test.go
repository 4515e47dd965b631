package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	"github.com/garyjia/credit-approvals/internal/domain/workflow"
	"github.com/garyjia/credit-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/credit-approvals/migrations"
	"github.com/garyjia/credit-approvals/pkg/database"
)

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Run(context.Background(), migrations.FS))
	return db
}

func sampleRule(name string) *rule.Rule {
	return &rule.Rule{
		Name:          name,
		ScopeValue:    "Memo",
		Criterion1:    rule.Criterion{Field: "custom_field_amount", Operator: rule.OperatorGreaterThan, Value: "1000"},
		Criterion2:    rule.Criterion{Field: "custom_field_region", Operator: rule.OperatorEqualTo, Value: "EU"},
		ApprovalLevel: "2",
		GroupID:       "G2",
	}
}

func TestMigrations_AreIdempotent(t *testing.T) {
	db := setupDB(t)
	migrator := database.NewMigrator(db, zap.NewNop())

	require.NoError(t, migrator.Run(context.Background(), migrations.FS))

	applied, err := migrator.AppliedVersions(context.Background())
	require.NoError(t, err)
	assert.Len(t, applied, 3)
}

func TestRuleRepository_CRUD(t *testing.T) {
	db := setupDB(t)
	repo := NewRuleRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	first := sampleRule("High value EU")
	require.NoError(t, repo.Create(ctx, first))
	assert.NotEmpty(t, first.ID)

	second := sampleRule("Auto small")
	second.AutoApprove = true
	second.ApprovalLevel = ""
	second.GroupID = ""
	require.NoError(t, repo.Create(ctx, second))

	rules, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, first.ID, rules[0].ID)
	assert.Equal(t, rule.OperatorGreaterThan, rules[0].Criterion1.Operator)
	assert.Equal(t, "EU", rules[0].Criterion2.Value)
	assert.True(t, rules[1].AutoApprove)

	first.Name = "Renamed"
	first.ApprovalLevel = "3"
	require.NoError(t, repo.Update(ctx, first.ID, first))

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "3", got.ApprovalLevel)

	require.NoError(t, repo.Delete(ctx, first.ID))
	_, err = repo.Get(ctx, first.ID)
	assert.True(t, errors.Is(err, port.ErrNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, first.ID), port.ErrNotFound))
	assert.True(t, errors.Is(repo.Update(ctx, "missing", sampleRule("x")), port.ErrNotFound))
}

func TestWorkflowStateRepository(t *testing.T) {
	db := setupDB(t)
	repo := NewWorkflowStateRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	missing, err := repo.Get(ctx, "404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	st := workflow.NewState("1001")
	st.Observe(workflow.StatusSubmitForApproval, "")
	st.IsProcessingAction = true
	require.NoError(t, repo.Save(ctx, &st))

	other := workflow.NewState("1002")
	require.NoError(t, repo.Save(ctx, &other))

	unprocessed, err := repo.ListUnprocessed(ctx, workflow.StatusSubmitForApproval, 10)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, "1001", unprocessed[0].RequestID)
	assert.False(t, unprocessed[0].IsProcessingAction)

	st.Observe(workflow.StatusPendingApproval, "G1")
	st.AutoAssignProcessed = true
	require.NoError(t, repo.Save(ctx, &st))

	got, err := repo.Get(ctx, "1001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, workflow.StatusPendingApproval, got.CurrentStatus)
	assert.Equal(t, "G1", got.CurrentGroupID)
	assert.True(t, got.AutoAssignProcessed)
	assert.True(t, got.HasBeenSubmitted)

	// HasBeenSubmitted never goes back to false
	got.HasBeenSubmitted = false
	require.NoError(t, repo.Save(ctx, got))
	again, err := repo.Get(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, again.HasBeenSubmitted)

	unprocessed, err = repo.ListUnprocessed(ctx, workflow.StatusSubmitForApproval, 10)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
}

func TestHistoryRepository_WithinTransaction(t *testing.T) {
	db := setupDB(t)
	tx := sqlite.NewDB(db.DB, zap.NewNop())
	states := NewWorkflowStateRepository(db.DB, zap.NewNop())
	history := NewHistoryRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	st := workflow.NewState("1001")
	st.CurrentStatus = workflow.StatusDeclined
	boom := errors.New("boom")

	err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, states.Save(txCtx, &st))
		require.NoError(t, history.Create(txCtx, &entity.TransitionHistory{
			RequestID:      "1001",
			ActorID:        "alice",
			PreviousStatus: "pending_approval",
			NewStatus:      "declined",
			ActionType:     entity.ActionDecline,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := states.Get(ctx, "1001")
	require.NoError(t, err)
	assert.Nil(t, got, "state write should roll back")
	records, err := history.GetByRequestID(ctx, "1001")
	require.NoError(t, err)
	assert.Empty(t, records, "history write should roll back")

	err = tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := states.Save(txCtx, &st); err != nil {
			return err
		}
		return history.Create(txCtx, &entity.TransitionHistory{
			RequestID:      "1001",
			ActorID:        "alice",
			ActorName:      "Alice",
			PreviousStatus: "pending_approval",
			NewStatus:      "declined",
			PreviousGroup:  "G1",
			ActionType:     entity.ActionDecline,
			Comment:        "Request declined by Alice.",
		})
	})
	require.NoError(t, err)

	records, err = history.GetByRequestID(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Alice", records[0].ActorName)
	assert.Equal(t, "G1", records[0].PreviousGroup)
	assert.False(t, records[0].Timestamp.IsZero())
}

func TestNotificationRepository(t *testing.T) {
	db := setupDB(t)
	repo := NewNotificationRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	n := &entity.Notification{
		RequestID: "1001",
		EventID:   "evt-1",
		Channel:   "oc_chat",
		Message:   "Request 1001 approved",
	}
	require.NoError(t, repo.Create(ctx, n))
	assert.NotZero(t, n.ID)
	assert.Equal(t, entity.NotificationStatusPending, n.Status)

	failed := &entity.Notification{RequestID: "1001", EventID: "evt-2", Channel: "oc_chat", Message: "x"}
	require.NoError(t, repo.Create(ctx, failed))

	require.NoError(t, repo.MarkSent(ctx, n.ID))
	require.NoError(t, repo.MarkFailed(ctx, failed.ID, "chat not found"))
	assert.True(t, errors.Is(repo.MarkSent(ctx, 999), port.ErrNotFound))

	list, err := repo.GetByRequestID(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, entity.NotificationStatusSent, list[0].Status)
	assert.NotNil(t, list[0].SentAt)
	assert.Equal(t, entity.NotificationStatusFailed, list[1].Status)
	assert.Equal(t, "chat not found", list[1].ErrorMessage)

	// the same event is recorded once per channel
	dup := &entity.Notification{RequestID: "1001", EventID: "evt-1", Channel: "oc_chat", Message: "again"}
	assert.Error(t, repo.Create(ctx, dup))
}

func TestTicketRepository(t *testing.T) {
	db := setupDB(t)
	repo := NewTicketRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	_, err := repo.FetchTicket(ctx, "1001")
	assert.True(t, errors.Is(err, port.ErrNotFound))

	require.NoError(t, repo.Upsert(ctx, &entity.Ticket{
		ID:          "1001",
		Subject:     "Credit for order 77",
		RequesterID: "req-1",
		ScopeField:  "custom_field_type",
		Fields:      rule.Record{"custom_field_type": "Memo", "custom_field_amount": "1500"},
	}))

	ticket, err := repo.FetchTicket(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPreSubmission, ticket.Status)
	assert.Equal(t, "Memo", ticket.Fields["custom_field_type"])
	assert.Equal(t, "req-1", ticket.Owner())

	err = repo.UpdateStatus(ctx, "1001", entity.Mutation{
		Status:  entity.StatusPtr(workflow.StatusPendingApproval),
		GroupID: entity.StringPtr("G1"),
		Comment: "Ticket automatically assigned to Finance (Level 1) for approval.",
	})
	require.NoError(t, err)

	err = repo.UpdateStatus(ctx, "1001", entity.Mutation{
		Status:     entity.StatusPtr(workflow.StatusDeclined),
		GroupID:    entity.StringPtr(""),
		AssigneeID: entity.StringPtr("req-1"),
		Comment:    "Request declined by Alice.\n\nReason: wrong amount",
	})
	require.NoError(t, err)

	ticket, err = repo.FetchTicket(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDeclined, ticket.Status)
	assert.Empty(t, ticket.GroupID)
	assert.Equal(t, "req-1", ticket.Fields["assignee_id"])

	comments, err := repo.Comments(ctx, "1001")
	require.NoError(t, err)
	assert.Len(t, comments, 2)

	err = repo.UpdateStatus(ctx, "404", entity.Mutation{Comment: "x"})
	assert.True(t, errors.Is(err, port.ErrNotFound))
}

func TestGroupRepository(t *testing.T) {
	db := setupDB(t)
	repo := NewGroupRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, rule.Group{ID: "G2", Name: "Controllers"}))
	require.NoError(t, repo.Upsert(ctx, rule.Group{ID: "G1", Name: "Finance"}))
	require.NoError(t, repo.Upsert(ctx, rule.Group{ID: "G1", Name: "Finance Team"}))

	groups, err := repo.ListGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []rule.Group{{ID: "G2", Name: "Controllers"}, {ID: "G1", Name: "Finance Team"}}, groups)
}
