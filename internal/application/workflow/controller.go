package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/event"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	domainwf "github.com/garyjia/credit-approvals/internal/domain/workflow"
	"github.com/google/uuid"
)

// Dependencies are the collaborators a Controller works through
type Dependencies struct {
	Rules   port.RuleStore
	Records port.RecordProvider
	Groups  port.GroupDirectory
	Sink    port.MutationSink

	States  port.WorkflowStateRepository
	History port.HistoryRepository
	Tx      port.TransactionManager

	// Events and Publisher are optional
	Events    port.EventSource
	Publisher port.EventPublisher

	Logger Logger
}

// Options tune the delayed checks of a Controller
type Options struct {
	// SaveSettleDelay is how long to wait after a save notification before re-reading the ticket
	SaveSettleDelay time.Duration
	// InitialCheckDelay is how long to wait before routing a ticket found in Submit for Approval on load
	InitialCheckDelay time.Duration
}

// DefaultOptions returns the delays used by the host platform integration
func DefaultOptions() Options {
	return Options{
		SaveSettleDelay:   1 * time.Second,
		InitialCheckDelay: 2 * time.Second,
	}
}

// Controller drives the approval workflow of a single request.
// It owns the request's State; every mutation of the ticket goes through it.
type Controller struct {
	requestID string
	deps      Dependencies
	opts      Options
	logger    Logger
	scheduler *Scheduler

	mu         sync.Mutex
	state      domainwf.State
	evaluation rule.EvaluationResult
	notice     string
	subscribed string
}

// NewController creates a controller for requestID. Call Load before using it.
func NewController(parent context.Context, requestID string, deps Dependencies, opts Options) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Controller{
		requestID: requestID,
		deps:      deps,
		opts:      opts,
		logger:    logger,
		scheduler: NewScheduler(parent, logger),
		state:     domainwf.NewState(requestID),
	}
}

// RequestID returns the request this controller drives
func (c *Controller) RequestID() string {
	return c.requestID
}

// State returns a copy of the current workflow state
func (c *Controller) State() domainwf.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Evaluation returns the most recent evaluation result
func (c *Controller) Evaluation() rule.EvaluationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluation
}

// Notice returns the last user-facing message produced by a reverted status change
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// CanApprove reports whether actor may approve or decline right now
func (c *Controller) CanApprove(actor entity.Actor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CurrentStatus == domainwf.StatusPendingApproval && actor.MemberOf(c.state.CurrentGroupID)
}

// Load reads the durable state and the ticket, evaluates the rules and subscribes
// to save notifications. A ticket already in Submit for Approval gets a delayed
// routing check.
func (c *Controller) Load(ctx context.Context) (*Task, error) {
	stored, err := c.deps.States.Get(ctx, c.requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow state: %w", err)
	}

	ticket, err := c.deps.Records.FetchTicket(ctx, c.requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticket %s: %w", c.requestID, err)
	}

	c.mu.Lock()
	if stored != nil {
		c.state = *stored
		c.state.IsProcessingAction = false
	}
	before := c.state
	tampered := stored != nil && !externalMoveAllowed(before, ticket.Status)
	if !tampered {
		c.state.Observe(ticket.Status, ticket.GroupID)
	}
	snapshot := c.state
	c.mu.Unlock()

	// edits made while no controller was attached get the same guard as live saves
	if tampered {
		if _, err := c.restore(ctx, before, ticket.Status); err != nil {
			return nil, err
		}
	}

	if err := c.deps.States.Save(ctx, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to save workflow state: %w", err)
	}

	c.evaluate(ctx, ticket)
	c.subscribe()

	c.logger.Info("Request loaded",
		"request_id", c.requestID,
		"status", snapshot.CurrentStatus,
		"group_id", snapshot.CurrentGroupID,
		"auto_assign_processed", snapshot.AutoAssignProcessed,
	)

	if snapshot.CurrentStatus == domainwf.StatusSubmitForApproval && !snapshot.AutoAssignProcessed {
		return c.scheduler.Schedule("initial-check", c.opts.InitialCheckDelay, c.checkTicket), nil
	}
	return nil, nil
}

func (c *Controller) subscribe() {
	if c.deps.Events == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribed != "" {
		return
	}

	// unique per instance so a replaced controller cannot remove its successor's handler
	c.subscribed = "workflow-controller:" + c.requestID + ":" + uuid.NewString()
	c.deps.Events.SubscribeNamed(event.TypeRecordSaved, c.subscribed, func(ctx context.Context, evt *event.Event) error {
		if evt.RequestID != c.requestID {
			return nil
		}
		c.OnRecordSaved(ctx)
		return nil
	})
}

// OnRecordSaved handles a save notification for the request. Leaving Declined
// re-arms routing; the ticket is re-read after the settle delay.
func (c *Controller) OnRecordSaved(ctx context.Context) *Task {
	c.mu.Lock()
	if c.state.CurrentStatus == domainwf.StatusDeclined {
		c.state.AutoAssignProcessed = false
	}
	c.mu.Unlock()

	return c.scheduler.Schedule("save-check", c.opts.SaveSettleDelay, c.checkTicket)
}

// checkTicket re-reads the ticket, reverts unsanctioned status edits and routes
// the request when it sits in Submit for Approval unprocessed.
func (c *Controller) checkTicket(ctx context.Context) error {
	if err := c.begin(); err != nil {
		c.logger.Info("Skipping ticket check, action in flight", "request_id", c.requestID)
		return nil
	}
	defer c.end()

	ticket, err := c.deps.Records.FetchTicket(ctx, c.requestID)
	if err != nil {
		return fmt.Errorf("failed to fetch ticket %s: %w", c.requestID, err)
	}

	c.mu.Lock()
	before := c.state
	c.mu.Unlock()

	if !externalMoveAllowed(before, ticket.Status) {
		return c.revert(ctx, before, ticket.Status)
	}

	c.mu.Lock()
	c.state.Observe(ticket.Status, ticket.GroupID)
	after := c.state
	c.mu.Unlock()

	if after.CurrentStatus != before.CurrentStatus {
		action := entity.ActionObserveSubmit
		if before.CurrentStatus == domainwf.StatusDeclined {
			action = entity.ActionResubmit
		}
		if err := c.commit(ctx, before, after, action, nil, ""); err != nil {
			return err
		}
	} else if after != before {
		if err := c.deps.States.Save(ctx, &after); err != nil {
			c.logger.Warn("Failed to save observed state", "request_id", c.requestID, "error", err)
		}
	}

	if after.CurrentStatus != domainwf.StatusSubmitForApproval {
		return nil
	}
	if after.AutoAssignProcessed {
		c.logger.Info("Auto assignment already processed", "request_id", c.requestID)
		return nil
	}
	return c.route(ctx, ticket)
}

func (c *Controller) revert(ctx context.Context, before domainwf.State, observed domainwf.Status) error {
	msg, err := c.restore(ctx, before, observed)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrStatusTampered, msg)
}

// restore writes the tracked status back over an unsanctioned edit and returns
// the notice shown to the agent
func (c *Controller) restore(ctx context.Context, before domainwf.State, observed domainwf.Status) (string, error) {
	msg := revertedComment(before, before.CurrentStatus)

	c.logger.Warn("Reverting out-of-band status change",
		"request_id", c.requestID,
		"from", before.CurrentStatus,
		"to", observed,
	)

	if err := c.deps.Sink.UpdateStatus(ctx, c.requestID, entity.Mutation{
		Status:  entity.StatusPtr(before.CurrentStatus),
		Comment: msg,
	}); err != nil {
		return "", fmt.Errorf("%w: failed to restore %s: %w", ErrStatusTampered, before.CurrentStatus, err)
	}

	c.mu.Lock()
	c.notice = msg
	c.mu.Unlock()

	c.recordHistory(ctx, &entity.TransitionHistory{
		RequestID:      c.requestID,
		ActorID:        entity.SystemActorID,
		PreviousStatus: observed.String(),
		NewStatus:      before.CurrentStatus.String(),
		PreviousGroup:  before.CurrentGroupID,
		NewGroup:       before.CurrentGroupID,
		ActionType:     entity.ActionRevert,
		Comment:        msg,
		Timestamp:      time.Now(),
	})
	c.publish(ctx, event.TypeStatusReverted, map[string]interface{}{
		event.KeyPreviousStatus: observed.String(),
		event.KeyNewStatus:      before.CurrentStatus.String(),
		event.KeyComment:        msg,
	})

	return msg, nil
}

// Submit routes the request according to the rules. It does nothing when the
// request was already routed for this submission.
func (c *Controller) Submit(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	c.mu.Lock()
	processed := c.state.AutoAssignProcessed
	c.mu.Unlock()
	if processed {
		c.logger.Info("Auto assignment already processed", "request_id", c.requestID)
		return nil
	}

	ticket, err := c.deps.Records.FetchTicket(ctx, c.requestID)
	if err != nil {
		return fmt.Errorf("failed to fetch ticket %s: %w", c.requestID, err)
	}
	return c.route(ctx, ticket)
}

// route must run inside begin/end
func (c *Controller) route(ctx context.Context, ticket *entity.Ticket) error {
	result := c.evaluate(ctx, ticket)

	c.mu.Lock()
	before := c.state
	c.mu.Unlock()

	var (
		trigger  domainwf.Trigger
		mutation entity.Mutation
		action   string
		level    rule.ApprovalLevel
	)

	switch {
	case result.IsAutoApproved:
		trigger = domainwf.TriggerAutoApprove
		action = entity.ActionAutoApprove
		mutation = entity.Mutation{
			Status:  entity.StatusPtr(domainwf.StatusApproved),
			Comment: autoApprovedComment,
		}
	case result.RequiresApproval:
		level, _ = result.First()
		trigger = domainwf.TriggerRoute
		action = entity.ActionRoute
		mutation = entity.Mutation{
			Status:  entity.StatusPtr(domainwf.StatusPendingApproval),
			GroupID: entity.StringPtr(level.GroupID),
			Comment: routedComment(level),
		}
	default:
		c.logger.Info("No approval required, no rules triggered", "request_id", c.requestID)
		return nil
	}

	return c.apply(ctx, before, change{
		trigger:       trigger,
		mutation:      mutation,
		action:        action,
		markProcessed: true,
		payload:       levelPayload(level),
	})
}

// Approve approves the current level on behalf of actor. The last level
// approves the request; any other level hands it to the next group.
func (c *Controller) Approve(ctx context.Context, actor entity.Actor) error {
	if err := c.authorize(actor); err != nil {
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	ticket, err := c.refresh(ctx, actor)
	if err != nil {
		return err
	}
	result := c.evaluate(ctx, ticket)

	c.mu.Lock()
	before := c.state
	c.mu.Unlock()

	idx := result.LevelIndex(before.CurrentGroupID)
	if idx < 0 {
		c.logger.Warn("Approver group not found in approval levels",
			"request_id", c.requestID,
			"group_id", before.CurrentGroupID,
		)
		return ErrLevelNotFound
	}

	var (
		trigger  domainwf.Trigger
		mutation entity.Mutation
		action   string
		level    rule.ApprovalLevel
	)
	if result.IsLast(idx) {
		trigger = domainwf.TriggerFinalApprove
		action = entity.ActionFinalApprove
		level = result.ApprovalLevels[idx]
		mutation = entity.Mutation{
			Status:  entity.StatusPtr(domainwf.StatusApproved),
			Comment: finalApprovalComment(actor.Name),
		}
	} else {
		level, _ = result.Next(idx)
		trigger = domainwf.TriggerAdvance
		action = entity.ActionApprove
		mutation = entity.Mutation{
			Status:  entity.StatusPtr(domainwf.StatusPendingApproval),
			GroupID: entity.StringPtr(level.GroupID),
			Comment: advancedComment(actor.Name, level),
		}
	}

	return c.apply(ctx, before, change{
		trigger:  trigger,
		mutation: mutation,
		action:   action,
		actor:    &actor,
		payload:  levelPayload(level),
	})
}

// AssignNextLevel hands the request to the next approval group without approving
func (c *Controller) AssignNextLevel(ctx context.Context, actor entity.Actor) error {
	if err := c.authorize(actor); err != nil {
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	ticket, err := c.refresh(ctx, actor)
	if err != nil {
		return err
	}
	result := c.evaluate(ctx, ticket)

	c.mu.Lock()
	before := c.state
	c.mu.Unlock()

	next, ok := result.Next(result.LevelIndex(before.CurrentGroupID))
	if !ok {
		return ErrLevelNotFound
	}

	mutation := entity.Mutation{
		GroupID: entity.StringPtr(next.GroupID),
		Comment: reassignedComment(next),
	}
	return c.apply(ctx, before, change{
		trigger:  domainwf.TriggerReassignLevel,
		mutation: mutation,
		action:   entity.ActionReassign,
		actor:    &actor,
		payload:  levelPayload(next),
	})
}

// Decline declines the request and hands it back to its creator, or the
// requester when the creator is unknown.
func (c *Controller) Decline(ctx context.Context, actor entity.Actor, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	if err := c.authorize(actor); err != nil {
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	ticket, err := c.refresh(ctx, actor)
	if err != nil {
		return err
	}

	c.mu.Lock()
	before := c.state
	c.mu.Unlock()

	mutation := entity.Mutation{
		Status:  entity.StatusPtr(domainwf.StatusDeclined),
		GroupID: entity.StringPtr(""),
		Comment: declinedComment(actor.Name, reason),
	}
	if owner := ticket.Owner(); owner != "" {
		mutation.AssigneeID = entity.StringPtr(owner)
	}

	return c.apply(ctx, before, change{
		trigger:  domainwf.TriggerDecline,
		mutation: mutation,
		action:   entity.ActionDecline,
		actor:    &actor,
	})
}

// change is one controller-initiated transition
type change struct {
	trigger  domainwf.Trigger
	mutation entity.Mutation
	action   string
	actor    *entity.Actor
	payload  []interface{}
	// markProcessed records that auto routing ran for this submission
	markProcessed bool
}

// apply validates the trigger against the state machine, issues the mutation
// and records the outcome. It must run inside begin/end.
func (c *Controller) apply(ctx context.Context, before domainwf.State, ch change) error {
	machine := BuildApprovalStateMachine(&before)
	if err := machine.Fire(ctx, ch.trigger); err != nil {
		return fmt.Errorf("cannot %s request %s: %w", ch.trigger, c.requestID, err)
	}

	if err := c.deps.Sink.UpdateStatus(ctx, c.requestID, ch.mutation); err != nil {
		c.logger.Error("Failed to update ticket",
			"request_id", c.requestID,
			"trigger", ch.trigger,
			"error", err,
		)
		return fmt.Errorf("failed to apply %s: %w", ch.trigger, err)
	}

	c.mu.Lock()
	c.state.CurrentStatus = machine.Status()
	if ch.mutation.GroupID != nil {
		c.state.CurrentGroupID = *ch.mutation.GroupID
	}
	if ch.markProcessed {
		c.state.AutoAssignProcessed = true
	}
	after := c.state
	c.mu.Unlock()

	c.logger.Info("Transition applied",
		"request_id", c.requestID,
		"trigger", ch.trigger,
		"from", before.CurrentStatus,
		"to", after.CurrentStatus,
		"group_id", after.CurrentGroupID,
	)

	return c.commit(ctx, before, after, ch.action, ch.actor, ch.mutation.Comment, ch.payload...)
}

// authorize rejects actors outside the assigned group before any work is done
func (c *Controller) authorize(actor entity.Actor) error {
	c.mu.Lock()
	groupID := c.state.CurrentGroupID
	c.mu.Unlock()

	if !actor.MemberOf(groupID) {
		c.logger.Warn("Rejected action from non-member",
			"request_id", c.requestID,
			"actor_id", actor.ID,
			"group_id", groupID,
		)
		return ErrNotAuthorized
	}
	return nil
}

// refresh re-reads the ticket and re-checks membership if the group moved
func (c *Controller) refresh(ctx context.Context, actor entity.Actor) (*entity.Ticket, error) {
	ticket, err := c.deps.Records.FetchTicket(ctx, c.requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticket %s: %w", c.requestID, err)
	}

	c.mu.Lock()
	moved := ticket.GroupID != c.state.CurrentGroupID
	if moved {
		c.state.CurrentGroupID = ticket.GroupID
	}
	c.mu.Unlock()

	if moved && !actor.MemberOf(ticket.GroupID) {
		return nil, ErrNotAuthorized
	}
	return ticket, nil
}

// evaluate runs the rule engine. Rule and group fetch failures degrade to empty lists.
func (c *Controller) evaluate(ctx context.Context, ticket *entity.Ticket) rule.EvaluationResult {
	rules, err := c.deps.Rules.List(ctx)
	if err != nil {
		c.logger.Warn("Failed to fetch rules, evaluating without rules", "request_id", c.requestID, "error", err)
		rules = nil
	}

	groups, err := c.deps.Groups.ListGroups(ctx)
	if err != nil {
		c.logger.Warn("Failed to fetch groups, evaluating without groups", "request_id", c.requestID, "error", err)
		groups = nil
	}

	result := rule.Evaluate(ticket.Fields.Clone(), rules, groups, ticket.ScopeField)

	c.mu.Lock()
	c.evaluation = result
	c.mu.Unlock()

	return result
}

// Evaluate re-reads the ticket and returns a fresh evaluation without acting on it
func (c *Controller) Evaluate(ctx context.Context) (rule.EvaluationResult, error) {
	ticket, err := c.deps.Records.FetchTicket(ctx, c.requestID)
	if err != nil {
		return rule.EvaluationResult{}, fmt.Errorf("failed to fetch ticket %s: %w", c.requestID, err)
	}
	return c.evaluate(ctx, ticket), nil
}

// commit persists the new state with a history entry and publishes the change
func (c *Controller) commit(ctx context.Context, before, after domainwf.State, action string, actor *entity.Actor, comment string, payload ...interface{}) error {
	history := &entity.TransitionHistory{
		RequestID:      c.requestID,
		ActorID:        entity.SystemActorID,
		PreviousStatus: before.CurrentStatus.String(),
		NewStatus:      after.CurrentStatus.String(),
		PreviousGroup:  before.CurrentGroupID,
		NewGroup:       after.CurrentGroupID,
		ActionType:     action,
		Comment:        comment,
		Timestamp:      time.Now(),
	}
	if actor != nil {
		history.ActorID = actor.ID
		history.ActorName = actor.Name
	}

	after.UpdatedAt = history.Timestamp
	err := c.deps.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := c.deps.States.Save(txCtx, &after); err != nil {
			return fmt.Errorf("failed to save workflow state: %w", err)
		}
		if err := c.deps.History.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}
		return nil
	})
	if err != nil {
		c.logger.Error("Failed to persist transition", "request_id", c.requestID, "action", action, "error", err)
		return err
	}

	data := map[string]interface{}{
		event.KeyPreviousStatus: before.CurrentStatus.String(),
		event.KeyNewStatus:      after.CurrentStatus.String(),
		event.KeyGroupID:        after.CurrentGroupID,
		event.KeyAction:         action,
		event.KeyActorID:        history.ActorID,
		event.KeyActorName:      history.ActorName,
		event.KeyComment:        comment,
	}
	for i := 0; i+1 < len(payload); i += 2 {
		if key, ok := payload[i].(string); ok {
			data[key] = payload[i+1]
		}
	}
	c.publish(ctx, event.TypeStatusChanged, data)
	return nil
}

func (c *Controller) recordHistory(ctx context.Context, h *entity.TransitionHistory) {
	if err := c.deps.History.Create(ctx, h); err != nil {
		c.logger.Warn("Failed to record history", "request_id", c.requestID, "action", h.ActionType, "error", err)
	}
}

func (c *Controller) publish(ctx context.Context, t event.Type, payload map[string]interface{}) {
	if c.deps.Publisher == nil {
		return
	}
	c.deps.Publisher.DispatchAsync(ctx, event.NewEvent(t, c.requestID, payload))
}

// begin marks an action as in flight; end must be deferred by the caller
func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsProcessingAction {
		return ErrActionInFlight
	}
	c.state.IsProcessingAction = true
	return nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.state.IsProcessingAction = false
	c.mu.Unlock()
}

// Close cancels pending checks and stops listening for save notifications
func (c *Controller) Close() {
	c.unsubscribe()
	c.scheduler.Stop()
}

func (c *Controller) unsubscribe() {
	c.mu.Lock()
	name := c.subscribed
	c.subscribed = ""
	c.mu.Unlock()

	if name != "" && c.deps.Events != nil {
		c.deps.Events.Unsubscribe(event.TypeRecordSaved, name)
	}
}

func levelPayload(lvl rule.ApprovalLevel) []interface{} {
	if lvl.Level == 0 && lvl.GroupID == "" {
		return nil
	}
	return []interface{}{event.KeyLevel, lvl.Level, event.KeyGroupName, lvl.GroupName}
}

// IsUserError reports whether err is a rejection the caller should show as-is
func IsUserError(err error) bool {
	return errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrLevelNotFound) ||
		errors.Is(err, ErrActionInFlight) ||
		errors.Is(err, ErrStatusTampered)
}

// Recheck re-reads the ticket immediately, as a save notification would after its delay
func (c *Controller) Recheck(ctx context.Context) error {
	return c.checkTicket(ctx)
}
