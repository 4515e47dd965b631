package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/event"
	domainwf "github.com/garyjia/credit-approvals/internal/domain/workflow"
)

const engineSubscription = "workflow-engine"

type controllerEntry struct {
	ctrl       *Controller
	ready      chan struct{}
	err        error
	lastAccess time.Time
}

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	deps   Dependencies
	opts   Options
	logger Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	entries     map[string]*controllerEntry
	cacheExpiry time.Duration
	closed      bool
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithCacheExpiry sets how long an idle controller is kept
func WithCacheExpiry(expiry time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.cacheExpiry = expiry
	}
}

// WithOptions sets the controller delays
func WithOptions(opts Options) EngineOption {
	return func(e *engineImpl) {
		e.opts = opts
	}
}

// NewEngine creates a new workflow engine. When deps.Events is set the engine
// listens for save notifications of requests it has not attached yet.
func NewEngine(deps Dependencies, opts ...EngineOption) WorkflowEngine {
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &engineImpl{
		deps:        deps,
		opts:        DefaultOptions(),
		logger:      deps.Logger,
		ctx:         ctx,
		cancel:      cancel,
		entries:     make(map[string]*controllerEntry),
		cacheExpiry: 30 * time.Minute,
	}

	for _, opt := range opts {
		opt(e)
	}

	if deps.Events != nil {
		deps.Events.SubscribeNamed(event.TypeRecordSaved, engineSubscription, e.HandleEvent)
	}

	return e
}

func (e *engineImpl) Attach(ctx context.Context, requestID string) (*Controller, error) {
	if requestID == "" {
		return nil, fmt.Errorf("request ID cannot be empty")
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	e.evictIdleLocked()

	if ent, ok := e.entries[requestID]; ok {
		ent.lastAccess = time.Now()
		e.mu.Unlock()

		select {
		case <-ent.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if ent.err != nil {
			return nil, ent.err
		}
		return ent.ctrl, nil
	}

	ent := &controllerEntry{
		ctrl:       NewController(e.ctx, requestID, e.deps, e.opts),
		ready:      make(chan struct{}),
		lastAccess: time.Now(),
	}
	e.entries[requestID] = ent
	e.mu.Unlock()

	_, err := ent.ctrl.Load(ctx)
	if err != nil {
		ent.err = err
		ent.ctrl.Close()
		e.mu.Lock()
		if e.entries[requestID] == ent {
			delete(e.entries, requestID)
		}
		e.mu.Unlock()
	}
	close(ent.ready)

	if err != nil {
		e.logger.Error("Failed to attach request", "request_id", requestID, "error", err)
		return nil, err
	}
	return ent.ctrl, nil
}

// evictIdleLocked closes controllers idle past the cache expiry; e.mu must be held
func (e *engineImpl) evictIdleLocked() {
	now := time.Now()
	for id, ent := range e.entries {
		select {
		case <-ent.ready:
		default:
			continue
		}
		if now.Sub(ent.lastAccess) < e.cacheExpiry {
			continue
		}
		st := ent.ctrl.State()
		if st.IsProcessingAction || ent.ctrl.scheduler.Pending() > 0 {
			continue
		}
		delete(e.entries, id)
		ent.ctrl.unsubscribe()
		go ent.ctrl.Close()
	}
}

func (e *engineImpl) attached(requestID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.entries[requestID]
	return ok
}

func (e *engineImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("event cannot be nil")
	}

	switch evt.Type {
	case event.TypeRecordSaved:
		if evt.RequestID == "" {
			return fmt.Errorf("event %s has no request ID", evt.ID)
		}
		if e.attached(evt.RequestID) {
			if e.deps.Events != nil {
				// the controller's own subscription handles it
				return nil
			}
			ctrl, err := e.Attach(ctx, evt.RequestID)
			if err != nil {
				return err
			}
			ctrl.OnRecordSaved(ctx)
			return nil
		}
		_, err := e.Attach(ctx, evt.RequestID)
		return err

	case event.TypeStatusChanged, event.TypeStatusReverted, event.TypeRulesChanged:
		// results of transitions, nothing to drive
		return nil

	default:
		return fmt.Errorf("unknown event type: %s", evt.Type)
	}
}

func (e *engineImpl) Submit(ctx context.Context, requestID string) error {
	ctrl, err := e.Attach(ctx, requestID)
	if err != nil {
		return err
	}
	return ctrl.Submit(ctx)
}

func (e *engineImpl) Approve(ctx context.Context, requestID string, actor entity.Actor) error {
	ctrl, err := e.Attach(ctx, requestID)
	if err != nil {
		return err
	}
	return ctrl.Approve(ctx, actor)
}

func (e *engineImpl) Decline(ctx context.Context, requestID string, actor entity.Actor, reason string) error {
	ctrl, err := e.Attach(ctx, requestID)
	if err != nil {
		return err
	}
	return ctrl.Decline(ctx, actor, reason)
}

func (e *engineImpl) AssignNextLevel(ctx context.Context, requestID string, actor entity.Actor) error {
	ctrl, err := e.Attach(ctx, requestID)
	if err != nil {
		return err
	}
	return ctrl.AssignNextLevel(ctx, actor)
}

func (e *engineImpl) Preview(ctx context.Context, requestID string, actor entity.Actor) (*Preview, error) {
	ctrl, err := e.Attach(ctx, requestID)
	if err != nil {
		return nil, err
	}

	result, err := ctrl.Evaluate(ctx)
	if err != nil {
		return nil, err
	}

	return &Preview{
		State:      ctrl.State(),
		Evaluation: result,
		CanApprove: ctrl.CanApprove(actor),
		Notice:     ctrl.Notice(),
	}, nil
}

func (e *engineImpl) History(ctx context.Context, requestID string) ([]*entity.TransitionHistory, error) {
	history, err := e.deps.History.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return history, nil
}

func (e *engineImpl) Reconcile(ctx context.Context, limit int) (int, error) {
	states, err := e.deps.States.ListUnprocessed(ctx, domainwf.StatusSubmitForApproval, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unprocessed requests: %w", err)
	}

	checked := 0
	for _, st := range states {
		if ctx.Err() != nil {
			return checked, ctx.Err()
		}

		ctrl, err := e.Attach(ctx, st.RequestID)
		if err != nil {
			continue
		}
		if err := ctrl.Recheck(ctx); err != nil {
			if !errors.Is(err, ErrStatusTampered) {
				e.logger.Warn("Reconcile check failed", "request_id", st.RequestID, "error", err)
			}
			continue
		}
		checked++
	}

	if len(states) > 0 {
		e.logger.Info("Reconciled unprocessed requests", "found", len(states), "checked", checked)
	}
	return checked, nil
}

func (e *engineImpl) Detach(requestID string) {
	e.mu.Lock()
	ent, ok := e.entries[requestID]
	if ok {
		delete(e.entries, requestID)
	}
	e.mu.Unlock()

	if ok {
		<-ent.ready
		if ent.err == nil {
			ent.ctrl.Close()
		}
	}
}

func (e *engineImpl) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	entries := e.entries
	e.entries = make(map[string]*controllerEntry)
	e.mu.Unlock()

	if e.deps.Events != nil {
		e.deps.Events.Unsubscribe(event.TypeRecordSaved, engineSubscription)
	}

	e.cancel()
	for _, ent := range entries {
		<-ent.ready
		if ent.err == nil {
			ent.ctrl.Close()
		}
	}

	e.logger.Info("Workflow engine closed", "controllers", len(entries))
	return nil
}
