package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/credit-approvals/internal/application/dispatcher"
	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	domainwf "github.com/garyjia/credit-approvals/internal/domain/workflow"
)

// fakePlatform plays the host ticketing system: it serves the ticket and the
// groups and applies mutations to the ticket it serves.
type fakePlatform struct {
	mu        sync.Mutex
	ticket    entity.Ticket
	groups    []rule.Group
	mutations []entity.Mutation

	fetchErr  error
	groupsErr error
	updateErr error
	// block, when set, is waited on inside UpdateStatus
	block chan struct{}
	// entered is signalled when UpdateStatus starts
	entered chan struct{}
}

func newFakePlatform(status domainwf.Status) *fakePlatform {
	return &fakePlatform{
		ticket: entity.Ticket{
			ID:          "1001",
			Status:      status,
			RequesterID: "requester-1",
			CreatorID:   "creator-1",
			Fields:      rule.Record{"custom_field_type": "Memo", "custom_field_amount": "$1,500.00"},
			ScopeField:  "custom_field_type",
		},
		groups: []rule.Group{
			{ID: "G1", Name: "Finance"},
			{ID: "G2", Name: "Controllers"},
			{ID: "G3", Name: "CFO Office"},
		},
	}
}

func (p *fakePlatform) FetchTicket(ctx context.Context, requestID string) (*entity.Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	t := p.ticket
	t.ID = requestID
	t.Fields = p.ticket.Fields.Clone()
	return &t, nil
}

func (p *fakePlatform) ListGroups(ctx context.Context) ([]rule.Group, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.groupsErr != nil {
		return nil, p.groupsErr
	}
	return append([]rule.Group(nil), p.groups...), nil
}

func (p *fakePlatform) UpdateStatus(ctx context.Context, requestID string, m entity.Mutation) error {
	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.block != nil {
		<-p.block
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return p.updateErr
	}
	p.mutations = append(p.mutations, m)
	if m.Status != nil {
		p.ticket.Status = *m.Status
	}
	if m.GroupID != nil {
		p.ticket.GroupID = *m.GroupID
	}
	if m.AssigneeID != nil {
		p.ticket.Fields["assignee_id"] = *m.AssigneeID
	}
	return nil
}

// edit simulates an agent changing the ticket directly on the platform
func (p *fakePlatform) edit(status domainwf.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticket.Status = status
}

func (p *fakePlatform) Mutations() []entity.Mutation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.Mutation(nil), p.mutations...)
}

func (p *fakePlatform) Current() entity.Ticket {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticket
}

type fakeRuleStore struct {
	mu      sync.Mutex
	rules   []rule.Rule
	listErr error
}

func (s *fakeRuleStore) List(ctx context.Context) ([]rule.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]rule.Rule(nil), s.rules...), nil
}

func (s *fakeRuleStore) Get(ctx context.Context, id string) (*rule.Rule, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeRuleStore) Create(ctx context.Context, r *rule.Rule) error { return nil }

func (s *fakeRuleStore) Update(ctx context.Context, id string, r *rule.Rule) error { return nil }

func (s *fakeRuleStore) Delete(ctx context.Context, id string) error { return nil }

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]domainwf.State
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]domainwf.State)}
}

func (r *fakeStateRepo) Get(ctx context.Context, requestID string) (*domainwf.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[requestID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r *fakeStateRepo) Save(ctx context.Context, state *domainwf.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := *state
	st.IsProcessingAction = false
	r.states[state.RequestID] = st
	return nil
}

func (r *fakeStateRepo) ListUnprocessed(ctx context.Context, status domainwf.Status, limit int) ([]*domainwf.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domainwf.State
	for _, st := range r.states {
		if st.CurrentStatus == status && !st.AutoAssignProcessed {
			st := st
			out = append(out, &st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*entity.TransitionHistory
}

func (r *fakeHistoryRepo) Create(ctx context.Context, h *entity.TransitionHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, h)
	return nil
}

func (r *fakeHistoryRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.TransitionHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TransitionHistory
	for _, h := range r.entries {
		if h.RequestID == requestID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, h := range r.entries {
		out[i] = h.ActionType
	}
	return out
}

type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type harness struct {
	platform   *fakePlatform
	rules      *fakeRuleStore
	states     *fakeStateRepo
	history    *fakeHistoryRepo
	dispatcher dispatcher.Dispatcher
	deps       Dependencies
	opts       Options
}

func newHarness(t *testing.T, status domainwf.Status, rules ...rule.Rule) *harness {
	t.Helper()

	h := &harness{
		platform:   newFakePlatform(status),
		rules:      &fakeRuleStore{rules: rules},
		states:     newFakeStateRepo(),
		history:    &fakeHistoryRepo{},
		dispatcher: dispatcher.NewDispatcher(),
		opts:       Options{SaveSettleDelay: 5 * time.Millisecond, InitialCheckDelay: 5 * time.Millisecond},
	}
	h.deps = Dependencies{
		Rules:     h.rules,
		Records:   h.platform,
		Groups:    h.platform,
		Sink:      h.platform,
		States:    h.states,
		History:   h.history,
		Tx:        fakeTx{},
		Events:    h.dispatcher,
		Publisher: h.dispatcher,
	}
	t.Cleanup(func() { _ = h.dispatcher.Close() })
	return h
}

// controller creates and loads a controller, waiting for any initial check
func (h *harness) controller(t *testing.T) *Controller {
	t.Helper()
	c := NewController(context.Background(), "1001", h.deps, h.opts)
	task, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if task != nil {
		waitTask(t, task)
	}
	t.Cleanup(c.Close)
	return c
}

func waitTask(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	select {
	case <-task.Done():
		return task.Err()
	case <-ctx.Done():
		t.Fatalf("task %s did not finish", task.Name())
		return nil
	}
}

func always(field string) rule.Criterion {
	return rule.Criterion{Field: field, Operator: rule.OperatorIsNotEmpty}
}

func routingRule(id, level, groupID string) rule.Rule {
	return rule.Rule{
		ID:            id,
		Name:          id,
		ScopeValue:    "Memo",
		Criterion1:    rule.Criterion{Field: "custom_field_amount", Operator: rule.OperatorGreaterThan, Value: "1000"},
		Criterion2:    always("custom_field_amount"),
		ApprovalLevel: level,
		GroupID:       groupID,
	}
}

func autoRule(id string) rule.Rule {
	return rule.Rule{
		ID:          id,
		Name:        id,
		ScopeValue:  "Memo",
		Criterion1:  rule.Criterion{Field: "custom_field_amount", Operator: rule.OperatorGreaterThan, Value: "1000"},
		Criterion2:  rule.Criterion{Field: "custom_field_amount", Operator: rule.OperatorGreaterThan, Value: "0"},
		AutoApprove: true,
	}
}

func member(name string, groups ...string) entity.Actor {
	return entity.Actor{ID: name, Name: name, GroupIDs: groups}
}
