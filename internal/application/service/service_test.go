package service

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/garyjia/credit-approvals/internal/domain/entity"
	"github.com/garyjia/credit-approvals/internal/domain/event"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
)

type mockRuleStore struct {
	mu      sync.Mutex
	rules   []rule.Rule
	nextID  int
	failErr error
}

func (m *mockRuleStore) List(ctx context.Context) ([]rule.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rule.Rule(nil), m.rules...), nil
}

func (m *mockRuleStore) Get(ctx context.Context, id string) (*rule.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockRuleStore) Create(ctx context.Context, r *rule.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.nextID++
	r.ID = "rule-" + string(rune('0'+m.nextID))
	m.rules = append(m.rules, *r)
	return nil
}

func (m *mockRuleStore) Update(ctx context.Context, id string, r *rule.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == id {
			r.ID = id
			m.rules[i] = *r
			return nil
		}
	}
	return errors.New("not found")
}

func (m *mockRuleStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

type mockWorkbook struct {
	exportFunc func(ctx context.Context, rules []rule.Rule, w io.Writer) error
	importFunc func(ctx context.Context, r io.Reader) ([]rule.Rule, error)
}

func (m *mockWorkbook) Export(ctx context.Context, rules []rule.Rule, w io.Writer) error {
	if m.exportFunc != nil {
		return m.exportFunc(ctx, rules, w)
	}
	return nil
}

func (m *mockWorkbook) Import(ctx context.Context, r io.Reader) ([]rule.Rule, error) {
	if m.importFunc != nil {
		return m.importFunc(ctx, r)
	}
	return nil, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockPublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type mockMessenger struct {
	sendTextFunc func(ctx context.Context, chatID, text string) error
	sent         []string
}

func (m *mockMessenger) SendText(ctx context.Context, chatID, text string) error {
	if m.sendTextFunc != nil {
		if err := m.sendTextFunc(ctx, chatID, text); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, text)
	return nil
}

type mockNotificationRepo struct {
	createFunc func(ctx context.Context, n *entity.Notification) error
	created    []*entity.Notification
	sent       []int64
	failed     map[int64]string
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, n); err != nil {
			return err
		}
	}
	n.ID = int64(len(m.created) + 1)
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id int64) error {
	m.sent = append(m.sent, id)
	return nil
}

func (m *mockNotificationRepo) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	if m.failed == nil {
		m.failed = make(map[int64]string)
	}
	m.failed[id] = errMsg
	return nil
}

func (m *mockNotificationRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.Notification, error) {
	return m.created, nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
