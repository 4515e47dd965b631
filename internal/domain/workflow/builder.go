package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns the transition configuration for the given status
	Configure(status Status) StatusConfiguration

	// Build creates a new state machine starting at the given status
	Build(initial Status) StateMachine
}

// StatusConfiguration configures the transitions leaving one status
type StatusConfiguration interface {
	// Permit allows a trigger to move to the target status
	Permit(trigger Trigger, to Status) StatusConfiguration

	// PermitIf allows a trigger to move to the target status when the guard passes
	PermitIf(trigger Trigger, to Status, guard GuardFunc) StatusConfiguration
}

type transition struct {
	to    Status
	guard GuardFunc
}

type statusConfig struct {
	from        Status
	transitions map[Trigger][]transition
}

type stateMachineBuilder struct {
	configs map[Status]*statusConfig
}

type stateMachine struct {
	current Status
	configs map[Status]*statusConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configs: make(map[Status]*statusConfig),
	}
}

func (b *stateMachineBuilder) Configure(status Status) StatusConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	cfg, ok := b.configs[status]
	if !ok {
		cfg = &statusConfig{
			from:        status,
			transitions: make(map[Trigger][]transition),
		}
		b.configs[status] = cfg
	}
	return cfg
}

// Build copies the configuration so later Configure calls do not leak into built machines
func (b *stateMachineBuilder) Build(initial Status) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}

	configs := make(map[Status]*statusConfig, len(b.configs))
	for status, cfg := range b.configs {
		transitions := make(map[Trigger][]transition, len(cfg.transitions))
		for trigger, ts := range cfg.transitions {
			transitions[trigger] = append([]transition(nil), ts...)
		}
		configs[status] = &statusConfig{from: status, transitions: transitions}
	}

	return &stateMachine{current: initial, configs: configs}
}

func (c *statusConfig) Permit(trigger Trigger, to Status) StatusConfiguration {
	return c.PermitIf(trigger, to, nil)
}

func (c *statusConfig) PermitIf(trigger Trigger, to Status, guard GuardFunc) StatusConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	c.transitions[trigger] = append(c.transitions[trigger], transition{to: to, guard: guard})
	return c
}

func (m *stateMachine) Status() Status {
	return m.current
}

func (m *stateMachine) transitions(trigger Trigger) []transition {
	cfg, ok := m.configs[m.current]
	if !ok {
		return nil
	}
	return cfg.transitions[trigger]
}

// CanFire does not evaluate guards; they need a context
func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.transitions(trigger)) > 0
}

func (m *stateMachine) Target(trigger Trigger) (Status, bool) {
	ts := m.transitions(trigger)
	if len(ts) == 0 {
		return "", false
	}
	return ts[0].to, true
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	ts := m.transitions(trigger)
	if len(ts) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range ts {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	cfg, ok := m.configs[m.current]
	if !ok {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(cfg.transitions))
	for trigger := range cfg.transitions {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
