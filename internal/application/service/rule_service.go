package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/domain/event"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Approval levels an administrator may assign
const (
	MinApprovalLevel = 1
	MaxApprovalLevel = 5
)

// ErrInvalidRule is wrapped by every rule validation failure
var ErrInvalidRule = errors.New("invalid rule")

// RuleService manages the approval rule set
type RuleService interface {
	List(ctx context.Context) ([]rule.Rule, error)
	Get(ctx context.Context, id string) (*rule.Rule, error)
	Create(ctx context.Context, r *rule.Rule) error
	Update(ctx context.Context, id string, r *rule.Rule) error
	Delete(ctx context.Context, id string) error

	// Export writes every rule to a workbook
	Export(ctx context.Context, w io.Writer) error
	// Import validates and stores the rules of a workbook, optionally replacing the current set
	Import(ctx context.Context, r io.Reader, replace bool) (int, error)
}

type ruleServiceImpl struct {
	rules     port.RuleStore
	workbook  port.RuleWorkbook
	txManager port.TransactionManager
	publisher port.EventPublisher
	logger    Logger
}

// NewRuleService creates a new RuleService. workbook and publisher may be nil.
func NewRuleService(
	rules port.RuleStore,
	workbook port.RuleWorkbook,
	txManager port.TransactionManager,
	publisher port.EventPublisher,
	logger Logger,
) RuleService {
	return &ruleServiceImpl{
		rules:     rules,
		workbook:  workbook,
		txManager: txManager,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *ruleServiceImpl) List(ctx context.Context) ([]rule.Rule, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list rules", "error", err)
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

func (s *ruleServiceImpl) Get(ctx context.Context, id string) (*rule.Rule, error) {
	return s.rules.Get(ctx, id)
}

func (s *ruleServiceImpl) Create(ctx context.Context, r *rule.Rule) error {
	if err := NormalizeRule(r); err != nil {
		return err
	}
	if err := s.rules.Create(ctx, r); err != nil {
		s.logger.Error("Failed to create rule", "error", err, "name", r.Name)
		return fmt.Errorf("create rule: %w", err)
	}

	s.logger.Info("Rule created", "rule_id", r.ID, "name", r.Name, "auto_approve", r.AutoApprove)
	s.publish(ctx, r.ID)
	return nil
}

func (s *ruleServiceImpl) Update(ctx context.Context, id string, r *rule.Rule) error {
	if err := NormalizeRule(r); err != nil {
		return err
	}
	if err := s.rules.Update(ctx, id, r); err != nil {
		s.logger.Error("Failed to update rule", "error", err, "rule_id", id)
		return fmt.Errorf("update rule: %w", err)
	}

	s.logger.Info("Rule updated", "rule_id", id, "name", r.Name)
	s.publish(ctx, id)
	return nil
}

func (s *ruleServiceImpl) Delete(ctx context.Context, id string) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete rule", "error", err, "rule_id", id)
		return fmt.Errorf("delete rule: %w", err)
	}

	s.logger.Info("Rule deleted", "rule_id", id)
	s.publish(ctx, id)
	return nil
}

func (s *ruleServiceImpl) Export(ctx context.Context, w io.Writer) error {
	if s.workbook == nil {
		return errors.New("rule workbook is not configured")
	}

	rules, err := s.List(ctx)
	if err != nil {
		return err
	}
	if err := s.workbook.Export(ctx, rules, w); err != nil {
		s.logger.Error("Failed to export rules", "error", err)
		return fmt.Errorf("export rules: %w", err)
	}

	s.logger.Info("Rules exported", "count", len(rules))
	return nil
}

func (s *ruleServiceImpl) Import(ctx context.Context, r io.Reader, replace bool) (int, error) {
	if s.workbook == nil {
		return 0, errors.New("rule workbook is not configured")
	}

	imported, err := s.workbook.Import(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	for i := range imported {
		if err := NormalizeRule(&imported[i]); err != nil {
			return 0, fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if replace {
			existing, err := s.rules.List(txCtx)
			if err != nil {
				return fmt.Errorf("list rules: %w", err)
			}
			for _, old := range existing {
				if err := s.rules.Delete(txCtx, old.ID); err != nil {
					return fmt.Errorf("delete rule %s: %w", old.ID, err)
				}
			}
		}
		for i := range imported {
			// imported rules always get fresh IDs
			imported[i].ID = ""
			if err := s.rules.Create(txCtx, &imported[i]); err != nil {
				return fmt.Errorf("create rule %q: %w", imported[i].Name, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to import rules", "error", err)
		return 0, err
	}

	s.logger.Info("Rules imported", "count", len(imported), "replace", replace)
	s.publish(ctx, "")
	return len(imported), nil
}

func (s *ruleServiceImpl) publish(ctx context.Context, ruleID string) {
	if s.publisher == nil {
		return
	}
	s.publisher.DispatchAsync(ctx, event.NewEvent(event.TypeRulesChanged, "", map[string]interface{}{
		event.KeyRuleID: ruleID,
	}))
}

// NormalizeRule trims and validates a rule before it is stored. Auto-approve
// rules lose their level and group; other rules need both.
func NormalizeRule(r *rule.Rule) error {
	r.Name = strings.TrimSpace(r.Name)
	r.ScopeValue = strings.TrimSpace(r.ScopeValue)
	r.ApprovalLevel = strings.TrimSpace(r.ApprovalLevel)
	r.GroupID = strings.TrimSpace(r.GroupID)

	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	for i, c := range []*rule.Criterion{&r.Criterion1, &r.Criterion2} {
		c.Field = strings.TrimSpace(c.Field)
		if c.Field == "" || c.Operator == "" {
			return fmt.Errorf("%w: criterion %d needs a field and an operator", ErrInvalidRule, i+1)
		}
		if !c.Operator.IsValid() {
			return fmt.Errorf("%w: criterion %d has unknown operator %q", ErrInvalidRule, i+1, c.Operator)
		}
		if c.Operator.NeedsValue() && strings.TrimSpace(c.Value) == "" {
			return fmt.Errorf("%w: criterion %d needs a value for %s", ErrInvalidRule, i+1, c.Operator.Label())
		}
		if !c.Operator.NeedsValue() {
			c.Value = ""
		}
	}

	if r.AutoApprove {
		r.ApprovalLevel = ""
		r.GroupID = ""
		return nil
	}

	level, err := strconv.Atoi(r.ApprovalLevel)
	if err != nil || level < MinApprovalLevel || level > MaxApprovalLevel {
		return fmt.Errorf("%w: approval level must be between %d and %d", ErrInvalidRule, MinApprovalLevel, MaxApprovalLevel)
	}
	if r.GroupID == "" {
		return fmt.Errorf("%w: an approval group is required", ErrInvalidRule)
	}
	return nil
}
