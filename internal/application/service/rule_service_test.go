package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/garyjia/credit-approvals/internal/domain/rule"
)

func validRule() *rule.Rule {
	return &rule.Rule{
		Name:          "  Large credit  ",
		ScopeValue:    "Memo",
		Criterion1:    rule.Criterion{Field: "custom_field_amount", Operator: rule.OperatorGreaterThan, Value: "5000"},
		Criterion2:    rule.Criterion{Field: "custom_field_reason", Operator: rule.OperatorIsNotEmpty, Value: "ignored"},
		ApprovalLevel: "2",
		GroupID:       "G2",
	}
}

func TestNormalizeRule(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *rule.Rule)
		wantErr bool
	}{
		{"valid leveled rule", func(r *rule.Rule) {}, false},
		{"missing name", func(r *rule.Rule) { r.Name = " " }, true},
		{"missing field", func(r *rule.Rule) { r.Criterion1.Field = "" }, true},
		{"missing operator", func(r *rule.Rule) { r.Criterion2.Operator = "" }, true},
		{"unknown operator", func(r *rule.Rule) { r.Criterion1.Operator = "between" }, true},
		{"missing value", func(r *rule.Rule) { r.Criterion1.Value = "" }, true},
		{"level below range", func(r *rule.Rule) { r.ApprovalLevel = "0" }, true},
		{"level above range", func(r *rule.Rule) { r.ApprovalLevel = "6" }, true},
		{"level not a number", func(r *rule.Rule) { r.ApprovalLevel = "two" }, true},
		{"missing group", func(r *rule.Rule) { r.GroupID = "" }, true},
		{"auto approve without routing", func(r *rule.Rule) {
			r.AutoApprove = true
			r.ApprovalLevel = ""
			r.GroupID = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(r)

			err := NormalizeRule(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeRule() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRule) {
				t.Errorf("error %v does not wrap ErrInvalidRule", err)
			}
		})
	}
}

func TestNormalizeRule_ClearsRoutingForAutoApprove(t *testing.T) {
	r := validRule()
	r.AutoApprove = true

	if err := NormalizeRule(r); err != nil {
		t.Fatalf("NormalizeRule() error = %v", err)
	}
	if r.ApprovalLevel != "" || r.GroupID != "" {
		t.Errorf("auto approve rule kept routing: level=%q group=%q", r.ApprovalLevel, r.GroupID)
	}
	if r.Name != "Large credit" {
		t.Errorf("Name = %q, want trimmed", r.Name)
	}
	if r.Criterion2.Value != "" {
		t.Errorf("is_not_empty criterion kept value %q", r.Criterion2.Value)
	}
}

func TestRuleService_CreateUpdateDelete(t *testing.T) {
	store := &mockRuleStore{}
	publisher := &mockPublisher{}
	svc := NewRuleService(store, nil, &mockTxManager{}, publisher, &mockLogger{})
	ctx := context.Background()

	r := validRule()
	if err := svc.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if r.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	bad := validRule()
	bad.GroupID = ""
	if err := svc.Create(ctx, bad); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("Create() invalid rule error = %v", err)
	}

	upd := validRule()
	upd.AutoApprove = true
	if err := svc.Update(ctx, r.ID, upd); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := svc.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.AutoApprove || got.GroupID != "" {
		t.Errorf("Update() stored %+v", got)
	}

	if err := svc.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, r.ID); err == nil {
		t.Error("Delete() of missing rule should fail")
	}

	if publisher.Count() != 3 {
		t.Errorf("published %d rule change events, want 3", publisher.Count())
	}
}

func TestRuleService_Import(t *testing.T) {
	store := &mockRuleStore{}
	existing := validRule()
	_ = store.Create(context.Background(), existing)

	imported := []rule.Rule{*validRule(), *validRule()}
	imported[1].Name = "Small credit"
	imported[1].AutoApprove = true
	workbook := &mockWorkbook{
		importFunc: func(ctx context.Context, r io.Reader) ([]rule.Rule, error) {
			return append([]rule.Rule(nil), imported...), nil
		},
	}

	svc := NewRuleService(store, workbook, &mockTxManager{}, nil, &mockLogger{})

	n, err := svc.Import(context.Background(), bytes.NewReader(nil), true)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Import() = %d, want 2", n)
	}

	rules, _ := store.List(context.Background())
	if len(rules) != 2 {
		t.Fatalf("store has %d rules, want 2 after replace", len(rules))
	}
	for _, r := range rules {
		if r.ID == existing.ID {
			t.Error("replace import kept the old rule")
		}
	}
	if rules[1].GroupID != "" {
		t.Error("imported auto approve rule kept its group")
	}
}

func TestRuleService_ImportRejectsInvalidRow(t *testing.T) {
	store := &mockRuleStore{}
	bad := *validRule()
	bad.ApprovalLevel = "9"
	workbook := &mockWorkbook{
		importFunc: func(ctx context.Context, r io.Reader) ([]rule.Rule, error) {
			return []rule.Rule{*validRule(), bad}, nil
		},
	}

	svc := NewRuleService(store, workbook, &mockTxManager{}, nil, &mockLogger{})

	_, err := svc.Import(context.Background(), bytes.NewReader(nil), false)
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("Import() error = %v, want ErrInvalidRule", err)
	}
	if rules, _ := store.List(context.Background()); len(rules) != 0 {
		t.Errorf("invalid import stored %d rules", len(rules))
	}
}

func TestRuleService_ExportWithoutWorkbook(t *testing.T) {
	svc := NewRuleService(&mockRuleStore{}, nil, &mockTxManager{}, nil, &mockLogger{})
	if err := svc.Export(context.Background(), io.Discard); err == nil {
		t.Error("Export() without workbook should fail")
	}
}
