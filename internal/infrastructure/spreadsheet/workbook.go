package spreadsheet

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/credit-approvals/internal/application/port"
	"github.com/garyjia/credit-approvals/internal/domain/rule"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SheetName is the sheet rules are written to
const SheetName = "Rules"

var headers = []string{
	"Name",
	"Credit Type",
	"Field 1",
	"Operator 1",
	"Value 1",
	"Field 2",
	"Operator 2",
	"Value 2",
	"Auto Approve",
	"Approval Level",
	"Group ID",
}

// RuleWorkbook reads and writes approval rules as .xlsx files
type RuleWorkbook struct {
	logger *zap.Logger
}

// NewRuleWorkbook creates a new RuleWorkbook
func NewRuleWorkbook(logger *zap.Logger) *RuleWorkbook {
	return &RuleWorkbook{logger: logger}
}

// Export writes rules to a single-sheet workbook
func (wb *RuleWorkbook) Export(ctx context.Context, rules []rule.Rule, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, style)
	}
	_ = f.SetColWidth(SheetName, "A", "K", 18)

	for i, r := range rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := []interface{}{
			r.Name,
			r.ScopeValue,
			r.Criterion1.Field,
			string(r.Criterion1.Operator),
			r.Criterion1.Value,
			r.Criterion2.Field,
			string(r.Criterion2.Operator),
			r.Criterion2.Value,
			r.AutoApprove,
			r.ApprovalLevel,
			r.GroupID,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write rule %q: %w", r.Name, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	wb.logger.Info("Rules workbook exported", zap.Int("rules", len(rules)))
	return nil
}

// Import reads rules from the first sheet. Columns are matched by header name,
// blank rows are skipped. Rules are returned unvalidated.
func (wb *RuleWorkbook) Import(ctx context.Context, r io.Reader) ([]rule.Rule, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, h := range headers {
		if _, ok := cols[strings.ToLower(h)]; !ok {
			return nil, fmt.Errorf("missing column %q", h)
		}
	}

	var rules []rule.Rule
	for n, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if blank(row) {
			continue
		}
		get := func(h string) string {
			i := cols[strings.ToLower(h)]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		op1, err := parseOperator(get("Operator 1"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		op2, err := parseOperator(get("Operator 2"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}

		rules = append(rules, rule.Rule{
			Name:          get("Name"),
			ScopeValue:    get("Credit Type"),
			Criterion1:    rule.Criterion{Field: get("Field 1"), Operator: op1, Value: get("Value 1")},
			Criterion2:    rule.Criterion{Field: get("Field 2"), Operator: op2, Value: get("Value 2")},
			AutoApprove:   parseBool(get("Auto Approve")),
			ApprovalLevel: get("Approval Level"),
			GroupID:       get("Group ID"),
		})
	}

	wb.logger.Info("Rules workbook imported", zap.String("sheet", sheets[0]), zap.Int("rules", len(rules)))
	return rules, nil
}

// parseOperator accepts an operator value or its display label
func parseOperator(s string) (rule.Operator, error) {
	if s == "" {
		return "", nil
	}
	for _, op := range rule.AllOperators() {
		if strings.EqualFold(s, string(op)) || strings.EqualFold(s, op.Label()) {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Verify interface compliance
var _ port.RuleWorkbook = (*RuleWorkbook)(nil)
