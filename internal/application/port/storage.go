package port

import (
	"context"
	"io"

	"github.com/garyjia/credit-approvals/internal/domain/rule"
)

// RuleWorkbook converts rules to and from a spreadsheet file
type RuleWorkbook interface {
	Export(ctx context.Context, rules []rule.Rule, w io.Writer) error
	Import(ctx context.Context, r io.Reader) ([]rule.Rule, error)
}
