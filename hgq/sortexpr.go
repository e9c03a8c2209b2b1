package hgq

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Attribute names available to the group sort expression.
const (
	AttrAccountingGroup = "AccountingGroup"
	AttrSortExprString  = "GroupSortExprString"
	AttrGroupQuota      = "GroupQuota"
	AttrGroupUsage      = "GroupResourcesInUse"
	AttrGroupRequested  = "RequestedSlots"
)

// SortRecord is the per-node evaluation record for the configured group sort
// expression. All nodes share one compiled program; each record carries the
// attributes specific to its group. The resulting sort key is reserved for a
// future per-sibling ordering policy; the current engine orders round-robin
// service by rr_time only.
type SortRecord struct {
	AccountingGroup string
	SortExpr        string

	prog *vm.Program
}

// compileSortExpr parses and compiles the pool's GROUP_SORT_EXPR. A failure
// here is the one unrecoverable configuration error in the engine.
func compileSortExpr(src string) (*vm.Program, error) {
	prog, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("parsing GROUP_SORT_EXPR %q: %w", src, err)
	}
	return prog, nil
}

// Eval runs the sort expression against this record's group attributes merged
// with the caller-supplied per-cycle values. Non-numeric results are an error.
func (r *SortRecord) Eval(cycle map[string]any) (float64, error) {
	env := map[string]any{
		AttrAccountingGroup: r.AccountingGroup,
		AttrSortExprString:  r.SortExpr,
	}
	for k, v := range cycle {
		env[k] = v
	}
	out, err := expr.Run(r.prog, env)
	if err != nil {
		return 0, fmt.Errorf("evaluating sort expression for group %s: %w", r.AccountingGroup, err)
	}
	switch v := out.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("sort expression for group %s yielded non-numeric %T", r.AccountingGroup, out)
	}
}
