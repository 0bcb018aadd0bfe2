package store

import (
	"fmt"
	"strings"
)

// Cond is one ANDed predicate in the query sugar of spec.md §4.1:
// field=v, field__in=list, field__glob=pattern, field__lt=v, field__gt=v.
// A nil Value means "IS NULL".
type Cond struct {
	Column string
	Op     Op
	Value  any
}

// Op identifies which comparison a Cond applies.
type Op int

const (
	OpEq Op = iota
	OpIn
	OpGlob
	OpLt
	OpGt
)

// Eq builds a field=v predicate ("field__eq" is the implicit default).
func Eq(column string, value any) Cond { return Cond{Column: column, Op: OpEq, Value: value} }

// In builds a field__in=list predicate.
func In(column string, values ...any) Cond { return Cond{Column: column, Op: OpIn, Value: values} }

// Glob builds a field__glob=pattern predicate (sqlite GLOB, case-sensitive
// shell-style wildcards).
func Glob(column, pattern string) Cond { return Cond{Column: column, Op: OpGlob, Value: pattern} }

// Lt builds a field__lt=v predicate.
func Lt(column string, value any) Cond { return Cond{Column: column, Op: OpLt, Value: value} }

// Gt builds a field__gt=v predicate.
func Gt(column string, value any) Cond { return Cond{Column: column, Op: OpGt, Value: value} }

// buildWhere renders conds as "WHERE c1 AND c2 ..." (empty string if no
// conditions) plus the positional args in the same order.
func buildWhere(conds []Cond) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}

	var clauses []string
	var args []any

	for _, c := range conds {
		switch c.Op {
		case OpEq:
			if c.Value == nil {
				clauses = append(clauses, fmt.Sprintf("%s IS NULL", c.Column))
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s = ?", c.Column))
			args = append(args, c.Value)
		case OpIn:
			values, _ := c.Value.([]any)
			if len(values) == 0 {
				// An empty __in never matches anything.
				clauses = append(clauses, "0 = 1")
				continue
			}
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = "?"
				args = append(args, v)
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", c.Column, strings.Join(placeholders, ", ")))
		case OpGlob:
			clauses = append(clauses, fmt.Sprintf("%s GLOB ?", c.Column))
			args = append(args, c.Value)
		case OpLt:
			clauses = append(clauses, fmt.Sprintf("%s < ?", c.Column))
			args = append(args, c.Value)
		case OpGt:
			clauses = append(clauses, fmt.Sprintf("%s > ?", c.Column))
			args = append(args, c.Value)
		}
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}
