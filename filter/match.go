package filter

import (
	"strings"
	"time"
)

// Match evaluates an expression against one materialized row. get returns
// the value for a field name (nil means null) and whether the name is
// known. It is the generic fallback for expression parts the constraint
// compiler does not handle; unsupported expression classes match every row
// so that pushdown gaps widen results instead of dropping data.
func Match(e Expression, get func(name string) (any, bool)) bool {
	if e == nil {
		return true
	}
	switch t := e.(type) {
	case *ConjunctionExpression:
		if t.Type() == TypeConjunctionAnd {
			for _, c := range t.Children {
				if !Match(c, get) {
					return false
				}
			}
			return true
		}
		for _, c := range t.Children {
			if Match(c, get) {
				return true
			}
		}
		return len(t.Children) == 0
	case *OperatorExpression:
		switch t.Type() {
		case TypeOperatorNot:
			return !Match(t.Children[0], get)
		case TypeOperatorIsNull:
			v, ok := operand(t.Children[0], get)
			return ok && v == nil
		case TypeOperatorIsNotNull:
			v, ok := operand(t.Children[0], get)
			return ok && v != nil
		}
		return true
	case *BetweenExpression:
		return Match(Normalize(t), get)
	case *ComparisonExpression:
		return matchComparison(t, get)
	default:
		return true
	}
}

func matchComparison(e *ComparisonExpression, get func(string) (any, bool)) bool {
	left, lok := operand(e.Left, get)
	right, rok := operand(e.Right, get)
	if !lok || !rok {
		return true
	}
	if left == nil || right == nil {
		// Comparisons with null never match.
		return false
	}
	cmp, ok := compareAny(left, right)
	if !ok {
		return false
	}
	op, ok := comparisonOp(e.Type())
	if !ok {
		return true
	}
	return holds(op, cmp)
}

// operand resolves a comparison side to a plain Go value. The second result
// is false when the expression is not a column or constant, leaving the
// comparison to match-all behavior.
func operand(e Expression, get func(string) (any, bool)) (any, bool) {
	switch t := e.(type) {
	case *ColumnRefExpression:
		v, ok := get(t.Name)
		if !ok {
			return nil, false
		}
		return v, true
	case *ConstantExpression:
		if t.Value.IsNull() {
			return nil, true
		}
		return constValue(t.Value), true
	default:
		return nil, false
	}
}

func constValue(v Value) any {
	switch v.Kind {
	case ValueBool:
		return v.Bool
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueString:
		return v.Str
	default:
		return nil
	}
}

// compareAny compares two plain Go values, coercing numerics to float64 and
// parsing time literals from their common text forms.
func compareAny(a, b any) (int, bool) {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return cmpFloat(af, Value{Kind: ValueFloat, Float: bf})
		}
		return 0, false
	}
	switch av := a.(type) {
	case string:
		if bs, ok := b.(string); ok {
			return strings.Compare(av, bs), true
		}
		return 0, false
	case time.Time:
		bt, ok := asTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bt):
			return -1, true
		case av.After(bt):
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case time.Duration:
		return t.Seconds(), true
	default:
		return 0, false
	}
}

var timeFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeFormats {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
