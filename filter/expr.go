package filter

import "fmt"

// Programmatic constructors for filter expressions. They mirror the JSON
// form one to one, so a filter can be built in code or parsed off the wire
// interchangeably.

// Col references an attribute field or the feature identifier by name.
func Col(name string) *ColumnRefExpression {
	return &ColumnRefExpression{
		BaseExpression: BaseExpression{ExprClass: ClassColumnRef, ExprType: TypeColumnRef},
		Name:           name,
	}
}

// Lit builds a constant expression from a Go value. Supported types are
// booleans, integers, floats, strings and nil.
func Lit(v any) *ConstantExpression {
	val := Value{}
	switch t := v.(type) {
	case nil:
		val.Kind = ValueNull
	case bool:
		val = Value{Kind: ValueBool, Bool: t}
	case int:
		val = Value{Kind: ValueInt, Int: int64(t)}
	case int32:
		val = Value{Kind: ValueInt, Int: int64(t)}
	case int64:
		val = Value{Kind: ValueInt, Int: t}
	case float32:
		val = Value{Kind: ValueFloat, Float: float64(t)}
	case float64:
		val = Value{Kind: ValueFloat, Float: t}
	case string:
		val = Value{Kind: ValueString, Str: t}
	default:
		panic(fmt.Sprintf("filter: unsupported literal type %T", v))
	}
	return &ConstantExpression{
		BaseExpression: BaseExpression{ExprClass: ClassConstant, ExprType: TypeValueConstant},
		Value:          val,
	}
}

func compare(op ExpressionType, left, right Expression) *ComparisonExpression {
	return &ComparisonExpression{
		BaseExpression: BaseExpression{ExprClass: ClassComparison, ExprType: op},
		Left:           left,
		Right:          right,
	}
}

// Eq builds left = right.
func Eq(left, right Expression) *ComparisonExpression {
	return compare(TypeCompareEqual, left, right)
}

// Ne builds left <> right.
func Ne(left, right Expression) *ComparisonExpression {
	return compare(TypeCompareNotEqual, left, right)
}

// Lt builds left < right.
func Lt(left, right Expression) *ComparisonExpression {
	return compare(TypeCompareLessThan, left, right)
}

// Le builds left <= right.
func Le(left, right Expression) *ComparisonExpression {
	return compare(TypeCompareLessThanOrEqual, left, right)
}

// Gt builds left > right.
func Gt(left, right Expression) *ComparisonExpression {
	return compare(TypeCompareGreaterThan, left, right)
}

// Ge builds left >= right.
func Ge(left, right Expression) *ComparisonExpression {
	return compare(TypeCompareGreaterThanOrEqual, left, right)
}

func conjunction(op ExpressionType, children []Expression) *ConjunctionExpression {
	return &ConjunctionExpression{
		BaseExpression: BaseExpression{ExprClass: ClassConjunction, ExprType: op},
		Children:       children,
	}
}

// And builds a conjunction of all children.
func And(children ...Expression) *ConjunctionExpression {
	return conjunction(TypeConjunctionAnd, children)
}

// Or builds a disjunction of all children.
func Or(children ...Expression) *ConjunctionExpression {
	return conjunction(TypeConjunctionOr, children)
}

func operator(op ExpressionType, child Expression) *OperatorExpression {
	return &OperatorExpression{
		BaseExpression: BaseExpression{ExprClass: ClassOperator, ExprType: op},
		Children:       []Expression{child},
	}
}

// Not negates an expression.
func Not(child Expression) *OperatorExpression {
	return operator(TypeOperatorNot, child)
}

// IsNull builds child IS NULL.
func IsNull(child Expression) *OperatorExpression {
	return operator(TypeOperatorIsNull, child)
}

// IsNotNull builds child IS NOT NULL.
func IsNotNull(child Expression) *OperatorExpression {
	return operator(TypeOperatorIsNotNull, child)
}

// Between builds input BETWEEN lower AND upper with inclusive bounds.
func Between(input, lower, upper Expression) *BetweenExpression {
	return &BetweenExpression{
		BaseExpression: BaseExpression{ExprClass: ClassBetween, ExprType: TypeCompareBetween},
		Input:          input,
		Lower:          lower,
		Upper:          upper,
		LowerInclusive: true,
		UpperInclusive: true,
	}
}

// Normalize rewrites an expression into the shape the constraint compiler
// consumes: BETWEEN becomes a pair of range comparisons and NOT over a null
// check flips into the opposite null check. The input is not modified.
func Normalize(e Expression) Expression {
	switch t := e.(type) {
	case *BetweenExpression:
		lower := TypeCompareGreaterThanOrEqual
		if !t.LowerInclusive {
			lower = TypeCompareGreaterThan
		}
		upper := TypeCompareLessThanOrEqual
		if !t.UpperInclusive {
			upper = TypeCompareLessThan
		}
		return And(
			compare(lower, Normalize(t.Input), Normalize(t.Lower)),
			compare(upper, Normalize(t.Input), Normalize(t.Upper)),
		)
	case *ConjunctionExpression:
		children := make([]Expression, len(t.Children))
		for i, c := range t.Children {
			children[i] = Normalize(c)
		}
		return conjunction(t.Type(), children)
	case *ComparisonExpression:
		return compare(t.Type(), Normalize(t.Left), Normalize(t.Right))
	case *OperatorExpression:
		child := Normalize(t.Children[0])
		if t.Type() == TypeOperatorNot {
			if inner, ok := child.(*OperatorExpression); ok {
				switch inner.Type() {
				case TypeOperatorIsNull:
					return operator(TypeOperatorIsNotNull, inner.Children[0])
				case TypeOperatorIsNotNull:
					return operator(TypeOperatorIsNull, inner.Children[0])
				}
			}
		}
		return operator(t.Type(), child)
	default:
		return e
	}
}
