package filter

import "strconv"

// ExpressionClass identifies the category of expression.
type ExpressionClass string

const (
	ClassComparison  ExpressionClass = "COMPARISON"
	ClassConjunction ExpressionClass = "CONJUNCTION"
	ClassConstant    ExpressionClass = "CONSTANT"
	ClassColumnRef   ExpressionClass = "COLUMN_REF"
	ClassOperator    ExpressionClass = "OPERATOR"
	ClassBetween     ExpressionClass = "BETWEEN"
)

// ExpressionType identifies the specific operation type.
type ExpressionType string

const (
	// Comparison operators
	TypeCompareEqual              ExpressionType = "COMPARE_EQUAL"
	TypeCompareNotEqual           ExpressionType = "COMPARE_NOTEQUAL"
	TypeCompareLessThan           ExpressionType = "COMPARE_LESSTHAN"
	TypeCompareGreaterThan        ExpressionType = "COMPARE_GREATERTHAN"
	TypeCompareLessThanOrEqual    ExpressionType = "COMPARE_LESSTHANOREQUALTO"
	TypeCompareGreaterThanOrEqual ExpressionType = "COMPARE_GREATERTHANOREQUALTO"
	TypeCompareBetween            ExpressionType = "COMPARE_BETWEEN"

	// Conjunction operators
	TypeConjunctionAnd ExpressionType = "CONJUNCTION_AND"
	TypeConjunctionOr  ExpressionType = "CONJUNCTION_OR"

	// Unary operators
	TypeOperatorNot       ExpressionType = "OPERATOR_NOT"
	TypeOperatorIsNull    ExpressionType = "OPERATOR_IS_NULL"
	TypeOperatorIsNotNull ExpressionType = "OPERATOR_IS_NOT_NULL"

	// Value types
	TypeValueConstant ExpressionType = "VALUE_CONSTANT"
	TypeColumnRef     ExpressionType = "COLUMN_REF"
)

// Expression is the interface implemented by all filter expression types.
// Use type assertions or type switches to access specific expression data.
type Expression interface {
	// Class returns the expression class (e.g., COMPARISON, CONJUNCTION).
	Class() ExpressionClass

	// Type returns the specific expression type (e.g., COMPARE_EQUAL).
	Type() ExpressionType

	// expressionMarker is a marker method to prevent external implementation.
	expressionMarker()
}

// BaseExpression contains common fields for all expression types.
type BaseExpression struct {
	ExprClass ExpressionClass `json:"expression_class"`
	ExprType  ExpressionType  `json:"type"`
}

// Class returns the expression class.
func (b *BaseExpression) Class() ExpressionClass { return b.ExprClass }

// Type returns the expression type.
func (b *BaseExpression) Type() ExpressionType { return b.ExprType }

func (b *BaseExpression) expressionMarker() {}

// ComparisonExpression represents binary comparisons (=, <>, <, >, <=, >=).
type ComparisonExpression struct {
	BaseExpression
	Left  Expression
	Right Expression
}

// ConjunctionExpression represents AND/OR with multiple children.
type ConjunctionExpression struct {
	BaseExpression
	Children []Expression
}

// ConstantExpression represents a literal value.
type ConstantExpression struct {
	BaseExpression
	Value Value
}

// ColumnRefExpression references an attribute field or the feature
// identifier by name.
type ColumnRefExpression struct {
	BaseExpression
	Name string
}

// OperatorExpression represents unary operators (NOT, IS NULL, IS NOT NULL).
type OperatorExpression struct {
	BaseExpression
	Children []Expression
}

// BetweenExpression represents input BETWEEN lower AND upper.
type BetweenExpression struct {
	BaseExpression
	Input          Expression
	Lower          Expression
	Upper          Expression
	LowerInclusive bool
	UpperInclusive bool
}

// UnsupportedExpression marks an expression class the engine cannot push
// down. Parsing succeeds; evaluation falls back to the generic row path.
type UnsupportedExpression struct {
	BaseExpression
}

// ValueKind tags the representation of a literal value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
)

// Value is a typed literal. Exactly one payload field is meaningful,
// selected by Kind.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// IsNull reports whether the value is the null literal.
func (v Value) IsNull() bool { return v.Kind == ValueNull }

// Float64 returns the numeric value as a float64. Strings and nulls have no
// numeric form and report false.
func (v Value) Float64() (float64, bool) {
	switch v.Kind {
	case ValueBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case ValueInt:
		return float64(v.Int), true
	case ValueFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// Text returns the canonical text form of the value.
func (v Value) Text() string {
	switch v.Kind {
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		return v.Str
	default:
		return ""
	}
}
