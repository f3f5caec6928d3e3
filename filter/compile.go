package filter

import (
	"log/slog"
	"strconv"

	"github.com/hugr-lab/arrowlayer-go/schema"
)

// ConstraintOp is the comparison a compiled constraint applies.
type ConstraintOp int

const (
	OpEqual ConstraintOp = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpIsNull
	OpIsNotNull
)

// FieldFID is the constraint field sentinel targeting the feature
// identifier instead of an attribute field.
const FieldFID = -1

// Constraint is one compiled per-column comparison. Field indexes the
// definition's attribute fields, or FieldFID for the feature identifier.
type Constraint struct {
	Field int
	Op    ConstraintOp
	Value Value

	// path locates the physical value inside the record; nil for FID
	// constraints, which evaluate against the identifier the caller
	// passes in.
	path    []int
	enabled bool
}

// Constraints is the compiled form of the pushdown-eligible part of a
// filter expression. Constraints are conjunctive: a row is skipped when any
// enabled constraint fails.
type Constraints struct {
	items    []Constraint
	complete bool
	def      *schema.Definition
	logger   *slog.Logger
}

// Complete reports whether the whole expression tree compiled. When false
// the caller must still evaluate the original expression against
// materialized rows; the constraints only pre-filter.
func (c *Constraints) Complete() bool { return c.complete }

// Len returns the number of compiled constraints, enabled or not.
func (c *Constraints) Len() int { return len(c.items) }

// Items returns the compiled constraints.
func (c *Constraints) Items() []Constraint { return c.items }

// Compile walks a predicate tree and emits the flat constraint list. Only
// top-level AND conjunctions decompose; a comparison qualifies when exactly
// one side is a column reference and the other a constant. Everything else
// is left to generic evaluation and marks the result incomplete.
func Compile(expr Expression, def *schema.Definition, logger *slog.Logger) *Constraints {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Constraints{def: def, logger: logger, complete: true}
	if expr != nil {
		c.compileNode(Normalize(expr))
	}
	c.Rebind(nil)
	return c
}

func (c *Constraints) compileNode(e Expression) {
	switch t := e.(type) {
	case *ConjunctionExpression:
		if t.Type() != TypeConjunctionAnd {
			c.complete = false
			return
		}
		for _, child := range t.Children {
			c.compileNode(child)
		}
	case *ComparisonExpression:
		if !c.compileComparison(t) {
			c.complete = false
		}
	case *OperatorExpression:
		if !c.compileOperator(t) {
			c.complete = false
		}
	default:
		c.complete = false
	}
}

// compileComparison emits one constraint for column-versus-constant
// comparisons, flipping the relational operator when the column is the
// right-hand operand.
func (c *Constraints) compileComparison(e *ComparisonExpression) bool {
	col, lit, flipped := splitOperands(e.Left, e.Right)
	if col == nil {
		return false
	}
	op, ok := comparisonOp(e.Type())
	if !ok {
		return false
	}
	if flipped {
		op = flip(op)
	}
	if lit.Value.IsNull() {
		// Comparisons against NULL never match; leave them to generic
		// evaluation rather than encode tri-state logic here.
		return false
	}
	return c.emit(col.Name, op, lit.Value)
}

func (c *Constraints) compileOperator(e *OperatorExpression) bool {
	var op ConstraintOp
	switch e.Type() {
	case TypeOperatorIsNull:
		op = OpIsNull
	case TypeOperatorIsNotNull:
		op = OpIsNotNull
	default:
		return false
	}
	col, ok := e.Children[0].(*ColumnRefExpression)
	if !ok {
		return false
	}
	return c.emit(col.Name, op, Value{Kind: ValueNull})
}

// emit resolves the column name and coerces the literal to the target field
// type. Fields without a defined coercion (dates, times, binary, lists) are
// not compiled.
func (c *Constraints) emit(name string, op ConstraintOp, v Value) bool {
	if name == c.def.FID() && c.def.FieldIndex(name) < 0 {
		cv, ok := coerce(v, schema.TypeInteger64)
		if !ok && op != OpIsNull && op != OpIsNotNull {
			return false
		}
		c.items = append(c.items, Constraint{Field: FieldFID, Op: op, Value: cv})
		return true
	}
	idx := c.def.FieldIndex(name)
	if idx < 0 {
		c.logger.Warn("filter references an unknown column", "column", name)
		return false
	}
	if op == OpIsNull || op == OpIsNotNull {
		c.items = append(c.items, Constraint{Field: idx, Op: op})
		return true
	}
	if c.def.Fields[idx].Type.IsList() {
		// Element-wise list comparison is left to the residual predicate.
		return false
	}
	cv, ok := coerce(v, c.def.Fields[idx].Type)
	if !ok {
		return false
	}
	c.items = append(c.items, Constraint{Field: idx, Op: op, Value: cv})
	return true
}

// Rebind recomputes the physical location of every constraint, disabling
// those whose field is in the ignored set. A disabled constraint is never
// evaluated; dropping it silently would let rows through that were meant to
// be filtered, which is documented behavior for ignored columns.
func (c *Constraints) Rebind(ignored map[int]bool) {
	for i := range c.items {
		ct := &c.items[i]
		if ct.Field == FieldFID {
			ct.path, ct.enabled = nil, true
			continue
		}
		if ignored[ct.Field] {
			if ct.enabled {
				c.logger.Warn("disabling filter constraint on ignored field",
					"field", c.def.Fields[ct.Field].Name)
			}
			ct.enabled = false
			ct.path = nil
			continue
		}
		ct.path = c.def.Fields[ct.Field].Path
		ct.enabled = true
	}
}

// splitOperands returns the column and constant sides of a comparison.
// flipped is true when the column was the right-hand operand.
func splitOperands(left, right Expression) (*ColumnRefExpression, *ConstantExpression, bool) {
	if col, ok := left.(*ColumnRefExpression); ok {
		if lit, ok := right.(*ConstantExpression); ok {
			return col, lit, false
		}
		return nil, nil, false
	}
	if col, ok := right.(*ColumnRefExpression); ok {
		if lit, ok := left.(*ConstantExpression); ok {
			return col, lit, true
		}
	}
	return nil, nil, false
}

func comparisonOp(t ExpressionType) (ConstraintOp, bool) {
	switch t {
	case TypeCompareEqual:
		return OpEqual, true
	case TypeCompareNotEqual:
		return OpNotEqual, true
	case TypeCompareLessThan:
		return OpLess, true
	case TypeCompareLessThanOrEqual:
		return OpLessEqual, true
	case TypeCompareGreaterThan:
		return OpGreater, true
	case TypeCompareGreaterThanOrEqual:
		return OpGreaterEqual, true
	default:
		return 0, false
	}
}

// flip mirrors a relational operator for a reversed operand order.
// Equality and inequality are symmetric.
func flip(op ConstraintOp) ConstraintOp {
	switch op {
	case OpLess:
		return OpGreater
	case OpLessEqual:
		return OpGreaterEqual
	case OpGreater:
		return OpLess
	case OpGreaterEqual:
		return OpLessEqual
	default:
		return op
	}
}

// coerce converts a literal to the representation matching the target field
// type. Integer targets truncate floats; string targets take the literal's
// text form. Types without a defined coercion report false.
func coerce(v Value, target schema.FieldType) (Value, bool) {
	switch target {
	case schema.TypeInteger, schema.TypeInteger64:
		switch v.Kind {
		case ValueInt:
			return v, true
		case ValueFloat:
			return Value{Kind: ValueInt, Int: int64(v.Float)}, true
		case ValueBool:
			i := int64(0)
			if v.Bool {
				i = 1
			}
			return Value{Kind: ValueInt, Int: i}, true
		case ValueString:
			i, err := strconv.ParseInt(v.Str, 10, 64)
			if err != nil {
				return Value{}, false
			}
			return Value{Kind: ValueInt, Int: i}, true
		}
		return Value{}, false
	case schema.TypeReal:
		if f, ok := v.Float64(); ok {
			return Value{Kind: ValueFloat, Float: f}, true
		}
		if v.Kind == ValueString {
			f, err := strconv.ParseFloat(v.Str, 64)
			if err != nil {
				return Value{}, false
			}
			return Value{Kind: ValueFloat, Float: f}, true
		}
		return Value{}, false
	case schema.TypeString:
		if v.IsNull() {
			return Value{}, false
		}
		return Value{Kind: ValueString, Str: v.Text()}, true
	default:
		// Date, time, datetime, binary and list targets are evaluated
		// generically on materialized rows.
		return Value{}, false
	}
}
