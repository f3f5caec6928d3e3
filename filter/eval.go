package filter

import (
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Skip reports whether the row fails any enabled constraint and should be
// dropped. Relational operators fail null rows; the null-check operators
// test nullness itself. fid is the feature identifier of the row, used by
// constraints targeting the identifier.
func (c *Constraints) Skip(rec arrow.Record, row int, fid int64) bool {
	for i := range c.items {
		ct := &c.items[i]
		if !ct.enabled {
			continue
		}
		if c.skipOne(ct, rec, row, fid) {
			return true
		}
	}
	return false
}

func (c *Constraints) skipOne(ct *Constraint, rec arrow.Record, row int, fid int64) bool {
	if ct.Field == FieldFID {
		switch ct.Op {
		case OpIsNull:
			return true // the identifier is never null
		case OpIsNotNull:
			return false
		}
		cmp, ok := cmpInt(fid, ct.Value)
		return !ok || !holds(ct.Op, cmp)
	}

	col, null := resolve(rec, ct.path, row)
	if null {
		switch ct.Op {
		case OpIsNull:
			return false
		default:
			return true
		}
	}
	switch ct.Op {
	case OpIsNull:
		return true
	case OpIsNotNull:
		return false
	}

	cmp, ok := compareValue(col, row, ct.Value)
	return !ok || !holds(ct.Op, cmp)
}

// resolve walks the struct path down to the leaf array. null is true when
// the leaf, or any struct level above it, is null at row.
func resolve(rec arrow.Record, path []int, row int) (arrow.Array, bool) {
	col := rec.Column(path[0])
	for _, idx := range path[1:] {
		s, ok := col.(*array.Struct)
		if !ok {
			return nil, true
		}
		if s.IsNull(row) {
			return nil, true
		}
		col = s.Field(idx)
	}
	if col.IsNull(row) {
		return nil, true
	}
	return col, false
}

// compareValue compares the array value at row against the literal,
// returning a three-way result. The dispatch is a closed switch over the
// physical types the schema mapper admits; an unhandled array type reports
// false, which skips the row.
func compareValue(col arrow.Array, row int, v Value) (int, bool) {
	switch a := col.(type) {
	case *array.Boolean:
		b := int64(0)
		if a.Value(row) {
			b = 1
		}
		return cmpInt(b, v)
	case *array.Int8:
		return cmpInt(int64(a.Value(row)), v)
	case *array.Uint8:
		return cmpInt(int64(a.Value(row)), v)
	case *array.Int16:
		return cmpInt(int64(a.Value(row)), v)
	case *array.Uint16:
		return cmpInt(int64(a.Value(row)), v)
	case *array.Int32:
		return cmpInt(int64(a.Value(row)), v)
	case *array.Uint32:
		return cmpInt(int64(a.Value(row)), v)
	case *array.Int64:
		return cmpInt(a.Value(row), v)
	case *array.Uint64:
		// Compared in floating point, accepting precision loss above
		// 2^53 like the attribute mapping does.
		return cmpFloat(float64(a.Value(row)), v)
	case *array.Float16:
		// Expanded to float32 first; comparisons near half-float
		// denormal boundaries follow the expanded value.
		return cmpFloat(float64(a.Value(row).Float32()), v)
	case *array.Float32:
		return cmpFloat(float64(a.Value(row)), v)
	case *array.Float64:
		return cmpFloat(a.Value(row), v)
	case *array.String:
		return cmpString(a.Value(row), v)
	case *array.LargeString:
		return cmpString(a.Value(row), v)
	case *array.Decimal128:
		return cmpDecimalText(a.ValueStr(row), v)
	case *array.Decimal256:
		return cmpDecimalText(a.ValueStr(row), v)
	case *array.Dictionary:
		// Dictionary attributes carry the index as their value.
		return cmpInt(int64(a.GetValueIndex(row)), v)
	default:
		return 0, false
	}
}

// cmpInt compares an integer row value against the literal, widening to the
// literal's floating point form when needed.
func cmpInt(rv int64, v Value) (int, bool) {
	switch v.Kind {
	case ValueInt:
		switch {
		case rv < v.Int:
			return -1, true
		case rv > v.Int:
			return 1, true
		}
		return 0, true
	case ValueFloat:
		return cmpFloat(float64(rv), v)
	default:
		return 0, false
	}
}

// cmpFloat compares a floating point row value against the literal.
// NaN is incomparable, so every relational operator fails.
func cmpFloat(rv float64, v Value) (int, bool) {
	lit, ok := v.Float64()
	if !ok || rv != rv || lit != lit {
		return 0, false
	}
	switch {
	case rv < lit:
		return -1, true
	case rv > lit:
		return 1, true
	}
	return 0, true
}

// cmpString compares the raw column bytes against the literal text with
// byte-wise ordering. Value on string arrays views the backing buffer, so
// no owned copy is made.
func cmpString(rv string, v Value) (int, bool) {
	if v.Kind != ValueString {
		return 0, false
	}
	return strings.Compare(rv, v.Str), true
}

// cmpDecimalText renders a decimal value to its canonical text and compares
// it as a float64. Precision beyond float64 is lost, matching the Real
// mapping of decimal attribute fields.
func cmpDecimalText(text string, v Value) (int, bool) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return cmpFloat(f, v)
}

func holds(op ConstraintOp, cmp int) bool {
	switch op {
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	default:
		return false
	}
}
