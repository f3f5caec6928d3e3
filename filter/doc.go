// Package filter parses attribute filter expressions and compiles them into
// flat per-column constraints evaluated directly against Arrow arrays.
//
// # Expression trees
//
// Filters are boolean expression trees of comparisons, conjunctions, null
// checks and BETWEEN ranges. They can be built programmatically:
//
//	expr := filter.And(
//	    filter.Ge(filter.Col("population"), filter.Lit(10000)),
//	    filter.IsNotNull(filter.Col("name")),
//	)
//
// or parsed from the JSON wire form used by the flight transport:
//
//	{"expression_class": "COMPARISON", "type": "COMPARE_EQUAL",
//	 "left":  {"expression_class": "COLUMN_REF", "name": "name"},
//	 "right": {"expression_class": "CONSTANT", "value": "Berlin"}}
//
// # Compilation
//
// Compile translates the pushdown-eligible part of a tree into constraints:
// top-level AND conjunctions decompose, column-versus-constant comparisons
// qualify (with the operator flipped when the column is on the right), and
// literals are coerced to the target field type. Anything else leaves the
// result incomplete and is evaluated by Match on materialized rows.
//
// # Evaluation
//
// Constraints.Skip tests one row of a record batch without materializing
// it. Null rows fail every relational operator, integer values widen before
// comparing, strings compare byte-wise against the raw column bytes, and
// decimals go through their canonical text form into float64.
package filter
