package filter

import (
	"testing"
)

func TestParseComparison(t *testing.T) {
	data := []byte(`{
		"expression_class": "COMPARISON",
		"type": "COMPARE_EQUAL",
		"left":  {"expression_class": "COLUMN_REF", "name": "name"},
		"right": {"expression_class": "CONSTANT", "value": "Berlin"}
	}`)

	expr, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cmp, ok := expr.(*ComparisonExpression)
	if !ok {
		t.Fatalf("expected ComparisonExpression, got %T", expr)
	}
	if cmp.Type() != TypeCompareEqual {
		t.Errorf("expected COMPARE_EQUAL, got %s", cmp.Type())
	}
	col, ok := cmp.Left.(*ColumnRefExpression)
	if !ok || col.Name != "name" {
		t.Errorf("unexpected left operand: %#v", cmp.Left)
	}
	lit, ok := cmp.Right.(*ConstantExpression)
	if !ok || lit.Value.Kind != ValueString || lit.Value.Str != "Berlin" {
		t.Errorf("unexpected right operand: %#v", cmp.Right)
	}
}

func TestParseFiltersList(t *testing.T) {
	data := []byte(`{"filters": [
		{"expression_class": "COMPARISON", "type": "COMPARE_GREATERTHAN",
		 "left": {"expression_class": "COLUMN_REF", "name": "pop"},
		 "right": {"expression_class": "CONSTANT", "value": 1000}},
		{"expression_class": "OPERATOR", "type": "OPERATOR_IS_NOT_NULL",
		 "children": [{"expression_class": "COLUMN_REF", "name": "name"}]}
	]}`)

	expr, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	conj, ok := expr.(*ConjunctionExpression)
	if !ok {
		t.Fatalf("expected implicit AND conjunction, got %T", expr)
	}
	if conj.Type() != TypeConjunctionAnd {
		t.Errorf("expected CONJUNCTION_AND, got %s", conj.Type())
	}
	if len(conj.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(conj.Children))
	}
}

func TestParseValueKinds(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  Value
	}{
		{"integer", "42", Value{Kind: ValueInt, Int: 42}},
		{"negative", "-7", Value{Kind: ValueInt, Int: -7}},
		{"float", "3.5", Value{Kind: ValueFloat, Float: 3.5}},
		{"exponent", "1e20", Value{Kind: ValueFloat, Float: 1e20}},
		{"string", `"abc"`, Value{Kind: ValueString, Str: "abc"}},
		{"bool", "true", Value{Kind: ValueBool, Bool: true}},
		{"null", "null", Value{Kind: ValueNull}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(`{"expression_class": "CONSTANT", "value": ` + tt.value + `}`)
			expr, err := Parse(data)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			lit := expr.(*ConstantExpression)
			if lit.Value != tt.want {
				t.Errorf("got %#v, want %#v", lit.Value, tt.want)
			}
		})
	}
}

func TestParseBetweenDefaultsInclusive(t *testing.T) {
	data := []byte(`{
		"expression_class": "BETWEEN",
		"input": {"expression_class": "COLUMN_REF", "name": "pop"},
		"lower": {"expression_class": "CONSTANT", "value": 1},
		"upper": {"expression_class": "CONSTANT", "value": 10},
		"upper_inclusive": false
	}`)

	expr, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	btw, ok := expr.(*BetweenExpression)
	if !ok {
		t.Fatalf("expected BetweenExpression, got %T", expr)
	}
	if !btw.LowerInclusive {
		t.Error("lower bound should default to inclusive")
	}
	if btw.UpperInclusive {
		t.Error("upper bound was declared exclusive")
	}
}

func TestParseUnknownClass(t *testing.T) {
	data := []byte(`{"expression_class": "WINDOW", "type": "WINDOW_RANK"}`)
	expr, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := expr.(*UnsupportedExpression); !ok {
		t.Fatalf("expected UnsupportedExpression, got %T", expr)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{`},
		{"unknown comparison op", `{"expression_class": "COMPARISON", "type": "COMPARE_LIKE",
			"left": {"expression_class": "COLUMN_REF", "name": "a"},
			"right": {"expression_class": "CONSTANT", "value": 1}}`},
		{"column without name", `{"expression_class": "COLUMN_REF"}`},
		{"operator child count", `{"expression_class": "OPERATOR", "type": "OPERATOR_NOT", "children": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestNormalizeBetween(t *testing.T) {
	btw := Between(Col("pop"), Lit(10), Lit(20))
	btw.UpperInclusive = false

	norm := Normalize(btw)
	conj, ok := norm.(*ConjunctionExpression)
	if !ok || conj.Type() != TypeConjunctionAnd {
		t.Fatalf("expected AND conjunction, got %T", norm)
	}
	if len(conj.Children) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(conj.Children))
	}
	if got := conj.Children[0].(*ComparisonExpression).Type(); got != TypeCompareGreaterThanOrEqual {
		t.Errorf("lower bound: got %s, want >=", got)
	}
	if got := conj.Children[1].(*ComparisonExpression).Type(); got != TypeCompareLessThan {
		t.Errorf("exclusive upper bound: got %s, want <", got)
	}
}

func TestNormalizeNotNull(t *testing.T) {
	norm := Normalize(Not(IsNull(Col("name"))))
	op, ok := norm.(*OperatorExpression)
	if !ok || op.Type() != TypeOperatorIsNotNull {
		t.Fatalf("NOT(IS NULL) should normalize to IS NOT NULL, got %#v", norm)
	}
	norm = Normalize(Not(IsNotNull(Col("name"))))
	op, ok = norm.(*OperatorExpression)
	if !ok || op.Type() != TypeOperatorIsNull {
		t.Fatalf("NOT(IS NOT NULL) should normalize to IS NULL, got %#v", norm)
	}
}
