package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parse parses a filter expression from JSON. The document is either one
// expression object or {"filters": [...]} whose entries are implicitly
// AND'ed together. Unknown expression classes parse into an
// UnsupportedExpression so the caller can fall back to generic evaluation.
func Parse(data []byte) (Expression, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var raw rawFilterDoc
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("filter: invalid JSON: %w", err)
	}
	if raw.Filters == nil {
		expr, err := parseExpression(data)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		return expr, nil
	}

	children := make([]Expression, 0, len(raw.Filters))
	for i, rawExpr := range raw.Filters {
		expr, err := parseExpression(rawExpr)
		if err != nil {
			return nil, fmt.Errorf("filter: error parsing filter %d: %w", i, err)
		}
		children = append(children, expr)
	}
	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	}
	return And(children...), nil
}

// rawFilterDoc is the intermediate structure for JSON parsing.
type rawFilterDoc struct {
	Filters []json.RawMessage `json:"filters"`
}

// rawExpression is used for two-phase parsing to determine expression class.
type rawExpression struct {
	ExpressionClass string `json:"expression_class"`
	Type            string `json:"type"`
}

// parseExpression parses a single expression from raw JSON.
func parseExpression(data json.RawMessage) (Expression, error) {
	var raw rawExpression
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}

	switch ExpressionClass(raw.ExpressionClass) {
	case ClassComparison:
		return parseComparisonExpression(data)
	case ClassConjunction:
		return parseConjunctionExpression(data)
	case ClassConstant:
		return parseConstantExpression(data)
	case ClassColumnRef:
		return parseColumnRefExpression(data)
	case ClassOperator:
		return parseOperatorExpression(data)
	case ClassBetween:
		return parseBetweenExpression(data)
	default:
		// Identified as unsupported during compilation, not rejected here.
		return &UnsupportedExpression{
			BaseExpression: BaseExpression{
				ExprClass: ExpressionClass(raw.ExpressionClass),
				ExprType:  ExpressionType(raw.Type),
			},
		}, nil
	}
}

// rawComparison is the JSON structure for comparison expressions.
type rawComparison struct {
	Type  string          `json:"type"`
	Left  json.RawMessage `json:"left"`
	Right json.RawMessage `json:"right"`
}

func parseComparisonExpression(data json.RawMessage) (*ComparisonExpression, error) {
	var raw rawComparison
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid comparison expression: %w", err)
	}

	left, err := parseExpression(raw.Left)
	if err != nil {
		return nil, fmt.Errorf("invalid left operand: %w", err)
	}
	right, err := parseExpression(raw.Right)
	if err != nil {
		return nil, fmt.Errorf("invalid right operand: %w", err)
	}

	switch ExpressionType(raw.Type) {
	case TypeCompareEqual, TypeCompareNotEqual,
		TypeCompareLessThan, TypeCompareGreaterThan,
		TypeCompareLessThanOrEqual, TypeCompareGreaterThanOrEqual:
	default:
		return nil, fmt.Errorf("unknown comparison operator %q", raw.Type)
	}

	return &ComparisonExpression{
		BaseExpression: BaseExpression{
			ExprClass: ClassComparison,
			ExprType:  ExpressionType(raw.Type),
		},
		Left:  left,
		Right: right,
	}, nil
}

// rawConjunction is the JSON structure for conjunction expressions.
type rawConjunction struct {
	Type     string            `json:"type"`
	Children []json.RawMessage `json:"children"`
}

func parseConjunctionExpression(data json.RawMessage) (*ConjunctionExpression, error) {
	var raw rawConjunction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid conjunction expression: %w", err)
	}

	switch ExpressionType(raw.Type) {
	case TypeConjunctionAnd, TypeConjunctionOr:
	default:
		return nil, fmt.Errorf("unknown conjunction %q", raw.Type)
	}

	children := make([]Expression, 0, len(raw.Children))
	for i, child := range raw.Children {
		expr, err := parseExpression(child)
		if err != nil {
			return nil, fmt.Errorf("invalid child %d: %w", i, err)
		}
		children = append(children, expr)
	}

	return &ConjunctionExpression{
		BaseExpression: BaseExpression{
			ExprClass: ClassConjunction,
			ExprType:  ExpressionType(raw.Type),
		},
		Children: children,
	}, nil
}

// rawConstant is the JSON structure for constant expressions.
type rawConstant struct {
	Value json.RawMessage `json:"value"`
}

func parseConstantExpression(data json.RawMessage) (*ConstantExpression, error) {
	var raw rawConstant
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid constant expression: %w", err)
	}
	value, err := parseValue(raw.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %w", err)
	}
	return &ConstantExpression{
		BaseExpression: BaseExpression{
			ExprClass: ClassConstant,
			ExprType:  TypeValueConstant,
		},
		Value: value,
	}, nil
}

// rawColumnRef is the JSON structure for column reference expressions.
type rawColumnRef struct {
	Name string `json:"name"`
}

func parseColumnRefExpression(data json.RawMessage) (*ColumnRefExpression, error) {
	var raw rawColumnRef
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid column ref expression: %w", err)
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("column ref requires a name")
	}
	return &ColumnRefExpression{
		BaseExpression: BaseExpression{
			ExprClass: ClassColumnRef,
			ExprType:  TypeColumnRef,
		},
		Name: raw.Name,
	}, nil
}

// rawOperator is the JSON structure for operator expressions.
type rawOperator struct {
	Type     string            `json:"type"`
	Children []json.RawMessage `json:"children"`
}

func parseOperatorExpression(data json.RawMessage) (*OperatorExpression, error) {
	var raw rawOperator
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid operator expression: %w", err)
	}

	switch ExpressionType(raw.Type) {
	case TypeOperatorNot, TypeOperatorIsNull, TypeOperatorIsNotNull:
	default:
		return nil, fmt.Errorf("unknown operator %q", raw.Type)
	}

	children := make([]Expression, 0, len(raw.Children))
	for i, child := range raw.Children {
		expr, err := parseExpression(child)
		if err != nil {
			return nil, fmt.Errorf("invalid child %d: %w", i, err)
		}
		children = append(children, expr)
	}
	if len(children) != 1 {
		return nil, fmt.Errorf("operator %s requires exactly one child, got %d", raw.Type, len(children))
	}

	return &OperatorExpression{
		BaseExpression: BaseExpression{
			ExprClass: ClassOperator,
			ExprType:  ExpressionType(raw.Type),
		},
		Children: children,
	}, nil
}

// rawBetween is the JSON structure for between expressions.
type rawBetween struct {
	Input          json.RawMessage `json:"input"`
	Lower          json.RawMessage `json:"lower"`
	Upper          json.RawMessage `json:"upper"`
	LowerInclusive *bool           `json:"lower_inclusive"`
	UpperInclusive *bool           `json:"upper_inclusive"`
}

func parseBetweenExpression(data json.RawMessage) (*BetweenExpression, error) {
	var raw rawBetween
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid between expression: %w", err)
	}

	input, err := parseExpression(raw.Input)
	if err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	lower, err := parseExpression(raw.Lower)
	if err != nil {
		return nil, fmt.Errorf("invalid lower bound: %w", err)
	}
	upper, err := parseExpression(raw.Upper)
	if err != nil {
		return nil, fmt.Errorf("invalid upper bound: %w", err)
	}

	// Bounds are inclusive unless stated otherwise.
	inclusive := func(p *bool) bool { return p == nil || *p }

	return &BetweenExpression{
		BaseExpression: BaseExpression{
			ExprClass: ClassBetween,
			ExprType:  TypeCompareBetween,
		},
		Input:          input,
		Lower:          lower,
		Upper:          upper,
		LowerInclusive: inclusive(raw.LowerInclusive),
		UpperInclusive: inclusive(raw.UpperInclusive),
	}, nil
}

// parseValue parses a literal. Numbers without a fractional part become
// integers, everything else keeps its JSON representation.
func parseValue(data json.RawMessage) (Value, error) {
	if len(data) == 0 || string(data) == "null" {
		return Value{Kind: ValueNull}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Value{}, err
	}

	switch t := v.(type) {
	case bool:
		return Value{Kind: ValueBool, Bool: t}, nil
	case string:
		return Value{Kind: ValueString, Str: t}, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Value{Kind: ValueInt, Int: i}, nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q", t.String())
		}
		return Value{Kind: ValueFloat, Float: f}, nil
	default:
		return Value{}, fmt.Errorf("unsupported literal %s", data)
	}
}
