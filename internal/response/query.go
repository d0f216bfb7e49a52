package response

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// NormalizeExpression fixes shell-escaped operators in jq expressions.
// Zsh escapes ! to \! even in single quotes, breaking operators like !=.
func NormalizeExpression(expr string) string {
	return strings.ReplaceAll(expr, `\!`, `!`)
}

// Query runs a jq expression against the value. A single result is returned
// as-is; multiple results are collected into an array value.
func (v Value) Query(expression string) (Value, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return v, nil
	}

	query, err := gojq.Parse(NormalizeExpression(expression))
	if err != nil {
		return Value{}, fmt.Errorf("invalid filter expression: %w", err)
	}

	// gojq does not understand json.Number; feed it the float64 data model.
	data, err := json.Marshal(v.raw)
	if err != nil {
		return Value{}, err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return Value{}, err
	}

	results, err := runQuery(query, input)
	if err != nil {
		return Value{}, err
	}
	switch len(results) {
	case 0:
		return Value{}, nil
	case 1:
		return Value{raw: results[0]}, nil
	default:
		return Value{raw: results}, nil
	}
}

func runQuery(query *gojq.Query, data any) ([]any, error) {
	iter := query.Run(data)

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}
