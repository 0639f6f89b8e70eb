package conditional

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/template"
	"github.com/expr-lang/expr"
)

type ConditionalNode struct{}

func NewConditionalNode() *ConditionalNode {
	return &ConditionalNode{}
}

func (n *ConditionalNode) Enter(_ context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, ok := req.Node.Data.(*models.ConditionalData)
	if !ok {
		return nil, errors.New("conditional node without conditional data")
	}

	outcome, err := Evaluate(data, req.Execution.Variables)
	if err != nil {
		return &protocol.Result{
			Handles: []string{protocol.HandleError, protocol.HandleFalse},
			Err:     err,
		}, nil
	}

	if outcome {
		return protocol.Route(protocol.HandleTrue), nil
	}

	return protocol.Route(protocol.HandleFalse), nil
}

func (n *ConditionalNode) Continue(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	return n.Enter(ctx, req)
}

// Evaluate applies the operator to the variable. Unknown operators are false.
func Evaluate(data *models.ConditionalData, vars map[string]any) (bool, error) {
	if data.Operator == models.OperatorExpression {
		return evaluateExpression(data.Expression, vars)
	}

	actual, exists := template.Lookup(vars, data.Variable)

	expected, err := template.RenderValue(data.Value, vars)
	if err != nil {
		return false, fmt.Errorf("failed to render comparison value: %w", err)
	}

	switch data.Operator {
	case models.OperatorExists:
		return exists && actual != nil, nil
	case models.OperatorEquals:
		return exists && equals(actual, expected), nil
	case models.OperatorNotEquals:
		return !exists || !equals(actual, expected), nil
	case models.OperatorContains:
		return exists && contains(actual, expected), nil
	case models.OperatorGreaterThan:
		a, b, ok := numbers(actual, expected)

		return exists && ok && a > b, nil
	case models.OperatorLessThan:
		a, b, ok := numbers(actual, expected)

		return exists && ok && a < b, nil
	case models.OperatorRegex:
		pattern, err := regexp.Compile(template.Stringify(expected))
		if err != nil {
			return false, fmt.Errorf("invalid regex %q: %w", template.Stringify(expected), err)
		}

		return exists && pattern.MatchString(template.Stringify(actual)), nil
	default:
		return false, nil
	}
}

func evaluateExpression(code string, vars map[string]any) (bool, error) {
	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}

	program, err := expr.Compile(code, expr.Env(env), expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("invalid expression: %w", err)
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("expression failed: %w", err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, not bool", output)
	}

	return result, nil
}

func equals(actual, expected any) bool {
	if a, b, ok := numbers(actual, expected); ok {
		return a == b
	}

	return strings.TrimSpace(template.Stringify(actual)) == strings.TrimSpace(template.Stringify(expected))
}

func contains(actual, expected any) bool {
	if list, ok := actual.([]any); ok {
		for _, item := range list {
			if equals(item, expected) {
				return true
			}
		}

		return false
	}

	return strings.Contains(template.Stringify(actual), template.Stringify(expected))
}

func numbers(a, b any) (float64, float64, bool) {
	x, ok := number(a)
	if !ok {
		return 0, 0, false
	}

	y, ok := number(b)
	if !ok {
		return 0, 0, false
	}

	return x, y, true
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return f, err == nil
	default:
		return 0, false
	}
}
