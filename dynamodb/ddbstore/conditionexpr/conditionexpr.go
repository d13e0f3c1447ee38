// Package conditionexpr evaluates DynamoDB ConditionExpressions (and
// FilterExpressions, which share the grammar) against a single item.
//
// Only a subset of the DynamoDB grammar is implemented: attribute_exists,
// attribute_not_exists, begins_with, = and <> on top-level attributes,
// combined with AND, OR, NOT and parentheses. Anything else DynamoDB would
// accept fails with an exprerr.UnsupportedFeatureError instead of being
// evaluated incorrectly.
package conditionexpr

import (
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type EvalInput struct {
	ExpressionNames  map[string]string
	ExpressionValues map[string]types.AttributeValue
}

// Bind resolves every placeholder in a parsed condition, once per occurrence.
// An unresolved placeholder fails even when evaluation would never reach it.
func Bind(cond Condition, input EvalInput) (Condition, error) {
	return cond.bind(resolver{names: input.ExpressionNames, values: input.ExpressionValues})
}

// Eval parses expr and reports whether item satisfies it. A nil item is
// evaluated as an item without attributes.
func Eval(expr string, input EvalInput, item map[string]types.AttributeValue) (bool, error) {
	cond, err := Parse(expr)
	if err != nil {
		return false, err
	}
	bound, err := Bind(cond, input)
	if err != nil {
		return false, err
	}
	return bound.Eval(item), nil
}

// Evaluate checks a write condition. It returns nil when item satisfies expr
// and an *exprerr.ConditionalCheckFailedError when it does not; parse,
// unsupported feature and placeholder errors are returned unchanged.
func Evaluate(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	ok, err := Eval(expr, EvalInput{ExpressionNames: names, ExpressionValues: values}, item)
	if err != nil {
		return err
	}
	if !ok {
		return &exprerr.ConditionalCheckFailedError{}
	}
	return nil
}
