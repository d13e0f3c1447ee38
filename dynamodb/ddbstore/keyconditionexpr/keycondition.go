// Package keyconditionexpr parses DynamoDB KeyConditionExpressions and
// matches the parsed condition against items.
//
// Parsing and matching are separate so a query parses once and then runs the
// cheap Matches check on every candidate item.
package keyconditionexpr

import (
	"bytes"
	"strings"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/attrvalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Struct representing the KeyCondition.
// Names and values are already resolved from their placeholders.
type KeyCondition struct {
	PartitionKeyName  string
	PartitionKeyValue types.AttributeValue
	SortKeyCond       *SortKeyCondition
}

type SortKeyCondition struct {
	AttributeName string
	Operator      KeyOperator
	Value         types.AttributeValue
}

type KeyOperator string

const (
	Equal          KeyOperator = "="
	LessThan       KeyOperator = "<"
	LessOrEqual    KeyOperator = "<="
	GreaterThan    KeyOperator = ">"
	GreaterOrEqual KeyOperator = ">="
	BeginsWith     KeyOperator = "begins_with"
)

// Matches reports whether item is selected by the condition. It never fails:
// a missing key attribute or a type mismatch between the item and the
// condition value is simply not a match.
func (c *KeyCondition) Matches(item map[string]types.AttributeValue) bool {
	if !compareKey(Equal, item[c.PartitionKeyName], c.PartitionKeyValue) {
		return false
	}
	if c.SortKeyCond == nil {
		return true
	}
	return compareKey(c.SortKeyCond.Operator, item[c.SortKeyCond.AttributeName], c.SortKeyCond.Value)
}

func Matches(item map[string]types.AttributeValue, cond *KeyCondition) bool {
	return cond.Matches(item)
}

func compareKey(op KeyOperator, got, want types.AttributeValue) bool {
	if op == BeginsWith {
		switch g := got.(type) {
		case *types.AttributeValueMemberS:
			w, ok := want.(*types.AttributeValueMemberS)
			return ok && strings.HasPrefix(g.Value, w.Value)
		case *types.AttributeValueMemberB:
			w, ok := want.(*types.AttributeValueMemberB)
			return ok && bytes.HasPrefix(g.Value, w.Value)
		}
		return false
	}
	c, ok := attrvalue.Compare(got, want)
	if !ok {
		return false
	}
	switch op {
	case Equal:
		return c == 0
	case LessThan:
		return c < 0
	case LessOrEqual:
		return c <= 0
	case GreaterThan:
		return c > 0
	case GreaterOrEqual:
		return c >= 0
	}
	return false
}
