package conditionexpr

import (
	"fmt"
	"strings"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/attrvalue"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/placeholders"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Condition is a node of a parsed condition expression.
//
// Parsed trees hold placeholder tokens only. bind returns a copy with every
// placeholder resolved, and Eval is only called on bound trees.
type Condition interface {
	Eval(item map[string]types.AttributeValue) bool
	String() string
	bind(r resolver) (Condition, error)
}

// Operand is a path or a value on either side of a comparison or function call.
type Operand interface {
	value(item map[string]types.AttributeValue) types.AttributeValue
	String() string
	bind(r resolver) (Operand, error)
}

type resolver struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

type OrCondition struct {
	Left, Right Condition
}

func (c *OrCondition) Eval(item map[string]types.AttributeValue) bool {
	return c.Left.Eval(item) || c.Right.Eval(item)
}

func (c *OrCondition) String() string {
	return fmt.Sprintf("(%s OR %s)", c.Left, c.Right)
}

func (c *OrCondition) bind(r resolver) (Condition, error) {
	l, err := c.Left.bind(r)
	if err != nil {
		return nil, err
	}
	rt, err := c.Right.bind(r)
	if err != nil {
		return nil, err
	}
	return &OrCondition{l, rt}, nil
}

type AndCondition struct {
	Left, Right Condition
}

func (c *AndCondition) Eval(item map[string]types.AttributeValue) bool {
	return c.Left.Eval(item) && c.Right.Eval(item)
}

func (c *AndCondition) String() string {
	return fmt.Sprintf("(%s AND %s)", c.Left, c.Right)
}

func (c *AndCondition) bind(r resolver) (Condition, error) {
	l, err := c.Left.bind(r)
	if err != nil {
		return nil, err
	}
	rt, err := c.Right.bind(r)
	if err != nil {
		return nil, err
	}
	return &AndCondition{l, rt}, nil
}

type NotCondition struct {
	Cond Condition
}

func (c *NotCondition) Eval(item map[string]types.AttributeValue) bool {
	return !c.Cond.Eval(item)
}

func (c *NotCondition) String() string {
	return fmt.Sprintf("(NOT %s)", c.Cond)
}

func (c *NotCondition) bind(r resolver) (Condition, error) {
	inner, err := c.Cond.bind(r)
	if err != nil {
		return nil, err
	}
	return &NotCondition{inner}, nil
}

// Comparison is `left op right` with op one of = and <>.
type Comparison struct {
	Operator    attrvalue.Operator
	Left, Right Operand
}

func (c *Comparison) Eval(item map[string]types.AttributeValue) bool {
	return attrvalue.Satisfies(c.Operator, c.Left.value(item), c.Right.value(item))
}

func (c *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Operator, c.Right)
}

func (c *Comparison) bind(r resolver) (Condition, error) {
	l, err := c.Left.bind(r)
	if err != nil {
		return nil, err
	}
	rt, err := c.Right.bind(r)
	if err != nil {
		return nil, err
	}
	return &Comparison{Operator: c.Operator, Left: l, Right: rt}, nil
}

const (
	fnAttributeExists    = "attribute_exists"
	fnAttributeNotExists = "attribute_not_exists"
	fnBeginsWith         = "begins_with"
)

// arity of the supported functions
var functions = map[string]int{
	fnAttributeExists:    1,
	fnAttributeNotExists: 1,
	fnBeginsWith:         2,
}

type FunctionCall struct {
	Name string
	Args []Operand
}

func (f *FunctionCall) Eval(item map[string]types.AttributeValue) bool {
	switch f.Name {
	case fnAttributeExists:
		return f.Args[0].value(item) != nil
	case fnAttributeNotExists:
		return f.Args[0].value(item) == nil
	case fnBeginsWith:
		str, ok := f.Args[0].value(item).(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		prefix, ok := f.Args[1].value(item).(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		return strings.HasPrefix(str.Value, prefix.Value)
	}
	return false
}

func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(args, ", "))
}

func (f *FunctionCall) bind(r resolver) (Condition, error) {
	args := make([]Operand, len(f.Args))
	for i, a := range f.Args {
		b, err := a.bind(r)
		if err != nil {
			return nil, err
		}
		args[i] = b
	}
	return &FunctionCall{Name: f.Name, Args: args}, nil
}

// AttributePath is a top-level attribute, either literal or a #name placeholder.
type AttributePath struct {
	Token string
	// Name is set once bound.
	Name string
}

func (p *AttributePath) value(item map[string]types.AttributeValue) types.AttributeValue {
	return item[p.Name]
}

func (p *AttributePath) String() string { return p.Token }

func (p *AttributePath) bind(r resolver) (Operand, error) {
	name, err := placeholders.ResolveName(p.Token, r.names)
	if err != nil {
		return nil, err
	}
	return &AttributePath{Token: p.Token, Name: name}, nil
}

// ValueRef is a :value placeholder.
type ValueRef struct {
	Token string
	// Value is set once bound.
	Value types.AttributeValue
}

func (v *ValueRef) value(map[string]types.AttributeValue) types.AttributeValue {
	return v.Value
}

func (v *ValueRef) String() string { return v.Token }

func (v *ValueRef) bind(r resolver) (Operand, error) {
	val, err := placeholders.ResolveValue(v.Token, r.values)
	if err != nil {
		return nil, err
	}
	return &ValueRef{Token: v.Token, Value: val}, nil
}
