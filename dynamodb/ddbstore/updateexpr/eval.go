package updateexpr

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/attrvalue"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// operand is the right hand side of a SET action or one of its arguments.
// Operands are evaluated against the item as it was before the update.
type operand interface {
	eval(item map[string]types.AttributeValue) (types.AttributeValue, error)
}

type literal struct {
	value types.AttributeValue
}

func (l *literal) eval(map[string]types.AttributeValue) (types.AttributeValue, error) {
	return l.value, nil
}

type pathRef struct {
	name string
}

func (r *pathRef) eval(item map[string]types.AttributeValue) (types.AttributeValue, error) {
	v := item[r.name]
	if v == nil {
		return nil, &exprerr.ParseError{
			Kind:     exprerr.UpdateExpression,
			Reason:   "the expression refers to an attribute that does not exist in the item",
			Fragment: r.name,
		}
	}
	return v, nil
}

type ifNotExists struct {
	path     string
	fallback operand
}

func (f *ifNotExists) eval(item map[string]types.AttributeValue) (types.AttributeValue, error) {
	if v := item[f.path]; v != nil {
		return v, nil
	}
	return f.fallback.eval(item)
}

type listAppend struct {
	left, right operand
}

func (f *listAppend) eval(item map[string]types.AttributeValue) (types.AttributeValue, error) {
	left, err := f.left.eval(item)
	if err != nil {
		return nil, err
	}
	right, err := f.right.eval(item)
	if err != nil {
		return nil, err
	}
	l, lok := left.(*types.AttributeValueMemberL)
	r, rok := right.(*types.AttributeValueMemberL)
	if !lok || !rok {
		return nil, operandTypeError("list_append", "both arguments must be lists")
	}
	return &types.AttributeValueMemberL{Value: slices.Concat(l.Value, r.Value)}, nil
}

type arithmetic struct {
	op          string
	left, right operand
}

func (a *arithmetic) eval(item map[string]types.AttributeValue) (types.AttributeValue, error) {
	left, err := a.left.eval(item)
	if err != nil {
		return nil, err
	}
	right, err := a.right.eval(item)
	if err != nil {
		return nil, err
	}
	l, lok := left.(*types.AttributeValueMemberN)
	r, rok := right.(*types.AttributeValueMemberN)
	if !lok || !rok {
		return nil, operandTypeError(a.op, "arithmetic needs two numbers")
	}
	var sum string
	if a.op == "+" {
		sum, err = attrvalue.AddNumbers(l.Value, r.Value)
	} else {
		sum, err = attrvalue.SubtractNumbers(l.Value, r.Value)
	}
	if err != nil {
		return nil, err
	}
	return &types.AttributeValueMemberN{Value: sum}, nil
}

// add implements ADD: numbers are summed and sets are unioned. A missing
// attribute is initialized to the operand whatever its type; a present one
// must combine with it.
func add(item map[string]types.AttributeValue, name string, value types.AttributeValue) error {
	current := item[name]
	if current == nil {
		item[name] = value
		return nil
	}
	switch cur := current.(type) {
	case *types.AttributeValueMemberN:
		v, ok := value.(*types.AttributeValueMemberN)
		if !ok {
			return addTypeError(name, current, value)
		}
		sum, err := attrvalue.AddNumbers(cur.Value, v.Value)
		if err != nil {
			return fmt.Errorf("ADD %s: %w", name, err)
		}
		item[name] = &types.AttributeValueMemberN{Value: sum}
	case *types.AttributeValueMemberSS:
		v, ok := value.(*types.AttributeValueMemberSS)
		if !ok {
			return addTypeError(name, current, value)
		}
		item[name] = &types.AttributeValueMemberSS{Value: union(cur.Value, v.Value, stringsEqual)}
	case *types.AttributeValueMemberNS:
		v, ok := value.(*types.AttributeValueMemberNS)
		if !ok {
			return addTypeError(name, current, value)
		}
		item[name] = &types.AttributeValueMemberNS{Value: union(cur.Value, v.Value, numbersEqual)}
	case *types.AttributeValueMemberBS:
		v, ok := value.(*types.AttributeValueMemberBS)
		if !ok {
			return addTypeError(name, current, value)
		}
		item[name] = &types.AttributeValueMemberBS{Value: union(cur.Value, v.Value, bytes.Equal)}
	default:
		return addTypeError(name, current, value)
	}
	return nil
}

func addTypeError(name string, current, value types.AttributeValue) error {
	return operandTypeError(name, fmt.Sprintf("cannot ADD %s to %s", attrvalue.TypeOf(value), attrvalue.TypeOf(current)))
}

// deleteElements implements DELETE. Removing the last element removes the
// attribute, since an empty set cannot be stored. Anything but a set of the
// operand's kind is left unchanged.
func deleteElements(item map[string]types.AttributeValue, name string, value types.AttributeValue) error {
	var remaining int
	switch cur := item[name].(type) {
	case *types.AttributeValueMemberSS:
		v, ok := value.(*types.AttributeValueMemberSS)
		if !ok {
			return nil
		}
		kept := difference(cur.Value, v.Value, stringsEqual)
		item[name], remaining = &types.AttributeValueMemberSS{Value: kept}, len(kept)
	case *types.AttributeValueMemberNS:
		v, ok := value.(*types.AttributeValueMemberNS)
		if !ok {
			return nil
		}
		kept := difference(cur.Value, v.Value, numbersEqual)
		item[name], remaining = &types.AttributeValueMemberNS{Value: kept}, len(kept)
	case *types.AttributeValueMemberBS:
		v, ok := value.(*types.AttributeValueMemberBS)
		if !ok {
			return nil
		}
		kept := difference(cur.Value, v.Value, bytes.Equal)
		item[name], remaining = &types.AttributeValueMemberBS{Value: kept}, len(kept)
	default:
		return nil
	}
	if remaining == 0 {
		delete(item, name)
	}
	return nil
}

func stringsEqual(a, b string) bool { return a == b }

func numbersEqual(a, b string) bool {
	c, ok := attrvalue.CompareNumbers(a, b)
	return ok && c == 0
}

// union keeps the order of current and appends the new elements of add.
func union[E any](current, add []E, eq func(a, b E) bool) []E {
	out := slices.Clone(current)
	for _, e := range add {
		if !slices.ContainsFunc(out, func(x E) bool { return eq(x, e) }) {
			out = append(out, e)
		}
	}
	return out
}

func difference[E any](current, remove []E, eq func(a, b E) bool) []E {
	out := make([]E, 0, len(current))
	for _, e := range current {
		if !slices.ContainsFunc(remove, func(x E) bool { return eq(x, e) }) {
			out = append(out, e)
		}
	}
	return out
}
