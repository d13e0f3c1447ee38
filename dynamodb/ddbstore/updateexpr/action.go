package updateexpr

import (
	"fmt"
	"strings"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/attrvalue"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprlex"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/placeholders"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type assignment struct {
	name  string
	value types.AttributeValue
}

// plan is the fully evaluated form of UpdateOperations.
type plan struct {
	set    []assignment
	remove []string
	add    []assignment
	delete []assignment
}

func (o *UpdateOperations) plan(item, values map[string]types.AttributeValue, names map[string]string) (*plan, error) {
	ctx := &evalContext{item: item, values: values, names: names}
	p := &plan{}
	for _, raw := range o.Set {
		a, skip, err := ctx.setAction(raw)
		if err != nil {
			return nil, fmt.Errorf("SET: %w", err)
		}
		if !skip {
			p.set = append(p.set, a)
		}
	}
	for _, raw := range o.Remove {
		a, err := ctx.removeAction(raw)
		if err != nil {
			return nil, fmt.Errorf("REMOVE: %w", err)
		}
		p.remove = append(p.remove, a)
	}
	for _, raw := range o.Add {
		a, err := ctx.pathValueAction(raw, "ADD")
		if err != nil {
			return nil, fmt.Errorf("ADD: %w", err)
		}
		p.add = append(p.add, a)
	}
	for _, raw := range o.Delete {
		a, err := ctx.pathValueAction(raw, "DELETE")
		if err != nil {
			return nil, fmt.Errorf("DELETE: %w", err)
		}
		if !attrvalue.IsSet(a.value) {
			return nil, fmt.Errorf("DELETE: %w", operandTypeError(raw, "DELETE takes a set"))
		}
		p.delete = append(p.delete, a)
	}
	return p, nil
}

type evalContext struct {
	item   map[string]types.AttributeValue
	values map[string]types.AttributeValue
	names  map[string]string
}

// actionParser parses one action of a clause.
type actionParser struct {
	raw string
	s   *exprlex.Stream
	ctx *evalContext
}

func (c *evalContext) parser(raw string) (*actionParser, error) {
	toks, err := exprlex.Tokenize(exprerr.UpdateExpression, raw)
	if err != nil {
		return nil, err
	}
	if err := detectUnsupported(toks); err != nil {
		return nil, err
	}
	if err := exprlex.Unexpected(exprerr.UpdateExpression, raw, toks); err != nil {
		return nil, err
	}
	return &actionParser{raw: raw, s: exprlex.NewStream(toks), ctx: c}, nil
}

// setAction evaluates "path = value". skip is set when the value is a
// top-level if_not_exists whose path already exists: the target is then
// left as it is.
func (c *evalContext) setAction(raw string) (a assignment, skip bool, err error) {
	p, err := c.parser(raw)
	if err != nil {
		return a, false, err
	}
	if a.name, err = p.path(); err != nil {
		return a, false, err
	}
	if !p.s.Peek().Is("=") {
		return a, false, p.errorf("expected '='")
	}
	p.s.Next()
	rhs, err := p.setValue()
	if err != nil {
		return a, false, err
	}
	if err := p.end(); err != nil {
		return a, false, err
	}
	if ine, ok := rhs.(*ifNotExists); ok && c.item[ine.path] != nil {
		return a, true, nil
	}
	if a.value, err = rhs.eval(c.item); err != nil {
		return a, false, err
	}
	return a, false, nil
}

func (c *evalContext) removeAction(raw string) (string, error) {
	p, err := c.parser(raw)
	if err != nil {
		return "", err
	}
	name, err := p.path()
	if err != nil {
		return "", err
	}
	return name, p.end()
}

// pathValueAction parses the "path :value" form shared by ADD and DELETE.
func (c *evalContext) pathValueAction(raw, clause string) (a assignment, err error) {
	p, err := c.parser(raw)
	if err != nil {
		return a, err
	}
	if a.name, err = p.path(); err != nil {
		return a, err
	}
	tok := p.s.Peek()
	if tok.Kind != exprlex.ValueRef {
		return a, p.errorf("%s takes a path followed by an expression attribute value", clause)
	}
	p.s.Next()
	if a.value, err = placeholders.ResolveValue(tok.Text, c.values); err != nil {
		return a, err
	}
	return a, p.end()
}

// targetName returns the attribute an action writes to.
func targetName(raw string, names map[string]string) (string, error) {
	ctx := &evalContext{names: names}
	p, err := ctx.parser(raw)
	if err != nil {
		return "", err
	}
	return p.path()
}

// setValue parses the right hand side of a SET action:
//
//	operand [('+' | '-') operand]
func (p *actionParser) setValue() (operand, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	tok := p.s.Peek()
	if !tok.Is("+") && !tok.Is("-") {
		return left, nil
	}
	p.s.Next()
	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	return &arithmetic{op: tok.Text, left: left, right: right}, nil
}

// operand := :value | path | if_not_exists(path, operand) | list_append(operand, operand)
func (p *actionParser) operand() (operand, error) {
	tok := p.s.Peek()
	switch {
	case tok.Kind == exprlex.ValueRef:
		p.s.Next()
		v, err := placeholders.ResolveValue(tok.Text, p.ctx.values)
		if err != nil {
			return nil, err
		}
		return &literal{v}, nil
	case tok.Kind == exprlex.Ident && p.s.PeekAt(1).Is("("):
		return p.function()
	case tok.IsPath():
		name, err := p.path()
		if err != nil {
			return nil, err
		}
		return &pathRef{name}, nil
	case tok.Kind == exprlex.EOF:
		return nil, p.errorf("unexpected end of action")
	}
	return nil, p.errorf("expected value, path or function")
}

func (p *actionParser) function() (operand, error) {
	fnTok := p.s.Next()
	p.s.Next() // (
	var op operand
	switch strings.ToLower(fnTok.Text) {
	case "if_not_exists":
		path, err := p.path()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		fallback, err := p.operand()
		if err != nil {
			return nil, err
		}
		op = &ifNotExists{path: path, fallback: fallback}
	case "list_append":
		left, err := p.operand()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		right, err := p.operand()
		if err != nil {
			return nil, err
		}
		op = &listAppend{left: left, right: right}
	default:
		return nil, p.errorAt(fnTok, "unknown function %q", fnTok.Text)
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return op, nil
}

func (p *actionParser) path() (string, error) {
	tok := p.s.Peek()
	if !tok.IsPath() {
		if tok.Kind == exprlex.EOF {
			return "", p.errorf("unexpected end of action")
		}
		return "", p.errorf("expected attribute path")
	}
	p.s.Next()
	return placeholders.ResolveName(tok.Text, p.ctx.names)
}

func (p *actionParser) expect(punct string) error {
	if !p.s.Peek().Is(punct) {
		return p.errorf("expected '%s'", punct)
	}
	p.s.Next()
	return nil
}

func (p *actionParser) end() error {
	if !p.s.AtEnd() {
		return p.errorf("unexpected token %q", p.s.Peek().Text)
	}
	return nil
}

func (p *actionParser) errorf(format string, args ...any) error {
	return p.errorAt(p.s.Peek(), format, args...)
}

func (p *actionParser) errorAt(tok exprlex.Token, format string, args ...any) error {
	return errorAt(p.raw, tok, format, args...)
}

func errorAt(expr string, tok exprlex.Token, format string, args ...any) error {
	frag := exprlex.Fragment(expr, tok.Offset)
	if tok.Kind == exprlex.EOF {
		frag = expr
	}
	return &exprerr.ParseError{
		Kind:     exprerr.UpdateExpression,
		Reason:   fmt.Sprintf(format, args...),
		Fragment: frag,
	}
}

func operandTypeError(fragment, reason string) error {
	return &exprerr.ParseError{
		Kind:     exprerr.UpdateExpression,
		Reason:   "incorrect operand type: " + reason,
		Fragment: fragment,
	}
}
