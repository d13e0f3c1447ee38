package conditionexpr

import (
	"fmt"
	"strings"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/attrvalue"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprlex"
)

// Parse parses a condition expression into its AST.
//
// Grammar, loosest binding first:
//
//	Expr    := And ('OR' And)*
//	And     := Not ('AND' Not)*
//	Not     := 'NOT' Primary | Primary
//	Primary := '(' Expr ')' | FunctionCall | Comparison
//
// Unsupported constructs are reported before any grammar error.
func Parse(expr string) (Condition, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, &exprerr.ParseError{Kind: exprerr.ConditionExpression, Reason: "expression is empty"}
	}
	toks, err := exprlex.Tokenize(exprerr.ConditionExpression, expr)
	if err != nil {
		return nil, err
	}
	if err := detectUnsupported(toks); err != nil {
		return nil, err
	}
	if err := exprlex.Unexpected(exprerr.ConditionExpression, expr, toks); err != nil {
		return nil, err
	}
	p := &parser{expr: expr, s: exprlex.NewStream(toks)}
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.s.AtEnd() {
		return nil, p.errorf("unexpected token %q", p.s.Peek().Text)
	}
	return cond, nil
}

type parser struct {
	expr string
	s    *exprlex.Stream
}

func (p *parser) parseOr() (Condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.s.Peek().IsKeyword("OR") {
		p.s.Next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &OrCondition{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Condition, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.s.Peek().IsKeyword("AND") {
		p.s.Next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &AndCondition{left, right}
	}
	return left, nil
}

func (p *parser) parseNot() (Condition, error) {
	if p.s.Peek().IsKeyword("NOT") {
		p.s.Next()
		cond, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &NotCondition{cond}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Condition, error) {
	tok := p.s.Peek()
	switch {
	case tok.Is("("):
		p.s.Next()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.s.Peek().Is(")") {
			return nil, p.errorf("expected ')'")
		}
		p.s.Next()
		return cond, nil
	case tok.Kind == exprlex.Ident && p.s.PeekAt(1).Is("("):
		return p.parseFunctionCall()
	default:
		return p.parseComparison()
	}
}

func (p *parser) parseFunctionCall() (Condition, error) {
	nameTok := p.s.Next()
	name := strings.ToLower(nameTok.Text)
	arity, ok := functions[name]
	if !ok {
		return nil, p.errorAt(nameTok, "unknown function %q", nameTok.Text)
	}
	p.s.Next() // (

	var args []Operand
	for {
		arg, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.s.Peek().Is(",") {
			break
		}
		p.s.Next()
	}
	if !p.s.Peek().Is(")") {
		return nil, p.errorf("expected ')' to close %s", name)
	}
	p.s.Next()

	if len(args) != arity {
		return nil, p.errorAt(nameTok, "%s takes %d argument(s), got %d", name, arity, len(args))
	}
	if _, isPath := args[0].(*AttributePath); !isPath {
		return nil, p.errorAt(nameTok, "first argument of %s must be an attribute path", name)
	}
	return &FunctionCall{Name: name, Args: args}, nil
}

func (p *parser) parseComparison() (Condition, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	opTok := p.s.Peek()
	var op attrvalue.Operator
	switch {
	case opTok.Is("="):
		op = attrvalue.Equals
	case opTok.Is("<>"):
		op = attrvalue.NotEquals
	default:
		return nil, p.errorf("expected comparison operator")
	}
	p.s.Next()
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &Comparison{Operator: op, Left: left, Right: right}, nil
}

var keywords = map[string]bool{"AND": true, "OR": true, "NOT": true}

func (p *parser) parseOperand() (Operand, error) {
	tok := p.s.Peek()
	switch {
	case tok.Kind == exprlex.ValueRef:
		p.s.Next()
		return &ValueRef{Token: tok.Text}, nil
	case tok.Kind == exprlex.NameRef:
		p.s.Next()
		return &AttributePath{Token: tok.Text}, nil
	case tok.Kind == exprlex.Ident && !keywords[strings.ToUpper(tok.Text)]:
		p.s.Next()
		return &AttributePath{Token: tok.Text}, nil
	case tok.Kind == exprlex.EOF:
		return nil, p.errorf("unexpected end of expression")
	default:
		return nil, p.errorf("expected attribute path or value")
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return p.errorAt(p.s.Peek(), format, args...)
}

func (p *parser) errorAt(tok exprlex.Token, format string, args ...any) error {
	frag := exprlex.Fragment(p.expr, tok.Offset)
	if tok.Kind == exprlex.EOF {
		frag = p.expr
	}
	return &exprerr.ParseError{
		Kind:     exprerr.ConditionExpression,
		Reason:   fmt.Sprintf(format, args...),
		Fragment: frag,
	}
}
