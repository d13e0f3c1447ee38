package keyconditionexpr

import (
	"fmt"
	"strings"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprlex"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/placeholders"
	"github.com/acksell/ddbexpr/dynamodb/table"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// External API for the parser.
type ParseParams struct {
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]types.AttributeValue
	// TableKeys is optional. When set, the condition must name the table's
	// key attributes and the values must have the key kinds.
	TableKeys *table.PrimaryKeyDefinition
}

// Parse parses a key condition of the form
//
//	pk = :v [AND sk op :v | AND begins_with(sk, :v)]
//
// and resolves its placeholders. The result can be matched against any
// number of items.
func Parse(expr string, params ParseParams) (*KeyCondition, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, &exprerr.ParseError{Kind: exprerr.KeyConditionExpression, Reason: "expression is empty"}
	}
	toks, err := exprlex.Tokenize(exprerr.KeyConditionExpression, expr)
	if err != nil {
		return nil, err
	}
	if err := detectUnsupported(toks); err != nil {
		return nil, err
	}
	if err := exprlex.Unexpected(exprerr.KeyConditionExpression, expr, toks); err != nil {
		return nil, err
	}
	p := &parser{expr: expr, s: exprlex.NewStream(toks), params: params}

	first, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	var second *term
	if p.s.Peek().IsKeyword("AND") {
		p.s.Next()
		if second, err = p.parseTerm(); err != nil {
			return nil, err
		}
		if p.s.Peek().IsKeyword("AND") {
			return nil, p.errorf("a key condition takes at most one AND")
		}
	}
	if !p.s.AtEnd() {
		return nil, p.errorf("unexpected token %q", p.s.Peek().Text)
	}
	return p.build(first, second)
}

type term struct {
	tok   exprlex.Token
	name  string
	op    KeyOperator
	value types.AttributeValue
}

type parser struct {
	expr   string
	s      *exprlex.Stream
	params ParseParams
}

func (p *parser) parseTerm() (*term, error) {
	if p.s.Peek().IsKeyword("begins_with") && p.s.PeekAt(1).Is("(") {
		return p.parseBeginsWith()
	}
	t, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	opTok := p.s.Peek()
	switch {
	case opTok.Is("="):
		t.op = Equal
	case opTok.Is("<"):
		t.op = LessThan
	case opTok.Is("<="):
		t.op = LessOrEqual
	case opTok.Is(">"):
		t.op = GreaterThan
	case opTok.Is(">="):
		t.op = GreaterOrEqual
	default:
		return nil, p.errorf("expected comparison operator")
	}
	p.s.Next()
	if t.value, err = p.parseValue(); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) parseBeginsWith() (*term, error) {
	fnTok := p.s.Next()
	p.s.Next() // (
	t, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	if !p.s.Peek().Is(",") {
		return nil, p.errorf("begins_with takes 2 arguments")
	}
	p.s.Next()
	if t.value, err = p.parseValue(); err != nil {
		return nil, err
	}
	if !p.s.Peek().Is(")") {
		return nil, p.errorf("expected ')' to close begins_with")
	}
	p.s.Next()
	switch t.value.(type) {
	case *types.AttributeValueMemberS, *types.AttributeValueMemberB:
	default:
		return nil, p.errorAt(fnTok, "begins_with requires a string or binary prefix")
	}
	t.op = BeginsWith
	return t, nil
}

func (p *parser) parsePath() (*term, error) {
	tok := p.s.Peek()
	if !tok.IsPath() || tok.IsKeyword("AND") {
		if tok.Kind == exprlex.EOF {
			return nil, p.errorf("unexpected end of expression")
		}
		return nil, p.errorf("expected key attribute name")
	}
	p.s.Next()
	name, err := placeholders.ResolveName(tok.Text, p.params.ExpressionAttributeNames)
	if err != nil {
		return nil, err
	}
	return &term{tok: tok, name: name}, nil
}

func (p *parser) parseValue() (types.AttributeValue, error) {
	tok := p.s.Peek()
	if tok.Kind != exprlex.ValueRef {
		return nil, p.errorf("key values must be expression attribute values (:value)")
	}
	p.s.Next()
	return placeholders.ResolveValue(tok.Text, p.params.ExpressionAttributeValues)
}

// build orders the terms into partition and sort key conditions and checks
// them against the table keys when those are known.
func (p *parser) build(first, second *term) (*KeyCondition, error) {
	keys := p.params.TableKeys
	if keys != nil && second != nil && first.name == keys.SortKey.Name && second.name == keys.PartitionKey.Name {
		first, second = second, first
	}
	if first.op != Equal {
		return nil, p.errorAt(first.tok, "partition key condition must be an equality")
	}
	if second != nil && second.name == first.name {
		return nil, p.errorAt(second.tok, "attribute %q is used twice", second.name)
	}
	if keys != nil {
		if err := p.checkKey(first, keys.PartitionKey, "partition"); err != nil {
			return nil, err
		}
		if second != nil {
			if !keys.HasSortKey() {
				return nil, p.errorAt(second.tok, "table has no sort key")
			}
			if err := p.checkKey(second, keys.SortKey, "sort"); err != nil {
				return nil, err
			}
		}
	}

	cond := &KeyCondition{PartitionKeyName: first.name, PartitionKeyValue: first.value}
	if second != nil {
		cond.SortKeyCond = &SortKeyCondition{AttributeName: second.name, Operator: second.op, Value: second.value}
	}
	return cond, nil
}

func (p *parser) checkKey(t *term, def table.KeyDef, role string) error {
	if t.name != def.Name {
		return p.errorAt(t.tok, "%q is not the %s key, want %q", t.name, role, def.Name)
	}
	if t.op == BeginsWith && def.Kind == table.KeyKindN {
		return p.errorAt(t.tok, "begins_with is not supported on number key %q", def.Name)
	}
	if err := def.Validate(t.value); err != nil {
		return p.errorAt(t.tok, "%s key %q: %v", role, def.Name, err)
	}
	return nil
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
		Kind:     exprerr.KeyConditionExpression,
		Reason:   fmt.Sprintf(format, args...),
		Fragment: frag,
	}
}
