// Package exprlex tokenizes DynamoDB expressions. The three expression
// grammars share one token set; each parser decides which tokens it accepts.
package exprlex

import (
	"errors"
	"strings"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/alecthomas/participle/v2/lexer"
)

var definition = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "NameRef", Pattern: `#[A-Za-z0-9_]+`},
	{Name: "ValueRef", Pattern: `:[A-Za-z0-9_]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Operator", Pattern: `<>|<=|>=|=|<|>|\+|-`},
	{Name: "Punct", Pattern: `[(),.\[\]]`},
	// Anything else is kept so unsupported-feature detection sees the
	// whole expression; Unexpected reports it afterwards.
	{Name: "Other", Pattern: `.`},
})

type Kind int

const (
	EOF Kind = iota
	NameRef
	ValueRef
	Ident
	Number
	Operator
	Punct
	Other
)

var kinds = func() map[lexer.TokenType]Kind {
	symbols := definition.Symbols()
	return map[lexer.TokenType]Kind{
		lexer.EOF:           EOF,
		symbols["NameRef"]:  NameRef,
		symbols["ValueRef"]: ValueRef,
		symbols["Ident"]:    Ident,
		symbols["Number"]:   Number,
		symbols["Operator"]: Operator,
		symbols["Punct"]:    Punct,
		symbols["Other"]:    Other,
	}
}()

var whitespace = definition.Symbols()["Whitespace"]

type Token struct {
	Kind Kind
	Text string
	// Offset is the byte offset of the token in the expression.
	Offset int
}

// Is reports whether the token is the given operator or punctuation.
func (t Token) Is(text string) bool {
	return (t.Kind == Operator || t.Kind == Punct) && t.Text == text
}

// IsKeyword reports whether the token is the identifier kw, ignoring case.
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == Ident && strings.EqualFold(t.Text, kw)
}

// IsPath reports whether the token can name an attribute.
func (t Token) IsPath() bool {
	return t.Kind == Ident || t.Kind == NameRef
}

// Tokenize splits expr into tokens, dropping whitespace. Characters outside
// the expression syntax become Other tokens. The returned slice always ends
// with an EOF token.
func Tokenize(kind exprerr.ExpressionKind, expr string) ([]Token, error) {
	lex, err := definition.LexString("", expr)
	if err != nil {
		return nil, lexError(kind, expr, err)
	}
	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, lexError(kind, expr, err)
	}
	toks := make([]Token, 0, len(raw))
	for _, r := range raw {
		if r.Type == whitespace {
			continue
		}
		toks = append(toks, Token{Kind: kinds[r.Type], Text: r.Value, Offset: r.Pos.Offset})
	}
	return toks, nil
}

// Unexpected returns a ParseError for the first character no grammar
// accepts, nil when there is none.
func Unexpected(kind exprerr.ExpressionKind, expr string, toks []Token) error {
	for _, tok := range toks {
		if tok.Kind == Other {
			return &exprerr.ParseError{Kind: kind, Reason: "unexpected character", Fragment: Fragment(expr, tok.Offset)}
		}
	}
	return nil
}

func lexError(kind exprerr.ExpressionKind, expr string, err error) error {
	var lerr *lexer.Error
	if errors.As(err, &lerr) {
		return &exprerr.ParseError{Kind: kind, Reason: "unexpected character", Fragment: Fragment(expr, lerr.Pos.Offset)}
	}
	return &exprerr.ParseError{Kind: kind, Reason: err.Error()}
}

const maxFragment = 32

// Fragment returns the expression text starting at offset, shortened for error messages.
func Fragment(expr string, offset int) string {
	if offset < 0 || offset > len(expr) {
		return ""
	}
	frag := expr[offset:]
	if len(frag) > maxFragment {
		frag = frag[:maxFragment] + "..."
	}
	return frag
}
