package keyconditionexpr

import (
	"slices"
	"strings"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprlex"
)

// Supported lists the key condition forms the parser accepts.
func Supported() []string {
	return slices.Clone(supported)
}

var supported = []string{
	"pk = :value",
	"pk = :value AND sk = :value",
	"pk = :value AND sk < :value",
	"pk = :value AND sk <= :value",
	"pk = :value AND sk > :value",
	"pk = :value AND sk >= :value",
	"pk = :value AND begins_with(sk, :prefix)",
}

var rejectedFunctions = map[string]bool{
	"attribute_exists":     true,
	"attribute_not_exists": true,
	"contains":             true,
	"size":                 true,
	"attribute_type":       true,
}

// detectUnsupported rejects syntax that is valid elsewhere in DynamoDB but
// never in a key condition, naming the offending construct.
func detectUnsupported(toks []exprlex.Token) error {
	for i, tok := range toks {
		var prev, next exprlex.Token
		if i > 0 {
			prev = toks[i-1]
		}
		if i+1 < len(toks) {
			next = toks[i+1]
		}
		switch {
		case tok.IsKeyword("OR"):
			return unsupported("OR")
		case tok.IsKeyword("NOT"):
			return unsupported("NOT")
		case tok.IsKeyword("BETWEEN"):
			return unsupported("BETWEEN")
		case tok.IsKeyword("IN"):
			return unsupported("IN")
		case tok.Is("<>"):
			return unsupported("<> comparison")
		case tok.Kind == exprlex.Ident && next.Is("(") && rejectedFunctions[strings.ToLower(tok.Text)]:
			return unsupported(strings.ToLower(tok.Text) + "()")
		case tok.Is("(") && !prev.IsKeyword("begins_with"):
			return unsupported("parentheses")
		case tok.Is("["):
			return unsupported("indexed attribute paths (list[0])")
		case tok.Is("."):
			return unsupported("nested attribute paths (a.b)")
		}
	}
	return nil
}

func unsupported(feature string) error {
	return &exprerr.UnsupportedFeatureError{
		Kind:      exprerr.KeyConditionExpression,
		Feature:   feature,
		Supported: Supported(),
	}
}
