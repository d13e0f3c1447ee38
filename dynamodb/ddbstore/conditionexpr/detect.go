package conditionexpr

import (
	"slices"
	"strings"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprlex"
)

// Supported lists the constructs the evaluator implements. Every
// UnsupportedFeatureError carries its own copy.
func Supported() []string {
	return slices.Clone(supported)
}

var supported = []string{
	"attribute_exists(path)",
	"attribute_not_exists(path)",
	"begins_with(path, :value)",
	"path = :value",
	"path <> :value",
	"AND",
	"OR",
	"NOT",
	"parentheses",
}

// unsupported functions that DynamoDB accepts in condition expressions
var unsupportedFunctions = map[string]bool{
	"contains":       true,
	"size":           true,
	"attribute_type": true,
}

// detectUnsupported rejects DynamoDB syntax the evaluator does not implement.
// It runs over the whole token stream before parsing so the error does not
// depend on where parsing would have stopped.
func detectUnsupported(toks []exprlex.Token) error {
	for i, tok := range toks {
		var next exprlex.Token
		if i+1 < len(toks) {
			next = toks[i+1]
		}
		switch {
		case tok.IsKeyword("BETWEEN"):
			return unsupported("BETWEEN")
		case tok.IsKeyword("IN"):
			return unsupported("IN")
		case tok.Kind == exprlex.Ident && next.Is("(") && unsupportedFunctions[strings.ToLower(tok.Text)]:
			return unsupported(strings.ToLower(tok.Text) + "()")
		case tok.Is("["):
			return unsupported("indexed attribute paths (list[0])")
		case tok.Is("."):
			return unsupported("nested attribute paths (a.b)")
		case tok.Is("<"), tok.Is("<="), tok.Is(">"), tok.Is(">="):
			return unsupported("ordering comparison " + tok.Text)
		}
	}
	return nil
}

func unsupported(feature string) error {
	return &exprerr.UnsupportedFeatureError{
		Kind:      exprerr.ConditionExpression,
		Feature:   feature,
		Supported: Supported(),
	}
}
