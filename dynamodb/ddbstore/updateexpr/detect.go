package updateexpr

import (
	"slices"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprlex"
)

// Supported lists the update actions the evaluator implements.
func Supported() []string {
	return slices.Clone(supported)
}

var supported = []string{
	"SET path = :value",
	"SET path = otherPath",
	"SET path = operand + operand",
	"SET path = operand - operand",
	"SET path = if_not_exists(otherPath, :value)",
	"SET path = list_append(operand, operand)",
	"REMOVE path",
	"ADD path :value",
	"DELETE path :set",
}

func detectUnsupported(toks []exprlex.Token) error {
	for _, tok := range toks {
		switch {
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
		Kind:      exprerr.UpdateExpression,
		Feature:   feature,
		Supported: Supported(),
	}
}
