// Package updateexpr provides parsing and evaluation of DynamoDB UpdateExpressions.
//
// UpdateExpressions have the following structure, clauses in any order and
// each at most once:
//
//	[SET action [, action] ...]
//	[REMOVE path [, path] ...]
//	[ADD path value [, path value] ...]
//	[DELETE path value [, path value] ...]
//
// Paths are top-level attribute names. Clauses are always applied in the
// order SET, REMOVE, ADD, DELETE.
package updateexpr

import (
	"maps"
	"strings"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprlex"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UpdateOperations holds the raw actions of each clause, split on top-level
// commas. Actions are parsed further when applied.
type UpdateOperations struct {
	Set    []string
	Remove []string
	Add    []string
	Delete []string
}

// Parse splits an update expression into its clauses.
func Parse(expr string) (*UpdateOperations, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, &exprerr.ParseError{Kind: exprerr.UpdateExpression, Reason: "expression is empty"}
	}
	toks, err := exprlex.Tokenize(exprerr.UpdateExpression, expr)
	if err != nil {
		return nil, err
	}
	if err := detectUnsupported(toks); err != nil {
		return nil, err
	}
	if err := exprlex.Unexpected(exprerr.UpdateExpression, expr, toks); err != nil {
		return nil, err
	}

	type clause struct {
		keyword string
		start   int // index of the keyword token
	}
	var clauses []clause
	seen := make(map[string]bool)
	depth := 0
	for i, tok := range toks {
		switch {
		case tok.Is("("):
			depth++
		case tok.Is(")"):
			depth--
			if depth < 0 {
				return nil, errorAt(expr, tok, "unbalanced ')'")
			}
		case depth == 0 && isClauseKeyword(tok):
			kw := strings.ToUpper(tok.Text)
			if seen[kw] {
				return nil, errorAt(expr, tok, "%s clause appears more than once", kw)
			}
			seen[kw] = true
			clauses = append(clauses, clause{keyword: kw, start: i})
		}
	}
	if depth != 0 {
		return nil, &exprerr.ParseError{Kind: exprerr.UpdateExpression, Reason: "unbalanced '('", Fragment: expr}
	}
	if len(clauses) == 0 || clauses[0].start != 0 {
		return nil, errorAt(expr, toks[0], "expected SET, REMOVE, ADD or DELETE")
	}

	ops := &UpdateOperations{}
	for i, c := range clauses {
		end := len(toks) - 1 // EOF
		if i+1 < len(clauses) {
			end = clauses[i+1].start
		}
		actions, err := splitActions(expr, c.keyword, toks[c.start:end])
		if err != nil {
			return nil, err
		}
		switch c.keyword {
		case "SET":
			ops.Set = actions
		case "REMOVE":
			ops.Remove = actions
		case "ADD":
			ops.Add = actions
		case "DELETE":
			ops.Delete = actions
		}
	}
	return ops, nil
}

func isClauseKeyword(tok exprlex.Token) bool {
	return tok.IsKeyword("SET") || tok.IsKeyword("REMOVE") || tok.IsKeyword("ADD") || tok.IsKeyword("DELETE")
}

// splitActions cuts a clause, keyword token first, into its comma separated
// actions. Commas inside function arguments do not split.
func splitActions(expr, keyword string, toks []exprlex.Token) ([]string, error) {
	body := toks[1:]
	if len(body) == 0 {
		return nil, errorAt(expr, toks[0], "%s clause has no actions", keyword)
	}
	var actions []string
	first, depth := 0, 0
	for i := 0; i <= len(body); i++ {
		if i < len(body) {
			tok := body[i]
			switch {
			case tok.Is("("):
				depth++
				continue
			case tok.Is(")"):
				depth--
				continue
			case !tok.Is(",") || depth > 0:
				continue
			}
		}
		if i == first {
			at := toks[0]
			if i < len(body) {
				at = body[i]
			}
			return nil, errorAt(expr, at, "empty action in %s clause", keyword)
		}
		last := body[i-1]
		actions = append(actions, expr[body[first].Offset:last.Offset+len(last.Text)])
		first = i + 1
	}
	return actions, nil
}

// Apply parses expr and applies it to a copy of item.
func Apply(item map[string]types.AttributeValue, expr string, values map[string]types.AttributeValue, names map[string]string) (map[string]types.AttributeValue, error) {
	ops, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return ops.Apply(item, values, names)
}

// Apply returns a new item with the operations applied. item is never
// modified. Every action is parsed, resolved and evaluated against the
// original item before the copy is changed, so an error never leaves a
// partial update behind.
func (o *UpdateOperations) Apply(item map[string]types.AttributeValue, values map[string]types.AttributeValue, names map[string]string) (map[string]types.AttributeValue, error) {
	plan, err := o.plan(item, values, names)
	if err != nil {
		return nil, err
	}

	out := make(map[string]types.AttributeValue, len(item)+len(plan.set))
	maps.Copy(out, item)

	for _, a := range plan.set {
		out[a.name] = a.value
	}
	for _, name := range plan.remove {
		delete(out, name)
	}
	for _, a := range plan.add {
		if err := add(out, a.name, a.value); err != nil {
			return nil, err
		}
	}
	for _, a := range plan.delete {
		if err := deleteElements(out, a.name, a.value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdatedAttributes returns the names of the top-level attributes the
// operations touch, in clause order without duplicates.
func (o *UpdateOperations) UpdatedAttributes(names map[string]string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, group := range [][]string{o.Set, o.Remove, o.Add, o.Delete} {
		for _, action := range group {
			name, err := targetName(action, names)
			if err != nil {
				return nil, err
			}
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out, nil
}
