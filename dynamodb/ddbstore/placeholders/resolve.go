// Package placeholders resolves #name and :value tokens against the
// ExpressionAttributeNames and ExpressionAttributeValues maps of a request.
package placeholders

import (
	"fmt"
	"strings"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ResolveName returns the attribute name a path token refers to.
// Tokens starting with '#' must be defined in names; any other token is a
// literal attribute name and is returned unchanged.
func ResolveName(name string, names map[string]string) (string, error) {
	if !IsName(name) {
		return name, nil
	}
	if names == nil {
		return "", &exprerr.PlaceholderError{Kind: exprerr.NamePlaceholder, Token: name}
	}
	resolved, ok := names[name]
	if !ok {
		return "", &exprerr.PlaceholderError{Kind: exprerr.NamePlaceholder, Token: name, MapProvided: true}
	}
	return resolved, nil
}

// ResolveValue returns the value a ':value' token refers to.
func ResolveValue(token string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	if !IsValue(token) {
		return nil, fmt.Errorf("%q is not an expression attribute value, values must start with ':'", token)
	}
	if values == nil {
		return nil, &exprerr.PlaceholderError{Kind: exprerr.ValuePlaceholder, Token: token}
	}
	v, ok := values[token]
	if !ok || v == nil {
		return nil, &exprerr.PlaceholderError{Kind: exprerr.ValuePlaceholder, Token: token, MapProvided: true}
	}
	return v, nil
}

func IsName(token string) bool {
	return strings.HasPrefix(token, "#")
}

func IsValue(token string) bool {
	return strings.HasPrefix(token, ":")
}
