// Package exprerr holds the errors shared by the condition, key condition and
// update expression evaluators.
//
// Every evaluator error falls in one of four categories, each matchable with
// errors.Is against the sentinels below:
//
//   - ErrUnsupportedFeature: the expression uses DynamoDB syntax this fake does not implement.
//   - ErrConditionalCheckFailed: a supported condition evaluated to false.
//   - ErrParse: the expression is malformed.
//   - ErrUnresolvedPlaceholder: a #name or :value placeholder has no definition.
package exprerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

var (
	ErrUnsupportedFeature     = errors.New("unsupported expression feature")
	ErrConditionalCheckFailed = errors.New("conditional check failed")
	ErrParse                  = errors.New("invalid expression")
	ErrUnresolvedPlaceholder  = errors.New("unresolved expression placeholder")
)

// ExpressionKind names the mini-language an error originated from.
type ExpressionKind string

const (
	ConditionExpression    ExpressionKind = "ConditionExpression"
	KeyConditionExpression ExpressionKind = "KeyConditionExpression"
	UpdateExpression       ExpressionKind = "UpdateExpression"
)

// UnsupportedFeatureError is returned before any evaluation when an expression
// uses a construct the evaluator refuses to interpret.
type UnsupportedFeatureError struct {
	Kind      ExpressionKind
	Feature   string
	Supported []string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported %s feature: %s (supported: %s)", e.Kind, e.Feature, strings.Join(e.Supported, ", "))
}

func (e *UnsupportedFeatureError) Is(target error) bool {
	return target == ErrUnsupportedFeature
}

// ParseError describes a malformed expression. Fragment is the part of the
// expression text where parsing stopped.
type ParseError struct {
	Kind     ExpressionKind
	Reason   string
	Fragment string
}

func (e *ParseError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("invalid %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s near %q", e.Kind, e.Reason, e.Fragment)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// PlaceholderKind tells apart the two placeholder maps.
type PlaceholderKind int

const (
	NamePlaceholder PlaceholderKind = iota
	ValuePlaceholder
)

func (k PlaceholderKind) mapName() string {
	if k == NamePlaceholder {
		return "ExpressionAttributeNames"
	}
	return "ExpressionAttributeValues"
}

func (k PlaceholderKind) String() string {
	if k == NamePlaceholder {
		return "expression attribute name"
	}
	return "expression attribute value"
}

// PlaceholderError is returned when a placeholder cannot be resolved.
// MapProvided distinguishes a missing map from a missing entry.
type PlaceholderError struct {
	Kind        PlaceholderKind
	Token       string
	MapProvided bool
}

func (e *PlaceholderError) Error() string {
	if !e.MapProvided {
		return fmt.Sprintf("%s %s used but no %s were provided", e.Kind, e.Token, e.Kind.mapName())
	}
	return fmt.Sprintf("%s %s is not defined in %s", e.Kind, e.Token, e.Kind.mapName())
}

func (e *PlaceholderError) Is(target error) bool {
	return target == ErrUnresolvedPlaceholder
}

const (
	ConditionalCheckFailedType    = "com.amazonaws.dynamodb.v20120810#ConditionalCheckFailedException"
	ConditionalCheckFailedCode    = "ConditionalCheckFailedException"
	ConditionalCheckFailedMessage = "The conditional request failed"
)

// ResponseBody is the JSON body DynamoDB sends with a client error.
type ResponseBody struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// ConditionalCheckFailedError mirrors the service response for a failed
// condition: HTTP 400 with the ConditionalCheckFailedException body.
// It converts to *types.ConditionalCheckFailedException with errors.As so
// code written against the SDK keeps working against the fake.
type ConditionalCheckFailedError struct{}

var _ smithy.APIError = (*ConditionalCheckFailedError)(nil)

func (e *ConditionalCheckFailedError) Error() string {
	return ConditionalCheckFailedCode + ": " + ConditionalCheckFailedMessage
}

func (e *ConditionalCheckFailedError) ErrorCode() string { return ConditionalCheckFailedCode }

func (e *ConditionalCheckFailedError) ErrorMessage() string { return ConditionalCheckFailedMessage }

func (e *ConditionalCheckFailedError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func (e *ConditionalCheckFailedError) StatusCode() int { return http.StatusBadRequest }

func (e *ConditionalCheckFailedError) Body() ResponseBody {
	return ResponseBody{Type: ConditionalCheckFailedType, Message: ConditionalCheckFailedMessage}
}

func (e *ConditionalCheckFailedError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Body())
}

func (e *ConditionalCheckFailedError) Is(target error) bool {
	return target == ErrConditionalCheckFailed
}

func (e *ConditionalCheckFailedError) As(target any) bool {
	t, ok := target.(**types.ConditionalCheckFailedException)
	if !ok {
		return false
	}
	*t = &types.ConditionalCheckFailedException{Message: aws.String(ConditionalCheckFailedMessage)}
	return true
}
