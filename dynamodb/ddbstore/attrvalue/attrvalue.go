// Package attrvalue implements the value semantics the expression evaluators
// share: type tags, equality, ordering and number arithmetic on
// types.AttributeValue.
//
// A nil AttributeValue stands for a missing attribute.
package attrvalue

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Type string

const (
	Undefined Type = ""
	STRING    Type = "S"
	NUMBER    Type = "N"
	BINARY    Type = "B"
	BOOL      Type = "BOOL"
	NULL      Type = "NULL"
	LIST      Type = "L"
	MAP       Type = "M"
	STRINGSET Type = "SS"
	NUMBERSET Type = "NS"
	BINARYSET Type = "BS"
)

func TypeOf(av types.AttributeValue) Type {
	switch av.(type) {
	case *types.AttributeValueMemberS:
		return STRING
	case *types.AttributeValueMemberN:
		return NUMBER
	case *types.AttributeValueMemberB:
		return BINARY
	case *types.AttributeValueMemberBOOL:
		return BOOL
	case *types.AttributeValueMemberNULL:
		return NULL
	case *types.AttributeValueMemberL:
		return LIST
	case *types.AttributeValueMemberM:
		return MAP
	case *types.AttributeValueMemberSS:
		return STRINGSET
	case *types.AttributeValueMemberNS:
		return NUMBERSET
	case *types.AttributeValueMemberBS:
		return BINARYSET
	default:
		return Undefined
	}
}

func IsSet(av types.AttributeValue) bool {
	switch TypeOf(av) {
	case STRINGSET, NUMBERSET, BINARYSET:
		return true
	}
	return false
}

// Equal compares two values by type and content. Two missing values are
// equal to each other and to nothing else. Numbers compare numerically and
// sets ignore element order.
func Equal(a, b types.AttributeValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		c, ok := CompareNumbers(av.Value, bv.Value)
		return ok && c == 0
	case *types.AttributeValueMemberB:
		bv, ok := b.(*types.AttributeValueMemberB)
		return ok && bytes.Equal(av.Value, bv.Value)
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberNULL:
		_, ok := b.(*types.AttributeValueMemberNULL)
		return ok
	case *types.AttributeValueMemberL:
		bv, ok := b.(*types.AttributeValueMemberL)
		if !ok || len(av.Value) != len(bv.Value) {
			return false
		}
		for i := range av.Value {
			if !Equal(av.Value[i], bv.Value[i]) {
				return false
			}
		}
		return true
	case *types.AttributeValueMemberM:
		bv, ok := b.(*types.AttributeValueMemberM)
		if !ok || len(av.Value) != len(bv.Value) {
			return false
		}
		for k, v := range av.Value {
			if !Equal(v, bv.Value[k]) {
				return false
			}
		}
		return true
	case *types.AttributeValueMemberSS:
		bv, ok := b.(*types.AttributeValueMemberSS)
		return ok && sameElements(len(av.Value), len(bv.Value), func(i, j int) bool { return av.Value[i] == bv.Value[j] })
	case *types.AttributeValueMemberNS:
		bv, ok := b.(*types.AttributeValueMemberNS)
		return ok && sameElements(len(av.Value), len(bv.Value), func(i, j int) bool {
			c, ok := CompareNumbers(av.Value[i], bv.Value[j])
			return ok && c == 0
		})
	case *types.AttributeValueMemberBS:
		bv, ok := b.(*types.AttributeValueMemberBS)
		return ok && sameElements(len(av.Value), len(bv.Value), func(i, j int) bool { return bytes.Equal(av.Value[i], bv.Value[j]) })
	}
	return false
}

// sameElements reports whether two duplicate-free collections hold the same elements.
func sameElements(na, nb int, eq func(i, j int) bool) bool {
	if na != nb {
		return false
	}
	for i := 0; i < na; i++ {
		found := false
		for j := 0; j < nb; j++ {
			if eq(i, j) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Compare orders two scalar values of the same type: strings and binaries
// bytewise, numbers numerically. ok is false for any other pairing,
// including missing values.
func Compare(a, b types.AttributeValue) (c int, ok bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, isS := b.(*types.AttributeValueMemberS); isS {
			return strings.Compare(av.Value, bv.Value), true
		}
	case *types.AttributeValueMemberN:
		if bv, isN := b.(*types.AttributeValueMemberN); isN {
			return CompareNumbers(av.Value, bv.Value)
		}
	case *types.AttributeValueMemberB:
		if bv, isB := b.(*types.AttributeValueMemberB); isB {
			return bytes.Compare(av.Value, bv.Value), true
		}
	}
	return 0, false
}

// CompareNumbers compares two DynamoDB number strings exactly, so numbers
// that differ only past float64 precision stay distinct.
func CompareNumbers(a, b string) (int, bool) {
	ra, rb, err := parsePair(a, b)
	if err != nil {
		return 0, false
	}
	return ra.Cmp(rb), true
}

// Operator is a binary comparison operator.
type Operator string

const (
	Equals         Operator = "="
	NotEquals      Operator = "<>"
	LessThan       Operator = "<"
	LessOrEqual    Operator = "<="
	GreaterThan    Operator = ">"
	GreaterOrEqual Operator = ">="
)

func (o Operator) Ordering() bool {
	switch o {
	case LessThan, LessOrEqual, GreaterThan, GreaterOrEqual:
		return true
	}
	return false
}

// Satisfies applies op to the pair. A missing operand makes = false and <>
// true, and every ordering operator false; ordering across types is false too.
func Satisfies(op Operator, a, b types.AttributeValue) bool {
	switch op {
	case Equals:
		return Equal(a, b)
	case NotEquals:
		return !Equal(a, b)
	}
	c, ok := Compare(a, b)
	if !ok {
		return false
	}
	switch op {
	case LessThan:
		return c < 0
	case LessOrEqual:
		return c <= 0
	case GreaterThan:
		return c > 0
	case GreaterOrEqual:
		return c >= 0
	}
	return false
}

// AddNumbers adds two DynamoDB number strings exactly.
func AddNumbers(a, b string) (string, error) {
	ra, rb, err := parsePair(a, b)
	if err != nil {
		return "", err
	}
	return FormatNumber(ra.Add(ra, rb)), nil
}

// SubtractNumbers returns a - b.
func SubtractNumbers(a, b string) (string, error) {
	ra, rb, err := parsePair(a, b)
	if err != nil {
		return "", err
	}
	return FormatNumber(ra.Sub(ra, rb)), nil
}

func parsePair(a, b string) (*big.Rat, *big.Rat, error) {
	ra, ok := new(big.Rat).SetString(a)
	if !ok {
		return nil, nil, fmt.Errorf("invalid number %q", a)
	}
	rb, ok := new(big.Rat).SetString(b)
	if !ok {
		return nil, nil, fmt.Errorf("invalid number %q", b)
	}
	return ra, rb, nil
}

// DynamoDB numbers carry up to 38 significant digits.
const maxDigits = 38

func FormatNumber(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(maxDigits)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
