package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	// SortKey is the zero KeyDef for tables without a sort key.
	SortKey KeyDef
}

func (k PrimaryKeyDefinition) HasSortKey() bool {
	return k.SortKey.Name != ""
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

// Validate checks that v is a scalar of the key's kind.
func (d KeyDef) Validate(v types.AttributeValue) error {
	var got KeyKind
	switch v.(type) {
	case *types.AttributeValueMemberS:
		got = KeyKindS
	case *types.AttributeValueMemberN:
		got = KeyKindN
	case *types.AttributeValueMemberB:
		got = KeyKindB
	default:
		return fmt.Errorf("unexpected key attribute type %T", v)
	}
	if got != d.Kind {
		return fmt.Errorf("got KeyKind %q want %q", got, d.Kind)
	}
	return nil
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

type PrimaryKeyValues struct {
	PartitionKey types.AttributeValue
	// SortKey is nil for tables without a sort key.
	SortKey types.AttributeValue
}

type PrimaryKey struct {
	Definition PrimaryKeyDefinition
	Values     PrimaryKeyValues
}

// DDB returns the key as an item holding only the key attributes.
func (k PrimaryKey) DDB() map[string]types.AttributeValue {
	out := map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: k.Values.PartitionKey,
	}
	if k.Definition.HasSortKey() {
		out[k.Definition.SortKey.Name] = k.Values.SortKey
	}
	return out
}
