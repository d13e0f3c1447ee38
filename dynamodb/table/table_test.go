package table

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pkOnlyTable = TableDefinition{
	Name: "pk-only",
	KeyDefinitions: PrimaryKeyDefinition{
		PartitionKey: KeyDef{Name: "pk", Kind: KeyKindS},
	},
}

var pkAndSKTable = TableDefinition{
	Name: "pk-sk",
	KeyDefinitions: PrimaryKeyDefinition{
		PartitionKey: KeyDef{Name: "pk", Kind: KeyKindS},
		SortKey:      KeyDef{Name: "sk", Kind: KeyKindN},
	},
}

func TestExtractPrimaryKey(t *testing.T) {
	t.Run("partition key only", func(t *testing.T) {
		doc := map[string]types.AttributeValue{
			"pk":    &types.AttributeValueMemberS{Value: "USER#1"},
			"other": &types.AttributeValueMemberS{Value: "x"},
		}
		pk, err := pkOnlyTable.ExtractPrimaryKey(doc)
		require.NoError(t, err)
		assert.Equal(t, doc["pk"], pk.Values.PartitionKey)
		assert.Nil(t, pk.Values.SortKey)
		assert.Equal(t, map[string]types.AttributeValue{"pk": doc["pk"]}, pk.DDB())
	})

	t.Run("partition and sort key", func(t *testing.T) {
		doc := map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: "USER#1"},
			"sk": &types.AttributeValueMemberN{Value: "42"},
		}
		pk, err := pkAndSKTable.ExtractPrimaryKey(doc)
		require.NoError(t, err)
		assert.Equal(t, doc, pk.DDB())
	})

	t.Run("missing partition key", func(t *testing.T) {
		_, err := pkOnlyTable.ExtractPrimaryKey(map[string]types.AttributeValue{})
		require.Error(t, err)
	})

	t.Run("missing sort key", func(t *testing.T) {
		_, err := pkAndSKTable.ExtractPrimaryKey(map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: "USER#1"},
		})
		require.Error(t, err)
	})

	t.Run("wrong sort key kind", func(t *testing.T) {
		_, err := pkAndSKTable.ExtractPrimaryKey(map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: "USER#1"},
			"sk": &types.AttributeValueMemberS{Value: "42"},
		})
		require.Error(t, err)
	})
}

func TestKeyDefValidate(t *testing.T) {
	def := KeyDef{Name: "pk", Kind: KeyKindB}
	assert.NoError(t, def.Validate(&types.AttributeValueMemberB{Value: []byte("x")}))
	assert.Error(t, def.Validate(&types.AttributeValueMemberS{Value: "x"}))
	assert.Error(t, def.Validate(&types.AttributeValueMemberBOOL{Value: true}))
}
