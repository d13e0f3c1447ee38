package ddbstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/acksell/ddbexpr/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test table definitions
var singleTableDesign = table.TableDefinition{
	Name: "test-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
}

var numericSortKeyTable = table.TableDefinition{
	Name: "numeric-sk-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindN},
	},
}

var noSortKeyTable = table.TableDefinition{
	Name: "no-sk-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
	},
}

func newTestStore(t *testing.T, defs ...table.TableDefinition) *Store {
	store, err := New(StoreOptions{InMemory: true}, defs...)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func marshal(t *testing.T, in map[string]any) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(in)
	require.NoError(t, err)
	return av
}

func put(t *testing.T, store *Store, tbl table.TableDefinition, item map[string]any) {
	t.Helper()
	_, err := store.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(tbl.Name),
		Item:      marshal(t, item),
	})
	require.NoError(t, err)
}

func get(t *testing.T, store *Store, tbl table.TableDefinition, key map[string]any) map[string]types.AttributeValue {
	t.Helper()
	out, err := store.GetItem(context.Background(), &dynamodb.GetItemInput{
		TableName: aws.String(tbl.Name),
		Key:       marshal(t, key),
	})
	require.NoError(t, err)
	return out.Item
}

func TestNew(t *testing.T) {
	_, err := New(StoreOptions{InMemory: true}, singleTableDesign, singleTableDesign)
	require.Error(t, err)

	_, err = New(StoreOptions{InMemory: true}, table.TableDefinition{})
	require.Error(t, err)
}

func TestStore_GetItem(t *testing.T) {
	store := newTestStore(t, singleTableDesign)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		out, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &singleTableDesign.Name,
			Key:       marshal(t, map[string]any{"pk": "nonexistent", "sk": "nonexistent"}),
		})
		require.NoError(t, err)
		assert.Nil(t, out.Item)
	})

	t.Run("found after put", func(t *testing.T) {
		item := map[string]any{"pk": "user#123", "sk": "profile", "name": "alice", "tags": []string{"a"}}
		put(t, store, singleTableDesign, item)
		assert.Equal(t, marshal(t, item), get(t, store, singleTableDesign, map[string]any{"pk": "user#123", "sk": "profile"}))
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String("nope"),
			Key:       marshal(t, map[string]any{"pk": "a", "sk": "b"}),
		})
		require.Error(t, err)
	})

	t.Run("wrong key type", func(t *testing.T) {
		_, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &singleTableDesign.Name,
			Key:       marshal(t, map[string]any{"pk": 1, "sk": "b"}),
		})
		require.Error(t, err)
	})
}

func TestStore_PutItem(t *testing.T) {
	ctx := context.Background()

	t.Run("overwrite returns old item", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		put(t, store, singleTableDesign, map[string]any{"pk": "a", "sk": "b", "data": "original"})

		out, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:    &singleTableDesign.Name,
			Item:         marshal(t, map[string]any{"pk": "a", "sk": "b", "data": "updated"}),
			ReturnValues: types.ReturnValueAllOld,
		})
		require.NoError(t, err)
		assert.Equal(t, marshal(t, map[string]any{"pk": "a", "sk": "b", "data": "original"}), out.Attributes)
		assert.Equal(t, &types.AttributeValueMemberS{Value: "updated"}, get(t, store, singleTableDesign, map[string]any{"pk": "a", "sk": "b"})["data"])
	})

	t.Run("attribute_not_exists guards creation", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		input := &dynamodb.PutItemInput{
			TableName:           &singleTableDesign.Name,
			Item:                marshal(t, map[string]any{"pk": "a", "sk": "b"}),
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		}
		_, err := store.PutItem(ctx, input)
		require.NoError(t, err)

		_, err = store.PutItem(ctx, input)
		require.ErrorIs(t, err, exprerr.ErrConditionalCheckFailed)

		var ccf *types.ConditionalCheckFailedException
		require.ErrorAs(t, err, &ccf)
		assert.Equal(t, "The conditional request failed", ccf.ErrorMessage())
	})

	t.Run("builder condition", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		put(t, store, singleTableDesign, map[string]any{"pk": "a", "sk": "b", "version": 1})

		cond := expression.Name("version").Equal(expression.Value(1)).
			And(expression.Name("locked").AttributeNotExists())
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		require.NoError(t, err)

		_, err = store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 &singleTableDesign.Name,
			Item:                      marshal(t, map[string]any{"pk": "a", "sk": "b", "version": 2}),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		require.NoError(t, err)

		_, err = store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 &singleTableDesign.Name,
			Item:                      marshal(t, map[string]any{"pk": "a", "sk": "b", "version": 3}),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		require.ErrorIs(t, err, exprerr.ErrConditionalCheckFailed)
	})

	t.Run("unsupported condition is not a conditional failure", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 &singleTableDesign.Name,
			Item:                      marshal(t, map[string]any{"pk": "a", "sk": "b"}),
			ConditionExpression:       aws.String("size(pk) > :n"),
			ExpressionAttributeValues: marshal(t, map[string]any{":n": 1}),
		})
		require.ErrorIs(t, err, exprerr.ErrUnsupportedFeature)
		assert.NotErrorIs(t, err, exprerr.ErrConditionalCheckFailed)
	})

	t.Run("missing key attribute", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: &singleTableDesign.Name,
			Item:      marshal(t, map[string]any{"pk": "a"}),
		})
		require.Error(t, err)
	})
}

func TestStore_DeleteItem(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, noSortKeyTable)
	put(t, store, noSortKeyTable, map[string]any{"pk": "a", "status": "active"})

	t.Run("condition fails", func(t *testing.T) {
		_, err := store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                 &noSortKeyTable.Name,
			Key:                       marshal(t, map[string]any{"pk": "a"}),
			ConditionExpression:       aws.String("#s = :inactive"),
			ExpressionAttributeNames:  map[string]string{"#s": "status"},
			ExpressionAttributeValues: marshal(t, map[string]any{":inactive": "inactive"}),
		})
		require.ErrorIs(t, err, exprerr.ErrConditionalCheckFailed)
		assert.NotNil(t, get(t, store, noSortKeyTable, map[string]any{"pk": "a"}))
	})

	t.Run("condition holds", func(t *testing.T) {
		out, err := store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                 &noSortKeyTable.Name,
			Key:                       marshal(t, map[string]any{"pk": "a"}),
			ConditionExpression:       aws.String("#s <> :inactive"),
			ExpressionAttributeNames:  map[string]string{"#s": "status"},
			ExpressionAttributeValues: marshal(t, map[string]any{":inactive": "inactive"}),
			ReturnValues:              types.ReturnValueAllOld,
		})
		require.NoError(t, err)
		assert.Equal(t, marshal(t, map[string]any{"pk": "a", "status": "active"}), out.Attributes)
		assert.Nil(t, get(t, store, noSortKeyTable, map[string]any{"pk": "a"}))
	})

	t.Run("missing item is evaluated as empty", func(t *testing.T) {
		_, err := store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:           &noSortKeyTable.Name,
			Key:                 marshal(t, map[string]any{"pk": "a"}),
			ConditionExpression: aws.String("attribute_exists(pk)"),
		})
		require.ErrorIs(t, err, exprerr.ErrConditionalCheckFailed)

		_, err = store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: &noSortKeyTable.Name,
			Key:       marshal(t, map[string]any{"pk": "a"}),
		})
		require.NoError(t, err)
	})
}

func TestStore_Logging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	store, err := New(StoreOptions{InMemory: true, Logger: logger}, noSortKeyTable)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	put(t, store, noSortKeyTable, map[string]any{"pk": "a"})

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "put item" {
			found = true
			assert.Equal(t, noSortKeyTable.Name, entry.Data["table"])
			assert.Equal(t, false, entry.Data["replaced"])
		}
	}
	assert.True(t, found)
}

func TestEncodeNumberOrdering(t *testing.T) {
	nums := []string{"-100", "-1.5", "-1", "0", "0.001", "1", "2", "10", "1e3"}
	var prev []byte
	for _, n := range nums {
		enc, err := encodeNumber(n)
		require.NoError(t, err)
		if prev != nil {
			assert.Equal(t, -1, bytes.Compare(prev, enc), "%s should sort after its predecessor", n)
		}
		prev = enc
	}
}

func TestSerializeItemRoundTrip(t *testing.T) {
	item := map[string]types.AttributeValue{
		"s":    &types.AttributeValueMemberS{Value: "x"},
		"n":    &types.AttributeValueMemberN{Value: "1.5"},
		"b":    &types.AttributeValueMemberB{Value: []byte{0, 1}},
		"bool": &types.AttributeValueMemberBOOL{Value: true},
		"null": &types.AttributeValueMemberNULL{Value: true},
		"ss":   &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
		"ns":   &types.AttributeValueMemberNS{Value: []string{"1"}},
		"bs":   &types.AttributeValueMemberBS{Value: [][]byte{{1}}},
		"l":    &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberS{Value: "y"}}},
		"m":    &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{"k": &types.AttributeValueMemberN{Value: "2"}}},
	}
	data, err := SerializeItem(item)
	require.NoError(t, err)
	got, err := DeserializeItem(data)
	require.NoError(t, err)
	assert.Equal(t, item, got)
}
