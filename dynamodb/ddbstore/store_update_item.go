package ddbstore

import (
	"context"
	"fmt"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/attrvalue"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/updateexpr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// UpdateItem updates an existing item or creates a new one.
func (s *Store) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.Key == nil {
		return nil, fmt.Errorf("key is required")
	}
	if params.UpdateExpression == nil {
		return nil, fmt.Errorf("UpdateExpression is required")
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}

	pk, err := tabl.definition.ExtractPrimaryKey(params.Key)
	if err != nil {
		return nil, fmt.Errorf("extract primary key: %w", err)
	}

	key, err := tabl.keys.encodeKey(pk)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}

	ops, err := updateexpr.Parse(*params.UpdateExpression)
	if err != nil {
		return nil, err
	}

	var oldItem, newItem map[string]types.AttributeValue

	err = s.db.Update(func(txn *badger.Txn) error {
		oldItem, err = readItem(txn, key)
		if err != nil {
			return err
		}
		if err := s.checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, oldItem); err != nil {
			return err
		}

		// An update of a missing item creates it from its key.
		base := oldItem
		if base == nil {
			base = pk.DDB()
		}
		newItem, err = ops.Apply(base, params.ExpressionAttributeValues, params.ExpressionAttributeNames)
		if err != nil {
			return err
		}
		for name, want := range pk.DDB() {
			if !attrvalue.Equal(newItem[name], want) {
				return fmt.Errorf("cannot update attribute %s: this attribute is part of the key", name)
			}
		}

		itemBytes, err := SerializeItem(newItem)
		if err != nil {
			return fmt.Errorf("serialize item: %w", err)
		}
		return txn.Set(key, itemBytes)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"table":   tabl.definition.Name,
		"created": oldItem == nil,
	}).Debug("update item")

	attrs, err := returnAttributes(params.ReturnValues, ops, params.ExpressionAttributeNames, oldItem, newItem)
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{Attributes: attrs}, nil
}

// returnAttributes picks the attributes UpdateItem returns. DynamoDB returns
// whole top-level attributes for the UPDATED_* modes.
func returnAttributes(rv types.ReturnValue, ops *updateexpr.UpdateOperations, names map[string]string, oldItem, newItem map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	switch rv {
	case types.ReturnValueAllOld:
		return oldItem, nil
	case types.ReturnValueAllNew:
		return newItem, nil
	case types.ReturnValueUpdatedOld, types.ReturnValueUpdatedNew:
		src := newItem
		if rv == types.ReturnValueUpdatedOld {
			src = oldItem
		}
		touched, err := ops.UpdatedAttributes(names)
		if err != nil {
			return nil, err
		}
		out := make(map[string]types.AttributeValue)
		for _, name := range touched {
			if v, ok := src[name]; ok {
				out[name] = v
			}
		}
		return out, nil
	case types.ReturnValueNone, "":
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported ReturnValues %q", rv)
}

