package ddbstore

import (
	"errors"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/conditionexpr"
	"github.com/acksell/ddbexpr/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// readItem loads the item stored under key. A missing item is nil, not an error.
func readItem(txn *badger.Txn, key []byte) (map[string]types.AttributeValue, error) {
	stored, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeItem(stored)
}

// checkCondition evaluates a request's ConditionExpression against the
// stored item, nil when the item does not exist. A false condition is an
// *exprerr.ConditionalCheckFailedError.
func (s *Store) checkCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) error {
	if expr == nil {
		return nil
	}
	err := conditionexpr.Evaluate(*expr, item, names, values)
	if err != nil {
		s.log.WithError(err).WithField("condition", *expr).Debug("condition rejected write")
	}
	return err
}

func extractKeyAttributes(item map[string]types.AttributeValue, keyDef table.PrimaryKeyDefinition) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	if pk, ok := item[keyDef.PartitionKey.Name]; ok {
		result[keyDef.PartitionKey.Name] = pk
	}
	if keyDef.HasSortKey() {
		if sk, ok := item[keyDef.SortKey.Name]; ok {
			result[keyDef.SortKey.Name] = sk
		}
	}
	return result
}

func incrementBytes(b []byte) []byte {
	result := make([]byte, len(b))
	copy(result, b)
	for i := len(result) - 1; i >= 0; i-- {
		if result[i] < 0xFF {
			result[i]++
			return result
		}
		result[i] = 0
	}
	// Overflow - append 0x00
	return append(result, 0x00)
}
