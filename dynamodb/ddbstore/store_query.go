package ddbstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/conditionexpr"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/keyconditionexpr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// Query retrieves items matching a key condition expression.
//
// The key condition is parsed once; every item of the partition is then
// matched against it. Limit counts evaluated items, before FilterExpression,
// the way DynamoDB does.
func (s *Store) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.KeyConditionExpression == nil {
		return nil, fmt.Errorf("key condition expression is required")
	}
	if params.IndexName != nil {
		return nil, fmt.Errorf("secondary indexes are not supported")
	}
	if params.ProjectionExpression != nil {
		return nil, fmt.Errorf("ProjectionExpression is not supported")
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}

	keyCond, err := keyconditionexpr.Parse(*params.KeyConditionExpression, keyconditionexpr.ParseParams{
		ExpressionAttributeNames:  params.ExpressionAttributeNames,
		ExpressionAttributeValues: params.ExpressionAttributeValues,
		TableKeys:                 &tabl.definition.KeyDefinitions,
	})
	if err != nil {
		return nil, err
	}

	filter, err := parseFilter(params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	prefix, err := tabl.keys.encodePartitionPrefix(keyCond.PartitionKeyValue)
	if err != nil {
		return nil, fmt.Errorf("encode partition key prefix: %w", err)
	}

	var startKey []byte
	if params.ExclusiveStartKey != nil {
		startPK, err := tabl.definition.ExtractPrimaryKey(params.ExclusiveStartKey)
		if err != nil {
			return nil, fmt.Errorf("extract start key: %w", err)
		}
		if startKey, err = tabl.keys.encodeKey(startPK); err != nil {
			return nil, fmt.Errorf("encode start key: %w", err)
		}
	}

	scanForward := params.ScanIndexForward == nil || *params.ScanIndexForward
	page, err := s.iterate(prefix, startKey, !scanForward, limitOf(params.Limit), func(item map[string]types.AttributeValue) bool {
		return keyCond.Matches(item)
	}, filter)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"table":   tabl.definition.Name,
		"scanned": page.scanned,
		"count":   len(page.items),
	}).Debug("query")

	return &dynamodb.QueryOutput{
		Items:            page.items,
		Count:            int32(len(page.items)),
		ScannedCount:     int32(page.scanned),
		LastEvaluatedKey: page.lastKey(tabl),
	}, nil
}

// Scan retrieves all items in a table, optionally with a filter.
func (s *Store) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.IndexName != nil {
		return nil, fmt.Errorf("secondary indexes are not supported")
	}
	if params.ProjectionExpression != nil {
		return nil, fmt.Errorf("ProjectionExpression is not supported")
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}

	filter, err := parseFilter(params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	var startKey []byte
	if params.ExclusiveStartKey != nil {
		startPK, err := tabl.definition.ExtractPrimaryKey(params.ExclusiveStartKey)
		if err != nil {
			return nil, fmt.Errorf("extract start key: %w", err)
		}
		if startKey, err = tabl.keys.encodeKey(startPK); err != nil {
			return nil, fmt.Errorf("encode start key: %w", err)
		}
	}

	page, err := s.iterate(tabl.keys.tablePrefix(), startKey, false, limitOf(params.Limit), nil, filter)
	if err != nil {
		return nil, err
	}

	return &dynamodb.ScanOutput{
		Items:            page.items,
		Count:            int32(len(page.items)),
		ScannedCount:     int32(page.scanned),
		LastEvaluatedKey: page.lastKey(tabl),
	}, nil
}

// parseFilter binds a FilterExpression once for the whole request.
func parseFilter(expr *string, names map[string]string, values map[string]types.AttributeValue) (conditionexpr.Condition, error) {
	if expr == nil {
		return nil, nil
	}
	cond, err := conditionexpr.Parse(*expr)
	if err != nil {
		return nil, err
	}
	return conditionexpr.Bind(cond, conditionexpr.EvalInput{ExpressionNames: names, ExpressionValues: values})
}

func limitOf(limit *int32) int {
	if limit == nil {
		return 0
	}
	return int(*limit)
}

type page struct {
	items   []map[string]types.AttributeValue
	scanned int
	// last is the last evaluated item when the limit stopped the iteration.
	last map[string]types.AttributeValue
}

func (p *page) lastKey(t *tableSchema) map[string]types.AttributeValue {
	if p.last == nil {
		return nil
	}
	return extractKeyAttributes(p.last, t.definition.KeyDefinitions)
}

// iterate walks the keys under prefix, after startKey when set. Items
// rejected by match are skipped without counting; the rest count towards
// limit and are returned when filter accepts them.
func (s *Store) iterate(prefix, startKey []byte, reverse bool, limit int, match func(map[string]types.AttributeValue) bool, filter conditionexpr.Condition) (*page, error) {
	out := &page{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = reverse
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		switch {
		case startKey != nil:
			it.Seek(startKey)
			if it.Valid() && bytes.Equal(it.Item().Key(), startKey) {
				it.Next()
			}
		case reverse:
			it.Seek(incrementBytes(prefix))
		default:
			it.Seek(prefix)
		}

		for ; it.Valid(); it.Next() {
			item, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			if match != nil && !match(item) {
				continue
			}
			out.scanned++
			if filter == nil || filter.Eval(item) {
				out.items = append(out.items, item)
			}
			if limit > 0 && out.scanned >= limit {
				more, err := hasMatch(it, match)
				if err != nil {
					return err
				}
				if more {
					out.last = item
				}
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// hasMatch reports whether any item after the iterator's current position
// is accepted by match.
func hasMatch(it *badger.Iterator, match func(map[string]types.AttributeValue) bool) (bool, error) {
	for it.Next(); it.Valid(); it.Next() {
		if match == nil {
			return true, nil
		}
		item, err := decodeItem(it.Item())
		if err != nil {
			return false, err
		}
		if match(item) {
			return true, nil
		}
	}
	return false, nil
}

func decodeItem(stored *badger.Item) (map[string]types.AttributeValue, error) {
	var item map[string]types.AttributeValue
	err := stored.Value(func(val []byte) error {
		var err error
		item, err = DeserializeItem(val)
		return err
	})
	return item, err
}
