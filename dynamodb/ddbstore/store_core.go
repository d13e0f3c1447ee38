// Package ddbstore is a local DynamoDB table for tests. Items live in an
// in-memory badger database and every expression a request carries is
// evaluated by the conditionexpr, keyconditionexpr and updateexpr packages.
package ddbstore

import (
	"fmt"
	"io"

	"github.com/acksell/ddbexpr/dynamodb/ddbiface"
	"github.com/acksell/ddbexpr/dynamodb/table"
	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

var _ ddbiface.ItemClient = (*Store)(nil)

// Store is a DynamoDB-compatible store backed by BadgerDB.
// Writes run in badger transactions, so concurrent requests are serialized.
type Store struct {
	db     *badger.DB
	tables map[string]*tableSchema
	log    logrus.FieldLogger
}

type tableSchema struct {
	definition table.TableDefinition
	keys       *keyEncoder
}

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger receives request and badger logs. If nil, logging is disabled.
	Logger logrus.FieldLogger
}

// New creates a new BadgerDB-backed DynamoDB store.
func New(opts StoreOptions, defs ...table.TableDefinition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)

	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	log := opts.Logger
	if log != nil {
		badgerOpts = badgerOpts.WithLogger(log)
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	tables := make(map[string]*tableSchema)
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("table name is required")
		}
		if _, dup := tables[def.Name]; dup {
			return nil, fmt.Errorf("table %s defined twice", def.Name)
		}
		tables[def.Name] = &tableSchema{
			definition: def,
			keys:       &keyEncoder{tableName: def.Name, keyDefs: def.KeyDefinitions},
		}
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	return &Store{
		db:     db,
		tables: tables,
		log:    log,
	}, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getTable(tableName *string) (*tableSchema, error) {
	if tableName == nil {
		return nil, fmt.Errorf("table name is required")
	}
	schema, ok := s.tables[*tableName]
	if !ok {
		return nil, fmt.Errorf("table not found: %s", *tableName)
	}
	return schema, nil
}
