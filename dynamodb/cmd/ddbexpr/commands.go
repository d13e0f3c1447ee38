package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/acksell/ddbexpr/dynamodb/ddbiface"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/conditionexpr"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/acksell/ddbexpr/dynamodb/ddbstore/updateexpr"
	"github.com/acksell/ddbexpr/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	var in inputFlags
	var itemFile string
	cmd := &cobra.Command{
		Use:   "check [flags] CONDITION",
		Short: "Evaluate a ConditionExpression against an item",
		Long: "Evaluate a ConditionExpression against an item. Prints the " +
			"ConditionalCheckFailedException body and exits 1 when the condition is false.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := loadItem(itemFile)
			if err != nil {
				return fmt.Errorf("load item: %w", err)
			}
			names, values, err := in.load()
			if err != nil {
				return err
			}
			log := a.log.WithFields(logrus.Fields{"cmd": "check", "expr": args[0]})

			err = conditionexpr.Evaluate(args[0], item, names, values)
			var ccf *exprerr.ConditionalCheckFailedError
			if errors.As(err, &ccf) {
				log.Debug("condition evaluated to false")
				body, jerr := json.Marshal(ccf)
				if jerr != nil {
					return jerr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", ccf.StatusCode(), body)
				return errConditionFailed
			}
			if err != nil {
				return err
			}
			log.Debug("condition evaluated to true")
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&itemFile, "item", "", "YAML or JSON file with the item, empty item when omitted")
	in.register(cmd)
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var in inputFlags
	var itemsFile, filter string
	var keys TableConfig
	var reverse bool
	var limit int32
	cmd := &cobra.Command{
		Use:   "query [flags] KEY_CONDITION",
		Short: "Run a KeyConditionExpression over a list of items",
		Long: "Load the items of --items into an in-memory table and query it. " +
			"The key schema comes from the flags or the table section of ddbexpr.yaml.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := tableDefinition(keys, a.cfg.Table)
			if err != nil {
				return err
			}
			items, err := loadItems(itemsFile)
			if err != nil {
				return fmt.Errorf("load items: %w", err)
			}
			names, values, err := in.load()
			if err != nil {
				return err
			}

			store, err := ddbstore.New(ddbstore.StoreOptions{InMemory: true, Logger: a.log}, def)
			if err != nil {
				return err
			}
			defer store.Close()

			input := &dynamodb.QueryInput{
				TableName:                 aws.String(def.Name),
				KeyConditionExpression:    aws.String(args[0]),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
				ScanIndexForward:          aws.Bool(!reverse),
			}
			if filter != "" {
				input.FilterExpression = aws.String(filter)
			}
			if limit > 0 {
				input.Limit = aws.Int32(limit)
			}
			out, err := loadAndQuery(context.Background(), store, items, input)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"cmd":     "query",
				"expr":    args[0],
				"matched": out.Count,
				"scanned": out.ScannedCount,
			}).Info("query done")
			return writeItems(cmd.OutOrStdout(), out.Items)
		},
	}
	cmd.Flags().StringVar(&itemsFile, "items", "", "YAML or JSON file with a list of items")
	cmd.Flags().StringVar(&filter, "filter", "", "FilterExpression applied after the key condition")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "return items in descending sort key order")
	cmd.Flags().Int32Var(&limit, "limit", 0, "maximum number of items to evaluate")
	cmd.Flags().StringVar(&keys.PartitionKey, "pk", "", "partition key attribute (default PK)")
	cmd.Flags().StringVar(&keys.PartitionKeyType, "pk-type", "", "partition key type S, N or B (default S)")
	cmd.Flags().StringVar(&keys.SortKey, "sk", "", "sort key attribute (default SK, \"-\" for none)")
	cmd.Flags().StringVar(&keys.SortKeyType, "sk-type", "", "sort key type S, N or B (default S)")
	cmd.MarkFlagRequired("items")
	in.register(cmd)
	return cmd
}

// loadAndQuery writes items to the table named by input and runs the query.
func loadAndQuery(ctx context.Context, client ddbiface.ItemClient, items []map[string]types.AttributeValue, input *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
	for i, item := range items {
		if _, err := client.PutItem(ctx, &dynamodb.PutItemInput{TableName: input.TableName, Item: item}); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return client.Query(ctx, input)
}

// tableDefinition merges the key flags over the config file defaults.
func tableDefinition(flags, cfg TableConfig) (table.TableDefinition, error) {
	pick := func(flag, conf, def string) string {
		switch {
		case flag != "":
			return flag
		case conf != "":
			return conf
		}
		return def
	}
	pkName := pick(flags.PartitionKey, cfg.PartitionKey, "PK")
	skName := pick(flags.SortKey, cfg.SortKey, "SK")

	pkKind, err := keyKind(pick(flags.PartitionKeyType, cfg.PartitionKeyType, "S"))
	if err != nil {
		return table.TableDefinition{}, err
	}
	keys := table.PrimaryKeyDefinition{PartitionKey: table.KeyDef{Name: pkName, Kind: pkKind}}
	if skName != "-" {
		skKind, err := keyKind(pick(flags.SortKeyType, cfg.SortKeyType, "S"))
		if err != nil {
			return table.TableDefinition{}, err
		}
		keys.SortKey = table.KeyDef{Name: skName, Kind: skKind}
	}
	return table.TableDefinition{Name: "ddbexpr", KeyDefinitions: keys}, nil
}

func keyKind(s string) (table.KeyKind, error) {
	switch kind := table.KeyKind(s); kind {
	case table.KeyKindS, table.KeyKindN, table.KeyKindB:
		return kind, nil
	}
	return "", fmt.Errorf("invalid key type %q, want S, N or B", s)
}

func newUpdateCmd(a *app) *cobra.Command {
	var in inputFlags
	var itemFile string
	cmd := &cobra.Command{
		Use:   "update [flags] UPDATE_EXPRESSION",
		Short: "Apply an UpdateExpression to an item and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := loadItem(itemFile)
			if err != nil {
				return fmt.Errorf("load item: %w", err)
			}
			names, values, err := in.load()
			if err != nil {
				return err
			}
			updated, err := updateexpr.Apply(item, args[0], values, names)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"cmd":        "update",
				"expr":       args[0],
				"attributes": len(updated),
			}).Debug("update applied")
			return writeItem(cmd.OutOrStdout(), updated)
		},
	}
	cmd.Flags().StringVar(&itemFile, "item", "", "YAML or JSON file with the item, empty item when omitted")
	in.register(cmd)
	return cmd
}
