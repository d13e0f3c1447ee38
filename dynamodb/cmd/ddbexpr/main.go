// ddbexpr evaluates DynamoDB expressions against local records, for checking
// an expression while writing a test.
//
// # Commands
//
//	ddbexpr check   Evaluate a ConditionExpression against an item
//	ddbexpr query   Run a KeyConditionExpression over a list of items
//	ddbexpr update  Apply an UpdateExpression to an item
//
// Items and placeholder maps are read from YAML or JSON files:
//
//	ddbexpr check --item user.yaml --values values.yaml 'attribute_exists(email) AND #s = :active'
//	ddbexpr update --item user.yaml --values values.yaml 'SET visits = visits + :one'
//
// A ddbexpr.yaml file in the current directory or any parent sets defaults.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// errConditionFailed makes check exit non-zero without a second error line.
var errConditionFailed = errors.New("condition failed")

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errConditionFailed) {
			fmt.Fprintf(os.Stderr, "ddbexpr: %v\n", err)
		}
		os.Exit(1)
	}
}

type inputFlags struct {
	namesFile  string
	valuesFile string
}

// app is the state shared by the subcommands.
type app struct {
	log *logrus.Logger
	cfg Config
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{log: logrus.New()}
	var logLevel string

	root := &cobra.Command{
		Use:           "ddbexpr",
		Short:         "Evaluate DynamoDB expressions against local records",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
				logLevel = cfg.LogLevel
			}
			return initLogger(a.log, stderr, logLevel)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warning", "log level (trace, debug, info, warning, error)")

	root.AddCommand(
		newCheckCmd(a),
		newQueryCmd(a),
		newUpdateCmd(a),
	)
	return root
}

func initLogger(log *logrus.Logger, out io.Writer, level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		NoColors:    true,
		FieldsOrder: []string{"cmd", "expr"},
	})
	return nil
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.namesFile, "names", "", "YAML or JSON file with ExpressionAttributeNames")
	cmd.Flags().StringVar(&f.valuesFile, "values", "", "YAML or JSON file with ExpressionAttributeValues")
}
