package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/solatis/querykit/internal/log"
	"github.com/solatis/querykit/internal/rules"
)

var queryCmd = &cobra.Command{
	Use:   "query SPEC_FILE",
	Short: "Run a YAML query spec against the log record store",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringP("output", "o", "json", "output format (json, yaml)")
	queryCmd.Flags().Int("limit", 0, "maximum records to print (overrides the limit in SPEC_FILE)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	output, _ := cmd.Flags().GetString("output")
	if output != "json" && output != "yaml" {
		return fmt.Errorf("invalid --output %q (expected json or yaml)", output)
	}

	spec, err := readSpec(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("limit") {
		spec.Limit, _ = cmd.Flags().GetInt("limit")
	}

	database, store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := store.List(ctx, 0)
	if err != nil {
		return err
	}
	matched, err := rules.RunSpec(newEngine(cfg, logger), records, spec)
	if err != nil {
		return err
	}
	logger.Debug("query finished", "scanned", len(records), "matched", len(matched))

	return printRecords(cmd, output, matched)
}

func printRecords(cmd *cobra.Command, output string, records []log.Record) error {
	if records == nil {
		records = []log.Record{}
	}
	out := cmd.OutOrStdout()
	if output == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
