package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/querykit/internal/core/config"
	"github.com/solatis/querykit/internal/core/db"
	"github.com/solatis/querykit/internal/export"
	"github.com/solatis/querykit/internal/ftp"
	"github.com/solatis/querykit/internal/log"
)

var exportCmd = &cobra.Command{
	Use:   "export SPEC_FILE",
	Short: "Upload the records matching a YAML query spec to the FTP drop",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("name", "", "remote file name without extension (default records-<timestamp>)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	spec, err := readSpec(args[0])
	if err != nil {
		return err
	}
	name := cfg.Export.Name
	if cmd.Flags().Changed("name") {
		name, _ = cmd.Flags().GetString("name")
	}

	database, store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	exporter, err := newExporter(cfg, store, logger)
	if err != nil {
		return err
	}
	res, err := exporter.Export(ctx, spec, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d records, %d bytes)\n", res.Name, res.Records, res.Bytes)
	return nil
}

func newExporter(cfg *config.Config, store *db.Store, logger log.Logger) (*export.Exporter, error) {
	client, err := ftp.New(ftp.Settings{
		Addr:     cfg.FTP.Addr,
		User:     cfg.FTP.User,
		Password: config.FTPPassword(),
		Dir:      cfg.FTP.Dir,
		Timeout:  cfg.FTP.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	return export.New(store, newEngine(cfg, logger), client, export.Options{
		Format:   export.Format(cfg.Export.Format),
		Compress: cfg.Export.Compress,
	}, logger)
}
