package cmd

import (
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var configFile string

var rootCmd = &cobra.Command{
	Use:           "querykit",
	Short:         "querykit filter, sort and export service for log records",
	Long:          `querykit compiles filter and sort specs into predicates and orderings and serves them over gRPC, the command line and scheduled FTP exports.`,
	Version:       Version,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
}

func Execute() error {
	return rootCmd.Execute()
}
