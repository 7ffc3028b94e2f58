package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/querykit/internal/core/api"
	"github.com/solatis/querykit/internal/core/config"
	"github.com/solatis/querykit/internal/core/db"
	"github.com/solatis/querykit/internal/core/server"
	"github.com/solatis/querykit/internal/export"
	"github.com/solatis/querykit/internal/log"
)

const (
	exportJob = "export"
	pruneJob  = "prune"

	// pruneSchedule runs retention hourly.
	pruneSchedule = "0 * * * *"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC query service and scheduled jobs",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "gRPC server host (overrides server.host)")
	serveCmd.Flags().Int("port", 0, "gRPC server port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	database, store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	// Lifecycle events go to the process log and the record store alike.
	events := newEventLog(log.MultiWriter{log.NewZapWriter(logger), store}, logger)

	engine := newEngine(cfg, logger)
	service, err := api.NewQueryService(engine, cfg.Server.MaxResults, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	if err := service.Register(api.DefaultDataset, store); err != nil {
		return err
	}

	scheduler, err := newScheduler(cfg, store, events, logger)
	if err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer func() {
		if err := scheduler.Stop(); err != nil {
			logger.Warn("scheduler shutdown failed", "error", err)
		}
	}()

	grpcServer, err := server.NewGRPCServer(cfg.Server, service, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	events.record(ctx, log.LevelInfo, "querykit started", map[string]any{
		"version": Version,
		"addr":    cfg.Server.Address(),
	})
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", "signal", sig.String())
		events.record(ctx, log.LevelInfo, "querykit stopping", map[string]any{"signal": sig.String()})
		return grpcServer.Shutdown(ctx)
	}
}

// newScheduler registers the export job when export.schedule is set and the
// prune job when store.retention is positive.
func newScheduler(cfg *config.Config, store *db.Store, events *eventLog, logger log.Logger) (*export.Scheduler, error) {
	scheduler, err := export.NewScheduler(cfg.Server.RequestTimeout*10, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Export.Schedule != "" {
		exporter, err := newExporter(cfg, store, logger)
		if err != nil {
			return nil, err
		}
		err = scheduler.Add(exportJob, cfg.Export.Schedule, func(ctx context.Context) error {
			// The spec file is re-read each run so edits apply without a restart.
			spec, err := readSpec(cfg.Export.Spec)
			if err != nil {
				return err
			}
			res, err := exporter.Export(ctx, spec, cfg.Export.Name)
			if err != nil {
				events.record(ctx, log.LevelError, "export failed", map[string]any{"error": err.Error()})
				return err
			}
			events.record(ctx, log.LevelInfo, "export uploaded", map[string]any{
				"file": res.Name, "records": res.Records, "bytes": res.Bytes,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Store.Retention > 0 {
		retention := cfg.Store.Retention
		err = scheduler.Add(pruneJob, pruneSchedule, func(ctx context.Context) error {
			n, err := store.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("pruned log records", "count", n, "retention", retention.String())
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}
